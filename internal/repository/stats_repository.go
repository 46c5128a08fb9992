package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/scienceprep/exam-backend/internal/model"
)

// StatsRepository maintains the exam_stats summary table.
type StatsRepository struct {
	pool *pgxpool.Pool
}

// NewStatsRepository creates a new StatsRepository.
func NewStatsRepository(pool *pgxpool.Pool) *StatsRepository {
	return &StatsRepository{pool: pool}
}

// RefreshBatch recomputes the summary rows of the given exams from
// exam_results in a single transaction.
func (r *StatsRepository) RefreshBatch(ctx context.Context, examIDs []uuid.UUID) error {
	if len(examIDs) == 0 {
		return nil
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	batch := &pgx.Batch{}
	for _, id := range examIDs {
		batch.Queue(
			`INSERT INTO exam_stats (exam_id, attempts, average_score, highest_score, lowest_score, refreshed_at)
			 SELECT $1, COUNT(*), COALESCE(AVG(score), 0)::float8, COALESCE(MAX(score), 0), COALESCE(MIN(score), 0), NOW()
			 FROM exam_results WHERE exam_id = $1
			 ON CONFLICT (exam_id) DO UPDATE SET
			     attempts = EXCLUDED.attempts,
			     average_score = EXCLUDED.average_score,
			     highest_score = EXCLUDED.highest_score,
			     lowest_score = EXCLUDED.lowest_score,
			     refreshed_at = EXCLUDED.refreshed_at`, id)
	}

	br := tx.SendBatch(ctx, batch)
	for range examIDs {
		if _, err := br.Exec(); err != nil {
			br.Close()
			return fmt.Errorf("refresh stats: %w", err)
		}
	}
	if err := br.Close(); err != nil {
		return fmt.Errorf("close batch: %w", err)
	}

	return tx.Commit(ctx)
}

// ListByExams returns the stored summaries keyed by exam id. Exams without
// a summary row are absent from the map.
func (r *StatsRepository) ListByExams(ctx context.Context, examIDs []uuid.UUID) (map[uuid.UUID]model.ResultStats, error) {
	out := make(map[uuid.UUID]model.ResultStats, len(examIDs))
	if len(examIDs) == 0 {
		return out, nil
	}

	rows, err := r.pool.Query(ctx,
		`SELECT exam_id, attempts, average_score, highest_score, lowest_score
		 FROM exam_stats WHERE exam_id = ANY($1)`, examIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var st model.ResultStats
		if err := rows.Scan(&st.ExamID, &st.Attempts, &st.Average, &st.Highest, &st.Lowest); err != nil {
			return nil, err
		}
		out[st.ExamID] = st
	}
	return out, rows.Err()
}
