package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/scienceprep/exam-backend/internal/model"
)

const resultColumns = `id, exam_id, student_phone, student_name, answers, score, max_score, submitted_at`

// ResultRepository handles exam result data access.
type ResultRepository struct {
	pool *pgxpool.Pool
}

// NewResultRepository creates a new ResultRepository.
func NewResultRepository(pool *pgxpool.Pool) *ResultRepository {
	return &ResultRepository{pool: pool}
}

func scanResult(row pgx.Row) (*model.ExamResult, error) {
	res := &model.ExamResult{}
	if err := row.Scan(&res.ID, &res.ExamID, &res.StudentPhone, &res.StudentName,
		&res.Answers, &res.Score, &res.MaxScore, &res.SubmittedAt); err != nil {
		return nil, err
	}
	return res, nil
}

// Create inserts a result in a single statement and fills its id and
// submission time. Either the row exists afterwards or nothing was written.
func (r *ResultRepository) Create(ctx context.Context, res *model.ExamResult) error {
	return r.pool.QueryRow(ctx,
		`INSERT INTO exam_results (exam_id, student_phone, student_name, answers, score, max_score)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING id, submitted_at`,
		res.ExamID, res.StudentPhone, res.StudentName, res.Answers, res.Score, res.MaxScore,
	).Scan(&res.ID, &res.SubmittedAt)
}

// GetByID retrieves a single result.
func (r *ResultRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.ExamResult, error) {
	return scanResult(r.pool.QueryRow(ctx,
		`SELECT `+resultColumns+` FROM exam_results WHERE id = $1`, id))
}

// ListByExam retrieves results for an exam, newest first, with pagination.
func (r *ResultRepository) ListByExam(ctx context.Context, examID uuid.UUID, limit, offset int) ([]model.ExamResult, int, error) {
	var total int
	if err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM exam_results WHERE exam_id = $1`, examID,
	).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := r.pool.Query(ctx,
		`SELECT `+resultColumns+` FROM exam_results
		 WHERE exam_id = $1
		 ORDER BY submitted_at DESC
		 LIMIT $2 OFFSET $3`, examID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var results []model.ExamResult
	for rows.Next() {
		res, err := scanResult(rows)
		if err != nil {
			return nil, 0, err
		}
		results = append(results, *res)
	}
	return results, total, rows.Err()
}

// EachByExam streams every result of an exam in submission order.
func (r *ResultRepository) EachByExam(ctx context.Context, examID uuid.UUID, fn func(*model.ExamResult) error) error {
	rows, err := r.pool.Query(ctx,
		`SELECT `+resultColumns+` FROM exam_results
		 WHERE exam_id = $1
		 ORDER BY submitted_at ASC`, examID)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		res, err := scanResult(rows)
		if err != nil {
			return err
		}
		if err := fn(res); err != nil {
			return err
		}
	}
	return rows.Err()
}

// Stats aggregates the results of one exam. An exam without results yields zeros.
func (r *ResultRepository) Stats(ctx context.Context, examID uuid.UUID) (*model.ResultStats, error) {
	st := &model.ResultStats{ExamID: examID}
	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*),
		        COALESCE(AVG(score), 0)::float8,
		        COALESCE(MAX(score), 0),
		        COALESCE(MIN(score), 0)
		 FROM exam_results WHERE exam_id = $1`, examID,
	).Scan(&st.Attempts, &st.Average, &st.Highest, &st.Lowest)
	if err != nil {
		return nil, err
	}
	return st, nil
}
