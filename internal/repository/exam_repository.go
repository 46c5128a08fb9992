package repository

import (
	"context"
	"strconv"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/scienceprep/exam-backend/internal/model"
)

const examColumns = `id, title, description, level_id, questions, time_limit_minutes,
	published, created_at, updated_at`

// ExamRepository handles exam data access. Questions are stored as one
// JSONB array so their order survives round trips.
type ExamRepository struct {
	pool *pgxpool.Pool
}

// NewExamRepository creates a new ExamRepository.
func NewExamRepository(pool *pgxpool.Pool) *ExamRepository {
	return &ExamRepository{pool: pool}
}

func scanExam(row pgx.Row) (*model.Exam, error) {
	e := &model.Exam{}
	err := row.Scan(&e.ID, &e.Title, &e.Description, &e.LevelID, &e.Questions,
		&e.TimeLimitMinutes, &e.Published, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if e.Questions == nil {
		e.Questions = []model.Question{}
	}
	return e, nil
}

func collectExams(rows pgx.Rows) ([]model.Exam, error) {
	defer rows.Close()

	var exams []model.Exam
	for rows.Next() {
		e, err := scanExam(rows)
		if err != nil {
			return nil, err
		}
		exams = append(exams, *e)
	}
	return exams, rows.Err()
}

// GetByID retrieves an exam by its UUID. Returns pgx.ErrNoRows when missing.
func (r *ExamRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Exam, error) {
	return scanExam(r.pool.QueryRow(ctx,
		`SELECT `+examColumns+` FROM exams WHERE id = $1`, id))
}

// ListPaginated retrieves all exams, newest first, optionally filtered by level.
func (r *ExamRepository) ListPaginated(ctx context.Context, level *model.PrepLevel, limit, offset int) ([]model.Exam, int, error) {
	where := ``
	args := []any{}
	if level != nil {
		where = ` WHERE level_id = $1`
		args = append(args, *level)
	}

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM exams`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	args = append(args, limit, offset)
	query := `SELECT ` + examColumns + ` FROM exams` + where +
		` ORDER BY created_at DESC LIMIT $` + strconv.Itoa(len(args)-1) + ` OFFSET $` + strconv.Itoa(len(args))

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	exams, err := collectExams(rows)
	return exams, total, err
}

// ListPublishedByLevel returns the exams students of a level may take.
func (r *ExamRepository) ListPublishedByLevel(ctx context.Context, level model.PrepLevel) ([]model.Exam, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+examColumns+` FROM exams
		 WHERE level_id = $1 AND published
		 ORDER BY created_at DESC`, level)
	if err != nil {
		return nil, err
	}
	return collectExams(rows)
}

// ListPublished returns every published exam.
// Used for cache prewarming on application startup.
func (r *ExamRepository) ListPublished(ctx context.Context) ([]model.Exam, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+examColumns+` FROM exams WHERE published ORDER BY created_at DESC`)
	if err != nil {
		return nil, err
	}
	return collectExams(rows)
}

// Create inserts a new exam and fills its id and timestamps.
func (r *ExamRepository) Create(ctx context.Context, e *model.Exam) error {
	return r.pool.QueryRow(ctx,
		`INSERT INTO exams (title, description, level_id, questions, time_limit_minutes, published)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING id, created_at, updated_at`,
		e.Title, e.Description, e.LevelID, e.Questions, e.TimeLimitMinutes, e.Published,
	).Scan(&e.ID, &e.CreatedAt, &e.UpdatedAt)
}

// Update overwrites every editable field of an exam.
func (r *ExamRepository) Update(ctx context.Context, e *model.Exam) error {
	return r.pool.QueryRow(ctx,
		`UPDATE exams
		 SET title = $1, description = $2, level_id = $3, questions = $4,
		     time_limit_minutes = $5, published = $6, updated_at = NOW()
		 WHERE id = $7
		 RETURNING updated_at`,
		e.Title, e.Description, e.LevelID, e.Questions, e.TimeLimitMinutes, e.Published, e.ID,
	).Scan(&e.UpdatedAt)
}

// SetPublished toggles student visibility.
func (r *ExamRepository) SetPublished(ctx context.Context, id uuid.UUID, published bool) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE exams SET published = $1, updated_at = NOW() WHERE id = $2`,
		published, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

// Delete removes an exam together with its results.
func (r *ExamRepository) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM exams WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}
