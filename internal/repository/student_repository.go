package repository

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/scienceprep/exam-backend/internal/model"
)

// ErrDuplicatePhone is returned when another student already owns the phone.
var ErrDuplicatePhone = errors.New("student with this phone already exists")

const studentColumns = `id, name, phone, level_id, login_date, last_seen`

// StudentRepository handles student data access.
type StudentRepository struct {
	pool *pgxpool.Pool
}

// NewStudentRepository creates a new StudentRepository.
func NewStudentRepository(pool *pgxpool.Pool) *StudentRepository {
	return &StudentRepository{pool: pool}
}

func scanStudent(row pgx.Row) (*model.Student, error) {
	s := &model.Student{}
	if err := row.Scan(&s.ID, &s.Name, &s.Phone, &s.LevelID, &s.LoginDate, &s.LastSeen); err != nil {
		return nil, err
	}
	return s, nil
}

// Upsert registers a student on first login. A known phone keeps its id
// and login date; name, level and last_seen are refreshed.
func (r *StudentRepository) Upsert(ctx context.Context, s *model.Student) error {
	return r.pool.QueryRow(ctx,
		`INSERT INTO students (name, phone, level_id)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (phone) DO UPDATE
		 SET name = EXCLUDED.name, level_id = EXCLUDED.level_id, last_seen = NOW()
		 RETURNING id, login_date, last_seen`,
		s.Name, s.Phone, s.LevelID,
	).Scan(&s.ID, &s.LoginDate, &s.LastSeen)
}

// GetByID retrieves a student by ID.
func (r *StudentRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Student, error) {
	return scanStudent(r.pool.QueryRow(ctx,
		`SELECT `+studentColumns+` FROM students WHERE id = $1`, id))
}

// GetByPhone retrieves a student by their unique phone.
func (r *StudentRepository) GetByPhone(ctx context.Context, phone string) (*model.Student, error) {
	return scanStudent(r.pool.QueryRow(ctx,
		`SELECT `+studentColumns+` FROM students WHERE phone = $1`, phone))
}

// ListPaginated retrieves students, newest registration first. A non-empty
// search matches a substring of the name or the phone.
func (r *StudentRepository) ListPaginated(ctx context.Context, search string, limit, offset int) ([]model.Student, int, error) {
	where := ""
	var args []interface{}
	if search = strings.TrimSpace(search); search != "" {
		where = ` WHERE name ILIKE $1 OR phone LIKE $1`
		args = append(args, "%"+escapeLike(search)+"%")
	}

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM students`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	argIdx := len(args) + 1
	query := `SELECT ` + studentColumns + ` FROM students` + where +
		` ORDER BY login_date DESC LIMIT $` + strconv.Itoa(argIdx) + ` OFFSET $` + strconv.Itoa(argIdx+1)
	args = append(args, limit, offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var students []model.Student
	for rows.Next() {
		s, err := scanStudent(rows)
		if err != nil {
			return nil, 0, err
		}
		students = append(students, *s)
	}
	return students, total, rows.Err()
}

// Update modifies a student's name, phone and level.
func (r *StudentRepository) Update(ctx context.Context, s *model.Student) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE students SET name = $1, phone = $2, level_id = $3 WHERE id = $4`,
		s.Name, s.Phone, s.LevelID, s.ID,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrDuplicatePhone
		}
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

// Delete removes a student by ID. Stored results keep their copy of the
// name and phone.
func (r *StudentRepository) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM students WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}
