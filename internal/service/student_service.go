package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
	"github.com/scienceprep/exam-backend/internal/model"
	"github.com/scienceprep/exam-backend/internal/repository"
	"github.com/scienceprep/exam-backend/internal/response"
)

var (
	ErrStudentNotFound = errors.New("student not found")
	ErrPhoneTaken      = errors.New("phone already registered")
)

// StudentService keeps the registry of students who have logged in.
type StudentService struct {
	studentRepo *repository.StudentRepository
	log         zerolog.Logger
}

// NewStudentService creates a new StudentService.
func NewStudentService(studentRepo *repository.StudentRepository, log zerolog.Logger) *StudentService {
	return &StudentService{
		studentRepo: studentRepo,
		log:         log.With().Str("component", "student_service").Logger(),
	}
}

// Register records a login. First-time phones are inserted, known phones
// get their name, level and last_seen refreshed.
func (s *StudentService) Register(ctx context.Context, student *model.Student) error {
	if err := s.studentRepo.Upsert(ctx, student); err != nil {
		return fmt.Errorf("register student: %w", err)
	}
	s.log.Debug().Str("student_id", student.ID.String()).Msg("Student login recorded")
	return nil
}

// GetByID retrieves a student by ID.
func (s *StudentService) GetByID(ctx context.Context, id uuid.UUID) (*model.Student, error) {
	student, err := s.studentRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrStudentNotFound
		}
		return nil, fmt.Errorf("get student: %w", err)
	}
	return student, nil
}

// GetByPhone retrieves a student by their normalized phone.
func (s *StudentService) GetByPhone(ctx context.Context, phone string) (*model.Student, error) {
	student, err := s.studentRepo.GetByPhone(ctx, NormalizePhone(phone))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrStudentNotFound
		}
		return nil, fmt.Errorf("get student: %w", err)
	}
	return student, nil
}

// List returns registered students, newest first, filtered by a name or
// phone substring.
func (s *StudentService) List(ctx context.Context, search string, page, perPage int) ([]model.Student, *response.Pagination, error) {
	page, perPage = normalizePage(page, perPage)

	students, total, err := s.studentRepo.ListPaginated(ctx, search, perPage, (page-1)*perPage)
	if err != nil {
		return nil, nil, fmt.Errorf("list students: %w", err)
	}
	if students == nil {
		students = []model.Student{}
	}
	return students, paginate(page, perPage, total), nil
}

// Update corrects a student's details.
func (s *StudentService) Update(ctx context.Context, id uuid.UUID, req *model.UpdateStudentRequest) (*model.Student, error) {
	student, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := ApplyStudentUpdate(student, req); err != nil {
		return nil, err
	}

	if err := s.studentRepo.Update(ctx, student); err != nil {
		switch {
		case errors.Is(err, repository.ErrDuplicatePhone):
			return nil, ErrPhoneTaken
		case errors.Is(err, pgx.ErrNoRows):
			return nil, ErrStudentNotFound
		}
		return nil, fmt.Errorf("update student: %w", err)
	}
	return student, nil
}

// Delete removes a student from the registry. Their stored results stay.
func (s *StudentService) Delete(ctx context.Context, id uuid.UUID) error {
	if err := s.studentRepo.Delete(ctx, id); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrStudentNotFound
		}
		return fmt.Errorf("delete student: %w", err)
	}
	s.log.Info().Str("student_id", id.String()).Msg("Student removed")
	return nil
}

// ApplyStudentUpdate merges an update request into student using the
// same normalization as login.
func ApplyStudentUpdate(student *model.Student, req *model.UpdateStudentRequest) error {
	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return fmt.Errorf("%w: name is empty", ErrInvalidStudent)
		}
		student.Name = name
	}
	if req.Phone != nil {
		phone := NormalizePhone(*req.Phone)
		if err := checkPhone(phone); err != nil {
			return err
		}
		student.Phone = phone
	}
	if req.LevelID != nil {
		if !req.LevelID.Valid() {
			return ErrInvalidLevel
		}
		student.LevelID = *req.LevelID
	}
	return nil
}
