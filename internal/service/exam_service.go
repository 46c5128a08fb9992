package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/scienceprep/exam-backend/internal/config"
	"github.com/scienceprep/exam-backend/internal/examsession"
	"github.com/scienceprep/exam-backend/internal/model"
	"github.com/scienceprep/exam-backend/internal/repository"
	"github.com/scienceprep/exam-backend/internal/response"
)

// Domain Errors
var (
	ErrInvalidExam = errors.New("invalid exam definition")
)

// AdminExamItem is an exam row in the admin listing with its result summary.
type AdminExamItem struct {
	model.Exam
	Stats *model.ResultStats `json:"stats,omitempty"`
}

// ExamService handles exam business logic and Redis caching. It is the
// ExamCatalog used by exam attempts.
type ExamService struct {
	examRepo  *repository.ExamRepository
	statsRepo *repository.StatsRepository
	rdb       *redis.Client
	ttl       time.Duration
	log       zerolog.Logger
}

// NewExamService creates a new ExamService.
func NewExamService(
	examRepo *repository.ExamRepository,
	statsRepo *repository.StatsRepository,
	rdb *redis.Client,
	ttl time.Duration,
	log zerolog.Logger,
) *ExamService {
	return &ExamService{
		examRepo:  examRepo,
		statsRepo: statsRepo,
		rdb:       rdb,
		ttl:       ttl,
		log:       log.With().Str("component", "exam_service").Logger(),
	}
}

// ─── Catalog ────────────────────────────────────────────────────────────────

// GetExam returns the full exam definition, answer key included. Published
// or not, a missing exam yields examsession.ErrExamNotFound.
func (s *ExamService) GetExam(ctx context.Context, examID uuid.UUID) (*model.Exam, error) {
	key := config.CacheKey.ExamKey(examID.String())

	data, err := s.rdb.Get(ctx, key).Bytes()
	if err == nil {
		var exam model.Exam
		if err := json.Unmarshal(data, &exam); err == nil {
			return &exam, nil
		}
		s.log.Warn().Str("exam_id", examID.String()).Msg("Corrupt cached exam, reloading")
	} else if !errors.Is(err, redis.Nil) {
		s.log.Warn().Err(err).Msg("Exam cache read failed, using database")
	}

	exam, err := s.examRepo.GetByID(ctx, examID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, examsession.ErrExamNotFound
		}
		return nil, fmt.Errorf("get exam: %w", err)
	}

	if err := s.cacheExam(ctx, exam); err != nil {
		s.log.Warn().Err(err).Str("exam_id", examID.String()).Msg("Exam cache write failed")
	}
	return exam, nil
}

// GetPaper returns the student-facing exam. Unpublished exams and exams of
// another level are reported as not found.
func (s *ExamService) GetPaper(ctx context.Context, examID uuid.UUID, level model.PrepLevel) (*model.ExamPaper, error) {
	exam, err := s.GetExam(ctx, examID)
	if err != nil {
		return nil, err
	}
	if !exam.Published || exam.LevelID != level {
		return nil, examsession.ErrExamNotFound
	}
	paper := exam.Paper()
	return &paper, nil
}

// ListForLevel returns the published exams of a level.
func (s *ExamService) ListForLevel(ctx context.Context, level model.PrepLevel) ([]model.ExamSummary, error) {
	key := config.CacheKey.LevelExamsKey(string(level))

	if data, err := s.rdb.Get(ctx, key).Bytes(); err == nil {
		var cached []model.ExamSummary
		if err := json.Unmarshal(data, &cached); err == nil {
			return cached, nil
		}
	}

	exams, err := s.examRepo.ListPublishedByLevel(ctx, level)
	if err != nil {
		return nil, fmt.Errorf("list exams: %w", err)
	}

	summaries := make([]model.ExamSummary, len(exams))
	for i := range exams {
		summaries[i] = exams[i].Summary()
	}

	if raw, err := json.Marshal(summaries); err == nil {
		if err := s.rdb.Set(ctx, key, raw, s.ttl).Err(); err != nil {
			s.log.Warn().Err(err).Str("level", string(level)).Msg("Level cache write failed")
		}
	}
	return summaries, nil
}

func (s *ExamService) cacheExam(ctx context.Context, exam *model.Exam) error {
	raw, err := json.Marshal(exam)
	if err != nil {
		return fmt.Errorf("marshal exam: %w", err)
	}
	return s.rdb.Set(ctx, config.CacheKey.ExamKey(exam.ID.String()), raw, s.ttl).Err()
}

// invalidate drops every cache entry an exam change can affect.
func (s *ExamService) invalidate(ctx context.Context, examID uuid.UUID, levels ...model.PrepLevel) {
	keys := []string{config.CacheKey.ExamKey(examID.String())}
	for _, l := range levels {
		keys = append(keys, config.CacheKey.LevelExamsKey(string(l)))
	}
	if err := s.rdb.Del(ctx, keys...).Err(); err != nil {
		s.log.Warn().Err(err).Str("exam_id", examID.String()).Msg("Cache invalidation failed")
	}
}

// PrewarmAllCaches loads all published exams into Redis on application startup.
func (s *ExamService) PrewarmAllCaches(ctx context.Context) error {
	exams, err := s.examRepo.ListPublished(ctx)
	if err != nil {
		return fmt.Errorf("list published exams: %w", err)
	}

	if len(exams) == 0 {
		s.log.Info().Msg("No published exams to prewarm")
		return nil
	}

	warmed := 0
	for i := range exams {
		if err := s.cacheExam(ctx, &exams[i]); err != nil {
			s.log.Warn().
				Err(err).
				Str("exam_id", exams[i].ID.String()).
				Msg("Failed to warm exam, skipping")
			continue
		}
		warmed++
	}

	s.log.Info().
		Int("warmed", warmed).
		Int("total", len(exams)).
		Msg("Prewarming complete")
	return nil
}

// ─── Administration ─────────────────────────────────────────────────────────

// List returns every exam, newest first, with stored result summaries.
func (s *ExamService) List(ctx context.Context, level *model.PrepLevel, page, perPage int) ([]AdminExamItem, *response.Pagination, error) {
	page, perPage = normalizePage(page, perPage)

	exams, total, err := s.examRepo.ListPaginated(ctx, level, perPage, (page-1)*perPage)
	if err != nil {
		return nil, nil, fmt.Errorf("list exams: %w", err)
	}

	ids := make([]uuid.UUID, len(exams))
	for i := range exams {
		ids[i] = exams[i].ID
	}
	stats, err := s.statsRepo.ListByExams(ctx, ids)
	if err != nil {
		s.log.Warn().Err(err).Msg("Exam stats unavailable")
		stats = nil
	}

	items := make([]AdminExamItem, len(exams))
	for i := range exams {
		items[i] = AdminExamItem{Exam: exams[i]}
		if st, ok := stats[exams[i].ID]; ok {
			items[i].Stats = &st
		}
	}

	return items, paginate(page, perPage, total), nil
}

// Create validates and stores a new exam.
func (s *ExamService) Create(ctx context.Context, req *model.CreateExamRequest) (*model.Exam, error) {
	questions, err := model.BuildQuestions(req.Questions)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidExam, err)
	}

	exam := &model.Exam{
		Title:            strings.TrimSpace(req.Title),
		Description:      strings.TrimSpace(req.Description),
		LevelID:          req.LevelID,
		Questions:        questions,
		TimeLimitMinutes: req.TimeLimitMinutes,
		Published:        req.Published,
	}
	if err := s.examRepo.Create(ctx, exam); err != nil {
		return nil, fmt.Errorf("create exam: %w", err)
	}

	s.invalidate(ctx, exam.ID, exam.LevelID)
	s.log.Info().Str("exam_id", exam.ID.String()).Int("questions", len(questions)).Msg("Exam created")
	return exam, nil
}

// Update merges the request onto the stored exam. A time limit of zero
// makes the exam untimed.
func (s *ExamService) Update(ctx context.Context, examID uuid.UUID, req *model.UpdateExamRequest) (*model.Exam, error) {
	exam, err := s.examRepo.GetByID(ctx, examID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, examsession.ErrExamNotFound
		}
		return nil, fmt.Errorf("get exam: %w", err)
	}
	oldLevel := exam.LevelID

	if req.Title != nil {
		exam.Title = strings.TrimSpace(*req.Title)
	}
	if req.Description != nil {
		exam.Description = strings.TrimSpace(*req.Description)
	}
	if req.LevelID != nil {
		exam.LevelID = *req.LevelID
	}
	if req.Questions != nil {
		questions, err := model.BuildQuestions(*req.Questions)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidExam, err)
		}
		exam.Questions = questions
	}
	if req.TimeLimitMinutes != nil {
		if *req.TimeLimitMinutes == 0 {
			exam.TimeLimitMinutes = nil
		} else {
			limit := *req.TimeLimitMinutes
			exam.TimeLimitMinutes = &limit
		}
	}
	if req.Published != nil {
		exam.Published = *req.Published
	}

	if err := s.examRepo.Update(ctx, exam); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, examsession.ErrExamNotFound
		}
		return nil, fmt.Errorf("update exam: %w", err)
	}

	s.invalidate(ctx, exam.ID, oldLevel, exam.LevelID)
	s.log.Info().Str("exam_id", exam.ID.String()).Msg("Exam updated")
	return exam, nil
}

// SetPublished toggles student visibility.
func (s *ExamService) SetPublished(ctx context.Context, examID uuid.UUID, published bool) error {
	exam, err := s.examRepo.GetByID(ctx, examID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return examsession.ErrExamNotFound
		}
		return fmt.Errorf("get exam: %w", err)
	}
	if err := s.examRepo.SetPublished(ctx, examID, published); err != nil {
		return fmt.Errorf("set published: %w", err)
	}

	s.invalidate(ctx, examID, exam.LevelID)
	s.log.Info().Str("exam_id", examID.String()).Bool("published", published).Msg("Exam visibility changed")
	return nil
}

// Delete removes an exam and its results.
func (s *ExamService) Delete(ctx context.Context, examID uuid.UUID) error {
	exam, err := s.examRepo.GetByID(ctx, examID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return examsession.ErrExamNotFound
		}
		return fmt.Errorf("get exam: %w", err)
	}
	if err := s.examRepo.Delete(ctx, examID); err != nil {
		return fmt.Errorf("delete exam: %w", err)
	}

	s.invalidate(ctx, examID, exam.LevelID)
	s.log.Info().Str("exam_id", examID.String()).Msg("Exam deleted")
	return nil
}

func normalizePage(page, perPage int) (int, int) {
	if page < 1 {
		page = 1
	}
	if perPage < 1 {
		perPage = 20
	}
	if perPage > 100 {
		perPage = 100
	}
	return page, perPage
}

func paginate(page, perPage, total int) *response.Pagination {
	return &response.Pagination{
		Page:       page,
		PerPage:    perPage,
		TotalItems: total,
		TotalPages: (total + perPage - 1) / perPage,
	}
}
