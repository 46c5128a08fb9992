package service

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/scienceprep/exam-backend/internal/config"
	"github.com/scienceprep/exam-backend/internal/model"
	"github.com/scienceprep/exam-backend/internal/repository"
	"github.com/scienceprep/exam-backend/internal/response"
)

var (
	ErrInvalidResult  = errors.New("score outside 0..max score")
	ErrResultNotFound = errors.New("result not found")
)

// ResultEvent is queued for the stats worker after every stored result.
type ResultEvent struct {
	ExamID   uuid.UUID `json:"exam_id"`
	ResultID uuid.UUID `json:"result_id"`
	Score    int       `json:"score"`
}

// ResultsCSVHeader is the first row of every results export.
var ResultsCSVHeader = []string{"studentName", "studentPhone", "score", "maxScore", "submittedAt"}

// ResultService stores finished attempts and serves them to the admin.
// It is the ResultSink used by exam attempts.
type ResultService struct {
	resultRepo *repository.ResultRepository
	rdb        *redis.Client
	log        zerolog.Logger
}

// NewResultService creates a new ResultService.
func NewResultService(resultRepo *repository.ResultRepository, rdb *redis.Client, log zerolog.Logger) *ResultService {
	return &ResultService{
		resultRepo: resultRepo,
		rdb:        rdb,
		log:        log.With().Str("component", "result_service").Logger(),
	}
}

// SubmitResult persists a finished attempt and returns its id. Fan-out to
// the stats queue and the live feed happens after the write and never fails
// the submission.
func (s *ResultService) SubmitResult(ctx context.Context, res *model.ExamResult) (uuid.UUID, error) {
	if res.Score < 0 || res.Score > res.MaxScore {
		return uuid.Nil, ErrInvalidResult
	}
	if err := s.resultRepo.Create(ctx, res); err != nil {
		return uuid.Nil, fmt.Errorf("store result: %w", err)
	}

	s.announce(context.WithoutCancel(ctx), res)
	return res.ID, nil
}

func (s *ResultService) announce(ctx context.Context, res *model.ExamResult) {
	event, _ := json.Marshal(ResultEvent{ExamID: res.ExamID, ResultID: res.ID, Score: res.Score})
	feed, err := json.Marshal(res)
	if err != nil {
		s.log.Error().Err(err).Msg("Marshal result for feed")
		return
	}

	pipe := s.rdb.Pipeline()
	pipe.RPush(ctx, config.WorkerKey.ResultStatsQueue, event)
	pipe.Publish(ctx, config.CacheKey.ExamResultsChannel(res.ExamID.String()), feed)
	if _, err := pipe.Exec(ctx); err != nil {
		s.log.Warn().Err(err).Str("result_id", res.ID.String()).Msg("Result fan-out failed")
	}
}

// Get returns a single result.
func (s *ResultService) Get(ctx context.Context, resultID uuid.UUID) (*model.ExamResult, error) {
	res, err := s.resultRepo.GetByID(ctx, resultID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrResultNotFound
		}
		return nil, fmt.Errorf("get result: %w", err)
	}
	return res, nil
}

// List returns an exam's results, newest first.
func (s *ResultService) List(ctx context.Context, examID uuid.UUID, page, perPage int) ([]model.ExamResult, *response.Pagination, error) {
	page, perPage = normalizePage(page, perPage)

	results, total, err := s.resultRepo.ListByExam(ctx, examID, perPage, (page-1)*perPage)
	if err != nil {
		return nil, nil, fmt.Errorf("list results: %w", err)
	}
	if results == nil {
		results = []model.ExamResult{}
	}
	return results, paginate(page, perPage, total), nil
}

// Stats returns the live aggregate for an exam.
func (s *ResultService) Stats(ctx context.Context, examID uuid.UUID) (*model.ResultStats, error) {
	st, err := s.resultRepo.Stats(ctx, examID)
	if err != nil {
		return nil, fmt.Errorf("result stats: %w", err)
	}
	return st, nil
}

// ExportCSV writes every result of an exam as CSV.
func (s *ResultService) ExportCSV(ctx context.Context, examID uuid.UUID, w io.Writer) error {
	return WriteResultsCSV(w, func(fn func(*model.ExamResult) error) error {
		return s.resultRepo.EachByExam(ctx, examID, fn)
	})
}

// WriteResultsCSV renders the rows produced by each. Absent identity fields
// are written as empty cells.
func WriteResultsCSV(w io.Writer, each func(func(*model.ExamResult) error) error) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(ResultsCSVHeader); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	err := each(func(res *model.ExamResult) error {
		return cw.Write([]string{
			deref(res.StudentName),
			deref(res.StudentPhone),
			strconv.Itoa(res.Score),
			strconv.Itoa(res.MaxScore),
			res.SubmittedAt.UTC().Format(time.RFC3339),
		})
	})
	if err != nil {
		return fmt.Errorf("write rows: %w", err)
	}

	cw.Flush()
	return cw.Error()
}

// Subscribe streams results of an exam as they are stored. The returned
// function must be called to release the subscription.
func (s *ResultService) Subscribe(ctx context.Context, examID uuid.UUID) (<-chan *model.ExamResult, func()) {
	pubsub := s.rdb.Subscribe(ctx, config.CacheKey.ExamResultsChannel(examID.String()))
	out := make(chan *model.ExamResult, 16)

	go func() {
		defer close(out)
		for msg := range pubsub.Channel() {
			var res model.ExamResult
			if err := json.Unmarshal([]byte(msg.Payload), &res); err != nil {
				s.log.Warn().Err(err).Msg("Invalid result on feed")
				continue
			}
			select {
			case out <- &res:
			case <-ctx.Done():
				return
			}
		}
	}()

	return out, func() { _ = pubsub.Close() }
}

func deref(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}
