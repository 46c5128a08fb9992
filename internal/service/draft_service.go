package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/scienceprep/exam-backend/internal/config"
	"github.com/scienceprep/exam-backend/internal/examsession"
)

// DraftTTL bounds how long an unsubmitted attempt can be resumed.
const DraftTTL = 24 * time.Hour

// DraftService mirrors in-progress answers into one Redis hash per attempt,
// field = question id, value = JSON answer.
type DraftService struct {
	rdb *redis.Client
	log zerolog.Logger
}

// NewDraftService creates a new DraftService.
func NewDraftService(rdb *redis.Client, log zerolog.Logger) *DraftService {
	return &DraftService{
		rdb: rdb,
		log: log.With().Str("component", "draft_service").Logger(),
	}
}

// LoadDraft returns the saved answers, skipping fields that fail to decode.
func (s *DraftService) LoadDraft(ctx context.Context, examID uuid.UUID, studentKey string) (map[string]examsession.Answer, error) {
	key := config.CacheKey.AttemptDraftKey(examID.String(), studentKey)
	raw, err := s.rdb.HGetAll(ctx, key).Result()
	if err != nil {
		return nil, fmt.Errorf("load draft: %w", err)
	}

	answers := make(map[string]examsession.Answer, len(raw))
	for qid, v := range raw {
		var a examsession.Answer
		if err := json.Unmarshal([]byte(v), &a); err != nil {
			s.log.Warn().Str("key", key).Str("question_id", qid).Msg("Skipping corrupt draft answer")
			continue
		}
		answers[qid] = a
	}
	return answers, nil
}

// SaveAnswer stores one answer and refreshes the draft expiry.
func (s *DraftService) SaveAnswer(ctx context.Context, examID uuid.UUID, studentKey, questionID string, answer examsession.Answer) error {
	raw, err := json.Marshal(answer)
	if err != nil {
		return fmt.Errorf("marshal answer: %w", err)
	}

	key := config.CacheKey.AttemptDraftKey(examID.String(), studentKey)
	pipe := s.rdb.TxPipeline()
	pipe.HSet(ctx, key, questionID, raw)
	pipe.Expire(ctx, key, DraftTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("save answer: %w", err)
	}
	return nil
}

// ClearDraft removes the draft of an attempt.
func (s *DraftService) ClearDraft(ctx context.Context, examID uuid.UUID, studentKey string) error {
	key := config.CacheKey.AttemptDraftKey(examID.String(), studentKey)
	if err := s.rdb.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("clear draft: %w", err)
	}
	return nil
}
