package worker

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/scienceprep/exam-backend/internal/config"
	"github.com/scienceprep/exam-backend/internal/service"
)

const (
	StatsBatchSize    = 50
	StatsBatchTimeout = 2 * time.Second
	StatsPollTimeout  = 1 * time.Second
)

// StatsRefresher recomputes per-exam result summaries.
type StatsRefresher interface {
	RefreshBatch(ctx context.Context, examIDs []uuid.UUID) error
}

// StatsWorker consumes result_stats_queue and refreshes exam_stats in batches.
type StatsWorker struct {
	stats   StatsRefresher
	rdb     *redis.Client
	log     zerolog.Logger
	requeue func(ctx context.Context, ev service.ResultEvent) error
}

// NewStatsWorker creates a new StatsWorker.
func NewStatsWorker(stats StatsRefresher, rdb *redis.Client, log zerolog.Logger) *StatsWorker {
	w := &StatsWorker{
		stats: stats,
		rdb:   rdb,
		log:   log.With().Str("component", "stats_worker").Logger(),
	}
	w.requeue = func(ctx context.Context, ev service.ResultEvent) error {
		raw, err := json.Marshal(ev)
		if err != nil {
			return err
		}
		return w.rdb.RPush(ctx, config.WorkerKey.ResultStatsQueue, raw).Err()
	}
	return w
}

// ----------------------------------------------------------------
// Worker loop with batching
// ----------------------------------------------------------------

// Start runs until ctx is cancelled, then flushes what it holds.
func (w *StatsWorker) Start(ctx context.Context) error {
	w.log.Info().Msg("StatsWorker started")

	batch := make([]service.ResultEvent, 0, StatsBatchSize)
	lastFlush := time.Now()

	for {
		if len(batch) > 0 &&
			(len(batch) >= StatsBatchSize || time.Since(lastFlush) >= StatsBatchTimeout) {

			w.flushSafe(ctx, batch)
			batch = batch[:0]
			lastFlush = time.Now()
		}

		select {
		case <-ctx.Done():
			w.log.Info().Int("pending", len(batch)).Msg("Shutdown requested. Flushing remaining batch...")
			w.flushSafe(context.Background(), batch)
			return nil

		default:
			item, err := w.rdb.BLPop(ctx, StatsPollTimeout, config.WorkerKey.ResultStatsQueue).Result()
			if err != nil {
				if !errors.Is(err, redis.Nil) && ctx.Err() == nil {
					w.log.Error().Err(err).Msg("BLPop error")
					time.Sleep(StatsPollTimeout)
				}
				continue
			}

			if len(item) < 2 {
				continue
			}

			var ev service.ResultEvent
			if err := json.Unmarshal([]byte(item[1]), &ev); err != nil || ev.ExamID == uuid.Nil {
				w.log.Error().Err(err).Str("payload", item[1]).Msg("Invalid stats payload")
				continue
			}

			batch = append(batch, ev)
		}
	}
}

// ----------------------------------------------------------------
// Batch refresh with per-exam fallback
// ----------------------------------------------------------------

func (w *StatsWorker) flushSafe(ctx context.Context, batch []service.ResultEvent) {
	if len(batch) == 0 {
		return
	}

	ids := distinctExams(batch)
	err := w.stats.RefreshBatch(ctx, ids)
	if err == nil {
		w.log.Debug().Int("results", len(batch)).Int("exams", len(ids)).Msg("Stats refreshed")
		return
	}
	w.log.Warn().Err(err).Msg("bulk stats refresh failed, using fallback")

	for _, id := range ids {
		if err := w.stats.RefreshBatch(ctx, []uuid.UUID{id}); err != nil {
			w.log.Error().Err(err).Str("exam_id", id.String()).Msg("Refresh failed, requeueing")
			if err := w.requeue(ctx, service.ResultEvent{ExamID: id}); err != nil {
				w.log.Error().Err(err).Str("exam_id", id.String()).Msg("requeue failed")
			}
		}
	}
}

// distinctExams keeps the first occurrence order of each exam id.
func distinctExams(batch []service.ResultEvent) []uuid.UUID {
	seen := make(map[uuid.UUID]struct{}, len(batch))
	ids := make([]uuid.UUID, 0, len(batch))
	for _, ev := range batch {
		if _, ok := seen[ev.ExamID]; ok {
			continue
		}
		seen[ev.ExamID] = struct{}{}
		ids = append(ids, ev.ExamID)
	}
	return ids
}
