package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/scienceprep/exam-backend/internal/config"
	"github.com/scienceprep/exam-backend/internal/database"
	"github.com/scienceprep/exam-backend/internal/examsession"
	"github.com/scienceprep/exam-backend/internal/handler"
	"github.com/scienceprep/exam-backend/internal/logger"
	"github.com/scienceprep/exam-backend/internal/middleware"
	"github.com/scienceprep/exam-backend/internal/repository"
	"github.com/scienceprep/exam-backend/internal/router"
	"github.com/scienceprep/exam-backend/internal/service"
	"github.com/scienceprep/exam-backend/internal/validator"
	"github.com/scienceprep/exam-backend/internal/worker"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 10 * time.Second

func main() {
	// ─── Load Configuration ────────────────────────────────────────────
	cfg := config.Load()

	// ─── Initialize Logger ─────────────────────────────────────────────
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat)
	log.Info().
		Str("port", cfg.ServerPort).
		Str("mode", cfg.GinMode).
		Str("log_level", cfg.LogLevel).
		Msg("Starting SciencePrep exam backend")

	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}

	// ─── Initialize Validator ──────────────────────────────────────────
	validator.Setup()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ─── Connect to PostgreSQL ─────────────────────────────────────────
	pool, err := database.NewPostgresPool(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer pool.Close()

	// ─── Connect to Redis ──────────────────────────────────────────────
	rdb, err := database.NewRedisClient(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	defer rdb.Close()

	// ─── Initialize Repositories ───────────────────────────────────────
	examRepo := repository.NewExamRepository(pool)
	resultRepo := repository.NewResultRepository(pool)
	statsRepo := repository.NewStatsRepository(pool)
	studentRepo := repository.NewStudentRepository(pool)

	// ─── Initialize Services ──────────────────────────────────────────
	studentService := service.NewStudentService(studentRepo, log)
	authService := service.NewAuthService(cfg, studentService)
	examService := service.NewExamService(examRepo, statsRepo, rdb, cfg.ExamCacheTTL, log)
	resultService := service.NewResultService(resultRepo, rdb, log)
	draftService := service.NewDraftService(rdb, log)

	// ─── Exam Attempts ─────────────────────────────────────────────────
	sessions := examsession.NewManager(
		examService,
		resultService,
		draftService,
		log,
		cfg.SessionIdle,
		examsession.WithSubmitTimeout(cfg.SubmitTimeout),
	)

	// ─── Initialize Handlers ──────────────────────────────────────────
	handlers := &router.Handlers{
		Auth:          handler.NewAuthHandler(authService),
		StudentPortal: handler.NewStudentPortalHandler(examService),
		WS:            handler.NewWSHandler(sessions, log, cfg.AllowedOrigins),
		Exam:          handler.NewExamHandler(examService),
		Result:        handler.NewResultHandler(resultService, examService, log),
		Students:      handler.NewStudentManagementHandler(studentService),
		System:        handler.NewSystemHandler(rdb, sessions, log),
	}

	// ─── Prewarm Redis Caches ─────────────────────────────────────────
	// Published exams are loaded before the first student connects.
	if err := examService.PrewarmAllCaches(ctx); err != nil {
		log.Warn().Err(err).Msg("Cache prewarm failed")
	}

	// ─── Setup Router ──────────────────────────────────────────────────
	loginLimiter := middleware.NewRateLimiter(30, time.Minute)
	r := router.SetupRouter(authService, loginLimiter, handlers, cfg, log)

	srv := &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// ─── Run ───────────────────────────────────────────────────────────
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Info().Str("addr", srv.Addr).Msg("Server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		return sessions.Run(gctx)
	})
	g.Go(func() error {
		return worker.NewStatsWorker(statsRepo, rdb, log).Start(gctx)
	})
	g.Go(func() error {
		return loginLimiter.Run(gctx)
	})

	// ─── Graceful Shutdown ─────────────────────────────────────────────
	g.Go(func() error {
		<-gctx.Done()
		log.Info().Msg("Shutting down gracefully...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Error().Err(err).Msg("Server stopped with error")
		os.Exit(1)
	}
	log.Info().Msg("Shutdown complete")
}

// init sets zerolog global defaults before main runs.
func init() {
	zerolog.TimeFieldFormat = time.RFC3339
}
