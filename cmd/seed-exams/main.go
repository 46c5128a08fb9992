// Command seed-exams loads exam definitions from a YAML file.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/scienceprep/exam-backend/internal/config"
	"github.com/scienceprep/exam-backend/internal/database"
	"github.com/scienceprep/exam-backend/internal/logger"
	"github.com/scienceprep/exam-backend/internal/repository"
	"github.com/scienceprep/exam-backend/internal/service"
)

func main() {
	var path string
	var dryRun bool
	flag.StringVar(&path, "file", "seeds/exams.example.yaml", "YAML file with exam definitions")
	flag.BoolVar(&dryRun, "dry-run", false, "Validate the file without writing")
	flag.Parse()

	cfg := config.Load()
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat)

	f, err := os.Open(path)
	if err != nil {
		log.Fatal().Err(err).Str("file", path).Msg("Cannot open seed file")
	}
	reqs, err := loadSeed(f)
	f.Close()
	if err != nil {
		log.Fatal().Err(err).Str("file", path).Msg("Invalid seed file")
	}

	if dryRun {
		fmt.Printf("%s: %d exams OK\n", path, len(reqs))
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	// ─── Connect ───────────────────────────────────────────────────────
	pool, err := database.NewPostgresPool(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer pool.Close()

	rdb, err := database.NewRedisClient(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	defer rdb.Close()

	examService := service.NewExamService(
		repository.NewExamRepository(pool),
		repository.NewStatsRepository(pool),
		rdb,
		cfg.ExamCacheTTL,
		log,
	)

	// ─── Insert ────────────────────────────────────────────────────────
	created := 0
	for i := range reqs {
		exam, err := examService.Create(ctx, &reqs[i])
		if err != nil {
			log.Error().Err(err).Str("title", reqs[i].Title).Msg("Failed to create exam")
			continue
		}
		created++
		fmt.Printf("Created %s  %-9s %s\n", exam.ID, exam.LevelID, exam.Title)
	}

	fmt.Printf("\nSeed completed! Added %d/%d exams.\n", created, len(reqs))
	if created != len(reqs) {
		os.Exit(1)
	}
}
