// Command seed-students registers demo students for local testing.
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
	"github.com/scienceprep/exam-backend/internal/model"
	"github.com/scienceprep/exam-backend/internal/repository"
	"github.com/scienceprep/exam-backend/internal/service"
)

var names = []string{
	"Mona Ali", "Omar Said", "Yara Hassan", "Karim Fathy", "Nour Adel",
	"Hana Mostafa", "Youssef Sami", "Salma Reda", "Ziad Kamal", "Farida Nabil",
	"Adham Tarek", "Laila Samir", "Malak Ashraf", "Seif Hamdy", "Jana Wael",
}

var levels = []model.PrepLevel{model.PrepLevelFirst, model.PrepLevelSecond, model.PrepLevelThird}

// demoStudents returns n students with distinct phones, cycling through
// names and levels.
func demoStudents(n int) []model.Student {
	out := make([]model.Student, n)
	for i := range out {
		name := names[i%len(names)]
		if round := i / len(names); round > 0 {
			name = fmt.Sprintf("%s %d", name, round+1)
		}
		out[i] = model.Student{
			Name:    name,
			Phone:   fmt.Sprintf("0100%07d", i+1),
			LevelID: levels[i%len(levels)],
		}
	}
	return out
}

func main() {
	var count int
	flag.IntVar(&count, "count", 30, "Number of demo students")
	flag.Parse()
	if count < 1 {
		fmt.Fprintln(os.Stderr, "count must be positive")
		os.Exit(2)
	}

	cfg := config.Load()
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	pool, err := database.NewPostgresPool(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer pool.Close()

	studentService := service.NewStudentService(repository.NewStudentRepository(pool), log)

	fmt.Printf("=== Seeding %d Students ===\n", count)

	successCount := 0
	for i, student := range demoStudents(count) {
		if err := studentService.Register(ctx, &student); err != nil {
			fmt.Printf("Error registering %s (%s): %v\n", student.Name, student.Phone, err)
			continue
		}
		successCount++
		if (i+1)%10 == 0 {
			fmt.Printf("Registered %d students...\n", i+1)
		}
	}

	fmt.Printf("\nSeed completed! Registered %d/%d students.\n", successCount, count)
	if successCount != count {
		os.Exit(1)
	}
}
