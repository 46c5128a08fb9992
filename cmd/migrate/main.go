package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"strconv"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/scienceprep/exam-backend/internal/config"
	"github.com/scienceprep/exam-backend/internal/logger"
)

func main() {
	var migrationDir string
	flag.StringVar(&migrationDir, "path", "migrations", "Path to migration files")
	flag.Usage = printUsage
	flag.Parse()

	cfg := config.Load()
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat).With().Str("component", "migrate").Logger()

	args := flag.Args()
	if len(args) < 1 {
		printUsage()
		os.Exit(2)
	}

	m, err := migrate.New("file://"+migrationDir, cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Str("path", migrationDir).Msg("Migration failed to initialize")
	}
	defer m.Close()

	switch command := args[0]; command {
	case "up":
		check(m.Up(), "up")
	case "down":
		check(m.Down(), "down")
	case "steps":
		n := intArg(args, "steps")
		check(m.Steps(n), "steps")
	case "goto":
		v := intArg(args, "goto")
		if v < 0 {
			fatalf("goto requires a non-negative version")
		}
		check(m.Migrate(uint(v)), "goto")
	case "force":
		check(m.Force(intArg(args, "force")), "force")
	case "version":
		version, dirty, err := m.Version()
		if errors.Is(err, migrate.ErrNilVersion) {
			fmt.Println("Version: none")
			return
		}
		if err != nil {
			fatalf("version failed: %v", err)
		}
		fmt.Printf("Version: %d, Dirty: %t\n", version, dirty)
		return
	default:
		printUsage()
		os.Exit(2)
	}

	version, dirty, _ := m.Version()
	log.Info().Str("command", args[0]).Uint("version", version).Bool("dirty", dirty).Msg("Migration complete")
}

func check(err error, command string) {
	if err != nil && !errors.Is(err, migrate.ErrNoChange) {
		fatalf("%s failed: %v", command, err)
	}
}

func intArg(args []string, command string) int {
	if len(args) < 2 {
		fatalf("%s requires a number argument", command)
	}
	n, err := strconv.Atoi(args[1])
	if err != nil {
		fatalf("invalid number %q: %v", args[1], err)
	}
	return n
}

func fatalf(format string, a ...interface{}) {
	fmt.Fprintf(os.Stderr, "migrate: "+format+"\n", a...)
	os.Exit(1)
}

func printUsage() {
	fmt.Println("Usage: migrate [flags] <command>")
	fmt.Println("Commands: up, down, steps <n>, goto <version>, force <version>, version")
	fmt.Println("Flags:")
	flag.PrintDefaults()
}
