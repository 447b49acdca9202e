package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"ledger/internal/config"
	"ledger/internal/db"
	"ledger/internal/logger"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
)

// Usage: migrate [up|down|version]. Defaults to up.
func main() {
	cfg := config.Load()
	log := logger.New(cfg.LogLevel)

	command := "up"
	if len(os.Args) > 1 {
		command = os.Args[1]
	}

	database, err := db.Connect(cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect database")
	}
	defer database.Close()

	driver, err := postgres.WithInstance(database.DB, &postgres.Config{})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create postgres driver")
	}
	source := "file://" + filepath.ToSlash(cfg.MigrationsPath)
	m, err := migrate.NewWithDatabaseInstance(source, "postgres", driver)
	if err != nil {
		log.Fatal().Err(err).Str("source", source).Msg("failed to load migrations")
	}

	switch command {
	case "up":
		err = m.Up()
	case "down":
		err = m.Steps(-1)
	case "version":
		version, dirty, verr := m.Version()
		if verr != nil && !errors.Is(verr, migrate.ErrNilVersion) {
			log.Fatal().Err(verr).Msg("failed to read version")
		}
		fmt.Printf("version=%d dirty=%t\n", version, dirty)
		return
	default:
		log.Fatal().Str("command", command).Msg("unknown command, want up|down|version")
	}

	if err != nil && !errors.Is(err, migrate.ErrNoChange) {
		var dirtyErr migrate.ErrDirty
		if errors.As(err, &dirtyErr) {
			log.Fatal().Int("version", dirtyErr.Version).Msg("database is dirty, fix and force the version")
		}
		log.Fatal().Err(err).Str("command", command).Msg("migration failed")
	}
	log.Info().Str("command", command).Msg("migrations applied")
}
