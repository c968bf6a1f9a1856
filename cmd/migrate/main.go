package main

import (
	"flag"
	"os"
	"time"

	"github.com/kiliankoe/alias/internal/config"
	"github.com/kiliankoe/alias/internal/storage"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	source := flag.String("source", storage.DefaultMigrations, "migration source URL")
	flag.Parse()

	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339})

	if err := config.LoadDotEnv(".env"); err != nil {
		log.Warn().Err(err).Msg("failed to load .env")
	}

	if err := storage.Migrate(mustDatabaseURL(), *source); err != nil {
		log.Fatal().Err(err).Msg("migrate")
	}
	log.Info().Msg("database migrations applied")
}

func mustDatabaseURL() string {
	for _, key := range []string{"ALIAS_DATABASE_URL", "DATABASE_URL"} {
		if dsn := os.Getenv(key); dsn != "" {
			return dsn
		}
	}
	log.Fatal().Msg("DATABASE_URL is not set")
	return ""
}
