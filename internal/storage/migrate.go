package storage

import (
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
)

// DefaultMigrations is where the server and cmd/migrate look for SQL files.
const DefaultMigrations = "file://db/migrations"

// Migrate applies all pending up migrations from source to the database.
func Migrate(databaseURL, source string) error {
	if source == "" {
		source = DefaultMigrations
	}
	m, err := migrate.New(source, databaseURL)
	if err != nil {
		return fmt.Errorf("migration setup failed: %w", err)
	}
	defer m.Close()
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("database migration failed: %w", err)
	}
	return nil
}
