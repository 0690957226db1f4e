package db

import (
	"embed"
	"errors"
	"fmt"

	"github.com/diewo77/invoice-dashboard/internal/config"
	"github.com/diewo77/invoice-dashboard/internal/models"
	migrate "github.com/golang-migrate/migrate/v4"
	// Registers the postgres database driver for golang-migrate.
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"gorm.io/gorm"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Migrate brings the schema up to date. Postgres runs the embedded SQL
// migrations; SQLite, used for local development, is auto-migrated from
// the models.
func Migrate(cfg config.DatabaseConfig, conn *gorm.DB) error {
	if cfg.Driver == "sqlite" {
		if err := conn.AutoMigrate(&models.Customer{}, &models.Invoice{}); err != nil {
			return fmt.Errorf("automigrate: %w", err)
		}
		return nil
	}
	return runSQLMigrations(migrationURL(cfg))
}

// migrationURL returns the URL form golang-migrate expects. Without an
// explicit connection string it is built from the individual fields.
func migrationURL(cfg config.DatabaseConfig) string {
	if cfg.ConnString == "" {
		return cfg.URL()
	}
	return ToURLDSN(NormalizeDSN(cfg.ConnString))
}

func runSQLMigrations(dsn string) error {
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("open migrations: %w", err)
	}
	m, err := migrate.NewWithSourceInstance("iofs", src, dsn)
	if err != nil {
		return fmt.Errorf("init migrations: %w", err)
	}
	defer m.Close()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("apply migrations: %w", err)
	}
	return nil
}
