package postgres

import (
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"

	_ "github.com/lib/pq"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"go.uber.org/zap"

	"github.com/fastygo/tasktracker/assets"
	"github.com/fastygo/tasktracker/internal/config"
)

const migrationsTable = "tasktracker_schema_migrations"

// RunMigrations brings the schema up to date. Migrations embedded in the
// binary are used unless MIGRATIONS_PATH points at a directory.
func RunMigrations(cfg *config.Config, logger *zap.Logger) error {
	if cfg == nil || !cfg.Migrations.Enabled || cfg.Store.Driver != config.DriverPostgres {
		return nil
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	sqlDB, err := sql.Open("postgres", cfg.Database.URL)
	if err != nil {
		return err
	}
	defer sqlDB.Close()
	if err := sqlDB.Ping(); err != nil {
		return fmt.Errorf("migrations: ping: %w", err)
	}

	driver, err := postgres.WithInstance(sqlDB, &postgres.Config{MigrationsTable: migrationsTable})
	if err != nil {
		return err
	}

	m, origin, err := newMigrator(cfg.Migrations.Path, cfg.Database.Name, driver)
	if err != nil {
		return err
	}
	defer m.Close()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migrations: up from %s: %w", origin, err)
	}

	version, dirty, err := m.Version()
	if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
		return fmt.Errorf("migrations: version: %w", err)
	}
	if dirty {
		return fmt.Errorf("migrations: schema version %d is dirty", version)
	}
	logger.Info("database migrations applied", zap.String("source", origin), zap.Uint("version", version))
	return nil
}

func newMigrator(dir, dbName string, driver database.Driver) (*migrate.Migrate, string, error) {
	if dir != "" {
		url := "file://" + filepath.ToSlash(dir)
		m, err := migrate.NewWithDatabaseInstance(url, dbName, driver)
		if err != nil {
			return nil, url, fmt.Errorf("migrations: open %s: %w", url, err)
		}
		return m, url, nil
	}

	src, err := iofs.New(assets.Migrations, "migrations")
	if err != nil {
		return nil, "embedded", fmt.Errorf("migrations: embedded source: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", src, dbName, driver)
	if err != nil {
		return nil, "embedded", fmt.Errorf("migrations: open embedded: %w", err)
	}
	return m, "embedded", nil
}
