// Package sqlstore persists extraction runs with sqlx on postgres (pgx) or
// sqlite (modernc). Queries use ? placeholders and are rebound per driver.
package sqlstore

import (
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"termsheet/db"
	"termsheet/internal/config"
	"termsheet/internal/domain"
)

func init() {
	sqlx.BindDriver("sqlite", sqlx.QUESTION)
}

// driverName maps a configured driver to its database/sql name.
func driverName(driver string) (string, error) {
	switch driver {
	case "postgres":
		return "pgx", nil
	case "sqlite":
		return "sqlite", nil
	default:
		return "", domain.NewConfigurationError("db.driver", fmt.Errorf("unsupported driver %q", driver))
	}
}

// NewDB opens a connection pool for the configured driver.
func NewDB(cfg *config.DBConfig) (*sqlx.DB, error) {
	name, err := driverName(cfg.Driver)
	if err != nil {
		return nil, err
	}
	conn, err := sqlx.Connect(name, cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("connecting to %s: %w", cfg.Driver, err)
	}
	if cfg.Driver == "sqlite" {
		// sqlite allows one writer; a single connection avoids SQLITE_BUSY.
		conn.SetMaxOpenConns(1)
		return conn, nil
	}
	if cfg.MaxOpen > 0 {
		conn.SetMaxOpenConns(cfg.MaxOpen)
	}
	if cfg.MaxIdle > 0 {
		conn.SetMaxIdleConns(cfg.MaxIdle)
	}
	return conn, nil
}

// NewMigrator returns a golang-migrate instance over the embedded migrations.
// Closing it also closes conn.
func NewMigrator(conn *sqlx.DB, driver string) (*migrate.Migrate, error) {
	src, err := iofs.New(db.Migrations, "migrations")
	if err != nil {
		return nil, fmt.Errorf("opening embedded migrations: %w", err)
	}

	var target database.Driver
	switch driver {
	case "postgres":
		target, err = postgres.WithInstance(conn.DB, &postgres.Config{})
	case "sqlite":
		target, err = sqlite.WithInstance(conn.DB, &sqlite.Config{})
	default:
		_, err = driverName(driver)
	}
	if err != nil {
		return nil, fmt.Errorf("preparing %s migration driver: %w", driver, err)
	}

	m, err := migrate.NewWithInstance("iofs", src, driver, target)
	if err != nil {
		return nil, fmt.Errorf("creating migrator: %w", err)
	}
	return m, nil
}

// Migrate applies every pending up migration. conn stays open.
func Migrate(conn *sqlx.DB, driver string) error {
	m, err := NewMigrator(conn, driver)
	if err != nil {
		return err
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("applying migrations: %w", err)
	}
	return nil
}
