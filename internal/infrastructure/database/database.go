// Package database provides SQLite database access for Fusion Bridge Core.
//
// All persistent state (organisations, users, connectors, devices, events,
// automations, locations and service configurations) lives in a single
// SQLite file. Schema evolution is handled by embedded SQL migrations,
// see migrations.go.
package database

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/fusionbridge/fusion-bridge-core/internal/infrastructure/config"
)

const (
	// dirPermissions restricts the data directory to owner and group.
	dirPermissions = 0o750

	// filePermissions restricts the database file to the owner.
	filePermissions = 0o600

	connMaxLifetime = time.Hour
)

// DB wraps sql.DB with application-specific helpers.
type DB struct {
	*sql.DB
	path string
}

// Open opens (creating if necessary) the SQLite database at the configured
// path, applies connection pragmas and runs pending migrations.
//
// SQLite only supports one writer at a time, so the connection pool is
// capped at a single connection. WAL mode keeps readers from blocking the
// writer.
func Open(ctx context.Context, cfg config.DatabaseConfig) (*DB, error) {
	dir := filepath.Dir(cfg.Path)
	if err := os.MkdirAll(dir, dirPermissions); err != nil {
		return nil, fmt.Errorf("creating database directory: %w", err)
	}

	busyTimeoutMs := cfg.BusyTimeout * 1000
	if busyTimeoutMs <= 0 {
		busyTimeoutMs = 5000
	}

	dsn := fmt.Sprintf("file:%s?_busy_timeout=%d&_foreign_keys=on", cfg.Path, busyTimeoutMs)
	if cfg.WALMode {
		dsn += "&_journal_mode=WAL"
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	db.SetMaxOpenConns(1)
	db.SetConnMaxLifetime(connMaxLifetime)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	if err := os.Chmod(cfg.Path, filePermissions); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting database file permissions: %w", err)
	}

	wrapped := &DB{DB: db, path: cfg.Path}

	if err := wrapped.Migrate(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return wrapped, nil
}

// Path returns the filesystem path of the database file.
func (db *DB) Path() string {
	return db.path
}

// HealthCheck verifies the database connection is alive.
func (db *DB) HealthCheck(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("database health check: %w", err)
	}
	return nil
}
