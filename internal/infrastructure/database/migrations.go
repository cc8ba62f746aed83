package database

import (
	"context"
	"embed"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strings"
)

// MigrationsFS holds the embedded migration files. The migrations package
// registers its embed.FS here from an init function so this package does
// not import it (avoiding an import cycle with packages that need both).
var MigrationsFS embed.FS

// MigrationsDir is the directory within MigrationsFS containing the
// migration files. Set alongside MigrationsFS during registration.
var MigrationsDir = "migrations"

// Migrate applies all pending migrations in order.
//
// Migration files live in the embedded filesystem under migrations/ and
// are named VERSION_description.up.sql where VERSION sorts
// lexicographically (YYYYMMDD_HHMMSS). Each migration runs inside its own
// transaction; a failure stops the run and leaves earlier migrations
// applied.
func (db *DB) Migrate(ctx context.Context) error {
	if _, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version TEXT PRIMARY KEY,
			applied_at TEXT NOT NULL
		)
	`); err != nil {
		return fmt.Errorf("creating schema_migrations table: %w", err)
	}

	applied, err := db.appliedVersions(ctx)
	if err != nil {
		return err
	}

	pending, err := pendingMigrations(applied)
	if err != nil {
		return err
	}

	for _, m := range pending {
		if err := db.applyMigration(ctx, m); err != nil {
			return fmt.Errorf("applying migration %s: %w", m.version, err)
		}
	}

	return nil
}

type migration struct {
	version string
	name    string
	sql     string
}

func (db *DB) appliedVersions(ctx context.Context) (map[string]bool, error) {
	rows, err := db.QueryContext(ctx, `SELECT version FROM schema_migrations`)
	if err != nil {
		return nil, fmt.Errorf("reading applied migrations: %w", err)
	}
	defer rows.Close()

	applied := make(map[string]bool)
	for rows.Next() {
		var version string
		if err := rows.Scan(&version); err != nil {
			return nil, fmt.Errorf("scanning migration version: %w", err)
		}
		applied[version] = true
	}
	return applied, rows.Err()
}

func pendingMigrations(applied map[string]bool) ([]migration, error) {
	entries, err := fs.ReadDir(MigrationsFS, MigrationsDir)
	if err != nil {
		return nil, fmt.Errorf("reading migrations directory: %w", err)
	}

	var pending []migration
	for _, entry := range entries {
		name := entry.Name()
		if !strings.HasSuffix(name, ".up.sql") {
			continue
		}

		version, err := parseVersion(name)
		if err != nil {
			return nil, err
		}
		if applied[version] {
			continue
		}

		data, err := fs.ReadFile(MigrationsFS, path.Join(MigrationsDir, name))
		if err != nil {
			return nil, fmt.Errorf("reading migration %s: %w", name, err)
		}

		pending = append(pending, migration{
			version: version,
			name:    name,
			sql:     string(data),
		})
	}

	sort.Slice(pending, func(i, j int) bool {
		return pending[i].version < pending[j].version
	})

	return pending, nil
}

// parseVersion extracts the version prefix from a migration filename.
// Filenames look like: 20250101_000000_initial_schema.up.sql
func parseVersion(filename string) (string, error) {
	base := strings.TrimSuffix(filename, ".up.sql")
	parts := strings.SplitN(base, "_", 3)
	if len(parts) < 3 {
		return "", fmt.Errorf("malformed migration filename: %s", filename)
	}
	return parts[0] + "_" + parts[1], nil
}

func (db *DB) applyMigration(ctx context.Context, m migration) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, m.sql); err != nil {
		return fmt.Errorf("executing migration SQL: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO schema_migrations (version, applied_at) VALUES (?, datetime('now'))`,
		m.version,
	); err != nil {
		return fmt.Errorf("recording migration: %w", err)
	}

	return tx.Commit()
}
