package database

import (
	"fmt"
	"log/slog"
)

// Migration represents a database migration
type Migration struct {
	Version int
	Name    string
	SQL     []string
}

// schemaVersionSQL is applied before any migration runs
const schemaVersionSQL = `
	CREATE TABLE IF NOT EXISTS schema_version (
		version INTEGER PRIMARY KEY,
		applied_at TIMESTAMP NOT NULL
	)`

// migrations contains all database migrations in order. Statements must be
// valid for both PostgreSQL and SQLite.
var migrations = []Migration{
	{
		Version: 1,
		Name:    "create_analyses_table",
		SQL: []string{
			`CREATE TABLE IF NOT EXISTS analyses (
				id TEXT PRIMARY KEY,
				review_text TEXT NOT NULL,
				status TEXT NOT NULL DEFAULT 'completed',
				verdict TEXT,
				confidence INTEGER NOT NULL DEFAULT 0,
				flag_count INTEGER NOT NULL DEFAULT 0,
				agreement BOOLEAN,
				primary_prediction TEXT,
				result TEXT,
				created_at TIMESTAMP NOT NULL,
				updated_at TIMESTAMP NOT NULL
			)`,
			`CREATE INDEX IF NOT EXISTS idx_analyses_created_at ON analyses(created_at)`,
			`CREATE INDEX IF NOT EXISTS idx_analyses_verdict ON analyses(verdict)`,
		},
	},
	{
		Version: 2,
		Name:    "add_job_tracking_columns",
		SQL: []string{
			`ALTER TABLE analyses ADD COLUMN last_error TEXT`,
			`ALTER TABLE analyses ADD COLUMN retry_count INTEGER NOT NULL DEFAULT 0`,
			`CREATE INDEX IF NOT EXISTS idx_analyses_status ON analyses(status)`,
		},
	},
}

// Migrate runs all pending migrations
func (db *DB) Migrate() error {
	if _, err := db.conn.Exec(schemaVersionSQL); err != nil {
		return fmt.Errorf("failed to create schema_version table: %w", err)
	}

	currentVersion, err := db.SchemaVersion()
	if err != nil {
		return err
	}
	slog.Debug("current schema version", "version", currentVersion, "driver", db.driver)

	for _, migration := range migrations {
		if migration.Version <= currentVersion {
			continue
		}

		tx, err := db.conn.Begin()
		if err != nil {
			return fmt.Errorf("failed to begin transaction for migration %d: %w", migration.Version, err)
		}

		for _, stmt := range migration.SQL {
			if _, err := tx.Exec(stmt); err != nil {
				tx.Rollback()
				return fmt.Errorf("failed to run migration %d (%s): %w", migration.Version, migration.Name, err)
			}
		}

		if _, err := tx.Exec(db.rebind("INSERT INTO schema_version (version, applied_at) VALUES (?, ?)"), migration.Version, now()); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to record migration %d: %w", migration.Version, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("failed to commit migration %d: %w", migration.Version, err)
		}

		slog.Info("applied migration", "version", migration.Version, "name", migration.Name)
	}

	return nil
}

// SchemaVersion returns the highest applied migration, 0 when none
func (db *DB) SchemaVersion() (int, error) {
	var version int
	if err := db.conn.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_version").Scan(&version); err != nil {
		return 0, fmt.Errorf("failed to get current version: %w", err)
	}
	return version, nil
}
