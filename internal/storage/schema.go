package storage

import (
	"database/sql"
	"fmt"
	"time"
)

// schemaVersionTable creates the schema version tracking table
const schemaVersionTable = `
CREATE TABLE IF NOT EXISTS schema_version (
    version INTEGER PRIMARY KEY,
    applied_at TEXT NOT NULL
);
`

// migrations are applied in order, starting from version 0.
// Never modify an existing migration, only append new ones.
var migrations = []func(*sql.Tx) error{
	migrateV0,
}

func migrateV0(tx *sql.Tx) error {
	schema := `
-- Patterns: learned context/outcome associations
CREATE TABLE IF NOT EXISTS patterns (
    id TEXT PRIMARY KEY,
    agent TEXT NOT NULL,
    type TEXT NOT NULL,
    project TEXT DEFAULT '',
    tags TEXT DEFAULT '[]',
    context TEXT NOT NULL DEFAULT '{}',
    outcome TEXT DEFAULT '',
    confidence REAL DEFAULT 0.5,
    success_rate REAL DEFAULT 0.5,
    usage_count INTEGER DEFAULT 1,
    created_at TEXT NOT NULL,
    last_used_at TEXT NOT NULL,
    recent_outcomes TEXT DEFAULT '[]'
);
CREATE INDEX IF NOT EXISTS idx_patterns_agent ON patterns(agent);
CREATE INDEX IF NOT EXISTS idx_patterns_type ON patterns(type);

-- Specialist state: thresholds, feedback and learned phrases per specialist
CREATE TABLE IF NOT EXISTS specialist_state (
    specialist TEXT PRIMARY KEY,
    state TEXT NOT NULL
);

-- Key/value scratch space for engine bookkeeping
CREATE TABLE IF NOT EXISTS kv_state (
    key TEXT PRIMARY KEY,
    value TEXT NOT NULL
);
`
	_, err := tx.Exec(schema)
	return err
}

// ensureSchema creates the schema version table and runs any pending migrations
func (s *SQLite) ensureSchema() error {
	if _, err := s.db.Exec(schemaVersionTable); err != nil {
		return fmt.Errorf("create schema_version table: %w", err)
	}

	current, err := s.SchemaVersion()
	if err != nil {
		return fmt.Errorf("get schema version: %w", err)
	}

	for i := current + 1; i < len(migrations); i++ {
		if err := s.runMigration(i); err != nil {
			return fmt.Errorf("run migration %d: %w", i, err)
		}
	}
	return nil
}

// runMigration executes a single migration in a transaction
func (s *SQLite) runMigration(version int) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := migrations[version](tx); err != nil {
		return fmt.Errorf("execute migration: %w", err)
	}

	now := time.Now().UTC().Format(time.RFC3339)
	if _, err := tx.Exec("INSERT INTO schema_version (version, applied_at) VALUES (?, ?)", version, now); err != nil {
		return fmt.Errorf("record migration: %w", err)
	}
	return tx.Commit()
}

// SchemaVersion returns the current schema version, -1 for an empty database.
func (s *SQLite) SchemaVersion() (int, error) {
	var version int
	err := s.db.QueryRow("SELECT COALESCE(MAX(version), -1) FROM schema_version").Scan(&version)
	return version, err
}
