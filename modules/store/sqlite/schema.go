package sqlite

import (
	"context"
	"database/sql"
	"fmt"
)

// migrations are applied in order; entry i brings the schema to version i+1.
// Applied versions are recorded in schema_version so startup is idempotent.
var migrations = [][]string{
	{
		`CREATE TABLE IF NOT EXISTS function_calls (
			call_id        TEXT PRIMARY KEY,
			run_id         TEXT NOT NULL,
			fn             TEXT NOT NULL,
			kwargs         TEXT NOT NULL DEFAULT '{}',
			channel        TEXT,
			reject_options TEXT,
			state          TEXT,
			created_at     TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%fZ','now'))
		)`,

		`CREATE TABLE IF NOT EXISTS function_call_status (
			call_id            TEXT PRIMARY KEY REFERENCES function_calls(call_id) ON DELETE CASCADE,
			requested_at       TEXT NOT NULL,
			responded_at       TEXT,
			approved           INTEGER,
			comment            TEXT,
			reject_option_name TEXT,
			slack_message_ts   TEXT
		)`,

		`CREATE TABLE IF NOT EXISTS human_contacts (
			call_id          TEXT PRIMARY KEY,
			run_id           TEXT NOT NULL,
			msg              TEXT NOT NULL,
			subject          TEXT,
			channel          TEXT,
			response_options TEXT,
			state            TEXT,
			created_at       TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%fZ','now'))
		)`,

		`CREATE TABLE IF NOT EXISTS human_contact_status (
			call_id              TEXT PRIMARY KEY REFERENCES human_contacts(call_id) ON DELETE CASCADE,
			requested_at         TEXT NOT NULL,
			responded_at         TEXT,
			response             TEXT,
			response_option_name TEXT,
			slack_message_ts     TEXT
		)`,

		`CREATE INDEX IF NOT EXISTS idx_fc_status_pending ON function_call_status(responded_at)`,
		`CREATE INDEX IF NOT EXISTS idx_hc_status_pending ON human_contact_status(responded_at)`,

		`CREATE TABLE IF NOT EXISTS api_keys (
			id           INTEGER PRIMARY KEY AUTOINCREMENT,
			key_hash     TEXT NOT NULL UNIQUE,
			key_prefix   TEXT NOT NULL,
			name         TEXT NOT NULL DEFAULT '',
			is_active    INTEGER NOT NULL DEFAULT 1,
			created_at   TEXT NOT NULL,
			last_used_at TEXT
		)`,
	},
	{
		`CREATE TABLE IF NOT EXISTS escalations (
			id                    TEXT PRIMARY KEY,
			kind                  TEXT NOT NULL,
			call_id               TEXT NOT NULL,
			message               TEXT NOT NULL,
			additional_recipients TEXT,
			channel               TEXT,
			created_at            TEXT NOT NULL
		)`,

		`CREATE INDEX IF NOT EXISTS idx_escalations_call ON escalations(kind, call_id, id)`,
	},
}

// schemaVersion is the latest schema version.
var schemaVersion = len(migrations)

// migrate creates or updates the database schema to the latest version.
func migrate(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, "CREATE TABLE IF NOT EXISTS schema_version (version INTEGER PRIMARY KEY)"); err != nil {
		return fmt.Errorf("sqlite: create schema_version: %w", err)
	}

	var current int
	if err := db.QueryRowContext(ctx, "SELECT COALESCE(MAX(version), 0) FROM schema_version").Scan(&current); err != nil {
		return fmt.Errorf("sqlite: read schema version: %w", err)
	}

	for v := current; v < schemaVersion; v++ {
		if err := applyMigration(ctx, db, v+1, migrations[v]); err != nil {
			return err
		}
	}
	return nil
}

func applyMigration(ctx context.Context, db *sql.DB, version int, stmts []string) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite: migrate to v%d: %w", version, err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, stmt := range stmts {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("sqlite: migrate to v%d: %w\nstatement: %s", version, err, stmt)
		}
	}
	if _, err := tx.ExecContext(ctx, "INSERT INTO schema_version (version) VALUES (?)", version); err != nil {
		return fmt.Errorf("sqlite: record schema version %d: %w", version, err)
	}
	return tx.Commit()
}
