package sqlitestore

import (
	"context"
	stdsql "database/sql"
	"fmt"
)

// migrations is the embedded-backend forward-only schema history. There is
// no down path and no external migration source: each entry runs at most
// once, tracked in schema_migrations.
var migrations = []string{
	`CREATE TABLE IF NOT EXISTS memories (
		id          INTEGER PRIMARY KEY AUTOINCREMENT,
		date        TIMESTAMP NOT NULL,
		category    TEXT NOT NULL,
		topic       TEXT NOT NULL,
		content     TEXT NOT NULL,
		source      TEXT NOT NULL DEFAULT 'mcp',
		created_at  TIMESTAMP NOT NULL,
		updated_at  TIMESTAMP NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_memories_category ON memories (category)`,
	`CREATE INDEX IF NOT EXISTS idx_memories_created_at ON memories (created_at)`,
	`CREATE TABLE IF NOT EXISTS analysis_jobs (
		id               TEXT PRIMARY KEY,
		status           TEXT NOT NULL,
		job_type         TEXT NOT NULL,
		memory_ids       TEXT NOT NULL,
		progress_current INTEGER NOT NULL DEFAULT 0,
		progress_total   INTEGER NOT NULL DEFAULT 0,
		created_at       TIMESTAMP NOT NULL,
		started_at       TIMESTAMP NULL,
		completed_at     TIMESTAMP NULL,
		error_message    TEXT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_analysis_jobs_status ON analysis_jobs (status)`,
	`CREATE TABLE IF NOT EXISTS analysis_results (
		id                  INTEGER PRIMARY KEY AUTOINCREMENT,
		job_id              TEXT NOT NULL REFERENCES analysis_jobs(id),
		memory_id           INTEGER NOT NULL,
		memory_type         TEXT NOT NULL,
		confidence          REAL NOT NULL,
		extracted_concepts  TEXT NOT NULL,
		metadata            TEXT NOT NULL,
		created_at          TIMESTAMP NOT NULL
	)`,
}

func migrate(ctx context.Context, db *stdsql.DB) error {
	if _, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (version INTEGER PRIMARY KEY)`); err != nil {
		return fmt.Errorf("create schema_migrations: %w", err)
	}

	applied := map[int]bool{}
	rows, err := db.QueryContext(ctx, `SELECT version FROM schema_migrations`)
	if err != nil {
		return fmt.Errorf("read schema_migrations: %w", err)
	}
	for rows.Next() {
		var v int
		if err := rows.Scan(&v); err != nil {
			rows.Close()
			return fmt.Errorf("scan schema_migrations: %w", err)
		}
		applied[v] = true
	}
	rows.Close()

	for version, stmt := range migrations {
		if applied[version] {
			continue
		}
		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin migration %d: %w", version, err)
		}
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			tx.Rollback()
			return fmt.Errorf("apply migration %d: %w", version, err)
		}
		if _, err := tx.ExecContext(ctx, `INSERT INTO schema_migrations (version) VALUES (?)`, version); err != nil {
			tx.Rollback()
			return fmt.Errorf("record migration %d: %w", version, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit migration %d: %w", version, err)
		}
	}
	return nil
}
