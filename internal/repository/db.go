package repository

import (
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

// InitDB opens (or creates) a SQLite database at the given path and ensures
// all required tables exist. Pass ":memory:" for an in-memory database.
func InitDB(dsn string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	// Every pooled connection to ":memory:" would get its own empty database.
	if dsn == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	// Enable WAL mode for better concurrent read performance.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set wal mode: %w", err)
	}

	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}

	if err := createTables(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("create tables: %w", err)
	}

	return db, nil
}

func createTables(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS runs (
			id TEXT PRIMARY KEY,
			started_at DATETIME NOT NULL,
			finished_at DATETIME NOT NULL,
			owner_path TEXT NOT NULL,
			owner_hash TEXT NOT NULL,
			custodian_path TEXT NOT NULL,
			custodian_hash TEXT NOT NULL,
			match_policy TEXT NOT NULL,
			retention TEXT NOT NULL,
			owner_records INTEGER NOT NULL,
			custodian_records INTEGER NOT NULL,
			pairs INTEGER NOT NULL,
			owner_orphans INTEGER NOT NULL,
			custodian_orphans INTEGER NOT NULL,
			diffs INTEGER NOT NULL,
			soft_failures INTEGER NOT NULL,
			rerun_of TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_runs_inputs ON runs(owner_hash, custodian_hash, match_policy, retention)`,
		`CREATE INDEX IF NOT EXISTS idx_runs_started_at ON runs(started_at)`,

		`CREATE TABLE IF NOT EXISTS field_discrepancies (
			run_id TEXT NOT NULL,
			pair_id TEXT NOT NULL,
			field TEXT NOT NULL,
			kind TEXT NOT NULL,
			owner_value TEXT NOT NULL,
			custodian_value TEXT NOT NULL,
			delta TEXT NOT NULL DEFAULT '',
			seq INTEGER NOT NULL,
			PRIMARY KEY (run_id, seq),
			FOREIGN KEY (run_id) REFERENCES runs(id) ON DELETE CASCADE
		)`,
		`CREATE INDEX IF NOT EXISTS idx_field_discrepancies_field ON field_discrepancies(run_id, field)`,
		`CREATE INDEX IF NOT EXISTS idx_field_discrepancies_kind ON field_discrepancies(run_id, kind)`,

		`CREATE TABLE IF NOT EXISTS severity_results (
			pair_id TEXT PRIMARY KEY,
			ordinal INTEGER NOT NULL,
			severity TEXT NOT NULL,
			explanation TEXT NOT NULL,
			comment TEXT NOT NULL DEFAULT '',
			ingested_at DATETIME NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_severity_results_severity ON severity_results(severity)`,
	}

	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("exec %q: %w", stmt[:40], err)
		}
	}

	return nil
}
