package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// OpenSQLite opens (and creates if needed) the SQLite database at path and
// ensures the journal tables exist. ":memory:" opens a private in-memory
// database.
func OpenSQLite(ctx context.Context, path string) (*sql.DB, error) {
	if path == "" {
		return nil, fmt.Errorf("sqlite path is empty")
	}
	if path != ":memory:" {
		if err := CheckLocalFilesystem(path); err != nil {
			return nil, err
		}
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create sqlite directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// One writer goroutine owns the journal; a single connection also keeps
	// ":memory:" databases from splitting across the pool.
	db.SetMaxOpenConns(1)

	pctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if _, err := db.ExecContext(pctx, "PRAGMA busy_timeout = 5000;"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set busy_timeout: %w", err)
	}
	if path != ":memory:" {
		if _, err := db.ExecContext(pctx, "PRAGMA journal_mode = WAL;"); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("set journal_mode: %w", err)
		}
	}
	if err := BootstrapSQLite(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

// BootstrapSQLite creates tables/indexes if missing.
func BootstrapSQLite(ctx context.Context, db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS host_session (
  id          TEXT PRIMARY KEY,
  pid         INTEGER NOT NULL,
  started_at  TEXT NOT NULL,
  config_hash TEXT
);`,
		`CREATE TABLE IF NOT EXISTS command_journal (
  id            TEXT PRIMARY KEY,
  session_id    TEXT NOT NULL,
  seq           INTEGER NOT NULL,
  request_id    TEXT,
  method        TEXT NOT NULL,
  params        JSON,
  outcome       TEXT NOT NULL,
  response      JSON NOT NULL,
  error_kind    TEXT,
  dispatched_at TEXT NOT NULL,
  duration_us   INTEGER NOT NULL
);`,
		`CREATE INDEX IF NOT EXISTS command_journal_session_seq_idx ON command_journal(session_id, seq);`,
		`CREATE INDEX IF NOT EXISTS command_journal_method_idx ON command_journal(method, outcome);`,
	}

	for _, stmt := range stmts {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("bootstrap sqlite: %w", err)
		}
	}
	return nil
}
