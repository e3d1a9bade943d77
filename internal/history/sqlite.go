package history

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

// SQLiteStore appends history rows to a SQLite database.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (and migrates) the database at path.
// Pass ":memory:" for an in-memory database.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	if path == "" {
		return nil, fmt.Errorf("history database path is required")
	}
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("creating db directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	// A single connection keeps ":memory:" databases shared and serialises writers.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("setting pragma %q: %w", p, err)
		}
	}

	s := &SQLiteStore{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}
	return s, nil
}

func (s *SQLiteStore) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS history (
			id           INTEGER PRIMARY KEY AUTOINCREMENT,
			batch_id     TEXT NOT NULL DEFAULT '',
			title        TEXT NOT NULL,
			summary      TEXT NOT NULL,
			created_date TEXT NOT NULL,
			deadline     TEXT,
			status       TEXT NOT NULL,
			processed_at TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_history_batch ON history(batch_id)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("executing migration: %w", err)
		}
	}
	return nil
}

// Append inserts e.
func (s *SQLiteStore) Append(ctx context.Context, e Entry) error {
	var deadline sql.NullString
	if e.Deadline != nil {
		deadline = sql.NullString{String: *e.Deadline, Valid: true}
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO history (batch_id, title, summary, created_date, deadline, status, processed_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		e.BatchID, e.Title, e.Summary, e.CreatedDate, deadline, e.Status, e.ProcessedAt,
	)
	if err != nil {
		return fmt.Errorf("appending history: %w", err)
	}
	return nil
}

// List returns entries newest first.
func (s *SQLiteStore) List(ctx context.Context, opts ListOpts) ([]Entry, error) {
	query := `SELECT batch_id, title, summary, created_date, deadline, status, processed_at
	          FROM history ORDER BY id DESC`
	var args []any
	if opts.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, opts.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing history: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var deadline sql.NullString
		if err := rows.Scan(&e.BatchID, &e.Title, &e.Summary, &e.CreatedDate, &deadline, &e.Status, &e.ProcessedAt); err != nil {
			return nil, fmt.Errorf("scanning history row: %w", err)
		}
		if deadline.Valid {
			d := deadline.String
			e.Deadline = &d
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
