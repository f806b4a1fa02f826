package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"marketpulse/internal/query"

	_ "modernc.org/sqlite" // Pure-Go SQLite driver.
)

// Compile-time interface checks.
var _ QueryLog = (*SQLiteQueryLog)(nil)
var _ query.Recorder = (*SQLiteQueryLog)(nil)

const schema = `
CREATE TABLE IF NOT EXISTS query_log (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	kind        TEXT    NOT NULL,
	ident       TEXT    NOT NULL,
	started_at  INTEGER NOT NULL,
	duration_ms INTEGER NOT NULL,
	ok          INTEGER NOT NULL,
	error       TEXT    NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS query_log_started ON query_log (started_at);
`

// SQLiteQueryLog implements QueryLog backed by a SQLite database.
type SQLiteQueryLog struct {
	db *sql.DB
}

// NewSQLiteQueryLog opens (or creates) a SQLite database at dbPath and
// ensures the query_log table exists.
func NewSQLiteQueryLog(dbPath string) (*SQLiteQueryLog, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating %s: %w", dir, err)
		}
	}
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, err
	}
	// One writer; also keeps :memory: databases on a single connection.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrating query_log: %w", err)
	}
	return &SQLiteQueryLog{db: db}, nil
}

// Close closes the underlying database connection.
func (s *SQLiteQueryLog) Close() error {
	return s.db.Close()
}

// Record inserts one call.
func (s *SQLiteQueryLog) Record(ctx context.Context, c query.Call) error {
	var errText string
	if c.Err != nil {
		errText = c.Err.Error()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO query_log (kind, ident, started_at, duration_ms, ok, error) VALUES (?, ?, ?, ?, ?, ?)`,
		string(c.Kind), c.Ident, c.Started.UnixMilli(), c.Duration.Milliseconds(), c.Err == nil, errText)
	if err != nil {
		return fmt.Errorf("inserting query_log row: %w", err)
	}
	return nil
}

// Recent returns up to limit records, newest first.
func (s *SQLiteQueryLog) Recent(ctx context.Context, limit int) ([]QueryRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, kind, ident, started_at, duration_ms, ok, error FROM query_log ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("querying query_log: %w", err)
	}
	defer rows.Close()

	var out []QueryRecord
	for rows.Next() {
		var (
			r          QueryRecord
			startedMS  int64
			durationMS int64
		)
		if err := rows.Scan(&r.ID, &r.Kind, &r.Ident, &startedMS, &durationMS, &r.OK, &r.Error); err != nil {
			return nil, err
		}
		r.StartedAt = time.UnixMilli(startedMS).UTC()
		r.Duration = time.Duration(durationMS) * time.Millisecond
		out = append(out, r)
	}
	return out, rows.Err()
}
