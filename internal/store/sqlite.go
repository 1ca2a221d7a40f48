package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// sqliteSchema mirrors [Schema] in SQLite dialect. Timestamps are stored as
// RFC 3339 text so ordering and round-tripping stay exact.
const sqliteSchema = `
CREATE TABLE IF NOT EXISTS runs (
    id               TEXT PRIMARY KEY,
    created_at       TEXT NOT NULL,
    status           TEXT NOT NULL DEFAULT 'queued',
    duration_seconds INTEGER NOT NULL,
    transcript       TEXT,
    decoded_summary  TEXT,
    likely_acdc_ref  TEXT,
    confidence       REAL,
    error            TEXT,
    run_logs         TEXT
);
CREATE INDEX IF NOT EXISTS idx_runs_created_at ON runs(created_at DESC);
`

// SQLiteStore is a [Store] backed by a single-file SQLite database. It suits
// single-node deployments where running PostgreSQL would be overkill.
type SQLiteStore struct {
	db *sql.DB
}

// Compile-time interface check.
var _ Store = (*SQLiteStore)(nil)

// OpenSQLite opens (creating if necessary) the database at path and runs the
// migration. Use ":memory:" for an ephemeral store.
func OpenSQLite(ctx context.Context, path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", path+"?_busy_timeout=5000&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("store: open sqlite %s: %w", path, err)
	}
	// SQLite handles one writer at a time; a single connection avoids
	// SQLITE_BUSY churn under the FIFO runner.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: migrate sqlite: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// CreateRun inserts a new run in the queued state.
func (s *SQLiteStore) CreateRun(ctx context.Context, id string, durationSeconds int) error {
	const query = `
		INSERT INTO runs (id, created_at, status, duration_seconds)
		VALUES (?, ?, ?, ?)`

	now := time.Now().UTC().Format(time.RFC3339Nano)
	if _, err := s.db.ExecContext(ctx, query, id, now, StatusQueued, durationSeconds); err != nil {
		return fmt.Errorf("store: create run %s: %w", id, err)
	}
	return nil
}

// UpdateRun applies a sparse patch: only non-nil fields of upd are written.
func (s *SQLiteStore) UpdateRun(ctx context.Context, id string, upd RunUpdate) error {
	sets, args := buildPatch(upd, func(int) string { return "?" })
	if len(sets) == 0 {
		return nil
	}
	args = append(args, id)
	query := fmt.Sprintf("UPDATE runs SET %s WHERE id = ?", strings.Join(sets, ", "))

	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("store: update run %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("store: update run %s: %w", id, err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// GetRun fetches one run by id.
func (s *SQLiteStore) GetRun(ctx context.Context, id string) (*RunRecord, error) {
	query := fmt.Sprintf("SELECT %s FROM runs WHERE id = ?", runColumns)

	r, err := scanSQLiteRun(s.db.QueryRowContext(ctx, query, id).Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("store: get run %s: %w", id, err)
	}
	return r, nil
}

// ListRuns returns up to limit runs, newest first.
func (s *SQLiteStore) ListRuns(ctx context.Context, limit int) ([]RunRecord, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	query := fmt.Sprintf(
		"SELECT %s FROM runs ORDER BY created_at DESC, id DESC LIMIT ?", runColumns)

	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("store: list runs: %w", err)
	}
	defer rows.Close()

	var out []RunRecord
	for rows.Next() {
		r, err := scanSQLiteRun(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("store: scan run: %w", err)
		}
		out = append(out, *r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: list runs: %w", err)
	}
	return out, nil
}

// Ping reports whether the database file is usable.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("store: ping: %w", err)
	}
	return nil
}

// Close closes the underlying database handle.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// scanSQLiteRun scans one row, converting the text timestamp back to
// time.Time.
func scanSQLiteRun(scan func(dest ...any) error) (*RunRecord, error) {
	var r RunRecord
	var createdAt string
	err := scan(
		&r.ID, &createdAt, &r.Status, &r.DurationSeconds,
		&r.Transcript, &r.DecodedSummary, &r.LikelyACDCRef,
		&r.Confidence, &r.Error, &r.RunLogs,
	)
	if err != nil {
		return nil, err
	}
	r.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt)
	if err != nil {
		return nil, fmt.Errorf("parse created_at %q: %w", createdAt, err)
	}
	return &r, nil
}
