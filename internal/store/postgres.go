package store

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Schema is the SQL DDL for the runs table. Execute it via
// [PostgresStore.Migrate] or apply it manually during deployment.
const Schema = `
CREATE TABLE IF NOT EXISTS runs (
    id               TEXT PRIMARY KEY,
    created_at       TIMESTAMPTZ NOT NULL DEFAULT now(),
    status           TEXT NOT NULL DEFAULT 'queued',
    duration_seconds INTEGER NOT NULL,
    transcript       TEXT,
    decoded_summary  TEXT,
    likely_acdc_ref  TEXT,
    confidence       DOUBLE PRECISION,
    error            TEXT,
    run_logs         TEXT
);
CREATE INDEX IF NOT EXISTS idx_runs_created_at ON runs(created_at DESC);
`

// DB is the database interface used by [PostgresStore]. Both *pgxpool.Pool
// and *pgx.Conn satisfy this interface.
type DB interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// PostgresStore is a [Store] backed by a PostgreSQL database.
type PostgresStore struct {
	db    DB
	close func()
}

// Compile-time interface check.
var _ Store = (*PostgresStore)(nil)

// NewPostgresStore creates a new [PostgresStore] that uses the given database
// connection or pool. The caller is responsible for calling
// [PostgresStore.Migrate] to ensure the schema exists before issuing queries.
func NewPostgresStore(db DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// ConnectPostgres dials the given DSN, verifies connectivity, and runs the
// migration. The returned store owns the pool and releases it on Close.
func ConnectPostgres(ctx context.Context, dsn string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("store: connect postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("store: ping postgres: %w", err)
	}
	s := &PostgresStore{db: pool, close: pool.Close}
	if err := s.Migrate(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

// Migrate executes the [Schema] DDL against the database, creating the runs
// table and index if they do not already exist.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("store: migrate: %w", err)
	}
	return nil
}

// CreateRun inserts a new run in the queued state.
func (s *PostgresStore) CreateRun(ctx context.Context, id string, durationSeconds int) error {
	const query = `
		INSERT INTO runs (id, status, duration_seconds)
		VALUES ($1, $2, $3)`

	if _, err := s.db.Exec(ctx, query, id, StatusQueued, durationSeconds); err != nil {
		return fmt.Errorf("store: create run %s: %w", id, err)
	}
	return nil
}

// UpdateRun applies a sparse patch: only non-nil fields of upd are written.
func (s *PostgresStore) UpdateRun(ctx context.Context, id string, upd RunUpdate) error {
	sets, args := buildPatch(upd, func(i int) string { return fmt.Sprintf("$%d", i) })
	if len(sets) == 0 {
		return nil
	}
	args = append(args, id)
	query := fmt.Sprintf("UPDATE runs SET %s WHERE id = $%d",
		strings.Join(sets, ", "), len(args))

	tag, err := s.db.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("store: update run %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

const runColumns = `id, created_at, status, duration_seconds,
	transcript, decoded_summary, likely_acdc_ref, confidence, error, run_logs`

// GetRun fetches one run by id.
func (s *PostgresStore) GetRun(ctx context.Context, id string) (*RunRecord, error) {
	query := fmt.Sprintf("SELECT %s FROM runs WHERE id = $1", runColumns)

	var r RunRecord
	err := s.db.QueryRow(ctx, query, id).Scan(
		&r.ID, &r.CreatedAt, &r.Status, &r.DurationSeconds,
		&r.Transcript, &r.DecodedSummary, &r.LikelyACDCRef,
		&r.Confidence, &r.Error, &r.RunLogs,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("store: get run %s: %w", id, err)
	}
	return &r, nil
}

// ListRuns returns up to limit runs, newest first.
func (s *PostgresStore) ListRuns(ctx context.Context, limit int) ([]RunRecord, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	query := fmt.Sprintf(
		"SELECT %s FROM runs ORDER BY created_at DESC, id DESC LIMIT $1", runColumns)

	rows, err := s.db.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("store: list runs: %w", err)
	}
	defer rows.Close()

	var out []RunRecord
	for rows.Next() {
		var r RunRecord
		if err := rows.Scan(
			&r.ID, &r.CreatedAt, &r.Status, &r.DurationSeconds,
			&r.Transcript, &r.DecodedSummary, &r.LikelyACDCRef,
			&r.Confidence, &r.Error, &r.RunLogs,
		); err != nil {
			return nil, fmt.Errorf("store: scan run: %w", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: list runs: %w", err)
	}
	return out, nil
}

// Ping reports whether the database is reachable.
func (s *PostgresStore) Ping(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, "SELECT 1"); err != nil {
		return fmt.Errorf("store: ping: %w", err)
	}
	return nil
}

// Close releases the connection pool if this store owns one.
func (s *PostgresStore) Close() error {
	if s.close != nil {
		s.close()
	}
	return nil
}

// buildPatch translates the non-nil fields of upd into SET clauses and their
// arguments. placeholder renders the 1-based positional parameter.
func buildPatch(upd RunUpdate, placeholder func(int) string) ([]string, []any) {
	var sets []string
	var args []any
	add := func(col string, v any) {
		args = append(args, v)
		sets = append(sets, fmt.Sprintf("%s = %s", col, placeholder(len(args))))
	}

	if upd.Status != nil {
		add("status", *upd.Status)
	}
	if upd.Transcript != nil {
		add("transcript", *upd.Transcript)
	}
	if upd.DecodedSummary != nil {
		add("decoded_summary", *upd.DecodedSummary)
	}
	if upd.LikelyACDCRef != nil {
		add("likely_acdc_ref", *upd.LikelyACDCRef)
	}
	if upd.Confidence != nil {
		add("confidence", *upd.Confidence)
	}
	if upd.Error != nil {
		add("error", *upd.Error)
	}
	if upd.RunLogs != nil {
		add("run_logs", *upd.RunLogs)
	}
	return sets, args
}
