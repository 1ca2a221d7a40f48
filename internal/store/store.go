// Package store defines the durable run-record store: the RunRecord row, the
// four-operation Store interface the rest of the system depends on, and the
// interchangeable backends (PostgreSQL, SQLite, in-memory) selected by
// configuration at startup.
//
// The store may be briefly unavailable at process start while the database
// connection is established. [Gate] models that window: operations against a
// not-yet-established store surface [ErrNotReady], a condition the enqueue
// path honours by refusing to enqueue.
package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when no run with the requested id exists.
var ErrNotFound = errors.New("store: run not found")

// ErrNotReady is returned while the backing database is still being
// established. It is retriable and distinct from any other store error so
// callers can gate writes instead of failing them.
var ErrNotReady = errors.New("store: not ready")

// Status is the lifecycle state of a run.
type Status string

const (
	StatusQueued  Status = "queued"
	StatusRunning Status = "running"
	StatusDone    Status = "done"
	StatusFailed  Status = "failed"
)

// IsValid reports whether s is a recognised run status.
func (s Status) IsValid() bool {
	switch s {
	case StatusQueued, StatusRunning, StatusDone, StatusFailed:
		return true
	}
	return false
}

// RunRecord is one attempt at the record → transcribe → decode pipeline.
// ID, CreatedAt, and DurationSeconds are immutable after creation.
type RunRecord struct {
	ID              string     `json:"id"`
	CreatedAt       time.Time  `json:"created_at"`
	Status          Status     `json:"status"`
	DurationSeconds int        `json:"duration_seconds"`
	Transcript      *string    `json:"transcript"`
	DecodedSummary  *string    `json:"decoded_summary"`
	LikelyACDCRef   *string    `json:"likely_acdc_reference"`
	Confidence      *float64   `json:"confidence"`
	Error           *string    `json:"error"`
	RunLogs         *string    `json:"run_logs"`
}

// RunUpdate is a sparse patch: only non-nil fields are written. There is no
// way to null a field out again — the pipeline only ever adds information to
// a run.
type RunUpdate struct {
	Status         *Status
	Transcript     *string
	DecodedSummary *string
	LikelyACDCRef  *string
	Confidence     *float64
	Error          *string
	RunLogs        *string
}

// Store is the capability interface the core requires from storage,
// regardless of backing technology.
type Store interface {
	// CreateRun inserts a new run in the queued state with the given
	// recording duration and all result fields null.
	CreateRun(ctx context.Context, id string, durationSeconds int) error

	// UpdateRun applies a sparse patch to the run with the given id.
	// Returns ErrNotFound if the run does not exist.
	UpdateRun(ctx context.Context, id string, upd RunUpdate) error

	// GetRun fetches one run by id. Returns ErrNotFound if it does not exist.
	GetRun(ctx context.Context, id string) (*RunRecord, error)

	// ListRuns returns up to limit runs ordered newest-first. limit <= 0
	// means the backend default (100).
	ListRuns(ctx context.Context, limit int) ([]RunRecord, error)

	// Ping reports whether the backing database is reachable.
	Ping(ctx context.Context) error

	// Close releases the underlying connection resources.
	Close() error
}

// defaultListLimit caps ListRuns when the caller passes limit <= 0.
const defaultListLimit = 100

// StatusPtr returns a pointer to s, for building RunUpdate patches inline.
func StatusPtr(s Status) *Status { return &s }

// StringPtr returns a pointer to s, for building RunUpdate patches inline.
func StringPtr(s string) *string { return &s }

// Float64Ptr returns a pointer to f, for building RunUpdate patches inline.
func Float64Ptr(f float64) *float64 { return &f }
