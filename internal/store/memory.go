package store

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryStore is an in-memory [Store] for tests and throwaway runs. Safe for
// concurrent use. All data is lost on process exit.
type MemoryStore struct {
	mu   sync.RWMutex
	runs map[string]*RunRecord
}

// Compile-time interface check.
var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{runs: make(map[string]*RunRecord)}
}

// CreateRun inserts a new run in the queued state.
func (s *MemoryStore) CreateRun(_ context.Context, id string, durationSeconds int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.runs[id] = &RunRecord{
		ID:              id,
		CreatedAt:       time.Now().UTC(),
		Status:          StatusQueued,
		DurationSeconds: durationSeconds,
	}
	return nil
}

// UpdateRun applies a sparse patch: only non-nil fields of upd are written.
func (s *MemoryStore) UpdateRun(_ context.Context, id string, upd RunUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.runs[id]
	if !ok {
		return ErrNotFound
	}
	if upd.Status != nil {
		r.Status = *upd.Status
	}
	if upd.Transcript != nil {
		r.Transcript = copyPtr(upd.Transcript)
	}
	if upd.DecodedSummary != nil {
		r.DecodedSummary = copyPtr(upd.DecodedSummary)
	}
	if upd.LikelyACDCRef != nil {
		r.LikelyACDCRef = copyPtr(upd.LikelyACDCRef)
	}
	if upd.Confidence != nil {
		c := *upd.Confidence
		r.Confidence = &c
	}
	if upd.Error != nil {
		r.Error = copyPtr(upd.Error)
	}
	if upd.RunLogs != nil {
		r.RunLogs = copyPtr(upd.RunLogs)
	}
	return nil
}

// GetRun fetches one run by id. The returned record is a copy.
func (s *MemoryStore) GetRun(_ context.Context, id string) (*RunRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.runs[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := cloneRun(r)
	return &cp, nil
}

// ListRuns returns up to limit runs, newest first.
func (s *MemoryStore) ListRuns(_ context.Context, limit int) ([]RunRecord, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}

	s.mu.RLock()
	out := make([]RunRecord, 0, len(s.runs))
	for _, r := range s.runs {
		out = append(out, cloneRun(r))
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Ping always succeeds.
func (s *MemoryStore) Ping(context.Context) error { return nil }

// Close is a no-op.
func (s *MemoryStore) Close() error { return nil }

func copyPtr(p *string) *string {
	v := *p
	return &v
}

func cloneRun(r *RunRecord) RunRecord {
	cp := *r
	cp.Transcript = clonePtr(r.Transcript)
	cp.DecodedSummary = clonePtr(r.DecodedSummary)
	cp.LikelyACDCRef = clonePtr(r.LikelyACDCRef)
	cp.Error = clonePtr(r.Error)
	cp.RunLogs = clonePtr(r.RunLogs)
	if r.Confidence != nil {
		c := *r.Confidence
		cp.Confidence = &c
	}
	return cp
}

func clonePtr(p *string) *string {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
