package store

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// ConnectFunc dials the backing database and returns a ready [Store]. It is
// retried by [Gate.Establish] until it succeeds or the context is cancelled.
type ConnectFunc func(ctx context.Context) (Store, error)

// Gate wraps a [Store] whose connection is established in the background so
// the HTTP surface can come up before the database does. Until the first
// successful connect every accessor returns [ErrNotReady].
type Gate struct {
	connect ConnectFunc

	mu    sync.RWMutex
	store Store
}

// NewGate creates a gate around connect. Call [Gate.Establish] in a
// background goroutine to start dialing.
func NewGate(connect ConnectFunc) *Gate {
	return &Gate{connect: connect}
}

// NewReadyGate wraps an already-established store, for tests and the
// in-memory backend.
func NewReadyGate(s Store) *Gate {
	return &Gate{store: s}
}

// establishBackoff is the retry ladder for the initial connect. The last
// entry repeats until the context is cancelled.
var establishBackoff = []time.Duration{
	time.Second, 2 * time.Second, 5 * time.Second, 10 * time.Second, 30 * time.Second,
}

// Establish dials the database, retrying with increasing backoff, until it
// succeeds or ctx is cancelled. It returns nil once the store is ready and
// ctx.Err() on cancellation.
func (g *Gate) Establish(ctx context.Context) error {
	if g.Ready() {
		return nil
	}

	for attempt := 0; ; attempt++ {
		s, err := g.connect(ctx)
		if err == nil {
			g.mu.Lock()
			g.store = s
			g.mu.Unlock()
			slog.Info("run store established", "attempts", attempt+1)
			return nil
		}

		wait := establishBackoff[min(attempt, len(establishBackoff)-1)]
		slog.Warn("run store not yet reachable",
			"attempt", attempt+1,
			"retry_in", wait,
			"error", err)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}
}

// Ready reports whether the store has been established.
func (g *Gate) Ready() bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.store != nil
}

// Store returns the established store, or [ErrNotReady] while the connection
// is still being dialed.
func (g *Gate) Store() (Store, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	if g.store == nil {
		return nil, ErrNotReady
	}
	return g.store, nil
}

// Close closes the underlying store if it was established.
func (g *Gate) Close() error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.store == nil {
		return nil
	}
	err := g.store.Close()
	g.store = nil
	return err
}
