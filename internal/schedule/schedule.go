// Package schedule fires the recurring run trigger. It wraps a cron runner
// around the enqueue service: each tick enqueues one scheduled run. The
// scheduler has no opinion about run semantics — a tick that lands while the
// store is still being established is logged and dropped (the next tick will
// try again).
package schedule

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/powerage/scramblecast/internal/store"
)

// Enqueuer is the slice of the run service the scheduler needs.
type Enqueuer interface {
	EnqueueRun(ctx context.Context, source string) (string, error)
}

// Scheduler triggers scheduled runs on a cron expression.
type Scheduler struct {
	cron     *cron.Cron
	enqueuer Enqueuer
	source   string
}

// New creates a Scheduler firing on the given 5-field cron expression,
// evaluated in timezone (empty means the process-local zone). An empty
// expression yields a scheduler that never fires; Start/Stop stay safe to
// call.
func New(expr, timezone string, enqueuer Enqueuer) (*Scheduler, error) {
	loc := time.Local
	if timezone != "" {
		var err error
		loc, err = time.LoadLocation(timezone)
		if err != nil {
			return nil, fmt.Errorf("schedule: load timezone %q: %w", timezone, err)
		}
	}

	s := &Scheduler{
		cron:     cron.New(cron.WithLocation(loc)),
		enqueuer: enqueuer,
		source:   "scheduled",
	}
	if expr != "" {
		if _, err := s.cron.AddFunc(expr, s.tick); err != nil {
			return nil, fmt.Errorf("schedule: parse cron %q: %w", expr, err)
		}
	}
	return s, nil
}

// Start begins firing ticks. It returns immediately; the cron runner has its
// own goroutine.
func (s *Scheduler) Start() {
	s.cron.Start()
	if entries := s.cron.Entries(); len(entries) > 0 {
		slog.Info("scheduler started", "next_run", entries[0].Next)
	}
}

// Stop stops firing ticks and waits for an in-flight tick to return. The
// enqueued run itself continues on the queue worker.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
}

func (s *Scheduler) tick() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	id, err := s.enqueuer.EnqueueRun(ctx, s.source)
	switch {
	case errors.Is(err, store.ErrNotReady):
		slog.Warn("scheduled run skipped: store not ready yet")
	case err != nil:
		slog.Error("scheduled run enqueue failed", "error", err)
	default:
		slog.Info("scheduled run enqueued", "run_id", id)
	}
}
