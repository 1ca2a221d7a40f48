package runner

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/powerage/scramblecast/internal/observe"
	"github.com/powerage/scramblecast/internal/queue"
	"github.com/powerage/scramblecast/internal/store"
)

// Run sources, recorded in metrics and logs.
const (
	SourceManual    = "manual"
	SourceScheduled = "scheduled"
)

// ErrNoTranscript is returned by [Service.RetryRun] when the target run never
// produced a transcript — there is nothing to re-analyze.
var ErrNoTranscript = errors.New("runner: run has no stored transcript")

// Service is the enqueue surface: it creates run records and hands tasks to
// the FIFO queue. The HTTP API and the scheduler both talk to it.
type Service struct {
	gate    *store.Gate
	queue   *queue.Queue
	runner  *Runner
	metrics *observe.Metrics
	now     func() time.Time

	mu          sync.Mutex
	clipSeconds int
}

// ServiceOption is a functional option for Service.
type ServiceOption func(*Service)

// WithServiceMetrics tracks queue depth on s' metrics instance.
func WithServiceMetrics(m *observe.Metrics) ServiceOption {
	return func(s *Service) { s.metrics = m }
}

// NewService creates a Service. clipSeconds is the capture length applied to
// every enqueued run.
func NewService(gate *store.Gate, q *queue.Queue, r *Runner, clipSeconds int, opts ...ServiceOption) *Service {
	s := &Service{
		gate:        gate,
		queue:       q,
		runner:      r,
		clipSeconds: clipSeconds,
		now:         time.Now,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// EnqueueRun creates a queued run record and schedules the full pipeline for
// it. Returns [store.ErrNotReady] while the store is still being established:
// a run that cannot be recorded must not be started.
func (s *Service) EnqueueRun(ctx context.Context, source string) (string, error) {
	st, err := s.gate.Store()
	if err != nil {
		return "", err
	}

	seconds := s.ClipSeconds()
	id := newRunID(s.now())
	if err := st.CreateRun(ctx, id, seconds); err != nil {
		return "", fmt.Errorf("runner: enqueue: %w", err)
	}

	s.enqueue(func(qctx context.Context) {
		s.runner.Execute(qctx, st, id, seconds, source)
	})
	return id, nil
}

// ClipSeconds returns the capture length applied to newly enqueued runs.
func (s *Service) ClipSeconds() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.clipSeconds
}

// SetClipSeconds changes the capture length for future runs. Runs already
// queued keep the duration they were created with.
func (s *Service) SetClipSeconds(seconds int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clipSeconds = seconds
}

// RetryRun schedules an analysis-only retry of an existing run. Returns
// [store.ErrNotFound] for an unknown id and [ErrNoTranscript] when the run
// has nothing to re-analyze.
func (s *Service) RetryRun(ctx context.Context, id string) error {
	st, err := s.gate.Store()
	if err != nil {
		return err
	}

	rec, err := st.GetRun(ctx, id)
	if err != nil {
		return err
	}
	if rec.Transcript == nil || strings.TrimSpace(*rec.Transcript) == "" {
		return ErrNoTranscript
	}

	s.enqueue(func(qctx context.Context) {
		s.runner.Retry(qctx, st, id)
	})
	return nil
}

// QueueDepth returns the number of runs waiting behind the one in flight.
func (s *Service) QueueDepth() int {
	return s.queue.Len()
}

// enqueue tracks the queue-depth gauge around the hand-off. The gauge counts
// waiting runs only: incremented on enqueue, decremented the moment the
// worker picks the task up, so it agrees with [Service.QueueDepth].
func (s *Service) enqueue(task queue.Task) {
	if s.metrics != nil {
		s.metrics.QueueDepth.Add(context.Background(), 1)
	}
	s.queue.Enqueue(func(qctx context.Context) {
		if s.metrics != nil {
			s.metrics.QueueDepth.Add(context.Background(), -1)
		}
		task(qctx)
	})
}

// newRunID builds a sortable time-based run id with a short random suffix,
// e.g. run-20260825T061500Z-1a2b3c4d.
func newRunID(t time.Time) string {
	return "run-" + t.UTC().Format("20060102T150405Z") + "-" + uuid.NewString()[:8]
}
