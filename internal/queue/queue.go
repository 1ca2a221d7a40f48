// Package queue provides the in-process FIFO run queue. A single worker
// goroutine drains it, so at most one task executes at a time and tasks run
// strictly in enqueue order. There is no persistence: queued tasks are lost on
// process exit.
package queue

import (
	"context"
	"log/slog"
	"sync"
)

// Task is one unit of queued work. The context is the queue's lifetime
// context; a task should abandon its work when it is cancelled.
type Task func(ctx context.Context)

// Queue is a FIFO task queue drained by a single worker goroutine.
type Queue struct {
	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	pending []Task
	wake    chan struct{}
	running bool

	wg sync.WaitGroup
}

// New creates a queue and starts its worker goroutine. The worker stops when
// ctx is cancelled or [Queue.Close] is called.
func New(ctx context.Context) *Queue {
	qctx, cancel := context.WithCancel(ctx)
	q := &Queue{
		ctx:    qctx,
		cancel: cancel,
		wake:   make(chan struct{}, 1),
	}
	q.wg.Add(1)
	go q.drain()
	return q
}

// Enqueue appends t to the queue. It never blocks; the task runs once every
// previously enqueued task has finished.
func (q *Queue) Enqueue(t Task) {
	q.mu.Lock()
	q.pending = append(q.pending, t)
	depth := len(q.pending)
	q.mu.Unlock()

	slog.Debug("task enqueued", "queue_depth", depth)

	select {
	case q.wake <- struct{}{}:
	default:
	}
}

// Len returns the number of tasks waiting (not counting one in flight).
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}

// Running reports whether a task is currently executing.
func (q *Queue) Running() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.running
}

// Close stops the worker and waits for an in-flight task to finish. Pending
// tasks that have not started are discarded.
func (q *Queue) Close() {
	q.cancel()
	q.wg.Wait()
}

// drain is the worker loop: pop one task, run it to completion, repeat.
func (q *Queue) drain() {
	defer q.wg.Done()

	for {
		q.mu.Lock()
		var t Task
		if len(q.pending) > 0 {
			t = q.pending[0]
			q.pending = q.pending[1:]
			q.running = true
		}
		q.mu.Unlock()

		if t == nil {
			select {
			case <-q.ctx.Done():
				return
			case <-q.wake:
			}
			continue
		}

		// Check for shutdown between tasks so a long backlog does not delay it.
		select {
		case <-q.ctx.Done():
			q.mu.Lock()
			q.running = false
			q.mu.Unlock()
			return
		default:
		}

		t(q.ctx)

		q.mu.Lock()
		q.running = false
		q.mu.Unlock()
	}
}
