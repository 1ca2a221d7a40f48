// Package runner executes runs: the record → transcribe → analyze pipeline
// for fresh runs and the analysis-only path for manual retries. Runs are
// executed one at a time off the FIFO queue; the runner owns every status
// transition and the per-run log.
//
// Failure semantics follow the stage: capture and transcription failures are
// fatal and mark the run failed, while every analysis degradation is soft —
// the run still completes with the UNKNOWN sentinel and a stored error note.
package runner

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/powerage/scramblecast/internal/analyze"
	"github.com/powerage/scramblecast/internal/observe"
	"github.com/powerage/scramblecast/internal/scramble"
	"github.com/powerage/scramblecast/internal/store"
)

// Recorder captures a clip of the configured stream and returns the path of
// the written audio file.
type Recorder interface {
	Record(ctx context.Context, seconds int) (audioPath string, err error)
}

// Transcriber converts a recorded audio file to text.
type Transcriber interface {
	Transcribe(ctx context.Context, audioPath string) (string, error)
}

// Analyzer runs the scramble analysis pass over a transcript.
// *analyze.Analyzer satisfies it; tests substitute stubs.
type Analyzer interface {
	Analyze(ctx context.Context, transcript string) analyze.Result
}

// Runner drives the pipeline stages and persists their outcome.
type Runner struct {
	recorder    Recorder
	transcriber Transcriber
	analyzer    Analyzer
	metrics     *observe.Metrics
}

// Option is a functional option for Runner.
type Option func(*Runner)

// WithMetrics records stage latencies and run outcomes to m.
func WithMetrics(m *observe.Metrics) Option {
	return func(r *Runner) { r.metrics = m }
}

// NewRunner creates a Runner over the three pipeline stages.
func NewRunner(rec Recorder, tr Transcriber, an Analyzer, opts ...Option) *Runner {
	r := &Runner{recorder: rec, transcriber: tr, analyzer: an}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Execute runs the full pipeline for the run with the given id. The run must
// already exist in st (created by the enqueue path). source is "manual" or
// "scheduled" and only feeds metrics and logs.
func (r *Runner) Execute(ctx context.Context, st store.Store, id string, durationSeconds int, source string) {
	log := slog.With("run_id", id, "source", source)
	rl := newRunLog("")
	rl.Logf("run started (capture %ds, source %s)", durationSeconds, source)

	r.persist(ctx, st, id, store.RunUpdate{
		Status:  store.StatusPtr(store.StatusRunning),
		RunLogs: store.StringPtr(rl.String()),
	})

	// Stage 1: capture. Fatal on failure.
	audioPath, err := r.timed(ctx, "record", func() (string, error) {
		return r.recorder.Record(ctx, durationSeconds)
	})
	if err != nil {
		rl.Logf("capture failed: %v", err)
		log.Error("capture failed", "error", err)
		r.fail(ctx, st, id, source, rl, fmt.Errorf("capture failed: %w", err))
		return
	}
	rl.Logf("captured %ds clip to %s", durationSeconds, audioPath)

	// Stage 2: transcription. Fatal on failure.
	transcript, err := r.timed(ctx, "transcribe", func() (string, error) {
		return r.transcriber.Transcribe(ctx, audioPath)
	})
	if err != nil {
		rl.Logf("transcription failed: %v", err)
		log.Error("transcription failed", "error", err)
		r.fail(ctx, st, id, source, rl, fmt.Errorf("transcription failed: %w", err))
		return
	}
	rl.Logf("transcript ready (%d chars)", len(transcript))

	// The transcript is persisted before analysis so a later retry can reuse
	// it even if the process dies mid-analysis.
	r.persist(ctx, st, id, store.RunUpdate{
		Transcript: store.StringPtr(transcript),
		RunLogs:    store.StringPtr(rl.String()),
	})

	res := r.analyzeStage(ctx, transcript, rl)
	r.finish(ctx, st, id, source, rl, res, false)
	log.Info("run completed",
		"decoded", res.DecodedSummary,
		"likely", res.Likely,
		"confidence", res.Confidence)
}

// Retry re-runs the analysis stage against the stored transcript of an
// earlier run. It never re-captures audio. The caller has already verified
// the run exists and has a transcript; Retry re-checks to stay safe against
// races.
func (r *Runner) Retry(ctx context.Context, st store.Store, id string) {
	log := slog.With("run_id", id, "source", "retry")

	rec, err := st.GetRun(ctx, id)
	if err != nil {
		log.Error("retry lookup failed", "error", err)
		return
	}
	if rec.Transcript == nil || strings.TrimSpace(*rec.Transcript) == "" {
		log.Warn("retry skipped: run has no stored transcript")
		return
	}

	var seed string
	if rec.RunLogs != nil {
		seed = *rec.RunLogs
	}
	rl := newRunLog(seed)
	rl.Logf("retry started (analysis only, using stored transcript)")

	r.persist(ctx, st, id, store.RunUpdate{
		Status:  store.StatusPtr(store.StatusRunning),
		RunLogs: store.StringPtr(rl.String()),
	})

	res := r.analyzeStage(ctx, *rec.Transcript, rl)
	r.finish(ctx, st, id, "retry", rl, res, true)
	log.Info("retry completed",
		"decoded", res.DecodedSummary,
		"likely", res.Likely,
		"confidence", res.Confidence)
}

// analyzeStage runs the analyzer, folds its log lines into the run log, and
// appends the no-reference diagnostic when nothing was identified.
func (r *Runner) analyzeStage(ctx context.Context, transcript string, rl *runLog) analyze.Result {
	start := time.Now()
	res := r.analyzer.Analyze(ctx, transcript)
	if r.metrics != nil {
		r.metrics.RecordStage(ctx, "analyze", time.Since(start))
	}

	rl.Append(res.Logs)
	if res.Likely == scramble.Unknown {
		rl.Logf("analysis finished without a confident song reference; transcript kept for manual retry")
	}
	return res
}

// finish marks the run done with the analysis outcome. Soft analysis notes
// land in the error column without affecting the done status.
func (r *Runner) finish(ctx context.Context, st store.Store, id, source string, rl *runLog, res analyze.Result, retry bool) {
	upd := store.RunUpdate{
		Status:         store.StatusPtr(store.StatusDone),
		DecodedSummary: store.StringPtr(res.DecodedSummary),
		LikelyACDCRef:  store.StringPtr(res.Likely),
		Confidence:     store.Float64Ptr(res.Confidence),
		RunLogs:        store.StringPtr(rl.String()),
	}
	if res.ErrorNote != "" {
		upd.Error = store.StringPtr(res.ErrorNote)
	}
	r.persist(ctx, st, id, upd)

	if r.metrics != nil {
		if retry {
			r.metrics.RecordRetry(ctx, string(store.StatusDone))
		} else {
			r.metrics.RecordRunCompleted(ctx, string(store.StatusDone), source)
		}
	}
}

// fail marks the run failed with the fatal stage error.
func (r *Runner) fail(ctx context.Context, st store.Store, id, source string, rl *runLog, err error) {
	r.persist(ctx, st, id, store.RunUpdate{
		Status:  store.StatusPtr(store.StatusFailed),
		Error:   store.StringPtr(err.Error()),
		RunLogs: store.StringPtr(rl.String()),
	})
	if r.metrics != nil {
		r.metrics.RecordRunCompleted(ctx, string(store.StatusFailed), source)
	}
}

// timed runs stage and records its latency when metrics are configured.
func (r *Runner) timed(ctx context.Context, stage string, fn func() (string, error)) (string, error) {
	start := time.Now()
	out, err := fn()
	if r.metrics != nil {
		r.metrics.RecordStage(ctx, stage, time.Since(start))
	}
	return out, err
}

// persist applies a patch and logs (but does not propagate) store failures:
// a run in flight has nowhere to report a dead store to.
func (r *Runner) persist(ctx context.Context, st store.Store, id string, upd store.RunUpdate) {
	if err := st.UpdateRun(ctx, id, upd); err != nil {
		slog.Error("run update failed", "run_id", id, "error", err)
	}
}
