// Package observe provides application-wide observability primitives for
// Scramblecast: OpenTelemetry metrics, distributed tracing, structured
// logging, and HTTP middleware that ties them together.
//
// Metrics are recorded through the OpenTelemetry Metrics API. A Prometheus
// exporter bridge is available via [InitProvider] so that metrics can still be
// scraped via the standard /metrics endpoint. A package-level default
// [Metrics] instance ([DefaultMetrics]) is provided for convenience; tests
// should use [NewMetrics] with a custom [metric.MeterProvider] to avoid
// cross-test pollution.
package observe

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name used for all Scramblecast
// metrics.
const meterName = "github.com/powerage/scramblecast"

// Metrics holds all OpenTelemetry metric instruments for the application.
// All fields are safe for concurrent use — the underlying OTel types handle
// their own synchronisation.
type Metrics struct {
	// --- Latency histograms per pipeline stage ---

	// RecordDuration tracks stream capture latency.
	RecordDuration metric.Float64Histogram

	// TranscribeDuration tracks speech-to-text transcription latency.
	TranscribeDuration metric.Float64Histogram

	// AnalyzeDuration tracks the full analysis pass (local resolver plus
	// remote decode calls).
	AnalyzeDuration metric.Float64Histogram

	// --- Counters ---

	// RunsCompleted counts finished runs. Use with attributes:
	//   attribute.String("status", ...), attribute.String("source", ...)
	RunsCompleted metric.Int64Counter

	// Retries counts manual retry requests by outcome status.
	Retries metric.Int64Counter

	// --- Error counters ---

	// DecodeErrors counts soft remote-decode degradations. Use with
	// attribute: attribute.String("stage", "snippet"|"transcript").
	DecodeErrors metric.Int64Counter

	// --- Gauges ---

	// QueueDepth tracks the number of runs waiting in the FIFO queue.
	QueueDepth metric.Int64UpDownCounter

	// --- HTTP middleware ---

	// HTTPRequestDuration tracks HTTP request processing time. Use with attributes:
	//   attribute.String("method", ...), attribute.String("path", ...)
	HTTPRequestDuration metric.Float64Histogram
}

// latencyBuckets defines histogram bucket boundaries (in seconds). The
// pipeline stages span three orders of magnitude: analysis completes in
// milliseconds while a capture runs for the full configured clip length.
var latencyBuckets = []float64{
	0.01, 0.05, 0.25, 1, 2.5, 5, 10, 30, 60, 120,
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	// Histograms.
	if met.RecordDuration, err = m.Float64Histogram("scramblecast.record.duration",
		metric.WithDescription("Latency of stream capture."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.TranscribeDuration, err = m.Float64Histogram("scramblecast.transcribe.duration",
		metric.WithDescription("Latency of speech-to-text transcription."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.AnalyzeDuration, err = m.Float64Histogram("scramblecast.analyze.duration",
		metric.WithDescription("Latency of the analysis pass."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}

	// Counters.
	if met.RunsCompleted, err = m.Int64Counter("scramblecast.runs.completed",
		metric.WithDescription("Total finished runs by status and source."),
	); err != nil {
		return nil, err
	}
	if met.Retries, err = m.Int64Counter("scramblecast.runs.retries",
		metric.WithDescription("Total manual retry requests by outcome status."),
	); err != nil {
		return nil, err
	}

	// Error counters.
	if met.DecodeErrors, err = m.Int64Counter("scramblecast.decode.errors",
		metric.WithDescription("Total soft remote-decode degradations by stage."),
	); err != nil {
		return nil, err
	}

	// Gauges (UpDownCounters).
	if met.QueueDepth, err = m.Int64UpDownCounter("scramblecast.queue.depth",
		metric.WithDescription("Number of runs waiting in the FIFO queue."),
	); err != nil {
		return nil, err
	}

	// HTTP middleware histogram.
	if met.HTTPRequestDuration, err = m.Float64Histogram("scramblecast.http.request.duration",
		metric.WithDescription("HTTP request latency by method and path."),
		metric.WithUnit("s"),
	); err != nil {
		return nil, err
	}

	return met, nil
}

// defaultMetrics is the lazily-initialised package-level Metrics instance.
var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
)

// DefaultMetrics returns the package-level [Metrics] instance, creating it on
// first call using [otel.GetMeterProvider]. Subsequent calls return the same
// pointer. Panics if instrument creation fails (should not happen with the
// global provider).
func DefaultMetrics() *Metrics {
	defaultMetricsOnce.Do(func() {
		var err error
		defaultMetrics, err = NewMetrics(otel.GetMeterProvider())
		if err != nil {
			panic("observe: failed to create default metrics: " + err.Error())
		}
	})
	return defaultMetrics
}

// Attr is a convenience alias for [attribute.String] to reduce verbosity at
// call sites.
func Attr(key, value string) attribute.KeyValue {
	return attribute.String(key, value)
}

// RecordStage records one pipeline-stage latency sample to the matching
// histogram. Unknown stages are dropped.
func (m *Metrics) RecordStage(ctx context.Context, stage string, d time.Duration) {
	var h metric.Float64Histogram
	switch stage {
	case "record":
		h = m.RecordDuration
	case "transcribe":
		h = m.TranscribeDuration
	case "analyze":
		h = m.AnalyzeDuration
	default:
		return
	}
	h.Record(ctx, d.Seconds())
}

// RecordRunCompleted records a finished run with the standard attribute set.
func (m *Metrics) RecordRunCompleted(ctx context.Context, status, source string) {
	m.RunsCompleted.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("status", status),
			attribute.String("source", source),
		),
	)
}

// RecordRetry records a manual retry request by its outcome status.
func (m *Metrics) RecordRetry(ctx context.Context, status string) {
	m.Retries.Add(ctx, 1,
		metric.WithAttributes(attribute.String("status", status)),
	)
}

// RecordDecodeError records a soft remote-decode degradation for the given
// stage ("snippet" or "transcript").
func (m *Metrics) RecordDecodeError(ctx context.Context, stage string) {
	m.DecodeErrors.Add(ctx, 1,
		metric.WithAttributes(attribute.String("stage", stage)),
	)
}
