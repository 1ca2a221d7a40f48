// Package analyze implements the run analysis orchestrator: the composition
// of the scramble extractor, the local anagram resolver, and the remote
// decode client into one normalized result.
//
// The orchestrator is pure with respect to storage — it never touches the run
// store — so the run executor can reuse it both for a fresh recording and for
// a manual retry against a stored transcript.
//
// Decode-quality failures never escape Analyze: every remote failure mode
// degrades to the UNKNOWN sentinel (or the local resolver's fallback) plus a
// soft error note. "Nothing to decode" is a normal outcome, not a failure.
package analyze

import (
	"context"
	"fmt"

	"github.com/powerage/scramblecast/internal/decode"
	"github.com/powerage/scramblecast/internal/observe"
	"github.com/powerage/scramblecast/internal/resilience"
	"github.com/powerage/scramblecast/internal/scramble"
)

// Decoder is the remote decode surface the orchestrator depends on.
// *decode.Client satisfies it; tests substitute stubs.
type Decoder interface {
	DecodeSnippet(ctx context.Context, snippet string) (string, error)
	AnalyzeTranscript(ctx context.Context, transcript string) (decode.Analysis, error)
}

// Result is the normalized outcome of one analysis pass.
//
// DecodedSummary and Likely are always single uppercase tokens or the UNKNOWN
// sentinel; Confidence is always in [0, 1]. ErrorNote is empty when the
// analysis fully succeeded (including the "no scramble context" case) and
// otherwise describes the soft degradation in prose.
type Result struct {
	DecodedSummary string
	Likely         string
	Confidence     float64
	ErrorNote      string
	Logs           []string
}

// Analyzer composes the extractor, local resolver, and remote decode client.
type Analyzer struct {
	decoder Decoder
	breaker *resilience.CircuitBreaker
	metrics *observe.Metrics
}

// Option is a functional option for Analyzer.
type Option func(*Analyzer)

// WithBreaker wraps both remote decode calls in the given circuit breaker.
// An open breaker degrades to the local resolver with a soft error note.
func WithBreaker(cb *resilience.CircuitBreaker) Option {
	return func(a *Analyzer) { a.breaker = cb }
}

// WithMetrics counts remote decode degradations on m, per stage.
func WithMetrics(m *observe.Metrics) Option {
	return func(a *Analyzer) { a.metrics = m }
}

// New creates an Analyzer. decoder may be nil, which models "no decode
// credential configured": the local resolver still runs and a soft error
// note replaces the remote calls.
func New(decoder Decoder, opts ...Option) *Analyzer {
	a := &Analyzer{decoder: decoder}
	for _, o := range opts {
		o(a)
	}
	return a
}

// Analyze runs the full analysis pass over transcript and returns the
// normalized result together with the ordered log lines collected along the
// way. It never returns an error: all degradations are folded into
// Result.ErrorNote.
func (a *Analyzer) Analyze(ctx context.Context, transcript string) Result {
	res := Result{
		DecodedSummary: scramble.Unknown,
		Likely:         scramble.Unknown,
	}

	snippet, found := scramble.FindContext(transcript)
	if !found {
		res.log("no scramble context found in transcript; nothing to decode")
		return res
	}
	res.log("scramble context found (%d chars)", len(snippet))

	// Local resolver first: zero latency, zero credential, and a usable
	// fallback if every remote call degrades.
	if letters, ok := scramble.ExtractHyphenLetters(snippet); ok {
		local := scramble.LocalDecode(letters)
		res.log("local resolver: letters %q -> %s", letters, local)
		if local == scramble.Unknown {
			near, dist := scramble.NearestCandidate(letters)
			res.log("local resolver hint: nearest candidate %s (distance %d)", near, dist)
		}
		res.DecodedSummary = local
	} else {
		res.log("no spelled-out letter run of length >= 3 in context")
	}

	if a.decoder == nil {
		res.addNote("scramble context detected but no decode API credential is configured; remote decode skipped")
		res.log("remote decode skipped: credential missing")
		return res.normalized()
	}

	// Remote snippet decode: on success it overwrites the local result, on
	// failure the local fallback stands.
	var word string
	err := a.execute(func() error {
		var derr error
		word, derr = a.decoder.DecodeSnippet(ctx, snippet)
		return derr
	})
	if err != nil {
		res.addNote("snippet decode failed: " + err.Error())
		res.log("remote snippet decode failed: %v", err)
		a.countDecodeError(ctx, "snippet")
	} else {
		res.log("remote snippet decode: %s", word)
		res.DecodedSummary = word
	}

	// Full-transcript analysis: sole authority for the likely reference and
	// confidence. Its own decoded_summary never overrides the snippet path.
	var analysis decode.Analysis
	err = a.execute(func() error {
		var derr error
		analysis, derr = a.decoder.AnalyzeTranscript(ctx, transcript)
		return derr
	})
	if err != nil {
		res.addNote("transcript analysis failed: " + err.Error())
		res.log("remote transcript analysis failed: %v", err)
		a.countDecodeError(ctx, "transcript")
	} else {
		res.log("remote transcript analysis: likely=%s confidence=%.2f",
			analysis.LikelyACDCReference, analysis.Confidence)
		res.Likely = analysis.LikelyACDCReference
		res.Confidence = analysis.Confidence
	}

	return res.normalized()
}

// execute runs fn through the circuit breaker when one is configured.
func (a *Analyzer) execute(fn func() error) error {
	if a.breaker == nil {
		return fn()
	}
	return a.breaker.Execute(fn)
}

// countDecodeError records a soft decode degradation when metrics are wired.
func (a *Analyzer) countDecodeError(ctx context.Context, stage string) {
	if a.metrics != nil {
		a.metrics.RecordDecodeError(ctx, stage)
	}
}

// normalized forces the decoded fields through the single-uppercase-token
// rule and clamps the confidence. Empty tokens collapse to UNKNOWN.
func (r Result) normalized() Result {
	if w := scramble.ToSingleWordUpper(r.DecodedSummary); w != "" {
		r.DecodedSummary = w
	} else {
		r.DecodedSummary = scramble.Unknown
	}
	if w := scramble.ToSingleWordUpper(r.Likely); w != "" {
		r.Likely = w
	} else {
		r.Likely = scramble.Unknown
	}
	r.Confidence = scramble.ClampConfidence(r.Confidence)
	return r
}

// log appends a formatted line to the ordered analysis log.
func (r *Result) log(format string, args ...any) {
	r.Logs = append(r.Logs, fmt.Sprintf(format, args...))
}

// addNote appends to the soft error note, separating entries with "; ".
func (r *Result) addNote(note string) {
	if r.ErrorNote == "" {
		r.ErrorNote = note
		return
	}
	r.ErrorNote += "; " + note
}
