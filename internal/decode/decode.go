// Package decode implements the remote decode client: two narrowly scoped
// chat-completion calls that turn a scramble snippet (or a whole transcript)
// into decoded contest fields.
//
// Decode failures are classified into three distinguishable conditions so the
// analysis orchestrator can degrade each one independently to a soft error
// note instead of aborting the run:
//
//   - request failure (network error or non-success HTTP status),
//   - empty content (the model returned nothing usable),
//   - malformed JSON (the transcript analysis did not parse).
package decode

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/powerage/scramblecast/internal/scramble"
	"github.com/powerage/scramblecast/pkg/provider/llm"
)

// ErrEmptyContent indicates the completion succeeded but carried no usable
// text. Distinct from a request failure so callers can log the difference.
var ErrEmptyContent = errors.New("decode: completion returned empty content")

// ErrMalformedJSON indicates the transcript analysis response could not be
// parsed as the expected JSON object.
var ErrMalformedJSON = errors.New("decode: malformed JSON in completion")

const (
	// snippetSystemPrompt scopes the model to the one job the snippet call
	// has: produce the decoded keyword and nothing else.
	snippetSystemPrompt = "You decode scrambled radio contest keywords. " +
		"Reply with exactly one uppercase word: the decoded keyword. " +
		"No punctuation, no explanation."

	// transcriptSystemPrompt requests the strict JSON shape of the
	// full-transcript analysis.
	transcriptSystemPrompt = "You analyze radio transcripts for a scrambled-word contest. " +
		"Reply with strict JSON only, using exactly these keys: " +
		`{"decoded_summary": "<ONE UPPERCASE WORD>", ` +
		`"likely_acdc_reference": "<ONE UPPERCASE WORD>", ` +
		`"confidence_0_to_1": <number between 0 and 1>}. ` +
		"Use UNKNOWN when you have no confident answer."

	// defaultMaxTokens bounds both completions; the expected answers are a
	// single word or a three-key JSON object.
	defaultMaxTokens = 120
)

// Analysis is the structured result of the full-transcript call.
type Analysis struct {
	DecodedSummary      string  `json:"decoded_summary"`
	LikelyACDCReference string  `json:"likely_acdc_reference"`
	Confidence          float64 `json:"confidence_0_to_1"`
}

// Client performs the two remote decode calls against an llm.Provider.
type Client struct {
	provider  llm.Provider
	maxTokens int
}

// Option is a functional option for Client.
type Option func(*Client)

// WithMaxTokens overrides the completion token cap. Defaults to 120.
func WithMaxTokens(n int) Option {
	return func(c *Client) {
		if n > 0 {
			c.maxTokens = n
		}
	}
}

// NewClient creates a Client on top of the given provider.
func NewClient(provider llm.Provider, opts ...Option) (*Client, error) {
	if provider == nil {
		return nil, errors.New("decode: provider must not be nil")
	}
	c := &Client{provider: provider, maxTokens: defaultMaxTokens}
	for _, o := range opts {
		o(c)
	}
	return c, nil
}

// DecodeSnippet asks the model to decode the scrambled keyword inside
// snippet. The reply is reduced to its first whitespace-delimited token with
// non-alphanumeric characters stripped, uppercased.
//
// Returns a wrapped transport/HTTP error when the completion call fails, or
// [ErrEmptyContent] when the model produced no usable token.
func (c *Client) DecodeSnippet(ctx context.Context, snippet string) (string, error) {
	resp, err := c.provider.Complete(ctx, llm.CompletionRequest{
		SystemPrompt: snippetSystemPrompt,
		Messages: []llm.Message{{
			Role:    "user",
			Content: "Transcript snippet:\n" + snippet,
		}},
		MaxTokens: c.maxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("decode: snippet completion: %w", err)
	}

	word := scramble.ToSingleWordUpper(resp.Content)
	if word == "" {
		return "", ErrEmptyContent
	}
	return word, nil
}

// AnalyzeTranscript asks the model for the structured contest analysis of the
// whole transcript. The decoded fields in the result are normalised to the
// single-uppercase-token rule and the confidence is clamped to [0, 1];
// missing fields come back as the UNKNOWN sentinel.
//
// Returns a wrapped transport/HTTP error when the completion call fails,
// [ErrEmptyContent] when the reply is empty, or [ErrMalformedJSON] when the
// reply does not parse.
func (c *Client) AnalyzeTranscript(ctx context.Context, transcript string) (Analysis, error) {
	resp, err := c.provider.Complete(ctx, llm.CompletionRequest{
		SystemPrompt: transcriptSystemPrompt,
		Messages: []llm.Message{{
			Role:    "user",
			Content: "Transcript:\n" + transcript,
		}},
		MaxTokens: c.maxTokens,
	})
	if err != nil {
		return Analysis{}, fmt.Errorf("decode: transcript completion: %w", err)
	}

	body := strings.TrimSpace(resp.Content)
	if body == "" {
		return Analysis{}, ErrEmptyContent
	}

	var a Analysis
	if err := json.Unmarshal([]byte(extractJSONObject(body)), &a); err != nil {
		return Analysis{}, fmt.Errorf("%w: %v", ErrMalformedJSON, err)
	}

	a.DecodedSummary = normalizeToken(a.DecodedSummary)
	a.LikelyACDCReference = normalizeToken(a.LikelyACDCReference)
	a.Confidence = scramble.ClampConfidence(a.Confidence)
	return a, nil
}

// normalizeToken applies the single-uppercase-token rule, mapping an empty
// result to the UNKNOWN sentinel.
func normalizeToken(s string) string {
	word := scramble.ToSingleWordUpper(s)
	if word == "" {
		return scramble.Unknown
	}
	return word
}

// extractJSONObject trims any prose or markdown fencing the model wrapped
// around the JSON object by slicing from the first '{' to the last '}'.
// When no braces are present the input is returned unchanged and left to the
// JSON decoder to reject.
func extractJSONObject(s string) string {
	start := strings.IndexByte(s, '{')
	end := strings.LastIndexByte(s, '}')
	if start < 0 || end <= start {
		return s
	}
	return s[start : end+1]
}
