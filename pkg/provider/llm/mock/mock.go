// Package mock provides a scriptable llm.Provider for tests.
package mock

import (
	"context"
	"sync"

	"github.com/powerage/scramblecast/pkg/provider/llm"
)

// Compile-time assertion that Provider implements llm.Provider.
var _ llm.Provider = (*Provider)(nil)

// Response scripts a single Complete call: either Content is returned or Err.
type Response struct {
	Content string
	Err     error
}

// Provider replays a fixed sequence of scripted responses, one per Complete
// call, and records every request it receives. Safe for concurrent use.
//
// When the script is exhausted, Complete keeps returning the final entry.
// An empty script returns an empty response.
type Provider struct {
	mu        sync.Mutex
	Responses []Response
	Requests  []llm.CompletionRequest
	calls     int
}

// Complete implements llm.Provider.
func (p *Provider) Complete(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	p.Requests = append(p.Requests, req)
	if len(p.Responses) == 0 {
		return &llm.CompletionResponse{}, nil
	}

	idx := min(p.calls, len(p.Responses)-1)
	p.calls++

	r := p.Responses[idx]
	if r.Err != nil {
		return nil, r.Err
	}
	return &llm.CompletionResponse{Content: r.Content}, nil
}

// Calls returns how many times Complete has been invoked.
func (p *Provider) Calls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}
