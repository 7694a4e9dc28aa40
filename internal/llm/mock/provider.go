// Package mock provides a scriptable LLM provider for tests.
package mock

import (
	"context"
	"sync"

	"github.com/reprolab/reproagent/internal/llm"
)

// Provider is a test double whose behavior is a function value.
type Provider struct {
	ProviderName string

	// ChatFn, when set, handles every Chat call. Otherwise Responses
	// are returned in order, repeating the last one when exhausted.
	ChatFn    func(ctx context.Context, req llm.ChatRequest) (llm.ChatResponse, error)
	Responses []llm.ChatResponse

	mu    sync.Mutex
	calls []llm.ChatRequest
}

// Name returns the configured provider name, defaulting to "mock".
func (p *Provider) Name() string {
	if p.ProviderName == "" {
		return "mock"
	}
	return p.ProviderName
}

// Chat records the request and dispatches to ChatFn or the scripted responses.
func (p *Provider) Chat(ctx context.Context, req llm.ChatRequest) (llm.ChatResponse, error) {
	p.mu.Lock()
	p.calls = append(p.calls, req)
	n := len(p.calls)
	p.mu.Unlock()

	if p.ChatFn != nil {
		return p.ChatFn(ctx, req)
	}

	if len(p.Responses) == 0 {
		return llm.ChatResponse{
			Message:      llm.ChatMessage{Role: llm.RoleAssistant, Content: "ok"},
			FinishReason: "stop",
			ProviderName: p.Name(),
			Model:        req.Model,
		}, nil
	}

	idx := n - 1
	if idx >= len(p.Responses) {
		idx = len(p.Responses) - 1
	}
	return p.Responses[idx], nil
}

// Calls returns a copy of all recorded requests.
func (p *Provider) Calls() []llm.ChatRequest {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]llm.ChatRequest, len(p.calls))
	copy(out, p.calls)
	return out
}

// CallCount returns how many Chat calls were made.
func (p *Provider) CallCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.calls)
}
