package providers

import (
	"context"
	"sync"
	"time"
)

// MockAdapter is a scriptable Adapter for tests and local development.
// Queued outcomes are returned in order; the last one repeats.
type MockAdapter struct {
	*Base

	mu       sync.Mutex
	outcomes []mockOutcome
	requests []CompletionRequest
	delay    time.Duration
}

type mockOutcome struct {
	success      bool
	content      string
	kind         ErrorKind
	message      string
	inputTokens  int
	outputTokens int
}

// NewMockAdapter creates a mock adapter. An empty apiKey makes it unconfigured.
func NewMockAdapter(id string, priority int, apiKey string) *MockAdapter {
	desc := Descriptor{
		Identifier:   id,
		DisplayName:  "Mock " + id,
		Priority:     priority,
		DefaultModel: "mock-model",
		Models: map[string]ModelInfo{
			"mock-model": {
				ID:               "mock-model",
				Name:             "Mock Model",
				CostPer1K:        0.001,
				MaxContextTokens: 4096,
			},
		},
	}
	return &MockAdapter{
		Base: NewBase(desc, ProviderConfig{APIKey: apiKey}, "http://mock.invalid"),
	}
}

// QueueSuccess appends a successful outcome
func (m *MockAdapter) QueueSuccess(content string, inputTokens, outputTokens int) *MockAdapter {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.outcomes = append(m.outcomes, mockOutcome{
		success:      true,
		content:      content,
		inputTokens:  inputTokens,
		outputTokens: outputTokens,
	})
	return m
}

// QueueFailure appends a failed outcome
func (m *MockAdapter) QueueFailure(kind ErrorKind, message string) *MockAdapter {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.outcomes = append(m.outcomes, mockOutcome{kind: kind, message: message})
	return m
}

// SetDelay makes every call block for d or until the context ends
func (m *MockAdapter) SetDelay(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.delay = d
}

// Calls returns how many times Complete reached the simulated vendor
func (m *MockAdapter) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.requests)
}

// Requests returns the requests received so far
func (m *MockAdapter) Requests() []CompletionRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]CompletionRequest, len(m.requests))
	copy(out, m.requests)
	return out
}

// Complete returns the next queued outcome
func (m *MockAdapter) Complete(ctx context.Context, req CompletionRequest) CompletionResult {
	if !m.IsConfigured() {
		return m.NotConfigured(req)
	}

	m.mu.Lock()
	m.requests = append(m.requests, req)
	outcome := mockOutcome{success: true, content: "mock response", inputTokens: 10, outputTokens: 5}
	if len(m.outcomes) > 0 {
		outcome = m.outcomes[0]
		if len(m.outcomes) > 1 {
			m.outcomes = m.outcomes[1:]
		}
	}
	delay := m.delay
	m.mu.Unlock()

	model := m.ResolveModel(req)
	start := time.Now()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return m.FailTransport(model, ctx.Err(), time.Since(start))
		}
	}

	if !outcome.success {
		return m.Fail(model, outcome.kind, outcome.message, time.Since(start))
	}
	return m.Succeed(model, outcome.content, outcome.inputTokens, outcome.outputTokens, time.Since(start), nil)
}
