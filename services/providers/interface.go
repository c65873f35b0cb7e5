package providers

import (
	"context"
	"net/http"
	"time"
)

// Adapter represents a uniform text-generation provider
type Adapter interface {
	// Identifier returns the stable machine name (e.g., "openai", "groq")
	Identifier() string

	// DisplayName returns the human-readable provider name
	DisplayName() string

	// Priority returns the ordering weight; lower is tried first
	Priority() int

	// IsConfigured reports whether the adapter has the credentials it needs
	IsConfigured() bool

	// AvailableModels returns the known models keyed by model ID
	AvailableModels() map[string]ModelInfo

	// DefaultModel returns the model used when a request does not name one
	DefaultModel() string

	// EstimateCost returns the cost of a call with the given token counts.
	// It never performs I/O.
	EstimateCost(inputTokens, outputTokens int, model string) float64

	// Complete performs exactly one completion call. Failures are reported
	// through the result, never as a Go error.
	Complete(ctx context.Context, req CompletionRequest) CompletionResult
}

// ErrorKind is the normalized failure category shared by all adapters
type ErrorKind string

const (
	ErrorKindNone              ErrorKind = ""
	ErrorKindNoAPIKey          ErrorKind = "no_api_key"
	ErrorKindInvalidAPIKey     ErrorKind = "invalid_api_key"
	ErrorKindRateLimitExceeded ErrorKind = "rate_limit_exceeded"
	ErrorKindQuotaExceeded     ErrorKind = "quota_exceeded"
	ErrorKindServerError       ErrorKind = "server_error"
	ErrorKindInvalidRequest    ErrorKind = "invalid_request"
	ErrorKindEmptyResponse     ErrorKind = "empty_response"
	ErrorKindUnknown           ErrorKind = "unknown"
)

// CompletionRequest represents a single completion call
type CompletionRequest struct {
	// Prompt is the user text
	Prompt string `json:"prompt" validate:"required"`

	// SystemPrompt is optional instruction text
	SystemPrompt string `json:"system_prompt,omitempty"`

	// Model overrides the adapter's default model
	Model string `json:"model,omitempty"`

	// Temperature overrides the configured sampling temperature
	Temperature *float64 `json:"temperature,omitempty" validate:"omitempty,gte=0,lte=2"`

	// MaxTokens overrides the configured output token limit
	MaxTokens int `json:"max_tokens,omitempty" validate:"omitempty,gt=0"`

	// Options carries provider-specific values
	Options map[string]interface{} `json:"options,omitempty"`
}

// CompletionResult is the outcome of one completion call
type CompletionResult struct {
	Success bool `json:"success"`

	// Content is the generated text on success
	Content string `json:"content,omitempty"`

	Provider     string `json:"provider,omitempty"`
	Model        string `json:"model,omitempty"`
	InputTokens  int    `json:"input_tokens"`
	OutputTokens int    `json:"output_tokens"`

	// Cost in USD computed from the model rate
	Cost float64 `json:"cost"`

	// Latency is the wall-clock duration of the call
	Latency time.Duration `json:"latency"`

	Metadata map[string]interface{} `json:"metadata,omitempty"`

	// Error is a human-readable message on failure
	Error     string    `json:"error,omitempty"`
	ErrorKind ErrorKind `json:"error_kind,omitempty"`

	// Attempts is filled by the orchestrator, one entry per adapter call
	Attempts []Attempt `json:"attempts,omitempty"`
}

// TotalTokens returns input plus output tokens
func (r CompletionResult) TotalTokens() int {
	return r.InputTokens + r.OutputTokens
}

// LatencyMs returns the latency in milliseconds
func (r CompletionResult) LatencyMs() int64 {
	return r.Latency.Milliseconds()
}

// Attempt records one adapter call made during an orchestrated completion
type Attempt struct {
	Provider  string        `json:"provider"`
	Model     string        `json:"model,omitempty"`
	Success   bool          `json:"success"`
	ErrorKind ErrorKind     `json:"error_kind,omitempty"`
	Tokens    int           `json:"tokens"`
	Cost      float64       `json:"cost"`
	Latency   time.Duration `json:"latency"`
}

// ModelInfo contains metadata about a model
type ModelInfo struct {
	// ID is the model identifier
	ID string `json:"id"`

	// Name is the human-readable name
	Name string `json:"name"`

	// CostPer1K is the USD price per 1000 tokens
	CostPer1K float64 `json:"cost_per_1k"`

	// MaxContextTokens is the context window size
	MaxContextTokens int `json:"max_context_tokens"`

	// Hint describes what the model is good for
	Hint string `json:"hint,omitempty"`
}

// Descriptor is the static metadata of an adapter
type Descriptor struct {
	Identifier   string
	DisplayName  string
	Priority     int
	DefaultModel string
	Models       map[string]ModelInfo
}

// ProviderConfig holds common configuration for adapters
type ProviderConfig struct {
	// APIKey for authentication
	APIKey string

	// Model overrides the descriptor default model
	Model string

	// BaseURL for the API (optional override)
	BaseURL string

	// Priority overrides the descriptor priority when non-zero
	Priority int

	// Timeout for a single request
	Timeout time.Duration

	// MaxTokens is the default output token limit
	MaxTokens int

	// Temperature is the default sampling temperature
	Temperature float64

	// Additional headers
	Headers map[string]string

	// HTTPClient replaces the default client (tests, proxies)
	HTTPClient *http.Client
}
