package providers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

const (
	// DefaultTimeout bounds a single vendor call
	DefaultTimeout = 8 * time.Second

	// DefaultMaxTokens is used when neither request nor config sets a limit
	DefaultMaxTokens = 1000

	// maxErrorBody caps how much of a vendor error body ends up in messages
	maxErrorBody = 512
)

// Base carries the descriptor, configuration and HTTP client shared by every
// adapter. Vendor adapters embed it and implement Complete.
type Base struct {
	desc       Descriptor
	config     ProviderConfig
	httpClient *http.Client
}

// NewBase applies config overrides to the descriptor and fills defaults
func NewBase(desc Descriptor, config ProviderConfig, defaultBaseURL string) *Base {
	if config.BaseURL == "" {
		config.BaseURL = defaultBaseURL
	}
	config.BaseURL = strings.TrimRight(config.BaseURL, "/")

	if config.Timeout <= 0 {
		config.Timeout = DefaultTimeout
	}
	if config.MaxTokens <= 0 {
		config.MaxTokens = DefaultMaxTokens
	}

	if config.Priority != 0 {
		desc.Priority = config.Priority
	}
	if config.Model != "" {
		desc.DefaultModel = config.Model
	}

	client := config.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: config.Timeout}
	}

	return &Base{
		desc:       desc,
		config:     config,
		httpClient: client,
	}
}

// Identifier returns the provider identifier
func (b *Base) Identifier() string {
	return b.desc.Identifier
}

// DisplayName returns the provider display name
func (b *Base) DisplayName() string {
	return b.desc.DisplayName
}

// Priority returns the effective priority
func (b *Base) Priority() int {
	return b.desc.Priority
}

// IsConfigured reports whether an API key is set
func (b *Base) IsConfigured() bool {
	return strings.TrimSpace(b.config.APIKey) != ""
}

// AvailableModels returns a copy of the model table
func (b *Base) AvailableModels() map[string]ModelInfo {
	models := make(map[string]ModelInfo, len(b.desc.Models))
	for id, info := range b.desc.Models {
		models[id] = info
	}
	return models
}

// DefaultModel returns the effective default model
func (b *Base) DefaultModel() string {
	return b.desc.DefaultModel
}

// EstimateCost prices tokens at the model's per-1000 rate. Unknown models
// fall back to the default model's rate.
func (b *Base) EstimateCost(inputTokens, outputTokens int, model string) float64 {
	info, ok := b.desc.Models[model]
	if !ok {
		info, ok = b.desc.Models[b.desc.DefaultModel]
		if !ok {
			return 0
		}
	}
	return float64(inputTokens+outputTokens) / 1000 * info.CostPer1K
}

// Config returns the effective configuration
func (b *Base) Config() ProviderConfig {
	return b.config
}

// HTTPClient returns the client used for vendor calls
func (b *Base) HTTPClient() *http.Client {
	return b.httpClient
}

// ResolveModel picks the request model when this provider serves it and
// the default otherwise
func (b *Base) ResolveModel(req CompletionRequest) string {
	if req.Model == "" || req.Model == b.desc.DefaultModel {
		return b.desc.DefaultModel
	}
	if _, ok := b.desc.Models[req.Model]; ok {
		return req.Model
	}
	return b.desc.DefaultModel
}

// ResolveMaxTokens picks the request limit or the configured default
func (b *Base) ResolveMaxTokens(req CompletionRequest) int {
	if req.MaxTokens > 0 {
		return req.MaxTokens
	}
	return b.config.MaxTokens
}

// ResolveTemperature picks the request temperature or the configured default
func (b *Base) ResolveTemperature(req CompletionRequest) float64 {
	if req.Temperature != nil {
		return *req.Temperature
	}
	return b.config.Temperature
}

// NotConfigured is the result returned without any network call when the
// API key is missing
func (b *Base) NotConfigured(req CompletionRequest) CompletionResult {
	return CompletionResult{
		Success:   false,
		Provider:  b.desc.Identifier,
		Model:     b.ResolveModel(req),
		Error:     fmt.Sprintf("%s API key is not configured", b.desc.DisplayName),
		ErrorKind: ErrorKindNoAPIKey,
	}
}

// Succeed builds a success result. Blank content becomes an EmptyResponse
// failure that still carries the consumed tokens.
func (b *Base) Succeed(model, content string, inputTokens, outputTokens int, latency time.Duration, metadata map[string]interface{}) CompletionResult {
	result := CompletionResult{
		Provider:     b.desc.Identifier,
		Model:        model,
		InputTokens:  inputTokens,
		OutputTokens: outputTokens,
		Cost:         b.EstimateCost(inputTokens, outputTokens, model),
		Latency:      latency,
		Metadata:     metadata,
	}

	if strings.TrimSpace(content) == "" {
		result.ErrorKind = ErrorKindEmptyResponse
		result.Error = fmt.Sprintf("%s returned no content", b.desc.DisplayName)
		return result
	}

	result.Success = true
	result.Content = content
	return result
}

// Fail builds a failure result
func (b *Base) Fail(model string, kind ErrorKind, message string, latency time.Duration) CompletionResult {
	if kind == ErrorKindNone {
		kind = ErrorKindUnknown
	}
	return CompletionResult{
		Success:   false,
		Provider:  b.desc.Identifier,
		Model:     model,
		Latency:   latency,
		Error:     fmt.Sprintf("%s: %s", b.desc.DisplayName, message),
		ErrorKind: kind,
	}
}

// FailTransport builds a failure for errors that produced no HTTP status
func (b *Base) FailTransport(model string, err error, latency time.Duration) CompletionResult {
	message := err.Error()
	if errors.Is(err, context.DeadlineExceeded) {
		message = "request timed out"
	} else if errors.Is(err, context.Canceled) {
		message = "request canceled"
	}
	return b.Fail(model, ErrorKindUnknown, message, latency)
}

// quotaMarkers identify billing exhaustion regardless of the status code
var quotaMarkers = []string{
	"insufficient_quota",
	"exceeded your current quota",
	"credit balance",
	"insufficient balance",
	"billing",
	"payment required",
}

// vendorCodes maps vendor error type strings onto the shared taxonomy
var vendorCodes = []struct {
	code string
	kind ErrorKind
}{
	{"authentication_error", ErrorKindInvalidAPIKey},
	{"permission_error", ErrorKindInvalidAPIKey},
	{"invalid_api_key", ErrorKindInvalidAPIKey},
	{"api_key_invalid", ErrorKindInvalidAPIKey},
	{"rate_limit_error", ErrorKindRateLimitExceeded},
	{"rate_limit_exceeded", ErrorKindRateLimitExceeded},
	{"overloaded_error", ErrorKindServerError},
	{"invalid_request_error", ErrorKindInvalidRequest},
	{"not_found_error", ErrorKindInvalidRequest},
	{"request_too_large", ErrorKindInvalidRequest},
}

// ClassifyError maps an HTTP status and the vendor error text onto the shared
// taxonomy. Quota markers win over vendor codes, which win over the status.
func ClassifyError(status int, text string) ErrorKind {
	lower := strings.ToLower(text)

	if status == http.StatusPaymentRequired {
		return ErrorKindQuotaExceeded
	}
	if status >= 400 {
		for _, marker := range quotaMarkers {
			if strings.Contains(lower, marker) {
				return ErrorKindQuotaExceeded
			}
		}
	}

	for _, vc := range vendorCodes {
		if strings.Contains(lower, vc.code) {
			return vc.kind
		}
	}

	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return ErrorKindInvalidAPIKey
	case status == http.StatusTooManyRequests:
		return ErrorKindRateLimitExceeded
	case status >= 500:
		return ErrorKindServerError
	case status >= 400:
		return ErrorKindInvalidRequest
	}
	return ErrorKindUnknown
}

// TruncateBody shortens a vendor body for use in error messages
func TruncateBody(body []byte) string {
	text := strings.TrimSpace(string(body))
	if len(text) > maxErrorBody {
		return text[:maxErrorBody] + "..."
	}
	return text
}
