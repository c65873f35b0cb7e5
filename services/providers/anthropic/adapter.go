package anthropic

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/upb/ai-orchestrator/services/providers"
)

const (
	defaultBaseURL = "https://api.anthropic.com"
)

// Adapter implements providers.Adapter for the Anthropic Messages API
type Adapter struct {
	*providers.Base
	client anthropic.Client
}

// Descriptor returns the static Anthropic metadata
func Descriptor() providers.Descriptor {
	return providers.Descriptor{
		Identifier:   "anthropic",
		DisplayName:  "Anthropic Claude",
		Priority:     6,
		DefaultModel: "claude-3-5-haiku-latest",
		Models: map[string]providers.ModelInfo{
			"claude-3-5-haiku-latest": {
				ID:               "claude-3-5-haiku-latest",
				Name:             "Claude 3.5 Haiku",
				CostPer1K:        0.0008,
				MaxContextTokens: 200000,
				Hint:             "Fast and affordable",
			},
			"claude-sonnet-4-20250514": {
				ID:               "claude-sonnet-4-20250514",
				Name:             "Claude Sonnet 4",
				CostPer1K:        0.003,
				MaxContextTokens: 200000,
				Hint:             "Best writing quality",
			},
		},
	}
}

// NewAdapter creates an Anthropic adapter. SDK retries are disabled.
func NewAdapter(config providers.ProviderConfig) *Adapter {
	base := providers.NewBase(Descriptor(), config, defaultBaseURL)
	cfg := base.Config()

	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithBaseURL(cfg.BaseURL + "/"),
		option.WithHTTPClient(base.HTTPClient()),
		option.WithMaxRetries(0),
	}
	for k, v := range cfg.Headers {
		opts = append(opts, option.WithHeader(k, v))
	}

	return &Adapter{
		Base:   base,
		client: anthropic.NewClient(opts...),
	}
}

// Complete performs one Messages API call
func (a *Adapter) Complete(ctx context.Context, req providers.CompletionRequest) providers.CompletionResult {
	if !a.IsConfigured() {
		return a.NotConfigured(req)
	}

	model := a.ResolveModel(req)

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(model),
		MaxTokens: int64(a.ResolveMaxTokens(req)),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(req.Prompt)),
		},
		Temperature: anthropic.Float(a.ResolveTemperature(req)),
	}
	if req.SystemPrompt != "" {
		params.System = []anthropic.TextBlockParam{{Text: req.SystemPrompt}}
	}

	start := time.Now()
	resp, err := a.client.Messages.New(ctx, params)
	latency := time.Since(start)
	if err != nil {
		return a.handleError(model, err, latency)
	}

	var content strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			content.WriteString(block.Text)
		}
	}

	metadata := map[string]interface{}{
		"stop_reason": string(resp.StopReason),
	}
	if resp.ID != "" {
		metadata["response_id"] = resp.ID
	}

	return a.Succeed(model, content.String(), int(resp.Usage.InputTokens), int(resp.Usage.OutputTokens), latency, metadata)
}

// handleError maps Anthropic error types (authentication_error,
// rate_limit_error, overloaded_error, ...) onto the shared taxonomy
func (a *Adapter) handleError(model string, err error, latency time.Duration) providers.CompletionResult {
	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		kind := providers.ClassifyError(apiErr.StatusCode, apiErr.Error())
		return a.Fail(model, kind, apiErr.Error(), latency)
	}
	return a.FailTransport(model, err, latency)
}
