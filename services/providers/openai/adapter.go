package openai

import (
	"context"
	"errors"
	"time"

	openaisdk "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/upb/ai-orchestrator/services/providers"
)

const (
	defaultBaseURL = "https://api.openai.com/v1"
)

// Adapter implements providers.Adapter for OpenAI and for every vendor that
// exposes an OpenAI-compatible /chat/completions endpoint
type Adapter struct {
	*providers.Base
	client openaisdk.Client
}

// Descriptor returns the static OpenAI metadata
func Descriptor() providers.Descriptor {
	return providers.Descriptor{
		Identifier:   "openai",
		DisplayName:  "OpenAI",
		Priority:     5,
		DefaultModel: "gpt-4o-mini",
		Models: map[string]providers.ModelInfo{
			"gpt-4o-mini": {
				ID:               "gpt-4o-mini",
				Name:             "GPT-4o Mini",
				CostPer1K:        0.00015,
				MaxContextTokens: 128000,
				Hint:             "Fast and cheap, good default",
			},
			"gpt-4o": {
				ID:               "gpt-4o",
				Name:             "GPT-4o",
				CostPer1K:        0.0025,
				MaxContextTokens: 128000,
				Hint:             "Highest quality general model",
			},
			"gpt-4.1-mini": {
				ID:               "gpt-4.1-mini",
				Name:             "GPT-4.1 Mini",
				CostPer1K:        0.0004,
				MaxContextTokens: 1047576,
				Hint:             "Long context at low cost",
			},
			"gpt-3.5-turbo": {
				ID:               "gpt-3.5-turbo",
				Name:             "GPT-3.5 Turbo",
				CostPer1K:        0.0005,
				MaxContextTokens: 16385,
				Hint:             "Legacy model",
			},
		},
	}
}

// NewAdapter creates an OpenAI adapter
func NewAdapter(config providers.ProviderConfig) *Adapter {
	return NewCompatibleAdapter(Descriptor(), config, defaultBaseURL)
}

// NewCompatibleAdapter creates an adapter for an OpenAI-compatible vendor.
// SDK retries are disabled so each Complete is exactly one HTTP call.
func NewCompatibleAdapter(desc providers.Descriptor, config providers.ProviderConfig, defaultBaseURL string) *Adapter {
	base := providers.NewBase(desc, config, defaultBaseURL)
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
		client: openaisdk.NewClient(opts...),
	}
}

// Complete performs one chat completion call
func (a *Adapter) Complete(ctx context.Context, req providers.CompletionRequest) providers.CompletionResult {
	if !a.IsConfigured() {
		return a.NotConfigured(req)
	}

	model := a.ResolveModel(req)

	messages := make([]openaisdk.ChatCompletionMessageParamUnion, 0, 2)
	if req.SystemPrompt != "" {
		messages = append(messages, openaisdk.SystemMessage(req.SystemPrompt))
	}
	messages = append(messages, openaisdk.UserMessage(req.Prompt))

	params := openaisdk.ChatCompletionNewParams{
		Model:       openaisdk.ChatModel(model),
		Messages:    messages,
		MaxTokens:   openaisdk.Int(int64(a.ResolveMaxTokens(req))),
		Temperature: openaisdk.Float(a.ResolveTemperature(req)),
	}

	start := time.Now()
	resp, err := a.client.Chat.Completions.New(ctx, params)
	latency := time.Since(start)
	if err != nil {
		return a.handleError(model, err, latency)
	}

	inputTokens := int(resp.Usage.PromptTokens)
	outputTokens := int(resp.Usage.CompletionTokens)

	if len(resp.Choices) == 0 {
		return a.Succeed(model, "", inputTokens, outputTokens, latency, nil)
	}

	choice := resp.Choices[0]
	metadata := map[string]interface{}{
		"finish_reason": string(choice.FinishReason),
	}
	if resp.ID != "" {
		metadata["response_id"] = resp.ID
	}

	return a.Succeed(model, choice.Message.Content, inputTokens, outputTokens, latency, metadata)
}

// handleError maps SDK errors onto the shared taxonomy
func (a *Adapter) handleError(model string, err error, latency time.Duration) providers.CompletionResult {
	var apiErr *openaisdk.Error
	if errors.As(err, &apiErr) {
		kind := providers.ClassifyError(apiErr.StatusCode, apiErr.Error())
		return a.Fail(model, kind, apiErr.Error(), latency)
	}
	return a.FailTransport(model, err, latency)
}
