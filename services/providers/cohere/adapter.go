package cohere

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	cohere "github.com/cohere-ai/cohere-go/v2"
	cohereclient "github.com/cohere-ai/cohere-go/v2/client"
	"github.com/cohere-ai/cohere-go/v2/core"
	"github.com/cohere-ai/cohere-go/v2/option"
	"github.com/upb/ai-orchestrator/services/providers"
)

const (
	defaultBaseURL = "https://api.cohere.com"
)

// Adapter implements providers.Adapter for the Cohere v2 chat API
type Adapter struct {
	*providers.Base
	client *cohereclient.Client
}

// Descriptor returns the static Cohere metadata
func Descriptor() providers.Descriptor {
	return providers.Descriptor{
		Identifier:   "cohere",
		DisplayName:  "Cohere",
		Priority:     7,
		DefaultModel: "command-r",
		Models: map[string]providers.ModelInfo{
			"command-r": {
				ID:               "command-r",
				Name:             "Command R",
				CostPer1K:        0.00015,
				MaxContextTokens: 128000,
				Hint:             "Cheap, good at short copy",
			},
			"command-r-plus": {
				ID:               "command-r-plus",
				Name:             "Command R+",
				CostPer1K:        0.0025,
				MaxContextTokens: 128000,
			},
			"command-a-03-2025": {
				ID:               "command-a-03-2025",
				Name:             "Command A",
				CostPer1K:        0.0025,
				MaxContextTokens: 256000,
			},
		},
	}
}

// NewAdapter creates a Cohere adapter. SDK retries are disabled.
func NewAdapter(config providers.ProviderConfig) *Adapter {
	base := providers.NewBase(Descriptor(), config, defaultBaseURL)
	cfg := base.Config()

	opts := []option.RequestOption{
		option.WithToken(cfg.APIKey),
		option.WithBaseURL(cfg.BaseURL),
		option.WithHTTPClient(base.HTTPClient()),
		option.WithMaxAttempts(1),
	}
	if len(cfg.Headers) > 0 {
		headers := make(http.Header, len(cfg.Headers))
		for k, v := range cfg.Headers {
			headers.Set(k, v)
		}
		opts = append(opts, option.WithHTTPHeader(headers))
	}

	return &Adapter{
		Base:   base,
		client: cohereclient.NewClient(opts...),
	}
}

// Complete performs one chat call
func (a *Adapter) Complete(ctx context.Context, req providers.CompletionRequest) providers.CompletionResult {
	if !a.IsConfigured() {
		return a.NotConfigured(req)
	}

	model := a.ResolveModel(req)
	maxTokens := a.ResolveMaxTokens(req)
	temperature := a.ResolveTemperature(req)

	chatReq := &cohere.V2ChatRequest{
		Model:       model,
		Messages:    make(cohere.ChatMessages, 0, 2),
		MaxTokens:   &maxTokens,
		Temperature: &temperature,
	}
	if req.SystemPrompt != "" {
		chatReq.Messages = append(chatReq.Messages, &cohere.ChatMessageV2{
			Role:   "system",
			System: &cohere.SystemMessage{Content: &cohere.SystemMessageContent{String: req.SystemPrompt}},
		})
	}
	chatReq.Messages = append(chatReq.Messages, &cohere.ChatMessageV2{
		Role: "user",
		User: &cohere.UserMessage{Content: &cohere.UserMessageContent{String: req.Prompt}},
	})

	start := time.Now()
	resp, err := a.client.V2.Chat(ctx, chatReq)
	latency := time.Since(start)
	if err != nil {
		return a.handleError(model, err, latency)
	}

	var content strings.Builder
	if resp.Message != nil {
		for _, item := range resp.Message.Content {
			if item != nil && item.Text != nil {
				content.WriteString(item.Text.Text)
			}
		}
	}

	// billed units are what the account is charged for
	var inputTokens, outputTokens int
	if usage := resp.Usage; usage != nil {
		if billed := usage.BilledUnits; billed != nil {
			inputTokens, outputTokens = count(billed.InputTokens), count(billed.OutputTokens)
		}
		if inputTokens == 0 && outputTokens == 0 && usage.Tokens != nil {
			inputTokens, outputTokens = count(usage.Tokens.InputTokens), count(usage.Tokens.OutputTokens)
		}
	}

	metadata := map[string]interface{}{
		"finish_reason": string(resp.FinishReason),
	}
	if resp.Id != "" {
		metadata["response_id"] = resp.Id
	}

	return a.Succeed(model, content.String(), inputTokens, outputTokens, latency, metadata)
}

// handleError maps SDK API errors onto the shared taxonomy. Cohere answers
// an exhausted trial key with 429, which is a quota problem.
func (a *Adapter) handleError(model string, err error, latency time.Duration) providers.CompletionResult {
	var apiErr *core.APIError
	if !errors.As(err, &apiErr) {
		return a.FailTransport(model, err, latency)
	}

	message := providers.TruncateBody([]byte(apiErr.Error()))
	kind := providers.ClassifyError(apiErr.StatusCode, message)
	if apiErr.StatusCode == http.StatusTooManyRequests && strings.Contains(strings.ToLower(message), "trial key") {
		kind = providers.ErrorKindQuotaExceeded
	}
	return a.Fail(model, kind, message, latency)
}

func count(tokens *float64) int {
	if tokens == nil {
		return 0
	}
	return int(*tokens)
}
