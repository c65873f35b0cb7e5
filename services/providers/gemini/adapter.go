package gemini

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/upb/ai-orchestrator/services/providers"
	"google.golang.org/genai"
)

const (
	defaultBaseURL = "https://generativelanguage.googleapis.com"
	apiVersion     = "v1beta"
)

// Adapter implements providers.Adapter for Gemini generateContent
type Adapter struct {
	*providers.Base
	client  *genai.Client
	initErr error
}

// Descriptor returns the static Gemini metadata
func Descriptor() providers.Descriptor {
	return providers.Descriptor{
		Identifier:   "gemini",
		DisplayName:  "Google Gemini",
		Priority:     3,
		DefaultModel: "gemini-2.0-flash",
		Models: map[string]providers.ModelInfo{
			"gemini-2.0-flash": {
				ID:               "gemini-2.0-flash",
				Name:             "Gemini 2.0 Flash",
				CostPer1K:        0.0001,
				MaxContextTokens: 1048576,
				Hint:             "Fast, huge context",
			},
			"gemini-2.5-flash": {
				ID:               "gemini-2.5-flash",
				Name:             "Gemini 2.5 Flash",
				CostPer1K:        0.0003,
				MaxContextTokens: 1048576,
			},
			"gemini-2.5-pro": {
				ID:               "gemini-2.5-pro",
				Name:             "Gemini 2.5 Pro",
				CostPer1K:        0.00125,
				MaxContextTokens: 1048576,
				Hint:             "Highest quality Gemini",
			},
		},
	}
}

// NewAdapter creates a Gemini adapter. The SDK client is only built when an
// API key is present.
func NewAdapter(config providers.ProviderConfig) *Adapter {
	base := providers.NewBase(Descriptor(), config, defaultBaseURL)
	adapter := &Adapter{Base: base}
	if !base.IsConfigured() {
		return adapter
	}

	cfg := base.Config()
	headers := make(map[string][]string, len(cfg.Headers))
	for k, v := range cfg.Headers {
		headers[k] = []string{v}
	}

	client, err := genai.NewClient(context.Background(), &genai.ClientConfig{
		APIKey:     cfg.APIKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: base.HTTPClient(),
		HTTPOptions: genai.HTTPOptions{
			BaseURL:    cfg.BaseURL + "/",
			APIVersion: apiVersion,
			Headers:    headers,
		},
	})
	if err != nil {
		adapter.initErr = fmt.Errorf("failed to create gemini client: %w", err)
		return adapter
	}

	adapter.client = client
	return adapter
}

// Complete performs one generateContent call
func (a *Adapter) Complete(ctx context.Context, req providers.CompletionRequest) providers.CompletionResult {
	if !a.IsConfigured() {
		return a.NotConfigured(req)
	}

	model := a.ResolveModel(req)
	if a.client == nil {
		return a.Fail(model, providers.ErrorKindUnknown, a.initErr.Error(), 0)
	}

	config := &genai.GenerateContentConfig{
		Temperature:     genai.Ptr(float32(a.ResolveTemperature(req))),
		MaxOutputTokens: int32(a.ResolveMaxTokens(req)),
	}
	if req.SystemPrompt != "" {
		config.SystemInstruction = genai.NewContentFromText(req.SystemPrompt, genai.RoleUser)
	}

	start := time.Now()
	resp, err := a.client.Models.GenerateContent(ctx, model, genai.Text(req.Prompt), config)
	latency := time.Since(start)
	if err != nil {
		return a.handleError(model, err, latency)
	}

	var inputTokens, outputTokens int
	if resp.UsageMetadata != nil {
		inputTokens = int(resp.UsageMetadata.PromptTokenCount)
		outputTokens = int(resp.UsageMetadata.CandidatesTokenCount)
	}

	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return a.Succeed(model, "", inputTokens, outputTokens, latency, nil)
	}

	candidate := resp.Candidates[0]
	var content strings.Builder
	for _, part := range candidate.Content.Parts {
		if part != nil && part.Text != "" {
			content.WriteString(part.Text)
		}
	}

	metadata := map[string]interface{}{
		"finish_reason": string(candidate.FinishReason),
	}

	return a.Succeed(model, content.String(), inputTokens, outputTokens, latency, metadata)
}

// handleError maps Google API status codes (RESOURCE_EXHAUSTED,
// PERMISSION_DENIED, ...) onto the shared taxonomy
func (a *Adapter) handleError(model string, err error, latency time.Duration) providers.CompletionResult {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return a.fromAPIError(model, apiErr, latency)
	}
	var apiErrPtr *genai.APIError
	if errors.As(err, &apiErrPtr) && apiErrPtr != nil {
		return a.fromAPIError(model, *apiErrPtr, latency)
	}
	return a.FailTransport(model, err, latency)
}

func (a *Adapter) fromAPIError(model string, apiErr genai.APIError, latency time.Duration) providers.CompletionResult {
	text := apiErr.Status + " " + apiErr.Message
	kind := providers.ClassifyError(apiErr.Code, text)
	if apiErr.Code == 400 && strings.Contains(strings.ToLower(apiErr.Message), "api key not valid") {
		kind = providers.ErrorKindInvalidAPIKey
	}
	return a.Fail(model, kind, fmt.Sprintf("%d %s", apiErr.Code, strings.TrimSpace(text)), latency)
}
