package openrouter

import (
	"github.com/upb/ai-orchestrator/services/providers"
	"github.com/upb/ai-orchestrator/services/providers/openai"
)

const (
	defaultBaseURL = "https://openrouter.ai/api/v1"
	defaultReferer = "https://github.com/upb/ai-orchestrator"
	defaultTitle   = "AI Orchestrator"
)

// Descriptor returns the static OpenRouter metadata
func Descriptor() providers.Descriptor {
	return providers.Descriptor{
		Identifier:   "openrouter",
		DisplayName:  "OpenRouter",
		Priority:     9,
		DefaultModel: "meta-llama/llama-3.1-8b-instruct",
		Models: map[string]providers.ModelInfo{
			"meta-llama/llama-3.1-8b-instruct": {
				ID:               "meta-llama/llama-3.1-8b-instruct",
				Name:             "Llama 3.1 8B Instruct",
				CostPer1K:        0.00005,
				MaxContextTokens: 131072,
				Hint:             "Cheap routed fallback",
			},
			"openai/gpt-4o-mini": {
				ID:               "openai/gpt-4o-mini",
				Name:             "GPT-4o Mini (routed)",
				CostPer1K:        0.00015,
				MaxContextTokens: 128000,
			},
			"anthropic/claude-3.5-haiku": {
				ID:               "anthropic/claude-3.5-haiku",
				Name:             "Claude 3.5 Haiku (routed)",
				CostPer1K:        0.0008,
				MaxContextTokens: 200000,
			},
		},
	}
}

// NewAdapter creates an OpenRouter adapter. OpenRouter asks clients to
// identify themselves with HTTP-Referer and X-Title.
func NewAdapter(config providers.ProviderConfig) *openai.Adapter {
	headers := make(map[string]string, len(config.Headers)+2)
	headers["HTTP-Referer"] = defaultReferer
	headers["X-Title"] = defaultTitle
	for k, v := range config.Headers {
		headers[k] = v
	}
	config.Headers = headers

	return openai.NewCompatibleAdapter(Descriptor(), config, defaultBaseURL)
}
