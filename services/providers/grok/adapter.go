package grok

import (
	"github.com/upb/ai-orchestrator/services/providers"
	"github.com/upb/ai-orchestrator/services/providers/openai"
)

const (
	defaultBaseURL = "https://api.x.ai/v1"
)

// Descriptor returns the static xAI Grok metadata
func Descriptor() providers.Descriptor {
	return providers.Descriptor{
		Identifier:   "grok",
		DisplayName:  "xAI Grok",
		Priority:     8,
		DefaultModel: "grok-3-mini",
		Models: map[string]providers.ModelInfo{
			"grok-3-mini": {
				ID:               "grok-3-mini",
				Name:             "Grok 3 Mini",
				CostPer1K:        0.0003,
				MaxContextTokens: 131072,
				Hint:             "Small reasoning model",
			},
			"grok-3": {
				ID:               "grok-3",
				Name:             "Grok 3",
				CostPer1K:        0.003,
				MaxContextTokens: 131072,
			},
		},
	}
}

// NewAdapter creates a Grok adapter on the OpenAI-compatible endpoint
func NewAdapter(config providers.ProviderConfig) *openai.Adapter {
	return openai.NewCompatibleAdapter(Descriptor(), config, defaultBaseURL)
}
