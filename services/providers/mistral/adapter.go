package mistral

import (
	"github.com/upb/ai-orchestrator/services/providers"
	"github.com/upb/ai-orchestrator/services/providers/openai"
)

const (
	defaultBaseURL = "https://api.mistral.ai/v1"
)

// Descriptor returns the static Mistral metadata
func Descriptor() providers.Descriptor {
	return providers.Descriptor{
		Identifier:   "mistral",
		DisplayName:  "Mistral AI",
		Priority:     4,
		DefaultModel: "mistral-small-latest",
		Models: map[string]providers.ModelInfo{
			"mistral-small-latest": {
				ID:               "mistral-small-latest",
				Name:             "Mistral Small",
				CostPer1K:        0.0002,
				MaxContextTokens: 32000,
				Hint:             "Good multilingual quality for the price",
			},
			"mistral-large-latest": {
				ID:               "mistral-large-latest",
				Name:             "Mistral Large",
				CostPer1K:        0.002,
				MaxContextTokens: 128000,
			},
			"open-mistral-nemo": {
				ID:               "open-mistral-nemo",
				Name:             "Mistral Nemo",
				CostPer1K:        0.00015,
				MaxContextTokens: 128000,
			},
		},
	}
}

// NewAdapter creates a Mistral adapter on the OpenAI-compatible endpoint
func NewAdapter(config providers.ProviderConfig) *openai.Adapter {
	return openai.NewCompatibleAdapter(Descriptor(), config, defaultBaseURL)
}
