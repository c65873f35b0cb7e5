package groq

import (
	"github.com/upb/ai-orchestrator/services/providers"
	"github.com/upb/ai-orchestrator/services/providers/openai"
)

const (
	defaultBaseURL = "https://api.groq.com/openai/v1"
)

// Descriptor returns the static Groq metadata
func Descriptor() providers.Descriptor {
	return providers.Descriptor{
		Identifier:   "groq",
		DisplayName:  "Groq",
		Priority:     1,
		DefaultModel: "llama-3.1-8b-instant",
		Models: map[string]providers.ModelInfo{
			"llama-3.1-8b-instant": {
				ID:               "llama-3.1-8b-instant",
				Name:             "Llama 3.1 8B Instant",
				CostPer1K:        0.00005,
				MaxContextTokens: 131072,
				Hint:             "Very fast, cheapest option",
			},
			"llama-3.3-70b-versatile": {
				ID:               "llama-3.3-70b-versatile",
				Name:             "Llama 3.3 70B Versatile",
				CostPer1K:        0.00059,
				MaxContextTokens: 131072,
				Hint:             "Better quality, still fast",
			},
			"gemma2-9b-it": {
				ID:               "gemma2-9b-it",
				Name:             "Gemma 2 9B",
				CostPer1K:        0.0002,
				MaxContextTokens: 8192,
			},
		},
	}
}

// NewAdapter creates a Groq adapter on the OpenAI-compatible endpoint
func NewAdapter(config providers.ProviderConfig) *openai.Adapter {
	return openai.NewCompatibleAdapter(Descriptor(), config, defaultBaseURL)
}
