package deepseek

import (
	"github.com/upb/ai-orchestrator/services/providers"
	"github.com/upb/ai-orchestrator/services/providers/openai"
)

const (
	defaultBaseURL = "https://api.deepseek.com/v1"
)

// Descriptor returns the static DeepSeek metadata
func Descriptor() providers.Descriptor {
	return providers.Descriptor{
		Identifier:   "deepseek",
		DisplayName:  "DeepSeek",
		Priority:     2,
		DefaultModel: "deepseek-chat",
		Models: map[string]providers.ModelInfo{
			"deepseek-chat": {
				ID:               "deepseek-chat",
				Name:             "DeepSeek V3",
				CostPer1K:        0.00027,
				MaxContextTokens: 64000,
				Hint:             "Strong general model at low cost",
			},
			"deepseek-reasoner": {
				ID:               "deepseek-reasoner",
				Name:             "DeepSeek R1",
				CostPer1K:        0.00055,
				MaxContextTokens: 64000,
			},
		},
	}
}

// NewAdapter creates a DeepSeek adapter. DeepSeek answers 402 when the
// account balance is exhausted, which maps to QuotaExceeded.
func NewAdapter(config providers.ProviderConfig) *openai.Adapter {
	return openai.NewCompatibleAdapter(Descriptor(), config, defaultBaseURL)
}
