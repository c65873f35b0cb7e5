package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// ProviderOverride adjusts one provider from the YAML overrides file.
// Zero values leave the environment setting untouched.
type ProviderOverride struct {
	APIKey   string `yaml:"api_key"`
	Model    string `yaml:"model"`
	BaseURL  string `yaml:"base_url"`
	Priority int    `yaml:"priority"`
	Enabled  *bool  `yaml:"enabled"`
}

type overridesFile struct {
	Providers map[string]ProviderOverride `yaml:"providers"`
}

// LoadProviderOverrides reads a YAML file of the form
//
//	providers:
//	  groq:
//	    priority: 2
//	    model: llama-3.3-70b-versatile
//	  openrouter:
//	    enabled: false
//
// ${VAR} references are expanded from the environment before parsing.
func LoadProviderOverrides(path string) (map[string]ProviderOverride, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read provider overrides: %w", err)
	}

	var file overridesFile
	if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(data))), &file); err != nil {
		return nil, fmt.Errorf("parse provider overrides: %w", err)
	}

	for id := range file.Providers {
		if !knownProvider(id) {
			return nil, fmt.Errorf("provider overrides: unknown provider %q", id)
		}
	}
	return file.Providers, nil
}

// Apply merges overrides into the environment settings
func (p ProvidersConfig) Apply(overrides map[string]ProviderOverride) {
	for id, o := range overrides {
		s := p[id]
		if o.APIKey != "" {
			s.APIKey = o.APIKey
		}
		if o.Model != "" {
			s.Model = o.Model
		}
		if o.BaseURL != "" {
			s.BaseURL = o.BaseURL
		}
		if o.Priority != 0 {
			s.Priority = o.Priority
		}
		if o.Enabled != nil {
			s.Enabled = *o.Enabled
		}
		p[id] = s
	}
}

func knownProvider(id string) bool {
	for _, known := range ProviderIDs {
		if known == id {
			return true
		}
	}
	return false
}
