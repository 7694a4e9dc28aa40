// Package configbuilder assembles an llm.Registry from application configuration.
package configbuilder

import (
	"fmt"

	"github.com/reprolab/reproagent/internal/config"
	"github.com/reprolab/reproagent/internal/llm"
	"github.com/reprolab/reproagent/internal/llm/providers/ollama"
	"github.com/reprolab/reproagent/internal/llm/providers/openai"
)

// Build instantiates providers and model routes for the configured stack.
func Build(cfg *config.Config) (*llm.Registry, error) {
	reg := llm.NewRegistry()

	for name, pc := range cfg.Providers {
		p, err := buildProvider(name, pc)
		if err != nil {
			return nil, err
		}
		reg.RegisterProvider(name, p)
	}

	for name, mc := range cfg.Models {
		reg.RegisterModel(name, llm.ModelRoute{
			Provider:    mc.Provider,
			Model:       mc.Model,
			Temperature: mc.Temperature,
			MaxTokens:   mc.MaxTokens,
		}, mc.Default)

		if mc.Analysis {
			reg.MarkAnalysis(name)
		}
	}

	return reg, nil
}

func buildProvider(name string, pc config.ProviderConfig) (llm.Provider, error) {
	switch pc.Type {
	case "openai", "openrouter", "vllm", "lmstudio", "custom":
		return openai.NewProvider(name, pc.BaseURL, pc.APIKey, pc.Timeout), nil
	case "ollama":
		return ollama.NewProvider(name, pc.BaseURL, pc.Timeout), nil
	default:
		return nil, fmt.Errorf("unknown provider type %q for provider %q", pc.Type, name)
	}
}
