package llm_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/reprolab/reproagent/internal/config"
	"github.com/reprolab/reproagent/internal/llm"
	"github.com/reprolab/reproagent/internal/llm/configbuilder"
	llmmock "github.com/reprolab/reproagent/internal/llm/mock"
)

func TestRegistryResolve(t *testing.T) {
	reg := llm.NewRegistry()
	mockProvider := &llmmock.Provider{ProviderName: "mock"}
	reg.RegisterProvider("mock", mockProvider)
	reg.RegisterModel("default", llm.ModelRoute{
		Provider:    "mock",
		Model:       "dummy",
		Temperature: 0.2,
	}, true)

	p, route, err := reg.Resolve("")
	require.NoError(t, err)
	require.Equal(t, mockProvider, p)
	require.Equal(t, "dummy", route.Model)

	_, _, err = reg.Resolve("missing")
	require.ErrorContains(t, err, "not registered")
}

func TestRegistryAnalysisModelFallsBackToDefault(t *testing.T) {
	reg := llm.NewRegistry()
	reg.RegisterProvider("mock", &llmmock.Provider{})
	reg.RegisterModel("main", llm.ModelRoute{Provider: "mock", Model: "a"}, true)
	require.Equal(t, "main", reg.AnalysisModel())

	reg.RegisterModel("vision", llm.ModelRoute{Provider: "mock", Model: "b"}, false)
	reg.MarkAnalysis("vision")
	require.Equal(t, "vision", reg.AnalysisModel())
}

func TestBuildRegistryFromConfig(t *testing.T) {
	cfg := &config.Config{
		Providers: map[string]config.ProviderConfig{
			"openai": {Type: "openai", BaseURL: "http://example.com"},
		},
		Models: map[string]config.ModelConfig{
			"main": {Provider: "openai", Model: "gpt-4o", Default: true},
		},
	}

	reg, err := configbuilder.Build(cfg)
	require.NoError(t, err)

	p, _, err := reg.Resolve("main")
	require.NoError(t, err)
	require.Equal(t, "openai", p.Name())
}
