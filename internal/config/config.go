package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config describes the top-level application configuration loaded from YAML and ENV.
type Config struct {
	Version   string                    `mapstructure:"version"`
	Providers map[string]ProviderConfig `mapstructure:"providers"`
	Models    map[string]ModelConfig    `mapstructure:"models"`
	Agent     AgentConfig               `mapstructure:"agent"`
	Tools     ToolsConfig               `mapstructure:"tools"`
	Workspace WorkspaceConfig           `mapstructure:"workspace"`
	Logging   LoggingConfig             `mapstructure:"logging"`
	Server    ServerConfig              `mapstructure:"server"`
}

// ProviderConfig represents LLM provider configuration such as OpenAI, Ollama, or custom gateways.
type ProviderConfig struct {
	Type    string        `mapstructure:"type"`     // openai, openrouter, ollama, vllm, lmstudio, custom
	BaseURL string        `mapstructure:"base_url"` // API base URL
	APIKey  string        `mapstructure:"api_key"`  // optional API key
	Timeout time.Duration `mapstructure:"timeout"`  // request timeout
}

// ModelConfig binds a logical model name to a provider entry and model parameters.
type ModelConfig struct {
	Provider    string  `mapstructure:"provider"`
	Model       string  `mapstructure:"model"`
	Temperature float64 `mapstructure:"temperature"`
	MaxTokens   int     `mapstructure:"max_tokens"`
	Default     bool    `mapstructure:"default"`
	Analysis    bool    `mapstructure:"analysis"` // preferred model for artifact content analysis
}

// AgentConfig describes the execution loop policy.
type AgentConfig struct {
	MaxIterations       int  `mapstructure:"max_iterations"`
	StagnationThreshold int  `mapstructure:"stagnation_threshold"`
	MaxTokens           int  `mapstructure:"max_tokens"`
	EnableAnalysis      bool `mapstructure:"enable_analysis"` // LLM analysis of generated artifacts
	MaxResearchSnippets int  `mapstructure:"max_research_snippets"`
	SnippetMaxChars     int  `mapstructure:"snippet_max_chars"`
	ReasonMaxChars      int  `mapstructure:"reason_max_chars"` // search-gate reason cap
}

// ToolsConfig configures tool behaviour.
type ToolsConfig struct {
	AllowExec          bool     `mapstructure:"allow_exec"`
	AllowGit           bool     `mapstructure:"allow_git"`
	AllowFileWrite     bool     `mapstructure:"allow_file_write"`
	ExecTimeoutSeconds int      `mapstructure:"exec_timeout_seconds"`
	AllowedCommands    []string `mapstructure:"allowed_commands"`
	DeniedCommands     []string `mapstructure:"denied_commands"`
	MermaidCommand     string   `mapstructure:"mermaid_command"`
}

// WorkspaceConfig controls where the agent reads and writes task state.
type WorkspaceConfig struct {
	WorkingDir   string   `mapstructure:"working_dir"`
	TodoFile     string   `mapstructure:"todo_file"`
	ReportFile   string   `mapstructure:"report_file"`
	PlanOutFile  string   `mapstructure:"plan_out_file"`
	IgnoreGlobs  []string `mapstructure:"ignore_globs"`
	RecentWindow int      `mapstructure:"recent_window_seconds"` // rescan window for created files
}

// LoggingConfig controls logger behaviour.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`  // debug, info, warn, error
	Format string `mapstructure:"format"` // console or json
}

// ServerConfig describes daemon settings.
type ServerConfig struct {
	Addr           string `mapstructure:"addr"`
	MetricsEnabled bool   `mapstructure:"metrics_enabled"`
	Transport      string `mapstructure:"transport"` // connect or ndjson
}

// Load reads configuration from the provided path or defaults to configs/config.yaml.
// Environment variables override file values (prefix: REPROAGENT_, dots replaced with underscores).
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("REPROAGENT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path == "" {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("configs")
	} else {
		v.SetConfigFile(path)
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) && path == "" {
			v.SetConfigName("config.example")
			if err := v.ReadInConfig(); err != nil {
				return nil, fmt.Errorf("read config: %w", err)
			}
		} else {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// setDefaults populates sensible defaults for optional fields.
func setDefaults(v *viper.Viper) {
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")

	v.SetDefault("agent.max_iterations", 80)
	v.SetDefault("agent.stagnation_threshold", 3)
	v.SetDefault("agent.max_tokens", 4096)
	v.SetDefault("agent.enable_analysis", true)
	v.SetDefault("agent.max_research_snippets", 5)
	v.SetDefault("agent.snippet_max_chars", 3000)
	v.SetDefault("agent.reason_max_chars", 400)

	v.SetDefault("tools.allow_exec", true)
	v.SetDefault("tools.allow_git", true)
	v.SetDefault("tools.allow_file_write", true)
	v.SetDefault("tools.exec_timeout_seconds", 120)
	v.SetDefault("tools.mermaid_command", "mmdc")

	v.SetDefault("workspace.working_dir", "")
	v.SetDefault("workspace.todo_file", "agent_todo_list.json")
	v.SetDefault("workspace.report_file", "agent_report.json")
	v.SetDefault("workspace.plan_out_file", "plan_with_search_requests.json")
	v.SetDefault("workspace.recent_window_seconds", 300)

	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.metrics_enabled", true)
	v.SetDefault("server.transport", "connect")
}

// Validate performs basic sanity checks on configuration values.
func (c *Config) Validate() error {
	if len(c.Providers) == 0 {
		return errors.New("at least one provider must be configured")
	}

	if len(c.Models) == 0 {
		return errors.New("at least one model must be defined")
	}

	for name, p := range c.Providers {
		if p.Type == "" {
			return fmt.Errorf("provider %q must define type", name)
		}
	}

	var defaultFound bool
	for name, m := range c.Models {
		if m.Provider == "" {
			return fmt.Errorf("model %q must reference provider", name)
		}

		if _, ok := c.Providers[m.Provider]; !ok {
			return fmt.Errorf("model %q references unknown provider %q", name, m.Provider)
		}

		if m.Temperature < 0 || m.Temperature > 2 {
			return fmt.Errorf("model %q temperature must be within [0,2]", name)
		}

		if m.MaxTokens < 0 {
			return fmt.Errorf("model %q max_tokens cannot be negative", name)
		}

		if m.Default {
			defaultFound = true
		}
	}

	if !defaultFound {
		return errors.New("at least one model should be marked as default")
	}

	if c.Agent.MaxIterations <= 0 {
		return errors.New("agent.max_iterations must be > 0")
	}
	if c.Agent.StagnationThreshold <= 0 {
		return errors.New("agent.stagnation_threshold must be > 0")
	}
	if c.Agent.MaxResearchSnippets < 0 {
		return errors.New("agent.max_research_snippets must be >= 0")
	}
	if c.Agent.SnippetMaxChars <= 0 {
		return errors.New("agent.snippet_max_chars must be > 0")
	}
	if c.Agent.ReasonMaxChars <= 0 {
		return errors.New("agent.reason_max_chars must be > 0")
	}

	if c.Tools.ExecTimeoutSeconds <= 0 {
		return errors.New("tools.exec_timeout_seconds must be > 0")
	}

	if c.Workspace.TodoFile == "" {
		return errors.New("workspace.todo_file must be set")
	}
	if c.Workspace.ReportFile == "" {
		return errors.New("workspace.report_file must be set")
	}
	if c.Workspace.RecentWindow <= 0 {
		return errors.New("workspace.recent_window_seconds must be > 0")
	}

	switch strings.ToLower(strings.TrimSpace(c.Server.Transport)) {
	case "", "connect", "ndjson":
	default:
		return fmt.Errorf("server.transport must be one of connect or ndjson, got %q", c.Server.Transport)
	}

	return nil
}
