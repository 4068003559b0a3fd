// Package config holds the explicit configuration struct the orchestration
// layer receives at construction. There are no package-level flags or
// globals; callers build a Config (from defaults, a YAML file, or both) and
// pass it in.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Provider names a supported chat-completion backend.
type Provider string

const (
	// ProviderAnthropic calls the Anthropic Messages API directly.
	ProviderAnthropic Provider = "anthropic"
	// ProviderBedrock calls Anthropic models hosted on AWS Bedrock.
	ProviderBedrock Provider = "bedrock"
	// ProviderOpenAI calls the OpenAI chat-completions API.
	ProviderOpenAI Provider = "openai"
	// ProviderMock is the scriptable test model.
	ProviderMock Provider = "mock"
)

// Config is the full configuration of the coaching core.
type Config struct {
	Agent AgentConfig `yaml:"agent"`
	Model ModelConfig `yaml:"model"`
	Log   LogConfig   `yaml:"log"`
}

// AgentConfig tunes the conversational loop.
type AgentConfig struct {
	// MaxIterations bounds the model-call / tool-exec cycle of one run.
	MaxIterations int `yaml:"max_iterations"`
	// FallbackText is returned when a run ends without usable output.
	FallbackText string `yaml:"fallback_text"`
	// MaxHistoryMessages trims conversation history before each model call.
	// Zero disables trimming.
	MaxHistoryMessages int `yaml:"max_history_messages"`
	// ToolTimeout bounds a single tool execution. Zero disables the bound.
	ToolTimeout time.Duration `yaml:"tool_timeout"`
	// Temperature is passed through to the model when non-zero.
	Temperature float64 `yaml:"temperature"`
	// MaxTokens caps each model response.
	MaxTokens int64 `yaml:"max_tokens"`
}

// ModelConfig selects and parameterizes the chat-completion backend.
type ModelConfig struct {
	Provider Provider `yaml:"provider"`
	// ModelID is the provider-specific model identifier.
	ModelID string `yaml:"model_id"`
	// Region is the AWS region for the bedrock provider.
	Region string `yaml:"region"`
}

// LogConfig tunes the slog-backed logger.
type LogConfig struct {
	// Level is one of debug, info, warn, error.
	Level string `yaml:"level"`
	// Format is "text" or "json".
	Format string `yaml:"format"`
	// AddSource includes source locations in log records.
	AddSource bool `yaml:"add_source"`
}

// Default returns a Config with working defaults for every field.
func Default() Config {
	return Config{
		Agent: AgentConfig{
			MaxIterations:      20,
			FallbackText:       "I wasn't able to complete that request. Please try again in a moment.",
			MaxHistoryMessages: 0,
			ToolTimeout:        60 * time.Second,
			Temperature:        0.7,
			MaxTokens:          4096,
		},
		Model: ModelConfig{
			Provider: ProviderAnthropic,
			ModelID:  "claude-sonnet-4-20250514",
			Region:   "us-east-1",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load reads a YAML file over the defaults. Fields absent from the file keep
// their default values.
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config file %q: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate checks the configuration for values the core cannot run with.
func (c Config) Validate() error {
	if c.Agent.MaxIterations <= 0 {
		return fmt.Errorf("agent.max_iterations must be positive, got %d", c.Agent.MaxIterations)
	}
	if c.Agent.MaxTokens <= 0 {
		return fmt.Errorf("agent.max_tokens must be positive, got %d", c.Agent.MaxTokens)
	}
	switch c.Model.Provider {
	case ProviderAnthropic, ProviderBedrock, ProviderOpenAI, ProviderMock:
	default:
		return fmt.Errorf("unknown model provider %q", c.Model.Provider)
	}
	if c.Model.ModelID == "" && c.Model.Provider != ProviderMock {
		return fmt.Errorf("model.model_id is required for provider %q", c.Model.Provider)
	}
	switch c.Log.Level {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("unknown log level %q", c.Log.Level)
	}
	return nil
}
