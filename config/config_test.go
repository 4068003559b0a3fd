package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultValidates(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 20, cfg.Agent.MaxIterations)
	assert.NotEmpty(t, cfg.Agent.FallbackText)
	assert.Equal(t, ProviderAnthropic, cfg.Model.Provider)
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := []byte(`
agent:
  max_iterations: 5
  tool_timeout: 10s
model:
  provider: bedrock
  model_id: anthropic.claude-3-5-sonnet-20241022-v2:0
  region: eu-west-1
log:
  level: debug
  format: json
`)
	require.NoError(t, os.WriteFile(path, content, 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 5, cfg.Agent.MaxIterations)
	assert.Equal(t, 10*time.Second, cfg.Agent.ToolTimeout)
	// Untouched fields keep their defaults.
	assert.Equal(t, int64(4096), cfg.Agent.MaxTokens)
	assert.NotEmpty(t, cfg.Agent.FallbackText)

	assert.Equal(t, ProviderBedrock, cfg.Model.Provider)
	assert.Equal(t, "eu-west-1", cfg.Model.Region)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestValidateRejectsBadValues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Config)
	}{
		{"zero iterations", func(c *Config) { c.Agent.MaxIterations = 0 }},
		{"zero max tokens", func(c *Config) { c.Agent.MaxTokens = 0 }},
		{"unknown provider", func(c *Config) { c.Model.Provider = "palm" }},
		{"missing model id", func(c *Config) { c.Model.ModelID = "" }},
		{"unknown log level", func(c *Config) { c.Log.Level = "verbose" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestValidateMockProviderNeedsNoModelID(t *testing.T) {
	cfg := Default()
	cfg.Model.Provider = ProviderMock
	cfg.Model.ModelID = ""
	assert.NoError(t, cfg.Validate())
}
