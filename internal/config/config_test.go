package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.Equal(t, 3, cfg.Engine.MaxRecursionDepth)
	assert.Equal(t, 0.7, cfg.Engine.ReasonerTemperature)
	assert.Equal(t, 0.4, cfg.Engine.DecomposeTemperature)
	assert.Equal(t, 2048, cfg.Engine.MaxTokens)
	assert.False(t, cfg.Engine.Parallel)

	assert.Equal(t, "http://localhost:11434/v1", cfg.Oracle.BaseURL)
	assert.Equal(t, Duration(120*time.Second), cfg.Oracle.Timeout)
	assert.Equal(t, 3, cfg.Oracle.Retries)

	assert.Equal(t, 0.5, cfg.Pipeline.PlannerTemperature)
	assert.Equal(t, 0.3, cfg.Pipeline.CriticTemperature)

	require.NoError(t, cfg.Validate())
}

func TestLoad_YAMLOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
oracle:
  model: llama3.1:8b
  timeout: 30s
engine:
  max_recursion_depth: 5
  parallel: true
`), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "llama3.1:8b", cfg.Oracle.Model)
	assert.Equal(t, Duration(30*time.Second), cfg.Oracle.Timeout)
	assert.Equal(t, 5, cfg.Engine.MaxRecursionDepth)
	assert.True(t, cfg.Engine.Parallel)
	// Untouched fields keep defaults.
	assert.Equal(t, 0.7, cfg.Engine.ReasonerTemperature)
}

func TestLoad_EnvOverridesYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("engine:\n  max_recursion_depth: 5\n"), 0644))

	t.Setenv("CASCADE_MAX_DEPTH", "7")
	t.Setenv("CASCADE_MODEL", "from-env")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 7, cfg.Engine.MaxRecursionDepth)
	assert.Equal(t, "from-env", cfg.Oracle.Model)
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, Default().Engine, cfg.Engine)
}

func TestValidate_Rejections(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty model", func(c *Config) { c.Oracle.Model = "" }},
		{"no endpoint", func(c *Config) { c.Oracle.BaseURL = "" }},
		{"negative depth", func(c *Config) { c.Engine.MaxRecursionDepth = -1 }},
		{"negative tokens", func(c *Config) { c.Engine.MaxTokens = -1 }},
		{"wild temperature", func(c *Config) { c.Engine.ReasonerTemperature = 3.5 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestValidate_ZeroDepthAllowed(t *testing.T) {
	cfg := Default()
	cfg.Engine.MaxRecursionDepth = 0
	assert.NoError(t, cfg.Validate())
}

func TestDuration_Parsing(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
oracle:
  timeout: 45s
  breaker_recovery: 10
`), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 45*time.Second, cfg.Oracle.Timeout.Std())
	// Bare integers are seconds.
	assert.Equal(t, 10*time.Second, cfg.Oracle.BreakerRecovery.Std())
}

func TestValidate_OpenRouterWithoutBaseURL(t *testing.T) {
	cfg := Default()
	cfg.Oracle.BaseURL = ""
	cfg.Oracle.OpenRouterAPIKey = "sk-or-test"
	assert.NoError(t, cfg.Validate())
}
