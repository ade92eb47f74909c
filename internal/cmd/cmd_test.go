package cmd

import (
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rand/cascade/internal/config"
)

func TestRootCommandRegistration(t *testing.T) {
	names := make(map[string]bool)
	for _, sub := range rootCmd.Commands() {
		names[sub.Name()] = true
	}
	assert.True(t, names["run"])
	assert.True(t, names["config"])
	assert.True(t, names["runs"])
}

func TestMaxOracleCalls(t *testing.T) {
	cfg := config.Default()

	cfg.Engine.MaxRecursionDepth = 1
	// Root plus up to five children, three calls each, plus planner
	// and critic.
	assert.Equal(t, 6*3+2, maxOracleCalls(cfg))

	cfg.Engine.MaxRecursionDepth = 2
	assert.Equal(t, 31*3+2, maxOracleCalls(cfg))
}

func TestEngineConfigMapping(t *testing.T) {
	cfg := config.Default()
	cfg.Engine.Parallel = true
	cfg.Engine.MaxParallel = 4

	ec := engineConfig(cfg)
	require.Equal(t, cfg.Engine.MaxRecursionDepth, ec.MaxDepth)
	assert.Equal(t, cfg.Engine.ReasonerTemperature, ec.ReasonerTemperature)
	assert.Equal(t, cfg.Engine.DecomposeTemperature, ec.DecomposeTemperature)
	assert.True(t, ec.Parallel)
	assert.Equal(t, 4, ec.MaxParallel)
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 10))
	assert.Equal(t, "long st...", truncate("long string here", 10))

	cut := truncate("日本語の質問です日本語の質問です", 10)
	assert.True(t, utf8.ValidString(cut))
	assert.Equal(t, "日本語の質問で...", cut)
}
