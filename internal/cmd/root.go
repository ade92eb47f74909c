// Package cmd implements the cascade command line interface.
package cmd

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/rand/cascade/internal/config"
	"github.com/rand/cascade/internal/engine"
	"github.com/rand/cascade/internal/oracle"
)

var rootCmd = &cobra.Command{
	Use:   "cascade",
	Short: "Answer questions by recursive decomposition",
	Long: `Cascade answers natural-language questions by recursively breaking
them down. Each question is classified as SIMPLE or COMPLEX; complex
questions are decomposed into sub-questions, resolved depth-first, and
the sub-answers composed into a final answer.

The backend is any OpenAI-compatible endpoint (a local Ollama server by
default) or OpenRouter when OPENROUTER_API_KEY is set.`,
	SilenceUsage: true,
}

// Execute runs the CLI.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringP("config", "c", "", "Path to config file")
	rootCmd.PersistentFlags().Bool("debug", false, "Enable debug logging")
}

// loadConfig resolves the effective configuration for a command and
// installs the default logger.
func loadConfig(cmd *cobra.Command) (config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return cfg, fmt.Errorf("load config: %w", err)
	}

	level := slog.LevelInfo
	if debug, _ := cmd.Flags().GetBool("debug"); debug {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	})))

	return cfg, nil
}

// buildOracle constructs the completion backend with retry and circuit
// breaker wrappers applied.
func buildOracle(cfg config.Config) (oracle.Completer, error) {
	var client *oracle.Client
	var err error
	if cfg.Oracle.OpenRouterAPIKey != "" {
		client, err = oracle.NewOpenRouter(cfg.Oracle.OpenRouterAPIKey, cfg.Oracle.Model)
	} else {
		client, err = oracle.NewOpenAICompatible(cfg.Oracle.BaseURL, cfg.Oracle.APIKey, cfg.Oracle.Model)
	}
	if err != nil {
		return nil, fmt.Errorf("create oracle client: %w", err)
	}

	var completer oracle.Completer = client
	if cfg.Oracle.BreakerThreshold > 0 {
		completer = oracle.NewBreaker(completer, oracle.BreakerConfig{
			FailureThreshold: cfg.Oracle.BreakerThreshold,
			RecoveryTimeout:  cfg.Oracle.BreakerRecovery.Std(),
		})
	}
	completer = oracle.NewRetry(completer, oracle.RetryConfig{
		Attempts: cfg.Oracle.Retries,
	})
	return completer, nil
}

func engineConfig(cfg config.Config) engine.Config {
	return engine.Config{
		MaxDepth:             cfg.Engine.MaxRecursionDepth,
		ReasonerTemperature:  cfg.Engine.ReasonerTemperature,
		DecomposeTemperature: cfg.Engine.DecomposeTemperature,
		MaxTokens:            cfg.Engine.MaxTokens,
		Parallel:             cfg.Engine.Parallel,
		MaxParallel:          cfg.Engine.MaxParallel,
	}
}

// maybePrependStdin prefixes task with piped stdin when present so
// content can be analyzed with an instruction, e.g.
// cat main.go | cascade run "what does this do?".
func maybePrependStdin(task string) (string, error) {
	stat, err := os.Stdin.Stat()
	if err != nil {
		return task, nil
	}
	if stat.Mode()&os.ModeCharDevice != 0 || stat.Size() == 0 {
		return task, nil
	}
	data, err := io.ReadAll(os.Stdin)
	if err != nil {
		return "", err
	}
	piped := strings.TrimSpace(string(data))
	if piped == "" {
		return task, nil
	}
	if task == "" {
		return piped, nil
	}
	return piped + "\n\n" + task, nil
}
