// Package config loads runtime configuration from defaults, an
// optional YAML file, and environment variables, in that order of
// precedence (later sources win).
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Duration is a time.Duration that unmarshals from strings like "30s"
// in YAML and JSON.
type Duration time.Duration

func (d Duration) Std() time.Duration { return time.Duration(d) }

func (d Duration) String() string { return time.Duration(d).String() }

func (d Duration) MarshalJSON() ([]byte, error) {
	return []byte(`"` + d.String() + `"`), nil
}

func (d *Duration) UnmarshalJSON(data []byte) error {
	return d.parse(string(data))
}

func (d Duration) MarshalYAML() (any, error) {
	return d.String(), nil
}

func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	return d.parse(node.Value)
}

func (d *Duration) parse(raw string) error {
	raw = strings.Trim(strings.TrimSpace(raw), `"`)
	if raw == "" {
		*d = 0
		return nil
	}
	if n, err := strconv.ParseInt(raw, 10, 64); err == nil {
		*d = Duration(time.Duration(n) * time.Second)
		return nil
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("parse duration %q: %w", raw, err)
	}
	*d = Duration(parsed)
	return nil
}

// OracleConfig describes the model backend.
type OracleConfig struct {
	// BaseURL is the OpenAI-compatible endpoint. Ignored when an
	// OpenRouter API key is set.
	BaseURL string `json:"base_url" yaml:"base_url"`

	// Model is the model identifier to request.
	Model string `json:"model" yaml:"model"`

	// APIKey authenticates against the backend. Local endpoints
	// usually accept any value.
	APIKey string `json:"-" yaml:"api_key"`

	// OpenRouterAPIKey selects the OpenRouter backend when non-empty.
	OpenRouterAPIKey string `json:"-" yaml:"openrouter_api_key"`

	// Timeout bounds a single completion call.
	Timeout Duration `json:"timeout" yaml:"timeout"`

	// Retries is the total attempts per completion.
	Retries int `json:"retries" yaml:"retries"`

	// BreakerThreshold is consecutive failures before the circuit
	// breaker opens. Zero disables the breaker.
	BreakerThreshold int `json:"breaker_threshold" yaml:"breaker_threshold"`

	// BreakerRecovery is how long the breaker stays open.
	BreakerRecovery Duration `json:"breaker_recovery" yaml:"breaker_recovery"`
}

// EngineConfig controls recursive resolution.
type EngineConfig struct {
	MaxRecursionDepth    int     `json:"max_recursion_depth" yaml:"max_recursion_depth"`
	ReasonerTemperature  float64 `json:"reasoner_temperature" yaml:"reasoner_temperature"`
	DecomposeTemperature float64 `json:"decompose_temperature" yaml:"decompose_temperature"`
	MaxTokens            int     `json:"max_tokens" yaml:"max_tokens"`
	Parallel             bool    `json:"parallel" yaml:"parallel"`
	MaxParallel          int     `json:"max_parallel" yaml:"max_parallel"`
}

// PipelineConfig controls the planner and critic stages.
type PipelineConfig struct {
	PlannerTemperature float64 `json:"planner_temperature" yaml:"planner_temperature"`
	CriticTemperature  float64 `json:"critic_temperature" yaml:"critic_temperature"`
}

// TraceConfig controls trace persistence.
type TraceConfig struct {
	// Path is the SQLite database file. Empty keeps traces in memory
	// only.
	Path string `json:"path" yaml:"path"`
}

// Config is the full runtime configuration.
type Config struct {
	Oracle   OracleConfig   `json:"oracle" yaml:"oracle"`
	Engine   EngineConfig   `json:"engine" yaml:"engine"`
	Pipeline PipelineConfig `json:"pipeline" yaml:"pipeline"`
	Trace    TraceConfig    `json:"trace" yaml:"trace"`
}

// Default returns the baseline configuration.
func Default() Config {
	return Config{
		Oracle: OracleConfig{
			BaseURL:          "http://localhost:11434/v1",
			Model:            "qwen2.5-coder:14b",
			Timeout:          Duration(120 * time.Second),
			Retries:          3,
			BreakerThreshold: 5,
			BreakerRecovery:  Duration(30 * time.Second),
		},
		Engine: EngineConfig{
			MaxRecursionDepth:    3,
			ReasonerTemperature:  0.7,
			DecomposeTemperature: 0.4,
			MaxTokens:            2048,
		},
		Pipeline: PipelineConfig{
			PlannerTemperature: 0.5,
			CriticTemperature:  0.3,
		},
	}
}

// Load builds the configuration from defaults, the YAML file at path
// (skipped when empty or missing), and environment variables. A .env
// file in the working directory is loaded first when present.
func Load(path string) (Config, error) {
	// Missing .env is fine; explicit config errors are not.
	_ = godotenv.Load()

	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case os.IsNotExist(err):
			// Fall through to env overrides.
		case err != nil:
			return cfg, fmt.Errorf("read config file: %w", err)
		default:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return cfg, fmt.Errorf("parse config file %s: %w", path, err)
			}
		}
	}

	applyEnv(&cfg)

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	setString(&cfg.Oracle.BaseURL, "CASCADE_ORACLE_URL")
	setString(&cfg.Oracle.Model, "CASCADE_MODEL")
	setString(&cfg.Oracle.APIKey, "CASCADE_API_KEY")
	setString(&cfg.Oracle.OpenRouterAPIKey, "OPENROUTER_API_KEY")
	setDuration(&cfg.Oracle.Timeout, "CASCADE_ORACLE_TIMEOUT")
	setInt(&cfg.Oracle.Retries, "CASCADE_ORACLE_RETRIES")

	setInt(&cfg.Engine.MaxRecursionDepth, "CASCADE_MAX_DEPTH")
	setFloat(&cfg.Engine.ReasonerTemperature, "CASCADE_REASONER_TEMPERATURE")
	setFloat(&cfg.Engine.DecomposeTemperature, "CASCADE_DECOMPOSE_TEMPERATURE")
	setInt(&cfg.Engine.MaxTokens, "CASCADE_MAX_TOKENS")
	setBool(&cfg.Engine.Parallel, "CASCADE_PARALLEL")
	setInt(&cfg.Engine.MaxParallel, "CASCADE_MAX_PARALLEL")

	setString(&cfg.Trace.Path, "CASCADE_TRACE_DB")
}

// Validate rejects configurations the engine cannot run with.
func (c Config) Validate() error {
	if c.Oracle.Model == "" {
		return fmt.Errorf("config: oracle model is required")
	}
	if c.Oracle.OpenRouterAPIKey == "" && c.Oracle.BaseURL == "" {
		return fmt.Errorf("config: oracle base URL is required without an OpenRouter key")
	}
	if c.Engine.MaxRecursionDepth < 0 {
		return fmt.Errorf("config: max_recursion_depth must be non-negative, got %d", c.Engine.MaxRecursionDepth)
	}
	if c.Engine.MaxTokens < 1 {
		return fmt.Errorf("config: max_tokens must be positive, got %d", c.Engine.MaxTokens)
	}
	for _, temp := range []struct {
		name  string
		value float64
	}{
		{"reasoner_temperature", c.Engine.ReasonerTemperature},
		{"decompose_temperature", c.Engine.DecomposeTemperature},
		{"planner_temperature", c.Pipeline.PlannerTemperature},
		{"critic_temperature", c.Pipeline.CriticTemperature},
	} {
		if temp.value < 0 || temp.value > 2 {
			return fmt.Errorf("config: %s must be in [0, 2], got %g", temp.name, temp.value)
		}
	}
	return nil
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setFloat(dst *float64, key string) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *Duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			*dst = Duration(d)
		}
	}
}
