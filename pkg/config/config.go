// Package config loads and validates the prompteval YAML configuration
// and applies PROMPTEVAL_* environment overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/prompteval/prompteval/pkg/cache"
	"github.com/prompteval/prompteval/pkg/provider"
)

// Config holds the top-level eval configuration.
type Config struct {
	Description string           `yaml:"description"`
	Prompts     []string         `yaml:"prompts"`
	Providers   []ProviderConfig `yaml:"providers"`
	Suites      []string         `yaml:"suites"`
	Evaluate    EvaluateOptions  `yaml:"evaluate_options"`
	Cache       cache.Options    `yaml:"cache"`
	OutputDir   string           `yaml:"output_dir"`
	LogLevel    string           `yaml:"log_level"`
	LogFormat   string           `yaml:"log_format"`
}

// ProviderConfig holds configuration for a single provider ID.
type ProviderConfig struct {
	ID        string            `yaml:"id"`
	Label     string            `yaml:"label"`
	APIKeyEnv string            `yaml:"api_key_env"`
	BaseURL   string            `yaml:"base_url"`
	Headers   map[string]string `yaml:"headers"`
	RPS       float64           `yaml:"rps"`

	// Model parameters applied to every request sent to this provider.
	Temperature float64 `yaml:"temperature"`
	TopP        float64 `yaml:"top_p"`
	MaxTokens   int     `yaml:"max_tokens"`

	// Generic HTTP provider settings.
	Method            string `yaml:"method"`
	Body              string `yaml:"body"`
	TransformResponse string `yaml:"transform_response"`
}

// EvaluateOptions controls the eval scheduler.
type EvaluateOptions struct {
	MaxConcurrency int           `yaml:"max_concurrency"`
	Delay          time.Duration `yaml:"delay"`
	Timeout        time.Duration `yaml:"timeout"`
	Retry          RetryConfig   `yaml:"retry"`
}

// RetryConfig holds retry behavior settings.
type RetryConfig struct {
	MaxRetries  int           `yaml:"max_retries"`
	BaseBackoff time.Duration `yaml:"base_backoff"`
	MaxBackoff  time.Duration `yaml:"max_backoff"`
	Retry5xx    bool          `yaml:"retry_5xx"`
}

// envOverrides mirrors the PROMPTEVAL_* environment knobs onto config
// fields. Pointer fields distinguish "unset" from zero values.
type envOverrides struct {
	MaxConcurrency *int           `env:"PROMPTEVAL_MAX_CONCURRENCY"`
	DelayMS        *int           `env:"PROMPTEVAL_DELAY_MS"`
	BackoffMS      *int           `env:"PROMPTEVAL_REQUEST_BACKOFF_MS"`
	Retry5xx       *bool          `env:"PROMPTEVAL_RETRY_5XX"`
	CacheEnabled   *bool          `env:"PROMPTEVAL_CACHE_ENABLED"`
	CacheTTL       *time.Duration `env:"PROMPTEVAL_CACHE_TTL"`
	LogLevel       string         `env:"PROMPTEVAL_LOG_LEVEL"`
	LogFormat      string         `env:"PROMPTEVAL_LOG_FORMAT"`
}

// Default returns a Config populated with sensible defaults.
func Default() *Config {
	return &Config{
		Evaluate: EvaluateOptions{
			MaxConcurrency: 4,
			Timeout:        60 * time.Second,
			Retry: RetryConfig{
				MaxRetries:  3,
				BaseBackoff: 500 * time.Millisecond,
				MaxBackoff:  10 * time.Second,
			},
		},
		Cache:     cache.DefaultOptions(),
		OutputDir: "results",
		LogLevel:  "info",
		LogFormat: "console",
	}
}

// LoadDotenv loads a .env file from the working directory if present.
// Variables already set in the real environment are never overridden.
func LoadDotenv() error {
	if _, err := os.Stat(".env"); err != nil {
		return nil
	}
	if err := godotenv.Load(".env"); err != nil {
		return fmt.Errorf("loading .env: %w", err)
	}
	return nil
}

// Load reads and parses a YAML config file at the given path, then applies
// environment overrides.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file %s: %w", path, err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file %s: %w", path, err)
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadOrDefault loads config from the given path. If the file does not
// exist, it returns the default configuration with environment overrides
// applied. Other errors (e.g. parse failures) are still returned.
func LoadOrDefault(path string) (*Config, error) {
	cfg, err := Load(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			cfg = Default()
			if err := cfg.applyEnv(); err != nil {
				return nil, err
			}
			return cfg, nil
		}
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	var ov envOverrides
	if err := env.Parse(&ov); err != nil {
		return fmt.Errorf("parsing environment overrides: %w", err)
	}

	if ov.MaxConcurrency != nil {
		c.Evaluate.MaxConcurrency = *ov.MaxConcurrency
	}
	if ov.DelayMS != nil {
		c.Evaluate.Delay = time.Duration(*ov.DelayMS) * time.Millisecond
	}
	if ov.BackoffMS != nil {
		c.Evaluate.Retry.BaseBackoff = time.Duration(*ov.BackoffMS) * time.Millisecond
	}
	if ov.Retry5xx != nil {
		c.Evaluate.Retry.Retry5xx = *ov.Retry5xx
	}
	if ov.CacheEnabled != nil {
		c.Cache.Enabled = *ov.CacheEnabled
	}
	if ov.CacheTTL != nil {
		c.Cache.TTL = *ov.CacheTTL
	}
	if ov.LogLevel != "" {
		c.LogLevel = ov.LogLevel
	}
	if ov.LogFormat != "" {
		c.LogFormat = ov.LogFormat
	}
	return nil
}

// RetryPolicy converts the retry config into the provider-level policy.
func (c *Config) RetryPolicy() provider.RetryPolicy {
	return provider.RetryPolicy{
		MaxRetries:  c.Evaluate.Retry.MaxRetries,
		BaseBackoff: c.Evaluate.Retry.BaseBackoff,
		MaxBackoff:  c.Evaluate.Retry.MaxBackoff,
		Retry5xx:    c.Evaluate.Retry.Retry5xx,
	}
}

// Spec converts a provider config entry into a provider build spec.
func (p ProviderConfig) Spec() provider.Spec {
	return provider.Spec{
		ID:                p.ID,
		APIKeyEnv:         p.APIKeyEnv,
		BaseURL:           p.BaseURL,
		Headers:           p.Headers,
		RPS:               p.RPS,
		Method:            p.Method,
		BodyTemplate:      p.Body,
		TransformResponse: p.TransformResponse,
	}
}

// Validate checks the config for required fields and returns a descriptive
// error if any are missing or invalid.
func (c *Config) Validate() error {
	var errs []error

	if c.Evaluate.MaxConcurrency < 1 {
		errs = append(errs, fmt.Errorf("evaluate_options.max_concurrency must be >= 1, got %d", c.Evaluate.MaxConcurrency))
	}
	if c.Evaluate.Timeout <= 0 {
		errs = append(errs, fmt.Errorf("evaluate_options.timeout must be > 0, got %s", c.Evaluate.Timeout))
	}
	if c.Evaluate.Delay < 0 {
		errs = append(errs, fmt.Errorf("evaluate_options.delay must be >= 0, got %s", c.Evaluate.Delay))
	}
	if c.Evaluate.Retry.MaxRetries < 0 {
		errs = append(errs, fmt.Errorf("retry.max_retries must be >= 0, got %d", c.Evaluate.Retry.MaxRetries))
	}
	if c.Evaluate.Retry.BaseBackoff < 0 {
		errs = append(errs, fmt.Errorf("retry.base_backoff must be >= 0, got %s", c.Evaluate.Retry.BaseBackoff))
	}
	if c.OutputDir == "" {
		errs = append(errs, errors.New("output_dir must not be empty"))
	}

	switch c.Cache.Backend {
	case "", "disk", "memory", "redis", "noop":
	default:
		errs = append(errs, fmt.Errorf("cache.backend %q is not one of disk, memory, redis, noop", c.Cache.Backend))
	}

	for i, p := range c.Providers {
		if p.ID == "" {
			errs = append(errs, fmt.Errorf("providers[%d]: id is required", i))
			continue
		}
		if _, _, err := provider.ParseID(p.ID); err != nil {
			errs = append(errs, fmt.Errorf("providers[%d]: %w", i, err))
		}
	}

	return errors.Join(errs...)
}
