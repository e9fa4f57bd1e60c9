// Package config loads engine configuration from YAML.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration wraps time.Duration so YAML values can be written as "90s" or
// "5m" rather than nanosecond integers.
type Duration struct {
	time.Duration
}

// UnmarshalYAML parses a time.ParseDuration string.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	parsed, err := time.ParseDuration(value.Value)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", value.Value, err)
	}
	d.Duration = parsed
	return nil
}

// MarshalYAML renders the duration in time.Duration string form.
func (d Duration) MarshalYAML() (interface{}, error) {
	return d.Duration.String(), nil
}

// Config holds the engine's tunables.
type Config struct {
	// DBPath is the SQLite database holding the outbox and cache.
	DBPath string `yaml:"db_path"`

	// BaseURL is prefixed to relative endpoints passed to the client.
	BaseURL string `yaml:"base_url"`

	// MaxRetries is the retry budget assigned to queued operations that
	// don't specify their own.
	MaxRetries int `yaml:"max_retries"`

	// RetryPolicy selects failure classification: "transient" retries only
	// transport failures and 408/429/5xx, "all" retries every failure.
	RetryPolicy string `yaml:"retry_policy"`

	// SweepInterval is how often expired cache entries are purged.
	SweepInterval Duration `yaml:"sweep_interval"`

	// RequestTimeout bounds each outbound network call.
	RequestTimeout Duration `yaml:"request_timeout"`

	// PollURL, when set, enables the built-in connectivity prober against
	// this URL. Empty leaves connectivity to the embedding application.
	PollURL string `yaml:"poll_url"`

	// PollInterval is how often the prober runs.
	PollInterval Duration `yaml:"poll_interval"`
}

// Default returns the configuration used when no file is supplied.
func Default() Config {
	return Config{
		DBPath:         "fieldsync.db",
		MaxRetries:     3,
		RetryPolicy:    "transient",
		SweepInterval:  Duration{time.Minute},
		RequestTimeout: Duration{30 * time.Second},
		PollInterval:   Duration{15 * time.Second},
	}
}

// Load reads a YAML config file, layering it over Default.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks the configuration for values the engine cannot run with.
func (c Config) Validate() error {
	if c.DBPath == "" {
		return fmt.Errorf("config: db_path must not be empty")
	}
	if c.MaxRetries < 1 {
		return fmt.Errorf("config: max_retries must be at least 1, got %d", c.MaxRetries)
	}
	switch c.RetryPolicy {
	case "transient", "all":
	default:
		return fmt.Errorf("config: retry_policy must be %q or %q, got %q", "transient", "all", c.RetryPolicy)
	}
	if c.PollURL != "" && c.PollInterval.Duration <= 0 {
		return fmt.Errorf("config: poll_interval must be positive when poll_url is set")
	}
	return nil
}
