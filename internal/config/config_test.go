package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.Equal(t, "fieldsync.db", cfg.DBPath)
	assert.Equal(t, 3, cfg.MaxRetries)
	assert.Equal(t, "transient", cfg.RetryPolicy)
	assert.Equal(t, time.Minute, cfg.SweepInterval.Duration)
	assert.Equal(t, 30*time.Second, cfg.RequestTimeout.Duration)
	assert.Equal(t, 15*time.Second, cfg.PollInterval.Duration)
	assert.Empty(t, cfg.PollURL)

	require.NoError(t, cfg.Validate())
}

func TestLoad_LayersOverDefault(t *testing.T) {
	path := writeConfig(t, `
db_path: /var/lib/app/sync.db
base_url: https://api.example.com
max_retries: 5
sweep_interval: 90s
poll_url: https://api.example.com/health
poll_interval: 5s
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "/var/lib/app/sync.db", cfg.DBPath)
	assert.Equal(t, "https://api.example.com", cfg.BaseURL)
	assert.Equal(t, 5, cfg.MaxRetries)
	assert.Equal(t, 90*time.Second, cfg.SweepInterval.Duration)
	assert.Equal(t, "https://api.example.com/health", cfg.PollURL)
	assert.Equal(t, 5*time.Second, cfg.PollInterval.Duration)

	// Unset fields keep their defaults.
	assert.Equal(t, "transient", cfg.RetryPolicy)
	assert.Equal(t, 30*time.Second, cfg.RequestTimeout.Duration)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "read config")
}

func TestLoad_BadDuration(t *testing.T) {
	path := writeConfig(t, "sweep_interval: ninety seconds\n")

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid duration")
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"empty db path", func(c *Config) { c.DBPath = "" }, "db_path"},
		{"zero retries", func(c *Config) { c.MaxRetries = 0 }, "max_retries"},
		{"unknown policy", func(c *Config) { c.RetryPolicy = "backoff" }, "retry_policy"},
		{"poll url without interval", func(c *Config) {
			c.PollURL = "https://api.example.com/health"
			c.PollInterval = Duration{}
		}, "poll_interval"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			tc.mutate(&cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.wantErr)
		})
	}
}

func TestDuration_MarshalRoundTrip(t *testing.T) {
	out, err := Duration{90 * time.Second}.MarshalYAML()
	require.NoError(t, err)
	assert.Equal(t, "1m30s", out)
}
