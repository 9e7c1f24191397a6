package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

const minimalConfig = `
[server]
port = 8080
host = "127.0.0.1"

[storage]
sqlite_path = "data/sectional.db"

[airports]
ids = ["kbos", "NULL", "KPVD", "LGND"]

[wx]
refresh_interval_minutes = 5
request_timeout_seconds = 30
`

func TestLoadAndValidate(t *testing.T) {
	path := writeConfig(t, minimalConfig)

	cfg, err := Load(path)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	// Defaults filled in.
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "console", cfg.Logging.Format)
	assert.Equal(t, "sqlite", cfg.Storage.Type)
	assert.Equal(t, "https://aviationweather.gov/api/data", cfg.Weather.APIBaseURL)
	assert.Equal(t, 300, cfg.Weather.ChunkSize)
	assert.Equal(t, 4, cfg.Weather.MaxConcurrentChunks)
	assert.Equal(t, 500*time.Millisecond, cfg.RetryDelay())
	assert.Equal(t, 30*time.Second, cfg.MaxBackoff())

	// Identifiers canonicalized to upper case.
	assert.Equal(t, []string{"KBOS", "NULL", "KPVD", "LGND"}, cfg.Airports.IDs)

	assert.Equal(t, 5*time.Minute, cfg.RefreshInterval())
	assert.Equal(t, 30*time.Second, cfg.RequestTimeout())
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.toml"))
	assert.Error(t, err)
}

func TestLoadWithFallbackPrefersExplicitPath(t *testing.T) {
	path := writeConfig(t, minimalConfig)
	cfg, err := LoadWithFallback(path)
	require.NoError(t, err)
	assert.Equal(t, 8080, cfg.Server.Port)
}

func TestValidateRejections(t *testing.T) {
	valid := func() *Config {
		cfg, err := Load(writeConfig(t, minimalConfig))
		require.NoError(t, err)
		return cfg
	}

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{name: "bad port", mutate: func(c *Config) { c.Server.Port = 0 }},
		{name: "bad log level", mutate: func(c *Config) { c.Logging.Level = "verbose" }},
		{name: "bad log format", mutate: func(c *Config) { c.Logging.Format = "xml" }},
		{name: "bad storage type", mutate: func(c *Config) { c.Storage.Type = "postgres" }},
		{name: "missing sqlite path", mutate: func(c *Config) { c.Storage.SQLitePath = "" }},
		{name: "no airports", mutate: func(c *Config) { c.Airports.IDs = nil }},
		{name: "only placeholders", mutate: func(c *Config) { c.Airports.IDs = []string{"NULL", "LGND"} }},
		{name: "empty airport id", mutate: func(c *Config) { c.Airports.IDs = []string{"KBOS", " "} }},
		{name: "zero refresh interval", mutate: func(c *Config) { c.Weather.RefreshIntervalMinutes = 0 }},
		{name: "zero request timeout", mutate: func(c *Config) { c.Weather.RequestTimeoutSeconds = 0 }},
		{name: "negative retries", mutate: func(c *Config) { c.Weather.MaxRetries = -1 }},
		{name: "negative retry delay", mutate: func(c *Config) { c.Weather.RetryDelayMs = -1 }},
		{name: "negative max backoff", mutate: func(c *Config) { c.Weather.MaxBackoffMs = -1 }},
		{name: "negative chunk size", mutate: func(c *Config) { c.Weather.ChunkSize = -1 }},
		{name: "short color", mutate: func(c *Config) { c.Display.ColorVFR = []int{0, 255} }},
		{name: "color out of range", mutate: func(c *Config) { c.Display.ColorIFR = []int{300, 0, 0} }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestValidateForceCalculationWinsOverPreferAPI(t *testing.T) {
	cfg, err := Load(writeConfig(t, minimalConfig))
	require.NoError(t, err)
	cfg.Weather.ForceCalculation = true
	cfg.Weather.PreferAPICategory = true

	require.NoError(t, cfg.Validate())
	assert.False(t, cfg.Weather.PreferAPICategory)
}
