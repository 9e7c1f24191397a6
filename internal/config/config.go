package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

// Config represents the main application configuration structure
// containing all configuration sections
type Config struct {
	Server   ServerConfig   `toml:"server"`   // HTTP server settings
	Logging  LoggingConfig  `toml:"logging"`  // Application logging settings
	Storage  StorageConfig  `toml:"storage"`  // Rating snapshot persistence settings
	Airports AirportsConfig `toml:"airports"` // Airport identifier list settings
	Weather  WeatherConfig  `toml:"wx"`       // METAR fetching and classification settings
	Display  DisplayConfig  `toml:"display"`  // Category color palette for the map
}

// ServerConfig contains HTTP server configuration settings
type ServerConfig struct {
	Port               int      `toml:"port"`                  // HTTP port for the server
	Host               string   `toml:"host"`                  // Host address to bind to (e.g., 127.0.0.1 for localhost only, 0.0.0.0 for all interfaces)
	CORSAllowedOrigins []string `toml:"cors_allowed_origins"`  // List of origins allowed for CORS requests (use ["*"] for all origins)
	ReadTimeoutSecs    int      `toml:"read_timeout_seconds"`  // Maximum duration for reading the entire request (0 = no timeout)
	WriteTimeoutSecs   int      `toml:"write_timeout_seconds"` // Maximum duration for writing the response (0 = no timeout)
	IdleTimeoutSecs    int      `toml:"idle_timeout_seconds"`  // Maximum duration to wait for the next request when keep-alives are enabled
	StaticFilesDir     string   `toml:"static_files_dir"`      // Directory to serve the dashboard from (e.g., "www"); empty disables static serving
}

// LoggingConfig contains application logging configuration
type LoggingConfig struct {
	Level  string `toml:"level"`  // Log level: "debug", "info", "warn", or "error"
	Format string `toml:"format"` // Log format: "json" (structured) or "console" (human-readable)
}

// StorageConfig contains rating snapshot persistence configuration
type StorageConfig struct {
	Type           string `toml:"type"`             // Storage backend type (currently only "sqlite" is supported)
	SQLitePath     string `toml:"sqlite_path"`      // Path to the SQLite database file
	RestoreOnStart bool   `toml:"restore_on_start"` // Serve the persisted snapshot until the first fetch completes
}

// AirportsConfig contains the airport identifier list. IDs are listed in LED
// order; the placeholders "NULL" (unlit position) and "LGND" (legend position)
// are part of the display contract and are never fetched.
type AirportsConfig struct {
	IDs    []string `toml:"ids"`     // Ordered airport identifiers (ICAO codes plus NULL/LGND placeholders)
	DBPath string   `toml:"db_path"` // Optional path to an OurAirports-format CSV for name/coordinate enrichment
}

// WeatherConfig contains METAR fetching and classification configuration
type WeatherConfig struct {
	APIBaseURL             string `toml:"api_base_url"`             // Base URL for the aviation weather API
	RefreshIntervalMinutes int    `toml:"refresh_interval_minutes"` // Rating refresh interval in minutes
	RequestTimeoutSeconds  int    `toml:"request_timeout_seconds"`  // Per-request HTTP timeout in seconds
	CycleTimeoutSeconds    int    `toml:"cycle_timeout_seconds"`    // Wall-time bound for a whole cycle (0 = no bound)
	MaxRetries             int    `toml:"max_retries"`              // Maximum number of retry attempts for failed requests
	RetryDelayMs           int    `toml:"retry_delay_ms"`           // Initial backoff between retries in milliseconds (doubles per attempt)
	MaxBackoffMs           int    `toml:"max_backoff_ms"`           // Backoff ceiling in milliseconds
	ChunkSize              int    `toml:"chunk_size"`               // Airports per upstream request (the API caps this at 300)
	MaxConcurrentChunks    int    `toml:"max_concurrent_chunks"`    // Concurrent chunk requests per cycle
	UserAgent              string `toml:"user_agent"`               // User-Agent header sent upstream
	PreferAPICategory      bool   `toml:"prefer_api_category"`      // Use the API-supplied flight category when present
	ForceCalculation       bool   `toml:"force_calculation"`        // Always compute the category locally, ignoring the API's
	AssumeVFRWhenMissing   bool   `toml:"assume_vfr_when_missing"`  // Rate reports with no sky data as VFR instead of INVALID
}

// DisplayConfig contains the category color palette handed to the LED map and
// dashboard. Colors are [r, g, b] triples; unset categories use defaults.
type DisplayConfig struct {
	ColorVFR     []int `toml:"color_vfr"`
	ColorMVFR    []int `toml:"color_mvfr"`
	ColorIFR     []int `toml:"color_ifr"`
	ColorLIFR    []int `toml:"color_lifr"`
	ColorNoWx    []int `toml:"color_nowx"`
	ColorInvalid []int `toml:"color_invalid"`
}

// Load loads the configuration from the specified file path
func Load(path string) (*Config, error) {
	var config Config

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, fmt.Errorf("config file not found: %s", path)
	}

	if _, err := toml.DecodeFile(path, &config); err != nil {
		return nil, fmt.Errorf("failed to decode config file: %w", err)
	}

	return &config, nil
}

// LoadWithFallback loads the configuration by checking multiple locations in order of preference
func LoadWithFallback(preferredPath string) (*Config, error) {
	searchPaths := []string{
		preferredPath,         // User-specified path (if provided)
		"configs/config.toml", // configs/ folder
		"config.toml",         // Root directory
	}

	uniquePaths := make([]string, 0, len(searchPaths))
	seen := make(map[string]bool)
	for _, path := range searchPaths {
		if path != "" && !seen[path] {
			uniquePaths = append(uniquePaths, path)
			seen[path] = true
		}
	}

	var lastErr error
	for _, path := range uniquePaths {
		if _, err := os.Stat(path); err == nil {
			config, err := Load(path)
			if err != nil {
				lastErr = fmt.Errorf("failed to load config from %s: %w", path, err)
				continue
			}
			return config, nil
		}
		lastErr = fmt.Errorf("config file not found: %s", path)
	}

	return nil, fmt.Errorf("config file not found in any of the expected locations: %v. Last error: %w", uniquePaths, lastErr)
}

// Validate validates the configuration and fills defaults. Any error here is
// fatal: a cycle never starts on an invalid configuration.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}

	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
		// Valid log level
	default:
		return fmt.Errorf("invalid log level: %s", c.Logging.Level)
	}

	if c.Logging.Format == "" {
		c.Logging.Format = "console"
	}
	switch c.Logging.Format {
	case "json", "console":
		// Valid log format
	default:
		return fmt.Errorf("invalid log format: %s", c.Logging.Format)
	}

	if c.Storage.Type == "" {
		c.Storage.Type = "sqlite"
	}
	if c.Storage.Type != "sqlite" {
		return fmt.Errorf("invalid storage type: %s (only 'sqlite' is supported)", c.Storage.Type)
	}
	if c.Storage.SQLitePath == "" {
		return fmt.Errorf("sqlite_path is required when storage type is sqlite")
	}

	if err := c.ValidateAirports(); err != nil {
		return err
	}

	if err := c.ValidateWeather(); err != nil {
		return err
	}

	return c.ValidateDisplay()
}

// ValidateAirports validates and canonicalizes the airport list.
func (c *Config) ValidateAirports() error {
	if len(c.Airports.IDs) == 0 {
		return fmt.Errorf("at least one airport identifier is required")
	}

	fetchable := 0
	for i, id := range c.Airports.IDs {
		id = strings.ToUpper(strings.TrimSpace(id))
		if id == "" {
			return fmt.Errorf("airport #%d: identifier is empty", i+1)
		}
		c.Airports.IDs[i] = id
		if id != "NULL" && id != "LGND" {
			fetchable++
		}
	}
	if fetchable == 0 {
		return fmt.Errorf("airport list contains only NULL/LGND placeholders")
	}

	return nil
}

// ValidateWeather validates the weather configuration and fills defaults.
func (c *Config) ValidateWeather() error {
	if c.Weather.APIBaseURL == "" {
		c.Weather.APIBaseURL = "https://aviationweather.gov/api/data"
	}

	if c.Weather.RefreshIntervalMinutes <= 0 {
		return fmt.Errorf("wx refresh_interval_minutes must be greater than 0: %d", c.Weather.RefreshIntervalMinutes)
	}
	if c.Weather.RequestTimeoutSeconds <= 0 {
		return fmt.Errorf("wx request_timeout_seconds must be greater than 0: %d", c.Weather.RequestTimeoutSeconds)
	}
	if c.Weather.CycleTimeoutSeconds < 0 {
		return fmt.Errorf("wx cycle_timeout_seconds must be 0 or greater: %d", c.Weather.CycleTimeoutSeconds)
	}
	if c.Weather.MaxRetries < 0 {
		return fmt.Errorf("wx max_retries must be 0 or greater: %d", c.Weather.MaxRetries)
	}

	if c.Weather.RetryDelayMs == 0 {
		c.Weather.RetryDelayMs = 500
	}
	if c.Weather.RetryDelayMs < 0 {
		return fmt.Errorf("wx retry_delay_ms must be 0 or greater: %d", c.Weather.RetryDelayMs)
	}
	if c.Weather.MaxBackoffMs == 0 {
		c.Weather.MaxBackoffMs = 30000
	}
	if c.Weather.MaxBackoffMs < 0 {
		return fmt.Errorf("wx max_backoff_ms must be 0 or greater: %d", c.Weather.MaxBackoffMs)
	}

	if c.Weather.ChunkSize == 0 {
		c.Weather.ChunkSize = 300
	}
	if c.Weather.ChunkSize < 0 {
		return fmt.Errorf("wx chunk_size must be greater than 0: %d", c.Weather.ChunkSize)
	}

	if c.Weather.MaxConcurrentChunks == 0 {
		c.Weather.MaxConcurrentChunks = 4
	}
	if c.Weather.MaxConcurrentChunks < 0 {
		return fmt.Errorf("wx max_concurrent_chunks must be greater than 0: %d", c.Weather.MaxConcurrentChunks)
	}

	if c.Weather.UserAgent == "" {
		c.Weather.UserAgent = "sectional/1.0"
	}

	if c.Weather.ForceCalculation && c.Weather.PreferAPICategory {
		// Forced calculation wins; recording both is a config smell but not fatal.
		c.Weather.PreferAPICategory = false
	}

	return nil
}

// ValidateDisplay validates the color palette overrides.
func (c *Config) ValidateDisplay() error {
	colors := map[string][]int{
		"color_vfr":     c.Display.ColorVFR,
		"color_mvfr":    c.Display.ColorMVFR,
		"color_ifr":     c.Display.ColorIFR,
		"color_lifr":    c.Display.ColorLIFR,
		"color_nowx":    c.Display.ColorNoWx,
		"color_invalid": c.Display.ColorInvalid,
	}
	for name, rgb := range colors {
		if len(rgb) == 0 {
			continue // default palette applies
		}
		if len(rgb) != 3 {
			return fmt.Errorf("display %s must have exactly 3 components, got %d", name, len(rgb))
		}
		for _, v := range rgb {
			if v < 0 || v > 255 {
				return fmt.Errorf("display %s component out of range: %d", name, v)
			}
		}
	}
	return nil
}

// RefreshInterval returns the refresh interval as a duration.
func (c *Config) RefreshInterval() time.Duration {
	return time.Duration(c.Weather.RefreshIntervalMinutes) * time.Minute
}

// RequestTimeout returns the per-request HTTP timeout as a duration.
func (c *Config) RequestTimeout() time.Duration {
	return time.Duration(c.Weather.RequestTimeoutSeconds) * time.Second
}

// CycleTimeout returns the cycle wall-time bound as a duration.
func (c *Config) CycleTimeout() time.Duration {
	return time.Duration(c.Weather.CycleTimeoutSeconds) * time.Second
}

// RetryDelay returns the initial retry backoff as a duration.
func (c *Config) RetryDelay() time.Duration {
	return time.Duration(c.Weather.RetryDelayMs) * time.Millisecond
}

// MaxBackoff returns the retry backoff ceiling as a duration.
func (c *Config) MaxBackoff() time.Duration {
	return time.Duration(c.Weather.MaxBackoffMs) * time.Millisecond
}
