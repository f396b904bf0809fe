// Package config defines the analyzer configuration and how it is loaded.
package config

import (
	"fmt"
	"runtime"
	"strings"
	"time"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`
	// LogFormat is text or json.
	LogFormat string `koanf:"log_format"`

	// SnapshotInterval is the time-series sampling interval in game seconds.
	SnapshotInterval float64 `koanf:"snapshot_interval"`
	// IncludeTimeSeries turns the time_series section on or off.
	IncludeTimeSeries bool `koanf:"include_time_series"`
	// BuildOrderLimit caps build order entries per player. Zero is unlimited.
	BuildOrderLimit int `koanf:"build_order_limit"`
	// CorrelationWindow is how long a production command waits for its unit.
	CorrelationWindow float64 `koanf:"correlation_window"`

	// Timeout bounds the analysis of one replay.
	Timeout time.Duration `koanf:"timeout"`

	DBDriver string `koanf:"db_driver"`
	DBPath   string `koanf:"db_path"`

	// Workers bounds concurrent analyses in batch mode.
	Workers int `koanf:"workers"`

	// Addr is the listen address in serve mode.
	Addr string `koanf:"addr"`

	// RedisAddr enables the result cache when set.
	RedisAddr string        `koanf:"redis_addr"`
	RedisTTL  time.Duration `koanf:"redis_ttl"`

	// OTelEndpoint enables trace export when set, e.g. "http://localhost:4318".
	OTelEndpoint string `koanf:"otel_endpoint"`

	// MetricsFile receives a Prometheus text dump at exit when set.
	MetricsFile string `koanf:"metrics_file"`
}

// New returns a Config holding the defaults.
func New() *Config {
	return &Config{
		LogLevel:          "info",
		LogFormat:         "text",
		SnapshotInterval:  1.0,
		IncludeTimeSeries: true,
		BuildOrderLimit:   0,
		CorrelationWindow: 60,
		Timeout:           5 * time.Minute,
		DBDriver:          "sqlite",
		DBPath:            "sc2replays.db",
		Workers:           runtime.NumCPU(),
		Addr:              ":8090",
		RedisTTL:          24 * time.Hour,
	}
}

// Validate reports the first setting that cannot be used.
func (c *Config) Validate() error {
	switch {
	case c.SnapshotInterval <= 0:
		return fmt.Errorf("%w: snapshot_interval must be positive, got %v", ErrInvalidConfig, c.SnapshotInterval)
	case c.BuildOrderLimit < 0:
		return fmt.Errorf("%w: build_order_limit must not be negative", ErrInvalidConfig)
	case c.CorrelationWindow < 0:
		return fmt.Errorf("%w: correlation_window must not be negative", ErrInvalidConfig)
	case c.Timeout < 0:
		return fmt.Errorf("%w: timeout must not be negative", ErrInvalidConfig)
	case c.Workers < 1:
		return fmt.Errorf("%w: workers must be at least 1", ErrInvalidConfig)
	case c.Addr == "":
		return fmt.Errorf("%w: addr must not be empty", ErrInvalidConfig)
	case c.RedisTTL < 0:
		return fmt.Errorf("%w: redis_ttl must not be negative", ErrInvalidConfig)
	}
	switch c.DBDriver {
	case "sqlite", "sqlite3":
	default:
		return fmt.Errorf("%w: db_driver %q, want sqlite or sqlite3", ErrInvalidConfig, c.DBDriver)
	}
	switch strings.ToLower(c.LogFormat) {
	case "text", "json":
	default:
		return fmt.Errorf("%w: log_format %q, want text or json", ErrInvalidConfig, c.LogFormat)
	}
	return nil
}
