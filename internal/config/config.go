// Package config loads host runtime configuration from an optional TOML file
// layered over defaults.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// Defaults mirrored from the scripting runtime; kept literal here so the
// config package stays leaf-level.
const (
	defaultWorkers        = 4
	defaultTicksPerSecond = 20
	defaultTimeoutMillis  = 30_000
	defaultLogLevel       = "info"
)

// Config is the host runtime configuration.
type Config struct {
	// Workers is the fixed worker pool size.
	Workers int `toml:"workers"`
	// TicksPerSecond is the simulation tick rate.
	TicksPerSecond int `toml:"ticks_per_second"`
	// EventLoopTimeoutMillis is the default per-execution deadline.
	EventLoopTimeoutMillis int64 `toml:"event_loop_timeout_millis"`
	// Debug exposes the debug flag to scripts.
	Debug bool `toml:"debug"`
	// LogLevel is one of trace, debug, info, warn, error.
	LogLevel string `toml:"log_level"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Workers:                defaultWorkers,
		TicksPerSecond:         defaultTicksPerSecond,
		EventLoopTimeoutMillis: defaultTimeoutMillis,
		LogLevel:               defaultLogLevel,
	}
}

// Load reads the TOML file at path over the defaults. An empty path or a
// missing file yields the defaults without error; a malformed file is an
// error.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks ranges; zero values were already filled by Default.
func (c *Config) Validate() error {
	if c.Workers < 1 {
		return fmt.Errorf("workers must be at least 1, got %d", c.Workers)
	}
	if c.TicksPerSecond < 1 {
		return fmt.Errorf("ticks_per_second must be at least 1, got %d", c.TicksPerSecond)
	}
	if c.EventLoopTimeoutMillis < 1000 {
		return fmt.Errorf("event_loop_timeout_millis must be at least 1000, got %d", c.EventLoopTimeoutMillis)
	}
	switch c.LogLevel {
	case "trace", "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("unknown log_level %q", c.LogLevel)
	}
	return nil
}

// EventLoopTimeout returns the deadline as a duration.
func (c *Config) EventLoopTimeout() time.Duration {
	return time.Duration(c.EventLoopTimeoutMillis) * time.Millisecond
}
