// Package config holds all configuration types and loading logic for a
// tickwork node. Config structure never shrinks — fields are only added,
// never renamed or removed.
package config

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration for a tickwork node.
type Config struct {
	Clock     ClockConfig     `yaml:"clock"`
	Scheduler SchedulerConfig `yaml:"scheduler"`
	Metrics   MetricsConfig   `yaml:"metrics"`
}

// ClockConfig controls the cached clock's background refresher.
type ClockConfig struct {
	RefreshIntervalMs int  `yaml:"refresh_interval_ms"`
	AutoStart         bool `yaml:"auto_start"`
}

// SchedulerConfig controls the manual scheduler's blocking behavior.
type SchedulerConfig struct {
	// TickBlocksUntilAvailable, when true, makes Tick block until at least
	// one task runs instead of returning 0 immediately.
	TickBlocksUntilAvailable bool `yaml:"tick_blocks_until_available"`
}

// MetricsConfig controls the Prometheus metrics endpoint.
type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
	Port    int  `yaml:"port"`
}

// Default returns a Config populated with safe, sensible defaults.
// It is the canonical source of truth for default values.
func Default() *Config {
	return &Config{
		Clock: ClockConfig{
			RefreshIntervalMs: 100,
			AutoStart:         true,
		},
		Scheduler: SchedulerConfig{
			TickBlocksUntilAvailable: true,
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Port:    9090,
		},
	}
}

// Load reads a YAML config file at path and overlays it on top of
// Default(). If the file does not exist the default config is returned
// without error, making it easy to run tickwork with no config file at
// all.
//
// After loading the file, environment variables are applied as overrides:
//
//	TICKWORK_METRICS_PORT — sets metrics.port
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			applyEnv(cfg)
			return cfg, nil
		}
		return nil, err
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	applyEnv(cfg)
	return cfg, nil
}

// applyEnv overlays environment variable overrides onto cfg.
func applyEnv(cfg *Config) {
	if v := os.Getenv("TICKWORK_METRICS_PORT"); v != "" {
		var p int
		if _, err := fmt.Sscanf(v, "%d", &p); err == nil && p > 0 {
			cfg.Metrics.Port = p
		}
	}
}

// Validate checks that the config values are consistent and within
// acceptable ranges. It returns the first error found.
func (c *Config) Validate() error {
	if c.Clock.RefreshIntervalMs < 1 {
		return errors.New("clock.refresh_interval_ms must be at least 1")
	}
	if c.Metrics.Port < 1 || c.Metrics.Port > 65535 {
		return errors.New("metrics.port must be between 1 and 65535")
	}
	return nil
}
