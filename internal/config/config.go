// Package config loads the process configuration from a TOML file.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
)

// Config holds all duebook configuration.
type Config struct {
	Database  DatabaseConfig  `toml:"database"`
	Scheduler SchedulerConfig `toml:"scheduler"`
}

// DatabaseConfig holds store settings.
type DatabaseConfig struct {
	Path string `toml:"path,omitempty"`
}

// SchedulerConfig holds scheduler runtime settings. Flags here are
// read once at startup; there is no runtime reconfiguration.
type SchedulerConfig struct {
	// IntervalMinutes is the tick cadence.
	IntervalMinutes int `toml:"interval_minutes"`

	// CatchUp enables the startup reconciliation pass.
	CatchUp bool `toml:"catch_up"`

	// Workers bounds concurrent per-bill evaluation within a tick.
	Workers int `toml:"workers,omitempty"`
}

// Interval returns the tick cadence as a duration.
func (s SchedulerConfig) Interval() time.Duration {
	return time.Duration(s.IntervalMinutes) * time.Minute
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{
		Database: DatabaseConfig{
			Path: filepath.Join(DataDir(), "duebook.db"),
		},
		Scheduler: SchedulerConfig{
			IntervalMinutes: 15,
			CatchUp:         true,
		},
	}
}

// ConfigDir returns the XDG-compliant config directory.
func ConfigDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "duebook")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "duebook")
}

// DataDir returns the XDG-compliant data directory.
func DataDir() string {
	if xdg := os.Getenv("XDG_DATA_HOME"); xdg != "" {
		return filepath.Join(xdg, "duebook")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".local", "share", "duebook")
}

// ConfigPath returns the full path to the config file.
func ConfigPath() string {
	return filepath.Join(ConfigDir(), "config.toml")
}

// Load reads the config file at path, or the default location when
// path is empty. A missing file yields the defaults.
func Load(path string) (Config, error) {
	cfg := DefaultConfig()

	if path == "" {
		path = ConfigPath()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("reading config: %w", err)
	}

	if err := toml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parsing config: %w", err)
	}
	if cfg.Scheduler.IntervalMinutes <= 0 {
		cfg.Scheduler.IntervalMinutes = 15
	}
	return cfg, nil
}
