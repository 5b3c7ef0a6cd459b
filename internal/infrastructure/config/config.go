// Package config loads tool configuration from the environment.
package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config holds all configuration for sandbox-hosting tools.
type Config struct {
	Assets  AssetsConfig
	Logging LogConfig
	Reload  ReloadConfig
}

// AssetsConfig locates the module packs.
type AssetsConfig struct {
	Root string `envconfig:"ASSETS_ROOT" default:"assets"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level       string `envconfig:"LOG_LEVEL" default:"info"`
	Development bool   `envconfig:"LOG_DEV" default:"false"`
}

// ReloadConfig controls hot-reload polling.
type ReloadConfig struct {
	Enabled  bool          `envconfig:"RELOAD_ENABLED" default:"false"`
	Interval time.Duration `envconfig:"RELOAD_INTERVAL" default:"2s"`
}

// Load loads configuration from environment variables.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return &cfg, nil
}

// LoadOrDefault loads configuration from environment or returns default.
func LoadOrDefault() *Config {
	cfg, err := Load()
	if err != nil {
		return Default()
	}
	return cfg
}

// Default returns default configuration.
func Default() *Config {
	return &Config{
		Assets: AssetsConfig{
			Root: "assets",
		},
		Logging: LogConfig{
			Level:       "info",
			Development: false,
		},
		Reload: ReloadConfig{
			Enabled:  false,
			Interval: 2 * time.Second,
		},
	}
}
