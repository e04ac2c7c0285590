// Package config loads and validates the peoplesync configuration file.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the complete peoplesync configuration
type Config struct {
	Feed      FeedConfig      `yaml:"feed"`
	Paths     PathsConfig     `yaml:"paths"`
	Providers ProvidersConfig `yaml:"providers"`
	Sync      SyncConfig      `yaml:"sync"`
}

// FeedConfig configures the remote change feed provider
type FeedConfig struct {
	BaseURL        string `yaml:"base_url"`
	APIKey         string `yaml:"api_key"`
	RequestTimeout string `yaml:"request_timeout"`
}

// PathsConfig configures local filesystem paths
type PathsConfig struct {
	DataDir string `yaml:"data_dir"`
}

// ProvidersConfig holds the feature flags gating remote metadata access
type ProvidersConfig struct {
	EnableInternetProviders bool `yaml:"enable_internet_providers"`
	EnableUpdates           bool `yaml:"enable_updates"`
}

// SyncConfig configures the daemon scheduling behavior
type SyncConfig struct {
	Interval string `yaml:"interval"`
}

// Default returns a configuration populated with defaults only. Callers
// running without a config file layer CLI flags on top of this.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

// Load reads and parses the configuration file
func Load(path string) (*Config, error) {
	path = os.ExpandEnv(path)

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.expandEnv()
	cfg.applyDefaults()

	return &cfg, nil
}

// expandEnv expands environment variables in all string fields
func (c *Config) expandEnv() {
	c.Feed.BaseURL = os.ExpandEnv(c.Feed.BaseURL)
	c.Feed.APIKey = os.ExpandEnv(c.Feed.APIKey)
	c.Paths.DataDir = os.ExpandEnv(c.Paths.DataDir)
}

// applyDefaults fills in zero-value fields with sensible defaults.
func (c *Config) applyDefaults() {
	if c.Feed.RequestTimeout == "" {
		c.Feed.RequestTimeout = "30s"
	}
	if c.Sync.Interval == "" {
		c.Sync.Interval = "12h"
	}
}

// Validate checks the configuration for errors
func (c *Config) Validate() error {
	if c.Paths.DataDir == "" {
		return fmt.Errorf("paths.data_dir is required")
	}
	if !filepath.IsAbs(c.Paths.DataDir) {
		return fmt.Errorf("paths.data_dir must be an absolute path: %s", c.Paths.DataDir)
	}
	if c.Providers.EnableInternetProviders && c.Providers.EnableUpdates {
		if c.Feed.BaseURL == "" {
			return fmt.Errorf("feed.base_url is required when provider updates are enabled")
		}
		if c.Feed.APIKey == "" {
			return fmt.Errorf("feed.api_key is required when provider updates are enabled")
		}
	}
	if _, err := time.ParseDuration(c.Feed.RequestTimeout); err != nil {
		return fmt.Errorf("invalid feed.request_timeout: %w", err)
	}
	interval, err := time.ParseDuration(c.Sync.Interval)
	if err != nil {
		return fmt.Errorf("invalid sync.interval: %w", err)
	}
	if interval < time.Minute {
		return fmt.Errorf("sync.interval must be at least one minute: %s", c.Sync.Interval)
	}
	return nil
}

// RequestTimeout returns the parsed feed request timeout. Validate must
// have succeeded first.
func (c *Config) RequestTimeout() time.Duration {
	d, _ := time.ParseDuration(c.Feed.RequestTimeout)
	return d
}

// SyncInterval returns the parsed daemon interval. Validate must have
// succeeded first.
func (c *Config) SyncInterval() time.Duration {
	d, _ := time.ParseDuration(c.Sync.Interval)
	return d
}

// PeopleDir returns the entity storage root holding one directory per
// cached person record.
func (c *Config) PeopleDir() string {
	return filepath.Join(c.Paths.DataDir, "people")
}
