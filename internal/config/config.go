// Package config loads the optional config file kept in the state directory.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/wolfeidau/classdesk/internal/client"
	"gopkg.in/yaml.v3"
)

// FileName is the config file inside the state directory.
const FileName = "config.yaml"

// Config holds the settings that can be persisted between runs. Command line flags and
// CLASSDESK_* environment variables override them.
type Config struct {
	// Origin is the address the portal is served from.
	Origin  string        `yaml:"origin"`
	DevPort int           `yaml:"dev_port,omitempty"`
	Timeout time.Duration `yaml:"timeout,omitempty"`
	Retry   RetryConfig   `yaml:"retry,omitempty"`

	StateDir string `yaml:"-"` // not persisted
}

type RetryConfig struct {
	MaxAttempts     uint          `yaml:"max_attempts,omitempty"`
	InitialInterval time.Duration `yaml:"initial_interval,omitempty"`
	MaxInterval     time.Duration `yaml:"max_interval,omitempty"`
}

// Path returns the full path to the config file.
func Path(stateDir string) string {
	return filepath.Join(stateDir, FileName)
}

// Load reads the config from stateDir. A missing file yields the defaults.
func Load(stateDir string) (*Config, error) {
	cfg := &Config{}

	data, err := os.ReadFile(Path(stateDir))
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("read config: %w", err)
	default:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	cfg.StateDir = stateDir
	cfg.ApplyDefaults()

	return cfg, nil
}

// Save writes the config to its state directory with restrictive permissions.
func (c *Config) Save() error {
	if c.StateDir == "" {
		return fmt.Errorf("state dir is required")
	}
	if err := os.MkdirAll(c.StateDir, 0700); err != nil {
		return fmt.Errorf("create state dir: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	if err := os.WriteFile(Path(c.StateDir), data, 0600); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// ApplyDefaults applies default values to unset configuration fields.
func (c *Config) ApplyDefaults() {
	defaults := client.DefaultConfig()

	if c.Origin == "" {
		c.Origin = defaults.Origin
	}
	if c.DevPort == 0 {
		c.DevPort = defaults.DevPort
	}
	if c.Timeout == 0 {
		c.Timeout = defaults.Timeout
	}
	if c.Retry.MaxAttempts == 0 {
		c.Retry.MaxAttempts = defaults.Retry.MaxAttempts
	}
	if c.Retry.InitialInterval == 0 {
		c.Retry.InitialInterval = defaults.Retry.InitialInterval
	}
	if c.Retry.MaxInterval == 0 {
		c.Retry.MaxInterval = defaults.Retry.MaxInterval
	}
}

// Validate checks that the configuration is valid.
func (c *Config) Validate() error {
	if _, err := client.ResolveBaseURL(c.Origin, c.DevPort); err != nil {
		return err
	}
	if c.DevPort < 0 || c.DevPort > 65535 {
		return fmt.Errorf("dev port %d is out of range", c.DevPort)
	}
	if c.Timeout < 0 {
		return fmt.Errorf("timeout must not be negative")
	}
	if c.Retry.InitialInterval > c.Retry.MaxInterval {
		return fmt.Errorf("retry initial interval %s exceeds max interval %s", c.Retry.InitialInterval, c.Retry.MaxInterval)
	}
	return nil
}

// ClientConfig converts the config into HTTP client settings.
func (c *Config) ClientConfig(debug bool) client.Config {
	return client.Config{
		Origin:  c.Origin,
		DevPort: c.DevPort,
		Timeout: c.Timeout,
		Debug:   debug,
		Retry: client.RetryPolicy{
			MaxAttempts:     c.Retry.MaxAttempts,
			InitialInterval: c.Retry.InitialInterval,
			MaxInterval:     c.Retry.MaxInterval,
		},
		StateDir: c.StateDir,
	}
}
