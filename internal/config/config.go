// Package config models riberry.yml.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

const fileName = "riberry.yml"

// Config holds client-side settings. Poll intervals are what the stores
// use when the caller does not override them.
type Config struct {
	Server struct {
		URL string `yaml:"url"`
	} `yaml:"server"`
	Poll struct {
		DashboardMS int `yaml:"dashboard_ms"`
		DetailMS    int `yaml:"detail_ms"`
	} `yaml:"poll"`
}

// Default returns the configuration used when no riberry.yml exists.
func Default() *Config {
	cfg := &Config{}
	cfg.Server.URL = "http://localhost:5000"
	cfg.Poll.DashboardMS = 2000
	cfg.Poll.DetailMS = 5000
	return cfg
}

// Path returns the config path for a workspace.
func Path(workspace string) string {
	if workspace == "" {
		workspace = "."
	}
	return filepath.Join(workspace, fileName)
}

// Load reads config from the workspace, falling back to defaults when the
// file is absent.
func Load(workspace string) (*Config, error) {
	data, err := os.ReadFile(Path(workspace))
	if err != nil {
		if os.IsNotExist(err) {
			return Default(), nil
		}
		return nil, err
	}
	return FromYAML(data)
}

// FromYAML parses and validates raw config bytes.
func FromYAML(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", fileName, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate ensures the config meets required structure.
func (c *Config) Validate() error {
	if c.Server.URL == "" {
		return fmt.Errorf("config.server.url is required")
	}
	if c.Poll.DashboardMS <= 0 {
		return fmt.Errorf("config.poll.dashboard_ms must be positive")
	}
	if c.Poll.DetailMS <= 0 {
		return fmt.Errorf("config.poll.detail_ms must be positive")
	}
	return nil
}

// DashboardInterval returns the dashboard poll interval.
func (c *Config) DashboardInterval() time.Duration {
	return time.Duration(c.Poll.DashboardMS) * time.Millisecond
}

// DetailInterval returns the form-detail poll interval.
func (c *Config) DetailInterval() time.Duration {
	return time.Duration(c.Poll.DetailMS) * time.Millisecond
}
