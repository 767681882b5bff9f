// Package config loads the optional deployment configuration file. Every
// field has a working default; a missing file means "run with defaults".
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// SourceConfig overrides per-source transport settings. Zero values fall
// back to the source's built-in defaults.
type SourceConfig struct {
	BaseURL     string        `yaml:"base_url"`
	Timeout     time.Duration `yaml:"timeout"`
	MaxInFlight int           `yaml:"max_in_flight"`
	MaxAttempts int           `yaml:"max_attempts"`
	UserAgent   string        `yaml:"user_agent"`
}

// RedisConfig points at an optional redis instance holding shared
// rate-limit state. Empty address means in-memory state.
type RedisConfig struct {
	Address  string `yaml:"address"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// Config is the full deployment configuration.
type Config struct {
	LogLevel    string                  `yaml:"log_level"`
	CallTimeout time.Duration           `yaml:"call_timeout"`
	Redis       RedisConfig             `yaml:"redis"`
	Sources     map[string]SourceConfig `yaml:"sources"`
}

// Default returns the configuration used when no file is present.
func Default() Config {
	return Config{
		LogLevel:    "info",
		CallTimeout: 2 * time.Minute,
		Sources:     map[string]SourceConfig{},
	}
}

// Load reads the configuration file at path. A missing file is not an
// error; defaults apply.
func Load(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("failed to read config: %w", err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("failed to parse config: %w", err)
	}
	if cfg.Sources == nil {
		cfg.Sources = map[string]SourceConfig{}
	}
	return cfg, nil
}

// Source returns the override block for a source id, zero-valued when the
// file does not mention it.
func (c Config) Source(name string) SourceConfig {
	return c.Sources[name]
}
