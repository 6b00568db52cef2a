// Package config loads program configuration from a YAML file.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config holds the program settings. Every field has a usable zero or
// defaulted value so a missing config file is not an error.
type Config struct {
	LogLevel        string `json:"logLevel,omitempty" yaml:"logLevel,omitempty"`
	DefaultFormat   string `json:"defaultFormat,omitempty" yaml:"defaultFormat,omitempty"`
	RowBatchSize    int    `json:"rowBatchSize,omitempty" yaml:"rowBatchSize,omitempty"`
	BackupOnAlter   bool   `json:"backupOnAlter,omitempty" yaml:"backupOnAlter,omitempty"`
	BackupDirectory string `json:"backupDirectory,omitempty" yaml:"backupDirectory,omitempty"`
	CaseSensitive   bool   `json:"caseSensitive,omitempty" yaml:"caseSensitive,omitempty"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		LogLevel:      "info",
		DefaultFormat: "csv",
		RowBatchSize:  500,
	}
}

// DefaultPath returns the standard config file location under the user's
// configuration directory.
func DefaultPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("resolve config dir: %w", err)
	}
	return filepath.Join(dir, "sqlitekit", "config.yaml"), nil
}

// LoadFromFile loads configuration from a YAML file, filling unset fields
// with defaults.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	if cfg.RowBatchSize <= 0 {
		cfg.RowBatchSize = Default().RowBatchSize
	}
	return cfg, nil
}

// Load resolves the configuration: an explicit path must exist, the
// default path is used when present and defaults apply otherwise.
func Load(path string) (*Config, error) {
	if path != "" {
		return LoadFromFile(path)
	}
	std, err := DefaultPath()
	if err != nil {
		return Default(), nil
	}
	if _, err := os.Stat(std); err != nil {
		return Default(), nil
	}
	return LoadFromFile(std)
}
