// Package config provides configuration loading for the docspec command
// line tools.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config represents the complete docspec tool configuration.
type Config struct {
	Parse  ParseConfig  `yaml:"parse"`
	Output OutputConfig `yaml:"output"`
}

// ParseConfig configures module discovery and parsing.
type ParseConfig struct {
	// SearchPath lists the directories modules are resolved against. Empty
	// means pyproject-aware auto-detection from the working directory.
	SearchPath []string `yaml:"search_path"`

	// Exclude holds additional gitignore-style patterns skipped during
	// discovery, on top of the built-in defaults.
	Exclude []string `yaml:"exclude"`

	// IncludePrivate emits members whose names start with an underscore.
	IncludePrivate bool `yaml:"include_private"`

	// IncludeImports emits indirection members for import statements.
	IncludeImports bool `yaml:"include_imports"`
}

// OutputConfig configures how parsed modules are emitted.
type OutputConfig struct {
	// LogLevel is the default log level (debug, info, warn, error).
	LogLevel string `yaml:"log_level"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Parse: ParseConfig{
			SearchPath:     nil, // Auto-detect
			IncludePrivate: true,
			IncludeImports: true,
		},
		Output: OutputConfig{
			LogLevel: "info",
		},
	}
}

// Validate checks that the configuration is valid.
func (c *Config) Validate() error {
	switch c.Output.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("output.log_level must be one of debug, info, warn, error; got %q", c.Output.LogLevel)
	}
	for _, dir := range c.Parse.SearchPath {
		if dir == "" {
			return fmt.Errorf("parse.search_path contains an empty entry")
		}
	}
	return nil
}

// LoadFromFile loads configuration from a YAML file, applied over defaults.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	return config, nil
}

// SaveToFile saves configuration to a YAML file.
func (c *Config) SaveToFile(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// Merge merges another config into this one; other takes precedence for
// non-zero values.
func (c *Config) Merge(other *Config) {
	if other == nil {
		return
	}

	if len(other.Parse.SearchPath) > 0 {
		c.Parse.SearchPath = other.Parse.SearchPath
	}
	if len(other.Parse.Exclude) > 0 {
		c.Parse.Exclude = other.Parse.Exclude
	}
	c.Parse.IncludePrivate = other.Parse.IncludePrivate
	c.Parse.IncludeImports = other.Parse.IncludeImports

	if other.Output.LogLevel != "" {
		c.Output.LogLevel = other.Output.LogLevel
	}
}
