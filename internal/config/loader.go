// Package config loads the optional YAML configuration of the look CLI.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config is the CLI configuration.
type Config struct {
	Log       LogConfig       `yaml:"log"`
	Thumbnail ThumbnailConfig `yaml:"thumbnail"`
	Import    ImportConfig    `yaml:"import"`
}

// LogConfig selects the slog level and handler format.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// ThumbnailConfig bounds generated cover thumbnails.
type ThumbnailConfig struct {
	Width   int `yaml:"width"`
	Height  int `yaml:"height"`
	Quality int `yaml:"quality"`
}

// ImportConfig controls the metadata importer.
type ImportConfig struct {
	Workers int `yaml:"workers"`
}

const envPrefix = "LOOK_"

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Thumbnail: ThumbnailConfig{
			Width:   300,
			Height:  450,
			Quality: 85,
		},
		Import: ImportConfig{
			Workers: 4,
		},
	}
}

// Load reads and parses the configuration file on top of the defaults.
// An empty path skips the file. Environment variables with the LOOK_ prefix
// override file values.
func Load(configPath string) (*Config, error) {
	cfg := Default()

	if configPath != "" {
		data, err := os.ReadFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	if err := applyEnvOverrides(cfg); err != nil {
		return nil, err
	}

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// applyEnvOverrides applies environment variable overrides
func applyEnvOverrides(cfg *Config) error {
	if v := os.Getenv(envPrefix + "LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv(envPrefix + "LOG_FORMAT"); v != "" {
		cfg.Log.Format = v
	}
	if v := os.Getenv(envPrefix + "IMPORT_WORKERS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid %sIMPORT_WORKERS %q: %w", envPrefix, v, err)
		}
		cfg.Import.Workers = n
	}
	return nil
}

// Validate checks if the configuration is valid
func Validate(cfg *Config) error {
	switch strings.ToLower(cfg.Log.Level) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log level: %s (must be debug, info, warn or error)", cfg.Log.Level)
	}

	switch strings.ToLower(cfg.Log.Format) {
	case "text", "json":
	default:
		return fmt.Errorf("invalid log format: %s (must be 'text' or 'json')", cfg.Log.Format)
	}

	if cfg.Thumbnail.Width <= 0 || cfg.Thumbnail.Height <= 0 {
		return fmt.Errorf("invalid thumbnail size: %dx%d", cfg.Thumbnail.Width, cfg.Thumbnail.Height)
	}
	if cfg.Thumbnail.Quality < 1 || cfg.Thumbnail.Quality > 100 {
		return fmt.Errorf("invalid thumbnail quality: %d (must be 1-100)", cfg.Thumbnail.Quality)
	}

	if cfg.Import.Workers <= 0 {
		return fmt.Errorf("invalid import workers: %d", cfg.Import.Workers)
	}

	return nil
}
