package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Store backends
const (
	BackendMemory = "memory"
	BackendSQLite = "sqlite"
	BackendRedis  = "redis"
)

// Config holds the nbc configuration
type Config struct {
	Preprocess PreprocessConfig `yaml:"preprocess"`
	Store      StoreConfig      `yaml:"store"`
	Model      ModelConfig      `yaml:"model"`
	Log        LogConfig        `yaml:"log"`
}

// PreprocessConfig controls tokenization
type PreprocessConfig struct {
	NGram     int      `yaml:"ngram"`
	StopWords []string `yaml:"stop_words,omitempty"` // empty keeps the built-in English list
	CacheSize int      `yaml:"cache_size"`
}

// StoreConfig selects where the model statistics live
type StoreConfig struct {
	Backend     string `yaml:"backend"`
	SQLitePath  string `yaml:"sqlite_path"`
	RedisURL    string `yaml:"redis_url"`
	RedisPrefix string `yaml:"redis_prefix"`
}

// ModelConfig holds the JSON model file location
type ModelConfig struct {
	Path      string `yaml:"path"`
	TermIndex bool   `yaml:"term_index"`
}

// LogConfig configures logging. An empty File logs to stderr.
type LogConfig struct {
	Level      string `yaml:"level"`
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		Preprocess: PreprocessConfig{
			NGram:     1,
			CacheSize: 4096,
		},
		Store: StoreConfig{
			Backend:     BackendMemory,
			SQLitePath:  "nbc.db",
			RedisURL:    "redis://localhost:6379/0",
			RedisPrefix: "nbc",
		},
		Model: ModelConfig{
			Path:      "model.json",
			TermIndex: true,
		},
		Log: LogConfig{
			Level:      "info",
			MaxSizeMB:  10,
			MaxBackups: 3,
			MaxAgeDays: 28,
		},
	}
}

// LoadConfig reads the YAML file at path over the defaults. An empty path
// returns the defaults.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// Save writes the configuration to path as YAML
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// Validate checks the configuration for errors
func (c *Config) Validate() error {
	if c.Preprocess.NGram < 1 {
		return fmt.Errorf("preprocess.ngram must be at least 1, got %d", c.Preprocess.NGram)
	}
	switch c.Store.Backend {
	case BackendMemory:
	case BackendSQLite:
		if c.Store.SQLitePath == "" {
			return fmt.Errorf("store.sqlite_path is required for the sqlite backend")
		}
	case BackendRedis:
		if c.Store.RedisURL == "" {
			return fmt.Errorf("store.redis_url is required for the redis backend")
		}
	default:
		return fmt.Errorf("unknown store.backend %q", c.Store.Backend)
	}
	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("unknown log.level %q", c.Log.Level)
	}
	return nil
}
