// Package config provides configuration loading for the semlens server.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the application.
type Config struct {
	Provider Provider `yaml:"provider"`
	Qdrant   Qdrant   `yaml:"qdrant"`
	Indexing Indexing `yaml:"indexing"`
	Search   Search   `yaml:"search"`
	Log      Log      `yaml:"log"`
}

// Provider selects and configures the embedding/generation backend.
type Provider struct {
	// Backend is one of "openai", "ollama", "offline".
	Backend        string `yaml:"backend"`
	BaseURL        string `yaml:"base_url"`
	APIKey         string `yaml:"api_key"`
	EmbeddingModel string `yaml:"embedding_model"`
	ChatModel      string `yaml:"chat_model"`
	CacheSize      int    `yaml:"cache_size"`
}

// Qdrant holds vector engine connection settings.
type Qdrant struct {
	URL        string `yaml:"url"`
	Collection string `yaml:"collection"`
}

// Indexing holds ingestion tunables.
type Indexing struct {
	BatchSize   int   `yaml:"batch_size"`
	MaxFileSize int64 `yaml:"max_file_size"`
	Workers     int   `yaml:"workers"`
}

// Search holds query-time tunables.
type Search struct {
	DefaultLimit      int     `yaml:"default_limit"`
	DefaultThreshold  float64 `yaml:"default_threshold"`
	FallbackThreshold float64 `yaml:"fallback_threshold"`
}

// Log holds logging settings.
type Log struct {
	Level string `yaml:"level"`
	Debug bool   `yaml:"debug"`
}

// Load reads and parses the config file at path, applies defaults, and
// applies environment overrides. A missing file is not an error: defaults
// plus environment are enough to run.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	if path != "" {
		data, err := os.ReadFile(path)
		if err == nil {
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("failed to parse config: %w", err)
			}
		} else if !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	ApplyDefaults(cfg)
	applyEnv(cfg)
	return cfg, nil
}

// ApplyDefaults fills zero values with reference defaults.
func ApplyDefaults(cfg *Config) {
	if cfg.Provider.Backend == "" {
		cfg.Provider.Backend = "offline"
	}
	if cfg.Provider.CacheSize == 0 {
		cfg.Provider.CacheSize = 10000
	}
	if cfg.Qdrant.URL == "" {
		cfg.Qdrant.URL = "http://localhost:6333"
	}
	if cfg.Qdrant.Collection == "" {
		cfg.Qdrant.Collection = "semlens_code"
	}
	if cfg.Indexing.BatchSize == 0 {
		cfg.Indexing.BatchSize = 5
	}
	if cfg.Indexing.MaxFileSize == 0 {
		cfg.Indexing.MaxFileSize = 500_000
	}
	if cfg.Indexing.Workers == 0 {
		cfg.Indexing.Workers = 2
	}
	if cfg.Search.DefaultLimit == 0 {
		cfg.Search.DefaultLimit = 10
	}
	if cfg.Search.DefaultThreshold == 0 {
		cfg.Search.DefaultThreshold = 0.5
	}
	if cfg.Search.FallbackThreshold == 0 {
		cfg.Search.FallbackThreshold = 0.3
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
}

// applyEnv lets environment variables override file values, so API keys
// never have to live on disk.
func applyEnv(cfg *Config) {
	if v := os.Getenv("SEMLENS_PROVIDER"); v != "" {
		cfg.Provider.Backend = v
	}
	if v := os.Getenv("SEMLENS_API_KEY"); v != "" {
		cfg.Provider.APIKey = v
	}
	if v := os.Getenv("SEMLENS_BASE_URL"); v != "" {
		cfg.Provider.BaseURL = v
	}
	if v := os.Getenv("SEMLENS_QDRANT_URL"); v != "" {
		cfg.Qdrant.URL = v
	}
	if v := os.Getenv("SEMLENS_COLLECTION"); v != "" {
		cfg.Qdrant.Collection = v
	}
}
