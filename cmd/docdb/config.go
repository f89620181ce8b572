package main

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the query configuration.
type Config struct {
	// Index is the blob location: a path, s3://bucket/key, minio://bucket/key,
	// or an http(s) URL.
	Index     string          `yaml:"index"`
	Content   ContentConfig   `yaml:"content"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Fetch     FetchConfig     `yaml:"fetch,omitempty"`
	Search    SearchConfig    `yaml:"search,omitempty"`
	MinIO     MinIOConfig     `yaml:"minio,omitempty"`

	LoadTimeout time.Duration `yaml:"load_timeout,omitempty"`
	MemoryLimit int64         `yaml:"memory_limit,omitempty"`
	LogLevel    string        `yaml:"log_level,omitempty"` // "debug" | "info" | "warn" | "error"
}

// ContentConfig locates the documents behind the index.
type ContentConfig struct {
	// Location is the document root, in the same forms as Config.Index, or
	// dynamodb://table.
	Location string `yaml:"location"`
	// Sharded resolves records without a reference to {prefix}/a/b/c/{id}.md.
	Sharded bool   `yaml:"sharded,omitempty"`
	Prefix  string `yaml:"prefix,omitempty"`
}

// EmbeddingConfig holds the query embedding service configuration.
type EmbeddingConfig struct {
	APIKey     string `yaml:"api_key,omitempty"`
	BaseURL    string `yaml:"base_url,omitempty"`
	Model      string `yaml:"model"`
	Dimensions int    `yaml:"dimensions,omitempty"`
}

// FetchConfig tunes content fetching.
type FetchConfig struct {
	MaxConcurrency int           `yaml:"max_concurrency,omitempty"`
	Timeout        time.Duration `yaml:"timeout,omitempty"`
	BatchTimeout   time.Duration `yaml:"batch_timeout,omitempty"`
	RateLimit      float64       `yaml:"rate_limit,omitempty"`
	Burst          int           `yaml:"burst,omitempty"`
	CacheBytes     int64         `yaml:"cache_bytes,omitempty"`
}

// SearchConfig holds search defaults.
type SearchConfig struct {
	TopK     int      `yaml:"top_k,omitempty"`
	MinScore *float64 `yaml:"min_score,omitempty"`
	Tags     []string `yaml:"tags,omitempty"`
}

// MinIOConfig holds the MinIO endpoint used by minio:// locations.
type MinIOConfig struct {
	Endpoint  string `yaml:"endpoint"`
	AccessKey string `yaml:"access_key,omitempty"`
	SecretKey string `yaml:"secret_key,omitempty"`
	UseSSL    bool   `yaml:"use_ssl,omitempty"`
}

// DefaultConfig returns the configuration used when no file is given.
func DefaultConfig() *Config {
	return &Config{
		Embedding: EmbeddingConfig{Model: "text-embedding-3-small"},
		Search:    SearchConfig{TopK: 5},
		MinIO:     MinIOConfig{Endpoint: "localhost:9000"},
	}
}

// LoadConfig reads path over DefaultConfig and applies environment overrides.
// An empty path yields the defaults.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	cfg.applyEnv()
	return cfg, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv("OPENAI_API_KEY"); v != "" && c.Embedding.APIKey == "" {
		c.Embedding.APIKey = v
	}
	if v := os.Getenv("OPENAI_BASE_URL"); v != "" && c.Embedding.BaseURL == "" {
		c.Embedding.BaseURL = v
	}
	if v := os.Getenv("MINIO_ACCESS_KEY"); v != "" && c.MinIO.AccessKey == "" {
		c.MinIO.AccessKey = v
	}
	if v := os.Getenv("MINIO_SECRET_KEY"); v != "" && c.MinIO.SecretKey == "" {
		c.MinIO.SecretKey = v
	}
	if v := os.Getenv("DOCDB_INDEX"); v != "" {
		c.Index = v
	}
}

// Validate checks that the configuration can serve a query.
func (c *Config) Validate() error {
	if c.Index == "" {
		return errors.New("index location is required")
	}
	if c.Search.TopK < 0 {
		return fmt.Errorf("search.top_k must not be negative, got %d", c.Search.TopK)
	}
	if c.Fetch.MaxConcurrency < 0 {
		return fmt.Errorf("fetch.max_concurrency must not be negative, got %d", c.Fetch.MaxConcurrency)
	}
	return nil
}
