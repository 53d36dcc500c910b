// Package config provides runtime configuration for the gridtext tooling and
// embedded index runtimes.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the runtime configuration for an index host.
type Config struct {
	// DataDir is the base directory index partition files live under when an
	// index declares no directory_path of its own.
	DataDir string `json:"data_dir" yaml:"data_dir"`

	// Search configures the fan-out behavior.
	Search SearchConfig `json:"search" yaml:"search"`

	// Pool configures the shared SQLite connection pool.
	Pool PoolConfig `json:"pool" yaml:"pool"`

	// Stats configures search statistics retention.
	Stats StatsConfig `json:"stats" yaml:"stats"`
}

// SearchConfig holds fan-out search configuration.
type SearchConfig struct {
	// Concurrency is the number of partitions scanned in parallel.
	Concurrency int `json:"concurrency" yaml:"concurrency"`

	// Timeout is the default per-search deadline. Zero means no deadline.
	Timeout time.Duration `json:"timeout" yaml:"timeout"`
}

// PoolConfig holds connection pool configuration.
type PoolConfig struct {
	// MaxConnections is the maximum open partition files across all indexes.
	MaxConnections int `json:"max_connections" yaml:"max_connections"`

	// IdleTimeout is how long an unreferenced partition handle stays open.
	IdleTimeout time.Duration `json:"idle_timeout" yaml:"idle_timeout"`
}

// StatsConfig holds search statistics configuration.
type StatsConfig struct {
	// Window is how long idle per-partition entries are retained.
	Window time.Duration `json:"window" yaml:"window"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		DataDir: "./data",
		Search: SearchConfig{
			Concurrency: 8,
			Timeout:     30 * time.Second,
		},
		Pool: PoolConfig{
			MaxConnections: 64,
			IdleTimeout:    5 * time.Minute,
		},
		Stats: StatsConfig{
			Window: time.Hour,
		},
	}
}

// Validate checks the configuration for inconsistencies.
func (c *Config) Validate() error {
	if c.DataDir == "" {
		return fmt.Errorf("config: data_dir is required")
	}
	if c.Search.Concurrency <= 0 {
		return fmt.Errorf("config: search.concurrency must be positive, found %d", c.Search.Concurrency)
	}
	if c.Search.Timeout < 0 {
		return fmt.Errorf("config: search.timeout must not be negative, found %s", c.Search.Timeout)
	}
	if c.Pool.MaxConnections <= 0 {
		return fmt.Errorf("config: pool.max_connections must be positive, found %d", c.Pool.MaxConnections)
	}
	return nil
}

// LoadFromFile loads configuration from a YAML or JSON file, starting from
// defaults.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: failed to read %s: %w", path, err)
	}

	cfg := DefaultConfig()
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("config: failed to parse YAML %s: %w", path, err)
		}
	case ".json":
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("config: failed to parse JSON %s: %w", path, err)
		}
	default:
		return nil, fmt.Errorf("config: unsupported file extension %q (want .yaml, .yml or .json)", filepath.Ext(path))
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFromEnv overlays configuration from environment variables. Variables
// use the GRIDTEXT_ prefix.
func LoadFromEnv(cfg *Config) {
	if v := os.Getenv("GRIDTEXT_DATA_DIR"); v != "" {
		cfg.DataDir = v
	}
	if v := os.Getenv("GRIDTEXT_SEARCH_CONCURRENCY"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Search.Concurrency = n
		}
	}
	if v := os.Getenv("GRIDTEXT_SEARCH_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Search.Timeout = d
		}
	}
	if v := os.Getenv("GRIDTEXT_POOL_MAX_CONNECTIONS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Pool.MaxConnections = n
		}
	}
	if v := os.Getenv("GRIDTEXT_POOL_IDLE_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Pool.IdleTimeout = d
		}
	}
	if v := os.Getenv("GRIDTEXT_STATS_WINDOW"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Stats.Window = d
		}
	}
}
