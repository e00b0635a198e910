// Package server exposes the capture coordinator over HTTP: session
// lifecycle endpoints, chunk ingestion, and a websocket progress stream.
package server

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config holds the full server configuration.
type Config struct {
	Listen          string `yaml:"listen"`
	DataDir         string `yaml:"data_dir"`
	DBPath          string `yaml:"db_path"`
	MaxChunkMB      int    `yaml:"max_chunk_mb"`
	MaxAssetMB      int    `yaml:"max_asset_mb"`
	AssetTimeoutSec int    `yaml:"asset_timeout_sec"`
	ClosedCacheSize int    `yaml:"closed_cache_size"`
}

// DefaultConfig returns sane defaults.
func DefaultConfig() *Config {
	return &Config{
		Listen:          ":8090",
		DataDir:         "data",
		DBPath:          "pageforge.db",
		MaxChunkMB:      16,
		MaxAssetMB:      25,
		AssetTimeoutSec: 5,
		ClosedCacheSize: 256,
	}
}

// LoadConfig reads and parses a YAML config file, merged over defaults.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, cfg.Validate()
}

// Validate checks that required fields are present and values are sane.
func (c *Config) Validate() error {
	if c.Listen == "" {
		return fmt.Errorf("listen is required")
	}
	if c.DataDir == "" {
		return fmt.Errorf("data_dir is required")
	}
	if c.DBPath == "" {
		return fmt.Errorf("db_path is required")
	}
	if c.MaxChunkMB <= 0 {
		return fmt.Errorf("max_chunk_mb must be > 0")
	}
	if c.MaxAssetMB <= 0 {
		return fmt.Errorf("max_asset_mb must be > 0")
	}
	if c.AssetTimeoutSec <= 0 {
		return fmt.Errorf("asset_timeout_sec must be > 0")
	}
	return nil
}

// MaxChunkBytes returns the request body cap for the chunk endpoint.
func (c *Config) MaxChunkBytes() int64 { return int64(c.MaxChunkMB) * 1024 * 1024 }

// MaxAssetBytes returns the per-asset download cap.
func (c *Config) MaxAssetBytes() int64 { return int64(c.MaxAssetMB) * 1024 * 1024 }
