// Package config handles configuration loading for the plate viewer.
package config

import (
	"os"

	"gopkg.in/yaml.v3"
)

// Config represents the viewer configuration.
type Config struct {
	Cache  CacheConfig  `yaml:"cache"`
	Decode DecodeConfig `yaml:"decode"`
	Render RenderConfig `yaml:"render"`
}

// CacheConfig contains caching settings.
type CacheConfig struct {
	MaxImages        int `yaml:"max_images"`
	RenderSizeMB     int `yaml:"render_size_mb"`
	RenderTTLMinutes int `yaml:"render_ttl_minutes"`
}

// DecodeConfig contains decode worker settings.
type DecodeConfig struct {
	Workers int `yaml:"workers"`
}

// RenderConfig contains rendering settings.
type RenderConfig struct {
	ThumbnailSize int `yaml:"thumbnail_size"`
}

// Load reads configuration from a YAML file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		// Return default config if file doesn't exist
		return DefaultConfig(), nil
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	// Apply defaults for missing values
	applyDefaults(&cfg)

	return &cfg, nil
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Cache: CacheConfig{
			MaxImages:        64,
			RenderSizeMB:     128,
			RenderTTLMinutes: 10,
		},
		Decode: DecodeConfig{
			Workers: 4,
		},
		Render: RenderConfig{
			ThumbnailSize: 80,
		},
	}
}

func applyDefaults(cfg *Config) {
	defaults := DefaultConfig()

	if cfg.Cache.MaxImages == 0 {
		cfg.Cache.MaxImages = defaults.Cache.MaxImages
	}
	if cfg.Cache.RenderSizeMB == 0 {
		cfg.Cache.RenderSizeMB = defaults.Cache.RenderSizeMB
	}
	if cfg.Cache.RenderTTLMinutes == 0 {
		cfg.Cache.RenderTTLMinutes = defaults.Cache.RenderTTLMinutes
	}
	if cfg.Decode.Workers == 0 {
		cfg.Decode.Workers = defaults.Decode.Workers
	}
	if cfg.Render.ThumbnailSize == 0 {
		cfg.Render.ThumbnailSize = defaults.Render.ThumbnailSize
	}
}
