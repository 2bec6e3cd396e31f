// Package config loads host configuration from the environment, plus an
// optional YAML channel manifest applied once at startup.
package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config holds all host configuration.
type Config struct {
	Server    ServerConfig
	Bridge    BridgeConfig
	Logging   LogConfig
	RateLimit RateLimitConfig
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port string `envconfig:"PORT" default:"8090"`
	Host string `envconfig:"HOST" default:"0.0.0.0"`
}

// BridgeConfig holds bridge behavior configuration.
type BridgeConfig struct {
	// RequestTimeout is the default deadline for request/response channels.
	RequestTimeout time.Duration `envconfig:"BRIDGE_REQUEST_TIMEOUT" default:"30s"`
	// HeartbeatInterval drives the host.heartbeat push channel.
	HeartbeatInterval time.Duration `envconfig:"BRIDGE_HEARTBEAT_INTERVAL" default:"15s"`
	// ManifestPath optionally points at a YAML channel manifest.
	ManifestPath string `envconfig:"BRIDGE_MANIFEST" default:""`
	// StoragePath is where the storage provider keeps its snapshot.
	StoragePath string `envconfig:"BRIDGE_STORAGE_PATH" default:"/tmp/prism-storage"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level       string `envconfig:"LOG_LEVEL" default:"info"`
	Development bool   `envconfig:"LOG_DEV" default:"false"`
}

// RateLimitConfig holds HTTP rate limiting configuration.
type RateLimitConfig struct {
	RequestsPerSecond int  `envconfig:"RATE_LIMIT_RPS" default:"100"`
	Burst             int  `envconfig:"RATE_LIMIT_BURST" default:"200"`
	Enabled           bool `envconfig:"RATE_LIMIT_ENABLED" default:"true"`
}

// Load loads configuration from environment variables.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return &cfg, nil
}

// LoadOrDefault loads configuration from environment or returns defaults.
func LoadOrDefault() *Config {
	cfg, err := Load()
	if err != nil {
		return Default()
	}
	return cfg
}

// Default returns default configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port: "8090",
			Host: "0.0.0.0",
		},
		Bridge: BridgeConfig{
			RequestTimeout:    30 * time.Second,
			HeartbeatInterval: 15 * time.Second,
			StoragePath:       "/tmp/prism-storage",
		},
		Logging: LogConfig{
			Level:       "info",
			Development: false,
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: 100,
			Burst:             200,
			Enabled:           true,
		},
	}
}
