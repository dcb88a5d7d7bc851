// Package config loads daemon configuration from a YAML file with
// environment overrides.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the daemon configuration
type Config struct {
	// Listen is the gRPC listen address of the Host.
	Listen string `yaml:"listen"`

	// AdvertiseHost overrides the hostname embedded in refs minted by this
	// Host. Needed when listening on 0.0.0.0 behind a reachable name.
	AdvertiseHost string `yaml:"advertise_host"`

	// HTTPPort serves /metrics and /health.
	HTTPPort int `yaml:"http_port"`

	Host      HostConfig      `yaml:"host"`
	TLS       TLSConfig       `yaml:"tls"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
}

// HostConfig holds worker pool and retention tuning.
type HostConfig struct {
	PoolSize  int    `yaml:"pool_size"`
	QueueSize int    `yaml:"queue_size"`
	Retention string `yaml:"retention"` // duration, e.g. "5m"
}

// TLSConfig holds transport security settings.
type TLSConfig struct {
	Enabled  bool   `yaml:"enabled"`
	CertFile string `yaml:"cert_file"`
	KeyFile  string `yaml:"key_file"`
	CAFile   string `yaml:"ca_file"`
}

// RateLimitConfig bounds inbound create/invoke calls.
type RateLimitConfig struct {
	Enabled           bool    `yaml:"enabled"`
	RequestsPerSecond float64 `yaml:"requests_per_second"`
	Burst             int     `yaml:"burst"`
}

// LoadConfig loads configuration from a YAML file. path may be empty, in
// which case only defaults and environment overrides apply.
func LoadConfig(path string) (*Config, error) {
	var cfg Config

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	// Apply defaults
	if cfg.Listen == "" {
		cfg.Listen = "0.0.0.0:7410"
	}
	if cfg.HTTPPort == 0 {
		cfg.HTTPPort = 8080
	}
	if cfg.Host.PoolSize == 0 {
		cfg.Host.PoolSize = 8
	}
	if cfg.Host.QueueSize == 0 {
		cfg.Host.QueueSize = 64
	}
	if cfg.Host.Retention == "" {
		cfg.Host.Retention = "5m"
	}
	if cfg.RateLimit.RequestsPerSecond == 0 {
		cfg.RateLimit.RequestsPerSecond = 100
	}
	if cfg.RateLimit.Burst == 0 {
		cfg.RateLimit.Burst = 200
	}

	// Environment overrides
	if v := os.Getenv("AXON_LISTEN"); v != "" {
		cfg.Listen = v
	}
	if v := os.Getenv("AXON_ADVERTISE_HOST"); v != "" {
		cfg.AdvertiseHost = v
	}
	if v := os.Getenv("PORT"); v != "" {
		if p, err := strconv.Atoi(v); err == nil {
			cfg.HTTPPort = p
		}
	}
	if v := os.Getenv("AXON_POOL_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Host.PoolSize = n
		}
	}
	if v := os.Getenv("AXON_QUEUE_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Host.QueueSize = n
		}
	}

	return &cfg, nil
}

// Retention parses the configured retention period.
func (c *Config) Retention() (time.Duration, error) {
	d, err := time.ParseDuration(c.Host.Retention)
	if err != nil {
		return 0, fmt.Errorf("invalid retention %q: %w", c.Host.Retention, err)
	}
	return d, nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Host.PoolSize < 1 {
		return fmt.Errorf("host.pool_size must be at least 1")
	}
	if c.Host.QueueSize < 1 {
		return fmt.Errorf("host.queue_size must be at least 1")
	}
	if _, err := c.Retention(); err != nil {
		return err
	}
	if c.TLS.Enabled && (c.TLS.CertFile == "" || c.TLS.KeyFile == "") {
		return fmt.Errorf("tls requires cert_file and key_file")
	}
	return nil
}
