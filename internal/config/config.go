// Package config loads the gateway's process configuration from an optional
// YAML file with environment-variable overrides.
package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Backend selects the concrete storage backend at configuration time.
type Backend string

const (
	BackendSQLite Backend = "sqlite"
	BackendMemory Backend = "memory"
)

// Config holds the gateway's process configuration.
type Config struct {
	ListenAddr       string  `yaml:"listen_addr"`
	DataDir          string  `yaml:"data_dir"`
	Backend          Backend `yaml:"backend"`
	LogLevel         string  `yaml:"log_level"`
	RetentionSeconds int     `yaml:"retention_seconds"`
	GCIntervalSecs   int     `yaml:"gc_interval_seconds"`
	MetricsEnabled   bool    `yaml:"metrics_enabled"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		ListenAddr:       ":8790",
		DataDir:          "./data",
		Backend:          BackendSQLite,
		LogLevel:         "info",
		RetentionSeconds: 30 * 24 * 60 * 60, // 30 days
		GCIntervalSecs:   3600,
		MetricsEnabled:   true,
	}
}

// Load builds the configuration: defaults, then the YAML file at path (if
// path is non-empty), then environment overrides. It validates the result
// and fails fast on anything unusable.
func Load(path string) (*Config, error) {
	cfg := Default()

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

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnv overrides fields from the environment.
func (c *Config) applyEnv() {
	c.ListenAddr = getEnv("SYNCD_LISTEN_ADDR", c.ListenAddr)
	c.DataDir = getEnv("SYNCD_DATA_DIR", c.DataDir)
	c.Backend = Backend(getEnv("SYNCD_BACKEND", string(c.Backend)))
	c.LogLevel = getEnv("SYNCD_LOG_LEVEL", c.LogLevel)
	c.RetentionSeconds = getEnvAsInt("SYNCD_RETENTION_SECONDS", c.RetentionSeconds)
	c.GCIntervalSecs = getEnvAsInt("SYNCD_GC_INTERVAL_SECONDS", c.GCIntervalSecs)
	if v := os.Getenv("SYNCD_METRICS_ENABLED"); v != "" {
		c.MetricsEnabled = v == "1" || v == "true"
	}
}

// Validate checks the configuration for startup-blocking problems.
func (c *Config) Validate() error {
	switch c.Backend {
	case BackendSQLite, BackendMemory:
	default:
		return fmt.Errorf("unknown backend %q (want %q or %q)", c.Backend, BackendSQLite, BackendMemory)
	}
	if c.ListenAddr == "" {
		return fmt.Errorf("listen_addr must not be empty")
	}
	if c.Backend == BackendSQLite && c.DataDir == "" {
		return fmt.Errorf("data_dir must not be empty for the sqlite backend")
	}
	if c.RetentionSeconds < 0 {
		return fmt.Errorf("retention_seconds must not be negative")
	}
	if c.GCIntervalSecs <= 0 {
		return fmt.Errorf("gc_interval_seconds must be positive")
	}
	return nil
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	valStr := os.Getenv(key)
	if valStr == "" {
		return fallback
	}
	val, err := strconv.Atoi(valStr)
	if err != nil {
		return fallback
	}
	return val
}
