package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the server configuration. Values come from an optional YAML
// file, with DRAFTROOM_* environment variables taking precedence.
type Config struct {
	Addr           string   `yaml:"addr"`
	AllowedOrigins []string `yaml:"allowed_origins"`
	CatalogPath    string   `yaml:"catalog_path"`

	TurnSeconds     int `yaml:"turn_seconds"`
	PickQuota       int `yaml:"pick_quota"`
	GraceWindowSec  int `yaml:"grace_window_sec"`
	ReapIntervalSec int `yaml:"reap_interval_sec"`
}

// Default returns the configuration used when no file or environment
// overrides are present.
func Default() *Config {
	return &Config{
		Addr:            ":8081",
		AllowedOrigins:  []string{"*"},
		TurnSeconds:     10,
		PickQuota:       5,
		GraceWindowSec:  300,
		ReapIntervalSec: 60,
	}
}

// Load builds the configuration: defaults, then the YAML file at path
// (if path is non-empty), then environment overrides.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	cfg.Addr = getEnv("DRAFTROOM_ADDR", cfg.Addr)
	cfg.CatalogPath = getEnv("DRAFTROOM_CATALOG_PATH", cfg.CatalogPath)
	cfg.TurnSeconds = getEnvAsInt("DRAFTROOM_TURN_SECONDS", cfg.TurnSeconds)
	cfg.PickQuota = getEnvAsInt("DRAFTROOM_PICK_QUOTA", cfg.PickQuota)
	cfg.GraceWindowSec = getEnvAsInt("DRAFTROOM_GRACE_WINDOW_SEC", cfg.GraceWindowSec)
	cfg.ReapIntervalSec = getEnvAsInt("DRAFTROOM_REAP_INTERVAL_SEC", cfg.ReapIntervalSec)

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.TurnSeconds <= 0 {
		return fmt.Errorf("turn_seconds must be positive, got %d", c.TurnSeconds)
	}
	if c.PickQuota <= 0 {
		return fmt.Errorf("pick_quota must be positive, got %d", c.PickQuota)
	}
	if c.GraceWindowSec <= 0 {
		return fmt.Errorf("grace_window_sec must be positive, got %d", c.GraceWindowSec)
	}
	if c.ReapIntervalSec <= 0 {
		return fmt.Errorf("reap_interval_sec must be positive, got %d", c.ReapIntervalSec)
	}
	return nil
}

func (c *Config) TurnDuration() time.Duration { return time.Duration(c.TurnSeconds) * time.Second }

func (c *Config) GraceWindow() time.Duration {
	return time.Duration(c.GraceWindowSec) * time.Second
}

func (c *Config) ReapInterval() time.Duration {
	return time.Duration(c.ReapIntervalSec) * time.Second
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}
