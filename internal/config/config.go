package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all bleu configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	Retention RetentionConfig `yaml:"retention"`
	Retry     RetryConfig     `yaml:"retry"`
	Worker    WorkerConfig    `yaml:"worker"`
}

type ServerConfig struct {
	Bind string `yaml:"bind"`
	Port int    `yaml:"port"`
}

type DatabaseConfig struct {
	Path string `yaml:"path"`
}

type RetentionConfig struct {
	Cap int `yaml:"cap"` // max active assets per owner
}

type RetryConfig struct {
	MaxAttempts int           `yaml:"max_attempts"`
	BaseDelay   time.Duration `yaml:"base_delay"` // delay after the first failure
	MaxDelay    time.Duration `yaml:"max_delay"`
}

type WorkerConfig struct {
	RedeliveryInterval time.Duration `yaml:"redelivery_interval"`
}

// Default returns a Config with sensible defaults.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Bind: "127.0.0.1",
			Port: 37778,
		},
		Database: DatabaseConfig{
			Path: "", // resolved at runtime via store.DefaultDBPath()
		},
		Retention: RetentionConfig{
			Cap: 5,
		},
		Retry: RetryConfig{
			MaxAttempts: 3,
			BaseDelay:   time.Minute,
			MaxDelay:    time.Hour,
		},
		Worker: WorkerConfig{
			RedeliveryInterval: 15 * time.Second,
		},
	}
}

// Load reads a YAML config file over the defaults. A missing file is not an
// error; an empty path returns the defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

// ApplyEnv overrides fields from BLEU_DB, BLEU_BIND and BLEU_PORT.
func (c *Config) ApplyEnv() error {
	if v := os.Getenv("BLEU_DB"); v != "" {
		c.Database.Path = v
	}
	if v := os.Getenv("BLEU_BIND"); v != "" {
		c.Server.Bind = v
	}
	if v := os.Getenv("BLEU_PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("BLEU_PORT: %w", err)
		}
		c.Server.Port = port
	}
	return nil
}

// Validate rejects settings the policy engine would refuse at call time.
func (c *Config) Validate() error {
	if c.Retention.Cap <= 0 {
		return fmt.Errorf("retention.cap must be positive, got %d", c.Retention.Cap)
	}
	if c.Retry.MaxAttempts <= 0 {
		return fmt.Errorf("retry.max_attempts must be positive, got %d", c.Retry.MaxAttempts)
	}
	if c.Retry.BaseDelay <= 0 {
		return fmt.Errorf("retry.base_delay must be positive, got %s", c.Retry.BaseDelay)
	}
	if c.Retry.MaxDelay < c.Retry.BaseDelay {
		return fmt.Errorf("retry.max_delay (%s) is below retry.base_delay (%s)", c.Retry.MaxDelay, c.Retry.BaseDelay)
	}
	if c.Worker.RedeliveryInterval <= 0 {
		return fmt.Errorf("worker.redelivery_interval must be positive, got %s", c.Worker.RedeliveryInterval)
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port out of range: %d", c.Server.Port)
	}
	return nil
}

// ListenAddr returns the bind:port address string.
func (c *Config) ListenAddr() string {
	return fmt.Sprintf("%s:%d", c.Server.Bind, c.Server.Port)
}
