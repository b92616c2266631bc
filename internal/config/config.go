// Package config loads the service configuration from an optional YAML
// file, then applies environment overrides. Env always wins.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Port         string        `yaml:"port"`
	APIURL       string        `yaml:"api_url"`
	APIToken     string        `yaml:"api_token"`
	PushURL      string        `yaml:"push_url"`
	DatabaseURL  string        `yaml:"database_url"`
	PollInterval time.Duration `yaml:"poll_interval"`
	LogDev       bool          `yaml:"log_dev"`
}

func Default() Config {
	return Config{
		Port:         "8080",
		PollInterval: 15 * time.Second,
	}
}

// Load reads path when it exists; a missing file just means defaults.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil && !os.IsNotExist(err) {
			return cfg, fmt.Errorf("read config: %w", err)
		}
		if err == nil {
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return cfg, fmt.Errorf("parse config: %w", err)
			}
		}
	}

	cfg.applyEnv()

	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 15 * time.Second
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv("PORT"); v != "" {
		c.Port = v
	}
	if v := os.Getenv("INBOX_API_URL"); v != "" {
		c.APIURL = v
	}
	if v := os.Getenv("INBOX_API_TOKEN"); v != "" {
		c.APIToken = v
	}
	if v := os.Getenv("INBOX_PUSH_URL"); v != "" {
		c.PushURL = v
	}
	if v := os.Getenv("DATABASE_URL"); v != "" {
		c.DatabaseURL = v
	}
	if v := os.Getenv("POLL_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			c.PollInterval = d
		}
	}
	if v := os.Getenv("LOG_DEV"); v == "1" || v == "true" {
		c.LogDev = true
	}
}
