package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the YAML-backed configuration of the server.
type Config struct {
	Server struct {
		Address string `yaml:"address"`
		Port    int    `yaml:"port"`
	} `yaml:"server"`
	Storage struct {
		DBPath string `yaml:"db_path"`
	} `yaml:"storage"`
	Logging struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"` // text|json
	} `yaml:"logging"`
	Security struct {
		SigningSecret string `yaml:"signing_secret"`
		RateLimit     struct {
			RPS   float64 `yaml:"rps"`
			Burst int     `yaml:"burst"`
		} `yaml:"rate_limit"`
	} `yaml:"security"`
	Threads struct {
		// FollowTTL is a Go duration string bounding subscription
		// lifetime; defaults to 12h.
		FollowTTL   string `yaml:"follow_ttl"`
		ReplayLimit int    `yaml:"replay_limit"`
	} `yaml:"threads"`
	Retention struct {
		Enabled bool   `yaml:"enabled"`
		Cron    string `yaml:"cron"`
	} `yaml:"retention"`
}

// Default returns the built-in configuration.
func Default() *Config {
	var c Config
	c.Server.Address = "0.0.0.0"
	c.Server.Port = 8080
	c.Storage.DBPath = "./.database"
	c.Logging.Level = "info"
	c.Logging.Format = "text"
	c.Threads.FollowTTL = "12h"
	c.Threads.ReplayLimit = 20
	c.Retention.Enabled = true
	c.Retention.Cron = "0 * * * *"
	return &c
}

// Load reads a YAML config file over the defaults, then applies
// environment overrides. A missing file is not an error; env and defaults
// still apply.
func Load(path string) (*Config, error) {
	c := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, c); err != nil {
				return nil, fmt.Errorf("parse config %s: %w", path, err)
			}
		case os.IsNotExist(err):
			// fall through to env/defaults
		default:
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}
	applyEnv(c)
	return c, nil
}

func applyEnv(c *Config) {
	if v := os.Getenv("THREADCAST_ADDR"); v != "" {
		c.Server.Address = v
	}
	if v := os.Getenv("THREADCAST_DB_PATH"); v != "" {
		c.Storage.DBPath = v
	}
	if v := os.Getenv("THREADCAST_SIGNING_SECRET"); v != "" {
		c.Security.SigningSecret = v
	}
	if v := os.Getenv("THREADCAST_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
}

// Addr returns the listen address in host:port form. An Address already
// carrying a port wins over the Port field.
func (c *Config) Addr() string {
	if c.Server.Port == 0 {
		return c.Server.Address
	}
	return fmt.Sprintf("%s:%d", c.Server.Address, c.Server.Port)
}

// FollowTTL parses the configured subscription lifetime.
func (c *Config) FollowTTL() (time.Duration, error) {
	if c.Threads.FollowTTL == "" {
		return 12 * time.Hour, nil
	}
	d, err := time.ParseDuration(c.Threads.FollowTTL)
	if err != nil {
		return 0, fmt.Errorf("invalid threads.follow_ttl %q: %w", c.Threads.FollowTTL, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("threads.follow_ttl must be positive, got %q", c.Threads.FollowTTL)
	}
	return d, nil
}
