// Package config loads the daemon configuration from a YAML file with
// environment variable overrides on top.
package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Config is the full daemon configuration.
type Config struct {
	Server struct {
		Port string `yaml:"port"`
	} `yaml:"server"`

	Catalog struct {
		Path string `yaml:"path"`
	} `yaml:"catalog"`

	Storage struct {
		// Backend is "memory" or "postgres".
		Backend string `yaml:"backend"`
	} `yaml:"storage"`

	Events struct {
		// Backend is "inproc" or "nats".
		Backend       string `yaml:"backend"`
		NATSURL       string `yaml:"nats_url"`
		StreamName    string `yaml:"stream_name"`
		SubjectPrefix string `yaml:"subject_prefix"`
	} `yaml:"events"`
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	cfg := &Config{}
	cfg.Server.Port = "8080"
	cfg.Catalog.Path = "players.json"
	cfg.Storage.Backend = "memory"
	cfg.Events.Backend = "inproc"
	cfg.Events.NATSURL = "nats://localhost:4222"
	cfg.Events.StreamName = "ROOM_EVENTS"
	cfg.Events.SubjectPrefix = "room.events"
	return cfg
}

// Load reads the YAML file at path, falling back to defaults for anything
// unset, and applies environment overrides last.
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

	cfg.applyEnv()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	c.Server.Port = getEnv("PORT", c.Server.Port)
	c.Catalog.Path = getEnv("CATALOG_PATH", c.Catalog.Path)
	c.Storage.Backend = getEnv("STORAGE_BACKEND", c.Storage.Backend)
	c.Events.Backend = getEnv("EVENTS_BACKEND", c.Events.Backend)
	c.Events.NATSURL = getEnv("NATS_URL", c.Events.NATSURL)
}

func (c *Config) validate() error {
	switch c.Storage.Backend {
	case "memory", "postgres":
	default:
		return fmt.Errorf("unknown storage backend %q", c.Storage.Backend)
	}
	switch c.Events.Backend {
	case "inproc", "nats":
	default:
		return fmt.Errorf("unknown events backend %q", c.Events.Backend)
	}
	if _, err := strconv.Atoi(c.Server.Port); err != nil {
		return fmt.Errorf("invalid server port %q", c.Server.Port)
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
