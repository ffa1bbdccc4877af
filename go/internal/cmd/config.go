package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"
)

const (
	StoreDriverPostgres = "postgres"
	StoreDriverMemory   = "memory"

	RelayModeDirect    = "direct"
	RelayModeJetStream = "jetstream"
)

type Config struct {
	Server struct {
		Port            string        `yaml:"port"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	} `yaml:"server"`

	LogLevel string `yaml:"log_level"`

	Store struct {
		Driver string `yaml:"driver"`
	} `yaml:"store"`

	Snapshot struct {
		// CompletedRetention limits how far back completed orders appear in
		// a new observer's snapshot. Zero keeps all of them.
		CompletedRetention time.Duration `yaml:"completed_retention"`
	} `yaml:"snapshot"`

	Events struct {
		// BroadcastTimeout bounds how long a committed change may wait to
		// reach the broadcaster.
		BroadcastTimeout time.Duration `yaml:"broadcast_timeout"`
	} `yaml:"events"`

	Relay struct {
		Mode           string `yaml:"mode"`
		NATSURL        string `yaml:"nats_url"`
		ConsumerPrefix string `yaml:"consumer_prefix"`
	} `yaml:"relay"`

	Waiters struct {
		PasskeyCost int `yaml:"passkey_cost"`
	} `yaml:"waiters"`
}

func defaultConfig() *Config {
	var c Config
	c.Server.Port = "8080"
	c.Server.ShutdownTimeout = 10 * time.Second
	c.LogLevel = "info"
	c.Store.Driver = StoreDriverPostgres
	c.Events.BroadcastTimeout = 5 * time.Second
	c.Relay.Mode = RelayModeDirect
	c.Relay.NATSURL = "nats://localhost:4222"
	c.Relay.ConsumerPrefix = "tableside-gateway"
	c.Waiters.PasskeyCost = 10
	return &c
}

// loadConfig reads the YAML file at path over the defaults, then applies
// environment overrides. A missing file is not an error.
func loadConfig(path string) (*Config, error) {
	config := defaultConfig()

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("failed to read config file: %w", err)
	default:
		if err := yaml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	if err := config.applyEnv(); err != nil {
		return nil, err
	}
	if err := config.validate(); err != nil {
		return nil, err
	}
	return config, nil
}

func (c *Config) applyEnv() error {
	c.Server.Port = getEnv("PORT", c.Server.Port)
	c.LogLevel = getEnv("LOG_LEVEL", c.LogLevel)
	c.Store.Driver = getEnv("STORE_DRIVER", c.Store.Driver)
	c.Relay.Mode = getEnv("RELAY_MODE", c.Relay.Mode)
	c.Relay.NATSURL = getEnv("NATS_URL", c.Relay.NATSURL)

	if v := os.Getenv("SNAPSHOT_COMPLETED_RETENTION"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid SNAPSHOT_COMPLETED_RETENTION: %w", err)
		}
		c.Snapshot.CompletedRetention = d
	}
	if v := os.Getenv("BROADCAST_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid BROADCAST_TIMEOUT: %w", err)
		}
		c.Events.BroadcastTimeout = d
	}
	if v := os.Getenv("PASSKEY_COST"); v != "" {
		cost, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid PASSKEY_COST: %w", err)
		}
		c.Waiters.PasskeyCost = cost
	}
	return nil
}

func (c *Config) validate() error {
	switch c.Store.Driver {
	case StoreDriverPostgres, StoreDriverMemory:
	default:
		return fmt.Errorf("unknown store driver %q", c.Store.Driver)
	}
	switch c.Relay.Mode {
	case RelayModeDirect, RelayModeJetStream:
	default:
		return fmt.Errorf("unknown relay mode %q", c.Relay.Mode)
	}
	if c.Events.BroadcastTimeout <= 0 {
		return fmt.Errorf("broadcast timeout must be positive")
	}
	if c.Snapshot.CompletedRetention < 0 {
		return fmt.Errorf("snapshot retention must not be negative")
	}
	if _, err := zerolog.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("invalid log level %q: %w", c.LogLevel, err)
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
