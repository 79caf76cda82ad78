// Package config loads the relay's YAML configuration.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Storage backends selectable with storage.type.
const (
	StorageMemory   = "memory"
	StoragePostgres = "postgres"
	StorageRedis    = "redis"
)

// ErrUnknownStorage is returned by Validate for an unsupported storage.type.
var ErrUnknownStorage = errors.New("unknown storage type")

// Config is the whole application configuration.
type Config struct {
	Server struct {
		Addr           string        `yaml:"addr"`
		ReadTimeout    time.Duration `yaml:"read_timeout"`
		WriteTimeout   time.Duration `yaml:"write_timeout"`
		AllowedOrigins []string      `yaml:"allowed_origins"`
		SendQueueSize  int           `yaml:"send_queue_size"`
		StaticDir      string        `yaml:"static_dir"`
	} `yaml:"server"`

	Game struct {
		GuestPrefix          string   `yaml:"guest_prefix"`
		SinglePlayerScenes   []string `yaml:"single_player_scenes"`
		ResetProgressOnDeath bool     `yaml:"reset_progress_on_death"`
	} `yaml:"game"`

	Storage struct {
		Type     string `yaml:"type"`
		Postgres struct {
			URL      string `yaml:"url"`
			MaxConns int32  `yaml:"max_conns"`
			MinConns int32  `yaml:"min_conns"`
			Migrate  bool   `yaml:"migrate"`
		} `yaml:"postgres"`
		Redis struct {
			URL          string `yaml:"url"`
			PoolSize     int    `yaml:"pool_size"`
			MinIdleConns int    `yaml:"min_idle_conns"`
		} `yaml:"redis"`
	} `yaml:"storage"`

	Log struct {
		Level      string `yaml:"level"`
		File       string `yaml:"file"`
		MaxSizeMB  int    `yaml:"max_size_mb"`
		MaxBackups int    `yaml:"max_backups"`
		MaxAgeDays int    `yaml:"max_age_days"`
	} `yaml:"log"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	c := &Config{}
	c.Server.Addr = ":3000"
	c.Server.ReadTimeout = 60 * time.Second
	c.Server.WriteTimeout = 5 * time.Second
	c.Server.SendQueueSize = 64

	c.Game.GuestPrefix = "guest_"
	c.Game.SinglePlayerScenes = []string{"Combat"}
	c.Game.ResetProgressOnDeath = true

	c.Storage.Type = StorageMemory
	c.Storage.Postgres.MaxConns = 10
	c.Storage.Postgres.MinConns = 2
	c.Storage.Postgres.Migrate = true
	c.Storage.Redis.URL = "redis://localhost:6379"
	c.Storage.Redis.PoolSize = 10
	c.Storage.Redis.MinIdleConns = 2

	c.Log.Level = "info"
	c.Log.File = "app.log"
	c.Log.MaxSizeMB = 10
	c.Log.MaxBackups = 3
	c.Log.MaxAgeDays = 7
	return c
}

// Load reads path over the defaults and applies environment overrides.
// An empty path yields the defaults plus overrides.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		// #nosec G304 - path comes from the operator's --config flag
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}
	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv("SCENERELAY_ADDR"); v != "" {
		c.Server.Addr = v
	}
	if v := os.Getenv("SCENERELAY_STORAGE"); v != "" {
		c.Storage.Type = v
	}
	if v := os.Getenv("DATABASE_URL"); v != "" {
		c.Storage.Postgres.URL = v
	}
	if v := os.Getenv("REDIS_URL"); v != "" {
		c.Storage.Redis.URL = v
	}
}

// Validate checks the settings that would otherwise fail late.
func (c *Config) Validate() error {
	switch c.Storage.Type {
	case StorageMemory, StorageRedis:
	case StoragePostgres:
		if c.Storage.Postgres.URL == "" {
			return errors.New("storage.postgres.url is required for postgres storage")
		}
	default:
		return fmt.Errorf("%w: %q", ErrUnknownStorage, c.Storage.Type)
	}
	if c.Game.GuestPrefix == "" {
		return errors.New("game.guest_prefix must not be empty")
	}
	if c.Server.SendQueueSize <= 0 {
		return errors.New("server.send_queue_size must be positive")
	}
	return nil
}
