// File: internal/config/config.go
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type RuntimeConfig struct {
	Dev bool
}

type BotConfig struct {
	// Username of the managed bot this process polls for. The token comes
	// from the database, decrypted with security.encryption_key.
	Username string `yaml:"username"`
	Workers  int    `yaml:"workers"` // polling workers
}

type LogConfig struct {
	Level    string `yaml:"level"`    // trace|debug|info|warn|error
	Format   string `yaml:"format"`   // json|console
	Sampling bool   `yaml:"sampling"` // enable sampling in prod
}

type AdminConfig struct {
	Port       int           `yaml:"port"`
	APIKey     string        `yaml:"api_key"`
	JWTSecret  string        `yaml:"jwt_secret"`
	SessionTTL time.Duration `yaml:"session_ttl"`
}

type DatabaseConfig struct {
	URL string `yaml:"url"`
}

type RedisConfig struct {
	URL      string `yaml:"url"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type SweeperConfig struct {
	Interval    time.Duration `yaml:"interval"`
	NotifyBuyer bool          `yaml:"notify_buyer"`
}

type WorkerConfig struct {
	AccessTasks int `yaml:"access_tasks"` // grant/revoke pool size
}

type SecurityConfig struct {
	EncryptionKey string `yaml:"encryption_key"`
}

type Config struct {
	Bot      BotConfig      `yaml:"bot"`
	Log      LogConfig      `yaml:"log"`
	Admin    AdminConfig    `yaml:"admin"`
	Database DatabaseConfig `yaml:"database"`
	Redis    RedisConfig    `yaml:"redis"`
	Sweeper  SweeperConfig  `yaml:"sweeper"`
	Worker   WorkerConfig   `yaml:"worker"`
	Security SecurityConfig `yaml:"security"`

	Runtime RuntimeConfig `yaml:"-"`
}

// LoadConfig reads and validates the YAML config at path.
func LoadConfig(path string, dev bool) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	// defaults
	if cfg.Bot.Workers <= 0 {
		cfg.Bot.Workers = 8
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "json"
	}
	if cfg.Sweeper.Interval <= 0 {
		cfg.Sweeper.Interval = 24 * time.Hour
	}
	if cfg.Worker.AccessTasks <= 0 {
		cfg.Worker.AccessTasks = 4
	}
	if cfg.Admin.SessionTTL <= 0 {
		cfg.Admin.SessionTTL = 30 * time.Minute
	}

	// Minimal validation
	if cfg.Bot.Username == "" {
		return nil, errors.New("bot.username is required")
	}
	if cfg.Database.URL == "" {
		return nil, errors.New("database.url is required")
	}
	if cfg.Redis.URL == "" {
		return nil, errors.New("redis.url is required")
	}

	cfg.Runtime.Dev = dev
	return &cfg, nil
}
