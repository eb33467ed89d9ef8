package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

const (
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
)

type Storage struct {
	Backend     string `yaml:"backend" env:"BACKEND"`
	SQLitePath  string `yaml:"sqlite_path" env:"SQLITE_PATH"`
	PostgresURL string `yaml:"postgres_url" env:"POSTGRES_URL"`
}

type Learning struct {
	MaxRetries   int `yaml:"max_retries" env:"MAX_RETRIES"`
	PendingBatch int `yaml:"pending_batch" env:"PENDING_BATCH"`
}

type Kafka struct {
	Brokers []string `yaml:"brokers" env:"BROKERS" envSeparator:","`
	Topic   string   `yaml:"topic" env:"TOPIC"`
}

type Config struct {
	Env         string   `yaml:"env" env:"ENV"`
	LogLevel    string   `yaml:"log_level" env:"LOG_LEVEL"`
	DataDir     string   `yaml:"data_dir" env:"DATA_DIR"`
	UserID      string   `yaml:"user_id" env:"USER_ID"`
	Timezone    string   `yaml:"timezone" env:"TIMEZONE"`
	JournalDir  string   `yaml:"journal_dir" env:"JOURNAL_DIR"`
	MetricsAddr string   `yaml:"metrics_addr" env:"METRICS_ADDR"`
	Storage     Storage  `yaml:"storage" envPrefix:"STORAGE_"`
	Learning    Learning `yaml:"learning" envPrefix:"LEARNING_"`
	Kafka       Kafka    `yaml:"kafka" envPrefix:"KAFKA_"`
}

func Default(dataDir string) Config {
	return Config{
		Env:      "production",
		LogLevel: "info",
		DataDir:  dataDir,
		UserID:   "local",
		Timezone: "UTC",
		Storage: Storage{
			Backend:    BackendSQLite,
			SQLitePath: filepath.Join(dataDir, "tempo.db"),
		},
		Learning: Learning{MaxRetries: 3, PendingBatch: 50},
		Kafka:    Kafka{Topic: "tempo.sessions"},
	}
}

// Load merges defaults, the optional YAML file at path and TEMPO_* environment variables,
// in that order.
func Load(path, dataDir string) (Config, error) {
	if dataDir == "" {
		return Config{}, fmt.Errorf("data dir is required")
	}
	cfg := Default(dataDir)
	if path != "" {
		raw, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(raw, &cfg); err != nil {
				return Config{}, fmt.Errorf("decode config %s: %w", path, err)
			}
		case errors.Is(err, os.ErrNotExist):
		default:
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
	}
	if err := env.ParseWithOptions(&cfg, env.Options{Prefix: "TEMPO_"}); err != nil {
		return Config{}, fmt.Errorf("environment variables are invalid: %w", err)
	}
	if cfg.Storage.SQLitePath == "" {
		cfg.Storage.SQLitePath = filepath.Join(cfg.DataDir, "tempo.db")
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// DefaultPath is $XDG_CONFIG_HOME/tempo/config.yaml or ~/.config/tempo/config.yaml.
func DefaultPath() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "tempo", "config.yaml")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "tempo", "config.yaml")
}

func (c Config) Validate() error {
	switch c.Storage.Backend {
	case BackendSQLite:
		if c.Storage.SQLitePath == "" {
			return fmt.Errorf("storage.sqlite_path is required for the sqlite backend")
		}
	case BackendPostgres:
		if c.Storage.PostgresURL == "" {
			return fmt.Errorf("storage.postgres_url is required for the postgres backend")
		}
	default:
		return fmt.Errorf("storage.backend must be %q or %q, got %q", BackendSQLite, BackendPostgres, c.Storage.Backend)
	}
	if c.Learning.MaxRetries < 1 {
		return fmt.Errorf("learning.max_retries must be positive, got %d", c.Learning.MaxRetries)
	}
	if c.Learning.PendingBatch < 1 {
		return fmt.Errorf("learning.pending_batch must be positive, got %d", c.Learning.PendingBatch)
	}
	if c.UserID == "" {
		return fmt.Errorf("user_id is required")
	}
	if _, err := time.LoadLocation(c.Timezone); err != nil {
		return fmt.Errorf("timezone is invalid: %w", err)
	}
	if len(c.Kafka.Brokers) > 0 && c.Kafka.Topic == "" {
		return fmt.Errorf("kafka.topic is required when brokers are configured")
	}
	return nil
}

func (c Config) IsDevelopment() bool {
	return c.Env == "development"
}

func (c Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}
