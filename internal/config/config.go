package config

import (
	"fmt"
	"os"

	"github.com/ilyakaznacheev/cleanenv"
)

type Config struct {
	Env         string `yaml:"env" env:"APP_ENV" env-default:"local"`
	StoragePath string `yaml:"storage_path" env:"STORAGE_PATH" env-default:"tracking.db"`

	Account struct {
		ID string `yaml:"id" env:"ACCOUNT_ID" env-default:"default"`
	} `yaml:"account"`

	Log struct {
		Level  string `yaml:"level" env:"LOG_LEVEL" env-default:"info"`
		Format string `yaml:"format" env:"LOG_FORMAT" env-default:"json"`
	} `yaml:"log"`

	Server struct {
		Enabled bool `yaml:"enabled" env:"SERVER_ENABLED" env-default:"true"`
		Port    int  `yaml:"port" env:"SERVER_PORT" env-default:"8710"`
	} `yaml:"server"`

	Tracking struct {
		// TickInterval drives the local elapsed recomputation, seconds.
		TickInterval int `yaml:"tick_interval" env:"TICK_INTERVAL" env-default:"1"`
		// SyncInterval is the durable write-through cadence, seconds.
		SyncInterval int `yaml:"sync_interval" env:"SYNC_INTERVAL" env-default:"30"`
		// MarkerWatchInterval is how often foreign-session markers are
		// polled, seconds.
		MarkerWatchInterval int `yaml:"marker_watch_interval" env:"MARKER_WATCH_INTERVAL" env-default:"5"`
		// ReconcileDelay is how long after start the one-shot reconciliation
		// pass fires, milliseconds.
		ReconcileDelay int `yaml:"reconcile_delay" env:"RECONCILE_DELAY" env-default:"1000"`
	} `yaml:"tracking"`

	Recurrence struct {
		// HorizonDays bounds generation for open-ended rules.
		HorizonDays int `yaml:"horizon_days" env:"RECURRENCE_HORIZON_DAYS" env-default:"365"`
		// HorizonSchedule is the cron spec for the extension job.
		HorizonSchedule string `yaml:"horizon_schedule" env:"RECURRENCE_HORIZON_SCHEDULE" env-default:"@every 1h"`
		// MaxInstances is a safety cap per expansion batch.
		MaxInstances int `yaml:"max_instances" env:"RECURRENCE_MAX_INSTANCES" env-default:"1000"`
	} `yaml:"recurrence"`
}

// LoadConfig reads the YAML config and applies environment overrides. A
// missing file is not an error; defaults plus environment apply.
func LoadConfig(path string) (*Config, error) {
	var cfg Config

	if _, err := os.Stat(path); err == nil {
		if err := cleanenv.ReadConfig(path, &cfg); err != nil {
			return nil, fmt.Errorf("failed to read config %s: %w", path, err)
		}
	} else {
		if err := cleanenv.ReadEnv(&cfg); err != nil {
			return nil, fmt.Errorf("failed to read environment config: %w", err)
		}
	}

	if cfg.Tracking.TickInterval < 1 {
		return nil, fmt.Errorf("tick_interval must be at least 1 second, got %d", cfg.Tracking.TickInterval)
	}
	if cfg.Tracking.SyncInterval < 1 {
		return nil, fmt.Errorf("sync_interval must be at least 1 second, got %d", cfg.Tracking.SyncInterval)
	}
	if cfg.Recurrence.HorizonDays < 1 {
		return nil, fmt.Errorf("horizon_days must be positive, got %d", cfg.Recurrence.HorizonDays)
	}

	return &cfg, nil
}
