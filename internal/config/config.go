package config

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/caarlos0/env/v11"
)

type Config struct {
	HTTPAddr string     `env:"HTTP_ADDR" envDefault:":8080"`
	DBPath   string     `env:"DB_PATH" envDefault:"data/brainduel.db"`
	RedisURL string     `env:"REDIS_URL" envDefault:""`
	LogLevel slog.Level `env:"LOG_LEVEL" envDefault:"INFO"`

	// Timezone used for "local calendar date" bookkeeping (daily challenge
	// uniqueness, question-of-the-day keys).
	TimeZone string `env:"TIME_ZONE" envDefault:"Europe/Berlin"`

	ReaperInterval  time.Duration `env:"REAPER_INTERVAL" envDefault:"1m"`
	ReaperBatchSize int           `env:"REAPER_BATCH_SIZE" envDefault:"100"`

	OutboxInterval time.Duration `env:"OUTBOX_INTERVAL" envDefault:"5s"`
}

func Load() (*Config, error) {
	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return nil, fmt.Errorf("parsing environment: %w", err)
	}
	return &cfg, nil
}

// Location resolves the configured timezone.
func (c *Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.TimeZone)
	if err != nil {
		return nil, fmt.Errorf("loading timezone %q: %w", c.TimeZone, err)
	}
	return loc, nil
}
