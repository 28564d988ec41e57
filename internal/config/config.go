package config

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/caarlos0/env/v11"
)

type Config struct {
	HTTPAddr string     `env:"HTTP_ADDR" envDefault:":6557"`
	LogLevel slog.Level `env:"LOG_LEVEL" envDefault:"INFO"`

	SubscriberBuffer int           `env:"SUBSCRIBER_BUFFER" envDefault:"64"`
	WriteTimeout     time.Duration `env:"WRITE_TIMEOUT" envDefault:"5s"`
	PongTimeout      time.Duration `env:"PONG_TIMEOUT" envDefault:"10s"`
	PingInterval     time.Duration `env:"PING_INTERVAL" envDefault:"30s"`
	EmbedCover       bool          `env:"EMBED_COVER" envDefault:"true"`

	RedisURL         string `env:"REDIS_URL"`
	RedisChannel     string `env:"REDIS_CHANNEL" envDefault:"beatstatus:events"`
	RedisSnapshotKey string `env:"REDIS_SNAPSHOT_KEY" envDefault:"beatstatus:snapshot"`

	Demo      bool          `env:"DEMO" envDefault:"false"`
	DemoTempo time.Duration `env:"DEMO_TEMPO" envDefault:"500ms"`
}

func Load() (*Config, error) {
	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return nil, fmt.Errorf("parsing environment: %w", err)
	}
	if cfg.SubscriberBuffer < 1 {
		return nil, fmt.Errorf("SUBSCRIBER_BUFFER must be positive, got %d", cfg.SubscriberBuffer)
	}
	if cfg.Demo && cfg.DemoTempo <= 0 {
		return nil, fmt.Errorf("DEMO_TEMPO must be positive when DEMO is set, got %v", cfg.DemoTempo)
	}
	return &cfg, nil
}
