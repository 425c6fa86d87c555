package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

type Config struct {
	Port          int    `env:"SERVICE_PORT" envDefault:"8081"`
	RedisAddr     string `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	RedisPassword string `env:"REDIS_PASSWORD"`
	RedisDB       int    `env:"REDIS_DB" envDefault:"0"`

	MaxFileSize int64         `env:"MAX_FILE_SIZE" envDefault:"52428800"`
	JobTTL      time.Duration `env:"JOB_TTL" envDefault:"24h"`
	QueueKey    string        `env:"QUEUE_KEY" envDefault:"conversion:queue"`

	KafkaBrokers []string `env:"KAFKA_BROKERS" envSeparator:","`
	KafkaTopic   string   `env:"KAFKA_TOPIC" envDefault:"image.jobs"`

	// RateLimitRPS of zero disables rate limiting.
	RateLimitRPS   float64 `env:"RATE_LIMIT_RPS" envDefault:"10"`
	RateLimitBurst int     `env:"RATE_LIMIT_BURST" envDefault:"20"`

	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"15s"`
	LogLevel        string        `env:"LOG_LEVEL" envDefault:"info"`
	OTELEndpoint    string        `env:"OTEL_ENDPOINT"`
}

func Load() (*Config, error) {
	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return nil, fmt.Errorf("failed to parse api config: %w", err)
	}
	if cfg.MaxFileSize <= 0 {
		return nil, fmt.Errorf("MAX_FILE_SIZE must be positive, got %d", cfg.MaxFileSize)
	}
	if cfg.RateLimitRPS < 0 || (cfg.RateLimitRPS > 0 && cfg.RateLimitBurst < 1) {
		return nil, fmt.Errorf("invalid rate limit %v/s burst %d", cfg.RateLimitRPS, cfg.RateLimitBurst)
	}
	return &cfg, nil
}
