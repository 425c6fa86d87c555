package config

import (
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
)

type Config struct {
	RedisAddr     string        `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	RedisPassword string        `env:"REDIS_PASSWORD"`
	RedisDB       int           `env:"REDIS_DB" envDefault:"0"`
	QueueKey      string        `env:"QUEUE_KEY" envDefault:"conversion:queue"`
	JobTTL        time.Duration `env:"JOB_TTL" envDefault:"24h"`

	WorkerCount    int           `env:"WORKER_COUNT" envDefault:"1"`
	PopTimeout     time.Duration `env:"POP_TIMEOUT" envDefault:"30s"`
	RestartBackoff time.Duration `env:"RESTART_BACKOFF" envDefault:"5s"`

	ThumbnailTimeout time.Duration `env:"THUMBNAIL_TIMEOUT" envDefault:"30s"`
	FullSizeTimeout  time.Duration `env:"FULLSIZE_TIMEOUT" envDefault:"60s"`
	MetadataTimeout  time.Duration `env:"METADATA_TIMEOUT" envDefault:"10s"`
	ThumbnailQuality int           `env:"THUMBNAIL_QUALITY" envDefault:"50"`
	FullSizeQuality  int           `env:"FULLSIZE_QUALITY" envDefault:"80"`
	AVIFSpeed        int           `env:"AVIF_SPEED" envDefault:"8"`
	TempDir          string        `env:"TEMP_DIR"`
	ExiftoolPath     string        `env:"EXIFTOOL_PATH"`

	LeaseTimeout time.Duration `env:"LEASE_TIMEOUT" envDefault:"10m"`
	ReapInterval time.Duration `env:"REAP_INTERVAL" envDefault:"1m"`

	DatabaseURL  string   `env:"DATABASE_URL"`
	KafkaBrokers []string `env:"KAFKA_BROKERS" envSeparator:","`
	KafkaTopic   string   `env:"KAFKA_TOPIC" envDefault:"image.jobs"`

	MetricsPort  int    `env:"METRICS_PORT" envDefault:"8083"`
	LogLevel     string `env:"LOG_LEVEL" envDefault:"info"`
	OTELEndpoint string `env:"OTEL_ENDPOINT"`
}

func Load() (*Config, error) {
	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return nil, fmt.Errorf("failed to parse worker config: %w", err)
	}
	if cfg.TempDir == "" {
		cfg.TempDir = os.TempDir()
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	switch {
	case c.WorkerCount < 1:
		return fmt.Errorf("WORKER_COUNT must be at least 1, got %d", c.WorkerCount)
	case c.PopTimeout < time.Second:
		return fmt.Errorf("POP_TIMEOUT must be at least 1s, got %s", c.PopTimeout)
	case c.ThumbnailQuality < 0 || c.ThumbnailQuality > 100:
		return fmt.Errorf("THUMBNAIL_QUALITY must be within 0..100, got %d", c.ThumbnailQuality)
	case c.FullSizeQuality < 0 || c.FullSizeQuality > 100:
		return fmt.Errorf("FULLSIZE_QUALITY must be within 0..100, got %d", c.FullSizeQuality)
	case c.AVIFSpeed < 0 || c.AVIFSpeed > 10:
		return fmt.Errorf("AVIF_SPEED must be within 0..10, got %d", c.AVIFSpeed)
	case c.LeaseTimeout < 0:
		return fmt.Errorf("LEASE_TIMEOUT must not be negative, got %s", c.LeaseTimeout)
	case c.LeaseTimeout > 0 && c.ReapInterval <= 0:
		return fmt.Errorf("REAP_INTERVAL must be positive when leases are enabled, got %s", c.ReapInterval)
	}
	return nil
}
