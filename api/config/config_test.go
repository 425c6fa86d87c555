package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		cfg, err := Load()
		require.NoError(t, err)
		assert.Equal(t, 8081, cfg.Port)
		assert.Equal(t, int64(50*1024*1024), cfg.MaxFileSize)
		assert.Equal(t, 24*time.Hour, cfg.JobTTL)
		assert.Equal(t, "conversion:queue", cfg.QueueKey)
		assert.Equal(t, "image.jobs", cfg.KafkaTopic)
	})

	t.Run("overrides", func(t *testing.T) {
		t.Setenv("SERVICE_PORT", "9000")
		t.Setenv("MAX_FILE_SIZE", "1024")
		t.Setenv("KAFKA_BROKERS", "k1:9092")
		t.Setenv("RATE_LIMIT_RPS", "0")

		cfg, err := Load()
		require.NoError(t, err)
		assert.Equal(t, 9000, cfg.Port)
		assert.Equal(t, int64(1024), cfg.MaxFileSize)
		assert.Equal(t, []string{"k1:9092"}, cfg.KafkaBrokers)
		assert.Zero(t, cfg.RateLimitRPS)
	})

	t.Run("invalid", func(t *testing.T) {
		t.Setenv("MAX_FILE_SIZE", "-1")
		_, err := Load()
		assert.Error(t, err)
	})

	t.Run("malformed port", func(t *testing.T) {
		t.Setenv("SERVICE_PORT", "http")
		_, err := Load()
		assert.Error(t, err)
	})
}
