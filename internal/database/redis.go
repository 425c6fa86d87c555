package database

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	// PoolSize defaults to 10. Every blocked pop holds a connection.
	PoolSize int
}

// ConnectRedis builds a client and verifies it answers PING.
func ConnectRedis(ctx context.Context, cfg RedisConfig) (*redis.Client, error) {
	client := NewRedisClient(cfg)

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	return client, nil
}

// NewRedisClient builds a client without touching the network. Context
// deadlines are honored so shutdown is not held up by a blocking pop.
func NewRedisClient(cfg RedisConfig) *redis.Client {
	poolSize := cfg.PoolSize
	if poolSize <= 0 {
		poolSize = 10
	}
	return redis.NewClient(&redis.Options{
		Addr:                  cfg.Addr,
		Password:              cfg.Password,
		DB:                    cfg.DB,
		PoolSize:              poolSize,
		MinIdleConns:          2,
		PoolTimeout:           5 * time.Second,
		ContextTimeoutEnabled: true,
	})
}
