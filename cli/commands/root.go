package commands

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"imageConverter/internal/database"
	"imageConverter/internal/jobs"
	"imageConverter/internal/queue"
)

// ConnectFunc opens the store the commands talk to.
type ConnectFunc func(ctx context.Context, cfg database.RedisConfig) (redis.UniversalClient, error)

func DefaultConnect(ctx context.Context, cfg database.RedisConfig) (redis.UniversalClient, error) {
	client, err := database.ConnectRedis(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return client, nil
}

type app struct {
	connect ConnectFunc
	logger  *zap.Logger

	redisCfg database.RedisConfig
	queueKey string
	jobTTL   time.Duration
	asJSON   bool

	client   redis.UniversalClient
	registry *jobs.Registry
	queue    *queue.Queue

	// preset in tests; otherwise built from flags
	archive outcomeLister
	events  eventSource
}

func NewRootCmd(connect ConnectFunc, logger *zap.Logger) *cobra.Command {
	return newRootCmd(&app{connect: connect, logger: logger})
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:           "jobctl",
		Short:         "Operate the image conversion job store",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			client, err := a.connect(cmd.Context(), a.redisCfg)
			if err != nil {
				return fmt.Errorf("failed to connect to redis at %s: %w", a.redisCfg.Addr, err)
			}
			a.client = client
			a.registry = jobs.NewRegistry(client, jobs.WithTTL(a.jobTTL))
			a.queue = queue.New(client, a.queueKey)
			return nil
		},
		PersistentPostRunE: func(*cobra.Command, []string) error {
			if a.client == nil {
				return nil
			}
			return a.client.Close()
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&a.redisCfg.Addr, "redis-addr", envOr("REDIS_ADDR", "localhost:6379"), "Redis address")
	flags.StringVar(&a.redisCfg.Password, "redis-password", os.Getenv("REDIS_PASSWORD"), "Redis password")
	flags.IntVar(&a.redisCfg.DB, "redis-db", 0, "Redis database number")
	flags.StringVar(&a.queueKey, "queue-key", envOr("QUEUE_KEY", queue.DefaultKey), "Work queue key")
	flags.DurationVar(&a.jobTTL, "job-ttl", jobs.DefaultTTL, "Retention of newly submitted job records")
	flags.BoolVar(&a.asJSON, "json", false, "JSON output")

	root.AddCommand(
		newSubmitCmd(a),
		newStatusCmd(a),
		newDeleteCmd(a),
		newReapCmd(a),
		newHistoryCmd(a),
		newWatchCmd(a),
	)
	return root
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
