package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"imageConverter/internal/database"
	"imageConverter/internal/events"
	"imageConverter/internal/jobs"
	"imageConverter/internal/logger"
	"imageConverter/internal/metrics"
	"imageConverter/internal/queue"
	"imageConverter/internal/tracing"
	"imageConverter/worker/codec"
	"imageConverter/worker/config"
	"imageConverter/worker/converter"
	"imageConverter/worker/exif"
	"imageConverter/worker/pool"
	"imageConverter/worker/repository"
	"imageConverter/worker/service"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	log, err := logger.New(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.OTELEndpoint != "" {
		tp, err := tracing.InitTracer(ctx, cfg.OTELEndpoint, "image-worker")
		if err != nil {
			log.Warn("Tracing disabled", zap.Error(err))
		} else {
			defer tp.Shutdown(context.Background())
		}
	}

	redisClient, err := database.ConnectRedis(ctx, database.RedisConfig{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
		PoolSize: cfg.WorkerCount + 4,
	})
	if err != nil {
		return fmt.Errorf("failed to connect to redis: %w", err)
	}
	defer redisClient.Close()

	registry := jobs.NewRegistry(redisClient,
		jobs.WithTTL(cfg.JobTTL),
		jobs.WithLeaseTimeout(cfg.LeaseTimeout),
	)
	q := queue.New(redisClient, cfg.QueueKey)

	metaTool, err := exif.New(cfg.ExiftoolPath, log.Named("exif"))
	if err != nil {
		return fmt.Errorf("failed to start exiftool: %w", err)
	}
	defer metaTool.Close()

	convCfg := converter.DefaultConfig()
	convCfg.TempDir = cfg.TempDir
	convCfg.ThumbnailQuality = cfg.ThumbnailQuality
	convCfg.FullSizeQuality = cfg.FullSizeQuality
	convCfg.ThumbnailTimeout = cfg.ThumbnailTimeout
	convCfg.FullSizeTimeout = cfg.FullSizeTimeout
	convCfg.MetadataTimeout = cfg.MetadataTimeout
	conv := converter.NewConverter(convCfg, codec.NewAVIFEncoder(cfg.AVIFSpeed), metaTool, log.Named("converter"))

	var publisher events.Publisher = events.Nop{}
	if len(cfg.KafkaBrokers) > 0 {
		publisher, err = events.NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaTopic)
		if err != nil {
			return fmt.Errorf("failed to create event publisher: %w", err)
		}
	}
	defer publisher.Close()

	var archive service.Archive
	if cfg.DatabaseURL != "" {
		db, err := pgxpool.New(ctx, cfg.DatabaseURL)
		if err != nil {
			return fmt.Errorf("failed to connect to database: %w", err)
		}
		defer db.Close()

		pa := repository.NewPostgresArchive(db)
		if err := pa.EnsureSchema(ctx); err != nil {
			return err
		}
		archive = pa
	}

	processor := service.NewProcessor(registry, q, conv, publisher, archive, log.Named("processor"))

	metricsSrv := metrics.StartMetricsServer(cfg.MetricsPort, registry.Ping, log)

	if cfg.LeaseTimeout > 0 {
		reaper := service.NewReaper(registry, cfg.ReapInterval, publisher, archive, log.Named("reaper"))
		go reaper.Run(ctx)
	}

	workers := pool.NewWorkerPool(cfg.WorkerCount, cfg.RestartBackoff, log)
	workers.Start(ctx, func(id int) pool.Runner {
		return pool.NewLoop(q, processor, cfg.PopTimeout, log.With(zap.Int("worker_id", id))).Run
	})

	log.Info("Worker service started",
		zap.Int("workers", cfg.WorkerCount),
		zap.String("queue", cfg.QueueKey),
		zap.Duration("lease_timeout", cfg.LeaseTimeout),
		zap.Bool("archive", archive != nil),
	)

	<-ctx.Done()
	log.Info("Shutting down worker, waiting for in-flight jobs...")

	workers.Wait()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := metricsSrv.Shutdown(shutdownCtx); err != nil {
		log.Error("Metrics server shutdown error", zap.Error(err))
	}

	log.Info("Worker stopped")
	return nil
}
