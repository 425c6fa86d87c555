package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"imageConverter/internal/events"
	"imageConverter/internal/jobs"
	"imageConverter/internal/metrics"
)

const LeaseExpiredReason = "processing lease expired"

type LeaseStore interface {
	JobStore
	ExpiredLeases(ctx context.Context, now time.Time, limit int64) ([]string, error)
	ReleaseLease(ctx context.Context, id string) error
}

// Reaper fails jobs that are still processing after their lease ran out,
// which means the worker holding them died. Such jobs are never put back on
// the queue; resubmitting is up to the producer.
type Reaper struct {
	store     LeaseStore
	notifier  *notifier
	interval  time.Duration
	batchSize int64
	now       func() time.Time
	logger    *zap.Logger
}

func NewReaper(store LeaseStore, interval time.Duration, publisher events.Publisher, archive Archive, logger *zap.Logger) *Reaper {
	return &Reaper{
		store:     store,
		notifier:  newNotifier(publisher, archive, logger),
		interval:  interval,
		batchSize: 100,
		now:       func() time.Time { return time.Now().UTC() },
		logger:    logger,
	}
}

// Run reaps on every tick until ctx is cancelled. Store errors are logged and
// retried on the next tick.
func (r *Reaper) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	r.logger.Info("Lease reaper started", zap.Duration("interval", r.interval))

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("Lease reaper stopped")
			return
		case <-ticker.C:
			n, err := r.ReapOnce(ctx)
			if err != nil {
				r.logger.Error("Lease reap failed", zap.Error(err))
				continue
			}
			if n > 0 {
				r.logger.Info("Reaped expired leases", zap.Int("count", n))
			}
		}
	}
}

// ReapOnce handles one batch of expired leases and returns how many jobs it failed.
func (r *Reaper) ReapOnce(ctx context.Context) (int, error) {
	now := r.now()
	ids, err := r.store.ExpiredLeases(ctx, now, r.batchSize)
	if err != nil {
		return 0, err
	}

	reaped := 0
	for _, id := range ids {
		ok, err := r.reap(ctx, id, now)
		if err != nil {
			return reaped, fmt.Errorf("failed to reap job %s: %w", id, err)
		}
		if ok {
			reaped++
		}
	}
	return reaped, nil
}

func (r *Reaper) reap(ctx context.Context, id string, now time.Time) (bool, error) {
	log := r.logger.With(zap.String("job_id", id))

	job, found, err := r.store.Get(ctx, id)
	if err != nil {
		return false, err
	}
	if !found || job.Status != jobs.StatusProcessing {
		return false, r.store.ReleaseLease(ctx, id)
	}
	if job.LeaseExpiresAt != nil && job.LeaseExpiresAt.After(now) {
		return false, nil
	}

	job, err = r.store.Update(ctx, id, jobs.Failed(LeaseExpiredReason, now.Sub(job.UpdatedAt)))
	switch {
	case errors.Is(err, jobs.ErrInvalidTransition):
		// the worker got there first
		return false, nil
	case errors.Is(err, jobs.ErrJobNotFound):
		return false, r.store.ReleaseLease(ctx, id)
	case err != nil:
		return false, err
	}

	metrics.LeasesReaped.Inc()
	log.Warn("Job lease expired, marked as failed")
	r.notifier.announce(ctx, job)
	return true, nil
}
