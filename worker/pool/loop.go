package pool

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"imageConverter/internal/jobs"
	"imageConverter/internal/metrics"
	"imageConverter/internal/queue"
)

const DefaultPopTimeout = 30 * time.Second

type Source interface {
	Pop(ctx context.Context, timeout time.Duration) (*queue.Entry, error)
}

type Handler interface {
	Process(ctx context.Context, entry queue.Entry) error
}

// Loop is a single sequential queue consumer.
type Loop struct {
	source     Source
	handler    Handler
	popTimeout time.Duration
	logger     *zap.Logger
}

func NewLoop(source Source, handler Handler, popTimeout time.Duration, logger *zap.Logger) *Loop {
	if popTimeout <= 0 {
		popTimeout = DefaultPopTimeout
	}
	return &Loop{
		source:     source,
		handler:    handler,
		popTimeout: popTimeout,
		logger:     logger,
	}
}

// Run pops and handles entries until ctx is cancelled. It fails only when the
// store itself cannot be reached; a bad job never stops the loop.
func (l *Loop) Run(ctx context.Context) error {
	l.logger.Info("Worker loop started", zap.Duration("pop_timeout", l.popTimeout))

	for {
		if ctx.Err() != nil {
			return nil
		}

		entry, err := l.source.Pop(ctx, l.popTimeout)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			metrics.QueuePops.WithLabelValues("error").Inc()
			return fmt.Errorf("failed to pop from queue: %w", err)
		}
		if entry == nil {
			metrics.QueuePops.WithLabelValues("empty").Inc()
			continue
		}
		metrics.QueuePops.WithLabelValues("entry").Inc()

		if err := l.handle(ctx, *entry); err != nil {
			return err
		}
	}
}

func (l *Loop) handle(ctx context.Context, entry queue.Entry) (err error) {
	defer func() {
		if r := recover(); r != nil {
			l.logger.Error("Panic while handling job",
				zap.String("job_id", entry.JobID),
				zap.Any("panic", r),
				zap.Stack("stack"),
			)
			err = nil
		}
	}()

	// A popped entry exists nowhere else, so it is handled to the end even
	// when shutdown starts meanwhile.
	err = l.handler.Process(context.WithoutCancel(ctx), entry)
	if err == nil || errors.Is(err, jobs.ErrStoreUnavailable) {
		return err
	}

	l.logger.Error("Job handling failed", zap.String("job_id", entry.JobID), zap.Error(err))
	return nil
}
