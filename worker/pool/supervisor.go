package pool

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"imageConverter/internal/metrics"
)

// Runner is a long-running task. It returns nil once ctx is done and an error
// for anything that should cost it a restart.
type Runner func(ctx context.Context) error

type Supervisor struct {
	run     Runner
	backoff time.Duration
	logger  *zap.Logger
}

func NewSupervisor(run Runner, backoff time.Duration, logger *zap.Logger) *Supervisor {
	return &Supervisor{run: run, backoff: backoff, logger: logger}
}

// Run keeps the runner alive until ctx is cancelled, restarting it after a
// fixed backoff whenever it fails or panics.
func (s *Supervisor) Run(ctx context.Context) {
	for {
		err := s.runOnce(ctx)
		if ctx.Err() != nil {
			return
		}
		if err == nil {
			err = errors.New("worker exited unexpectedly")
		}

		metrics.WorkerRestarts.Inc()
		s.logger.Error("Worker failed, restarting",
			zap.Error(err),
			zap.Duration("backoff", s.backoff),
		)

		select {
		case <-ctx.Done():
			return
		case <-time.After(s.backoff):
		}
	}
}

func (s *Supervisor) runOnce(ctx context.Context) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("worker panic: %v", r)
		}
	}()
	return s.run(ctx)
}
