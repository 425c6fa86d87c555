package pool

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// WorkerPool runs a fixed number of supervised worker loops. Each loop is an
// independent queue consumer; the queue's atomic pop keeps them disjoint.
type WorkerPool struct {
	size    int
	backoff time.Duration
	logger  *zap.Logger
	wg      sync.WaitGroup
}

func NewWorkerPool(size int, backoff time.Duration, logger *zap.Logger) *WorkerPool {
	if size < 1 {
		size = 1
	}
	return &WorkerPool{
		size:    size,
		backoff: backoff,
		logger:  logger,
	}
}

// Start launches the workers and returns immediately. newRunner is called
// once per worker so each gets its own loop state.
func (p *WorkerPool) Start(ctx context.Context, newRunner func(id int) Runner) {
	for i := 0; i < p.size; i++ {
		sup := NewSupervisor(newRunner(i), p.backoff, p.logger.With(zap.Int("worker_id", i)))

		p.wg.Add(1)
		go func() {
			defer p.wg.Done()
			sup.Run(ctx)
		}()
	}

	p.logger.Info("Worker pool started", zap.Int("workers", p.size))
}

// Wait blocks until every worker has returned, which happens only after ctx
// passed to Start is cancelled.
func (p *WorkerPool) Wait() {
	p.wg.Wait()
}
