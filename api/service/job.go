package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"imageConverter/internal/events"
	"imageConverter/internal/jobs"
	"imageConverter/internal/queue"
)

type Registry interface {
	Create(ctx context.Context, originalName string, payload []byte, size int64) (*jobs.Job, error)
	Get(ctx context.Context, id string) (*jobs.Job, bool, error)
	Delete(ctx context.Context, id string) error
	Ping(ctx context.Context) error
}

type Queue interface {
	Push(ctx context.Context, entry queue.Entry) error
}

// JobService is the producer side: it records new jobs, enqueues them and
// answers status lookups.
type JobService struct {
	registry  Registry
	queue     Queue
	publisher events.Publisher
	logger    *zap.Logger
}

func NewJobService(registry Registry, q Queue, publisher events.Publisher, logger *zap.Logger) *JobService {
	if publisher == nil {
		publisher = events.Nop{}
	}
	return &JobService{
		registry:  registry,
		queue:     q,
		publisher: publisher,
		logger:    logger,
	}
}

// Submit stores the record before enqueueing so a worker never pops an id it
// cannot load. If the push fails the record is removed again.
func (s *JobService) Submit(ctx context.Context, originalName string, data []byte) (*jobs.Job, error) {
	job, err := s.registry.Create(ctx, originalName, data, int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("failed to create job: %w", err)
	}

	if err := s.queue.Push(ctx, queue.Entry{JobID: job.ID}); err != nil {
		if delErr := s.registry.Delete(context.WithoutCancel(ctx), job.ID); delErr != nil {
			s.logger.Warn("Failed to remove unqueued job", zap.String("job_id", job.ID), zap.Error(delErr))
		}
		return nil, fmt.Errorf("failed to enqueue job %s: %w", job.ID, err)
	}

	if err := s.publisher.Publish(ctx, events.FromJob(job)); err != nil {
		s.logger.Warn("Failed to publish job event", zap.String("job_id", job.ID), zap.Error(err))
	}

	s.logger.Info("Job queued",
		zap.String("job_id", job.ID),
		zap.String("filename", originalName),
		zap.Int("bytes", len(data)),
	)
	return job, nil
}

func (s *JobService) GetStatus(ctx context.Context, id string) (*jobs.Job, error) {
	job, found, err := s.registry.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, fmt.Errorf("%w: %s", jobs.ErrJobNotFound, id)
	}
	return job, nil
}

func (s *JobService) Health(ctx context.Context) error {
	return s.registry.Ping(ctx)
}
