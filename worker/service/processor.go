package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"imageConverter/internal/events"
	"imageConverter/internal/jobs"
	"imageConverter/internal/metrics"
	"imageConverter/internal/queue"
)

type JobStore interface {
	Get(ctx context.Context, id string) (*jobs.Job, bool, error)
	Update(ctx context.Context, id string, patch jobs.Patch) (*jobs.Job, error)
}

type Pipeline interface {
	Convert(ctx context.Context, data []byte, originalName string) (*jobs.Results, error)
}

// Requeuer puts an entry back when its record could not be claimed.
type Requeuer interface {
	Push(ctx context.Context, entry queue.Entry) error
}

// Archive receives every terminal record. Optional.
type Archive interface {
	SaveOutcome(ctx context.Context, job *jobs.Job) error
}

type Processor struct {
	store    JobStore
	requeue  Requeuer
	pipeline Pipeline
	notifier *notifier
	logger   *zap.Logger
	now      func() time.Time
}

func NewProcessor(store JobStore, requeue Requeuer, pipeline Pipeline, publisher events.Publisher, archive Archive, logger *zap.Logger) *Processor {
	return &Processor{
		store:    store,
		requeue:  requeue,
		pipeline: pipeline,
		notifier: newNotifier(publisher, archive, logger),
		logger:   logger,
		now:      time.Now,
	}
}

// Process handles one queue entry end to end. The returned error is reserved
// for store outages before the job is claimed; every job-level failure ends
// up in the record itself.
func (p *Processor) Process(ctx context.Context, entry queue.Entry) error {
	log := p.logger.With(zap.String("job_id", entry.JobID))

	job, found, err := p.store.Get(ctx, entry.JobID)
	if err != nil {
		if errors.Is(err, jobs.ErrStoreUnavailable) {
			p.putBack(ctx, entry, log)
			return fmt.Errorf("failed to fetch job %s: %w", entry.JobID, err)
		}
		log.Error("Unreadable job record, discarding", zap.Error(err))
		return nil
	}
	if !found {
		log.Warn("Job not found, discarding entry")
		return nil
	}
	if job.Status != jobs.StatusQueued {
		log.Warn("Job is not queued, skipping", zap.String("status", string(job.Status)))
		return nil
	}

	ctx, span := otel.Tracer("worker").Start(ctx, "process_job")
	span.SetAttributes(attribute.String("job.id", job.ID))
	defer span.End()

	job, err = p.store.Update(ctx, job.ID, jobs.Processing())
	if err != nil {
		if errors.Is(err, jobs.ErrStoreUnavailable) {
			p.putBack(ctx, entry, log)
			return fmt.Errorf("failed to claim job %s: %w", entry.JobID, err)
		}
		log.Error("Failed to mark job as processing", zap.Error(err))
		return nil
	}
	p.notifier.announce(ctx, job)

	// In-flight work is not cut short by shutdown; each stage is bounded on its own.
	detached := context.WithoutCancel(ctx)

	start := p.now()
	results, convErr := p.convert(detached, job)
	elapsed := p.now().Sub(start)

	patch := jobs.Completed(results, elapsed)
	if convErr != nil {
		span.RecordError(convErr)
		patch = jobs.Failed(convErr.Error(), elapsed)
	}

	job, err = p.store.Update(detached, job.ID, patch)
	if err != nil {
		log.Error("Failed to record job outcome", zap.Error(err), zap.NamedError("outcome", convErr))
		return nil
	}

	if convErr != nil {
		log.Warn("Job failed", zap.Error(convErr), zap.Duration("duration", elapsed))
	} else {
		log.Info("Job completed", zap.Duration("duration", elapsed))
	}
	p.notifier.announce(detached, job)

	return nil
}

// putBack returns an unclaimed entry to the queue. If that fails too the
// record stays queued with nothing pointing at it until it expires.
func (p *Processor) putBack(ctx context.Context, entry queue.Entry, log *zap.Logger) {
	if p.requeue == nil {
		log.Error("Job left queued without a queue entry")
		return
	}
	if err := p.requeue.Push(context.WithoutCancel(ctx), entry); err != nil {
		log.Error("Failed to requeue unclaimed job, it stays queued until resubmitted", zap.Error(err))
		return
	}
	log.Warn("Requeued unclaimed job")
}

func (p *Processor) convert(ctx context.Context, job *jobs.Job) (results *jobs.Results, err error) {
	metrics.ActiveJobs.Inc()
	defer metrics.ActiveJobs.Dec()

	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("Panic during conversion",
				zap.String("job_id", job.ID),
				zap.Any("panic", r),
				zap.Stack("stack"),
			)
			results, err = nil, fmt.Errorf("internal error: %v", r)
		}
	}()

	return p.pipeline.Convert(ctx, job.ImageData, job.OriginalName)
}

// notifier fans a freshly written record out to the event stream and, for
// terminal records, to metrics and the archive. None of it is fatal.
type notifier struct {
	publisher events.Publisher
	archive   Archive
	logger    *zap.Logger
}

func newNotifier(publisher events.Publisher, archive Archive, logger *zap.Logger) *notifier {
	if publisher == nil {
		publisher = events.Nop{}
	}
	return &notifier{publisher: publisher, archive: archive, logger: logger}
}

func (n *notifier) announce(ctx context.Context, job *jobs.Job) {
	if err := n.publisher.Publish(ctx, events.FromJob(job)); err != nil {
		n.logger.Warn("Failed to publish job event",
			zap.String("job_id", job.ID),
			zap.String("status", string(job.Status)),
			zap.Error(err),
		)
	}

	if !job.Status.Terminal() {
		return
	}
	metrics.JobsTotal.WithLabelValues(string(job.Status)).Inc()

	if n.archive == nil {
		return
	}
	if err := n.archive.SaveOutcome(ctx, job); err != nil {
		n.logger.Warn("Failed to archive job outcome", zap.String("job_id", job.ID), zap.Error(err))
	}
}
