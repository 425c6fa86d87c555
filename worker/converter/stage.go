package converter

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"

	"imageConverter/internal/metrics"
)

const (
	StageExtractMetadata = "extract_metadata"
	StageDecode          = "decode"
	StageThumbnail       = "thumbnail"
	StageFullSize        = "full_size"
	StageWriteMetadata   = "write_metadata"
)

type stageResult[T any] struct {
	val T
	err error
}

// runStage runs fn in its own goroutine and waits at most timeout for it.
// A stage that overruns is reported as failed and its result discarded; the
// goroutine itself is not killed and may keep running until the codec call
// returns.
func runStage[T any](ctx context.Context, stage string, timeout time.Duration, fn func(context.Context) (T, error)) (T, error) {
	ctx, span := otel.Tracer("converter").Start(ctx, stage)
	defer span.End()

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	done := make(chan stageResult[T], 1)

	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- stageResult[T]{err: fmt.Errorf("panic: %v", r)}
			}
		}()
		val, err := fn(ctx)
		done <- stageResult[T]{val: val, err: err}
	}()

	var zero T
	select {
	case res := <-done:
		if res.err != nil {
			metrics.StageDuration.WithLabelValues(stage, "error").Observe(time.Since(start).Seconds())
			span.RecordError(res.err)
			return zero, &StageError{Stage: stage, Err: res.err}
		}
		metrics.StageDuration.WithLabelValues(stage, "ok").Observe(time.Since(start).Seconds())
		return res.val, nil
	case <-ctx.Done():
		metrics.StageDuration.WithLabelValues(stage, "timeout").Observe(time.Since(start).Seconds())
		err := ctx.Err()
		if errors.Is(err, context.DeadlineExceeded) {
			err = fmt.Errorf("%w after %s", ErrStageTimeout, timeout)
		}
		span.RecordError(err)
		return zero, &StageError{Stage: stage, Err: err}
	}
}
