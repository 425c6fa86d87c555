package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	DefaultKeyPrefix = "conversion:job:"
	DefaultLeaseKey  = "conversion:leases"
	DefaultTTL       = 24 * time.Hour

	maxUpdateAttempts = 5
)

// Registry is the only writer of job records. Each record is one JSON blob
// stored under its own key with a TTL that is refreshed on every write.
type Registry struct {
	client       redis.UniversalClient
	keyPrefix    string
	leaseKey     string
	ttl          time.Duration
	leaseTimeout time.Duration
	now          func() time.Time
}

type Option func(*Registry)

func WithTTL(ttl time.Duration) Option {
	return func(r *Registry) { r.ttl = ttl }
}

func WithKeyPrefix(prefix string) Option {
	return func(r *Registry) { r.keyPrefix = prefix }
}

// WithLeaseTimeout stamps a lease on every record entering processing.
// Zero disables leases.
func WithLeaseTimeout(d time.Duration) Option {
	return func(r *Registry) { r.leaseTimeout = d }
}

func WithClock(now func() time.Time) Option {
	return func(r *Registry) { r.now = now }
}

func NewRegistry(client redis.UniversalClient, opts ...Option) *Registry {
	r := &Registry{
		client:    client,
		keyPrefix: DefaultKeyPrefix,
		leaseKey:  DefaultLeaseKey,
		ttl:       DefaultTTL,
		now:       func() time.Time { return time.Now().UTC() },
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

func (r *Registry) key(id string) string {
	return r.keyPrefix + id
}

func (r *Registry) Create(ctx context.Context, originalName string, payload []byte, size int64) (*Job, error) {
	now := r.now()
	job := &Job{
		ID:           uuid.New().String(),
		Status:       StatusQueued,
		CreatedAt:    now,
		UpdatedAt:    now,
		OriginalName: originalName,
		OriginalSize: size,
		ImageData:    payload,
	}

	data, err := json.Marshal(job)
	if err != nil {
		return nil, fmt.Errorf("marshal job: %w", err)
	}

	if err := r.client.Set(ctx, r.key(job.ID), data, r.ttl).Err(); err != nil {
		return nil, unavailable("create job", err)
	}

	return job, nil
}

// Get returns found=false, not an error, for unknown or expired ids.
func (r *Registry) Get(ctx context.Context, id string) (*Job, bool, error) {
	raw, err := r.client.Get(ctx, r.key(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, unavailable("get job", err)
	}

	var job Job
	if err := json.Unmarshal(raw, &job); err != nil {
		return nil, false, fmt.Errorf("decode job %s: %w", id, err)
	}
	return &job, true, nil
}

// Update is a read-modify-write guarded by WATCH on the record key, so a
// concurrent write or delete aborts the transaction instead of being lost.
func (r *Registry) Update(ctx context.Context, id string, patch Patch) (*Job, error) {
	key := r.key(id)
	var updated *Job

	txf := func(tx *redis.Tx) error {
		raw, err := tx.Get(ctx, key).Bytes()
		if errors.Is(err, redis.Nil) {
			return fmt.Errorf("%w: %s", ErrJobNotFound, id)
		}
		if err != nil {
			return unavailable("get job", err)
		}

		var job Job
		if err := json.Unmarshal(raw, &job); err != nil {
			return fmt.Errorf("decode job %s: %w", id, err)
		}

		now := r.now()
		if err := job.apply(patch, now); err != nil {
			return err
		}

		switch {
		case job.Status == StatusProcessing && r.leaseTimeout > 0 && job.LeaseExpiresAt == nil:
			expires := now.Add(r.leaseTimeout)
			job.LeaseExpiresAt = &expires
		case job.Status.Terminal():
			job.LeaseExpiresAt = nil
		}

		data, err := json.Marshal(&job)
		if err != nil {
			return fmt.Errorf("marshal job: %w", err)
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, data, r.ttl)
			if job.LeaseExpiresAt != nil {
				pipe.ZAdd(ctx, r.leaseKey, redis.Z{Score: float64(job.LeaseExpiresAt.UnixMilli()), Member: id})
			} else {
				pipe.ZRem(ctx, r.leaseKey, id)
			}
			return nil
		})
		if err != nil {
			if errors.Is(err, redis.TxFailedErr) {
				return err
			}
			return unavailable("write job", err)
		}

		updated = &job
		return nil
	}

	for attempt := 0; attempt < maxUpdateAttempts; attempt++ {
		err := r.client.Watch(ctx, txf, key)
		switch {
		case err == nil:
			return updated, nil
		case errors.Is(err, redis.TxFailedErr):
			continue
		case errors.Is(err, ErrJobNotFound), errors.Is(err, ErrInvalidTransition), errors.Is(err, ErrStoreUnavailable):
			return nil, err
		default:
			if isRedisFailure(err) {
				return nil, unavailable("update job", err)
			}
			return nil, err
		}
	}

	return nil, fmt.Errorf("%w: job %s", ErrConflict, id)
}

func (r *Registry) Delete(ctx context.Context, id string) error {
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, r.key(id))
		pipe.ZRem(ctx, r.leaseKey, id)
		return nil
	})
	if err != nil {
		return unavailable("delete job", err)
	}
	return nil
}

// ExpiredLeases lists up to limit job ids whose processing lease ended at or before now.
func (r *Registry) ExpiredLeases(ctx context.Context, now time.Time, limit int64) ([]string, error) {
	ids, err := r.client.ZRangeByScore(ctx, r.leaseKey, &redis.ZRangeBy{
		Min:   "-inf",
		Max:   strconv.FormatInt(now.UnixMilli(), 10),
		Count: limit,
	}).Result()
	if err != nil {
		return nil, unavailable("list leases", err)
	}
	return ids, nil
}

// ReleaseLease drops a lease entry without touching the record.
func (r *Registry) ReleaseLease(ctx context.Context, id string) error {
	if err := r.client.ZRem(ctx, r.leaseKey, id).Err(); err != nil {
		return unavailable("release lease", err)
	}
	return nil
}

// Ping reports store connectivity.
func (r *Registry) Ping(ctx context.Context) error {
	if err := r.client.Ping(ctx).Err(); err != nil {
		return unavailable("ping", err)
	}
	return nil
}

func unavailable(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, ErrStoreUnavailable, err)
}

// isRedisFailure separates transport and server errors from errors returned
// by our own transaction body.
func isRedisFailure(err error) bool {
	var redisErr redis.Error
	if errors.As(err, &redisErr) {
		return true
	}
	var netErr interface{ Timeout() bool }
	return errors.As(err, &netErr) || errors.Is(err, redis.ErrClosed) || errors.Is(err, context.DeadlineExceeded)
}
