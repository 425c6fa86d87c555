package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"imageConverter/internal/jobs"
)

const DefaultKey = "conversion:queue"

// Entry references a job record; the payload itself stays in the registry.
type Entry struct {
	JobID string `json:"jobId"`
}

// Queue is a FIFO list: producers RPUSH, consumers BLPOP. BLPOP removes and
// returns atomically, so concurrent consumers never see the same entry.
type Queue struct {
	client redis.UniversalClient
	key    string
}

func New(client redis.UniversalClient, key string) *Queue {
	if key == "" {
		key = DefaultKey
	}
	return &Queue{client: client, key: key}
}

func (q *Queue) Push(ctx context.Context, entry Entry) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshal entry: %w", err)
	}
	if err := q.client.RPush(ctx, q.key, data).Err(); err != nil {
		return fmt.Errorf("push: %w: %w", jobs.ErrStoreUnavailable, err)
	}
	return nil
}

// Pop blocks up to timeout and returns nil, nil when nothing arrived.
// Redis rounds the timeout to whole seconds with a one second floor.
func (q *Queue) Pop(ctx context.Context, timeout time.Duration) (*Entry, error) {
	res, err := q.client.BLPop(ctx, timeout, q.key).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("pop: %w: %w", jobs.ErrStoreUnavailable, err)
	}
	if len(res) != 2 {
		return nil, fmt.Errorf("pop: unexpected reply length %d", len(res))
	}

	var entry Entry
	if err := json.Unmarshal([]byte(res[1]), &entry); err != nil {
		return nil, fmt.Errorf("decode entry %q: %w", res[1], err)
	}
	return &entry, nil
}

func (q *Queue) Len(ctx context.Context) (int64, error) {
	n, err := q.client.LLen(ctx, q.key).Result()
	if err != nil {
		return 0, fmt.Errorf("len: %w: %w", jobs.ErrStoreUnavailable, err)
	}
	return n, nil
}
