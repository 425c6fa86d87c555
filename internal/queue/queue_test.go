package queue

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"imageConverter/internal/jobs"
)

func newTestQueue(t *testing.T) (*Queue, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return New(client, ""), mr
}

func TestQueue_PushThenPop(t *testing.T) {
	q, _ := newTestQueue(t)
	ctx := context.Background()

	require.NoError(t, q.Push(ctx, Entry{JobID: "job-1"}))

	entry, err := q.Pop(ctx, time.Second)
	require.NoError(t, err)
	require.NotNil(t, entry)
	assert.Equal(t, "job-1", entry.JobID)
}

func TestQueue_FIFO(t *testing.T) {
	q, _ := newTestQueue(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		require.NoError(t, q.Push(ctx, Entry{JobID: fmt.Sprintf("job-%d", i)}))
	}

	n, err := q.Len(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(5), n)

	for i := 0; i < 5; i++ {
		entry, err := q.Pop(ctx, time.Second)
		require.NoError(t, err)
		require.NotNil(t, entry)
		assert.Equal(t, fmt.Sprintf("job-%d", i), entry.JobID)
	}
}

func TestQueue_PopEmptyWaitsForTimeout(t *testing.T) {
	q, _ := newTestQueue(t)

	start := time.Now()
	entry, err := q.Pop(context.Background(), time.Second)
	elapsed := time.Since(start)

	require.NoError(t, err)
	assert.Nil(t, entry)
	assert.GreaterOrEqual(t, elapsed, time.Second)
	assert.Less(t, elapsed, 2*time.Second)
}

func TestQueue_PopWakesOnPush(t *testing.T) {
	q, _ := newTestQueue(t)
	ctx := context.Background()

	go func() {
		time.Sleep(100 * time.Millisecond)
		_ = q.Push(ctx, Entry{JobID: "late"})
	}()

	entry, err := q.Pop(ctx, 5*time.Second)
	require.NoError(t, err)
	require.NotNil(t, entry)
	assert.Equal(t, "late", entry.JobID)
}

func TestQueue_ConcurrentConsumersReceiveDisjointEntries(t *testing.T) {
	tests := []struct {
		name      string
		consumers int
		entries   int
	}{
		{name: "2 consumers, 20 entries", consumers: 2, entries: 20},
		{name: "4 consumers, 50 entries", consumers: 4, entries: 50},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q, _ := newTestQueue(t)
			ctx := context.Background()

			pushed := make([]string, 0, tt.entries)
			for i := 0; i < tt.entries; i++ {
				id := fmt.Sprintf("job-%03d", i)
				pushed = append(pushed, id)
				require.NoError(t, q.Push(ctx, Entry{JobID: id}))
			}

			var (
				mu       sync.Mutex
				received []string
				wg       sync.WaitGroup
			)
			for c := 0; c < tt.consumers; c++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					for {
						entry, err := q.Pop(ctx, time.Second)
						if err != nil || entry == nil {
							return
						}
						mu.Lock()
						received = append(received, entry.JobID)
						mu.Unlock()
					}
				}()
			}
			wg.Wait()

			sort.Strings(received)
			assert.Equal(t, pushed, received, "every entry delivered exactly once")
		})
	}
}

func TestQueue_StoreUnavailable(t *testing.T) {
	q, mr := newTestQueue(t)
	mr.Close()
	ctx := context.Background()

	err := q.Push(ctx, Entry{JobID: "job-1"})
	assert.ErrorIs(t, err, jobs.ErrStoreUnavailable)

	_, err = q.Pop(ctx, time.Second)
	assert.ErrorIs(t, err, jobs.ErrStoreUnavailable)
}
