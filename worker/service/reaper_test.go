package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"imageConverter/internal/jobs"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time          { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func TestReaper_ReapOnce(t *testing.T) {
	ctx := context.Background()
	clock := &fakeClock{t: time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)}
	registry, _ := newTestRegistry(t, jobs.WithLeaseTimeout(5*time.Minute), jobs.WithClock(clock.now))
	pub := &recordingPublisher{}
	archive := &recordingArchive{}

	reaper := NewReaper(registry, time.Minute, pub, archive, zaptest.NewLogger(t))
	reaper.now = clock.now

	stuck, err := registry.Create(ctx, "stuck.jpg", []byte("a"), 1)
	require.NoError(t, err)
	_, err = registry.Update(ctx, stuck.ID, jobs.Processing())
	require.NoError(t, err)

	clock.advance(3 * time.Minute)

	fresh, err := registry.Create(ctx, "fresh.jpg", []byte("b"), 1)
	require.NoError(t, err)
	_, err = registry.Update(ctx, fresh.ID, jobs.Processing())
	require.NoError(t, err)

	done, err := registry.Create(ctx, "done.jpg", []byte("c"), 1)
	require.NoError(t, err)
	_, err = registry.Update(ctx, done.ID, jobs.Processing())
	require.NoError(t, err)
	_, err = registry.Update(ctx, done.ID, jobs.Completed(testResults(), time.Second))
	require.NoError(t, err)

	n, err := reaper.ReapOnce(ctx)
	require.NoError(t, err)
	assert.Zero(t, n, "no lease has run out yet")

	clock.advance(3 * time.Minute)

	n, err = reaper.ReapOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	got, _, err := registry.Get(ctx, stuck.ID)
	require.NoError(t, err)
	assert.Equal(t, jobs.StatusFailed, got.Status)
	assert.Equal(t, LeaseExpiredReason, got.Error)
	require.NotNil(t, got.ProcessingTime)
	assert.Equal(t, (6 * time.Minute).Milliseconds(), *got.ProcessingTime)

	got, _, err = registry.Get(ctx, fresh.ID)
	require.NoError(t, err)
	assert.Equal(t, jobs.StatusProcessing, got.Status)

	got, _, err = registry.Get(ctx, done.ID)
	require.NoError(t, err)
	assert.Equal(t, jobs.StatusCompleted, got.Status)

	assert.Equal(t, []jobs.Status{jobs.StatusFailed}, pub.statuses())
	require.Len(t, archive.saved, 1)
	assert.Equal(t, stuck.ID, archive.saved[0].ID)

	n, err = reaper.ReapOnce(ctx)
	require.NoError(t, err)
	assert.Zero(t, n, "reaped jobs release their lease")
}

func TestReaper_DropsLeasesOfDeletedJobs(t *testing.T) {
	ctx := context.Background()
	clock := &fakeClock{t: time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)}
	registry, mr := newTestRegistry(t, jobs.WithLeaseTimeout(time.Minute), jobs.WithClock(clock.now))

	reaper := NewReaper(registry, time.Minute, nil, nil, zaptest.NewLogger(t))
	reaper.now = clock.now

	job, err := registry.Create(ctx, "gone.jpg", []byte("a"), 1)
	require.NoError(t, err)
	_, err = registry.Update(ctx, job.ID, jobs.Processing())
	require.NoError(t, err)

	// TTL expiry removes the record but not its lease entry.
	mr.Del(jobs.DefaultKeyPrefix + job.ID)
	clock.advance(2 * time.Minute)

	n, err := reaper.ReapOnce(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	ids, err := registry.ExpiredLeases(ctx, clock.now(), 10)
	require.NoError(t, err)
	assert.Empty(t, ids)
}

func TestReaper_RunStopsOnCancel(t *testing.T) {
	registry, _ := newTestRegistry(t)
	reaper := NewReaper(registry, 10*time.Millisecond, nil, nil, zaptest.NewLogger(t))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		reaper.Run(ctx)
		close(done)
	}()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("reaper did not stop after cancel")
	}
}
