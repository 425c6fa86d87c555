package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"imageConverter/internal/events"
	"imageConverter/internal/jobs"
	"imageConverter/internal/queue"
)

type mockPipeline struct {
	ConvertFunc func(ctx context.Context, data []byte, originalName string) (*jobs.Results, error)
}

func (m *mockPipeline) Convert(ctx context.Context, data []byte, originalName string) (*jobs.Results, error) {
	return m.ConvertFunc(ctx, data, originalName)
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.Event
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, e events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return p.err
}

func (p *recordingPublisher) Close() error { return nil }

func (p *recordingPublisher) statuses() []jobs.Status {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]jobs.Status, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.Status)
	}
	return out
}

type recordingArchive struct {
	mu    sync.Mutex
	saved []*jobs.Job
}

func (a *recordingArchive) SaveOutcome(_ context.Context, job *jobs.Job) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.saved = append(a.saved, job)
	return nil
}

func newTestRegistry(t *testing.T, opts ...jobs.Option) (*jobs.Registry, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return jobs.NewRegistry(client, opts...), mr
}

func testResults() *jobs.Results {
	thumb, full := []byte("thumb"), []byte("full-size")
	return &jobs.Results{
		Thumbnail:    jobs.Variant{Filename: "cat_thumbnail.avif", Data: thumb, Size: len(thumb), Width: 200, Height: 150},
		FullSize:     jobs.Variant{Filename: "cat.avif", Data: full, Size: len(full), Width: 800, Height: 600},
		OriginalSize: 4,
	}
}

func TestProcessor_Process(t *testing.T) {
	tests := []struct {
		name        string
		convert     func(ctx context.Context, data []byte, name string) (*jobs.Results, error)
		wantStatus  jobs.Status
		wantError   string
		wantResults bool
	}{
		{
			name: "conversion succeeds",
			convert: func(_ context.Context, data []byte, name string) (*jobs.Results, error) {
				if name != "cat.jpg" || string(data) != "jpeg" {
					return nil, errors.New("unexpected input")
				}
				return testResults(), nil
			},
			wantStatus:  jobs.StatusCompleted,
			wantResults: true,
		},
		{
			name: "pipeline fails",
			convert: func(context.Context, []byte, string) (*jobs.Results, error) {
				return nil, errors.New("extract_metadata: metadata extraction failed: exiftool crashed")
			},
			wantStatus: jobs.StatusFailed,
			wantError:  "metadata",
		},
		{
			name: "pipeline panics",
			convert: func(context.Context, []byte, string) (*jobs.Results, error) {
				panic("nil map write")
			},
			wantStatus: jobs.StatusFailed,
			wantError:  "internal error: nil map write",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			registry, _ := newTestRegistry(t, jobs.WithLeaseTimeout(time.Minute))
			pub := &recordingPublisher{}
			archive := &recordingArchive{}
			p := NewProcessor(registry, nil, &mockPipeline{ConvertFunc: tt.convert}, pub, archive, zaptest.NewLogger(t))

			job, err := registry.Create(ctx, "cat.jpg", []byte("jpeg"), 4)
			require.NoError(t, err)

			require.NoError(t, p.Process(ctx, queue.Entry{JobID: job.ID}))

			got, found, err := registry.Get(ctx, job.ID)
			require.NoError(t, err)
			require.True(t, found)
			assert.Equal(t, tt.wantStatus, got.Status)
			require.NotNil(t, got.ProcessingTime)
			assert.GreaterOrEqual(t, *got.ProcessingTime, int64(0))
			assert.Nil(t, got.LeaseExpiresAt, "terminal records hold no lease")

			if tt.wantResults {
				require.NotNil(t, got.Results)
				assert.Empty(t, got.Error)
				assert.Equal(t, len(got.Results.Thumbnail.Data), got.Results.Thumbnail.Size)
			} else {
				assert.Nil(t, got.Results)
				assert.Contains(t, got.Error, tt.wantError)
			}

			assert.Equal(t, []jobs.Status{jobs.StatusProcessing, tt.wantStatus}, pub.statuses())
			require.Len(t, archive.saved, 1)
			assert.Equal(t, tt.wantStatus, archive.saved[0].Status)
		})
	}
}

func TestProcessor_MissingJobIsDiscarded(t *testing.T) {
	registry, _ := newTestRegistry(t)
	pub := &recordingPublisher{}
	called := false
	p := NewProcessor(registry, nil, &mockPipeline{ConvertFunc: func(context.Context, []byte, string) (*jobs.Results, error) {
		called = true
		return testResults(), nil
	}}, pub, nil, zaptest.NewLogger(t))

	require.NoError(t, p.Process(context.Background(), queue.Entry{JobID: "expired-or-unknown"}))
	assert.False(t, called)
	assert.Empty(t, pub.statuses())
}

func TestProcessor_SkipsJobsThatAreNotQueued(t *testing.T) {
	ctx := context.Background()
	registry, _ := newTestRegistry(t)

	job, err := registry.Create(ctx, "cat.jpg", []byte("jpeg"), 4)
	require.NoError(t, err)
	_, err = registry.Update(ctx, job.ID, jobs.Processing())
	require.NoError(t, err)
	_, err = registry.Update(ctx, job.ID, jobs.Failed("earlier failure", time.Second))
	require.NoError(t, err)

	called := false
	p := NewProcessor(registry, nil, &mockPipeline{ConvertFunc: func(context.Context, []byte, string) (*jobs.Results, error) {
		called = true
		return testResults(), nil
	}}, nil, nil, zaptest.NewLogger(t))

	require.NoError(t, p.Process(ctx, queue.Entry{JobID: job.ID}))
	assert.False(t, called)

	got, _, err := registry.Get(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, jobs.StatusFailed, got.Status)
	assert.Equal(t, "earlier failure", got.Error)
}

func TestProcessor_StoreUnavailableSurfaces(t *testing.T) {
	registry, mr := newTestRegistry(t)
	q := &recordingQueue{err: jobs.ErrStoreUnavailable}
	p := NewProcessor(registry, q, &mockPipeline{}, nil, nil, zaptest.NewLogger(t))
	mr.Close()

	err := p.Process(context.Background(), queue.Entry{JobID: "any"})
	require.Error(t, err)
	assert.ErrorIs(t, err, jobs.ErrStoreUnavailable)
	assert.Equal(t, []queue.Entry{{JobID: "any"}}, q.pushed)
}

func TestProcessor_FinishesInFlightJobAfterCancel(t *testing.T) {
	registry, _ := newTestRegistry(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	job, err := registry.Create(ctx, "cat.jpg", []byte("jpeg"), 4)
	require.NoError(t, err)

	p := NewProcessor(registry, nil, &mockPipeline{ConvertFunc: func(ctx context.Context, _ []byte, _ string) (*jobs.Results, error) {
		cancel()
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return testResults(), nil
	}}, nil, nil, zaptest.NewLogger(t))

	require.NoError(t, p.Process(ctx, queue.Entry{JobID: job.ID}))

	got, _, err := registry.Get(context.Background(), job.ID)
	require.NoError(t, err)
	assert.Equal(t, jobs.StatusCompleted, got.Status)
}

func TestProcessor_PublishFailureIsNotFatal(t *testing.T) {
	ctx := context.Background()
	registry, _ := newTestRegistry(t)
	pub := &recordingPublisher{err: errors.New("broker down")}

	job, err := registry.Create(ctx, "cat.jpg", []byte("jpeg"), 4)
	require.NoError(t, err)

	p := NewProcessor(registry, nil, &mockPipeline{ConvertFunc: func(context.Context, []byte, string) (*jobs.Results, error) {
		return testResults(), nil
	}}, pub, nil, zaptest.NewLogger(t))

	require.NoError(t, p.Process(ctx, queue.Entry{JobID: job.ID}))

	got, _, err := registry.Get(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, jobs.StatusCompleted, got.Status)
	assert.Len(t, pub.statuses(), 2)
}

// claimFailingStore reads through to the registry but cannot write.
type claimFailingStore struct {
	*jobs.Registry
}

func (s claimFailingStore) Update(context.Context, string, jobs.Patch) (*jobs.Job, error) {
	return nil, jobs.ErrStoreUnavailable
}

type recordingQueue struct {
	pushed []queue.Entry
	err    error
}

func (q *recordingQueue) Push(_ context.Context, entry queue.Entry) error {
	q.pushed = append(q.pushed, entry)
	return q.err
}

func TestProcessor_ClaimFailureRequeues(t *testing.T) {
	tests := []struct {
		name    string
		pushErr error
	}{
		{name: "requeued"},
		{name: "requeue also fails", pushErr: jobs.ErrStoreUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			registry, _ := newTestRegistry(t)
			job, err := registry.Create(ctx, "cat.jpg", []byte("jpeg"), 4)
			require.NoError(t, err)

			q := &recordingQueue{err: tt.pushErr}
			p := NewProcessor(claimFailingStore{registry}, q, &mockPipeline{ConvertFunc: func(context.Context, []byte, string) (*jobs.Results, error) {
				t.Fatal("pipeline must not run for an unclaimed job")
				return nil, nil
			}}, nil, nil, zaptest.NewLogger(t))

			err = p.Process(ctx, queue.Entry{JobID: job.ID})
			assert.ErrorIs(t, err, jobs.ErrStoreUnavailable)
			assert.Equal(t, []queue.Entry{{JobID: job.ID}}, q.pushed)

			got, _, err := registry.Get(ctx, job.ID)
			require.NoError(t, err)
			assert.Equal(t, jobs.StatusQueued, got.Status)
		})
	}
}
