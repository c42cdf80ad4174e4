package inmemory

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dvloznov/fintrack/internal/jobs"
)

func newTestQueue(store jobs.JobStore) *Queue {
	return NewQueue(Options{BufferSize: 10, Workers: 2, Backoff: 5 * time.Millisecond}, store, zerolog.Nop())
}

func waitForStatus(t *testing.T, store *Store, id string, want jobs.JobStatus) *jobs.IngestJob {
	t.Helper()
	var job *jobs.IngestJob
	require.Eventually(t, func() bool {
		j, err := store.GetJob(context.Background(), id)
		if err != nil {
			return false
		}
		job = j
		return j.Status == want
	}, 2*time.Second, 5*time.Millisecond)
	return job
}

func TestQueue_ProcessesJob(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	store := NewStore()
	q := newTestQueue(store)

	require.NoError(t, q.Start(ctx, func(ctx context.Context, job *jobs.IngestJob) error {
		assert.Equal(t, []byte("a,b\n"), job.Content)
		job.Count = 2
		job.TransactionIDs = []string{"t1", "t2"}
		return nil
	}))

	job := &jobs.IngestJob{Filename: "statement.csv", Content: []byte("a,b\n")}
	require.NoError(t, q.Publish(ctx, job))
	require.NotEmpty(t, job.JobID)
	assert.Equal(t, jobs.DefaultMaxRetries, job.MaxRetries)

	done := waitForStatus(t, store, job.JobID, jobs.JobStatusCompleted)
	assert.Equal(t, 2, done.Count)
	assert.Equal(t, []string{"t1", "t2"}, done.TransactionIDs)
	assert.NotNil(t, done.StartedAt)
	assert.NotNil(t, done.CompletedAt)

	require.NoError(t, q.Stop(context.Background()))
}

func TestQueue_RetriesThenSucceeds(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	store := NewStore()
	q := newTestQueue(store)

	var attempts int32
	require.NoError(t, q.Start(ctx, func(ctx context.Context, job *jobs.IngestJob) error {
		if atomic.AddInt32(&attempts, 1) < 3 {
			return errors.New("model unavailable")
		}
		return nil
	}))

	job := &jobs.IngestJob{Filename: "statement.txt"}
	require.NoError(t, q.Publish(ctx, job))

	done := waitForStatus(t, store, job.JobID, jobs.JobStatusCompleted)
	assert.Equal(t, 2, done.RetryCount)
	assert.Empty(t, done.Error)
	assert.Equal(t, int32(3), atomic.LoadInt32(&attempts))

	require.NoError(t, q.Stop(context.Background()))
}

func TestQueue_FailsAfterMaxRetries(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	store := NewStore()
	q := newTestQueue(store)

	require.NoError(t, q.Start(ctx, func(ctx context.Context, job *jobs.IngestJob) error {
		return errors.New("extraction failed")
	}))

	job := &jobs.IngestJob{Filename: "statement.txt", MaxRetries: 1}
	require.NoError(t, q.Publish(ctx, job))

	failed := waitForStatus(t, store, job.JobID, jobs.JobStatusFailed)
	assert.Equal(t, 1, failed.RetryCount)
	assert.Equal(t, "extraction failed", failed.Error)

	require.NoError(t, q.Stop(context.Background()))
}

func TestQueue_PublishAfterStop(t *testing.T) {
	q := newTestQueue(NewStore())
	require.NoError(t, q.Stop(context.Background()))
	require.NoError(t, q.Stop(context.Background()))

	err := q.Publish(context.Background(), &jobs.IngestJob{Filename: "late.csv"})
	assert.ErrorIs(t, err, jobs.ErrQueueClosed)
	assert.ErrorIs(t, q.Start(context.Background(), nil), jobs.ErrQueueClosed)
}

func TestQueue_WorkersGetACopy(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	store := NewStore()
	q := newTestQueue(store)

	require.NoError(t, q.Start(ctx, func(ctx context.Context, job *jobs.IngestJob) error {
		job.Count = 7
		return nil
	}))

	published := make([]*jobs.IngestJob, 50)
	for i := range published {
		published[i] = &jobs.IngestJob{Filename: "statement.csv"}
		require.NoError(t, q.Publish(ctx, published[i]))
		// The handler response reads these right after Publish.
		assert.Equal(t, jobs.JobStatusPending, published[i].Status)
		assert.NotEmpty(t, published[i].JobID)
	}

	for _, job := range published {
		done := waitForStatus(t, store, job.JobID, jobs.JobStatusCompleted)
		assert.Equal(t, 7, done.Count)
		assert.Zero(t, job.Count)
		assert.Nil(t, job.StartedAt)
	}

	require.NoError(t, q.Stop(context.Background()))
}

func TestQueue_StopUnblocksFullQueue(t *testing.T) {
	store := NewStore()
	q := NewQueue(Options{BufferSize: 0, Workers: 1}, store, zerolog.Nop())

	job := &jobs.IngestJob{JobID: "blocked", Filename: "statement.csv"}
	errc := make(chan error, 1)
	go func() { errc <- q.Publish(context.Background(), job) }()

	// Saved means Publish has reached the send.
	require.Eventually(t, func() bool {
		_, err := store.GetJob(context.Background(), "blocked")
		return err == nil
	}, time.Second, 5*time.Millisecond)

	stopCtx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, q.Stop(stopCtx))

	select {
	case err := <-errc:
		assert.ErrorIs(t, err, jobs.ErrQueueClosed)
	case <-time.After(time.Second):
		t.Fatal("Publish still blocked after Stop")
	}
}
