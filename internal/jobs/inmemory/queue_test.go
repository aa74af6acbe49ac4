package inmemory

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dvloznov/bankdata-pipeline/internal/jobs"
	"github.com/dvloznov/bankdata-pipeline/internal/pipeline"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func waitForStatus(t *testing.T, store *Store, id string, want jobs.JobStatus) *jobs.PipelineRunJob {
	t.Helper()
	var job *jobs.PipelineRunJob
	require.Eventually(t, func() bool {
		got, err := store.GetJob(context.Background(), id)
		if err != nil {
			return false
		}
		job = got
		return got.Status == want
	}, 2*time.Second, 5*time.Millisecond)
	return job
}

func TestQueue_CompletesJob(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	q := NewQueue(4, store)

	require.NoError(t, q.Start(ctx, func(ctx context.Context, job *jobs.PipelineRunJob) error {
		job.Report = &pipeline.RunReport{RunID: "run-1", MainRowsLoaded: 6}
		return nil
	}))
	defer q.Stop(ctx)

	job := &jobs.PipelineRunJob{Sources: []string{"a.json"}}
	require.NoError(t, q.PublishPipelineRun(ctx, job))
	assert.NotEmpty(t, job.JobID)

	done := waitForStatus(t, store, job.JobID, jobs.JobStatusCompleted)
	require.NotNil(t, done.Report)
	assert.Equal(t, int64(6), done.Report.MainRowsLoaded)
	assert.NotNil(t, done.StartedAt)
	assert.NotNil(t, done.CompletedAt)
	assert.Empty(t, done.Error)
}

func TestQueue_FailedJobIsNotRetried(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	q := NewQueue(4, store)

	var calls int32
	require.NoError(t, q.Start(ctx, func(ctx context.Context, job *jobs.PipelineRunJob) error {
		atomic.AddInt32(&calls, 1)
		return errors.New("warehouse unavailable")
	}))
	defer q.Stop(ctx)

	job := &jobs.PipelineRunJob{}
	require.NoError(t, q.PublishPipelineRun(ctx, job))

	failed := waitForStatus(t, store, job.JobID, jobs.JobStatusFailed)
	assert.Equal(t, "warehouse unavailable", failed.Error)

	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestQueue_RunsJobsOneAtATime(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	q := NewQueue(8, store)

	var (
		mu      sync.Mutex
		running int
		maxSeen int
		order   []string
	)
	require.NoError(t, q.Start(ctx, func(ctx context.Context, job *jobs.PipelineRunJob) error {
		mu.Lock()
		running++
		if running > maxSeen {
			maxSeen = running
		}
		order = append(order, job.JobID)
		mu.Unlock()

		time.Sleep(5 * time.Millisecond)

		mu.Lock()
		running--
		mu.Unlock()
		return nil
	}))
	defer q.Stop(ctx)

	ids := []string{"j1", "j2", "j3", "j4"}
	for _, id := range ids {
		require.NoError(t, q.PublishPipelineRun(ctx, &jobs.PipelineRunJob{JobID: id}))
	}
	waitForStatus(t, store, "j4", jobs.JobStatusCompleted)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 1, maxSeen)
	assert.Equal(t, ids, order)
}

func TestQueue_PublishAfterStop(t *testing.T) {
	ctx := context.Background()
	q := NewQueue(1, NewStore())
	require.NoError(t, q.Stop(ctx))

	err := q.PublishPipelineRun(ctx, &jobs.PipelineRunJob{})
	assert.ErrorIs(t, err, jobs.ErrQueueClosed)
	assert.NoError(t, q.Close())
}
