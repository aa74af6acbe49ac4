// Package inmemory provides a channel-backed job queue and a map-backed job
// store for single-instance deployments.
package inmemory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/dvloznov/bankdata-pipeline/internal/jobs"
	"github.com/dvloznov/bankdata-pipeline/internal/logger"
	"github.com/google/uuid"
)

// Queue is an in-memory implementation of job publisher and consumer.
// A single worker executes jobs one at a time in publish order, so runs
// triggered through one process never overlap on the target tables.
type Queue struct {
	jobChan   chan *jobs.PipelineRunJob
	closeChan chan struct{}
	wg        sync.WaitGroup
	mu        sync.RWMutex
	store     jobs.JobStore
	closed    bool
	now       func() time.Time
}

// NewQueue creates a new in-memory job queue.
// bufferSize determines how many jobs can wait before PublishPipelineRun blocks.
func NewQueue(bufferSize int, store jobs.JobStore) *Queue {
	return &Queue{
		jobChan:   make(chan *jobs.PipelineRunJob, bufferSize),
		closeChan: make(chan struct{}),
		store:     store,
		now:       time.Now,
	}
}

// PublishPipelineRun enqueues a run.
func (q *Queue) PublishPipelineRun(ctx context.Context, job *jobs.PipelineRunJob) error {
	q.mu.RLock()
	closed := q.closed
	q.mu.RUnlock()
	if closed {
		return jobs.ErrQueueClosed
	}

	if job.JobID == "" {
		job.JobID = uuid.New().String()
	}
	job.Status = jobs.JobStatusPending
	if job.CreatedAt.IsZero() {
		job.CreatedAt = q.now()
	}

	if q.store != nil {
		if err := q.store.SaveJob(ctx, job); err != nil {
			return fmt.Errorf("PublishPipelineRun: saving job: %w", err)
		}
	}

	select {
	case q.jobChan <- job:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-q.closeChan:
		return jobs.ErrQueueClosed
	}
}

// Start launches the worker.
func (q *Queue) Start(ctx context.Context, handler jobs.JobHandler) error {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		return jobs.ErrQueueClosed
	}

	q.wg.Add(1)
	go q.worker(ctx, handler)

	return nil
}

func (q *Queue) worker(ctx context.Context, handler jobs.JobHandler) {
	defer q.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case <-q.closeChan:
			return
		case job := <-q.jobChan:
			if job == nil {
				return
			}
			q.processJob(ctx, job, handler)
		}
	}
}

// processJob runs a job once; failures are recorded, never retried.
func (q *Queue) processJob(ctx context.Context, job *jobs.PipelineRunJob, handler jobs.JobHandler) {
	log := logger.FromContext(ctx).With().Str("job_id", job.JobID).Logger()
	ctx = logger.WithContext(ctx, log)

	started := q.now()
	job.Status = jobs.JobStatusRunning
	job.StartedAt = &started
	q.save(ctx, job)

	log.Info().Strs("sources", job.Sources).Msg("Processing pipeline run job")

	err := handler(ctx, job)

	completed := q.now()
	job.CompletedAt = &completed
	if err != nil {
		job.Status = jobs.JobStatusFailed
		job.Error = err.Error()
		log.Error().Err(err).Msg("Pipeline run job failed")
	} else {
		job.Status = jobs.JobStatusCompleted
		job.Error = ""
		log.Info().Dur("duration", completed.Sub(started)).Msg("Pipeline run job completed")
	}
	q.save(ctx, job)
}

func (q *Queue) save(ctx context.Context, job *jobs.PipelineRunJob) {
	if q.store == nil {
		return
	}
	if err := q.store.SaveJob(ctx, job); err != nil {
		log := logger.FromContext(ctx)
		log.Warn().Err(err).Msg("Failed to save job state")
	}
}

// Stop closes the queue and waits for the in-flight job. Jobs still waiting
// in the buffer stay pending in the store.
func (q *Queue) Stop(ctx context.Context) error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return nil
	}
	q.closed = true
	close(q.closeChan)
	q.mu.Unlock()

	done := make(chan struct{})
	go func() {
		q.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close implements the Publisher interface.
func (q *Queue) Close() error {
	return q.Stop(context.Background())
}

var _ jobs.Publisher = (*Queue)(nil)
var _ jobs.Consumer = (*Queue)(nil)
