// Package jobs defines asynchronous pipeline-run jobs and their queue and
// store abstractions.
package jobs

import (
	"context"
	"errors"
	"time"

	"github.com/dvloznov/bankdata-pipeline/internal/pipeline"
)

// ErrJobNotFound is returned by stores for unknown job ids.
var ErrJobNotFound = errors.New("job not found")

// ErrQueueClosed is returned when publishing to a stopped queue.
var ErrQueueClosed = errors.New("queue is closed")

// JobStatus represents the current status of a job.
type JobStatus string

const (
	// JobStatusPending indicates the job is waiting to be processed.
	JobStatusPending JobStatus = "pending"
	// JobStatusRunning indicates the job is currently being processed.
	JobStatusRunning JobStatus = "running"
	// JobStatusCompleted indicates the job completed successfully.
	JobStatusCompleted JobStatus = "completed"
	// JobStatusFailed indicates the job failed. Failed runs are not retried;
	// the caller re-triggers them.
	JobStatusFailed JobStatus = "failed"
)

// PipelineRunJob is one requested pipeline run.
type PipelineRunJob struct {
	JobID string `json:"job_id"`

	// Sources overrides the configured source files when non-empty.
	Sources []string `json:"sources,omitempty"`

	Status      JobStatus  `json:"status"`
	CreatedAt   time.Time  `json:"created_at"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	Error       string     `json:"error,omitempty"`

	// Report is set once the run finishes, including failed runs that got
	// past configuration checks.
	Report *pipeline.RunReport `json:"report,omitempty"`
}

// Publisher enqueues pipeline runs.
type Publisher interface {
	PublishPipelineRun(ctx context.Context, job *PipelineRunJob) error
	Close() error
}

// Consumer delivers queued jobs to a handler.
type Consumer interface {
	// Start begins consuming jobs from the queue.
	Start(ctx context.Context, handler JobHandler) error

	// Stop stops consuming jobs and waits for the in-flight job to complete.
	Stop(ctx context.Context) error
}

// JobHandler executes a run. It may set job.Report; a returned error marks
// the job failed.
type JobHandler func(ctx context.Context, job *PipelineRunJob) error

// JobStore keeps job state for status queries.
type JobStore interface {
	SaveJob(ctx context.Context, job *PipelineRunJob) error
	GetJob(ctx context.Context, jobID string) (*PipelineRunJob, error)
	ListJobs(ctx context.Context, filter JobFilter) ([]*PipelineRunJob, error)
}

// JobFilter defines filtering criteria for listing jobs.
type JobFilter struct {
	Status JobStatus
	Limit  int
	Offset int
}
