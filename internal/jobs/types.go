// Package jobs defines the asynchronous statement-import job model and
// the queue abstractions it flows through.
package jobs

import (
	"context"
	"time"

	"github.com/pennywise-dev/pennywise/internal/domain"
)

// JobType represents the type of job to be executed.
type JobType string

const (
	// JobTypeImportStatement represents a statement import job.
	JobTypeImportStatement JobType = "import_statement"
)

// JobStatus represents the current status of a job.
type JobStatus string

const (
	JobStatusPending   JobStatus = "pending"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
	JobStatusRetrying  JobStatus = "retrying"
)

// ImportStatementJob is a job to fetch a statement document and run it
// through the ingestion pipeline.
type ImportStatementJob struct {
	// JobID is the unique identifier for this job.
	JobID string `json:"job_id"`

	// SourceRef locates the statement text: a local path or gs:// URI.
	SourceRef string `json:"source_ref"`

	// Format names the parser to use, e.g. "chase-credit".
	Format string `json:"format"`

	// Status is the current status of the job.
	Status JobStatus `json:"status"`

	// Summary holds the import result once the job completes.
	Summary *domain.ImportSummary `json:"summary,omitempty"`

	CreatedAt   time.Time  `json:"created_at"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`

	// Error contains error details if the job failed.
	Error string `json:"error,omitempty"`

	RetryCount int `json:"retry_count"`
	MaxRetries int `json:"max_retries"`
}

// Job is a generic interface for all job types.
type Job interface {
	GetID() string
	GetType() JobType
	GetStatus() JobStatus
}

func (j *ImportStatementJob) GetID() string {
	return j.JobID
}

func (j *ImportStatementJob) GetType() JobType {
	return JobTypeImportStatement
}

func (j *ImportStatementJob) GetStatus() JobStatus {
	return j.Status
}

// Publisher defines the interface for publishing jobs to a queue.
// The abstraction allows swapping the in-memory queue for Cloud Tasks or
// Pub/Sub without touching callers.
type Publisher interface {
	PublishImportStatement(ctx context.Context, job *ImportStatementJob) error
	Close() error
}

// Consumer defines the interface for consuming jobs from a queue.
type Consumer interface {
	// Start begins consuming jobs from the queue.
	// The handler function is called for each job received.
	Start(ctx context.Context, handler JobHandler) error

	// Stop stops consuming jobs and waits for in-flight jobs to complete.
	Stop(ctx context.Context) error
}

// JobHandler is a function that processes a job.
// It should return an error if the job failed and should be retried.
type JobHandler func(ctx context.Context, job Job) error

// JobStore tracks job state so callers can poll import progress.
type JobStore interface {
	SaveJob(ctx context.Context, job *ImportStatementJob) error
	GetJob(ctx context.Context, jobID string) (*ImportStatementJob, error)
	ListJobs(ctx context.Context, filter JobFilter) ([]*ImportStatementJob, error)
	UpdateJobStatus(ctx context.Context, jobID string, status JobStatus, errorMsg string) error
}

// JobFilter defines filtering criteria for listing jobs.
type JobFilter struct {
	// SourceRef filters jobs by statement source reference.
	SourceRef string

	// Status filters jobs by status.
	Status JobStatus

	// Limit limits the number of results.
	Limit int

	// Offset for pagination.
	Offset int
}
