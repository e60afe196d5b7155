package scheduler

import (
	"sync"
	"sync/atomic"
	"time"
)

// JobStatus is the lifecycle state of an ingestion job
type JobStatus string

const (
	StatusQueued    JobStatus = "queued"
	StatusRunning   JobStatus = "running"
	StatusCompleted JobStatus = "completed"
	StatusFailed    JobStatus = "failed"
	StatusCancelled JobStatus = "cancelled"
)

// Terminal reports whether the status admits no further transitions
func (s JobStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusCancelled
}

// JobKind selects which pipeline operation the job runs
type JobKind string

const (
	KindIndexDirectory JobKind = "index_directory"
	KindReindex        JobKind = "reindex"
)

// Job is one queued ingestion request and its live progress
type Job struct {
	ID          string
	Context     string
	Kind        JobKind
	Path        string
	Recursive   bool
	RemoveStale bool

	filesProcessed atomic.Int64
	cancelled      atomic.Bool

	mu         sync.Mutex
	status     JobStatus
	position   int
	errors     []string
	enqueuedAt time.Time
	startedAt  time.Time
	finishedAt time.Time
}

// FileDone bumps the files-processed counter. Called from the pipeline's
// progress callback, concurrently with status reads.
func (j *Job) FileDone() {
	j.filesProcessed.Add(1)
}

// FilesProcessed returns the live progress counter
func (j *Job) FilesProcessed() int64 {
	return j.filesProcessed.Load()
}

// MarkCancelled sets the cancellation flag. The worker honors it at the
// next file boundary for running jobs, or skips the job on dequeue.
func (j *Job) MarkCancelled() {
	j.cancelled.Store(true)
}

// Cancelled reports whether cancellation has been requested
func (j *Job) Cancelled() bool {
	return j.cancelled.Load()
}

// Status returns the current lifecycle state
func (j *Job) Status() JobStatus {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.status
}

func (j *Job) setStatus(status JobStatus) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.status = status
	switch status {
	case StatusRunning:
		j.startedAt = time.Now()
	case StatusCompleted, StatusFailed, StatusCancelled:
		j.finishedAt = time.Now()
	}
}

func (j *Job) setPosition(pos int) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.position = pos
}

func (j *Job) addError(msg string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.errors = append(j.errors, msg)
}

// JobDetail is a point-in-time snapshot of one job, safe to serialize
type JobDetail struct {
	ID             string    `json:"id"`
	Context        string    `json:"context"`
	Kind           JobKind   `json:"kind"`
	Path           string    `json:"path"`
	Status         JobStatus `json:"status"`
	QueuePosition  int       `json:"queue_position"`
	FilesProcessed int64     `json:"files_processed"`
	Errors         []string  `json:"errors"`
	EnqueuedAt     time.Time `json:"enqueued_at"`
	StartedAt      time.Time `json:"started_at,omitempty"`
	FinishedAt     time.Time `json:"finished_at,omitempty"`
}

// Snapshot captures the job's current state
func (j *Job) Snapshot() *JobDetail {
	j.mu.Lock()
	defer j.mu.Unlock()
	errs := make([]string, len(j.errors))
	copy(errs, j.errors)
	return &JobDetail{
		ID:             j.ID,
		Context:        j.Context,
		Kind:           j.Kind,
		Path:           j.Path,
		Status:         j.status,
		QueuePosition:  j.position,
		FilesProcessed: j.filesProcessed.Load(),
		Errors:         errs,
		EnqueuedAt:     j.enqueuedAt,
		StartedAt:      j.startedAt,
		FinishedAt:     j.finishedAt,
	}
}
