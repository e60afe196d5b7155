package scheduler

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/codemem/codemem-mcp/pkg/types"
)

// Runner is the slice of the pipeline the scheduler drives
type Runner interface {
	IndexDirectory(ctx context.Context, contextName, path string, recursive bool, progress func(string)) (*types.IndexResult, error)
	Reindex(ctx context.Context, contextName, path string, removeStale bool, progress func(string)) (*types.IndexResult, error)
}

// runGate provides non-blocking single-flight semantics for the worker loop
type runGate struct {
	state atomic.Int32 // 0 = idle, 1 = worker active
}

func (g *runGate) TryAcquire() bool {
	return g.state.CompareAndSwap(0, 1)
}

func (g *runGate) Release() {
	g.state.Store(0)
}

// Scheduler serializes ingestion jobs through a FIFO queue drained by a
// single background worker. The worker starts lazily on Enqueue and exits
// when the queue empties.
type Scheduler struct {
	runner Runner
	store  JobStore
	logger *slog.Logger

	gate runGate

	mu      sync.Mutex
	queue   []*Job
	active  bool // a dequeued job is being run
	cancels map[string]context.CancelFunc

	baseCtx context.Context
	stop    context.CancelFunc
	wg      sync.WaitGroup
}

// New creates a scheduler over the given pipeline runner and job store
func New(runner Runner, store JobStore, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	ctx, stop := context.WithCancel(context.Background())
	return &Scheduler{
		runner:  runner,
		store:   store,
		logger:  logger,
		cancels: make(map[string]context.CancelFunc),
		baseCtx: ctx,
		stop:    stop,
	}
}

// Request describes one ingestion job to enqueue
type Request struct {
	Context     string
	Kind        JobKind
	Path        string
	Recursive   bool
	RemoveStale bool
}

// Enqueue appends a job to the queue and returns immediately. The queue
// position counts the jobs ahead of this one, including the in-flight job;
// if no job is running, the lazily started worker picks it up right away.
func (s *Scheduler) Enqueue(req Request) (*JobDetail, error) {
	if req.Context == "" {
		return nil, types.ErrContextRequired
	}
	if req.Path == "" {
		return nil, types.ErrPathRequired
	}
	if req.Kind == "" {
		req.Kind = KindIndexDirectory
	}

	job := &Job{
		ID:          uuid.NewString(),
		Context:     req.Context,
		Kind:        req.Kind,
		Path:        req.Path,
		Recursive:   req.Recursive,
		RemoveStale: req.RemoveStale,
		status:      StatusQueued,
		enqueuedAt:  time.Now(),
	}

	s.mu.Lock()
	job.position = len(s.queue)
	if s.active {
		job.position++
	}
	s.queue = append(s.queue, job)
	s.mu.Unlock()

	if err := s.store.Put(job); err != nil {
		return nil, err
	}

	s.maybeStartWorker()
	return job.Snapshot(), nil
}

// Cancel requests cancellation of a job. Queued jobs are skipped on
// dequeue; a running job stops at its next file boundary with partial
// progress preserved. Returns false for jobs already in a terminal state.
func (s *Scheduler) Cancel(jobID string) (bool, error) {
	job, err := s.store.Get(jobID)
	if err != nil {
		return false, err
	}
	if job.Status().Terminal() {
		return false, nil
	}

	job.MarkCancelled()

	s.mu.Lock()
	cancel := s.cancels[jobID]
	s.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	return true, nil
}

// GetStatus returns one job's full detail
func (s *Scheduler) GetStatus(jobID string) (*JobDetail, error) {
	job, err := s.store.Get(jobID)
	if err != nil {
		return nil, err
	}
	return job.Snapshot(), nil
}

// ListStatus returns a context's jobs ordered Running first, then Queued
// by position, then terminal jobs most recent first.
func (s *Scheduler) ListStatus(contextName string) ([]*JobDetail, error) {
	jobs, err := s.store.ListByContext(contextName)
	if err != nil {
		return nil, err
	}

	var running, queued, done []*JobDetail
	for _, job := range jobs {
		detail := job.Snapshot()
		switch detail.Status {
		case StatusRunning:
			running = append(running, detail)
		case StatusQueued:
			queued = append(queued, detail)
		default:
			done = append(done, detail)
		}
	}

	sort.Slice(queued, func(i, j int) bool {
		return queued[i].QueuePosition < queued[j].QueuePosition
	})
	sort.Slice(done, func(i, j int) bool {
		return done[i].FinishedAt.After(done[j].FinishedAt)
	})

	out := make([]*JobDetail, 0, len(jobs))
	out = append(out, running...)
	out = append(out, queued...)
	out = append(out, done...)
	return out, nil
}

// Close stops the worker and waits for the in-flight job to reach its next
// cancellation checkpoint
func (s *Scheduler) Close() error {
	s.stop()
	s.wg.Wait()
	return nil
}

// maybeStartWorker spawns the worker loop if none is active
func (s *Scheduler) maybeStartWorker() {
	if !s.gate.TryAcquire() {
		return
	}
	s.wg.Add(1)
	go s.workerLoop()
}

// workerLoop drains the queue one job at a time, then exits. The gate is
// re-acquired after release if an enqueue raced with the empty check.
func (s *Scheduler) workerLoop() {
	defer s.wg.Done()
	for {
		job := s.dequeue()
		if job == nil {
			s.gate.Release()
			// An Enqueue may have seen the gate held and not started a
			// worker; re-check before exiting
			if !s.hasPending() || !s.gate.TryAcquire() {
				return
			}
			continue
		}

		if job.Cancelled() || s.baseCtx.Err() != nil {
			job.setStatus(StatusCancelled)
			continue
		}
		s.runJob(job)
	}
}

// dequeue pops the queue head and recomputes remaining positions. The
// popped job counts as position 0, so jobs still queued behind it start
// at 1.
func (s *Scheduler) dequeue() *Job {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.queue) == 0 {
		s.active = false
		return nil
	}
	job := s.queue[0]
	s.queue = s.queue[1:]
	s.active = true
	job.setPosition(0)
	for i, queued := range s.queue {
		queued.setPosition(i + 1)
	}
	return job
}

func (s *Scheduler) hasPending() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queue) > 0
}

// runJob executes one job to completion, failure, or cancellation
func (s *Scheduler) runJob(job *Job) {
	ctx, cancel := context.WithCancel(s.baseCtx)
	s.mu.Lock()
	s.cancels[job.ID] = cancel
	s.mu.Unlock()
	defer func() {
		cancel()
		s.mu.Lock()
		delete(s.cancels, job.ID)
		s.mu.Unlock()
	}()

	job.setStatus(StatusRunning)
	s.logger.Info("job started", "job", job.ID, "kind", job.Kind, "path", job.Path)

	progress := func(string) { job.FileDone() }

	var result *types.IndexResult
	var err error
	switch job.Kind {
	case KindReindex:
		result, err = s.runner.Reindex(ctx, job.Context, job.Path, job.RemoveStale, progress)
	default:
		result, err = s.runner.IndexDirectory(ctx, job.Context, job.Path, job.Recursive, progress)
	}

	if result != nil {
		for _, msg := range result.Errors {
			job.addError(msg)
		}
	}

	switch {
	case errors.Is(err, context.Canceled) || job.Cancelled():
		job.setStatus(StatusCancelled)
		s.logger.Info("job cancelled", "job", job.ID, "files", job.FilesProcessed())
	case err != nil:
		job.addError(err.Error())
		job.setStatus(StatusFailed)
		s.logger.Warn("job failed", "job", job.ID, "error", err)
	default:
		job.setStatus(StatusCompleted)
		s.logger.Info("job completed", "job", job.ID, "files", job.FilesProcessed())
	}
}
