package scheduler

import (
	"errors"
	"sync"
)

// ErrJobNotFound is returned when a job ID is unknown to the store
var ErrJobNotFound = errors.New("job not found")

// JobStore holds job records for status queries. The scheduler owns the
// queue; the store only tracks what exists.
type JobStore interface {
	Put(job *Job) error
	Get(id string) (*Job, error)
	ListByContext(contextName string) ([]*Job, error)
}

// MemoryJobStore is the in-process JobStore implementation
type MemoryJobStore struct {
	mu    sync.RWMutex
	jobs  map[string]*Job
	order []string // Insertion order for stable listing
}

// NewMemoryJobStore creates an empty in-memory job store
func NewMemoryJobStore() *MemoryJobStore {
	return &MemoryJobStore{jobs: make(map[string]*Job)}
}

func (s *MemoryJobStore) Put(job *Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.jobs[job.ID]; !exists {
		s.order = append(s.order, job.ID)
	}
	s.jobs[job.ID] = job
	return nil
}

func (s *MemoryJobStore) Get(id string) (*Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	job, ok := s.jobs[id]
	if !ok {
		return nil, ErrJobNotFound
	}
	return job, nil
}

func (s *MemoryJobStore) ListByContext(contextName string) ([]*Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*Job
	for _, id := range s.order {
		job := s.jobs[id]
		if job.Context == contextName {
			out = append(out, job)
		}
	}
	return out, nil
}
