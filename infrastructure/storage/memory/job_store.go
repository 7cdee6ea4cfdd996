package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/hirewire/pipeline-go/domain/schedule"
)

// JobStore is an in-memory scheduled job store.
type JobStore struct {
	mu   sync.Mutex
	jobs map[string]schedule.Job
}

var _ schedule.Store = (*JobStore)(nil)

// NewJobStore creates an empty job store.
func NewJobStore() *JobStore {
	return &JobStore{
		jobs: make(map[string]schedule.Job),
	}
}

// Put stores a job, rejecting duplicate keys.
func (s *JobStore) Put(_ context.Context, job schedule.Job) error {
	key := job.Key.String()
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.jobs[key]; exists {
		return fmt.Errorf("%w: %s", schedule.ErrJobExists, key)
	}
	s.jobs[key] = job
	return nil
}

// Cancel removes a pending job.
func (s *JobStore) Cancel(_ context.Context, key schedule.Key) error {
	k := key.String()
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.jobs[k]; !exists {
		return fmt.Errorf("%w: %s", schedule.ErrJobNotFound, k)
	}
	delete(s.jobs, k)
	return nil
}

// Claim removes and returns all jobs due at or before now.
func (s *JobStore) Claim(_ context.Context, now time.Time) ([]schedule.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var due []schedule.Job
	for k, job := range s.jobs {
		if !job.DueAt.After(now) {
			due = append(due, job)
			delete(s.jobs, k)
		}
	}
	sort.Slice(due, func(i, j int) bool { return due[i].DueAt.Before(due[j].DueAt) })
	return due, nil
}

// Pending returns all stored jobs, soonest first.
func (s *JobStore) Pending(_ context.Context) ([]schedule.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]schedule.Job, 0, len(s.jobs))
	for _, job := range s.jobs {
		out = append(out, job)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DueAt.Before(out[j].DueAt) })
	return out, nil
}
