// Package memory provides in-memory persistence for development/testing.
package memory

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/oemdirect/catalog-scraper/internal/catalog"
)

// ErrNotFound is returned when a job ID is unknown.
var ErrNotFound = errors.New("job not found")

// JobStore keeps job lifecycle metadata in memory.
type JobStore struct {
	mu   sync.RWMutex
	jobs map[string]catalog.Job
}

// NewJobStore constructs a JobStore.
func NewJobStore() *JobStore {
	return &JobStore{jobs: make(map[string]catalog.Job)}
}

// CreateJob stores a new job. The job keeps whatever status the caller set,
// normally pending.
func (s *JobStore) CreateJob(_ context.Context, job catalog.Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.jobs[job.ID]; exists {
		return errors.New("job already exists")
	}
	s.jobs[job.ID] = job
	return nil
}

// UpdateJobStatus transitions a job, stamping start/end times and the run
// duration as it crosses into running and terminal states.
func (s *JobStore) UpdateJobStatus(
	_ context.Context,
	jobID string,
	status catalog.JobStatus,
	errText string,
	itemsScraped int,
) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[jobID]
	if !ok {
		return ErrNotFound
	}
	job.Status = status
	job.ErrorText = errText
	job.ItemsScraped = itemsScraped
	now := time.Now().UTC()
	if status == catalog.JobStatusRunning && job.StartTime == nil {
		job.StartTime = pointerTime(now)
	}
	if isTerminal(status) {
		job.EndTime = pointerTime(now)
		if job.StartTime != nil {
			job.DurationMs = now.Sub(*job.StartTime).Milliseconds()
		}
	}
	s.jobs[jobID] = job
	return nil
}

// GetJob fetches a job by ID.
func (s *JobStore) GetJob(_ context.Context, jobID string) (catalog.Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	job, ok := s.jobs[jobID]
	if !ok {
		return catalog.Job{}, ErrNotFound
	}
	return job, nil
}

func pointerTime(t time.Time) *time.Time {
	ts := t
	return &ts
}

func isTerminal(status catalog.JobStatus) bool {
	switch status {
	case catalog.JobStatusCompleted, catalog.JobStatusFailed:
		return true
	default:
		return false
	}
}
