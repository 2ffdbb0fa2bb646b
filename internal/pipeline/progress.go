package pipeline

import (
	"sync"
)

// JobStatus is the progress record polled by the caller for one job.
type JobStatus struct {
	Progress       int    `json:"progress"`
	Status         string `json:"status"`
	Completed      bool   `json:"completed"`
	Error          string `json:"error,omitempty"`
	ProcessedCount int    `json:"processed_count"`
}

// ProgressStore is a process-wide, concurrency-safe progress map keyed by
// job id. A job is created at submission and reaches a terminal state
// exactly once: later writes against a completed job are ignored.
type ProgressStore struct {
	mu   sync.RWMutex
	jobs map[string]*JobStatus
}

// NewProgressStore creates an empty ProgressStore.
func NewProgressStore() *ProgressStore {
	return &ProgressStore{
		jobs: make(map[string]*JobStatus),
	}
}

// Create registers a new job in its initial state.
func (s *ProgressStore) Create(jobID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs[jobID] = &JobStatus{Status: "Queued"}
}

// Update records intermediate progress. Regressions are dropped so the
// percentage a poller sees never decreases.
func (s *ProgressStore) Update(jobID string, progress int, status string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[jobID]
	if !ok || job.Completed {
		return
	}
	if progress > job.Progress {
		job.Progress = progress
	}
	job.Status = status
}

// Complete marks the job finished with a success summary.
func (s *ProgressStore) Complete(jobID string, processedCount int, status string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[jobID]
	if !ok || job.Completed {
		return
	}
	job.Progress = 100
	job.Status = status
	job.ProcessedCount = processedCount
	job.Completed = true
}

// Fail marks the job finished with an error.
func (s *ProgressStore) Fail(jobID string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[jobID]
	if !ok || job.Completed {
		return
	}
	job.Status = "Failed"
	job.Error = err.Error()
	job.Completed = true
}

// Get returns a copy of the job status.
func (s *ProgressStore) Get(jobID string) (JobStatus, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	job, ok := s.jobs[jobID]
	if !ok {
		return JobStatus{}, false
	}
	return *job, true
}
