package repo

import (
	"context"
	"sync"
	"time"

	"server/internal/domain"
)

// MemoryJobs implements domain.JobRepository with mutex-guarded maps, for
// tests and local development.
type MemoryJobs struct {
	mu   sync.Mutex
	jobs map[string]domain.Job
}

// NewMemoryJobs creates an empty in-memory job repository.
func NewMemoryJobs() *MemoryJobs {
	return &MemoryJobs{jobs: make(map[string]domain.Job)}
}

func (m *MemoryJobs) Create(_ context.Context, job *domain.Job) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored := *job
	stored.Units = append([]domain.Unit(nil), job.Units...)
	stored.CreatedAt = time.Now()
	stored.UpdatedAt = stored.CreatedAt
	m.jobs[job.ID] = stored
	return nil
}

func (m *MemoryJobs) GetByID(_ context.Context, id string) (*domain.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	job, ok := m.jobs[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	out := job
	out.Units = append([]domain.Unit(nil), job.Units...)
	return &out, nil
}

func (m *MemoryJobs) UpdateStatus(_ context.Context, jobID string, status domain.JobStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	job, ok := m.jobs[jobID]
	if !ok {
		return domain.ErrNotFound
	}
	job.Status = status
	job.UpdatedAt = time.Now()
	m.jobs[jobID] = job
	return nil
}

func (m *MemoryJobs) UpdateUnit(_ context.Context, jobID string, position int, status domain.UnitStatus, failureCode, errMsg string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	job, ok := m.jobs[jobID]
	if !ok {
		return domain.ErrNotFound
	}
	for i := range job.Units {
		if job.Units[i].Position == position {
			job.Units[i].Status = status
			job.Units[i].FailureCode = failureCode
			job.Units[i].ErrorMessage = errMsg
			job.UpdatedAt = time.Now()
			m.jobs[jobID] = job
			return nil
		}
	}
	return domain.ErrNotFound
}

var _ domain.JobRepository = (*MemoryJobs)(nil)
