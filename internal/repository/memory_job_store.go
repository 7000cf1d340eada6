package repository

import (
	"context"
	"sync"

	"AgriCast/internal/domain/models"
	domrepo "AgriCast/internal/domain/repository"
)

// MemoryJobStore keeps training jobs in process memory. Jobs are never
// evicted, so the table grows for the lifetime of the process.
type MemoryJobStore struct {
	mu    sync.RWMutex
	jobs  map[string]*models.TrainingJob
	order []string
}

func NewMemoryJobStore() *MemoryJobStore {
	return &MemoryJobStore{jobs: make(map[string]*models.TrainingJob)}
}

var _ domrepo.JobStore = (*MemoryJobStore)(nil)

func (s *MemoryJobStore) Insert(_ context.Context, job *models.TrainingJob) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.jobs[job.JobID]; ok {
		return domrepo.ErrJobExists
	}
	s.jobs[job.JobID] = job.Clone()
	s.order = append(s.order, job.JobID)
	return nil
}

func (s *MemoryJobStore) Get(_ context.Context, id string) (*models.TrainingJob, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	j, ok := s.jobs[id]
	if !ok {
		return nil, domrepo.ErrJobNotFound
	}
	return j.Clone(), nil
}

// Update runs fn on a private copy and publishes it only if fn succeeds.
func (s *MemoryJobStore) Update(_ context.Context, id string, fn func(*models.TrainingJob) error) (*models.TrainingJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[id]
	if !ok {
		return nil, domrepo.ErrJobNotFound
	}
	next := j.Clone()
	if err := fn(next); err != nil {
		return nil, err
	}
	s.jobs[id] = next
	return next.Clone(), nil
}

// List returns every job in creation order.
func (s *MemoryJobStore) List(_ context.Context) ([]*models.TrainingJob, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*models.TrainingJob, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.jobs[id].Clone())
	}
	return out, nil
}
