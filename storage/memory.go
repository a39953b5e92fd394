package storage

import (
	"context"
	"slices"
	"sync"
	"time"

	"deskresearch/repository"
)

// MemoryRunStore is a RunRepo for one-shot CLI runs and tests.
type MemoryRunStore struct {
	mu   sync.RWMutex
	runs map[string]repository.Run
}

func NewMemoryRunStore() *MemoryRunStore {
	return &MemoryRunStore{runs: make(map[string]repository.Run)}
}

func (s *MemoryRunStore) Save(_ context.Context, run *repository.Run) error {
	now := time.Now().UTC()
	if run.CreatedAt.IsZero() {
		run.CreatedAt = now
	}
	run.UpdatedAt = now

	s.mu.Lock()
	defer s.mu.Unlock()
	s.runs[run.ID] = cloneRun(*run)
	return nil
}

func (s *MemoryRunStore) Get(_ context.Context, id string) (*repository.Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	run, ok := s.runs[id]
	if !ok {
		return nil, repository.ErrRunNotFound
	}
	run = cloneRun(run)
	return &run, nil
}

func cloneRun(run repository.Run) repository.Run {
	run.Sources = slices.Clone(run.Sources)
	run.Warnings = slices.Clone(run.Warnings)
	return run
}

var _ repository.RunRepo = (*MemoryRunStore)(nil)
