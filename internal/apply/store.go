package apply

import (
	"context"
	"errors"
	"sync"
)

// ErrRunNotFound is returned when a run id is unknown to the store.
var ErrRunNotFound = errors.New("apply: run not found")

// RunStore persists run progress between advances so an interrupted run
// can resume from its last completed batch.
type RunStore interface {
	Save(ctx context.Context, run *Run) error
	Load(ctx context.Context, runID string) (*Run, error)
}

// MemoryStore is an in-process RunStore. Suitable for the CLI driver and
// for tests; the service uses the redis-backed store instead.
type MemoryStore struct {
	mu   sync.RWMutex
	runs map[string]Run
}

// NewMemoryStore creates an empty in-memory run store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{runs: make(map[string]Run)}
}

// Save stores a copy of the run keyed by id.
func (s *MemoryStore) Save(_ context.Context, run *Run) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.runs[run.ID] = *run
	return nil
}

// Load returns a copy of the stored run.
func (s *MemoryStore) Load(_ context.Context, runID string) (*Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	run, ok := s.runs[runID]
	if !ok {
		return nil, ErrRunNotFound
	}
	return &run, nil
}
