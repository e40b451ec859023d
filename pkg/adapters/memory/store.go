package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/aretw0/agentwright/pkg/domain"
)

// Store implements ports.SnapshotStore in memory.
// Safe for concurrent use.
type Store struct {
	logs map[string][]domain.Snapshot
	mu   sync.RWMutex
}

// NewStore creates a new in-memory store.
func NewStore() *Store {
	return &Store{
		logs: make(map[string][]domain.Snapshot),
	}
}

// Append adds a deep copy of snap to the run's log.
func (s *Store) Append(ctx context.Context, runID string, snap domain.Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	log := s.logs[runID]
	if want := int64(len(log)) + 1; snap.Seq != want {
		return fmt.Errorf("%w: run %s expects seq %d, got %d", domain.ErrSequenceConflict, runID, want, snap.Seq)
	}
	s.logs[runID] = append(log, snap.Clone())
	return nil
}

// LoadNext returns a copy of the latest snapshot.
func (s *Store) LoadNext(ctx context.Context, runID string) (*domain.Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	log, ok := s.logs[runID]
	if !ok || len(log) == 0 {
		return nil, domain.ErrRunNotFound
	}
	head := log[len(log)-1].Clone()
	return &head, nil
}

// LoadAll returns copies of every snapshot, oldest first.
func (s *Store) LoadAll(ctx context.Context, runID string) ([]domain.Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	log, ok := s.logs[runID]
	if !ok || len(log) == 0 {
		return nil, domain.ErrRunNotFound
	}
	out := make([]domain.Snapshot, len(log))
	for i, snap := range log {
		out[i] = snap.Clone()
	}
	return out, nil
}

// Delete removes the run's log.
func (s *Store) Delete(ctx context.Context, runID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.logs, runID)
	return nil
}

// List returns the known run ids, sorted.
func (s *Store) List(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	runs := make([]string, 0, len(s.logs))
	for id := range s.logs {
		runs = append(runs, id)
	}
	sort.Strings(runs)
	return runs, nil
}
