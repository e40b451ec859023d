package file

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/aretw0/agentwright/pkg/domain"
)

// Store implements ports.SnapshotStore using the local filesystem.
// Each run is a JSON array of snapshots in <BasePath>/<runID>.json.
//
// Appends are serialized within the process. Two processes appending to the
// same run is a caller error; the sequence check catches it on the next load.
type Store struct {
	BasePath string

	mu sync.Mutex
}

// New creates a new Store with the given base path.
// If basePath is empty, it defaults to ".agentwright/runs".
func New(basePath string) *Store {
	if basePath == "" {
		basePath = filepath.Join(".agentwright", "runs")
	}
	return &Store{BasePath: basePath}
}

func (s *Store) path(runID string) (string, error) {
	if err := domain.ValidateRunID(runID); err != nil {
		return "", err
	}
	return filepath.Join(s.BasePath, runID+".json"), nil
}

func (s *Store) read(runID string) ([]domain.Snapshot, error) {
	p, err := s.path(runID)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(p)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, domain.ErrRunNotFound
		}
		return nil, fmt.Errorf("failed to read run file: %w", err)
	}

	var log []domain.Snapshot
	if err := json.Unmarshal(data, &log); err != nil {
		return nil, fmt.Errorf("%w: run %s: %v", domain.ErrCorruptSnapshot, runID, err)
	}
	if len(log) == 0 {
		return nil, fmt.Errorf("%w: run %s: file holds no snapshots", domain.ErrCorruptSnapshot, runID)
	}
	for i, snap := range log {
		if snap.Seq != int64(i)+1 {
			return nil, fmt.Errorf("%w: run %s: entry %d has seq %d", domain.ErrCorruptSnapshot, runID, i, snap.Seq)
		}
	}
	return log, nil
}

// Append writes the whole log back with snap added, atomically.
func (s *Store) Append(ctx context.Context, runID string, snap domain.Snapshot) error {
	p, err := s.path(runID)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	log, err := s.read(runID)
	if err != nil && !errors.Is(err, domain.ErrRunNotFound) {
		return err
	}
	if want := int64(len(log)) + 1; snap.Seq != want {
		return fmt.Errorf("%w: run %s expects seq %d, got %d", domain.ErrSequenceConflict, runID, want, snap.Seq)
	}

	log = append(log, snap)
	return replaceFile(p, func(w io.Writer) error {
		if err := json.NewEncoder(w).Encode(log); err != nil {
			return fmt.Errorf("encode snapshots of %s: %w", runID, err)
		}
		return nil
	})
}

// LoadNext returns the latest snapshot of the run.
func (s *Store) LoadNext(ctx context.Context, runID string) (*domain.Snapshot, error) {
	log, err := s.read(runID)
	if err != nil {
		return nil, err
	}
	head := log[len(log)-1]
	return &head, nil
}

// LoadAll returns every snapshot of the run, oldest first.
func (s *Store) LoadAll(ctx context.Context, runID string) ([]domain.Snapshot, error) {
	return s.read(runID)
}

// Delete removes the run file.
func (s *Store) Delete(ctx context.Context, runID string) error {
	p, err := s.path(runID)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete run file: %w", err)
	}
	return nil
}

// List returns all run ids with a log file.
func (s *Store) List(ctx context.Context) ([]string, error) {
	entries, err := os.ReadDir(s.BasePath)
	if err != nil {
		if os.IsNotExist(err) {
			return []string{}, nil
		}
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}

	runs := []string{}
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || filepath.Ext(name) != ".json" || strings.HasPrefix(name, ".") {
			continue
		}
		runs = append(runs, strings.TrimSuffix(name, ".json"))
	}
	sort.Strings(runs)
	return runs, nil
}
