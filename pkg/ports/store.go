package ports

import (
	"context"

	"github.com/aretw0/agentwright/pkg/domain"
)

// SnapshotStore persists the snapshot log of each run.
// This is what makes "Stop & Resume" possible across process restarts.
type SnapshotStore interface {
	// LoadNext returns the latest snapshot of a run.
	// Returns domain.ErrRunNotFound if the run has no snapshots.
	LoadNext(ctx context.Context, runID string) (*domain.Snapshot, error)

	// LoadAll returns every snapshot of a run, oldest first.
	// Returns domain.ErrRunNotFound if the run has no snapshots.
	LoadAll(ctx context.Context, runID string) ([]domain.Snapshot, error)

	// Append adds a snapshot to the log atomically. snap.Seq must be exactly
	// one past the current head (1 for a new run), otherwise
	// domain.ErrSequenceConflict is returned and nothing is written.
	Append(ctx context.Context, runID string, snap domain.Snapshot) error

	// Delete removes the whole log. Deleting an unknown run is not an error.
	Delete(ctx context.Context, runID string) error

	// List returns the ids of all runs with at least one snapshot.
	List(ctx context.Context) ([]string, error)
}

// ArtifactSink receives documents produced by steps that users may want
// outside the conversation, such as the scope document.
type ArtifactSink interface {
	WriteScope(ctx context.Context, runID string, scope string) error
}
