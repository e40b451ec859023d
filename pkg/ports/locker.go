package ports

import (
	"context"
	"errors"
	"time"
)

// ErrLockLost reports that a lock expired or changed owner before its
// holder released it. Another process may have held the run meanwhile.
var ErrLockLost = errors.New("run lock lost before release")

// UnlockFunc is a function that releases a distributed lock.
// It returns ErrLockLost when the lock was no longer held.
type UnlockFunc func(ctx context.Context) error

// DistributedLocker defines the interface for distributed concurrency control.
// It allows the session Manager to keep one advance per run across replicas.
type DistributedLocker interface {
	// Lock attempts to acquire a distributed lock for the given key (a run id).
	// It blocks until the lock is acquired or the context is canceled.
	// The ttl bounds how long the lock outlives a crashed holder; a live
	// holder keeps it for as long as it runs.
	// Returns an UnlockFunc that MUST be called to release the lock.
	Lock(ctx context.Context, key string, ttl time.Duration) (UnlockFunc, error)
}
