package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/aretw0/agentwright/internal/logging"
	"github.com/aretw0/agentwright/pkg/domain"
	"github.com/aretw0/agentwright/pkg/ports"
)

// DefaultLockTTL is how long a distributed run lock survives a crashed holder.
const DefaultLockTTL = 30 * time.Second

// Advancer executes one advance of a run.
type Advancer interface {
	Advance(ctx context.Context, runID, message string) (domain.Result, error)
}

// lockEntry holds the mutex and the reference count.
type lockEntry struct {
	mu   sync.Mutex
	refs int
}

// Manager serializes advances per run. Two callers advancing the same run
// queue up; different runs never block each other. With a DistributedLocker
// the guarantee extends across processes sharing a store.
// Locks are reference counted and dropped once nobody holds them.
type Manager struct {
	engine Advancer
	store  ports.SnapshotStore

	mu    sync.Mutex
	locks map[string]*lockEntry

	locker  ports.DistributedLocker
	lockTTL time.Duration
	hooks   domain.LifecycleHooks
	logger  *slog.Logger
}

// Option configures the Manager.
type Option func(*Manager)

// WithLocker enables distributed locking.
func WithLocker(locker ports.DistributedLocker) Option {
	return func(m *Manager) {
		m.locker = locker
	}
}

// WithLockTTL sets the expiry of distributed locks.
func WithLockTTL(ttl time.Duration) Option {
	return func(m *Manager) {
		if ttl > 0 {
			m.lockTTL = ttl
		}
	}
}

// WithLifecycleHooks registers hooks for lock events. Only OnLockLost is
// called by the Manager.
func WithLifecycleHooks(hooks domain.LifecycleHooks) Option {
	return func(m *Manager) {
		m.hooks = hooks
	}
}

// WithLogger configures a logger for the Manager.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// NewManager creates a Manager in front of an engine and the store it writes to.
func NewManager(engine Advancer, store ports.SnapshotStore, opts ...Option) *Manager {
	m := &Manager{
		engine:  engine,
		store:   store,
		locks:   make(map[string]*lockEntry),
		lockTTL: DefaultLockTTL,
		logger:  logging.NewNop(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// acquire gets or creates a lock entry and increments its reference count.
// The caller MUST Lock the entry.mu, and then call release(runID) after unlocking.
func (m *Manager) acquire(runID string) *lockEntry {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, exists := m.locks[runID]
	if !exists {
		entry = &lockEntry{}
		m.locks[runID] = entry
	}
	entry.refs++
	return entry
}

// release decrements the reference count and deletes the entry if it reaches zero.
func (m *Manager) release(runID string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, exists := m.locks[runID]
	if !exists {
		return
	}
	entry.refs--
	if entry.refs <= 0 {
		delete(m.locks, runID)
	}
}

// Advance runs one advance while holding the run's lock.
func (m *Manager) Advance(ctx context.Context, runID, message string) (domain.Result, error) {
	var res domain.Result
	err := m.WithLock(ctx, runID, func(ctx context.Context) error {
		var err error
		res, err = m.engine.Advance(ctx, runID, message)
		return err
	})
	return res, err
}

// Head returns the latest snapshot of a run.
func (m *Manager) Head(ctx context.Context, runID string) (*domain.Snapshot, error) {
	if err := domain.ValidateRunID(runID); err != nil {
		return nil, err
	}
	return m.store.LoadNext(ctx, runID)
}

// History returns every snapshot of a run, oldest first.
func (m *Manager) History(ctx context.Context, runID string) ([]domain.Snapshot, error) {
	if err := domain.ValidateRunID(runID); err != nil {
		return nil, err
	}
	return m.store.LoadAll(ctx, runID)
}

// Delete removes a run once no advance holds it.
func (m *Manager) Delete(ctx context.Context, runID string) error {
	if err := domain.ValidateRunID(runID); err != nil {
		return err
	}
	return m.WithLock(ctx, runID, func(ctx context.Context) error {
		return m.store.Delete(ctx, runID)
	})
}

// List delegates to the store.
func (m *Manager) List(ctx context.Context) ([]string, error) {
	return m.store.List(ctx)
}

// Store returns the underlying snapshot store.
func (m *Manager) Store() ports.SnapshotStore {
	return m.store
}

// WithLock executes fn while holding the lock for the run.
func (m *Manager) WithLock(ctx context.Context, runID string, fn func(context.Context) error) error {
	entry := m.acquire(runID)
	entry.mu.Lock()
	defer func() {
		entry.mu.Unlock()
		m.release(runID)
	}()

	if m.locker != nil {
		unlock, err := m.locker.Lock(ctx, runID, m.lockTTL)
		if err != nil {
			return fmt.Errorf("failed to acquire distributed lock: %w", err)
		}
		defer func() {
			// The caller's context may be canceled by now; the lock must still go.
			if err := unlock(context.WithoutCancel(ctx)); err != nil {
				m.logger.Warn("Run lock was not released cleanly",
					"run_id", runID,
					"err", err,
				)
				if errors.Is(err, ports.ErrLockLost) && m.hooks.OnLockLost != nil {
					m.hooks.OnLockLost(ctx, &domain.LockEvent{
						EventBase: domain.EventBase{Timestamp: time.Now(), Type: domain.EventLockLost, RunID: runID},
						TTL:       m.lockTTL,
						Err:       err,
					})
				}
			}
		}()
	}

	return fn(ctx)
}
