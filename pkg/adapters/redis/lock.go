package redis

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	backend "github.com/redis/go-redis/v9"

	"github.com/aretw0/agentwright/pkg/ports"
)

var (
	// ErrLockAcquire wraps Redis failures while taking a run lock.
	ErrLockAcquire = errors.New("redis: acquire run lock")

	// ErrLockLost is returned on release when the lease expired or changed
	// owner before the holder finished.
	ErrLockLost = ports.ErrLockLost
)

// releaseScript deletes the lock only while it still carries the caller's token.
var releaseScript = backend.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0
`)

// renewScript extends the lease only while it still carries the caller's token.
var renewScript = backend.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("pexpire", KEYS[1], ARGV[2])
end
return 0
`)

// Locker implements ports.DistributedLocker with one Redis key per run,
// <prefix>lock:<runID>, holding the owner's token. The key expires after
// the lease unless the holder renews it; a background renewal keeps it
// alive until the UnlockFunc runs, so the lease only bounds how long a
// crashed holder blocks the run.
type Locker struct {
	client *backend.Client
	prefix string
	retry  time.Duration
	renew  time.Duration
}

// LockerOption configures a Locker.
type LockerOption func(*Locker)

// WithRenewInterval sets how often a held lease is extended.
// The default is a third of the lease.
func WithRenewInterval(d time.Duration) LockerOption {
	return func(l *Locker) {
		if d > 0 {
			l.renew = d
		}
	}
}

// NewLocker creates a locker sharing the key prefix of the snapshot store.
func NewLocker(client *backend.Client, prefix string, opts ...LockerOption) *Locker {
	l := &Locker{client: client, prefix: prefix, retry: 100 * time.Millisecond}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

func (l *Locker) key(runID string) string {
	return l.prefix + "lock:" + runID
}

// Lock blocks until the run's lease is free or ctx is done.
func (l *Locker) Lock(ctx context.Context, runID string, lease time.Duration) (ports.UnlockFunc, error) {
	key := l.key(runID)
	token := uuid.NewString()

	for {
		acquired, err := l.client.SetNX(ctx, key, token, lease).Result()
		switch {
		case err != nil && ctx.Err() != nil:
			return nil, ctx.Err()
		case err != nil:
			return nil, fmt.Errorf("%w %s: %v", ErrLockAcquire, runID, err)
		case acquired:
			return l.hold(key, token, lease), nil
		}

		timer := time.NewTimer(l.retry)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}
}

// hold starts renewing the lease and returns the function that ends it.
func (l *Locker) hold(key, token string, lease time.Duration) ports.UnlockFunc {
	every := l.renew
	if every <= 0 {
		every = max(lease/3, time.Millisecond)
	}
	stop := make(chan struct{})
	done := make(chan struct{})
	go l.keepAlive(key, token, lease, every, stop, done)

	var once sync.Once
	return func(ctx context.Context) error {
		once.Do(func() { close(stop) })
		<-done

		deleted, err := releaseScript.Run(ctx, l.client, []string{key}, token).Int()
		if err != nil {
			return fmt.Errorf("release %s: %w", key, err)
		}
		if deleted == 0 {
			return ErrLockLost
		}
		return nil
	}
}

// keepAlive extends the lease every interval until stop closes or the
// token is gone. Failed renewals are retried on the next tick while the
// lease may still hold.
func (l *Locker) keepAlive(key, token string, lease, every time.Duration, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
		}

		ctx, cancel := context.WithTimeout(context.Background(), every)
		renewed, err := renewScript.Run(ctx, l.client, []string{key}, token, lease.Milliseconds()).Int()
		cancel()
		if err == nil && renewed == 0 {
			return
		}
	}
}
