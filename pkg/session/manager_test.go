package session_test

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/agentwright/internal/runtime"
	"github.com/aretw0/agentwright/pkg/adapters/memory"
	"github.com/aretw0/agentwright/pkg/adapters/redis"
	"github.com/aretw0/agentwright/pkg/domain"
	"github.com/aretw0/agentwright/pkg/ports"
	"github.com/aretw0/agentwright/pkg/reasoning"
	"github.com/aretw0/agentwright/pkg/session"
)

// slowEngine simulates latency and records overlapping advances of a run.
type slowEngine struct {
	inFlight map[string]*int32
	mu       sync.Mutex
	overlaps int32
}

func (e *slowEngine) counter(runID string) *int32 {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.inFlight == nil {
		e.inFlight = make(map[string]*int32)
	}
	c, ok := e.inFlight[runID]
	if !ok {
		c = new(int32)
		e.inFlight[runID] = c
	}
	return c
}

func (e *slowEngine) Advance(ctx context.Context, runID, message string) (domain.Result, error) {
	c := e.counter(runID)
	if atomic.AddInt32(c, 1) > 1 {
		atomic.AddInt32(&e.overlaps, 1)
	}
	time.Sleep(5 * time.Millisecond)
	atomic.AddInt32(c, -1)
	return domain.Result{Kind: domain.ResultSuspended, RunID: runID, Output: message}, nil
}

func TestManager_SerializesSameRun(t *testing.T) {
	engine := &slowEngine{}
	manager := session.NewManager(engine, memory.NewStore())
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			res, err := manager.Advance(ctx, "race-test", fmt.Sprintf("msg %d", i))
			assert.NoError(t, err)
			assert.Equal(t, fmt.Sprintf("msg %d", i), res.Output)
		}(i)
	}
	wg.Wait()

	assert.Zero(t, atomic.LoadInt32(&engine.overlaps))
}

func TestManager_ConcurrentAdvancesKeepLogConsistent(t *testing.T) {
	store := memory.NewStore()
	script := reasoning.NewScripted().
		Default(reasoning.AgentTriage, reasoning.Classify("Chat", "tell me more"))
	manager := session.NewManager(runtime.NewEngine(store, script), store)
	ctx := context.Background()

	_, err := manager.Advance(ctx, "chat", "hello")
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := manager.Advance(ctx, "chat", fmt.Sprintf("message %d", i))
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	history, err := manager.History(ctx, "chat")
	require.NoError(t, err)
	assert.Len(t, history, 9)
	for i, snap := range history {
		assert.Equal(t, int64(i+1), snap.Seq)
	}
}

func TestManager_DistributedLock(t *testing.T) {
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	engine := &slowEngine{}
	locker := redis.NewLocker(client, "test:")

	// Two managers stand in for two replicas.
	a := session.NewManager(engine, memory.NewStore(), session.WithLocker(locker), session.WithLockTTL(time.Second))
	b := session.NewManager(engine, memory.NewStore(), session.WithLocker(locker))
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, err := a.Advance(ctx, "shared", "from a")
			assert.NoError(t, err)
		}()
		go func() {
			defer wg.Done()
			_, err := b.Advance(ctx, "shared", "from b")
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Zero(t, atomic.LoadInt32(&engine.overlaps))
	assert.False(t, mr.Exists("test:lock:shared"), "lock is released")
}

func TestManager_ReadsValidateRunID(t *testing.T) {
	manager := session.NewManager(&slowEngine{}, memory.NewStore())
	ctx := context.Background()

	_, err := manager.Head(ctx, "../x")
	assert.ErrorIs(t, err, domain.ErrInvalidRunID)
	_, err = manager.History(ctx, "")
	assert.ErrorIs(t, err, domain.ErrInvalidRunID)
	assert.ErrorIs(t, manager.Delete(ctx, "a/b"), domain.ErrInvalidRunID)

	_, err = manager.Head(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrRunNotFound)
}

func TestManager_LockOutlivesLease(t *testing.T) {
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	locker := redis.NewLocker(client, "test:", redis.WithRenewInterval(20*time.Millisecond))
	a := session.NewManager(&slowEngine{}, memory.NewStore(), session.WithLocker(locker), session.WithLockTTL(time.Second))
	b := session.NewManager(&slowEngine{}, memory.NewStore(), session.WithLocker(locker), session.WithLockTTL(time.Second))
	ctx := context.Background()

	holding := make(chan struct{})
	finish := make(chan struct{})
	done := make(chan error, 1)
	go func() {
		done <- a.WithLock(ctx, "shared", func(context.Context) error {
			close(holding)
			<-finish
			return nil
		})
	}()
	<-holding

	// The advance on a outlasts the lease several times over.
	for range 5 {
		mr.FastForward(500 * time.Millisecond)
		require.Eventually(t, func() bool {
			return mr.TTL("test:lock:shared") > 500*time.Millisecond
		}, time.Second, 5*time.Millisecond)
	}

	waitCtx, cancel := context.WithTimeout(ctx, 200*time.Millisecond)
	defer cancel()
	var entered atomic.Bool
	err := b.WithLock(waitCtx, "shared", func(context.Context) error {
		entered.Store(true)
		return nil
	})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.False(t, entered.Load(), "a second replica entered a held run")

	close(finish)
	require.NoError(t, <-done)
	assert.False(t, mr.Exists("test:lock:shared"), "lock is released")
}

func TestManager_ReportsLostLock(t *testing.T) {
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	var lost []*domain.LockEvent
	hooks := domain.LifecycleHooks{
		OnLockLost: func(_ context.Context, e *domain.LockEvent) { lost = append(lost, e) },
	}
	manager := session.NewManager(&slowEngine{}, memory.NewStore(),
		session.WithLocker(redis.NewLocker(client, "test:")),
		session.WithLockTTL(time.Minute),
		session.WithLifecycleHooks(hooks),
	)
	ctx := context.Background()

	require.NoError(t, manager.WithLock(ctx, "kept", func(context.Context) error { return nil }))
	assert.Empty(t, lost, "a clean release reports nothing")

	err := manager.WithLock(ctx, "wiped", func(context.Context) error {
		mr.Del("test:lock:wiped")
		return nil
	})
	require.NoError(t, err, "the advance itself succeeded")

	require.Len(t, lost, 1)
	assert.Equal(t, "wiped", lost[0].RunID)
	assert.Equal(t, domain.EventLockLost, lost[0].Type)
	assert.Equal(t, time.Minute, lost[0].TTL)
	assert.ErrorIs(t, lost[0].Err, ports.ErrLockLost)
}
