package redis_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/aretw0/agentwright/pkg/adapters/redis"
	"github.com/aretw0/agentwright/pkg/domain"
	"github.com/aretw0/agentwright/pkg/ports"
	backend "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newClient(t *testing.T) (*miniredis.Miniredis, *backend.Client) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err, "Failed to start miniredis")
	t.Cleanup(mr.Close)

	return mr, backend.NewClient(&backend.Options{Addr: mr.Addr()})
}

func TestRedisStore_Contract(t *testing.T) {
	_, client := newClient(t)

	store := redis.NewFromClient(client)
	ports.RunSnapshotStoreContract(t, store)
}

func TestRedisStore_TTL_Expiration(t *testing.T) {
	mr, client := newClient(t)

	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	store := redis.NewFromClient(client,
		redis.WithTTL(time.Second),
		redis.WithClock(func() time.Time { return now }),
	)
	ctx := context.Background()
	runID := "run-ttl"

	err := store.Append(ctx, runID, domain.Snapshot{Seq: 1, RunID: runID, State: domain.NewConversationState("hi")})
	require.NoError(t, err)

	runs, err := store.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{runID}, runs)

	mr.FastForward(2 * time.Second)
	now = now.Add(2 * time.Second)

	_, err = store.LoadNext(ctx, runID)
	assert.ErrorIs(t, err, domain.ErrRunNotFound)

	runs, err = store.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, runs)
}

func TestRedisStore_AppendRefreshesTTL(t *testing.T) {
	mr, client := newClient(t)
	store := redis.NewFromClient(client, redis.WithTTL(time.Minute))
	ctx := context.Background()

	state := domain.NewConversationState("hi")
	require.NoError(t, store.Append(ctx, "r", domain.Snapshot{Seq: 1, RunID: "r", State: state}))
	mr.FastForward(50 * time.Second)
	require.NoError(t, store.Append(ctx, "r", domain.Snapshot{Seq: 2, RunID: "r", State: state}))

	assert.Equal(t, time.Minute, mr.TTL("agentwright:run:r"))
}

func TestRedisStore_Prefix(t *testing.T) {
	mr, client := newClient(t)

	store := redis.NewFromClient(client, redis.WithPrefix("custom:app:"))
	ctx := context.Background()
	runID := "my-run"

	err := store.Append(ctx, runID, domain.Snapshot{Seq: 1, RunID: runID})
	assert.NoError(t, err)

	assert.True(t, mr.Exists("custom:app:my-run"), "Expected key with custom prefix to exist")
	assert.True(t, mr.Exists("custom:app:index"), "Expected index with custom prefix to exist")

	list, err := store.List(ctx)
	assert.NoError(t, err)
	assert.Contains(t, list, runID)
}

func TestRedisStore_Corrupt(t *testing.T) {
	mr, client := newClient(t)
	store := redis.NewFromClient(client)

	_, err := mr.Push("agentwright:run:bad", "not json")
	require.NoError(t, err)

	_, err = store.LoadNext(context.Background(), "bad")
	assert.ErrorIs(t, err, domain.ErrCorruptSnapshot)

	_, err = store.LoadAll(context.Background(), "bad")
	assert.ErrorIs(t, err, domain.ErrCorruptSnapshot)
}
