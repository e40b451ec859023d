package ports

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/aretw0/agentwright/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// RunSnapshotStoreContract runs a suite of tests to verify that a SnapshotStore
// implementation adheres to the defined interface contract.
func RunSnapshotStoreContract(t *testing.T, store SnapshotStore) {
	ctx := context.Background()
	runID := "contract-run-" + time.Now().Format("20060102150405")

	snap := func(seq int64, next domain.StepRef) domain.Snapshot {
		state := domain.NewConversationState("build me an agent")
		state.UserIntent = domain.IntentDevelopment
		for i := int64(0); i < seq; i++ {
			state.ExpertHistory = append(state.ExpertHistory, json.RawMessage(`[{"role":"assistant","content":"turn"}]`))
		}
		return domain.Snapshot{
			Seq:       seq,
			RunID:     runID,
			State:     state,
			Next:      next,
			CreatedAt: time.Now().UTC().Truncate(time.Millisecond),
		}
	}

	t.Run("Load Non-Existent", func(t *testing.T) {
		_, err := store.LoadNext(ctx, "missing-"+runID)
		assert.ErrorIs(t, err, domain.ErrRunNotFound)

		_, err = store.LoadAll(ctx, "missing-"+runID)
		assert.ErrorIs(t, err, domain.ErrRunNotFound)
	})

	t.Run("Append and Load", func(t *testing.T) {
		defer func() { _ = store.Delete(ctx, runID) }()

		first := snap(1, domain.StepRef{Kind: domain.StepDefineScope})
		second := snap(2, domain.StepRef{Kind: domain.StepGetUserMessage, CodeOutput: "package main"})

		require.NoError(t, store.Append(ctx, runID, first))
		require.NoError(t, store.Append(ctx, runID, second))

		head, err := store.LoadNext(ctx, runID)
		require.NoError(t, err)
		assert.Equal(t, int64(2), head.Seq)
		assert.Equal(t, domain.StepGetUserMessage, head.Next.Kind)
		assert.Equal(t, "package main", head.Next.CodeOutput)
		assert.Equal(t, domain.IntentDevelopment, head.State.UserIntent)
		require.Len(t, head.State.ExpertHistory, 2)
		assert.JSONEq(t, `[{"role":"assistant","content":"turn"}]`, string(head.State.ExpertHistory[1]))

		all, err := store.LoadAll(ctx, runID)
		require.NoError(t, err)
		require.Len(t, all, 2)
		assert.Equal(t, int64(1), all[0].Seq)
		assert.Equal(t, int64(2), all[1].Seq)
		assert.Equal(t, domain.StepDefineScope, all[0].Next.Kind)
	})

	t.Run("Sequence Conflict", func(t *testing.T) {
		id := runID + "-seq"
		defer func() { _ = store.Delete(ctx, id) }()

		err := store.Append(ctx, id, snap(2, domain.StepRef{Kind: domain.StepExpert}))
		assert.ErrorIs(t, err, domain.ErrSequenceConflict, "first snapshot must have seq 1")

		require.NoError(t, store.Append(ctx, id, snap(1, domain.StepRef{Kind: domain.StepExpert})))

		err = store.Append(ctx, id, snap(1, domain.StepRef{Kind: domain.StepExpert}))
		assert.ErrorIs(t, err, domain.ErrSequenceConflict, "duplicate seq must be rejected")

		err = store.Append(ctx, id, snap(3, domain.StepRef{Kind: domain.StepExpert}))
		assert.ErrorIs(t, err, domain.ErrSequenceConflict, "gaps must be rejected")

		all, err := store.LoadAll(ctx, id)
		require.NoError(t, err)
		assert.Len(t, all, 1, "rejected appends must not be visible")
	})

	t.Run("Terminal Snapshot", func(t *testing.T) {
		id := runID + "-end"
		defer func() { _ = store.Delete(ctx, id) }()

		require.NoError(t, store.Append(ctx, id, snap(1, domain.StepRef{Kind: domain.StepEnd, Output: "goodbye"})))

		head, err := store.LoadNext(ctx, id)
		require.NoError(t, err)
		assert.True(t, head.Terminal())
		assert.Equal(t, "goodbye", head.Next.Output)
	})

	t.Run("Delete", func(t *testing.T) {
		id := runID + "-del"
		require.NoError(t, store.Append(ctx, id, snap(1, domain.StepRef{Kind: domain.StepTriage})))

		require.NoError(t, store.Delete(ctx, id), "Delete should not return error")

		_, err := store.LoadNext(ctx, id)
		assert.ErrorIs(t, err, domain.ErrRunNotFound, "LoadNext after Delete should return ErrRunNotFound")

		assert.NoError(t, store.Delete(ctx, id), "deleting a missing run is not an error")

		// A deleted id starts over at seq 1.
		require.NoError(t, store.Append(ctx, id, snap(1, domain.StepRef{Kind: domain.StepTriage})))
		require.NoError(t, store.Delete(ctx, id))
	})

	t.Run("List", func(t *testing.T) {
		id1 := runID + "-1"
		id2 := runID + "-2"
		require.NoError(t, store.Append(ctx, id1, snap(1, domain.StepRef{Kind: domain.StepTriage})))
		require.NoError(t, store.Append(ctx, id2, snap(1, domain.StepRef{Kind: domain.StepTriage})))

		defer func() {
			_ = store.Delete(ctx, id1)
			_ = store.Delete(ctx, id2)
		}()

		runs, err := store.List(ctx)
		require.NoError(t, err)
		assert.Contains(t, runs, id1)
		assert.Contains(t, runs, id2)
	})
}
