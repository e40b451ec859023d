package file_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/aretw0/agentwright/pkg/adapters/file"
	"github.com/aretw0/agentwright/pkg/domain"
	"github.com/aretw0/agentwright/pkg/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Ensure Store implements SnapshotStore
var _ ports.SnapshotStore = (*file.Store)(nil)

func TestFileStore_Contract(t *testing.T) {
	store := file.New(t.TempDir())
	ports.RunSnapshotStoreContract(t, store)
}

func TestFileStore_Layout(t *testing.T) {
	dir := t.TempDir()
	store := file.New(dir)
	ctx := context.Background()

	snap := domain.Snapshot{Seq: 1, RunID: "abc", State: domain.NewConversationState("hello"), Next: domain.StepRef{Kind: domain.StepTriage}}
	require.NoError(t, store.Append(ctx, "abc", snap))

	data, err := os.ReadFile(filepath.Join(dir, "abc.json"))
	require.NoError(t, err)
	assert.Equal(t, byte('['), data[0], "run file holds a json array")

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "no temp files are left behind")
}

func TestFileStore_Corrupt(t *testing.T) {
	dir := t.TempDir()
	store := file.New(dir)
	ctx := context.Background()

	require.NoError(t, os.WriteFile(filepath.Join(dir, "broken.json"), []byte("{not json"), 0644))

	_, err := store.LoadNext(ctx, "broken")
	assert.ErrorIs(t, err, domain.ErrCorruptSnapshot)

	err = store.Append(ctx, "broken", domain.Snapshot{Seq: 1})
	assert.ErrorIs(t, err, domain.ErrCorruptSnapshot, "a corrupt log is never overwritten")
}

func TestFileStore_EmptyLog(t *testing.T) {
	dir := t.TempDir()
	store := file.New(dir)
	ctx := context.Background()

	for name, content := range map[string]string{
		"empty":  "[]",
		"null":   "null",
		"spaced": " [ ]\n",
	} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name+".json"), []byte(content), 0644))

		_, err := store.LoadNext(ctx, name)
		assert.ErrorIs(t, err, domain.ErrCorruptSnapshot, name)
		assert.NotErrorIs(t, err, domain.ErrRunNotFound, name)

		_, err = store.LoadAll(ctx, name)
		assert.ErrorIs(t, err, domain.ErrCorruptSnapshot, name)
	}
}

func TestFileStore_InvalidRunID(t *testing.T) {
	store := file.New(t.TempDir())
	ctx := context.Background()

	for _, id := range []string{"", "../escape", "a/b", ".."} {
		_, err := store.LoadNext(ctx, id)
		assert.ErrorIs(t, err, domain.ErrInvalidRunID, id)
	}
}

func TestFileStore_ListIgnoresForeignFiles(t *testing.T) {
	dir := t.TempDir()
	store := file.New(dir)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0644))
	require.NoError(t, os.Mkdir(filepath.Join(dir, "sub.json"), 0755))

	runs, err := store.List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, runs)
}

func TestWorkbench_WriteScope(t *testing.T) {
	dir := t.TempDir()
	wb := file.NewWorkbench(dir)
	ctx := context.Background()

	require.NoError(t, wb.WriteScope(ctx, "run-1", "# Scope v1"))
	require.NoError(t, wb.WriteScope(ctx, "run-1", "# Scope v2"))

	data, err := os.ReadFile(filepath.Join(dir, "run-1", "scope.md"))
	require.NoError(t, err)
	assert.Equal(t, "# Scope v2", string(data))

	assert.ErrorIs(t, wb.WriteScope(ctx, "../x", "nope"), domain.ErrInvalidRunID)
}
