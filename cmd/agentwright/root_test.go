package main

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/agentwright"
	"github.com/aretw0/agentwright/pkg/domain"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	t.Cleanup(func() { rootCmd.SetArgs(nil) })
	err := rootCmd.Execute()
	return out.String(), err
}

func TestVersionCommand(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Equal(t, "agentwright version "+strings.TrimSpace(agentwright.Version)+"\n", out)
}

func TestGraphCommand(t *testing.T) {
	out, err := execute(t, "graph")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "graph TD\n"))
	assert.Contains(t, out, "start --> triage")
}

func TestAdvanceCommand(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("AGENTWRIGHT_WORKBENCH", dir)

	out, err := execute(t, "--store", "file", "--store-dir", dir, "--provider", "scripted", "--log-level", "error",
		"advance", "r1", "how", "do", "tools", "work?")
	require.NoError(t, err)

	var res domain.Result
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.Equal(t, domain.ResultSuspended, res.Kind)
	assert.Equal(t, "r1", res.RunID)

	out, err = execute(t, "--store", "file", "--store-dir", dir, "run", "ls")
	require.NoError(t, err)
	assert.Contains(t, out, "- r1  seq=2  next=get_user_message")

	_, err = execute(t, "--store", "file", "--store-dir", dir, "advance", "r2")
	assert.ErrorIs(t, err, domain.ErrEmptyMessage)
}

func TestLoadConfig_RejectsUnknownStore(t *testing.T) {
	_, err := execute(t, "--store", "tape", "run", "ls")
	assert.ErrorContains(t, err, `unknown store kind "tape"`)
}
