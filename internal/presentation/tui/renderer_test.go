package tui_test

import (
	"bytes"
	"strings"
	"testing"

	"github.com/muesli/termenv"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/agentwright/internal/presentation/tui"
	"github.com/aretw0/agentwright/pkg/domain"
)

func TestNewRenderer(t *testing.T) {
	render, err := tui.NewRenderer(60)
	require.NoError(t, err)

	out, err := render("# Scope\n\nA weather agent.")
	require.NoError(t, err)
	assert.Contains(t, out, "Scope")
	assert.Contains(t, out, "weather agent")
}

func TestPlainRenderer(t *testing.T) {
	out, err := tui.PlainRenderer()("**bold**\n\n")
	require.NoError(t, err)
	assert.Equal(t, "**bold**\n", out)
}

func TestStatusLine(t *testing.T) {
	out := termenv.NewOutput(&bytes.Buffer{}, termenv.WithProfile(termenv.Ascii))

	line := tui.StatusLine(out, domain.Result{Kind: domain.ResultSuspended, RunID: "r1", Step: domain.StepTriage})
	assert.Equal(t, "● waiting for you run r1 · step triage", line)

	line = tui.StatusLine(out, domain.Result{Kind: domain.ResultTerminal, RunID: "r1", Step: domain.StepEnd})
	assert.True(t, strings.HasPrefix(line, "● finished"))
}

func TestPrintBanner(t *testing.T) {
	var buf bytes.Buffer
	tui.PrintBanner(&buf)
	assert.Contains(t, buf.String(), "|___/")
}
