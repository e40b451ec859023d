package observability_test

import (
	"bytes"
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/agentwright/internal/runtime"
	"github.com/aretw0/agentwright/pkg/adapters/memory"
	"github.com/aretw0/agentwright/pkg/domain"
	"github.com/aretw0/agentwright/pkg/observability"
	"github.com/aretw0/agentwright/pkg/ports"
	"github.com/aretw0/agentwright/pkg/reasoning"
)

func TestMetrics_RecordAdvance(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := observability.NewMetrics(reg)

	script := reasoning.NewScripted().
		On(reasoning.AgentTriage, reasoning.Classify("Q&A", "")).
		On(reasoning.AgentExpert, reasoning.Say("answer"))
	eng := runtime.NewEngine(memory.NewStore(), script, runtime.WithLifecycleHooks(metrics.Hooks()))

	_, err := eng.Advance(context.Background(), "m", "what is a tool?")
	require.NoError(t, err)

	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.StepVisits.WithLabelValues(string(domain.StepTriage))))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.StepVisits.WithLabelValues(string(domain.StepExpert))))
	assert.Equal(t, 2.0, testutil.ToFloat64(metrics.Snapshots))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.Results.WithLabelValues(string(domain.ResultSuspended))))
	assert.Equal(t, 2, testutil.CollectAndCount(metrics.StepDuration))
}

func TestMetrics_StepErrors(t *testing.T) {
	metrics := observability.NewMetrics(nil)
	hooks := metrics.Hooks()
	hooks.OnStepError(context.Background(), &domain.StepEvent{Step: domain.StepFinish})
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.StepErrors.WithLabelValues(string(domain.StepFinish))))
}

func TestLogHooks(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelInfo}))
	hooks := observability.LogHooks(logger)

	ctx := context.Background()
	hooks.OnStepEnter(ctx, &domain.StepEvent{EventBase: domain.EventBase{RunID: "r"}, Step: domain.StepTriage})
	assert.Empty(t, buf.String(), "step traffic is debug")

	hooks.OnSuspend(ctx, &domain.RunEvent{EventBase: domain.EventBase{RunID: "r"}, Seq: 3, Step: domain.StepTriage})
	assert.Contains(t, buf.String(), "msg=suspend")
	assert.Contains(t, buf.String(), "run_id=r")
}

func TestMetrics_LockLost(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := observability.NewMetrics(reg)

	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelWarn}))
	hooks := observability.LogHooks(logger).Merge(metrics.Hooks())

	hooks.OnLockLost(context.Background(), &domain.LockEvent{
		EventBase: domain.EventBase{Type: domain.EventLockLost, RunID: "r"},
		TTL:       30 * time.Second,
		Err:       ports.ErrLockLost,
	})

	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.LocksLost))
	assert.Contains(t, buf.String(), "level=ERROR")
	assert.Contains(t, buf.String(), "msg=lock_lost")
	assert.Contains(t, buf.String(), "run_id=r")

	n, err := testutil.GatherAndCount(reg, "agentwright_lock_lost_total")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}
