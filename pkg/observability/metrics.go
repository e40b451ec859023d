package observability

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/aretw0/agentwright/pkg/domain"
)

// Metrics holds the collectors fed by the engine hooks.
type Metrics struct {
	StepVisits   *prometheus.CounterVec
	StepDuration *prometheus.HistogramVec
	StepErrors   *prometheus.CounterVec
	Snapshots    prometheus.Counter
	Results      *prometheus.CounterVec
	LocksLost    prometheus.Counter
}

// NewMetrics creates the collectors and registers them with reg.
// A nil reg leaves them unregistered.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		StepVisits: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "agentwright_step_visits_total",
				Help: "Total number of executed steps",
			},
			[]string{"step"},
		),
		StepDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "agentwright_step_duration_seconds",
				Help:    "Duration of step executions, reasoning calls included",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
			},
			[]string{"step"},
		),
		StepErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "agentwright_step_errors_total",
				Help: "Total number of failed steps",
			},
			[]string{"step"},
		),
		Snapshots: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "agentwright_snapshots_total",
			Help: "Total number of persisted snapshots",
		}),
		Results: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "agentwright_advance_results_total",
				Help: "Advances that ended suspended or terminal",
			},
			[]string{"kind"},
		),
		LocksLost: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "agentwright_lock_lost_total",
			Help: "Run locks that expired or changed owner during an advance",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.StepVisits, m.StepDuration, m.StepErrors, m.Snapshots, m.Results, m.LocksLost)
	}
	return m
}

// Hooks returns lifecycle hooks recording into m.
func (m *Metrics) Hooks() domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnStepEnter: func(_ context.Context, e *domain.StepEvent) {
			m.StepVisits.WithLabelValues(string(e.Step)).Inc()
		},
		OnStepLeave: func(_ context.Context, e *domain.StepEvent) {
			m.StepDuration.WithLabelValues(string(e.Step)).Observe(e.Duration.Seconds())
		},
		OnStepError: func(_ context.Context, e *domain.StepEvent) {
			m.StepErrors.WithLabelValues(string(e.Step)).Inc()
			m.StepDuration.WithLabelValues(string(e.Step)).Observe(e.Duration.Seconds())
		},
		OnSnapshot: func(context.Context, *domain.RunEvent) {
			m.Snapshots.Inc()
		},
		OnSuspend: func(context.Context, *domain.RunEvent) {
			m.Results.WithLabelValues(string(domain.ResultSuspended)).Inc()
		},
		OnTerminal: func(context.Context, *domain.RunEvent) {
			m.Results.WithLabelValues(string(domain.ResultTerminal)).Inc()
		},
		OnLockLost: func(context.Context, *domain.LockEvent) {
			m.LocksLost.Inc()
		},
	}
}
