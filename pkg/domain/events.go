package domain

import (
	"context"
	"time"
)

// EventType defines the category of the event.
type EventType string

const (
	EventStepEnter EventType = "step_enter"
	EventStepLeave EventType = "step_leave"
	EventSnapshot  EventType = "snapshot"
	EventSuspend   EventType = "suspend"
	EventTerminal  EventType = "terminal"
	EventStepError EventType = "step_error"
	EventLockLost  EventType = "lock_lost"
)

// EventBase contains common fields for all events.
type EventBase struct {
	Timestamp time.Time `json:"timestamp"`
	Type      EventType `json:"type"`
	RunID     string    `json:"run_id"`
}

// StepEvent represents entry into, exit from, or failure of a step.
type StepEvent struct {
	EventBase
	Step     StepKind      `json:"step"`
	Next     StepKind      `json:"next,omitempty"`
	Duration time.Duration `json:"duration,omitempty"`
	Err      error         `json:"-"`
}

// RunEvent represents a persisted snapshot or the end of an advance.
type RunEvent struct {
	EventBase
	Seq    int64    `json:"seq"`
	Step   StepKind `json:"step"`
	Output string   `json:"output,omitempty"`
}

// LockEvent reports a run lock that expired or changed owner while an
// advance held it.
type LockEvent struct {
	EventBase
	TTL time.Duration `json:"ttl"`
	Err error         `json:"-"`
}

// LifecycleHooks defines callbacks for engine observability.
// Any hook may be nil.
type LifecycleHooks struct {
	OnStepEnter func(context.Context, *StepEvent)
	OnStepLeave func(context.Context, *StepEvent)
	OnStepError func(context.Context, *StepEvent)
	OnSnapshot  func(context.Context, *RunEvent)
	OnSuspend   func(context.Context, *RunEvent)
	OnTerminal  func(context.Context, *RunEvent)
	OnLockLost  func(context.Context, *LockEvent)
}

// Merge returns hooks that call h first, then other.
func (h LifecycleHooks) Merge(other LifecycleHooks) LifecycleHooks {
	return LifecycleHooks{
		OnStepEnter: chainStep(h.OnStepEnter, other.OnStepEnter),
		OnStepLeave: chainStep(h.OnStepLeave, other.OnStepLeave),
		OnStepError: chainStep(h.OnStepError, other.OnStepError),
		OnSnapshot:  chainRun(h.OnSnapshot, other.OnSnapshot),
		OnSuspend:   chainRun(h.OnSuspend, other.OnSuspend),
		OnTerminal:  chainRun(h.OnTerminal, other.OnTerminal),
		OnLockLost:  chainLock(h.OnLockLost, other.OnLockLost),
	}
}

func chainStep(a, b func(context.Context, *StepEvent)) func(context.Context, *StepEvent) {
	if a == nil {
		return b
	}
	if b == nil {
		return a
	}
	return func(ctx context.Context, e *StepEvent) {
		a(ctx, e)
		b(ctx, e)
	}
}

func chainRun(a, b func(context.Context, *RunEvent)) func(context.Context, *RunEvent) {
	if a == nil {
		return b
	}
	if b == nil {
		return a
	}
	return func(ctx context.Context, e *RunEvent) {
		a(ctx, e)
		b(ctx, e)
	}
}

func chainLock(a, b func(context.Context, *LockEvent)) func(context.Context, *LockEvent) {
	if a == nil {
		return b
	}
	if b == nil {
		return a
	}
	return func(ctx context.Context, e *LockEvent) {
		a(ctx, e)
		b(ctx, e)
	}
}
