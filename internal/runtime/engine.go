package runtime

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/aretw0/agentwright/internal/logging"
	"github.com/aretw0/agentwright/pkg/domain"
	"github.com/aretw0/agentwright/pkg/ports"
)

// DefaultMaxSteps bounds the number of steps one advance may execute.
const DefaultMaxSteps = 32

const tracerName = "github.com/aretw0/agentwright/internal/runtime"

// Engine executes the conversation graph for one run at a time.
//
// Callers must not run two advances for the same run id concurrently; use
// session.Manager when requests can race. Different runs are independent.
type Engine struct {
	store     ports.SnapshotStore
	reasoner  ports.Reasoner
	docs      ports.DocumentIndex
	artifacts ports.ArtifactSink
	registry  *domain.Registry
	hooks     domain.LifecycleHooks
	logger    *slog.Logger
	tracer    trace.Tracer
	maxSteps  int
	maxInput  int
	now       func() time.Time
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) EngineOption {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithLifecycleHooks registers observability hooks.
func WithLifecycleHooks(hooks domain.LifecycleHooks) EngineOption {
	return func(e *Engine) {
		e.hooks = hooks
	}
}

// WithRegistry replaces the default reducer registry.
func WithRegistry(r *domain.Registry) EngineOption {
	return func(e *Engine) {
		if r != nil {
			e.registry = r
		}
	}
}

// WithDocumentIndex gives scoping and expert steps access to documentation.
func WithDocumentIndex(docs ports.DocumentIndex) EngineOption {
	return func(e *Engine) {
		e.docs = docs
	}
}

// WithArtifactSink receives the scope document of each run.
func WithArtifactSink(sink ports.ArtifactSink) EngineOption {
	return func(e *Engine) {
		e.artifacts = sink
	}
}

// WithMaxSteps bounds the steps of a single advance.
func WithMaxSteps(n int) EngineOption {
	return func(e *Engine) {
		if n > 0 {
			e.maxSteps = n
		}
	}
}

// WithMaxInputSize sets the largest accepted user message, in bytes.
func WithMaxInputSize(n int) EngineOption {
	return func(e *Engine) {
		if n > 0 {
			e.maxInput = n
		}
	}
}

// WithTracer sets the OpenTelemetry tracer. Defaults to the global provider.
func WithTracer(t trace.Tracer) EngineOption {
	return func(e *Engine) {
		if t != nil {
			e.tracer = t
		}
	}
}

// WithClock overrides the snapshot timestamp source.
func WithClock(now func() time.Time) EngineOption {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

// NewEngine creates an engine over a snapshot store and a reasoning service.
func NewEngine(store ports.SnapshotStore, reasoner ports.Reasoner, opts ...EngineOption) *Engine {
	e := &Engine{
		store:    store,
		reasoner: reasoner,
		registry: domain.DefaultRegistry(),
		logger:   logging.NewNop(),
		tracer:   otel.Tracer(tracerName),
		maxSteps: DefaultMaxSteps,
		maxInput: DefaultMaxInputSize,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Store returns the snapshot store the engine persists to.
func (e *Engine) Store() ports.SnapshotStore {
	return e.store
}

// Advance feeds message to the run and executes steps until the run
// suspends for input or finishes. A snapshot is persisted after every step;
// a failing step persists nothing, so the store always holds either the
// state before the call or a consistent state after some step.
//
// An empty message on a suspended run returns the pending reply without
// executing anything.
func (e *Engine) Advance(ctx context.Context, runID, message string) (res domain.Result, err error) {
	ctx, span := e.tracer.Start(ctx, "agentwright.advance",
		trace.WithAttributes(attribute.String("agentwright.run_id", runID)),
	)
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "advance failed")
		} else {
			span.SetAttributes(
				attribute.String("agentwright.result", string(res.Kind)),
				attribute.Int64("agentwright.seq", res.Seq),
			)
			span.SetStatus(codes.Ok, "ok")
		}
		span.End()
	}()

	if err := domain.ValidateRunID(runID); err != nil {
		return domain.Result{}, err
	}
	msg, err := SanitizeInput(message, e.maxInput)
	if err != nil {
		return domain.Result{}, err
	}
	if strings.TrimSpace(msg) == "" {
		msg = ""
	}

	logger := e.logger.With("run_id", runID)

	var (
		state   domain.ConversationState
		current Step
		seq     int64
		input   string
	)

	head, err := e.store.LoadNext(ctx, runID)
	switch {
	case errors.Is(err, domain.ErrRunNotFound):
		if msg == "" {
			return domain.Result{}, domain.ErrEmptyMessage
		}
		state = domain.NewConversationState(msg)
		current = Triage{UserMessage: msg}
		input = domain.DigestInput(msg)
		logger.Debug("starting run")

	case err != nil:
		return domain.Result{}, fmt.Errorf("load run %s: %w", runID, err)

	default:
		if head.Terminal() {
			return domain.Result{}, fmt.Errorf("%w: %s", domain.ErrRunFinished, runID)
		}
		seq = head.Seq
		state = head.State
		input = head.InputDigest
		ref := head.Next

		switch {
		case ref.AwaitsInput() && msg == "":
			return domain.Result{
				Kind:   domain.ResultSuspended,
				RunID:  runID,
				Output: state.LatestModelMessage,
				Seq:    seq,
				Step:   ref.Kind,
			}, nil
		case ref.AwaitsInput():
			ref = ref.WithUserMessage(msg)
			input = domain.DigestInput(msg)
		case msg != "" && !sameInput(head, msg):
			// A previous advance failed mid-run. Only a retry of the same
			// message may resume it.
			return domain.Result{}, fmt.Errorf("%w: pending step %s", domain.ErrNotSuspended, ref.Kind)
		}

		if current, err = FromRef(ref); err != nil {
			return domain.Result{}, err
		}
		logger.Debug("resuming run", "step", ref.Kind, "seq", seq)
	}

	env := &Env{
		RunID:     runID,
		Reasoner:  e.reasoner,
		Docs:      e.docs,
		Artifacts: e.artifacts,
		Logger:    logger,
	}

	for steps := 0; ; steps++ {
		if steps >= e.maxSteps {
			return domain.Result{}, fmt.Errorf("%w: %d steps without suspending", domain.ErrStepLimit, steps)
		}

		kind := current.Ref().Kind
		out, err := e.runStep(ctx, env, current, state)
		if err != nil {
			return domain.Result{}, err
		}

		next, err := e.registry.Fold(state, out.Delta)
		if err != nil {
			return domain.Result{}, fmt.Errorf("step %s: %w", kind, err)
		}

		nextRef := domain.StepRef{Kind: domain.StepEnd}
		if out.End != nil {
			nextRef.Output = out.End.Output
		} else {
			nextRef = out.Next.Ref()
		}

		seq++
		snap := domain.Snapshot{
			Seq:       seq,
			RunID:     runID,
			State:     next,
			Next:      nextRef,
			CreatedAt: e.now().UTC(),

			InputDigest: input,
		}
		if err := e.store.Append(ctx, runID, snap); err != nil {
			return domain.Result{}, fmt.Errorf("persist snapshot %d of %s: %w", seq, runID, err)
		}
		state = next
		logger.Debug("snapshot persisted", "seq", seq, "step", kind, "next", nextRef.Kind)
		e.emitRun(ctx, e.hooks.OnSnapshot, domain.EventSnapshot, runID, seq, nextRef.Kind, "")

		if out.End != nil {
			logger.Info("run finished", "seq", seq)
			e.emitRun(ctx, e.hooks.OnTerminal, domain.EventTerminal, runID, seq, domain.StepEnd, out.End.Output)
			return domain.Result{
				Kind:   domain.ResultTerminal,
				RunID:  runID,
				Output: out.End.Output,
				Seq:    seq,
				Step:   domain.StepEnd,
			}, nil
		}

		if nextRef.AwaitsInput() {
			e.emitRun(ctx, e.hooks.OnSuspend, domain.EventSuspend, runID, seq, nextRef.Kind, state.LatestModelMessage)
			return domain.Result{
				Kind:   domain.ResultSuspended,
				RunID:  runID,
				Output: state.LatestModelMessage,
				Seq:    seq,
				Step:   nextRef.Kind,
			}, nil
		}

		current = out.Next
	}
}

// sameInput reports whether msg is the message that produced head. Logs
// written before digests were recorded fall back to the stored text.
func sameInput(head *domain.Snapshot, msg string) bool {
	if head.InputDigest != "" {
		return head.InputDigest == domain.DigestInput(msg)
	}
	return msg == head.State.LatestUserMessage
}

// runStep executes one step and checks its transition against the graph.
func (e *Engine) runStep(ctx context.Context, env *Env, step Step, state domain.ConversationState) (Outcome, error) {
	kind := step.Ref().Kind
	ctx, span := e.tracer.Start(ctx, "agentwright.step."+string(kind),
		trace.WithAttributes(
			attribute.String("agentwright.run_id", env.RunID),
			attribute.String("agentwright.step", string(kind)),
		),
	)
	defer span.End()

	start := time.Now()
	if e.hooks.OnStepEnter != nil {
		e.hooks.OnStepEnter(ctx, &domain.StepEvent{
			EventBase: domain.EventBase{Timestamp: start, Type: domain.EventStepEnter, RunID: env.RunID},
			Step:      kind,
		})
	}

	out, err := step.Run(ctx, env, state)
	if err == nil {
		err = checkTransition(kind, out)
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "step failed")
		env.Logger.Error("step failed", "step", kind, "err", err)
		if e.hooks.OnStepError != nil {
			e.hooks.OnStepError(ctx, &domain.StepEvent{
				EventBase: domain.EventBase{Timestamp: time.Now(), Type: domain.EventStepError, RunID: env.RunID},
				Step:      kind,
				Duration:  time.Since(start),
				Err:       err,
			})
		}
		if domain.IsInvariantViolation(err) {
			return Outcome{}, fmt.Errorf("step %s: %w", kind, err)
		}
		return Outcome{}, &StepError{Step: kind, Err: err}
	}

	next := domain.StepEnd
	if out.Next != nil {
		next = out.Next.Ref().Kind
	}
	span.SetStatus(codes.Ok, "ok")
	if e.hooks.OnStepLeave != nil {
		e.hooks.OnStepLeave(ctx, &domain.StepEvent{
			EventBase: domain.EventBase{Timestamp: time.Now(), Type: domain.EventStepLeave, RunID: env.RunID},
			Step:      kind,
			Next:      next,
			Duration:  time.Since(start),
		})
	}
	return out, nil
}

func (e *Engine) emitRun(ctx context.Context, hook func(context.Context, *domain.RunEvent), typ domain.EventType, runID string, seq int64, step domain.StepKind, output string) {
	if hook == nil {
		return
	}
	hook(ctx, &domain.RunEvent{
		EventBase: domain.EventBase{Timestamp: time.Now(), Type: typ, RunID: runID},
		Seq:       seq,
		Step:      step,
		Output:    output,
	})
}
