package agentwright

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"

	"github.com/aretw0/agentwright/internal/runtime"
	"github.com/aretw0/agentwright/pkg/domain"
	"github.com/aretw0/agentwright/pkg/persistence/middleware"
	"github.com/aretw0/agentwright/pkg/ports"
	"github.com/aretw0/agentwright/pkg/session"
)

// Engine is the high-level entry point of the library.
// It wraps the runtime with per-run serialization and store middleware.
// Safe for concurrent use.
type Engine struct {
	runtime  *runtime.Engine
	sessions *session.Manager
	store    ports.SnapshotStore

	hooks       domain.LifecycleHooks
	logger      *slog.Logger
	locker      ports.DistributedLocker
	lockTTL     time.Duration
	middlewares []middleware.Middleware
	runtimeOpts []runtime.EngineOption
}

// Option defines a functional option for configuring the Engine.
type Option func(*Engine)

// WithLifecycleHooks registers observability hooks.
func WithLifecycleHooks(hooks domain.LifecycleHooks) Option {
	return func(e *Engine) {
		e.hooks = hooks
	}
}

// WithLogger sets a custom structured logger for the engine.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// WithDocumentIndex gives the scoping and expert steps access to documentation.
func WithDocumentIndex(docs ports.DocumentIndex) Option {
	return func(e *Engine) {
		e.runtimeOpts = append(e.runtimeOpts, runtime.WithDocumentIndex(docs))
	}
}

// WithArtifactSink receives the scope document of each run.
func WithArtifactSink(sink ports.ArtifactSink) Option {
	return func(e *Engine) {
		e.runtimeOpts = append(e.runtimeOpts, runtime.WithArtifactSink(sink))
	}
}

// WithLocker serializes advances of a run across processes.
func WithLocker(locker ports.DistributedLocker) Option {
	return func(e *Engine) {
		e.locker = locker
	}
}

// WithLockTTL sets how long a run lock outlives a crashed holder.
// A live holder keeps renewing it.
func WithLockTTL(ttl time.Duration) Option {
	return func(e *Engine) {
		e.lockTTL = ttl
	}
}

// WithStoreMiddleware wraps the store. The first middleware is the outermost.
func WithStoreMiddleware(mws ...middleware.Middleware) Option {
	return func(e *Engine) {
		e.middlewares = append(e.middlewares, mws...)
	}
}

// WithMaxSteps bounds the steps executed by one advance.
func WithMaxSteps(n int) Option {
	return func(e *Engine) {
		e.runtimeOpts = append(e.runtimeOpts, runtime.WithMaxSteps(n))
	}
}

// WithMaxInputSize sets the largest accepted user message, in bytes.
func WithMaxInputSize(n int) Option {
	return func(e *Engine) {
		e.runtimeOpts = append(e.runtimeOpts, runtime.WithMaxInputSize(n))
	}
}

// WithTracer sets the OpenTelemetry tracer used for advance and step spans.
func WithTracer(t trace.Tracer) Option {
	return func(e *Engine) {
		e.runtimeOpts = append(e.runtimeOpts, runtime.WithTracer(t))
	}
}

// New initializes an engine over a snapshot store and a reasoning service.
func New(store ports.SnapshotStore, reasoner ports.Reasoner, opts ...Option) (*Engine, error) {
	if store == nil {
		return nil, errors.New("a snapshot store is required")
	}
	if reasoner == nil {
		return nil, errors.New("a reasoner is required")
	}

	eng := &Engine{}
	for _, opt := range opts {
		opt(eng)
	}

	// Ensure logger is initialized (so we don't pass nil to runtime, which would overwrite its default)
	if eng.logger == nil {
		eng.logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}

	eng.store = middleware.Chain(store, eng.middlewares...)

	runtimeOpts := []runtime.EngineOption{
		runtime.WithLifecycleHooks(eng.hooks),
		runtime.WithLogger(eng.logger),
	}
	runtimeOpts = append(runtimeOpts, eng.runtimeOpts...)
	eng.runtime = runtime.NewEngine(eng.store, reasoner, runtimeOpts...)

	sessionOpts := []session.Option{
		session.WithLogger(eng.logger),
		session.WithLifecycleHooks(eng.hooks),
		session.WithLockTTL(eng.lockTTL),
	}
	if eng.locker != nil {
		sessionOpts = append(sessionOpts, session.WithLocker(eng.locker))
	}
	eng.sessions = session.NewManager(eng.runtime, eng.store, sessionOpts...)

	return eng, nil
}

// Advance feeds message to the run and executes steps until the run
// suspends for input or finishes. A run id never seen before starts a new
// conversation. An empty message on a suspended run returns the pending
// reply without side effects.
func (e *Engine) Advance(ctx context.Context, runID, message string) (domain.Result, error) {
	return e.sessions.Advance(ctx, runID, message)
}

// Head returns the latest snapshot of a run.
func (e *Engine) Head(ctx context.Context, runID string) (*domain.Snapshot, error) {
	return e.sessions.Head(ctx, runID)
}

// History returns every snapshot of a run, oldest first.
func (e *Engine) History(ctx context.Context, runID string) ([]domain.Snapshot, error) {
	return e.sessions.History(ctx, runID)
}

// Runs lists the ids of stored runs.
func (e *Engine) Runs(ctx context.Context) ([]string, error) {
	return e.sessions.List(ctx)
}

// Delete removes a run and its whole log.
func (e *Engine) Delete(ctx context.Context, runID string) error {
	return e.sessions.Delete(ctx, runID)
}

// Graph returns the declaration of the step graph.
func (e *Engine) Graph() []domain.StepSpec {
	return runtime.Graph()
}

// Store returns the store the engine persists to, middleware included.
func (e *Engine) Store() ports.SnapshotStore {
	return e.store
}

// NewRunID returns a fresh random run id.
func NewRunID() string {
	return uuid.NewString()
}
