package observability

import (
	"context"
	"log/slog"

	"github.com/aretw0/agentwright/pkg/domain"
)

// LogHooks returns lifecycle hooks that write one log line per event.
// Step traffic is logged at debug level, outcomes at info, step failures at
// warn and lost run locks at error.
func LogHooks(logger *slog.Logger) domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnStepEnter: func(ctx context.Context, e *domain.StepEvent) {
			logger.DebugContext(ctx, "step_enter", "run_id", e.RunID, "step", e.Step)
		},
		OnStepLeave: func(ctx context.Context, e *domain.StepEvent) {
			logger.DebugContext(ctx, "step_leave",
				"run_id", e.RunID,
				"step", e.Step,
				"next", e.Next,
				"duration", e.Duration,
			)
		},
		OnStepError: func(ctx context.Context, e *domain.StepEvent) {
			logger.WarnContext(ctx, "step_error", "run_id", e.RunID, "step", e.Step, "err", e.Err)
		},
		OnSuspend: func(ctx context.Context, e *domain.RunEvent) {
			logger.InfoContext(ctx, "suspend", "run_id", e.RunID, "seq", e.Seq, "step", e.Step)
		},
		OnTerminal: func(ctx context.Context, e *domain.RunEvent) {
			logger.InfoContext(ctx, "terminal", "run_id", e.RunID, "seq", e.Seq)
		},
		OnLockLost: func(ctx context.Context, e *domain.LockEvent) {
			logger.ErrorContext(ctx, "lock_lost", "run_id", e.RunID, "ttl", e.TTL, "err", e.Err)
		},
	}
}
