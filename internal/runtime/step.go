package runtime

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/aretw0/agentwright/pkg/domain"
	"github.com/aretw0/agentwright/pkg/ports"
)

// Env carries the collaborators a step may use. Docs and Artifacts are optional.
type Env struct {
	RunID     string
	Reasoner  ports.Reasoner
	Docs      ports.DocumentIndex
	Artifacts ports.ArtifactSink
	Logger    *slog.Logger
}

// Outcome is what a step hands back to the executor. Exactly one of Next
// and End is set.
type Outcome struct {
	Delta domain.Delta
	Next  Step
	End   *domain.End
}

// Step is one unit of the conversation graph. Steps are plain values: all
// they carry is what their StepRef records, so a persisted ref rebuilds them.
type Step interface {
	Ref() domain.StepRef
	Run(ctx context.Context, env *Env, state domain.ConversationState) (Outcome, error)
}

// FromRef rebuilds a step from its persisted descriptor.
func FromRef(ref domain.StepRef) (Step, error) {
	switch ref.Kind {
	case domain.StepTriage:
		return Triage{UserMessage: ref.UserMessage}, nil
	case domain.StepDefineScope:
		return DefineScope{}, nil
	case domain.StepExpert:
		return Expert{}, nil
	case domain.StepGetUserMessage:
		return GetUserMessage{UserMessage: ref.UserMessage, CodeOutput: ref.CodeOutput}, nil
	case domain.StepRefineRouter:
		return RefineRouter{}, nil
	case domain.StepRefinePrompt:
		return RefinePrompt{}, nil
	case domain.StepRefineAgent:
		return RefineAgent{}, nil
	case domain.StepFinish:
		return Finish{}, nil
	}
	return nil, fmt.Errorf("%w: unknown step kind %q", domain.ErrCorruptSnapshot, ref.Kind)
}

// StepError reports a collaborator failure inside a step.
type StepError struct {
	Step domain.StepKind
	Err  error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("step %s: %v", e.Step, e.Err)
}

func (e *StepError) Unwrap() error {
	return e.Err
}
