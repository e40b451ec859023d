package runtime

import (
	"fmt"

	"github.com/aretw0/agentwright/pkg/domain"
)

// graph is the static declaration of the conversation graph.
var graph = []domain.StepSpec{
	{
		Kind:         domain.StepTriage,
		Successors:   []domain.StepKind{domain.StepTriage, domain.StepDefineScope, domain.StepExpert},
		SuspendPoint: true,
	},
	{
		Kind:       domain.StepDefineScope,
		Successors: []domain.StepKind{domain.StepExpert},
	},
	{
		Kind:       domain.StepExpert,
		Successors: []domain.StepKind{domain.StepGetUserMessage},
	},
	{
		Kind:         domain.StepGetUserMessage,
		Successors:   []domain.StepKind{domain.StepFinish, domain.StepRefineRouter, domain.StepExpert},
		SuspendPoint: true,
	},
	{
		Kind:       domain.StepRefineRouter,
		Successors: []domain.StepKind{domain.StepRefinePrompt, domain.StepRefineAgent},
	},
	{
		Kind:       domain.StepRefinePrompt,
		Successors: []domain.StepKind{domain.StepExpert},
	},
	{
		Kind:       domain.StepRefineAgent,
		Successors: []domain.StepKind{domain.StepExpert},
	},
	{
		Kind:     domain.StepFinish,
		Terminal: true,
	},
}

// Graph returns a copy of the step graph declaration.
func Graph() []domain.StepSpec {
	out := make([]domain.StepSpec, len(graph))
	for i, spec := range graph {
		spec.Successors = append([]domain.StepKind(nil), spec.Successors...)
		out[i] = spec
	}
	return out
}

func specFor(kind domain.StepKind) (domain.StepSpec, bool) {
	for _, spec := range graph {
		if spec.Kind == kind {
			return spec, true
		}
	}
	return domain.StepSpec{}, false
}

// checkTransition rejects an outcome that leaves the declared graph.
func checkTransition(from domain.StepKind, out Outcome) error {
	spec, ok := specFor(from)
	if !ok {
		return fmt.Errorf("%w: unknown step %q", domain.ErrIllegalTransition, from)
	}

	switch {
	case out.End != nil && out.Next != nil:
		return fmt.Errorf("%w: %s returned both a next step and an end", domain.ErrIllegalTransition, from)
	case out.End != nil:
		if !spec.Allows(domain.StepEnd) {
			return fmt.Errorf("%w: %s cannot end the run", domain.ErrIllegalTransition, from)
		}
	case out.Next == nil:
		return fmt.Errorf("%w: %s returned no next step", domain.ErrIllegalTransition, from)
	default:
		if to := out.Next.Ref().Kind; !spec.Allows(to) {
			return fmt.Errorf("%w: %s -> %s", domain.ErrIllegalTransition, from, to)
		}
	}
	return nil
}
