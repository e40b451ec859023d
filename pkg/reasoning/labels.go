package reasoning

import (
	"strings"

	"github.com/aretw0/agentwright/pkg/domain"
)

// Route is the decision of the router agent after the user answered the expert.
type Route string

const (
	RouteFinish   Route = "finish_conversation"
	RouteRefine   Route = "refine"
	RouteContinue Route = "coder_agent"
)

// Refinement is the decision of the refine router agent.
type Refinement string

const (
	RefinePrompt Refinement = "refine_prompt"
	RefineAgent  Refinement = "refine_agent"
)

// normalizeLabel strips the decoration models tend to add around a bare label.
func normalizeLabel(s string) string {
	s = strings.TrimSpace(s)
	s = strings.Trim(s, "`'\".:!*[]() \n\t")
	return strings.ToLower(s)
}

// ParseIntent maps a triage label onto an Intent.
func ParseIntent(label string) (domain.Intent, bool) {
	switch normalizeLabel(label) {
	case "development":
		return domain.IntentDevelopment, true
	case "q&a", "qa", "q and a":
		return domain.IntentQA, true
	case "chat":
		return domain.IntentChat, true
	}
	return domain.IntentUnset, false
}

// ParseRoute maps a router label onto a Route.
func ParseRoute(label string) (Route, bool) {
	switch Route(normalizeLabel(label)) {
	case RouteFinish:
		return RouteFinish, true
	case RouteRefine:
		return RouteRefine, true
	case RouteContinue:
		return RouteContinue, true
	}
	return "", false
}

// ParseRefinement maps a refine router label onto a Refinement.
func ParseRefinement(label string) (Refinement, bool) {
	switch Refinement(normalizeLabel(label)) {
	case RefinePrompt:
		return RefinePrompt, true
	case RefineAgent:
		return RefineAgent, true
	}
	return "", false
}
