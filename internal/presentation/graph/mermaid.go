package graph

import (
	"fmt"
	"strings"

	"github.com/aretw0/agentwright/pkg/domain"
)

// GraphOverlay contains dynamic state data to visualize on the graph.
type GraphOverlay struct {
	VisitedSteps []domain.StepKind
	CurrentStep  domain.StepKind
}

// OverlayFromHistory derives the visited and current steps from a run's
// snapshot log. Every run starts at triage.
func OverlayFromHistory(snaps []domain.Snapshot) *GraphOverlay {
	overlay := &GraphOverlay{VisitedSteps: []domain.StepKind{domain.StepTriage}}
	for _, s := range snaps {
		overlay.VisitedSteps = append(overlay.VisitedSteps, s.Next.Kind)
	}
	if n := len(snaps); n > 0 {
		overlay.CurrentStep = snaps[n-1].Next.Kind
	}
	return overlay
}

// edgeLabels names the routing decision behind each conditional edge.
var edgeLabels = map[[2]domain.StepKind]string{
	{domain.StepTriage, domain.StepTriage}:               "Chat",
	{domain.StepTriage, domain.StepDefineScope}:          "Development",
	{domain.StepTriage, domain.StepExpert}:               "Q&A",
	{domain.StepGetUserMessage, domain.StepFinish}:       "finish_conversation",
	{domain.StepGetUserMessage, domain.StepRefineRouter}: "refine",
	{domain.StepGetUserMessage, domain.StepExpert}:       "coder_agent",
	{domain.StepRefineRouter, domain.StepRefinePrompt}:   "refine_prompt",
	{domain.StepRefineRouter, domain.StepRefineAgent}:    "refine_agent",
}

// GenerateMermaid produces a Mermaid flowchart of the step graph.
// It applies semantic styling:
// - Entry and end: ((Circle))
// - Suspend points: [/Parallelogram/]
// - Default: [Rectangle]
// It also applies overlay styles (Visited/Current) if provided.
func GenerateMermaid(specs []domain.StepSpec, overlay *GraphOverlay) string {
	var sb strings.Builder
	sb.WriteString("graph TD\n")
	sb.WriteString("    start((\"start\"))\n")
	if len(specs) > 0 {
		fmt.Fprintf(&sb, "    start --> %s\n", sanitizeMermaidID(string(specs[0].Kind)))
	}

	hasEnd := false
	for _, spec := range specs {
		id := sanitizeMermaidID(string(spec.Kind))

		opener, closer := "[", "]"
		if spec.SuspendPoint {
			opener, closer = "[/", "/]"
		}
		fmt.Fprintf(&sb, "    %s%s\"%s\"%s\n", id, opener, spec.Kind, closer)

		for _, next := range spec.Successors {
			arrow := "-->"
			if label, ok := edgeLabels[[2]domain.StepKind{spec.Kind, next}]; ok {
				arrow = fmt.Sprintf("-- \"%s\" -->", strings.ReplaceAll(label, "\"", "'"))
			}
			fmt.Fprintf(&sb, "    %s %s %s\n", id, arrow, sanitizeMermaidID(string(next)))
		}
		if spec.Terminal {
			hasEnd = true
			fmt.Fprintf(&sb, "    %s --> %s\n", id, domain.StepEnd)
		}
	}
	if hasEnd {
		fmt.Fprintf(&sb, "    %s((\"%s\"))\n", domain.StepEnd, domain.StepEnd)
	}

	// Apply Overlay Styles
	if overlay != nil {
		sb.WriteString("\n    %% Overlay Styles\n")
		// Force black text (color:#000) for high-contrast on light backgrounds, regardless of theme (Light/Dark)
		sb.WriteString("    classDef visited fill:#e1f5fe,stroke:#01579b,stroke-width:2px,color:#000;\n")
		sb.WriteString("    classDef current fill:#ffeb3b,stroke:#fbc02d,stroke-width:4px,color:#000;\n")

		seen := make(map[string]bool)
		for _, kind := range overlay.VisitedSteps {
			id := sanitizeMermaidID(string(kind))
			if !seen[id] && id != "" {
				seen[id] = true
				fmt.Fprintf(&sb, "    class %s visited;\n", id)
			}
		}

		if overlay.CurrentStep != "" {
			fmt.Fprintf(&sb, "    class %s current;\n", sanitizeMermaidID(string(overlay.CurrentStep)))
		}
	}

	return sb.String()
}

func sanitizeMermaidID(id string) string {
	s := strings.ReplaceAll(id, ".", "_")
	s = strings.ReplaceAll(s, "-", "_")
	s = strings.ReplaceAll(s, "/", "_")
	s = strings.ReplaceAll(s, "\\", "_")
	return s
}
