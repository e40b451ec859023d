package tui

import (
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/muesli/termenv"

	"github.com/aretw0/agentwright/pkg/domain"
)

// Renderer turns model replies into terminal output.
type Renderer func(markdown string) (string, error)

// NewRenderer returns a Renderer that renders markdown using glamour.
// A non-positive width keeps glamour's default wrapping.
func NewRenderer(width int) (Renderer, error) {
	opts := []glamour.TermRendererOption{
		glamour.WithAutoStyle(), // Automatically detect light/dark background
	}
	if width > 0 {
		opts = append(opts, glamour.WithWordWrap(width))
	}
	r, err := glamour.NewTermRenderer(opts...)
	if err != nil {
		return nil, err
	}
	return r.Render, nil
}

// PlainRenderer returns replies untouched. Used when output is not a terminal.
func PlainRenderer() Renderer {
	return func(markdown string) (string, error) {
		return strings.TrimRight(markdown, "\n") + "\n", nil
	}
}

// StatusLine describes where a run stands after an advance.
func StatusLine(out *termenv.Output, res domain.Result) string {
	p := out.Profile
	color := "#a78bfa"
	label := "waiting for you"
	if res.Kind == domain.ResultTerminal {
		color = "#34d399"
		label = "finished"
	}
	status := out.String("● " + label).Foreground(p.Color(color))
	detail := out.String(" run " + res.RunID + " · step " + string(res.Step)).Faint()
	return status.String() + detail.String()
}
