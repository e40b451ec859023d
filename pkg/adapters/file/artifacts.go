package file

import (
	"context"
	"io"
	"path/filepath"

	"github.com/aretw0/agentwright/pkg/domain"
)

// Workbench implements ports.ArtifactSink by writing documents under
// <Dir>/<runID>/.
type Workbench struct {
	Dir string
}

// NewWorkbench creates a Workbench rooted at dir, "workbench" when empty.
func NewWorkbench(dir string) *Workbench {
	if dir == "" {
		dir = "workbench"
	}
	return &Workbench{Dir: dir}
}

// ScopePath returns where the scope document of a run is written.
func (w *Workbench) ScopePath(runID string) string {
	return filepath.Join(w.Dir, runID, "scope.md")
}

// WriteScope replaces the run's scope.md.
func (w *Workbench) WriteScope(ctx context.Context, runID string, scope string) error {
	if err := domain.ValidateRunID(runID); err != nil {
		return err
	}
	return replaceFile(w.ScopePath(runID), func(out io.Writer) error {
		_, err := io.WriteString(out, scope)
		return err
	})
}
