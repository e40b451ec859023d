package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/muesli/termenv"

	"github.com/aretw0/agentwright/internal/presentation/tui"
	"github.com/aretw0/agentwright/pkg/domain"
)

// Engine is what the chat loop needs from agentwright.Engine.
type Engine interface {
	Advance(ctx context.Context, runID, message string) (domain.Result, error)
	Head(ctx context.Context, runID string) (*domain.Snapshot, error)
	Delete(ctx context.Context, runID string) error
}

// ChatOptions contains the configuration for an interactive session.
type ChatOptions struct {
	RunID string

	// Fresh discards any stored snapshots of RunID before starting.
	Fresh bool

	In     io.Reader
	Out    io.Writer
	Render tui.Renderer

	// Quiet hides the banner and status lines.
	Quiet bool
}

var quitCommands = map[string]bool{"/quit": true, "/exit": true}

// Chat runs a read-advance-print loop on one run until the run finishes,
// input ends, the user types /quit or ctx is cancelled. Rejected messages
// (too long, invalid) are reported and the loop continues.
func Chat(ctx context.Context, engine Engine, opts ChatOptions) (domain.Result, error) {
	if opts.Render == nil {
		opts.Render = tui.PlainRenderer()
	}
	out := termenv.NewOutput(opts.Out)

	if opts.Fresh {
		if err := engine.Delete(ctx, opts.RunID); err != nil {
			return domain.Result{}, fmt.Errorf("reset run: %w", err)
		}
	}
	if !opts.Quiet {
		tui.PrintBanner(opts.Out)
	}

	var last domain.Result
	resumed, err := resume(ctx, engine, opts.RunID)
	switch {
	case errors.Is(err, domain.ErrRunFinished):
		printSystemMessage(opts.Out, "Run '%s' already finished. Use --fresh to start over.", opts.RunID)
		return domain.Result{Kind: domain.ResultTerminal, RunID: opts.RunID, Step: domain.StepEnd}, nil
	case err != nil:
		return domain.Result{}, err
	case resumed != nil:
		last = *resumed
		printSystemMessage(opts.Out, "Resuming run '%s' at step '%s'.", opts.RunID, last.Step)
		if err := show(opts, out, last); err != nil {
			return last, err
		}
	case !opts.Quiet:
		printSystemMessage(opts.Out, "Run '%s' active. Type /quit to leave.", opts.RunID)
	}

	lines := readLines(ctx, opts.In)
	for {
		fmt.Fprint(opts.Out, "> ")
		var line string
		var ok bool
		select {
		case <-ctx.Done():
			fmt.Fprintln(opts.Out)
			printSystemMessage(opts.Out, "Interrupted. Resume with --run %s", opts.RunID)
			return last, nil
		case line, ok = <-lines:
		}
		if !ok {
			fmt.Fprintln(opts.Out)
			return last, nil
		}

		line = strings.TrimSpace(line)
		if quitCommands[line] {
			return last, nil
		}
		if line == "" {
			continue
		}

		res, err := engine.Advance(ctx, opts.RunID, line)
		if err != nil {
			if domain.IsPrecondition(err) {
				printSystemMessage(opts.Out, "%v", err)
				continue
			}
			return last, err
		}
		last = res
		if err := show(opts, out, res); err != nil {
			return last, err
		}
		if res.Kind == domain.ResultTerminal {
			return last, nil
		}
	}
}

// resume returns the pending reply of a suspended run, or nil for a run
// that does not exist yet.
func resume(ctx context.Context, engine Engine, runID string) (*domain.Result, error) {
	if _, err := engine.Head(ctx, runID); err != nil {
		if errors.Is(err, domain.ErrRunNotFound) {
			return nil, nil
		}
		return nil, err
	}
	res, err := engine.Advance(ctx, runID, "")
	if err != nil {
		return nil, err
	}
	return &res, nil
}

func show(opts ChatOptions, out *termenv.Output, res domain.Result) error {
	rendered, err := opts.Render(res.Output)
	if err != nil {
		return fmt.Errorf("render reply: %w", err)
	}
	fmt.Fprint(opts.Out, rendered)
	if !opts.Quiet {
		fmt.Fprintln(opts.Out, tui.StatusLine(out, res))
	}
	return nil
}

// readLines feeds lines from r until EOF. The goroutine may outlive the
// caller while blocked on a read; stdin is never closed under it.
func readLines(ctx context.Context, r io.Reader) <-chan string {
	ch := make(chan string)
	go func() {
		defer close(ch)
		scanner := bufio.NewScanner(r)
		scanner.Buffer(make([]byte, 64*1024), 1<<20)
		for scanner.Scan() {
			select {
			case ch <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
	}()
	return ch
}

// printSystemMessage prints a standardized system message.
func printSystemMessage(w io.Writer, format string, args ...any) {
	fmt.Fprintf(w, ">>> %s\n", fmt.Sprintf(format, args...))
}
