package main

import (
	"context"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/aretw0/agentwright"
	"github.com/aretw0/agentwright/internal/cli"
	"github.com/aretw0/agentwright/internal/presentation/tui"
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Talk to the agent builder interactively",
	Long: `Starts an interactive session on a run. Without --run a new run is created.
With --run the run is resumed where it was suspended, even if it was started elsewhere.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		runID, _ := cmd.Flags().GetString("run")
		fresh, _ := cmd.Flags().GetBool("fresh")
		quiet, _ := cmd.Flags().GetBool("quiet")
		plain, _ := cmd.Flags().GetBool("plain")
		if runID == "" {
			runID = agentwright.NewRunID()
		}

		app, err := loadApp(cmd)
		if err != nil {
			return err
		}
		defer app.Close()

		sigCtx := cli.NewSignalContext(context.Background())
		defer sigCtx.Stop()

		_, err = cli.Chat(sigCtx, app.Engine, cli.ChatOptions{
			RunID:  runID,
			Fresh:  fresh,
			In:     os.Stdin,
			Out:    cmd.OutOrStdout(),
			Render: chooseRenderer(plain, app.Logger.Warn),
			Quiet:  quiet,
		})
		if err != nil {
			return err
		}
		return sigCtx.Cause()
	},
}

// chooseRenderer renders markdown only when stdout is a terminal.
func chooseRenderer(plain bool, warn func(msg string, args ...any)) tui.Renderer {
	fd := int(os.Stdout.Fd())
	if plain || !term.IsTerminal(fd) {
		return tui.PlainRenderer()
	}
	width, _, err := term.GetSize(fd)
	if err != nil {
		width = 0
	}
	r, err := tui.NewRenderer(width)
	if err != nil {
		warn("Markdown rendering unavailable", "err", err)
		return tui.PlainRenderer()
	}
	return r
}

func init() {
	rootCmd.AddCommand(chatCmd)
	chatCmd.Flags().String("run", "", "Run to resume (a new run when empty)")
	chatCmd.Flags().Bool("fresh", false, "Discard the stored snapshots of --run first")
	chatCmd.Flags().BoolP("quiet", "q", false, "Hide the banner and status lines")
	chatCmd.Flags().Bool("plain", false, "Print replies without markdown rendering")
}
