package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Manage stored runs",
	Long:  `List, inspect, and remove the runs kept in the configured snapshot store.`,
}

var runLsCmd = &cobra.Command{
	Use:   "ls",
	Short: "List all stored runs",
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := loadApp(cmd)
		if err != nil {
			return err
		}
		defer app.Close()

		runs, err := app.Engine.Runs(cmd.Context())
		if err != nil {
			return fmt.Errorf("error listing runs: %w", err)
		}

		out := cmd.OutOrStdout()
		if len(runs) == 0 {
			fmt.Fprintln(out, "No runs found.")
			return nil
		}
		fmt.Fprintln(out, "Runs:")
		for _, id := range runs {
			head, err := app.Engine.Head(cmd.Context(), id)
			if err != nil {
				fmt.Fprintf(out, "- %s (unreadable: %v)\n", id, err)
				continue
			}
			fmt.Fprintf(out, "- %s  seq=%d  next=%s  %s\n", id, head.Seq, head.Next.Kind, head.CreatedAt.Format("2006-01-02 15:04:05"))
		}
		return nil
	},
}

var runInspectCmd = &cobra.Command{
	Use:   "inspect <run-id>",
	Short: "Print the latest snapshot of a run",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := loadApp(cmd)
		if err != nil {
			return err
		}
		defer app.Close()

		head, err := app.Engine.Head(cmd.Context(), args[0])
		if err != nil {
			return fmt.Errorf("error loading run '%s': %w", args[0], err)
		}
		return printJSON(cmd.OutOrStdout(), head)
	},
}

var runHistoryCmd = &cobra.Command{
	Use:   "history <run-id>",
	Short: "Print every snapshot of a run, oldest first",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := loadApp(cmd)
		if err != nil {
			return err
		}
		defer app.Close()

		snaps, err := app.Engine.History(cmd.Context(), args[0])
		if err != nil {
			return fmt.Errorf("error loading run '%s': %w", args[0], err)
		}
		return printJSON(cmd.OutOrStdout(), snaps)
	},
}

var runRmCmd = &cobra.Command{
	Use:   "rm <run-id>...",
	Short: "Remove one or more runs",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := loadApp(cmd)
		if err != nil {
			return err
		}
		defer app.Close()

		failed := 0
		for _, runID := range args {
			if err := app.Engine.Delete(cmd.Context(), runID); err != nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "Error removing '%s': %v\n", runID, err)
				failed++
				continue
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed run '%s'\n", runID)
		}
		if failed > 0 {
			return fmt.Errorf("%d of %d runs not removed", failed, len(args))
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(runCmd)
	runCmd.AddCommand(runLsCmd)
	runCmd.AddCommand(runInspectCmd)
	runCmd.AddCommand(runHistoryCmd)
	runCmd.AddCommand(runRmCmd)
}

func printJSON(w io.Writer, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("error marshaling: %w", err)
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}
