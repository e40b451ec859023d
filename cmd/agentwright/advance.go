package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/aretw0/agentwright"
)

var advanceCmd = &cobra.Command{
	Use:   "advance <run-id> [message...]",
	Short: "Advance a run by one user message",
	Long: `Sends one message to a run and prints the result as JSON. Use "-" as the run id to start a new run.
Without a message the pending reply of a suspended run is printed again.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		runID := args[0]
		if runID == "-" {
			runID = agentwright.NewRunID()
		}
		message := strings.Join(args[1:], " ")

		app, err := loadApp(cmd)
		if err != nil {
			return err
		}
		defer app.Close()

		res, err := app.Engine.Advance(cmd.Context(), runID, message)
		if err != nil {
			return fmt.Errorf("advance %s: %w", runID, err)
		}

		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	},
}

func init() {
	rootCmd.AddCommand(advanceCmd)
}
