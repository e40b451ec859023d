package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/aretw0/agentwright/internal/presentation/graph"
	"github.com/aretw0/agentwright/internal/runtime"
)

// graphCmd represents the graph command
var graphCmd = &cobra.Command{
	Use:   "graph",
	Short: "Export the step graph visualization",
	Long: `Outputs a Mermaid diagram (graph TD) of the conversation steps.
With --run the steps the run visited and its pending step are highlighted.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		runID, _ := cmd.Flags().GetString("run")

		var overlay *graph.GraphOverlay
		if runID != "" {
			app, err := loadApp(cmd)
			if err != nil {
				return err
			}
			defer app.Close()

			snaps, err := app.Engine.History(cmd.Context(), runID)
			if err != nil {
				return fmt.Errorf("error loading run '%s': %w", runID, err)
			}
			overlay = graph.OverlayFromHistory(snaps)
		}

		fmt.Fprint(cmd.OutOrStdout(), graph.GenerateMermaid(runtime.Graph(), overlay))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(graphCmd)
	graphCmd.Flags().String("run", "", "Run whose path is highlighted")
}
