package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/aretw0/agentwright"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number of agentwright",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "agentwright version %s\n", strings.TrimSpace(agentwright.Version))
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
