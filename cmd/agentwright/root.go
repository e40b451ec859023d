package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/aretw0/agentwright/internal/cli"
	"github.com/aretw0/agentwright/internal/config"
)

// defaultConfigFile is read when --config is not given and the file exists.
const defaultConfigFile = "agentwright.yaml"

var rootCmd = &cobra.Command{
	Use:   "agentwright",
	Short: "agentwright is a conversational builder of AI agents",
	Long: `agentwright runs a multi-step conversation that turns a request into an AI agent.
Every step is persisted, so a run can be suspended, inspected and resumed from any process.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		var interrupted *cli.Interrupted
		if errors.As(err, &interrupted) {
			os.Exit(interrupted.ExitCode())
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	// Persistent flags (available to all commands)
	rootCmd.PersistentFlags().String("config", "", "Path to the configuration file (default ./"+defaultConfigFile+" if present)")
	rootCmd.PersistentFlags().String("log-level", "", "Log level: debug, info, warn or error")
	rootCmd.PersistentFlags().String("store", "", "Snapshot store: file, memory or redis")
	rootCmd.PersistentFlags().String("store-dir", "", "Directory of the file store")
	rootCmd.PersistentFlags().String("provider", "", "Reasoning provider: openai, anthropic or scripted")
}

// loadConfig reads the configuration and applies the flags the user set.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	if path == "" {
		if _, err := os.Stat(defaultConfigFile); err == nil {
			path = defaultConfigFile
		}
	}

	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}

	overrides := map[string]*string{
		"log-level": &cfg.Log.Level,
		"store":     &cfg.Store.Kind,
		"store-dir": &cfg.Store.Dir,
		"provider":  &cfg.Reasoning.Provider,
	}
	for name, target := range overrides {
		if cmd.Flags().Changed(name) {
			*target, _ = cmd.Flags().GetString(name)
		}
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// loadApp builds the engine for a command. Logs go to stderr.
func loadApp(cmd *cobra.Command) (*cli.App, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	return cli.NewApp(ctx, cfg, os.Stderr)
}
