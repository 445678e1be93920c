package main

import (
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/pineapple-labs/mstyadmin/internal/mcpserver"
)

var version = "dev"

// configPath is the persistent --config flag value shared by all subcommands.
var configPath string

func newRootCommand() *cobra.Command {
	// get_server_status reports the same stamped version as --version.
	mcpserver.Version = version

	cmd := &cobra.Command{
		Use:   "mstyadmin",
		Short: "mstyadmin - administration and model analytics for Msty Studio",
		Long: `mstyadmin administers a local Msty Studio Desktop installation and its
sidecar inference service.

It runs calibration suites against local models, records performance and
quality metrics, analyses trends, and detects when a model should hand work
off to a more capable one. The serve command exposes all of this as MCP
tools over stdio for assistant clients.`,
		Version:      version,
		SilenceUsage: true,
	}

	debugLogging := cmd.PersistentFlags().Bool("debug", false, "Enable debug logging")
	cmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to a YAML config file")
	cmd.PersistentPreRun = func(cmd *cobra.Command, args []string) {
		if *debugLogging {
			slog.SetLogLoggerLevel(slog.LevelDebug)
		}
	}

	// Add subcommands
	cmd.AddCommand(newServeCommand())
	cmd.AddCommand(newCalibrateCommand())
	cmd.AddCommand(newCompareCommand())
	cmd.AddCommand(newTrendsCommand())
	cmd.AddCommand(newTriggersCommand())
	cmd.AddCommand(newStatusCommand())

	return cmd
}

func execute() error {
	rootCmd := newRootCommand()
	return rootCmd.Execute()
}
