package main

import (
	"github.com/spf13/cobra"

	"github.com/pineapple-labs/mstyadmin/internal/config"
	"github.com/pineapple-labs/mstyadmin/internal/msty"
)

// statusReport is the combined output of the status command.
type statusReport struct {
	Installation msty.Installation  `json:"installation"`
	Health       *msty.HealthReport `json:"health"`
	MetricsPath  string             `json:"metrics_path"`
	InferenceURL string             `json:"inference_url"`
}

func newStatusCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show installation status and health",
		Long: `Detect the local Msty Studio installation and run a health analysis of its
database, storage, and model cache. Read-only; nothing is modified.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			settings, err := config.Load(configPath)
			if err != nil {
				return err
			}
			report := statusReport{
				Installation: msty.DetectInstallation(),
				Health:       msty.CheckHealth(),
				MetricsPath:  settings.MetricsPath(),
				InferenceURL: settings.InferenceURL(),
			}
			return printJSON(report)
		},
	}
	return cmd
}
