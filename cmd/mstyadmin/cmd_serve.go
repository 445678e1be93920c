package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/pineapple-labs/mstyadmin/internal/mcpserver"
)

func newServeCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the MCP admin server on stdio",
		Long: `Start the MCP admin server.

The server communicates over stdin/stdout using the Model Context Protocol,
so an assistant client can launch it as a subprocess. Logs go to stderr.

Exposed tools:
  run_calibration_test           Run the calibration suite against a model
  evaluate_response_quality      Score a response without calling a model
  compare_model_responses        Rank several models on one prompt
  get_model_performance_metrics  Throughput, latency, error rate, quality trend
  get_calibration_history        List persisted calibration results
  identify_handoff_triggers      Failure-rate escalation checks
  detect_msty_installation       Installation paths, version, process status
  read_msty_database             Read-only app database inspection
  analyse_msty_health            Installation health analysis
  get_server_status              Server configuration and store status`,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := buildComponents()
			if err != nil {
				return err
			}
			defer c.Close() //nolint:errcheck

			server := mcpserver.NewServer(mcpserver.Deps{
				Settings:  c.settings,
				Store:     c.store,
				Runner:    c.runner,
				Comparer:  c.comparer,
				Analyzer:  c.analyzer,
				Detector:  c.detector,
				Evaluator: c.evaluator,
				Logger:    c.logger,
			})

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			fmt.Fprintln(os.Stderr, "MCP admin server running on stdio")
			if err := server.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		},
	}
	return cmd
}
