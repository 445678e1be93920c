package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/pineapple-labs/mstyadmin/internal/calibrate"
	"github.com/pineapple-labs/mstyadmin/internal/scoring"
)

func newCalibrateCommand() *cobra.Command {
	var (
		model      string
		categories []string
		suitePath  string
		timeoutSec int
	)

	cmd := &cobra.Command{
		Use:   "calibrate --model <name>",
		Short: "Run a calibration suite against a local model",
		Long: `Run a calibration suite against a local model and record the results.

Each test case is invoked sequentially, scored with the heuristic quality
evaluator, and persisted to the metrics store. Invocation failures score
zero and are recorded; they do not abort the run.

Without --suite the builtin suite is used (two cases per category).`,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := buildComponents()
			if err != nil {
				return err
			}
			defer c.Close() //nolint:errcheck

			req := calibrate.Request{
				Model:   model,
				Timeout: time.Duration(timeoutSec) * time.Second,
			}
			for _, name := range categories {
				cat, err := scoring.ParseCategory(name)
				if err != nil {
					return err
				}
				req.Categories = append(req.Categories, cat)
			}
			if suitePath != "" {
				suite, err := calibrate.LoadSuite(suitePath)
				if err != nil {
					return err
				}
				req.Suite = suite
			}

			summary, err := c.runner.Run(cmd.Context(), req)
			if err != nil {
				return err
			}
			if err := printJSON(summary); err != nil {
				return err
			}
			if summary.Status == calibrate.StatusFailed {
				return &RunFailureError{Message: fmt.Sprintf("calibration run failed: %s", summary.Error)}
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&model, "model", "m", "", "Model to calibrate (required)")
	cmd.Flags().StringSliceVarP(&categories, "categories", "c", nil, "Restrict to these categories")
	cmd.Flags().StringVar(&suitePath, "suite", "", "Path to a YAML test suite")
	cmd.Flags().IntVar(&timeoutSec, "timeout", 0, "Per-invocation timeout in seconds (0 = configured default)")
	_ = cmd.MarkFlagRequired("model")

	return cmd
}
