package main

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/pineapple-labs/mstyadmin/internal/metrics"
)

func newTrendsCommand() *cobra.Command {
	var (
		model string
		days  int
	)

	cmd := &cobra.Command{
		Use:   "trends --model <name>",
		Short: "Report performance trends for a model",
		Long: `Report throughput, latency, error rate, and quality trend for a model over
a trailing window of recorded invocations.

If fewer than the configured minimum samples fall in the window, the report
says so instead of producing statistics from too little data.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := buildComponents()
			if err != nil {
				return err
			}
			defer c.Close() //nolint:errcheck

			end := time.Now().UTC()
			window := metrics.Window{
				Start: end.AddDate(0, 0, -days),
				End:   end,
			}
			report, err := c.analyzer.Trend(model, window)
			if err != nil {
				return err
			}
			return printJSON(report)
		},
	}

	cmd.Flags().StringVarP(&model, "model", "m", "", "Model to analyse (required)")
	cmd.Flags().IntVar(&days, "days", 30, "Window size in days, ending now")
	_ = cmd.MarkFlagRequired("model")

	return cmd
}
