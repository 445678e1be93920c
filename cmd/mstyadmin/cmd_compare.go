package main

import (
	"github.com/spf13/cobra"

	"github.com/pineapple-labs/mstyadmin/internal/compare"
	"github.com/pineapple-labs/mstyadmin/internal/scoring"
)

func newCompareCommand() *cobra.Command {
	var (
		models        []string
		category      string
		qualityWeight float64
		speedWeight   float64
	)

	cmd := &cobra.Command{
		Use:   "compare <prompt> --models <a,b,...>",
		Short: "Compare multiple local models on one prompt",
		Long: `Invoke two or more local models sequentially on the same prompt and rank
them by a weighted blend of quality score and generation speed.

Models that fail to respond are included in the ranking at the bottom, with
the failure reason. All invocations and scores are persisted to the metrics
store.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cat, err := scoring.ParseCategory(category)
			if err != nil {
				return err
			}

			c, err := buildComponents()
			if err != nil {
				return err
			}
			defer c.Close() //nolint:errcheck

			run, err := c.comparer.Compare(cmd.Context(), args[0], models, cat,
				compare.Weighting{Quality: qualityWeight, Speed: speedWeight})
			if err != nil {
				return err
			}
			return printJSON(run)
		},
	}

	cmd.Flags().StringSliceVarP(&models, "models", "m", nil, "Models to compare, at least two (required)")
	cmd.Flags().StringVarP(&category, "category", "c", "", "Category used for scoring (default general)")
	cmd.Flags().Float64Var(&qualityWeight, "quality-weight", 0.7, "Ranking weight for quality score")
	cmd.Flags().Float64Var(&speedWeight, "speed-weight", 0.3, "Ranking weight for tokens/sec")
	_ = cmd.MarkFlagRequired("models")

	return cmd
}
