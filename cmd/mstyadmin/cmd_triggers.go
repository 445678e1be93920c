package main

import (
	"errors"

	"github.com/spf13/cobra"
)

func newTriggersCommand() *cobra.Command {
	var (
		category string
		model    string
	)

	cmd := &cobra.Command{
		Use:   "triggers",
		Short: "Evaluate handoff triggers from calibration history",
		Long: `Evaluate calibration history for model/category pairs whose recent failure
rate warrants handing work off to a more capable model.

Without flags, every model/category pair with recorded calibrations is
swept. With --category and --model, only that pair is evaluated.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if (category == "") != (model == "") {
				return errors.New("--category and --model must be provided together")
			}

			c, err := buildComponents()
			if err != nil {
				return err
			}
			defer c.Close() //nolint:errcheck

			if category != "" {
				outcome, err := c.detector.Evaluate(category, model)
				if err != nil {
					return err
				}
				return printJSON(outcome)
			}
			outcomes, err := c.detector.Scan()
			if err != nil {
				return err
			}
			return printJSON(outcomes)
		},
	}

	cmd.Flags().StringVarP(&category, "category", "c", "", "Category to evaluate (requires --model)")
	cmd.Flags().StringVarP(&model, "model", "m", "", "Model to evaluate (requires --category)")

	return cmd
}
