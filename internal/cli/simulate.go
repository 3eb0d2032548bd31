package cli

import (
	"github.com/spf13/cobra"

	"btc-trend-watch/internal/app"
)

var (
	simulateThreshold string
	simulateCondition string
	simulatePrices    []string
)

var simulateCmd = &cobra.Command{
	Use:   "simulate",
	Short: "Run a synthetic price sequence through the alert path",
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := app.SimulateOptions{
			Threshold: simulateThreshold,
			Condition: simulateCondition,
			Prices:    simulatePrices,
		}
		return getApp().Simulate(cmd.Context(), opts)
	},
}

func init() {
	simulateCmd.Flags().StringVar(&simulateThreshold, "threshold", "", "Price threshold in USD")
	simulateCmd.Flags().StringVar(&simulateCondition, "condition", "above", "Condition: above or below")
	simulateCmd.Flags().StringSliceVar(&simulatePrices, "price", nil, "Price to feed through the evaluator (repeatable)")
	_ = simulateCmd.MarkFlagRequired("threshold")
	_ = simulateCmd.MarkFlagRequired("price")
}
