package cli

import (
	"errors"

	"github.com/spf13/cobra"
)

var alertsCmd = &cobra.Command{
	Use:   "alerts",
	Short: "Manage persisted alert rules (service must be stopped)",
}

var alertsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List alert rules",
	RunE: func(cmd *cobra.Command, args []string) error {
		return getApp().AlertsList(cmd.Context())
	},
}

var (
	alertAddThreshold string
	alertAddCondition string
)

var alertsAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Add an alert rule",
	RunE: func(cmd *cobra.Command, args []string) error {
		if alertAddThreshold == "" {
			return errors.New("--threshold is required")
		}
		return getApp().AlertsAdd(cmd.Context(), alertAddThreshold, alertAddCondition)
	},
}

var alertsRmCmd = &cobra.Command{
	Use:   "rm <rule-id>",
	Short: "Remove an alert rule",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return getApp().AlertsRemove(cmd.Context(), args[0])
	},
}

func init() {
	alertsAddCmd.Flags().StringVar(&alertAddThreshold, "threshold", "", "Price threshold in USD")
	alertsAddCmd.Flags().StringVar(&alertAddCondition, "condition", "above", "Condition: above or below")

	alertsCmd.AddCommand(alertsListCmd)
	alertsCmd.AddCommand(alertsAddCmd)
	alertsCmd.AddCommand(alertsRmCmd)
}
