package cli

import (
	"github.com/spf13/cobra"

	"btc-trend-watch/internal/app"
)

var (
	showLimit    int
	showOutlooks bool
)

var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Show recent alert firings or outlook notes",
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := app.ShowOptions{
			Limit:    showLimit,
			Outlooks: showOutlooks,
		}
		return getApp().Show(cmd.Context(), opts)
	},
}

func init() {
	showCmd.Flags().IntVar(&showLimit, "limit", 20, "Maximum rows to display")
	showCmd.Flags().BoolVar(&showOutlooks, "outlooks", false, "Show outlook notes instead of alert firings")
}
