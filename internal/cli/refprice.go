package cli

import (
	"github.com/spf13/cobra"
)

var refPriceCmd = &cobra.Command{
	Use:   "refprice",
	Short: "Compare the Chainlink on-chain reference price with the exchange close",
	RunE: func(cmd *cobra.Command, args []string) error {
		return getApp().RefPrice(cmd.Context())
	},
}
