package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/shopspring/decimal"

	"btc-trend-watch/internal/fetcher"
)

// RefPrice compares the on-chain Chainlink reference price against the
// latest exchange close and prints the deviation.
func (a *App) RefPrice(ctx context.Context) error {
	chainlink := fetcher.NewChainlink(fetcher.ChainlinkOptions{
		RPCURL:            a.Config.Chainlink.RPCURL,
		AggregatorAddress: a.Config.Chainlink.AggregatorAddress,
		Timeout:           a.Config.Chainlink.RequestTimeout,
	}, a.Logger)

	reference, updatedAt, err := chainlink.FetchReference(ctx)
	if err != nil {
		return fmt.Errorf("fetch reference price: %w", err)
	}

	samples, err := a.newHistoryFetcher().FetchHistory(ctx)
	if err != nil {
		return fmt.Errorf("fetch exchange history: %w", err)
	}
	if len(samples) == 0 {
		return errors.New("exchange history is empty")
	}
	latest := samples[len(samples)-1]

	deviation := decimal.Zero
	if !reference.IsZero() {
		deviation = latest.Price.Sub(reference).Div(reference).Mul(decimal.NewFromInt(100))
	}

	fmt.Fprintf(os.Stdout, "chainlink reference: $%s (updated %s)\n", reference.StringFixed(2), updatedAt.UTC().Format(time.RFC3339))
	fmt.Fprintf(os.Stdout, "exchange close:      $%s (at %s)\n", latest.Price.StringFixed(2), latest.Time.UTC().Format(time.RFC3339))
	fmt.Fprintf(os.Stdout, "deviation:           %s%%\n", deviation.StringFixed(4))
	return nil
}
