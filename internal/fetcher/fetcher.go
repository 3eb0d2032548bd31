package fetcher

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"btc-trend-watch/internal/series"
)

// HistoryFetcher retrieves the bootstrap price history that seeds the
// series before live ingestion starts.
type HistoryFetcher interface {
	FetchHistory(ctx context.Context) ([]series.PriceSample, error)
}

// ReferencePriceFetcher retrieves an on-chain reference price for
// cross-checking the feed.
type ReferencePriceFetcher interface {
	FetchReference(ctx context.Context) (decimal.Decimal, time.Time, error)
}
