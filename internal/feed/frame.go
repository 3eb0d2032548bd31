package feed

import (
	"encoding/json"

	"github.com/shopspring/decimal"
)

// tickFrame is the subset of a Binance aggTrade frame the pipeline
// consumes: the price field, a decimal string.
type tickFrame struct {
	Price string `json:"p"`
}

// parsePrice extracts the price from a raw frame. Any frame missing
// the field, or carrying a non-positive or unparseable value, is
// reported as not ok and dropped by the caller.
func parsePrice(data []byte) (decimal.Decimal, bool) {
	var frame tickFrame
	if err := json.Unmarshal(data, &frame); err != nil {
		return decimal.Decimal{}, false
	}
	if frame.Price == "" {
		return decimal.Decimal{}, false
	}
	price, err := decimal.NewFromString(frame.Price)
	if err != nil || price.Sign() <= 0 {
		return decimal.Decimal{}, false
	}
	return price, true
}
