package series

import (
	"time"

	"github.com/shopspring/decimal"
)

// Trend is the derived three-state signal over the series.
type Trend string

const (
	TrendUp     Trend = "up"
	TrendDown   Trend = "down"
	TrendStable Trend = "stable"
)

const (
	// DefaultTrendLookback is how far behind the latest sample the
	// reference sample is taken.
	DefaultTrendLookback = 15 * time.Minute
	// DefaultDeadbandPct is the neutral zone around the reference
	// price, in percent, that suppresses flapping on noise.
	DefaultDeadbandPct = 0.05
)

// Classifier derives a Trend from a series snapshot. The zero value is
// not usable; construct with NewClassifier.
type Classifier struct {
	lookback time.Duration
	upper    decimal.Decimal
	lower    decimal.Decimal
}

// NewClassifier builds a Classifier with the given lookback and
// deadband (percent). Non-positive arguments fall back to defaults.
func NewClassifier(lookback time.Duration, deadbandPct float64) *Classifier {
	if lookback <= 0 {
		lookback = DefaultTrendLookback
	}
	if deadbandPct <= 0 {
		deadbandPct = DefaultDeadbandPct
	}
	band := decimal.NewFromFloat(deadbandPct).Div(decimal.NewFromInt(100))
	one := decimal.NewFromInt(1)
	return &Classifier{
		lookback: lookback,
		upper:    one.Add(band),
		lower:    one.Sub(band),
	}
}

// Classify is pure and deterministic over the given snapshot. The
// reference is the most recent sample at least the lookback older than
// the latest one; without such a sample, or with fewer than two
// samples, the trend is stable.
func (c *Classifier) Classify(samples []PriceSample) Trend {
	if len(samples) < 2 {
		return TrendStable
	}

	latest := samples[len(samples)-1]
	referenceTime := latest.Time.Add(-c.lookback)

	for i := len(samples) - 1; i >= 0; i-- {
		if samples[i].Time.After(referenceTime) {
			continue
		}
		ref := samples[i]
		switch {
		case latest.Price.GreaterThan(ref.Price.Mul(c.upper)):
			return TrendUp
		case latest.Price.LessThan(ref.Price.Mul(c.lower)):
			return TrendDown
		default:
			return TrendStable
		}
	}

	return TrendStable
}
