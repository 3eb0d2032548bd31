package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/shopspring/decimal"

	"btc-trend-watch/internal/alert"
)

// Simulate runs a synthetic price sequence through the alert path
// without touching the live series or the rule store. It exercises the
// same one-shot evaluation and, when configured, the real notifier.
func (a *App) Simulate(ctx context.Context, opts SimulateOptions) error {
	if len(opts.Prices) == 0 {
		return errors.New("at least one --price is required")
	}

	threshold, err := decimal.NewFromString(opts.Threshold)
	if err != nil {
		return fmt.Errorf("invalid --threshold value: %w", err)
	}
	condition, err := alert.ParseCondition(opts.Condition)
	if err != nil {
		return err
	}
	rule, err := alert.NewRule(threshold, condition)
	if err != nil {
		return err
	}

	pending := alert.NewPending([]alert.Rule{rule})
	notifier := a.newNotifier()

	at := time.Now().UTC()
	for i, raw := range opts.Prices {
		price, err := decimal.NewFromString(raw)
		if err != nil {
			return fmt.Errorf("invalid price %q: %w", raw, err)
		}

		firing, fired := pending.Evaluate(price, at.Add(time.Duration(i)*time.Second))
		if !fired {
			fmt.Fprintf(os.Stdout, "%s: no firing\n", price.StringFixed(2))
			continue
		}

		fmt.Fprintf(os.Stdout, "%s: FIRED (%s)\n", price.StringFixed(2), alert.RenderFiring(firing))
		if notifier != nil {
			if err := notifier.Notify(ctx, firing); err != nil {
				return fmt.Errorf("dispatch simulated notification: %w", err)
			}
			a.Logger.Info().Msg("simulated notification dispatched")
		}
	}

	if pending.Len() == 1 {
		fmt.Fprintln(os.Stdout, "rule never fired")
	}
	return nil
}
