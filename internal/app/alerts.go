package app

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/shopspring/decimal"

	"btc-trend-watch/internal/alert"
)

// AlertsList prints the persisted alert rules. The rule store takes an
// exclusive lock, so this only works while the service is stopped.
func (a *App) AlertsList(ctx context.Context) error {
	store, err := a.openRuleStore()
	if err != nil {
		return err
	}
	defer store.Close()

	rules, err := store.Load(ctx)
	if err != nil {
		return err
	}
	if len(rules) == 0 {
		fmt.Fprintln(os.Stdout, "no alert rules configured")
		return nil
	}

	writer := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "ID\tCondition\tThreshold\tCreated (UTC)")
	for _, rule := range rules {
		fmt.Fprintf(
			writer,
			"%s\t%s\t%s\t%s\n",
			rule.ID,
			rule.Condition,
			rule.Threshold.StringFixed(2),
			rule.CreatedAt.UTC().Format(time.RFC3339),
		)
	}
	return writer.Flush()
}

// AlertsAdd persists a new alert rule, enforcing the pending capacity.
func (a *App) AlertsAdd(ctx context.Context, rawThreshold, rawCondition string) error {
	threshold, err := decimal.NewFromString(rawThreshold)
	if err != nil {
		return fmt.Errorf("invalid threshold %q: %w", rawThreshold, err)
	}
	condition, err := alert.ParseCondition(rawCondition)
	if err != nil {
		return err
	}
	rule, err := alert.NewRule(threshold, condition)
	if err != nil {
		return err
	}

	store, err := a.openRuleStore()
	if err != nil {
		return err
	}
	defer store.Close()

	rules, err := store.Load(ctx)
	if err != nil {
		return err
	}

	pending := alert.NewPending(rules)
	if err := pending.Add(rule); err != nil {
		return err
	}
	if err := store.Save(ctx, pending.Rules()); err != nil {
		return err
	}

	fmt.Fprintf(os.Stdout, "added rule %s (%s $%s)\n", rule.ID, rule.Condition, rule.Threshold.StringFixed(2))
	return nil
}

// AlertsRemove deletes a persisted alert rule by ID.
func (a *App) AlertsRemove(ctx context.Context, id string) error {
	store, err := a.openRuleStore()
	if err != nil {
		return err
	}
	defer store.Close()

	rules, err := store.Load(ctx)
	if err != nil {
		return err
	}

	pending := alert.NewPending(rules)
	if err := pending.Remove(id); err != nil {
		return err
	}
	if err := store.Save(ctx, pending.Rules()); err != nil {
		return err
	}

	fmt.Fprintf(os.Stdout, "removed rule %s\n", id)
	return nil
}
