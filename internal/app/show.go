package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"btc-trend-watch/internal/storage"
)

// Show prints recent alert firings or outlook notes from the audit store.
func (a *App) Show(ctx context.Context, opts ShowOptions) error {
	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	if store == nil {
		return errors.New("database not configured; cannot show history")
	}
	if closeStore != nil {
		defer closeStore()
	}

	if opts.Outlooks {
		return showOutlooks(ctx, store, opts.Limit)
	}
	return showFirings(ctx, store, opts.Limit)
}

func showFirings(ctx context.Context, store storage.FiringStore, limit int) error {
	firings, err := store.ListRecentFirings(ctx, limit)
	if err != nil {
		return err
	}
	if len(firings) == 0 {
		fmt.Fprintln(os.Stdout, "no alert firings found")
		return nil
	}

	writer := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "Fired (UTC)\tCondition\tThreshold\tPrice\tRule")

	for _, firing := range firings {
		fmt.Fprintf(
			writer,
			"%s\t%s\t%s\t%s\t%s\n",
			firing.FiredAt.UTC().Format(time.RFC3339),
			firing.Condition,
			firing.Threshold.StringFixed(2),
			firing.Price.StringFixed(2),
			firing.RuleID,
		)
	}

	return writer.Flush()
}

func showOutlooks(ctx context.Context, store storage.OutlookStore, limit int) error {
	outlooks, err := store.ListRecentOutlooks(ctx, limit)
	if err != nil {
		return err
	}
	if len(outlooks) == 0 {
		fmt.Fprintln(os.Stdout, "no outlook notes found")
		return nil
	}

	writer := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "Generated (UTC)\tOutlook")

	for _, note := range outlooks {
		fmt.Fprintf(
			writer,
			"%s\t%s\n",
			note.GeneratedAt.UTC().Format(time.RFC3339),
			sanitizeInline(note.Text),
		)
	}

	return writer.Flush()
}

func sanitizeInline(v string) string {
	cleaned := strings.ReplaceAll(v, "\n", " ")
	cleaned = strings.ReplaceAll(cleaned, "\r", " ")
	return cleaned
}
