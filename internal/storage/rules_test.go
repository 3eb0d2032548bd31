package storage

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"btc-trend-watch/internal/alert"
)

func openTestStore(t *testing.T) *BadgerRuleStore {
	t.Helper()
	store, err := OpenRuleStore(t.TempDir())
	if err != nil {
		t.Fatalf("OpenRuleStore: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestRuleStoreLoadEmpty(t *testing.T) {
	store := openTestStore(t)

	rules, err := store.Load(context.Background())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(rules) != 0 {
		t.Fatalf("fresh store should be empty, got %d rules", len(rules))
	}
}

func TestRuleStoreRoundTrip(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	rules := []alert.Rule{
		{
			ID:        "a",
			Threshold: decimal.NewFromFloat(50000.5),
			Condition: alert.ConditionAbove,
			CreatedAt: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
		},
		{
			ID:        "b",
			Threshold: decimal.NewFromInt(40000),
			Condition: alert.ConditionBelow,
			CreatedAt: time.Date(2025, 6, 1, 12, 5, 0, 0, time.UTC),
		},
	}

	if err := store.Save(ctx, rules); err != nil {
		t.Fatalf("Save: %v", err)
	}

	loaded, err := store.Load(ctx)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(loaded) != 2 {
		t.Fatalf("expected 2 rules, got %d", len(loaded))
	}
	if loaded[0].ID != "a" || loaded[1].ID != "b" {
		t.Fatalf("insertion order lost: %v", loaded)
	}
	if !loaded[0].Threshold.Equal(rules[0].Threshold) {
		t.Fatalf("threshold round-trip: %s != %s", loaded[0].Threshold, rules[0].Threshold)
	}
	if loaded[1].Condition != alert.ConditionBelow {
		t.Fatalf("condition round-trip: %s", loaded[1].Condition)
	}
}

func TestRuleStoreSaveOverwrites(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	full := []alert.Rule{{ID: "a", Threshold: decimal.NewFromInt(1), Condition: alert.ConditionAbove}}
	if err := store.Save(ctx, full); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if err := store.Save(ctx, nil); err != nil {
		t.Fatalf("Save empty: %v", err)
	}

	loaded, err := store.Load(ctx)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(loaded) != 0 {
		t.Fatalf("save should overwrite, got %d rules", len(loaded))
	}
}

func TestOpenRuleStoreRequiresPath(t *testing.T) {
	if _, err := OpenRuleStore("  "); err == nil {
		t.Fatal("expected error for empty path")
	}
}
