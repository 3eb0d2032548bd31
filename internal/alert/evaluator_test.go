package alert

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func mustRule(t *testing.T, threshold float64, condition Condition) Rule {
	t.Helper()
	rule, err := NewRule(decimal.NewFromFloat(threshold), condition)
	if err != nil {
		t.Fatalf("NewRule: %v", err)
	}
	return rule
}

func TestNewRuleValidation(t *testing.T) {
	if _, err := NewRule(decimal.Zero, ConditionAbove); err != ErrInvalidThreshold {
		t.Fatalf("zero threshold: got %v", err)
	}
	if _, err := NewRule(decimal.NewFromInt(-10), ConditionBelow); err != ErrInvalidThreshold {
		t.Fatalf("negative threshold: got %v", err)
	}
	if _, err := NewRule(decimal.NewFromInt(10), Condition("between")); err != ErrInvalidCondition {
		t.Fatalf("bad condition: got %v", err)
	}
}

func TestParseCondition(t *testing.T) {
	if c, err := ParseCondition(" Above "); err != nil || c != ConditionAbove {
		t.Fatalf("ParseCondition above: %v %v", c, err)
	}
	if _, err := ParseCondition("sideways"); err != ErrInvalidCondition {
		t.Fatalf("expected ErrInvalidCondition, got %v", err)
	}
}

func TestEvaluateOneShot(t *testing.T) {
	pending := NewPending(nil)
	if err := pending.Add(mustRule(t, 50000, ConditionAbove)); err != nil {
		t.Fatalf("Add: %v", err)
	}

	now := time.Now()
	fired := 0
	for _, price := range []float64{49000, 49999, 50001, 50002} {
		firing, ok := pending.Evaluate(decimal.NewFromFloat(price), now)
		if ok {
			fired++
			if !firing.Price.Equal(decimal.NewFromFloat(50001)) {
				t.Fatalf("fired at %s, expected 50001", firing.Price)
			}
		}
	}

	if fired != 1 {
		t.Fatalf("rule fired %d times, expected exactly once", fired)
	}
	if pending.Len() != 0 {
		t.Fatalf("fired rule still pending")
	}
}

func TestEvaluateOnlyFirstQualifyingRuleFires(t *testing.T) {
	pending := NewPending(nil)
	first := mustRule(t, 100, ConditionAbove)
	second := mustRule(t, 200, ConditionAbove)
	for _, r := range []Rule{first, second} {
		if err := pending.Add(r); err != nil {
			t.Fatalf("Add: %v", err)
		}
	}

	// Both qualify; only the earliest-created one fires on this sample.
	firing, ok := pending.Evaluate(decimal.NewFromInt(300), time.Now())
	if !ok {
		t.Fatal("expected a firing")
	}
	if firing.Rule.ID != first.ID {
		t.Fatal("expected the earliest-created rule to fire")
	}
	if pending.Len() != 1 {
		t.Fatalf("expected one remaining rule, got %d", pending.Len())
	}

	// The survivor fires on the next sample.
	firing, ok = pending.Evaluate(decimal.NewFromInt(300), time.Now())
	if !ok || firing.Rule.ID != second.ID {
		t.Fatal("remaining qualifying rule should fire on the next sample")
	}
}

func TestEvaluateBelowCondition(t *testing.T) {
	pending := NewPending(nil)
	if err := pending.Add(mustRule(t, 40000, ConditionBelow)); err != nil {
		t.Fatalf("Add: %v", err)
	}

	if _, ok := pending.Evaluate(decimal.NewFromInt(40000), time.Now()); ok {
		t.Fatal("boundary price must not trigger a below rule")
	}
	if _, ok := pending.Evaluate(decimal.NewFromFloat(39999.99), time.Now()); !ok {
		t.Fatal("price under threshold should trigger")
	}
}

func TestCapacityRejectsSixthRule(t *testing.T) {
	pending := NewPending(nil)
	for i := 0; i < MaxRules; i++ {
		if err := pending.Add(mustRule(t, float64(1000+i), ConditionAbove)); err != nil {
			t.Fatalf("Add %d: %v", i, err)
		}
	}

	err := pending.Add(mustRule(t, 9000, ConditionAbove))
	if err != ErrCapacity {
		t.Fatalf("expected ErrCapacity, got %v", err)
	}
	if pending.Len() != MaxRules {
		t.Fatalf("rejected add mutated state, len=%d", pending.Len())
	}
}

func TestRemove(t *testing.T) {
	pending := NewPending(nil)
	rule := mustRule(t, 100, ConditionAbove)
	if err := pending.Add(rule); err != nil {
		t.Fatalf("Add: %v", err)
	}

	if err := pending.Remove("missing"); err != ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := pending.Remove(rule.ID); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if pending.Len() != 0 {
		t.Fatal("rule not removed")
	}
}
