package alert

import (
	"time"

	"github.com/shopspring/decimal"
)

// Firing is the event emitted when a rule triggers.
type Firing struct {
	Rule  Rule
	Price decimal.Decimal
	At    time.Time
}

// Pending is the ordered set of live alert rules. It is not
// synchronized; the owning session mutates it from a single control
// flow.
type Pending struct {
	rules []Rule
}

// NewPending seeds the set with previously persisted rules, truncating
// anything beyond capacity.
func NewPending(rules []Rule) *Pending {
	if len(rules) > MaxRules {
		rules = rules[:MaxRules]
	}
	out := make([]Rule, len(rules))
	copy(out, rules)
	return &Pending{rules: out}
}

// Add appends a validated rule, enforcing the capacity cap.
func (p *Pending) Add(rule Rule) error {
	if len(p.rules) >= MaxRules {
		return ErrCapacity
	}
	p.rules = append(p.rules, rule)
	return nil
}

// Remove deletes a rule by id.
func (p *Pending) Remove(id string) error {
	for i, r := range p.rules {
		if r.ID == id {
			p.rules = append(p.rules[:i], p.rules[i+1:]...)
			return nil
		}
	}
	return ErrNotFound
}

// Rules returns a copy of the pending rules in insertion order.
func (p *Pending) Rules() []Rule {
	out := make([]Rule, len(p.rules))
	copy(out, p.rules)
	return out
}

// Len reports the number of pending rules.
func (p *Pending) Len() int {
	return len(p.rules)
}

// Evaluate tests one newly arrived price against the pending set. The
// first qualifying rule in insertion order fires and is removed
// atomically; remaining qualifying rules wait for subsequent samples.
// Firing at most one rule per sample is intentional, to avoid
// notification storms when several thresholds are crossed at once.
func (p *Pending) Evaluate(price decimal.Decimal, at time.Time) (Firing, bool) {
	for i, r := range p.rules {
		if r.matches(price) {
			p.rules = append(p.rules[:i], p.rules[i+1:]...)
			return Firing{Rule: r, Price: price, At: at}, true
		}
	}
	return Firing{}, false
}
