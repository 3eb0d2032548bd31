package alert

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// MaxRules caps how many rules may be pending at once.
const MaxRules = 5

// Condition selects which side of the threshold triggers a rule.
type Condition string

const (
	ConditionAbove Condition = "above"
	ConditionBelow Condition = "below"
)

var (
	// ErrCapacity is returned when creating a rule beyond MaxRules.
	ErrCapacity = fmt.Errorf("at most %d alert rules may be active", MaxRules)
	// ErrInvalidThreshold is returned for non-positive thresholds.
	ErrInvalidThreshold = errors.New("threshold must be a positive price")
	// ErrInvalidCondition is returned for unknown conditions.
	ErrInvalidCondition = errors.New(`condition must be "above" or "below"`)
	// ErrNotFound is returned when deleting an unknown rule.
	ErrNotFound = errors.New("alert rule not found")
)

// Rule is a one-shot alert condition. Immutable after creation; it is
// removed the instant it fires and never re-armed.
type Rule struct {
	ID        string          `json:"id"`
	Threshold decimal.Decimal `json:"threshold"`
	Condition Condition       `json:"condition"`
	CreatedAt time.Time       `json:"createdAt"`
}

// ParseCondition normalises a user-supplied condition.
func ParseCondition(raw string) (Condition, error) {
	switch Condition(strings.ToLower(strings.TrimSpace(raw))) {
	case ConditionAbove:
		return ConditionAbove, nil
	case ConditionBelow:
		return ConditionBelow, nil
	default:
		return "", ErrInvalidCondition
	}
}

// NewRule validates inputs and mints a rule. Validation failures are
// reported to the caller; nothing is mutated on rejection.
func NewRule(threshold decimal.Decimal, condition Condition) (Rule, error) {
	if threshold.Sign() <= 0 {
		return Rule{}, ErrInvalidThreshold
	}
	if condition != ConditionAbove && condition != ConditionBelow {
		return Rule{}, ErrInvalidCondition
	}
	return Rule{
		ID:        uuid.NewString(),
		Threshold: threshold,
		Condition: condition,
		CreatedAt: time.Now().UTC(),
	}, nil
}

// matches reports whether the price satisfies the rule's condition.
func (r Rule) matches(price decimal.Decimal) bool {
	switch r.Condition {
	case ConditionAbove:
		return price.GreaterThan(r.Threshold)
	case ConditionBelow:
		return price.LessThan(r.Threshold)
	default:
		return false
	}
}
