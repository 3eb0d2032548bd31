package storage

import (
	"time"

	"github.com/shopspring/decimal"
)

// FiringRecord captures an emitted alert for auditing.
type FiringRecord struct {
	ID        int64
	RuleID    string
	Threshold decimal.Decimal
	Condition string
	Price     decimal.Decimal
	FiredAt   time.Time
	CreatedAt time.Time
}

// OutlookRecord captures a generated outlook note.
type OutlookRecord struct {
	ID          int64
	Text        string
	GeneratedAt time.Time
	CreatedAt   time.Time
}
