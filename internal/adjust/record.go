package adjust

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Kind is the type of change an adjustment record describes.
type Kind string

const (
	KindAdd    Kind = "add"
	KindModify Kind = "modify"
)

func (k Kind) Valid() bool {
	return k == KindAdd || k == KindModify
}

// ParseKind parses "add" or "modify".
func ParseKind(s string) (Kind, error) {
	k := Kind(s)
	if !k.Valid() {
		return "", fmt.Errorf("invalid adjustment kind %q", s)
	}
	return k, nil
}

// Record is the audit entry for one change made by a committed adjustment.
// Records are append-only.
type Record struct {
	ID         string    `json:"id"`
	UnitID     string    `json:"unit_id"`
	LearningID string    `json:"learning_id"`
	Kind       Kind      `json:"kind"`
	Step       string    `json:"step"`
	Reason     string    `json:"reason"`
	CreatedAt  time.Time `json:"created_at"`
}

// ErrBudgetExhausted is returned by Ledger.CommitAdjustments when the unit's
// committed count no longer equals the expected value or has reached the
// limit.
var ErrBudgetExhausted = errors.New("adjustment budget exhausted")

// Ledger tracks committed adjustments per unit of work.
type Ledger interface {
	// CountAdjustments returns how many adjustments were committed for unitID.
	CountAdjustments(ctx context.Context, unitID string) (int, error)

	// CommitAdjustments atomically appends records and advances the unit's
	// count from expected to expected+1. It fails with ErrBudgetExhausted
	// when the stored count differs from expected or is already at limit.
	CommitAdjustments(ctx context.Context, unitID string, expected, limit int, records []Record) error
}
