package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/roach88/retrolearn/internal/adjust"
)

// CountAdjustments returns the number of committed adjustments for a unit.
// A unit with no ledger row has committed none.
func (s *Store) CountAdjustments(ctx context.Context, unitID string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT committed FROM adjustment_budgets WHERE unit_id = ?`, unitID).Scan(&n)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("count adjustments: %w", err)
	}
	return n, nil
}

// CommitAdjustments advances the unit's committed count from expected to
// expected+1 and appends records, atomically. It returns ErrBudgetExhausted
// when the stored count is no longer expected or has reached limit; nothing
// is written in that case.
func (s *Store) CommitAdjustments(ctx context.Context, unitID string, expected, limit int, records []adjust.Record) error {
	now := toUnixNano(s.now())
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO adjustment_budgets (unit_id, committed, updated_at)
			VALUES (?, 0, ?)
			ON CONFLICT(unit_id) DO NOTHING`, unitID, now)
		if err != nil {
			return fmt.Errorf("ensure budget row: %w", err)
		}

		res, err := tx.ExecContext(ctx, `
			UPDATE adjustment_budgets
			SET committed = committed + 1, updated_at = ?
			WHERE unit_id = ? AND committed = ? AND committed < ?`,
			now, unitID, expected, limit)
		if err != nil {
			return fmt.Errorf("advance budget: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("advance budget: %w", err)
		}
		if n == 0 {
			return ErrBudgetExhausted
		}

		var seq int64
		err = tx.QueryRowContext(ctx,
			`SELECT COALESCE(MAX(seq), 0) FROM adjustment_records WHERE unit_id = ?`, unitID).Scan(&seq)
		if err != nil {
			return fmt.Errorf("read record seq: %w", err)
		}

		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO adjustment_records (id, unit_id, learning_id, kind, step, reason, created_at, seq)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
		if err != nil {
			return fmt.Errorf("prepare record insert: %w", err)
		}
		defer stmt.Close()

		for _, r := range records {
			seq++
			_, err := stmt.ExecContext(ctx,
				r.ID, unitID, r.LearningID, string(r.Kind), r.Step, r.Reason, toUnixNano(r.CreatedAt), seq)
			if err != nil {
				return fmt.Errorf("insert record %s: %w", r.ID, err)
			}
		}
		return nil
	})
	if errors.Is(err, ErrBudgetExhausted) {
		return err
	}
	if err != nil {
		return fmt.Errorf("commit adjustments: %w", err)
	}
	return nil
}

// ListAdjustments returns the adjustment records of a unit in commit order.
func (s *Store) ListAdjustments(ctx context.Context, unitID string) ([]adjust.Record, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, unit_id, learning_id, kind, step, reason, created_at
		FROM adjustment_records
		WHERE unit_id = ?
		ORDER BY seq`, unitID)
	if err != nil {
		return nil, fmt.Errorf("list adjustments: %w", err)
	}
	defer rows.Close()

	var out []adjust.Record
	for rows.Next() {
		var (
			r         adjust.Record
			kind      string
			createdAt int64
		)
		if err := rows.Scan(&r.ID, &r.UnitID, &r.LearningID, &kind, &r.Step, &r.Reason, &createdAt); err != nil {
			return nil, fmt.Errorf("scan adjustment: %w", err)
		}
		r.Kind = adjust.Kind(kind)
		r.CreatedAt = fromUnixNano(createdAt)
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate adjustments: %w", err)
	}
	return out, nil
}

var _ adjust.Ledger = (*Store)(nil)
