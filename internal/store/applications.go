package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/roach88/retrolearn/internal/learning"
)

// RecordApplication appends app and writes back the statistics update
// computes from the current row, in one transaction. The learning row is read inside the
// transaction, so concurrent recorders for the same learning serialize on the
// write lock rather than overwrite each other. It returns the updated
// learning.
func (s *Store) RecordApplication(ctx context.Context, app learning.Application, update func(current learning.Learning) learning.Stats) (learning.Learning, error) {
	if !app.Outcome.Valid() {
		return learning.Learning{}, fmt.Errorf("record application: invalid outcome %q", app.Outcome)
	}

	var updated learning.Learning
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		row := tx.QueryRowContext(ctx, `SELECT `+learningColumns+` FROM learnings WHERE id = ?`, app.LearningID)
		current, err := scanLearning(row)
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("learning %s: %w", app.LearningID, ErrNotFound)
		}
		if err != nil {
			return fmt.Errorf("read learning: %w", err)
		}

		_, err = tx.ExecContext(ctx, `
			INSERT INTO learning_applications (id, learning_id, unit_id, outcome, context, applied_at)
			VALUES (?, ?, ?, ?, ?, ?)`,
			app.ID, app.LearningID, app.UnitID, string(app.Outcome), app.Context, toUnixNano(app.AppliedAt),
		)
		if err != nil {
			return fmt.Errorf("insert application: %w", err)
		}

		stats := update(current)
		_, err = tx.ExecContext(ctx, `
			UPDATE learnings
			SET application_count = ?, successes = ?, success_rate = ?, confidence_score = ?
			WHERE id = ?`,
			stats.ApplicationCount, stats.Successes, stats.SuccessRate, stats.ConfidenceScore, app.LearningID,
		)
		if err != nil {
			return fmt.Errorf("update stats: %w", err)
		}

		updated = current
		updated.ApplicationCount = stats.ApplicationCount
		updated.Successes = stats.Successes
		updated.SuccessRate = stats.SuccessRate
		updated.ConfidenceScore = stats.ConfidenceScore
		return nil
	})
	if err != nil {
		return learning.Learning{}, fmt.Errorf("record application: %w", err)
	}
	return updated, nil
}

// ListApplications returns the applications of a learning, oldest first.
func (s *Store) ListApplications(ctx context.Context, learningID string) ([]learning.Application, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, learning_id, unit_id, outcome, context, applied_at
		FROM learning_applications
		WHERE learning_id = ?
		ORDER BY applied_at, id`, learningID)
	if err != nil {
		return nil, fmt.Errorf("list applications: %w", err)
	}
	defer rows.Close()

	var out []learning.Application
	for rows.Next() {
		var (
			a         learning.Application
			outcome   string
			appliedAt int64
		)
		if err := rows.Scan(&a.ID, &a.LearningID, &a.UnitID, &outcome, &a.Context, &appliedAt); err != nil {
			return nil, fmt.Errorf("scan application: %w", err)
		}
		a.Outcome = learning.Outcome(outcome)
		a.AppliedAt = fromUnixNano(appliedAt)
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate applications: %w", err)
	}
	return out, nil
}

// PruneApplications deletes applications recorded before the cutoff and
// returns how many were removed. Learning statistics are left untouched.
func (s *Store) PruneApplications(ctx context.Context, before time.Time) (int, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM learning_applications WHERE applied_at < ?`, toUnixNano(before))
	if err != nil {
		return 0, fmt.Errorf("prune applications: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("prune applications: %w", err)
	}
	return int(n), nil
}
