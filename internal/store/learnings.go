package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/roach88/retrolearn/internal/learning"
)

// DefaultCandidateLimit caps a candidate fetch when the filter sets no limit.
const DefaultCandidateLimit = 50

const insertLearningSQL = `
	INSERT INTO learnings (` + learningColumns + `)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

func learningArgs(l learning.Learning) ([]any, error) {
	tags, err := marshalTags(l.Tags)
	if err != nil {
		return nil, err
	}
	var replacedBy any
	if l.ReplacedBy != "" {
		replacedBy = l.ReplacedBy
	}
	return []any{
		l.ID, l.Description, int(l.Category), tags, int(l.ScaleLevel), l.ProjectType, l.Phase,
		l.BaseRelevance, l.ApplicationCount, l.Successes, l.SuccessRate, l.ConfidenceScore,
		l.DecayFactor, toUnixNano(l.IndexedAt), boolToInt(l.Active), replacedBy,
	}, nil
}

// InsertLearning writes a new learning. It fails with ErrExists when the id
// is already taken.
func (s *Store) InsertLearning(ctx context.Context, l learning.Learning) error {
	if err := l.Validate(); err != nil {
		return fmt.Errorf("insert learning: %w", err)
	}
	args, err := learningArgs(l)
	if err != nil {
		return fmt.Errorf("insert learning: %w", err)
	}

	_, err = s.db.ExecContext(ctx, insertLearningSQL, args...)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("insert learning %s: %w", l.ID, ErrExists)
		}
		return fmt.Errorf("insert learning: %w", err)
	}
	return nil
}

// ImportLearnings inserts learnings in one transaction, skipping ids that
// already exist. It returns how many rows were inserted.
func (s *Store) ImportLearnings(ctx context.Context, ls []learning.Learning) (int, error) {
	for _, l := range ls {
		if err := l.Validate(); err != nil {
			return 0, fmt.Errorf("import learnings: %w", err)
		}
	}

	inserted := 0
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, insertLearningSQL+` ON CONFLICT(id) DO NOTHING`)
		if err != nil {
			return fmt.Errorf("prepare insert: %w", err)
		}
		defer stmt.Close()

		for _, l := range ls {
			args, err := learningArgs(l)
			if err != nil {
				return err
			}
			res, err := stmt.ExecContext(ctx, args...)
			if err != nil {
				return fmt.Errorf("insert learning %s: %w", l.ID, err)
			}
			n, _ := res.RowsAffected()
			inserted += int(n)
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("import learnings: %w", err)
	}
	return inserted, nil
}

// GetLearning returns the learning with the given id or ErrNotFound.
func (s *Store) GetLearning(ctx context.Context, id string) (learning.Learning, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+learningColumns+` FROM learnings WHERE id = ?`, id)
	l, err := scanLearning(row)
	if errors.Is(err, sql.ErrNoRows) {
		return learning.Learning{}, fmt.Errorf("get learning %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return learning.Learning{}, fmt.Errorf("get learning: %w", err)
	}
	return l, nil
}

// ListOptions filters ListLearnings.
type ListOptions struct {
	IncludeInactive bool
	Category        learning.Category // zero means any
	Limit           int               // zero means no limit
}

// ListLearnings returns learnings ordered by confidence, newest first on ties.
func (s *Store) ListLearnings(ctx context.Context, opts ListOptions) ([]learning.Learning, error) {
	var (
		where []string
		args  []any
	)
	if !opts.IncludeInactive {
		where = append(where, "active = 1")
	}
	if opts.Category != 0 {
		where = append(where, "category = ?")
		args = append(args, int(opts.Category))
	}

	query := `SELECT ` + learningColumns + ` FROM learnings`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY confidence_score DESC, indexed_at DESC, id`
	if opts.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, opts.Limit)
	}

	ls, err := s.queryLearnings(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list learnings: %w", err)
	}
	return ls, nil
}

// ListCandidates returns active, non-superseded learnings in the filter's
// categories, best confidence first, capped at the filter limit.
func (s *Store) ListCandidates(ctx context.Context, f learning.Filter) ([]learning.Learning, error) {
	limit := f.Limit
	if limit <= 0 {
		limit = DefaultCandidateLimit
	}

	query := `SELECT ` + learningColumns + ` FROM learnings
		WHERE active = 1 AND replaced_by IS NULL`
	var args []any
	if len(f.Categories) > 0 {
		query += ` AND category IN (` + placeholders(len(f.Categories)) + `)`
		for _, c := range f.Categories {
			args = append(args, int(c))
		}
	}
	query += ` ORDER BY confidence_score DESC, indexed_at DESC, id LIMIT ?`
	args = append(args, limit)

	ls, err := s.queryLearnings(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list candidates: %w", err)
	}
	return ls, nil
}

// ActiveLearnings returns every active learning, superseded or not.
func (s *Store) ActiveLearnings(ctx context.Context) ([]learning.Learning, error) {
	ls, err := s.queryLearnings(ctx,
		`SELECT `+learningColumns+` FROM learnings WHERE active = 1 ORDER BY indexed_at, id`)
	if err != nil {
		return nil, fmt.Errorf("list active learnings: %w", err)
	}
	return ls, nil
}

func (s *Store) queryLearnings(ctx context.Context, query string, args ...any) ([]learning.Learning, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query learnings: %w", err)
	}
	defer rows.Close()

	var out []learning.Learning
	for rows.Next() {
		l, err := scanLearning(rows)
		if err != nil {
			return nil, fmt.Errorf("scan learning: %w", err)
		}
		out = append(out, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate learnings: %w", err)
	}
	return out, nil
}

// UpdateDecayFactors writes recomputed decay factors for active learnings.
// It returns how many rows changed value.
func (s *Store) UpdateDecayFactors(ctx context.Context, factors map[string]float64) (int, error) {
	if len(factors) == 0 {
		return 0, nil
	}
	changed := 0
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx,
			`UPDATE learnings SET decay_factor = ? WHERE id = ? AND active = 1 AND decay_factor != ?`)
		if err != nil {
			return fmt.Errorf("prepare update: %w", err)
		}
		defer stmt.Close()

		for _, id := range sortedKeys(factors) {
			f := factors[id]
			res, err := stmt.ExecContext(ctx, f, id, f)
			if err != nil {
				return fmt.Errorf("update decay %s: %w", id, err)
			}
			n, _ := res.RowsAffected()
			changed += int(n)
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("update decay factors: %w", err)
	}
	return changed, nil
}

// DeactivationGuard holds the thresholds a learning must still fail at write
// time to be deactivated.
type DeactivationGuard struct {
	MaxConfidence   float64
	MaxSuccessRate  float64
	MinApplications int
}

// Deactivate marks the given learnings inactive. The guard is re-checked in
// the UPDATE so a learning whose statistics improved after it was read stays
// active. It returns the ids actually deactivated.
func (s *Store) Deactivate(ctx context.Context, ids []string, g DeactivationGuard) ([]string, error) {
	var done []string
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `
			UPDATE learnings SET active = 0
			WHERE id = ? AND active = 1
			  AND confidence_score < ? AND success_rate < ? AND application_count >= ?`)
		if err != nil {
			return fmt.Errorf("prepare deactivate: %w", err)
		}
		defer stmt.Close()

		for _, id := range ids {
			res, err := stmt.ExecContext(ctx, id, g.MaxConfidence, g.MaxSuccessRate, g.MinApplications)
			if err != nil {
				return fmt.Errorf("deactivate %s: %w", id, err)
			}
			if n, _ := res.RowsAffected(); n > 0 {
				done = append(done, id)
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("deactivate learnings: %w", err)
	}
	return done, nil
}

// Supersede links each old learning to its replacement. A link is written
// only when both learnings are active and unsuperseded, share a category, and
// the replacement is newer with a confidence lead of at least margin. It
// returns the links actually written.
func (s *Store) Supersede(ctx context.Context, links []learning.Supersession, margin float64) ([]learning.Supersession, error) {
	var done []learning.Supersession
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `
			UPDATE learnings SET replaced_by = ?
			WHERE id = ? AND active = 1 AND replaced_by IS NULL
			  AND EXISTS (
				SELECT 1 FROM learnings n
				WHERE n.id = ? AND n.active = 1 AND n.replaced_by IS NULL
				  AND n.category = learnings.category
				  AND n.indexed_at > learnings.indexed_at
				  AND n.confidence_score >= learnings.confidence_score + ?
			  )`)
		if err != nil {
			return fmt.Errorf("prepare supersede: %w", err)
		}
		defer stmt.Close()

		for _, link := range links {
			// Tolerate float rounding on the margin comparison.
			res, err := stmt.ExecContext(ctx, link.NewID, link.OldID, link.NewID, margin-1e-9)
			if err != nil {
				return fmt.Errorf("supersede %s: %w", link.OldID, err)
			}
			if n, _ := res.RowsAffected(); n > 0 {
				done = append(done, link)
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("supersede learnings: %w", err)
	}
	return done, nil
}
