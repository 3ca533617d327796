package maintenance

import (
	"cmp"
	"slices"
	"time"

	"github.com/roach88/retrolearn/internal/config"
	"github.com/roach88/retrolearn/internal/learning"
)

// Policy holds the maintenance thresholds.
type Policy struct {
	// A learning is deactivated when its confidence and success rate are
	// both below these values and it has at least MinApplications.
	DeactivateConfidence  float64
	DeactivateSuccessRate float64
	MinApplications       int

	// SupersedeMargin is how much higher a newer learning's confidence must
	// be to replace an older one in the same category.
	SupersedeMargin float64

	// Retention is how long applications are kept. Zero keeps them forever.
	Retention time.Duration
}

// DefaultPolicy returns the standard thresholds.
func DefaultPolicy() Policy {
	return Policy{
		DeactivateConfidence:  0.2,
		DeactivateSuccessRate: 0.3,
		MinApplications:       5,
		SupersedeMargin:       0.2,
		Retention:             365 * 24 * time.Hour,
	}
}

// PolicyFromConfig builds a Policy from maintenance configuration.
func PolicyFromConfig(cfg config.MaintenanceConfig) Policy {
	return Policy{
		DeactivateConfidence:  cfg.DeactivateConfidence,
		DeactivateSuccessRate: cfg.DeactivateSuccessRate,
		MinApplications:       cfg.MinApplications,
		SupersedeMargin:       cfg.SupersedeMargin,
		Retention:             cfg.Retention,
	}
}

// ShouldDeactivate reports whether l has enough evidence against it to be
// deactivated. A single failure is never enough.
func (p Policy) ShouldDeactivate(l learning.Learning) bool {
	return l.Active &&
		l.ApplicationCount >= p.MinApplications &&
		l.ConfidenceScore < p.DeactivateConfidence &&
		l.SuccessRate < p.DeactivateSuccessRate
}

// PlanSupersessions pairs older learnings with the newer learning that
// should replace them.
//
// Only active, unsuperseded learnings take part. A replacement must share
// the category, be indexed later, and lead in confidence by at least the
// margin. Among qualifying replacements the most confident wins, then the
// newest, then the smallest id. A learning chosen to be superseded is never
// itself picked as a replacement, so no chains are produced.
func (p Policy) PlanSupersessions(ls []learning.Learning) []learning.Supersession {
	pool := make([]learning.Learning, 0, len(ls))
	for _, l := range ls {
		if l.Active && !l.Superseded() {
			pool = append(pool, l)
		}
	}

	// Newest first: everything newer than l is decided before l.
	slices.SortFunc(pool, func(a, b learning.Learning) int {
		if c := b.IndexedAt.Compare(a.IndexedAt); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})

	replaced := make(map[string]bool)
	var plan []learning.Supersession
	for i, old := range pool {
		var best *learning.Learning
		for j := range i {
			cand := &pool[j]
			if replaced[cand.ID] ||
				cand.Category != old.Category ||
				!cand.IndexedAt.After(old.IndexedAt) ||
				cand.ConfidenceScore < old.ConfidenceScore+p.SupersedeMargin-1e-9 {
				continue
			}
			if best == nil || betterReplacement(*cand, *best) {
				best = cand
			}
		}
		if best != nil {
			replaced[old.ID] = true
			plan = append(plan, learning.Supersession{OldID: old.ID, NewID: best.ID})
		}
	}

	slices.SortFunc(plan, func(a, b learning.Supersession) int {
		return cmp.Compare(a.OldID, b.OldID)
	})
	return plan
}

func betterReplacement(a, b learning.Learning) bool {
	if a.ConfidenceScore != b.ConfidenceScore {
		return a.ConfidenceScore > b.ConfidenceScore
	}
	if !a.IndexedAt.Equal(b.IndexedAt) {
		return a.IndexedAt.After(b.IndexedAt)
	}
	return a.ID < b.ID
}
