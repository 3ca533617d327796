package learning

import (
	"fmt"
	"strings"
	"time"
)

// ScaleLevel is the size class of a unit of work, from 0 (single change)
// to 4 (multi-team initiative).
type ScaleLevel int

const (
	// ScaleAny marks a learning or context with no scale affinity.
	ScaleAny ScaleLevel = -1

	MinScaleLevel ScaleLevel = 0
	MaxScaleLevel ScaleLevel = 4
)

// Valid reports whether the level is ScaleAny or within [0, 4].
func (s ScaleLevel) Valid() bool {
	return s == ScaleAny || (s >= MinScaleLevel && s <= MaxScaleLevel)
}

// GeneralProjectType is the project type that partially matches any other.
const GeneralProjectType = "general"

// Learning is a scored, reusable observation.
type Learning struct {
	ID          string     `json:"id" yaml:"id"`
	Description string     `json:"description" yaml:"description"`
	Category    Category   `json:"category" yaml:"category"`
	Tags        []string   `json:"tags,omitempty" yaml:"tags,omitempty"`
	ScaleLevel  ScaleLevel `json:"scale_level" yaml:"scale_level"`
	ProjectType string     `json:"project_type,omitempty" yaml:"project_type,omitempty"`

	// Phase is the planning phase the learning was recorded in. It earns a
	// bonus when it matches the phase being planned.
	Phase string `json:"phase,omitempty" yaml:"phase,omitempty"`

	// BaseRelevance is an optional relevance hint supplied by the indexing
	// pipeline. Zero means "derive from the planning context".
	BaseRelevance float64 `json:"base_relevance,omitempty" yaml:"base_relevance,omitempty"`

	ApplicationCount int     `json:"application_count" yaml:"application_count"`
	Successes        float64 `json:"successes" yaml:"successes"`
	SuccessRate      float64 `json:"success_rate" yaml:"success_rate"`
	ConfidenceScore  float64 `json:"confidence_score" yaml:"confidence_score"`
	DecayFactor      float64 `json:"decay_factor" yaml:"decay_factor"`

	IndexedAt time.Time `json:"indexed_at" yaml:"indexed_at"`
	Active    bool      `json:"active" yaml:"active"`

	// ReplacedBy links a superseded learning to the learning that replaces it.
	ReplacedBy string `json:"replaced_by,omitempty" yaml:"replaced_by,omitempty"`
}

// New returns a freshly indexed, active learning with initial statistics.
func New(id, description string, category Category, indexedAt time.Time) Learning {
	return Learning{
		ID:              id,
		Description:     description,
		Category:        category,
		ScaleLevel:      ScaleAny,
		ConfidenceScore: InitialConfidence,
		DecayFactor:     1.0,
		IndexedAt:       indexedAt.UTC(),
		Active:          true,
	}
}

// Stats returns the statistical part of the learning.
func (l Learning) Stats() Stats {
	return Stats{
		ApplicationCount: l.ApplicationCount,
		Successes:        l.Successes,
		SuccessRate:      l.SuccessRate,
		ConfidenceScore:  l.ConfidenceScore,
	}
}

// Superseded reports whether a newer learning has replaced this one.
func (l Learning) Superseded() bool {
	return l.ReplacedBy != ""
}

// Validate checks the invariants a learning must hold before it is persisted.
func (l Learning) Validate() error {
	if strings.TrimSpace(l.ID) == "" {
		return fmt.Errorf("learning id is required")
	}
	if strings.TrimSpace(l.Description) == "" {
		return fmt.Errorf("learning %s: description is required", l.ID)
	}
	if !l.Category.Valid() {
		return fmt.Errorf("learning %s: invalid category %d", l.ID, int(l.Category))
	}
	if !l.ScaleLevel.Valid() {
		return fmt.Errorf("learning %s: scale level %d out of range", l.ID, l.ScaleLevel)
	}
	if l.ApplicationCount < 0 {
		return fmt.Errorf("learning %s: application_count must be >= 0", l.ID)
	}
	if l.SuccessRate < 0 || l.SuccessRate > 1 {
		return fmt.Errorf("learning %s: success_rate %.3f outside [0,1]", l.ID, l.SuccessRate)
	}
	if l.ConfidenceScore < 0 || l.ConfidenceScore > MaxConfidence {
		return fmt.Errorf("learning %s: confidence_score %.3f outside [0,%.2f]", l.ID, l.ConfidenceScore, MaxConfidence)
	}
	if l.DecayFactor < DecayFloor || l.DecayFactor > 1 {
		return fmt.Errorf("learning %s: decay_factor %.3f outside [%.1f,1]", l.ID, l.DecayFactor, DecayFloor)
	}
	if l.BaseRelevance < 0 || l.BaseRelevance > 1 {
		return fmt.Errorf("learning %s: base_relevance %.3f outside [0,1]", l.ID, l.BaseRelevance)
	}
	return nil
}

// Application is one recorded use of a learning. Applications are
// append-only and never modified after they are written.
type Application struct {
	ID         string    `json:"id"`
	LearningID string    `json:"learning_id"`
	UnitID     string    `json:"unit_id"`
	Outcome    Outcome   `json:"outcome"`
	Context    string    `json:"context,omitempty"`
	AppliedAt  time.Time `json:"applied_at"`
}

// PlanningContext describes the unit of work being planned.
type PlanningContext struct {
	ScaleLevel  ScaleLevel `json:"scale_level"`
	ProjectType string     `json:"project_type"`
	Tags        []string   `json:"tags,omitempty"`
	Phase       string     `json:"phase,omitempty"`

	// Categories restricts candidates to compatible categories.
	// Empty means every category is compatible.
	Categories []Category `json:"categories,omitempty"`
}

// Filter selects candidate learnings from a repository.
type Filter struct {
	Categories []Category
	Limit      int
}

// Supersession links an older learning to the newer one replacing it.
type Supersession struct {
	OldID string `json:"old_id"`
	NewID string `json:"new_id"`
}
