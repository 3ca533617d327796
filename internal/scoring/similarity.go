package scoring

import (
	"math"
	"strings"

	"github.com/roach88/retrolearn/internal/learning"
)

// Sub-score weights. They sum to 1.0.
const (
	WeightScale    = 0.25
	WeightProject  = 0.20
	WeightTags     = 0.30
	WeightCategory = 0.15
	WeightPhase    = 0.10
)

const (
	// adjacentScaleCredit is awarded when scale levels differ by one.
	adjacentScaleCredit = 0.5

	// unknownScaleCredit is awarded when either side has no scale affinity.
	unknownScaleCredit = 0.5

	// generalProjectCredit is awarded when either side is "general".
	generalProjectCredit = 0.5

	// AsymmetricTagScore is the tag sub-score when exactly one side has tags.
	// It is low but nonzero so untagged contexts are not starved.
	AsymmetricTagScore = 0.1

	// emptyTagScore is the tag sub-score when neither side has tags.
	emptyTagScore = 0.5
)

// categoryPriority favors quality and architectural learnings over process.
var categoryPriority = map[learning.Category]float64{
	learning.CategoryQuality:       1.0,
	learning.CategoryArchitectural: 0.9,
	learning.CategoryProcess:       0.7,
}

// Similarity returns how closely a learning matches the planning context,
// as a weighted sum of five independent sub-scores. The result is in [0, 1].
func Similarity(l learning.Learning, pc learning.PlanningContext) float64 {
	s := WeightScale*ScaleMatch(l.ScaleLevel, pc.ScaleLevel) +
		WeightProject*ProjectTypeMatch(l.ProjectType, pc.ProjectType) +
		WeightTags*TagOverlap(l.Tags, pc.Tags) +
		WeightCategory*CategoryRelevance(l.Category) +
		WeightPhase*PhaseBonus(l.Phase, pc.Phase)
	return clamp01(s)
}

// ScaleMatch gives full credit for an exact level, partial credit for an
// adjacent level, and nothing otherwise.
func ScaleMatch(learned, current learning.ScaleLevel) float64 {
	if learned == learning.ScaleAny || current == learning.ScaleAny {
		return unknownScaleCredit
	}
	diff := learned - current
	if diff < 0 {
		diff = -diff
	}
	switch diff {
	case 0:
		return 1.0
	case 1:
		return adjacentScaleCredit
	default:
		return 0
	}
}

// ProjectTypeMatch gives full credit for an exact match and partial credit
// when either side is the general project type.
func ProjectTypeMatch(learned, current string) float64 {
	a := strings.ToLower(strings.TrimSpace(learned))
	b := strings.ToLower(strings.TrimSpace(current))
	switch {
	case a != "" && a == b:
		return 1.0
	case a == "" || b == "" || a == learning.GeneralProjectType || b == learning.GeneralProjectType:
		return generalProjectCredit
	default:
		return 0
	}
}

// TagOverlap is the Jaccard similarity of the two normalized tag sets.
// When exactly one side is empty the result is AsymmetricTagScore rather
// than zero.
func TagOverlap(learned, current []string) float64 {
	a := learning.NormalizeTags(learned)
	b := learning.NormalizeTags(current)

	switch {
	case len(a) == 0 && len(b) == 0:
		return emptyTagScore
	case len(a) == 0 || len(b) == 0:
		return AsymmetricTagScore
	}

	set := make(map[string]struct{}, len(a))
	for _, t := range a {
		set[t] = struct{}{}
	}
	intersection := 0
	for _, t := range b {
		if _, ok := set[t]; ok {
			intersection++
		}
	}
	union := len(a) + len(b) - intersection
	return float64(intersection) / float64(union)
}

// CategoryRelevance looks up the fixed category priority.
func CategoryRelevance(c learning.Category) float64 {
	return categoryPriority[c]
}

// PhaseBonus is 1.0 when the learning was recorded in the phase being planned.
func PhaseBonus(learned, current string) float64 {
	a := strings.TrimSpace(learned)
	if a != "" && strings.EqualFold(a, strings.TrimSpace(current)) {
		return 1.0
	}
	return 0
}

func clamp01(v float64) float64 {
	switch {
	case v < 0 || math.IsNaN(v):
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
