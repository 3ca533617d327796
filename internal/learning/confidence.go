package learning

import "math"

const (
	// MaxConfidence caps confidence so no learning is ever treated as certain.
	MaxConfidence = 0.95

	// InitialConfidence is assigned to a learning with no recorded applications.
	InitialConfidence = 0.5
)

// Confidence computes statistical trust from an application history:
//
//	min(0.95, 0.5 + 0.45 * sqrt(successes/total))
//
// scaled by success_rate*2 whenever success_rate < 0.5, which penalizes
// learnings that are applied often but rarely help. successes may be
// fractional (partial outcomes count as half).
//
// The function is non-decreasing in success_rate, so recording a success
// can never lower confidence.
func Confidence(successes float64, total int) float64 {
	if total <= 0 {
		return InitialConfidence
	}
	rate := clamp01(successes / float64(total))

	conf := math.Min(MaxConfidence, 0.5+0.45*math.Sqrt(rate))
	if rate < 0.5 {
		conf *= rate * 2
	}
	return conf
}

// Stats is the mutable statistical state of a learning.
type Stats struct {
	ApplicationCount int     `json:"application_count"`
	Successes        float64 `json:"successes"`
	SuccessRate      float64 `json:"success_rate"`
	ConfidenceScore  float64 `json:"confidence_score"`
}

// DerivedSuccesses returns the success count implied by the stats. Learnings
// imported with only application_count and success_rate carry no successes,
// so the count is reconstructed from the rate.
func (s Stats) DerivedSuccesses() float64 {
	if s.Successes > 0 || s.ApplicationCount <= 0 {
		return s.Successes
	}
	return clamp01(s.SuccessRate) * float64(s.ApplicationCount)
}

// ApplyOutcome returns the statistics that result from recording one more
// application with the given outcome. application_count only ever grows, and
// a success never lowers confidence even when the stored score was seeded
// above what the history alone supports.
func ApplyOutcome(s Stats, o Outcome) Stats {
	next := Stats{
		ApplicationCount: s.ApplicationCount + 1,
		Successes:        s.DerivedSuccesses() + o.Credit(),
	}
	next.SuccessRate = clamp01(next.Successes / float64(next.ApplicationCount))
	next.ConfidenceScore = Confidence(next.Successes, next.ApplicationCount)
	if o == OutcomeSuccess && next.ConfidenceScore < s.ConfidenceScore {
		next.ConfidenceScore = math.Min(MaxConfidence, s.ConfidenceScore)
	}
	return next
}

func clamp01(v float64) float64 {
	switch {
	case math.IsNaN(v), v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
