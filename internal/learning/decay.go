package learning

import (
	"math"
	"time"
)

const (
	// DecayFloor is the value Decay approaches as age grows without bound.
	DecayFloor = 0.5

	// DecayTimeConstantDays is the e-folding time of the freshness curve.
	DecayTimeConstantDays = 180.0
)

// Decay returns the freshness multiplier for a learning of the given age:
//
//	0.5 + 0.5 * exp(-age / 180)
//
// It equals 1.0 at age 0, is monotonically non-increasing, and never drops
// below DecayFloor. Negative ages (clock skew) are treated as zero.
func Decay(ageDays float64) float64 {
	if ageDays < 0 || math.IsNaN(ageDays) {
		ageDays = 0
	}
	return DecayFloor + (1-DecayFloor)*math.Exp(-ageDays/DecayTimeConstantDays)
}

// AgeDays returns the fractional number of days between indexedAt and now.
func AgeDays(indexedAt, now time.Time) float64 {
	return now.Sub(indexedAt).Hours() / 24
}
