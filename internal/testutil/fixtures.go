package testutil

import (
	"time"

	"github.com/roach88/retrolearn/internal/learning"
)

// LearningOption customizes a fixture learning.
type LearningOption func(*learning.Learning)

// NewLearning returns an active learning indexed at indexedAt with the
// initial statistics, modified by opts.
func NewLearning(id string, cat learning.Category, indexedAt time.Time, opts ...LearningOption) learning.Learning {
	l := learning.New(id, "learning "+id, cat, indexedAt)
	for _, opt := range opts {
		opt(&l)
	}
	return l
}

func WithTags(tags ...string) LearningOption {
	return func(l *learning.Learning) { l.Tags = learning.NormalizeTags(tags) }
}

func WithScale(s learning.ScaleLevel) LearningOption {
	return func(l *learning.Learning) { l.ScaleLevel = s }
}

func WithProjectType(pt string) LearningOption {
	return func(l *learning.Learning) { l.ProjectType = pt }
}

func WithDescription(d string) LearningOption {
	return func(l *learning.Learning) { l.Description = d }
}

// WithStats sets application count and success count and derives the rate
// and confidence from them.
func WithStats(applications int, successes float64) LearningOption {
	return func(l *learning.Learning) {
		l.ApplicationCount = applications
		l.Successes = successes
		if applications > 0 {
			l.SuccessRate = successes / float64(applications)
		}
		l.ConfidenceScore = learning.Confidence(successes, applications)
	}
}

// WithConfidence overrides the derived confidence.
func WithConfidence(c float64) LearningOption {
	return func(l *learning.Learning) { l.ConfidenceScore = c }
}

func Inactive() LearningOption {
	return func(l *learning.Learning) { l.Active = false }
}
