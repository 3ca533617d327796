package adjust

import (
	"fmt"

	"github.com/roach88/retrolearn/internal/learning"
	"github.com/roach88/retrolearn/internal/workflow"
)

const (
	// StepBacklogRefinement is inserted ahead of implementation by ProcessRule.
	StepBacklogRefinement = "backlog-refinement"

	// ParamInterval is the ceremony cadence parameter, in hours.
	ParamInterval = "interval_hours"

	// ParamCadenceSource records the learning that last changed a cadence.
	ParamCadenceSource = "cadence_source"

	defaultIntervalHours = 24
	minIntervalHours     = 4
)

var ceremonyKeywords = []string{"standup", "stand-up", "sync", "check-in", "ceremony"}

// ProcessRule tunes ceremonies rather than adding terminal steps:
//
//	communication gap -> halve the interval of every ceremony step
//	planning gap      -> insert backlog-refinement before implementation
type ProcessRule struct{}

func (ProcessRule) Apply(b *workflow.Builder, l learning.Learning, q *StepQuota) []Record {
	sig := signalsOf(l)
	var records []Record

	if sig.any("standup", "stand-up", "communication", "cadence", "blocker", "sync", "handoff") {
		for _, name := range allMatching(b, ceremonyKeywords...) {
			if rec, ok := shortenCadence(b, l, name); ok {
				records = append(records, rec)
			}
		}
	}

	if sig.any("planning", "refinement", "scope", "estimate", "estimation", "requirement", "backlog") {
		records = append(records, insertRefinement(b, l, q)...)
	}

	return records
}

func shortenCadence(b *workflow.Builder, l learning.Learning, name string) (Record, bool) {
	s, _ := b.Step(name)
	if src, _ := s.Params[ParamCadenceSource].(string); src == l.ID {
		return Record{}, false
	}

	current := intervalOf(s)
	next := max(minIntervalHours, current/2)
	if next >= current {
		return Record{}, false
	}

	b.SetParam(name, ParamInterval, next)
	b.SetParam(name, ParamCadenceSource, l.ID)
	return modifyRecord(l, name, fmt.Sprintf("cadence: %s interval %dh -> %dh", name, current, next)), true
}

// intervalOf reads the cadence parameter whichever numeric type the
// definition decoder produced.
func intervalOf(s workflow.Step) int {
	switch v := s.Params[ParamInterval].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	default:
		return defaultIntervalHours
	}
}

func insertRefinement(b *workflow.Builder, l learning.Learning, q *StepQuota) []Record {
	planning := lastMatching(b, "planning", "requirements", "requirement")
	rec, ok := addStep(b, q, l, workflow.Step{
		Name:      StepBacklogRefinement,
		Phase:     "planning",
		DependsOn: after(planning),
	}, "planning gap: refine backlog before implementation")
	if !ok {
		return nil
	}

	records := []Record{rec}
	for _, impl := range allMatching(b, implementationKeywords...) {
		if impl == StepBacklogRefinement {
			continue
		}
		if b.AddDependency(impl, StepBacklogRefinement) {
			records = append(records, modifyRecord(l, impl, impl+" now waits for "+StepBacklogRefinement))
		}
	}
	return records
}
