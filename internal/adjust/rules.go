package adjust

import (
	"fmt"
	"strings"

	"github.com/roach88/retrolearn/internal/learning"
	"github.com/roach88/retrolearn/internal/workflow"
)

// Rule proposes changes to a workflow for one learning of its category.
//
// Apply mutates b and returns one Record per change, with Kind, Step and
// Reason set. A rule must skip silently when the step it would add already
// exists, and must call q.Take before adding a step, stopping once the
// quota is spent.
type Rule interface {
	Apply(b *workflow.Builder, l learning.Learning, q *StepQuota) []Record
}

// RuleFunc adapts a function to Rule.
type RuleFunc func(b *workflow.Builder, l learning.Learning, q *StepQuota) []Record

func (f RuleFunc) Apply(b *workflow.Builder, l learning.Learning, q *StepQuota) []Record {
	return f(b, l, q)
}

// Rules holds one rule per learning category.
type Rules struct {
	Quality       Rule
	Process       Rule
	Architectural Rule
}

// DefaultRules returns the built-in rule set.
func DefaultRules() Rules {
	return Rules{
		Quality:       QualityRule{},
		Process:       ProcessRule{},
		Architectural: ArchitecturalRule{},
	}
}

// For dispatches on category. It returns nil for an unknown category or an
// unset rule.
func (r Rules) For(c learning.Category) Rule {
	switch c {
	case learning.CategoryQuality:
		return r.Quality
	case learning.CategoryProcess:
		return r.Process
	case learning.CategoryArchitectural:
		return r.Architectural
	default:
		return nil
	}
}

// signals is the lower-cased description plus normalized tags of a
// learning, used for keyword matching.
type signals string

func signalsOf(l learning.Learning) signals {
	parts := append([]string{strings.ToLower(l.Description)}, learning.NormalizeTags(l.Tags)...)
	return signals(strings.Join(parts, " "))
}

func (s signals) any(keywords ...string) bool {
	for _, k := range keywords {
		if strings.Contains(string(s), k) {
			return true
		}
	}
	return false
}

// addStep adds step unless it already exists or the quota is spent.
func addStep(b *workflow.Builder, q *StepQuota, l learning.Learning, step workflow.Step, why string) (Record, bool) {
	if b.Has(step.Name) {
		return Record{}, false
	}
	if err := q.Take(step.Name); err != nil {
		return Record{}, false
	}
	b.AddStep(step)
	return Record{
		LearningID: l.ID,
		Kind:       KindAdd,
		Step:       step.Name,
		Reason:     fmt.Sprintf("%s (learning %s)", why, l.ID),
	}, true
}

func modifyRecord(l learning.Learning, step, why string) Record {
	return Record{
		LearningID: l.ID,
		Kind:       KindModify,
		Step:       step,
		Reason:     fmt.Sprintf("%s (learning %s)", why, l.ID),
	}
}

// lastMatching returns the name of the last step, in builder order, whose
// phase or name contains one of the keywords.
func lastMatching(b *workflow.Builder, keywords ...string) string {
	found := ""
	for _, s := range b.Steps() {
		if stepMatches(s, keywords...) {
			found = s.Name
		}
	}
	return found
}

func allMatching(b *workflow.Builder, keywords ...string) []string {
	var names []string
	for _, s := range b.Steps() {
		if stepMatches(s, keywords...) {
			names = append(names, s.Name)
		}
	}
	return names
}

func stepMatches(s workflow.Step, keywords ...string) bool {
	phase := strings.ToLower(s.Phase)
	name := strings.ToLower(s.Name)
	for _, k := range keywords {
		if phase == k || strings.Contains(name, k) {
			return true
		}
	}
	return false
}

// lastStep returns the name of the final step in builder order.
func lastStep(b *workflow.Builder) string {
	steps := b.Steps()
	if len(steps) == 0 {
		return ""
	}
	return steps[len(steps)-1].Name
}

func after(dep string) []string {
	if dep == "" {
		return nil
	}
	return []string{dep}
}
