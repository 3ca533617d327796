package adjust

import (
	"github.com/roach88/retrolearn/internal/learning"
	"github.com/roach88/retrolearn/internal/workflow"
)

// Step names added by QualityRule.
const (
	StepExtendedTesting  = "extended-testing"
	StepIntegrationTests = "integration-tests"
	StepCoverageReport   = "coverage-report"
)

var implementationKeywords = []string{"implementation", "implement", "build", "development", "develop"}

// QualityRule appends verification steps downstream of implementation
// when the learning points at test or coverage gaps:
//
//	testing gap      -> extended-testing after implementation
//	integration gap  -> integration-tests after implementation
//	coverage gap     -> coverage-report after extended-testing
type QualityRule struct{}

func (QualityRule) Apply(b *workflow.Builder, l learning.Learning, q *StepQuota) []Record {
	sig := signalsOf(l)
	impl := lastMatching(b, implementationKeywords...)
	if impl == "" {
		impl = lastStep(b)
	}

	var records []Record
	add := func(step workflow.Step, why string) {
		if rec, ok := addStep(b, q, l, step, why); ok {
			records = append(records, rec)
		}
	}

	if sig.any("test", "regression", "bug", "defect", "coverage") {
		add(workflow.Step{
			Name:      StepExtendedTesting,
			Phase:     "verification",
			DependsOn: after(impl),
		}, "testing gap: extend testing after "+impl)
	}

	if sig.any("integration", "end-to-end", "e2e", "contract") {
		add(workflow.Step{
			Name:      StepIntegrationTests,
			Phase:     "verification",
			DependsOn: after(impl),
		}, "integration gap: add integration tests after "+impl)
	}

	if sig.any("coverage") {
		anchor := impl
		if b.Has(StepExtendedTesting) {
			anchor = StepExtendedTesting
		}
		add(workflow.Step{
			Name:      StepCoverageReport,
			Phase:     "verification",
			DependsOn: after(anchor),
		}, "coverage gap: report coverage after "+anchor)
	}

	return records
}
