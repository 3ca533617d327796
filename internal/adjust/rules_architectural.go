package adjust

import (
	"github.com/roach88/retrolearn/internal/learning"
	"github.com/roach88/retrolearn/internal/workflow"
)

// Step names added by ArchitecturalRule.
const (
	StepArchitectureReview = "architecture-review"
	StepInterfaceReview    = "interface-contract-review"
)

var designKeywords = []string{"design", "architecture", "architect"}

// ArchitecturalRule inserts a review gate after design-producing steps.
// The review depends on every design step, and the direct non-design
// dependents of those steps are made to wait for it. Learnings about
// interfaces or contracts add a contract review after the gate.
type ArchitecturalRule struct{}

func (ArchitecturalRule) Apply(b *workflow.Builder, l learning.Learning, q *StepQuota) []Record {
	designs := allMatching(b, designKeywords...)
	if len(designs) == 0 {
		return nil
	}

	var records []Record
	rec, ok := addStep(b, q, l, workflow.Step{
		Name:      StepArchitectureReview,
		Phase:     "review",
		DependsOn: designs,
	}, "architectural risk: review design output")
	if ok {
		records = append(records, rec)
		records = append(records, gateDependents(b, l, designs)...)
	}

	if signalsOf(l).any("api", "interface", "contract", "schema", "boundary") {
		anchor := StepArchitectureReview
		if !b.Has(anchor) {
			anchor = designs[len(designs)-1]
		}
		if rec, ok := addStep(b, q, l, workflow.Step{
			Name:      StepInterfaceReview,
			Phase:     "review",
			DependsOn: after(anchor),
		}, "interface risk: validate contracts after "+anchor); ok {
			records = append(records, rec)
		}
	}

	return records
}

// gateDependents makes steps that directly follow a design step also wait
// for the architecture review.
func gateDependents(b *workflow.Builder, l learning.Learning, designs []string) []Record {
	isDesign := make(map[string]bool, len(designs))
	for _, d := range designs {
		isDesign[d] = true
	}

	var records []Record
	for _, s := range b.Steps() {
		if s.Name == StepArchitectureReview || isDesign[s.Name] {
			continue
		}
		for _, dep := range s.DependsOn {
			if !isDesign[dep] {
				continue
			}
			if b.AddDependency(s.Name, StepArchitectureReview) {
				records = append(records, modifyRecord(l, s.Name, s.Name+" now waits for "+StepArchitectureReview))
			}
			break
		}
	}
	return records
}
