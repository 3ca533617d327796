package workflow

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidate_Valid(t *testing.T) {
	assert.Nil(t, MustNew(deliverySteps()...).Validate())
	assert.Nil(t, MustNew().Validate())
}

func TestValidate_MissingDependency(t *testing.T) {
	g := MustNew(Step{Name: "build", DependsOn: []string{"design"}})
	errs := g.Validate()
	require.Len(t, errs, 1)
	assert.Equal(t, ErrMissingDep, errs[0].Code)
	assert.Equal(t, "build", errs[0].Step)
	assert.Contains(t, errs[0].Error(), `unknown step "design"`)
}

func TestValidate_CycleWithReadablePath(t *testing.T) {
	// A -> B -> C chain, then C also depends on A and A depends on C.
	g := MustNew(
		Step{Name: "A", DependsOn: []string{"C"}},
		Step{Name: "B", DependsOn: []string{"A"}},
		Step{Name: "C", DependsOn: []string{"B", "A"}},
	)
	assert.True(t, g.HasCycle())

	errs := g.Validate()
	require.True(t, errs.HasCode(ErrCycle))
	assert.False(t, errs.HasCode(ErrDepthExceeded), "depth is not checked on a cyclic graph")
	assert.Equal(t, []string{"A -> C -> A", "A -> C -> B -> A"}, errs.CyclePaths())
	assert.Contains(t, errs.Error(), "A -> C -> A")
}

func TestValidate_SelfLoop(t *testing.T) {
	g := MustNew(Step{Name: "loop", DependsOn: []string{"loop"}})
	assert.True(t, g.HasCycle())
	assert.Equal(t, [][]string{{"loop", "loop"}}, g.Cycles())
}

func TestValidate_Depth(t *testing.T) {
	// Eleven steps in a line are ten edges deep, exactly the ceiling.
	ok := MustNew(chain(names(11)...)...)
	assert.Nil(t, ok.Validate())

	deep := MustNew(chain(names(12)...)...)
	errs := deep.Validate()
	require.Len(t, errs, 1)
	assert.Equal(t, ErrDepthExceeded, errs[0].Code)
	assert.Contains(t, errs[0].Message, "depth 11 exceeds maximum 10")

	assert.Nil(t, deep.ValidateWithLimit(11))
}

func TestValidateSteps_ReportsEverything(t *testing.T) {
	errs := ValidateSteps([]Step{
		{Name: "a", DependsOn: []string{"b"}},
		{Name: "b", DependsOn: []string{"a", "ghost"}},
		{Name: "a"},
		{Name: ""},
	}, DefaultMaxDepth)

	assert.True(t, errs.HasCode(ErrCycle))
	assert.True(t, errs.HasCode(ErrMissingDep))
	assert.True(t, errs.HasCode(ErrDuplicateStep))
	assert.True(t, errs.HasCode(ErrEmptyStepName))
}

func TestCycles_Bounded(t *testing.T) {
	// Complete digraph on 8 nodes has far more than 32 simple cycles.
	var steps []Step
	all := names(8)
	for _, n := range all {
		var deps []string
		for _, m := range all {
			if m != n {
				deps = append(deps, m)
			}
		}
		steps = append(steps, Step{Name: n, DependsOn: deps})
	}
	cycles := MustNew(steps...).Cycles()
	assert.Len(t, cycles, maxReportedCycles)
	for _, c := range cycles {
		assert.Equal(t, c[0], c[len(c)-1])
	}
}
