package workflow

import "slices"

// Builder accumulates changes to a copy of a graph's steps. It performs no
// validation; Build and Validate do.
type Builder struct {
	steps []Step
}

// NewBuilder returns an empty builder.
func NewBuilder() *Builder {
	return &Builder{}
}

// Edit returns a builder seeded with a deep copy of g's steps. g is not
// modified by anything done through the builder.
func (g *Graph) Edit() *Builder {
	return &Builder{steps: g.Steps()}
}

func (b *Builder) find(name string) int {
	return slices.IndexFunc(b.steps, func(s Step) bool { return s.Name == name })
}

// Has reports whether a step named name has been added.
func (b *Builder) Has(name string) bool {
	return b.find(name) >= 0
}

// Step returns a copy of the named step.
func (b *Builder) Step(name string) (Step, bool) {
	i := b.find(name)
	if i < 0 {
		return Step{}, false
	}
	return b.steps[i].Clone(), true
}

// Steps returns copies of the current steps in order.
func (b *Builder) Steps() []Step {
	out := make([]Step, len(b.steps))
	for i, s := range b.steps {
		out[i] = s.Clone()
	}
	return out
}

// AddStep appends s. Duplicates are accepted here and rejected by Build.
func (b *Builder) AddStep(s Step) *Builder {
	b.steps = append(b.steps, s.Clone())
	return b
}

// AddDependency makes step depend on dep. It reports false when step does
// not exist or already depends on dep.
func (b *Builder) AddDependency(step, dep string) bool {
	i := b.find(step)
	if i < 0 || b.steps[i].DependsOnStep(dep) {
		return false
	}
	b.steps[i].DependsOn = append(b.steps[i].DependsOn, dep)
	return true
}

// SetParam sets one parameter on step. It reports false when step does not
// exist.
func (b *Builder) SetParam(step, key string, value any) bool {
	i := b.find(step)
	if i < 0 {
		return false
	}
	if b.steps[i].Params == nil {
		b.steps[i].Params = make(map[string]any)
	}
	b.steps[i].Params[key] = value
	return true
}

// Build constructs a graph from the accumulated steps. Like New it only
// rejects bad names; call Validate on the result.
func (b *Builder) Build() (*Graph, error) {
	return New(b.steps)
}
