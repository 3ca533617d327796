package workflow

import (
	"bytes"
	"encoding/json"
	"fmt"
	"slices"
)

// DefaultMaxDepth is the ceiling on the longest dependency path, counted
// in edges.
const DefaultMaxDepth = 10

// Graph is an immutable set of workflow steps with derived dependency
// structure. Step order is preserved and used to break ties wherever an
// ordering is produced.
type Graph struct {
	steps []Step
	index map[string]int
}

// New constructs a graph from steps. It rejects empty and duplicate step
// names with ValidationErrors; dependency and cycle problems are left for
// Validate so they can be reported with full diagnostics.
func New(steps []Step) (*Graph, error) {
	if errs := checkNames(steps); len(errs) > 0 {
		return nil, errs
	}
	return build(steps), nil
}

// MustNew is New for fixtures and tests. It panics on error.
func MustNew(steps ...Step) *Graph {
	g, err := New(steps)
	if err != nil {
		panic(fmt.Sprintf("workflow.MustNew: %v", err))
	}
	return g
}

// build copies steps without checking names. The index keeps the first
// occurrence of a duplicated name.
func build(steps []Step) *Graph {
	g := &Graph{
		steps: make([]Step, len(steps)),
		index: make(map[string]int, len(steps)),
	}
	for i, s := range steps {
		g.steps[i] = s.Clone()
		if _, dup := g.index[s.Name]; !dup {
			g.index[s.Name] = i
		}
	}
	return g
}

// Len returns the number of steps.
func (g *Graph) Len() int {
	return len(g.steps)
}

// Has reports whether a step named name exists.
func (g *Graph) Has(name string) bool {
	_, ok := g.index[name]
	return ok
}

// Step returns a copy of the named step.
func (g *Graph) Step(name string) (Step, bool) {
	i, ok := g.index[name]
	if !ok {
		return Step{}, false
	}
	return g.steps[i].Clone(), true
}

// Steps returns copies of all steps in graph order.
func (g *Graph) Steps() []Step {
	out := make([]Step, len(g.steps))
	for i, s := range g.steps {
		out[i] = s.Clone()
	}
	return out
}

// Names returns step names in graph order.
func (g *Graph) Names() []string {
	out := make([]string, len(g.steps))
	for i, s := range g.steps {
		out[i] = s.Name
	}
	return out
}

// Clone returns an independent copy of g.
func (g *Graph) Clone() *Graph {
	return build(g.steps)
}

// Equal reports whether g and other have identical canonical encodings.
func (g *Graph) Equal(other *Graph) bool {
	if g == other {
		return true
	}
	if g == nil || other == nil {
		return false
	}
	a, errA := json.Marshal(g)
	b, errB := json.Marshal(other)
	return errA == nil && errB == nil && bytes.Equal(a, b)
}

type graphJSON struct {
	Steps []Step `json:"steps"`
}

// MarshalJSON encodes the graph as {"steps": [...]} in graph order.
// Parameter maps are encoded with sorted keys, so the encoding is canonical.
func (g *Graph) MarshalJSON() ([]byte, error) {
	steps := g.steps
	if steps == nil {
		steps = []Step{}
	}
	return json.Marshal(graphJSON{Steps: steps})
}

func (g *Graph) UnmarshalJSON(data []byte) error {
	var raw graphJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("decode workflow graph: %w", err)
	}
	built, err := New(raw.Steps)
	if err != nil {
		return err
	}
	*g = *built
	return nil
}

// adjacency maps each step to its dependencies that exist in the graph,
// sorted by name. Unknown dependencies are dropped here and reported by
// Validate.
func (g *Graph) adjacency() map[string][]string {
	adj := make(map[string][]string, len(g.steps))
	for _, s := range g.steps {
		if _, seen := adj[s.Name]; seen {
			continue
		}
		deps := make([]string, 0, len(s.DependsOn))
		for _, d := range s.DependsOn {
			if g.Has(d) && !slices.Contains(deps, d) {
				deps = append(deps, d)
			}
		}
		slices.Sort(deps)
		adj[s.Name] = deps
	}
	return adj
}
