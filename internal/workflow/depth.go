package workflow

import (
	"errors"
	"slices"
)

// ErrCyclic is returned by TopologicalOrder when the graph has a cycle.
var ErrCyclic = errors.New("workflow graph contains a cycle")

// TopologicalOrder returns step names with every dependency before its
// dependents. Among steps that are ready at the same time, graph order wins.
func (g *Graph) TopologicalOrder() ([]string, error) {
	adj := g.adjacency()
	pending := make(map[string]int, len(adj))
	dependents := make(map[string][]int, len(adj))

	var ready []int
	for i, s := range g.steps {
		if g.index[s.Name] != i {
			continue // duplicate
		}
		pending[s.Name] = len(adj[s.Name])
		for _, d := range adj[s.Name] {
			dependents[d] = append(dependents[d], i)
		}
		if len(adj[s.Name]) == 0 {
			ready = append(ready, i)
		}
	}

	order := make([]string, 0, len(adj))
	for len(ready) > 0 {
		i := ready[0]
		ready = ready[1:]
		name := g.steps[i].Name
		order = append(order, name)

		for _, j := range dependents[name] {
			dep := g.steps[j].Name
			pending[dep]--
			if pending[dep] == 0 {
				pos, _ := slices.BinarySearch(ready, j)
				ready = slices.Insert(ready, pos, j)
			}
		}
	}

	if len(order) != len(adj) {
		return nil, ErrCyclic
	}
	return order, nil
}

// Depths returns each step's depth: 0 for a step without dependencies,
// otherwise one more than its deepest dependency. Nil when the graph has
// a cycle.
func (g *Graph) Depths() map[string]int {
	order, err := g.TopologicalOrder()
	if err != nil {
		return nil
	}
	adj := g.adjacency()
	depths := make(map[string]int, len(order))
	for _, name := range order {
		d := 0
		for _, dep := range adj[name] {
			d = max(d, depths[dep]+1)
		}
		depths[name] = d
	}
	return depths
}

// MaxDepth returns the length in edges of the longest dependency path.
// It is 0 for an empty or dependency-free graph and -1 when the graph has
// a cycle.
func (g *Graph) MaxDepth() int {
	depths := g.Depths()
	if depths == nil {
		return -1
	}
	deepest := 0
	for _, d := range depths {
		deepest = max(deepest, d)
	}
	return deepest
}
