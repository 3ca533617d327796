package workflow

import (
	"cmp"
	"slices"
	"strings"
)

const (
	// maxReportedCycles bounds enumeration on pathological graphs.
	maxReportedCycles = 32

	// maxCycleVisits bounds the total DFS work of one enumeration.
	maxCycleVisits = 100_000
)

// HasCycle reports whether any step transitively depends on itself.
func (g *Graph) HasCycle() bool {
	adj := g.adjacency()
	for _, scc := range tarjanSCC(adj, g.Names()) {
		if isCyclic(scc, adj) {
			return true
		}
	}
	return false
}

// Cycles enumerates simple cycles. Each path starts and ends at its
// lexicographically smallest step, e.g. ["A", "C", "A"]. Paths are sorted
// by length, then lexically. At most 32 cycles are returned.
func (g *Graph) Cycles() [][]string {
	adj := g.adjacency()

	var cycles [][]string
	budget := maxCycleVisits
	for _, scc := range tarjanSCC(adj, g.Names()) {
		if !isCyclic(scc, adj) {
			continue
		}
		cycles = append(cycles, enumerateCycles(scc, adj, &budget)...)
		if len(cycles) >= maxReportedCycles || budget <= 0 {
			break
		}
	}

	slices.SortFunc(cycles, func(a, b []string) int {
		if c := cmp.Compare(len(a), len(b)); c != 0 {
			return c
		}
		return cmp.Compare(FormatCycle(a), FormatCycle(b))
	})
	if len(cycles) > maxReportedCycles {
		cycles = cycles[:maxReportedCycles]
	}
	return cycles
}

// FormatCycle renders a cycle path as "a -> b -> a".
func FormatCycle(path []string) string {
	return strings.Join(path, " -> ")
}

func isCyclic(scc []string, adj map[string][]string) bool {
	if len(scc) > 1 {
		return true
	}
	return len(scc) == 1 && slices.Contains(adj[scc[0]], scc[0])
}

// tarjanSCC finds strongly connected components using Tarjan's algorithm.
// Nodes are visited in the given order so results are deterministic.
func tarjanSCC(adj map[string][]string, order []string) [][]string {
	var (
		index   = 0
		stack   []string
		indices = make(map[string]int)
		lowlink = make(map[string]int)
		onStack = make(map[string]bool)
		sccs    [][]string
	)

	var strongConnect func(string)
	strongConnect = func(v string) {
		indices[v] = index
		lowlink[v] = index
		index++
		stack = append(stack, v)
		onStack[v] = true

		for _, w := range adj[v] {
			if _, visited := indices[w]; !visited {
				strongConnect(w)
				lowlink[v] = min(lowlink[v], lowlink[w])
			} else if onStack[w] {
				lowlink[v] = min(lowlink[v], indices[w])
			}
		}

		// v is a root: pop its component
		if lowlink[v] == indices[v] {
			var scc []string
			for {
				w := stack[len(stack)-1]
				stack = stack[:len(stack)-1]
				onStack[w] = false
				scc = append(scc, w)
				if w == v {
					break
				}
			}
			sccs = append(sccs, scc)
		}
	}

	for _, node := range order {
		if _, visited := indices[node]; !visited {
			strongConnect(node)
		}
	}
	return sccs
}

// enumerateCycles lists the simple cycles inside one strongly connected
// component. A cycle is found once, from its smallest member: the search
// rooted at start only walks members greater than start.
func enumerateCycles(scc []string, adj map[string][]string, budget *int) [][]string {
	members := slices.Clone(scc)
	slices.Sort(members)
	inSCC := make(map[string]bool, len(members))
	for _, m := range members {
		inSCC[m] = true
	}

	var cycles [][]string
	for _, start := range members {
		path := []string{start}
		onPath := map[string]bool{start: true}

		var walk func(v string)
		walk = func(v string) {
			for _, w := range adj[v] {
				if *budget <= 0 || len(cycles) >= maxReportedCycles {
					return
				}
				*budget--
				switch {
				case w == start:
					cycle := append(slices.Clone(path), start)
					cycles = append(cycles, cycle)
				case inSCC[w] && w > start && !onPath[w]:
					onPath[w] = true
					path = append(path, w)
					walk(w)
					path = path[:len(path)-1]
					onPath[w] = false
				}
			}
		}
		walk(start)
	}
	return cycles
}
