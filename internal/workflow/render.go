package workflow

import (
	"fmt"
	"io"
	"slices"
	"strings"
)

// Render writes a deterministic text view of g: a header line, then one
// line per step in topological order with its depth and dependencies.
// A cyclic graph is listed in graph order with the cycles appended.
//
//	workflow: 3 steps, depth 1
//	design [design] depth=0
//	implementation [build] depth=1 after=design
//	architecture-review [design] depth=1 after=design
func Render(w io.Writer, g *Graph) error {
	order, err := g.TopologicalOrder()
	cyclic := err != nil

	var b strings.Builder
	if cyclic {
		fmt.Fprintf(&b, "workflow: %d steps, cyclic\n", g.Len())
		order = g.Names()
	} else {
		fmt.Fprintf(&b, "workflow: %d steps, depth %d\n", g.Len(), g.MaxDepth())
	}

	depths := g.Depths()
	for _, name := range order {
		s, _ := g.Step(name)
		b.WriteString(s.Name)
		if s.Phase != "" {
			fmt.Fprintf(&b, " [%s]", s.Phase)
		}
		if !cyclic {
			fmt.Fprintf(&b, " depth=%d", depths[name])
		}
		if len(s.DependsOn) > 0 {
			fmt.Fprintf(&b, " after=%s", strings.Join(s.DependsOn, ","))
		}
		if len(s.Params) > 0 {
			fmt.Fprintf(&b, " params={%s}", renderParams(s.Params))
		}
		b.WriteByte('\n')
	}

	if cyclic {
		for _, c := range g.Cycles() {
			fmt.Fprintf(&b, "cycle: %s\n", FormatCycle(c))
		}
	}

	_, err = io.WriteString(w, b.String())
	return err
}

// RenderString is Render into a string.
func RenderString(g *Graph) string {
	var b strings.Builder
	_ = Render(&b, g)
	return b.String()
}

func renderParams(p map[string]any) string {
	keys := make([]string, 0, len(p))
	for k := range p {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = fmt.Sprintf("%s=%v", k, p[k])
	}
	return strings.Join(parts, ",")
}
