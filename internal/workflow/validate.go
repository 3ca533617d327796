package workflow

import (
	"fmt"
	"strings"
)

// Validation error codes (W001-W005)
const (
	ErrCycle         = "W001" // step transitively depends on itself
	ErrMissingDep    = "W002" // dependency names a step absent from the graph
	ErrDuplicateStep = "W003" // step name used twice
	ErrDepthExceeded = "W004" // longest chain deeper than the ceiling
	ErrEmptyStepName = "W005" // step name is empty
)

// ValidationError is one structural problem in a workflow graph.
type ValidationError struct {
	Code    string   `json:"code"`
	Step    string   `json:"step,omitempty"`
	Message string   `json:"message"`
	Path    []string `json:"path,omitempty"` // cycle path for W001
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	if e.Step != "" {
		return fmt.Sprintf("[%s] %s: %s", e.Code, e.Step, e.Message)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// ValidationErrors collects every problem found in one pass.
type ValidationErrors []ValidationError

func (es ValidationErrors) Error() string {
	msgs := make([]string, len(es))
	for i, e := range es {
		msgs[i] = e.Error()
	}
	return strings.Join(msgs, "; ")
}

// HasCode reports whether any error carries code.
func (es ValidationErrors) HasCode(code string) bool {
	for _, e := range es {
		if e.Code == code {
			return true
		}
	}
	return false
}

// CyclePaths returns the rendered path of every cycle error.
func (es ValidationErrors) CyclePaths() []string {
	var paths []string
	for _, e := range es {
		if e.Code == ErrCycle {
			paths = append(paths, FormatCycle(e.Path))
		}
	}
	return paths
}

// Validate checks the graph against DefaultMaxDepth.
// Returns all errors found (does not fail-fast); nil means valid.
func (g *Graph) Validate() ValidationErrors {
	return g.ValidateWithLimit(DefaultMaxDepth)
}

// ValidateWithLimit checks names, dependencies, cycles and depth. Depth is
// only checked on an acyclic graph.
func (g *Graph) ValidateWithLimit(maxDepth int) ValidationErrors {
	errs := checkNames(g.steps)

	for _, s := range g.steps {
		for _, d := range s.DependsOn {
			if !g.Has(d) {
				errs = append(errs, ValidationError{
					Code:    ErrMissingDep,
					Step:    s.Name,
					Message: fmt.Sprintf("depends on unknown step %q", d),
				})
			}
		}
	}

	cycles := g.Cycles()
	for _, c := range cycles {
		errs = append(errs, ValidationError{
			Code:    ErrCycle,
			Step:    c[0],
			Message: "dependency cycle " + FormatCycle(c),
			Path:    c,
		})
	}

	if len(cycles) == 0 {
		if depth := g.MaxDepth(); maxDepth > 0 && depth > maxDepth {
			errs = append(errs, ValidationError{
				Code:    ErrDepthExceeded,
				Message: fmt.Sprintf("depth %d exceeds maximum %d", depth, maxDepth),
			})
		}
	}

	if len(errs) == 0 {
		return nil
	}
	return errs
}

// ValidateSteps validates a raw step list, including one that New would
// reject for duplicate or empty names.
func ValidateSteps(steps []Step, maxDepth int) ValidationErrors {
	return build(steps).ValidateWithLimit(maxDepth)
}

func checkNames(steps []Step) ValidationErrors {
	var errs ValidationErrors
	seen := make(map[string]bool, len(steps))
	for i, s := range steps {
		name := strings.TrimSpace(s.Name)
		if name == "" {
			errs = append(errs, ValidationError{
				Code:    ErrEmptyStepName,
				Message: fmt.Sprintf("step %d has an empty name", i),
			})
			continue
		}
		if seen[s.Name] {
			errs = append(errs, ValidationError{
				Code:    ErrDuplicateStep,
				Step:    s.Name,
				Message: "duplicate step name",
			})
			continue
		}
		seen[s.Name] = true
	}
	return errs
}
