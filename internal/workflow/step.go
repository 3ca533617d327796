package workflow

import (
	"maps"
	"slices"
)

// Step is one node of a workflow graph.
type Step struct {
	Name      string         `json:"name" yaml:"name"`
	Phase     string         `json:"phase,omitempty" yaml:"phase,omitempty"`
	DependsOn []string       `json:"depends_on,omitempty" yaml:"depends_on,omitempty"`
	Params    map[string]any `json:"params,omitempty" yaml:"params,omitempty"`
}

// Clone returns a deep copy of s.
func (s Step) Clone() Step {
	out := Step{
		Name:  s.Name,
		Phase: s.Phase,
	}
	if s.DependsOn != nil {
		out.DependsOn = slices.Clone(s.DependsOn)
	}
	if s.Params != nil {
		out.Params = cloneParams(s.Params)
	}
	return out
}

// DependsOnStep reports whether name is one of s's direct dependencies.
func (s Step) DependsOnStep(name string) bool {
	return slices.Contains(s.DependsOn, name)
}

func cloneParams(p map[string]any) map[string]any {
	out := make(map[string]any, len(p))
	for k, v := range p {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return cloneParams(t)
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = cloneValue(e)
		}
		return out
	case []string:
		return slices.Clone(t)
	case map[string]string:
		return maps.Clone(t)
	default:
		return v
	}
}
