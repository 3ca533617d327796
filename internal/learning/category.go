package learning

import (
	"fmt"
	"strings"
)

// Category classifies what part of the delivery process a learning targets.
// Each category is served by exactly one adjustment rule set.
type Category int

const (
	// CategoryQuality covers testing, coverage and verification gaps.
	CategoryQuality Category = iota + 1

	// CategoryProcess covers ceremony cadence and planning practice.
	CategoryProcess

	// CategoryArchitectural covers design and structural review.
	CategoryArchitectural
)

// Categories lists every category in declaration order.
var Categories = []Category{CategoryQuality, CategoryProcess, CategoryArchitectural}

// String returns the persisted name of the category.
func (c Category) String() string {
	switch c {
	case CategoryQuality:
		return "quality"
	case CategoryProcess:
		return "process"
	case CategoryArchitectural:
		return "architectural"
	default:
		return fmt.Sprintf("category(%d)", int(c))
	}
}

// Valid reports whether c is one of the declared categories.
func (c Category) Valid() bool {
	return c >= CategoryQuality && c <= CategoryArchitectural
}

// ParseCategory converts a persisted name back into a Category.
// Matching is case-insensitive and ignores surrounding whitespace.
func ParseCategory(s string) (Category, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "quality":
		return CategoryQuality, nil
	case "process":
		return CategoryProcess, nil
	case "architectural", "architecture":
		return CategoryArchitectural, nil
	default:
		return 0, fmt.Errorf("unknown learning category %q", s)
	}
}

// MarshalText implements encoding.TextMarshaler so categories serialize by name
// in both JSON and YAML.
func (c Category) MarshalText() ([]byte, error) {
	if !c.Valid() {
		return nil, fmt.Errorf("invalid learning category %d", int(c))
	}
	return []byte(c.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (c *Category) UnmarshalText(text []byte) error {
	parsed, err := ParseCategory(string(text))
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

// Outcome is the result a unit of work reports for an applied learning.
type Outcome string

const (
	OutcomeSuccess Outcome = "success"
	OutcomeFailure Outcome = "failure"
	OutcomePartial Outcome = "partial"
)

// Valid reports whether o is a known outcome.
func (o Outcome) Valid() bool {
	switch o {
	case OutcomeSuccess, OutcomeFailure, OutcomePartial:
		return true
	}
	return false
}

// Credit is the success weight an outcome contributes to success_rate.
// Partial outcomes count as half a success.
func (o Outcome) Credit() float64 {
	switch o {
	case OutcomeSuccess:
		return 1
	case OutcomePartial:
		return 0.5
	default:
		return 0
	}
}

// ParseOutcome validates and normalizes an outcome name.
func ParseOutcome(s string) (Outcome, error) {
	o := Outcome(strings.ToLower(strings.TrimSpace(s)))
	if !o.Valid() {
		return "", fmt.Errorf("unknown outcome %q: must be success, failure or partial", s)
	}
	return o, nil
}
