package adjust

// State is a step of the adjustment state machine.
type State int

const (
	StateValidatingOriginal State = iota + 1
	StateAdjusting
	StateValidatingAdjusted
	StateCommitted
	StateRolledBack
)

func (s State) String() string {
	switch s {
	case StateValidatingOriginal:
		return "validating_original"
	case StateAdjusting:
		return "adjusting"
	case StateValidatingAdjusted:
		return "validating_adjusted"
	case StateCommitted:
		return "committed"
	case StateRolledBack:
		return "rolled_back"
	default:
		return "unknown"
	}
}

// Terminal reports whether s ends a request.
func (s State) Terminal() bool {
	return s == StateCommitted || s == StateRolledBack
}

func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}
