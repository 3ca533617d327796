package adjust

import (
	"errors"
	"fmt"

	"github.com/roach88/retrolearn/internal/workflow"
)

// Reasons attached to results that return the base graph.
const (
	ReasonBudgetExhausted   = "adjustment budget exhausted"
	ReasonNoChanges         = "no applicable adjustments"
	ReasonLedgerUnavailable = "adjustment ledger unavailable"
	ReasonCancelled         = "adjustment cancelled before commit"
)

// PreconditionError reports that the base graph handed to Adjust was
// already invalid. It is the only error Adjust surfaces for a graph.
type PreconditionError struct {
	Errors workflow.ValidationErrors
}

func (e *PreconditionError) Error() string {
	return fmt.Sprintf("base workflow is invalid: %v", e.Errors)
}

func (e *PreconditionError) Unwrap() error {
	return e.Errors
}

// IsPreconditionError reports whether err is a PreconditionError.
// Uses errors.As to handle wrapped errors.
func IsPreconditionError(err error) bool {
	var pe *PreconditionError
	return errors.As(err, &pe)
}
