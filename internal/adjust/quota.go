package adjust

import (
	"errors"
	"fmt"
)

// StepQuota caps the number of steps one adjustment request may add.
//
// Rules call Take before adding a step. Modifications of existing steps do
// not consume quota. A StepQuota belongs to a single request and is not
// safe for concurrent use.
type StepQuota struct {
	max  int
	used int
}

func NewStepQuota(limit int) *StepQuota {
	return &StepQuota{max: limit}
}

// Take reserves one step. It returns StepQuotaExceededError, without
// consuming anything, when the quota is spent.
func (q *StepQuota) Take(step string) error {
	if q.used >= q.max {
		return &StepQuotaExceededError{Step: step, Limit: q.max}
	}
	q.used++
	return nil
}

func (q *StepQuota) Used() int {
	return q.used
}

func (q *StepQuota) Remaining() int {
	return max(0, q.max-q.used)
}

func (q *StepQuota) Exhausted() bool {
	return q.used >= q.max
}

// StepQuotaExceededError reports a step that was not added because the
// per-request quota was spent.
type StepQuotaExceededError struct {
	Step  string
	Limit int
}

func (e *StepQuotaExceededError) Error() string {
	return fmt.Sprintf("step %s not added: per-request limit of %d added steps reached", e.Step, e.Limit)
}

// IsStepQuotaExceeded reports whether err is a StepQuotaExceededError.
// Uses errors.As to handle wrapped errors.
func IsStepQuotaExceeded(err error) bool {
	var qe *StepQuotaExceededError
	return errors.As(err, &qe)
}
