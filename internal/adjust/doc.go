// Package adjust reshapes a workflow graph with ranked learnings.
//
// Each request walks a fixed state machine:
//
//	ValidatingOriginal -> Adjusting -> ValidatingAdjusted -> Committed
//	                                                     \-> RolledBack
//
// An invalid base graph is a caller bug and is returned as a
// PreconditionError. Everything else ends in a terminal state: either the
// validated adjusted graph is committed to the ledger, or the base graph is
// returned unchanged (the same pointer) with a reason.
//
// Two caps bound growth: at most MaxStepsPerRequest steps are added by one
// request, and at most MaxAdjustmentsPerUnit adjustments are ever committed
// for one unit of work. The per-unit count is read, checked and advanced
// under a per-unit lock, and the ledger commit is itself a compare-and-swap,
// so concurrent re-plans of one unit cannot both spend the last slot.
package adjust
