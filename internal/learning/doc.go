// Package learning defines the scored observations that feed workflow
// adjustment, together with the pure functions that age and weigh them.
//
// A Learning is created by an external indexing pipeline and afterwards only
// mutated through two paths:
//   - outcome recording (application_count, success_rate, confidence_score)
//   - maintenance (decay_factor, active flag, supersession link)
//
// Learnings are never deleted. Deactivation and supersession preserve the
// audit history of every recorded application.
//
// # Scoring Primitives
//
// Decay maps a learning's age to a freshness multiplier in [0.5, 1.0].
// Confidence maps an application history to a trust score in [0, 0.95].
// Both are smooth and branch-free apart from the documented clamps so that
// a single recorded outcome never causes a cliff in relevance.
package learning
