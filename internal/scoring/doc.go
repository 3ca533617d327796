// Package scoring ranks learnings against a planning context.
//
// The relevance score is an additive blend:
//
//	0.30*base_relevance + 0.20*success_rate + 0.20*confidence_score
//	  + 0.15*decay_factor + 0.15*context_similarity
//
// Additive blending keeps a single weak factor (for example a brand-new
// learning with no confidence yet) from zeroing out an otherwise strong
// recommendation. Scores are clamped to [0, 1] and candidates below the
// configurable relevance floor are dropped.
//
// Scoring itself is pure and safe for unbounded concurrent use. The only
// I/O is the candidate fetch, which carries a short timeout and is cached
// per filter; a failed fetch fails open with an empty result.
package scoring
