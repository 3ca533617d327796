// Package maintenance runs the periodic upkeep of the learning store:
// decay recomputation, deactivation of disproven learnings, supersession
// and application retention.
//
// A Scheduler allows one run at a time. In process this is a TryLock; across
// processes sharing a database it is a lease row with a TTL. Every step is
// safe to abort and retry: decay is recomputed from indexed_at, and the
// deactivate and supersede writes re-check their conditions in SQL.
package maintenance
