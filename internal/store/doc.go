// Package store provides SQLite-backed persistence for learnings.
//
// Tables:
//   - learnings: learning content and statistics; rows are deactivated,
//     never deleted
//   - learning_applications: append-only outcome log, pruned by retention
//   - adjustment_budgets: committed adjustment count per unit of work
//   - adjustment_records: append-only audit trail of adjustment changes
//   - maintenance_lease: cross-process leader lock for maintenance
//
// # Atomicity
//
// Every read-modify-write runs in one transaction. Transactions begin
// IMMEDIATE (write lock taken at BEGIN), so two processes recording outcomes
// for the same learning serialize instead of both reading stale statistics.
// Guards are repeated in UPDATE ... WHERE clauses so a maintenance pass
// never acts on a row that changed after it was read.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
//
// Timestamps are stored as INTEGER unix nanoseconds (UTC).
package store
