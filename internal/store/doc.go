// Package store provides SQLite-backed durable storage for the fieldsync
// engine's local state.
//
// The store holds three independent collections:
//   - Pending: the outbox - an ordered queue of not-yet-delivered mutating
//     operations, each with retry bookkeeping
//   - Cache: read results with optional per-entry expiry
//   - Dead Letters: operations evicted after exhausting their retry budget
//     or failing permanently, kept for operator visibility
//
// # Critical Patterns
//
// Outbox ordering uses the AUTOINCREMENT id, NEVER timestamps. Replay order
// must match enqueue order regardless of wall-clock adjustments, so every
// pending query carries ORDER BY id ASC.
//
// Eviction is transactional: moving an operation to dead_letters and deleting
// it from pending happens in one transaction, so a crash can duplicate
// neither the queue entry nor the dead-letter record.
//
// # Database Configuration
//
//   - WAL mode: concurrent reads during writes
//   - synchronous=NORMAL: balance durability/performance
//   - busy_timeout=5000: wait for locks up to 5 seconds
//   - foreign_keys=ON: enforce referential integrity
package store
