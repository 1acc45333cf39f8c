// Package store is the SQLite experiment ledger.
//
// The ledger is a queryable mirror of the JSONL record log: one row per
// experiment, inserted once with ON CONFLICT(id) DO NOTHING and never
// updated. Each row carries the full record as JSON next to a few indexed
// columns (action, verdict reason, digest) for filtering.
//
// Rows are returned in insertion order (seq ASC), independent of wall time.
//
// # Database Configuration
//
//   - WAL mode: concurrent reads during writes
//   - synchronous=FULL: a record acknowledged by Record survives power loss
//   - busy_timeout=5000: wait for locks up to 5 seconds
//   - single connection: SQLite allows one writer at a time
package store
