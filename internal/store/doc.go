// Package store provides the SQLite-backed statement journal for deduce.
//
// The journal is an append-only log of effective mutations (assert, retract,
// rule, retract_rule), one row per statement, keyed by (engine_id, seq).
// Replaying an engine's rows in seq order rebuilds its fact and clause
// stores exactly.
//
// # Critical Patterns
//
// Logical time:
//   - All ordering uses seq INTEGER from the engine's logical clock, NEVER
//     timestamps.
//   - All reads include ORDER BY seq ASC.
//
// Content-addressed statements:
//   - payload is canonical JSON (ir.MarshalCanonical) of the structured
//     statement; statement_hash is ir.StatementID over the same bytes.
//   - Reads verify the hash, so a tampered or truncated payload fails
//     loudly instead of replaying silently.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
package store
