// Package engine is the deduce façade.
//
// An Engine owns one fact store, one clause store and one resolver. It
// exposes assert, retract, rule declaration and ask, and it enforces the
// program-definition rules:
//
//   - Every operation runs under the engine mutex, so no caller observes a
//     partially applied assert or retract.
//   - A predicate name keeps the arity it was first used with, across facts,
//     rule heads, rule bodies and queries (ir.ErrArityMismatch).
//   - A Program, a batch of statements, is consumed exactly once
//     (ir.ErrAlreadyExecuted). Statements apply in order and the first
//     failure stops the batch; statements before it stay applied.
//
// JOURNAL:
//
// With WithJournal, each effective mutation is appended to the journal,
// stamped by the logical Clock, before it touches a store. A journal failure
// leaves the stores unchanged. No-op mutations (a duplicate assert, a
// retract of an absent fact) are not journaled. Replay applies journaled
// statements in seq order without journaling them again.
package engine
