// Package resolve answers query literals against a fact source and a rule
// source.
//
// Resolution is query-driven and tabled. Each distinct call pattern (the
// predicate, its bound constants and the sharing shape of its variables)
// owns one table of answers in an arena. Tables are evaluated from a FIFO
// worklist. A rule body that reaches a tabled goal becomes a consumer of
// that table: it runs on the answers already there and keeps a cursor for
// the rest. A table that gains answers goes back on the worklist and hands
// each consumer only the answers past its cursor, so no answer is joined
// twice. The query is answered when the worklist drains.
//
// Rule bodies run on an explicit frame stack, never the Go call stack, so
// long derivation chains cost worklist iterations rather than stack depth.
// Within a frame, constraints that are ready run first; otherwise the
// leftmost remaining goal is expanded. A rule whose remaining body holds only
// constraints that can never become ready flounders with
// ir.ErrUnboundVariable.
//
// Facts and rules for the same signature are unioned; rules are tried in
// declaration order.
package resolve
