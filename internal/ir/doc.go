// Package ir provides the canonical intermediate representation for deduce.
//
// Everything the engine touches is expressed with the types in this package:
// terms, literals, constraints, rules, statements and result relations. All
// other internal packages import ir; ir imports nothing internal, so it stays
// the foundational layer with no circular dependencies.
//
// Key design constraints:
//   - Constants are stored and compared by their canonical string form only.
//     Normalize is the single ingestion point: 1, int64(1) and "1" all become
//     the same constant.
//   - A Literal's arguments are Terms. A Literal can never be an argument of
//     another Literal; NewLiteral rejects it with ErrNestedLiteral.
//   - Subst is an immutable snapshot. Bind returns a new substitution and
//     never mutates the receiver, so every candidate derivation owns its own
//     bindings.
//   - Canonical JSON (sorted keys, NFC strings, no floats) is the only
//     serialization used for content-addressed identity.
package ir
