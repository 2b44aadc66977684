// Package queryir defines the filter language for reading the statement
// journal.
//
// A Select names the journal columns to return and a Predicate tree that
// rows must satisfy. Backends (querysql for SQLite) compile the tree into
// their own query language; callers never write SQL by hand.
//
//	[trace --match] → Pattern → [Query IR] → querysql → SELECT ... FROM statements
//
// # Sealed Interfaces
//
// Query and Predicate use the marker method pattern, so only types in this
// package implement them and backends can switch over them exhaustively:
//
//	switch p := pred.(type) {
//	case Equals:
//	case ArgEquals:
//	case KindIn:
//	case SeqRange:
//	case And:
//	case Or:
//	}
//
// # Row Shape
//
// Journal rows carry engine_id, seq, kind, predicate, arity, payload and
// statement_hash. payload is the canonical structured statement, so
// ArgEquals reads a fact's arguments out of it rather than from columns.
// Rule rows have no argument columns; Pattern lets every rule of the
// matching signature through and leaves the exact head check to the
// caller.
package queryir
