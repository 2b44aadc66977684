package queryir

import (
	"slices"

	"github.com/roach88/deduce/internal/ir"
)

// Journal columns that predicates and selects may name.
const (
	ColEngineID  = "engine_id"
	ColSeq       = "seq"
	ColKind      = "kind"
	ColPredicate = "predicate"
	ColArity     = "arity"
	ColPayload   = "payload"
	ColHash      = "statement_hash"
)

// Columns lists every journal column in table order.
var Columns = []string{ColEngineID, ColSeq, ColKind, ColPredicate, ColArity, ColPayload, ColHash}

// Query is a read of the statement journal.
type Query interface {
	queryNode()
}

// Predicate filters journal rows.
type Predicate interface {
	predicateNode()
}

// Select reads journal rows.
//
//	SELECT <columns> FROM statements WHERE <filter> ORDER BY engine_id, seq
//
// Rows always come back in (engine_id, seq) order.
type Select struct {
	Columns []string  // empty selects Columns
	Filter  Predicate // nil = every row
	Limit   int       // 0 = no limit
}

func (Select) queryNode() {}

// Equals compares a journal column with a value.
//
//	Equals{Column: ColPredicate, Value: "parent"}  →  predicate = ?
type Equals struct {
	Column string
	Value  any // string or integer
}

func (Equals) predicateNode() {}

// ArgEquals compares argument Index (zero-based) of a fact row's literal
// with a constant. It is meaningful only for assert and retract rows.
type ArgEquals struct {
	Index int
	Term  ir.Term
}

func (ArgEquals) predicateNode() {}

// KindIn holds when the row's statement kind is one of Kinds.
type KindIn struct {
	Kinds []ir.StatementKind
}

func (KindIn) predicateNode() {}

// SeqRange holds for After < seq <= Through. A zero Through is unbounded.
type SeqRange struct {
	After   int64
	Through int64
}

func (SeqRange) predicateNode() {}

// And holds when every predicate holds. An empty And is always true.
type And struct {
	Predicates []Predicate
}

func (And) predicateNode() {}

// Or holds when any predicate holds. An empty Or is always false.
type Or struct {
	Predicates []Predicate
}

func (Or) predicateNode() {}

// FactKinds and RuleKinds partition the journaled statement kinds.
var (
	FactKinds = []ir.StatementKind{ir.StmtAssert, ir.StmtRetract}
	RuleKinds = []ir.StatementKind{ir.StmtRule, ir.StmtRetractRule}
)

// Pattern returns the filter for an engine's journal rows about lit: facts
// of lit's signature whose arguments agree with lit's constants, and every
// rule whose head has lit's signature.
//
// Repeated variables in lit are not checked; callers that need an exact
// answer match the returned rows against lit themselves.
func Pattern(engineID string, lit ir.Literal) Predicate {
	var args []Predicate
	for i, a := range lit.Args {
		if a.IsConstant() {
			args = append(args, ArgEquals{Index: i, Term: a})
		}
	}

	preds := []Predicate{
		Equals{Column: ColEngineID, Value: engineID},
		Equals{Column: ColPredicate, Value: lit.Predicate},
		Equals{Column: ColArity, Value: lit.Arity()},
	}
	if len(args) > 0 {
		preds = append(preds, Or{Predicates: []Predicate{
			KindIn{Kinds: RuleKinds},
			And{Predicates: slices.Concat([]Predicate{KindIn{Kinds: FactKinds}}, args)},
		}})
	}
	return And{Predicates: preds}
}
