package ir

import "fmt"

// StatementKind distinguishes program statements.
type StatementKind string

const (
	// StmtAssert adds a ground fact.
	StmtAssert StatementKind = "assert"
	// StmtRetract removes a ground fact.
	StmtRetract StatementKind = "retract"
	// StmtRule declares a rule.
	StmtRule StatementKind = "rule"
	// StmtRetractRule removes a previously declared rule.
	StmtRetractRule StatementKind = "retract_rule"
	// StmtAsk evaluates a query.
	StmtAsk StatementKind = "ask"
)

// ValidStatementKinds defines allowed statement kinds.
var ValidStatementKinds = map[StatementKind]bool{
	StmtAssert:      true,
	StmtRetract:     true,
	StmtRule:        true,
	StmtRetractRule: true,
	StmtAsk:         true,
}

// Statement is one entry of a program definition unit.
type Statement struct {
	Kind StatementKind

	// Literal is the fact for assert/retract, the query for ask and the
	// head for rule/retract_rule.
	Literal Literal

	// Body is set for rule/retract_rule only.
	Body []BodyTerm

	// Expect is an optional expectation for ask statements.
	// Nil means unchecked.
	Expect *Expectation
}

// Expectation describes the expected answer of an ask statement.
// An empty Tuples slice expects "no answer".
type Expectation struct {
	Tuples []Tuple
}

// Absent reports whether the expectation is "no answer".
func (e *Expectation) Absent() bool {
	return e != nil && len(e.Tuples) == 0
}

// AssertStatement creates an assert statement.
func AssertStatement(fact Literal) Statement {
	return Statement{Kind: StmtAssert, Literal: fact}
}

// RetractStatement creates a retract statement.
func RetractStatement(fact Literal) Statement {
	return Statement{Kind: StmtRetract, Literal: fact}
}

// RuleStatement creates a rule declaration statement.
func RuleStatement(r Rule) Statement {
	return Statement{Kind: StmtRule, Literal: r.Head, Body: r.Body}
}

// RetractRuleStatement creates a rule retraction statement.
func RetractRuleStatement(r Rule) Statement {
	return Statement{Kind: StmtRetractRule, Literal: r.Head, Body: r.Body}
}

// AskStatement creates a query statement with an optional expectation.
func AskStatement(query Literal, expect *Expectation) Statement {
	return Statement{Kind: StmtAsk, Literal: query, Expect: expect}
}

// Rule returns the rule carried by a rule or retract_rule statement.
func (s Statement) Rule() Rule {
	return Rule{Head: s.Literal, Body: s.Body}
}

// IsMutation reports whether the statement changes a store.
func (s Statement) IsMutation() bool {
	return s.Kind != StmtAsk
}

// String renders the statement in a compact prefix form.
func (s Statement) String() string {
	switch s.Kind {
	case StmtAssert:
		return "+ " + s.Literal.String()
	case StmtRetract:
		return "- " + s.Literal.String()
	case StmtRule:
		return s.Rule().String()
	case StmtRetractRule:
		return "- (" + s.Rule().String() + ")"
	case StmtAsk:
		return "? " + s.Literal.String()
	default:
		return fmt.Sprintf("<%s> %s", s.Kind, s.Literal)
	}
}
