package ir

import (
	"fmt"
	"strings"
)

// BodyTerm is a sealed interface for rule body elements.
// Only Literal (a goal) and Constraint implement it.
type BodyTerm interface {
	bodyTerm()
	String() string
}

// Rule is a head literal implied by a conjunctive body of goals and
// constraints. Rules sharing a head signature are alternative derivations.
type Rule struct {
	Head Literal
	Body []BodyTerm
}

// NewRule builds a rule and checks that it is safe to evaluate.
//
// The body must be non-empty and every head variable must appear somewhere
// in the body; otherwise the rule fails with ErrUnsafeRule. Head variables
// mentioned only inside constraints are accepted: whether they can be bound
// depends on the query, and the resolver reports ErrUnboundVariable when
// they cannot.
func NewRule(head Literal, body ...BodyTerm) (Rule, error) {
	r := Rule{Head: head, Body: body}
	if err := r.Validate(); err != nil {
		return Rule{}, err
	}
	return r, nil
}

// MustRule is like NewRule but panics on error.
// Use only in tests or when inputs are known to be valid.
func MustRule(head Literal, body ...BodyTerm) Rule {
	r, err := NewRule(head, body...)
	if err != nil {
		panic(err)
	}
	return r
}

// Validate checks rule safety without constructing a new rule.
func (r Rule) Validate() error {
	if r.Head.Predicate == "" {
		return &Error{Code: CodeInvalidTerm, Message: "rule head predicate is required"}
	}
	if len(r.Body) == 0 {
		return &Error{Code: CodeUnsafeRule, Message: "rule body is empty", Subject: r.Head.String()}
	}
	bodyVars := make(map[string]bool)
	for i, bt := range r.Body {
		switch b := bt.(type) {
		case Literal:
			if b.Predicate == "" {
				return &Error{Code: CodeInvalidTerm, Message: fmt.Sprintf("body goal %d has no predicate", i), Subject: r.Head.String()}
			}
			for _, v := range b.Vars() {
				bodyVars[v] = true
			}
		case Constraint:
			if !ValidCompareOps[b.Op] {
				return &Error{Code: CodeInvalidTerm, Message: fmt.Sprintf("body constraint %d has unknown operator %q", i, b.Op), Subject: r.Head.String()}
			}
			if b.Left == nil || b.Right == nil {
				return &Error{Code: CodeInvalidTerm, Message: fmt.Sprintf("body constraint %d is missing an operand", i), Subject: r.Head.String()}
			}
			for _, v := range b.Vars() {
				bodyVars[v] = true
			}
		default:
			return &Error{Code: CodeInvalidTerm, Message: fmt.Sprintf("body element %d has unsupported type %T", i, bt), Subject: r.Head.String()}
		}
	}
	for _, v := range r.Head.Vars() {
		if !bodyVars[v] {
			return &Error{
				Code:    CodeUnsafeRule,
				Message: fmt.Sprintf("head variable %s does not appear in the body", v),
				Subject: r.Head.String(),
			}
		}
	}
	return nil
}

// Signature returns the head signature.
func (r Rule) Signature() Signature {
	return r.Head.Signature()
}

// Goals returns the literal goals of the body in order.
func (r Rule) Goals() []Literal {
	var goals []Literal
	for _, bt := range r.Body {
		if l, ok := bt.(Literal); ok {
			goals = append(goals, l)
		}
	}
	return goals
}

// Constraints returns the constraints of the body in order.
func (r Rule) Constraints() []Constraint {
	var cs []Constraint
	for _, bt := range r.Body {
		if c, ok := bt.(Constraint); ok {
			cs = append(cs, c)
		}
	}
	return cs
}

// Equal compares head and body structurally.
func (r Rule) Equal(other Rule) bool {
	return r.String() == other.String()
}

// String renders the rule as "head <= goal & (constraint)".
func (r Rule) String() string {
	parts := make([]string, len(r.Body))
	for i, bt := range r.Body {
		parts[i] = bt.String()
	}
	return r.Head.String() + " <= " + strings.Join(parts, " & ")
}
