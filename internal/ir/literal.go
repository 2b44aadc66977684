package ir

import (
	"fmt"
	"strings"
)

// Signature identifies a relation: predicate name plus arity.
type Signature struct {
	Predicate string `json:"predicate"`
	Arity     int    `json:"arity"`
}

// String renders the signature as "name/arity".
func (s Signature) String() string {
	return fmt.Sprintf("%s/%d", s.Predicate, s.Arity)
}

// Literal is a predicate applied to an ordered sequence of terms.
//
// Arguments are Terms only. Use NewLiteral to build a Literal from raw values;
// it normalizes constants and rejects nested literals.
type Literal struct {
	Predicate string
	Args      []Term
}

func (Literal) bodyTerm() {}

// NewLiteral builds a literal, normalizing every argument.
//
// Arguments may be Terms (use Var for variables) or raw values accepted by
// Normalize. A Literal argument fails with ErrNestedLiteral before anything
// reaches a store.
func NewLiteral(predicate string, args ...any) (Literal, error) {
	if predicate == "" {
		return Literal{}, &Error{Code: CodeInvalidTerm, Message: "predicate name is required"}
	}
	terms := make([]Term, len(args))
	for i, arg := range args {
		t, err := Normalize(arg)
		if err != nil {
			return Literal{}, fmt.Errorf("%s argument %d: %w", predicate, i, err)
		}
		terms[i] = t
	}
	return Literal{Predicate: predicate, Args: terms}, nil
}

// MustLiteral is like NewLiteral but panics on error.
// Use only in tests or when inputs are known to be valid.
func MustLiteral(predicate string, args ...any) Literal {
	l, err := NewLiteral(predicate, args...)
	if err != nil {
		panic(err)
	}
	return l
}

// Arity returns the number of arguments.
func (l Literal) Arity() int {
	return len(l.Args)
}

// Signature returns the relation key of the literal.
func (l Literal) Signature() Signature {
	return Signature{Predicate: l.Predicate, Arity: len(l.Args)}
}

// IsGround reports whether the literal contains no variables.
func (l Literal) IsGround() bool {
	for _, a := range l.Args {
		if a.IsVariable() {
			return false
		}
	}
	return true
}

// Vars returns the distinct variable names in first-occurrence order.
func (l Literal) Vars() []string {
	var vars []string
	seen := make(map[string]bool)
	for _, a := range l.Args {
		if a.IsVariable() && !seen[a.value] {
			seen[a.value] = true
			vars = append(vars, a.value)
		}
	}
	return vars
}

// Tuple returns the constant values of a ground literal.
// Returns false if the literal contains a variable.
func (l Literal) Tuple() (Tuple, bool) {
	t := make(Tuple, len(l.Args))
	for i, a := range l.Args {
		if a.IsVariable() {
			return nil, false
		}
		t[i] = a.value
	}
	return t, true
}

// Substitute replaces bound variables with their values.
// Unbound variables are kept as variables.
func (l Literal) Substitute(s Subst) Literal {
	args := make([]Term, len(l.Args))
	for i, a := range l.Args {
		if a.IsVariable() {
			if v, ok := s.Lookup(a.value); ok {
				args[i] = Term{value: v}
				continue
			}
		}
		args[i] = a
	}
	return Literal{Predicate: l.Predicate, Args: args}
}

// Equal compares predicate and arguments.
func (l Literal) Equal(other Literal) bool {
	if l.Predicate != other.Predicate || len(l.Args) != len(other.Args) {
		return false
	}
	for i := range l.Args {
		if !l.Args[i].Equal(other.Args[i]) {
			return false
		}
	}
	return true
}

// String renders the literal as "name(arg, ...)".
func (l Literal) String() string {
	if len(l.Args) == 0 {
		return l.Predicate + "()"
	}
	parts := make([]string, len(l.Args))
	for i, a := range l.Args {
		parts[i] = a.String()
	}
	return l.Predicate + "(" + strings.Join(parts, ", ") + ")"
}

// GroundLiteral builds a ground literal from a signature's predicate and a tuple.
func GroundLiteral(predicate string, t Tuple) Literal {
	args := make([]Term, len(t))
	for i, v := range t {
		args[i] = Term{value: v}
	}
	return Literal{Predicate: predicate, Args: args}
}
