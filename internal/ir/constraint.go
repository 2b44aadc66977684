package ir

import (
	"fmt"
)

// CompareOp is a comparison operator in a constraint.
type CompareOp string

const (
	OpEq CompareOp = "=="
	OpNe CompareOp = "!="
	OpLt CompareOp = "<"
	OpLe CompareOp = "<="
	OpGt CompareOp = ">"
	OpGe CompareOp = ">="
)

// ArithOp is an arithmetic operator in an expression.
type ArithOp string

const (
	OpAdd ArithOp = "+"
	OpSub ArithOp = "-"
	OpMul ArithOp = "*"
	OpDiv ArithOp = "/"
	OpMod ArithOp = "%"
)

// ValidCompareOps defines allowed comparison operators.
var ValidCompareOps = map[CompareOp]bool{
	OpEq: true, OpNe: true, OpLt: true, OpLe: true, OpGt: true, OpGe: true,
}

// ValidArithOps defines allowed arithmetic operators.
var ValidArithOps = map[ArithOp]bool{
	OpAdd: true, OpSub: true, OpMul: true, OpDiv: true, OpMod: true,
}

// Expr is a sealed interface for constraint operands.
// Only Term and Arith implement it.
type Expr interface {
	expr()
	String() string
}

// Arith is a binary arithmetic expression over terms.
type Arith struct {
	Op    ArithOp
	Left  Expr
	Right Expr
}

func (Arith) expr() {}

// String renders the expression in infix form.
func (a Arith) String() string {
	return fmt.Sprintf("%s %s %s", operandString(a.Left), a.Op, operandString(a.Right))
}

func operandString(e Expr) string {
	if a, ok := e.(Arith); ok {
		return "(" + a.String() + ")"
	}
	return e.String()
}

// Constraint is a non-relational body condition: a comparison between two
// expressions. Equality with one bare unbound variable binds it.
type Constraint struct {
	Op    CompareOp
	Left  Expr
	Right Expr
}

func (Constraint) bodyTerm() {}

// String renders the constraint as "(left op right)".
func (c Constraint) String() string {
	return fmt.Sprintf("(%s %s %s)", operandString(c.Left), c.Op, operandString(c.Right))
}

// Vars returns the distinct variable names in the constraint.
func (c Constraint) Vars() []string {
	var vars []string
	seen := make(map[string]bool)
	collectVars(c.Left, seen, &vars)
	collectVars(c.Right, seen, &vars)
	return vars
}

// ExprVars returns the distinct variable names in an expression.
func ExprVars(e Expr) []string {
	var vars []string
	collectVars(e, make(map[string]bool), &vars)
	return vars
}

func collectVars(e Expr, seen map[string]bool, vars *[]string) {
	switch v := e.(type) {
	case Term:
		if v.variable && !seen[v.value] {
			seen[v.value] = true
			*vars = append(*vars, v.value)
		}
	case Arith:
		collectVars(v.Left, seen, vars)
		collectVars(v.Right, seen, vars)
	}
}

// NewConstraint builds a constraint from raw operands.
// Operands may be Exprs or raw values accepted by Normalize.
func NewConstraint(op CompareOp, left, right any) (Constraint, error) {
	if !ValidCompareOps[op] {
		return Constraint{}, &Error{Code: CodeInvalidTerm, Message: fmt.Sprintf("unknown comparison operator %q", op)}
	}
	l, err := toExpr(left)
	if err != nil {
		return Constraint{}, fmt.Errorf("constraint left operand: %w", err)
	}
	r, err := toExpr(right)
	if err != nil {
		return Constraint{}, fmt.Errorf("constraint right operand: %w", err)
	}
	return Constraint{Op: op, Left: l, Right: r}, nil
}

// NewArith builds an arithmetic expression from raw operands.
func NewArith(op ArithOp, left, right any) (Arith, error) {
	if !ValidArithOps[op] {
		return Arith{}, &Error{Code: CodeInvalidTerm, Message: fmt.Sprintf("unknown arithmetic operator %q", op)}
	}
	l, err := toExpr(left)
	if err != nil {
		return Arith{}, fmt.Errorf("arithmetic left operand: %w", err)
	}
	r, err := toExpr(right)
	if err != nil {
		return Arith{}, fmt.Errorf("arithmetic right operand: %w", err)
	}
	return Arith{Op: op, Left: l, Right: r}, nil
}

func toExpr(raw any) (Expr, error) {
	switch v := raw.(type) {
	case Term:
		return v, nil
	case Arith:
		return v, nil
	case *Arith:
		return *v, nil
	}
	return Normalize(raw)
}

// Eq builds an equality constraint.
func Eq(left, right Expr) Constraint { return Constraint{Op: OpEq, Left: left, Right: right} }

// Ne builds an inequality constraint.
func Ne(left, right Expr) Constraint { return Constraint{Op: OpNe, Left: left, Right: right} }

// Lt builds a less-than constraint.
func Lt(left, right Expr) Constraint { return Constraint{Op: OpLt, Left: left, Right: right} }

// Le builds a less-or-equal constraint.
func Le(left, right Expr) Constraint { return Constraint{Op: OpLe, Left: left, Right: right} }

// Gt builds a greater-than constraint.
func Gt(left, right Expr) Constraint { return Constraint{Op: OpGt, Left: left, Right: right} }

// Ge builds a greater-or-equal constraint.
func Ge(left, right Expr) Constraint { return Constraint{Op: OpGe, Left: left, Right: right} }

// Add builds left + right.
func Add(left, right Expr) Arith { return Arith{Op: OpAdd, Left: left, Right: right} }

// Sub builds left - right.
func Sub(left, right Expr) Arith { return Arith{Op: OpSub, Left: left, Right: right} }

// Mul builds left * right.
func Mul(left, right Expr) Arith { return Arith{Op: OpMul, Left: left, Right: right} }

// Div builds left / right.
func Div(left, right Expr) Arith { return Arith{Op: OpDiv, Left: left, Right: right} }

// Mod builds left % right.
func Mod(left, right Expr) Arith { return Arith{Op: OpMod, Left: left, Right: right} }
