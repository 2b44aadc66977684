// Package constraint evaluates comparison and arithmetic conditions in rule
// bodies against a substitution.
//
// A constraint is evaluable once every variable it mentions is bound, or,
// for equality, when one side is a bare unbound variable and the other side
// is fully bound; the latter binds the variable instead of comparing.
// Ordering and arithmetic use the exact decimal value of canonical
// constants. Sums, differences, products and terminating quotients are
// exact; other quotients keep 34 significant digits.
package constraint

import (
	"fmt"

	"github.com/cockroachdb/apd/v3"

	"github.com/roach88/deduce/internal/ir"
)

// Ready reports whether c can be evaluated under s without failing with
// ErrUnboundVariable.
func Ready(c ir.Constraint, s ir.Subst) bool {
	if bound(c.Left, s) && bound(c.Right, s) {
		return true
	}
	_, _, ok := bindTarget(c, s)
	return ok
}

// Evaluate checks c under s.
//
// It returns the (possibly extended) substitution and whether the constraint
// holds. An equality with one bare unbound variable binds it to the value of
// the other side. Evaluating an under-bound constraint fails with
// ErrUnboundVariable.
func Evaluate(c ir.Constraint, s ir.Subst) (ir.Subst, bool, error) {
	if name, other, ok := bindTarget(c, s); ok {
		v, err := EvalExpr(other, s)
		if err != nil {
			return s, false, err
		}
		return s.Bind(name, v), true, nil
	}

	left, err := EvalExpr(c.Left, s)
	if err != nil {
		return s, false, fmt.Errorf("%s: %w", c, err)
	}
	right, err := EvalExpr(c.Right, s)
	if err != nil {
		return s, false, fmt.Errorf("%s: %w", c, err)
	}

	switch c.Op {
	case ir.OpEq:
		return s, left == right, nil
	case ir.OpNe:
		return s, left != right, nil
	}

	l, err := parse(left)
	if err != nil {
		return s, false, fmt.Errorf("%s: %w", c, err)
	}
	r, err := parse(right)
	if err != nil {
		return s, false, fmt.Errorf("%s: %w", c, err)
	}
	cmp := l.Cmp(r)
	switch c.Op {
	case ir.OpLt:
		return s, cmp < 0, nil
	case ir.OpLe:
		return s, cmp <= 0, nil
	case ir.OpGt:
		return s, cmp > 0, nil
	case ir.OpGe:
		return s, cmp >= 0, nil
	default:
		return s, false, ir.NewError(ir.CodeInvalidTerm, c.String(), "unknown comparison operator %q", c.Op)
	}
}

// EvalExpr computes the canonical value of an expression under s.
func EvalExpr(e ir.Expr, s ir.Subst) (string, error) {
	switch v := e.(type) {
	case ir.Term:
		val, ok := s.Resolve(v)
		if !ok {
			return "", ir.NewError(ir.CodeUnboundVariable, v.Value(), "variable is not bound")
		}
		return val, nil
	case ir.Arith:
		left, err := EvalExpr(v.Left, s)
		if err != nil {
			return "", err
		}
		right, err := EvalExpr(v.Right, s)
		if err != nil {
			return "", err
		}
		l, err := parse(left)
		if err != nil {
			return "", err
		}
		r, err := parse(right)
		if err != nil {
			return "", err
		}
		n, err := apply(v.Op, l, r)
		if err != nil {
			return "", fmt.Errorf("%s: %w", v, err)
		}
		return ir.FormatDecimal(n), nil
	default:
		return "", ir.NewError(ir.CodeInvalidTerm, "", "unsupported expression %T", e)
	}
}

// bindTarget returns the variable an equality would bind and the expression
// providing its value.
func bindTarget(c ir.Constraint, s ir.Subst) (string, ir.Expr, bool) {
	if c.Op != ir.OpEq {
		return "", nil, false
	}
	if name, ok := unboundVar(c.Left, s); ok && bound(c.Right, s) {
		return name, c.Right, true
	}
	if name, ok := unboundVar(c.Right, s); ok && bound(c.Left, s) {
		return name, c.Left, true
	}
	return "", nil, false
}

func unboundVar(e ir.Expr, s ir.Subst) (string, bool) {
	t, ok := e.(ir.Term)
	if !ok || !t.IsVariable() {
		return "", false
	}
	if _, isBound := s.Lookup(t.Value()); isBound {
		return "", false
	}
	return t.Value(), true
}

func bound(e ir.Expr, s ir.Subst) bool {
	for _, name := range ir.ExprVars(e) {
		if _, ok := s.Lookup(name); !ok {
			return false
		}
	}
	return true
}

// divisionPrecision is the number of significant digits kept when a
// quotient does not terminate.
const divisionPrecision = 34

func parse(v string) (*apd.Decimal, error) {
	d, ok := ir.ParseDecimal(v)
	if !ok {
		return nil, ir.NewError(ir.CodeTypeMismatch, v, "constant is not numeric")
	}
	return d, nil
}

// arithContext has room for every digit of an exact sum, difference,
// product or integral quotient of a and b.
func arithContext(a, b *apd.Decimal) *apd.Context {
	span := int64(a.Exponent) - int64(b.Exponent)
	if span < 0 {
		span = -span
	}
	digits := a.NumDigits() + b.NumDigits() + span + 1
	return apd.BaseContext.WithPrecision(uint32(max(digits, divisionPrecision)))
}

func apply(op ir.ArithOp, a, b *apd.Decimal) (*apd.Decimal, error) {
	if (op == ir.OpDiv || op == ir.OpMod) && b.IsZero() {
		return nil, ir.NewError(ir.CodeArithmetic, string(op), "division by zero")
	}

	ctx := arithContext(a, b)
	r := new(apd.Decimal)
	var err error
	switch op {
	case ir.OpAdd:
		_, err = ctx.Add(r, a, b)
	case ir.OpSub:
		_, err = ctx.Sub(r, a, b)
	case ir.OpMul:
		_, err = ctx.Mul(r, a, b)
	case ir.OpDiv:
		_, err = ctx.Quo(r, a, b)
	case ir.OpMod:
		// Floored: the remainder takes the sign of the divisor.
		if _, err = ctx.Rem(r, a, b); err == nil && !r.IsZero() && r.Negative != b.Negative {
			_, err = ctx.Add(r, r, b)
		}
	default:
		return nil, ir.NewError(ir.CodeInvalidTerm, string(op), "unknown arithmetic operator")
	}
	if err != nil {
		return nil, ir.NewError(ir.CodeArithmetic, string(op), "%v", err)
	}
	return r, nil
}
