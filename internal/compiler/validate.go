package compiler

import (
	"fmt"

	"github.com/roach88/deduce/internal/ir"
)

// Validation error codes (E100-E199)
const (
	ErrEmptyProgram      = "E101" // program has no statements
	ErrNonGroundFact     = "E102" // assert/retract with a variable
	ErrArityMismatch     = "E103" // predicate used with two arities
	ErrUnsafeRule        = "E104" // head variable missing from body, or empty body
	ErrUnbindableVar     = "E105" // constraint variable nothing can bind
	ErrExpectWidth       = "E106" // expectation tuple width differs from query arity
	ErrUnknownStatement  = "E107" // statement kind not recognised
	ErrInvalidConstraint = "E108" // constraint with unknown operator or missing operand
)

// ValidationError represents a static validation error.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
	Line    int    `json:"line,omitempty"`
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("[%s] line %d: %s: %s", e.Code, e.Line, e.Field, e.Message)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Code, e.Field, e.Message)
}

// Validate checks a compiled program without running it.
// Returns all errors found (does not fail-fast).
//
// Arity conflicts are reported only when strictArity is set, matching the
// engine's WithArityCheck option.
func Validate(p *Program, strictArity bool) []ValidationError {
	var errs []ValidationError
	arities := make(map[string]arityUse)

	total := 0
	for ui, unit := range p.Units {
		prefix := unit.Field
		if prefix == "" {
			prefix = fmt.Sprintf("units[%d].statements", ui)
		}
		for si, st := range unit.Statements {
			total++
			field := fmt.Sprintf("%s[%d]", prefix, si)
			line := 0
			if si < len(unit.Pos) && unit.Pos[si].IsValid() {
				line = unit.Pos[si].Line()
			}
			for _, e := range validateStatement(st, field) {
				e.Line = line
				errs = append(errs, e)
			}
			if strictArity {
				for _, e := range checkArities(arities, st, field) {
					e.Line = line
					errs = append(errs, e)
				}
			}
		}
	}

	if total == 0 {
		errs = append(errs, ValidationError{
			Field:   "program",
			Message: "program has no statements",
			Code:    ErrEmptyProgram,
		})
	}
	return errs
}

// ValidateStatements checks a flat statement list, as a single unit.
func ValidateStatements(stmts []ir.Statement, strictArity bool) []ValidationError {
	return Validate(&Program{Units: []Unit{{Statements: stmts}}}, strictArity)
}

func validateStatement(st ir.Statement, field string) []ValidationError {
	var errs []ValidationError

	switch st.Kind {
	case ir.StmtAssert, ir.StmtRetract:
		// E102: facts must be ground
		if !st.Literal.IsGround() {
			errs = append(errs, ValidationError{
				Field:   field,
				Message: fmt.Sprintf("%s of non-ground fact %s", st.Kind, st.Literal),
				Code:    ErrNonGroundFact,
			})
		}

	case ir.StmtRule, ir.StmtRetractRule:
		r := st.Rule()
		if err := r.Validate(); err != nil {
			code := ErrUnsafeRule
			if ir.CodeOf(err) == ir.CodeInvalidTerm {
				code = ErrInvalidConstraint
			}
			errs = append(errs, ValidationError{
				Field:   field,
				Message: err.Error(),
				Code:    code,
			})
			break
		}
		// E105: only declarations can flounder
		if st.Kind == ir.StmtRule {
			for _, v := range unbindableVars(r) {
				errs = append(errs, ValidationError{
					Field:   field,
					Message: fmt.Sprintf("rule %s: variable %s appears only in constraints and is never bound", r, v),
					Code:    ErrUnbindableVar,
				})
			}
		}

	case ir.StmtAsk:
		// E106: expectation width
		if st.Expect != nil {
			for i, t := range st.Expect.Tuples {
				if len(t) != st.Literal.Arity() {
					errs = append(errs, ValidationError{
						Field:   fmt.Sprintf("%s.expect[%d]", field, i),
						Message: fmt.Sprintf("expected %d values for %s, got %d", st.Literal.Arity(), st.Literal, len(t)),
						Code:    ErrExpectWidth,
					})
				}
			}
		}

	default:
		errs = append(errs, ValidationError{
			Field:   field,
			Message: fmt.Sprintf("unknown statement kind %q", st.Kind),
			Code:    ErrUnknownStatement,
		})
	}

	return errs
}

// arityUse remembers where a predicate was first seen.
type arityUse struct {
	arity int
	field string
}

// checkArities reports E103 for every literal whose predicate was first
// used with a different arity.
func checkArities(seen map[string]arityUse, st ir.Statement, field string) []ValidationError {
	lits := []ir.Literal{st.Literal}
	if st.Kind == ir.StmtRule || st.Kind == ir.StmtRetractRule {
		lits = append(lits, st.Rule().Goals()...)
	}

	var errs []ValidationError
	for _, l := range lits {
		use, ok := seen[l.Predicate]
		if !ok {
			seen[l.Predicate] = arityUse{arity: l.Arity(), field: field}
			continue
		}
		if use.arity != l.Arity() {
			errs = append(errs, ValidationError{
				Field:   field,
				Message: fmt.Sprintf("%s used with arity %d, first used with arity %d at %s", l.Predicate, l.Arity(), use.arity, use.field),
				Code:    ErrArityMismatch,
			})
		}
	}
	return errs
}

// unbindableVars returns the constraint variables of r that no goal, head
// argument or equality chain can ever bind. Such a constraint always
// flounders at run time.
func unbindableVars(r ir.Rule) []string {
	bound := make(map[string]bool)
	for _, v := range r.Head.Vars() {
		bound[v] = true
	}
	for _, g := range r.Goals() {
		for _, v := range g.Vars() {
			bound[v] = true
		}
	}

	// X == expr binds X once every variable of expr is bindable.
	cs := r.Constraints()
	for changed := true; changed; {
		changed = false
		for _, c := range cs {
			if c.Op != ir.OpEq {
				continue
			}
			for _, side := range [][2]ir.Expr{{c.Left, c.Right}, {c.Right, c.Left}} {
				t, ok := side[0].(ir.Term)
				if !ok || !t.IsVariable() || bound[t.Value()] {
					continue
				}
				if allBound(ir.ExprVars(side[1]), bound) {
					bound[t.Value()] = true
					changed = true
				}
			}
		}
	}

	var out []string
	seen := make(map[string]bool)
	for _, c := range cs {
		for _, v := range c.Vars() {
			if !bound[v] && !seen[v] {
				seen[v] = true
				out = append(out, v)
			}
		}
	}
	return out
}

func allBound(vars []string, bound map[string]bool) bool {
	for _, v := range vars {
		if !bound[v] {
			return false
		}
	}
	return true
}
