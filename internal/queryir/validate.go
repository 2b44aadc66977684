package queryir

import (
	"errors"
	"fmt"
	"slices"

	"github.com/roach88/deduce/internal/ir"
)

// Validate checks that a query only names journal columns and that every
// predicate is well formed. All problems are reported together.
//
// Validate is a pure function with no side effects.
func Validate(q Query) error {
	v := &validator{}
	v.validateQuery(q)
	return errors.Join(v.errs...)
}

// validator accumulates errors during traversal.
type validator struct {
	errs []error
}

func (v *validator) addError(format string, args ...any) {
	v.errs = append(v.errs, fmt.Errorf(format, args...))
}

func (v *validator) validateQuery(q Query) {
	switch query := q.(type) {
	case nil:
		v.addError("nil query")
	case Select:
		v.validateSelect(query)
	case *Select:
		if query == nil {
			v.addError("nil query")
			return
		}
		v.validateSelect(*query)
	default:
		v.addError("unknown query type %T", q)
	}
}

func (v *validator) validateSelect(sel Select) {
	for _, c := range sel.Columns {
		v.validateColumn(c)
	}
	if sel.Limit < 0 {
		v.addError("limit %d is negative", sel.Limit)
	}
	if sel.Filter != nil {
		v.validatePredicate(sel.Filter)
	}
}

func (v *validator) validateColumn(c string) {
	if !slices.Contains(Columns, c) {
		v.addError("unknown journal column %q", c)
	}
}

func (v *validator) validatePredicate(p Predicate) {
	switch pred := p.(type) {
	case nil:
		v.addError("nil predicate")
	case Equals:
		v.validateColumn(pred.Column)
		switch pred.Value.(type) {
		case string, int, int64:
		default:
			v.addError("column %s compared to unsupported value %T", pred.Column, pred.Value)
		}
	case ArgEquals:
		if pred.Index < 0 {
			v.addError("argument index %d is negative", pred.Index)
		}
		if pred.Term.IsVariable() {
			v.addError("argument %d compared to variable %s", pred.Index, pred.Term)
		}
	case KindIn:
		if len(pred.Kinds) == 0 {
			v.addError("kind filter lists no kinds")
		}
		for _, k := range pred.Kinds {
			if !ir.ValidStatementKinds[k] || k == ir.StmtAsk {
				v.addError("kind %q is never journaled", k)
			}
		}
	case SeqRange:
		if pred.After < 0 {
			v.addError("seq range starts at negative seq %d", pred.After)
		}
		if pred.Through != 0 && pred.Through <= pred.After {
			v.addError("seq range (%d, %d] is empty", pred.After, pred.Through)
		}
	case And:
		for _, sub := range pred.Predicates {
			v.validatePredicate(sub)
		}
	case Or:
		for _, sub := range pred.Predicates {
			v.validatePredicate(sub)
		}
	default:
		v.addError("unknown predicate type %T", p)
	}
}
