package engine

import "github.com/roach88/deduce/internal/ir"

// arityRegistry remembers the arity each predicate name was first used with.
type arityRegistry struct {
	arities map[string]int
}

func newArityRegistry() *arityRegistry {
	return &arityRegistry{arities: make(map[string]int)}
}

// check fails with ErrArityMismatch if any literal disagrees with a known
// arity or with another literal in the same batch. Nothing is registered.
func (a *arityRegistry) check(enabled bool, lits ...ir.Literal) error {
	if !enabled {
		return nil
	}
	batch := make(map[string]int, len(lits))
	for _, l := range lits {
		want, ok := a.arities[l.Predicate]
		if !ok {
			want, ok = batch[l.Predicate]
		}
		if ok && want != l.Arity() {
			return ir.NewError(ir.CodeArityMismatch, l.String(),
				"predicate %s is used with arity %d, declared with arity %d", l.Predicate, l.Arity(), want)
		}
		batch[l.Predicate] = l.Arity()
	}
	return nil
}

// register records the arities of lits. Call only after check passed.
func (a *arityRegistry) register(lits ...ir.Literal) {
	for _, l := range lits {
		if _, ok := a.arities[l.Predicate]; !ok {
			a.arities[l.Predicate] = l.Arity()
		}
	}
}
