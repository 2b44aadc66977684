// Package factstore holds ground facts grouped by signature.
//
// Each relation keeps its tuples in insertion order with a per-argument value
// index, so lookups with any bound position touch only the candidate tuples
// for the most selective bound value.
package factstore

import (
	"iter"
	"maps"
	"slices"

	"github.com/roach88/deduce/internal/ir"
)

// Store is a deduplicated set of ground facts per signature.
//
// Store is not safe for concurrent use; the engine serializes access.
type Store struct {
	relations map[ir.Signature]*relation
}

// relation stores the tuples of one signature.
//
// Retracted rows become tombstones (nil) so that sequence numbers held by the
// indexes stay valid; compact reclaims them once they dominate.
type relation struct {
	rows  []ir.Tuple
	byKey map[string]int
	index []map[string][]int
	live  int
}

// New creates an empty fact store.
func New() *Store {
	return &Store{relations: make(map[ir.Signature]*relation)}
}

// Assert inserts a ground fact.
// Returns true if the fact was new. Fails with ErrNonGroundFact if the
// literal contains a variable.
func (s *Store) Assert(fact ir.Literal) (bool, error) {
	t, ok := fact.Tuple()
	if !ok {
		return false, ir.NewError(ir.CodeNonGroundFact, fact.String(), "facts must be ground")
	}
	sig := fact.Signature()
	rel, ok := s.relations[sig]
	if !ok {
		rel = newRelation(sig.Arity)
		s.relations[sig] = rel
	}
	return rel.insert(t), nil
}

// Retract removes a ground fact.
// Returns false (and no error) when the fact is absent.
func (s *Store) Retract(fact ir.Literal) (bool, error) {
	t, ok := fact.Tuple()
	if !ok {
		return false, ir.NewError(ir.CodeNonGroundFact, fact.String(), "retract requires a ground fact")
	}
	rel, ok := s.relations[fact.Signature()]
	if !ok {
		return false, nil
	}
	if !rel.remove(t) {
		return false, nil
	}
	if rel.live == 0 {
		delete(s.relations, fact.Signature())
	}
	return true, nil
}

// Contains reports whether a ground fact is stored.
func (s *Store) Contains(fact ir.Literal) bool {
	t, ok := fact.Tuple()
	if !ok {
		return false
	}
	rel, ok := s.relations[fact.Signature()]
	if !ok {
		return false
	}
	_, ok = rel.byKey[t.Key()]
	return ok
}

// Lookup yields the tuples of sig that match pattern, in insertion order.
//
// Constants in the pattern must match exactly and a repeated variable must
// bind to the same value everywhere it occurs. The sequence is lazy and can
// be ranged over more than once; it reflects the store at iteration time and
// must not be consumed while the store is being mutated.
func (s *Store) Lookup(sig ir.Signature, pattern []ir.Term) iter.Seq[ir.Tuple] {
	return func(yield func(ir.Tuple) bool) {
		rel, ok := s.relations[sig]
		if !ok || len(pattern) != sig.Arity {
			return
		}
		candidates, indexed := rel.candidates(pattern)
		if indexed {
			for _, seq := range candidates {
				t := rel.rows[seq]
				if t == nil || !ir.Matches(pattern, t) {
					continue
				}
				if !yield(t) {
					return
				}
			}
			return
		}
		for _, t := range rel.rows {
			if t == nil || !ir.Matches(pattern, t) {
				continue
			}
			if !yield(t) {
				return
			}
		}
	}
}

// Len returns the number of facts for sig.
func (s *Store) Len(sig ir.Signature) int {
	rel, ok := s.relations[sig]
	if !ok {
		return 0
	}
	return rel.live
}

// Size returns the total number of facts across all signatures.
func (s *Store) Size() int {
	n := 0
	for _, rel := range s.relations {
		n += rel.live
	}
	return n
}

// Signatures returns the signatures that currently hold facts, sorted.
func (s *Store) Signatures() []ir.Signature {
	return slices.SortedFunc(maps.Keys(s.relations), compareSignatures)
}

// Tuples returns a copy of the facts for sig in insertion order.
func (s *Store) Tuples(sig ir.Signature) []ir.Tuple {
	rel, ok := s.relations[sig]
	if !ok {
		return nil
	}
	out := make([]ir.Tuple, 0, rel.live)
	for _, t := range rel.rows {
		if t != nil {
			out = append(out, slices.Clone(t))
		}
	}
	return out
}

func compareSignatures(a, b ir.Signature) int {
	if a.Predicate != b.Predicate {
		if a.Predicate < b.Predicate {
			return -1
		}
		return 1
	}
	return a.Arity - b.Arity
}

func newRelation(arity int) *relation {
	index := make([]map[string][]int, arity)
	for i := range index {
		index[i] = make(map[string][]int)
	}
	return &relation{
		byKey: make(map[string]int),
		index: index,
	}
}

func (r *relation) insert(t ir.Tuple) bool {
	key := t.Key()
	if _, ok := r.byKey[key]; ok {
		return false
	}
	seq := len(r.rows)
	r.rows = append(r.rows, slices.Clone(t))
	r.byKey[key] = seq
	for i, v := range t {
		r.index[i][v] = append(r.index[i][v], seq)
	}
	r.live++
	return true
}

func (r *relation) remove(t ir.Tuple) bool {
	key := t.Key()
	seq, ok := r.byKey[key]
	if !ok {
		return false
	}
	delete(r.byKey, key)
	r.rows[seq] = nil
	for i, v := range t {
		seqs := r.index[i][v]
		if j, found := slices.BinarySearch(seqs, seq); found {
			seqs = slices.Delete(seqs, j, j+1)
		}
		if len(seqs) == 0 {
			delete(r.index[i], v)
		} else {
			r.index[i][v] = seqs
		}
	}
	r.live--
	if len(r.rows) > 32 && r.live < len(r.rows)/2 {
		r.compact()
	}
	return true
}

// compact drops tombstones and rebuilds the indexes.
func (r *relation) compact() {
	rows := make([]ir.Tuple, 0, r.live)
	for _, t := range r.rows {
		if t != nil {
			rows = append(rows, t)
		}
	}
	r.rows = rows
	clear(r.byKey)
	for i := range r.index {
		clear(r.index[i])
	}
	for seq, t := range rows {
		r.byKey[t.Key()] = seq
		for i, v := range t {
			r.index[i][v] = append(r.index[i][v], seq)
		}
	}
}

// candidates returns the sequence numbers for the most selective bound
// position. indexed is false when the pattern binds nothing.
func (r *relation) candidates(pattern []ir.Term) (seqs []int, indexed bool) {
	for i, p := range pattern {
		if p.IsVariable() {
			continue
		}
		bucket := r.index[i][p.Value()]
		if !indexed || len(bucket) < len(seqs) {
			seqs, indexed = bucket, true
		}
		if len(seqs) == 0 {
			break
		}
	}
	return seqs, indexed
}
