package ir

import (
	"slices"
	"strings"
)

// Relation is the answer to a query: a set of ground tuples with the
// query's arity.
//
// A nil *Relation is the "no answer" indicator returned by Ask. A Relation is
// created fresh per query and has no back-reference into any store.
type Relation struct {
	query  Literal
	tuples []Tuple
	seen   map[string]struct{}
	sorted bool
}

// NewRelation creates an empty relation for a query.
func NewRelation(query Literal) *Relation {
	return &Relation{
		query:  query,
		seen:   make(map[string]struct{}),
		sorted: true,
	}
}

// Add inserts a tuple if absent. Returns true if the tuple was new.
func (r *Relation) Add(t Tuple) bool {
	key := t.Key()
	if _, ok := r.seen[key]; ok {
		return false
	}
	r.seen[key] = struct{}{}
	r.tuples = append(r.tuples, slices.Clone(t))
	r.sorted = false
	return true
}

// Query returns the literal this relation answers.
func (r *Relation) Query() Literal {
	if r == nil {
		return Literal{}
	}
	return r.query
}

// Len returns the number of tuples. Safe on a nil relation.
func (r *Relation) Len() int {
	if r == nil {
		return 0
	}
	return len(r.tuples)
}

// Tuples returns the tuples in deterministic order.
func (r *Relation) Tuples() []Tuple {
	if r == nil {
		return nil
	}
	r.sort()
	out := make([]Tuple, len(r.tuples))
	for i, t := range r.tuples {
		out[i] = slices.Clone(t)
	}
	return out
}

// Strings returns the tuples as plain string slices in deterministic order.
func (r *Relation) Strings() [][]string {
	tuples := r.Tuples()
	out := make([][]string, len(tuples))
	for i, t := range tuples {
		out[i] = []string(t)
	}
	return out
}

// Contains reports whether a tuple of raw values is in the relation.
// Values are normalized the same way facts are.
func (r *Relation) Contains(values ...any) bool {
	if r == nil {
		return false
	}
	t := make(Tuple, len(values))
	for i, v := range values {
		term, err := Normalize(v)
		if err != nil || term.IsVariable() {
			return false
		}
		t[i] = term.Value()
	}
	_, ok := r.seen[t.Key()]
	return ok
}

// Bindings projects each tuple onto the query's free variables, in
// query-argument order.
func (r *Relation) Bindings() []map[string]string {
	if r == nil {
		return nil
	}
	r.sort()
	out := make([]map[string]string, 0, len(r.tuples))
	for _, t := range r.tuples {
		s, ok := Match(r.query.Args, t, Subst{})
		if !ok {
			continue
		}
		out = append(out, s.Map())
	}
	return out
}

// String renders the relation as "{(a, b), (c, d)}".
func (r *Relation) String() string {
	if r == nil {
		return "<no answer>"
	}
	tuples := r.Tuples()
	parts := make([]string, len(tuples))
	for i, t := range tuples {
		parts[i] = t.String()
	}
	return "{" + strings.Join(parts, ", ") + "}"
}

func (r *Relation) sort() {
	if r.sorted {
		return
	}
	slices.SortFunc(r.tuples, CompareTuples)
	r.sorted = true
}
