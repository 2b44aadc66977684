// Package clausestore holds rules grouped by head signature.
package clausestore

import (
	"fmt"
	"slices"

	"github.com/roach88/deduce/internal/ir"
)

// Store keeps rules per head signature in declaration order.
// Identical rules are stored once, keyed by their content hash.
//
// Store is not safe for concurrent use; the engine serializes access.
type Store struct {
	rules map[ir.Signature][]entry
	ids   map[string]ir.Signature
}

type entry struct {
	id   string
	rule ir.Rule
}

// New creates an empty clause store.
func New() *Store {
	return &Store{
		rules: make(map[ir.Signature][]entry),
		ids:   make(map[string]ir.Signature),
	}
}

// AddRule validates and stores a rule.
// Returns false if an identical rule was already declared.
func (s *Store) AddRule(r ir.Rule) (bool, error) {
	if err := r.Validate(); err != nil {
		return false, err
	}
	id, err := ir.RuleID(r)
	if err != nil {
		return false, fmt.Errorf("add rule %s: %w", r.Head, err)
	}
	if _, ok := s.ids[id]; ok {
		return false, nil
	}
	sig := r.Signature()
	s.rules[sig] = append(s.rules[sig], entry{id: id, rule: r})
	s.ids[id] = sig
	return true, nil
}

// RemoveRule removes a previously declared rule.
// Returns false if no identical rule is stored.
func (s *Store) RemoveRule(r ir.Rule) bool {
	id, err := ir.RuleID(r)
	if err != nil {
		return false
	}
	sig, ok := s.ids[id]
	if !ok {
		return false
	}
	delete(s.ids, id)
	s.rules[sig] = slices.DeleteFunc(s.rules[sig], func(e entry) bool { return e.id == id })
	if len(s.rules[sig]) == 0 {
		delete(s.rules, sig)
	}
	return true
}

// RulesFor returns the rules whose head has sig, in declaration order.
// The returned slice is a copy.
func (s *Store) RulesFor(sig ir.Signature) []ir.Rule {
	entries := s.rules[sig]
	out := make([]ir.Rule, len(entries))
	for i, e := range entries {
		out[i] = e.rule
	}
	return out
}

// Contains reports whether an identical rule is stored.
func (s *Store) Contains(r ir.Rule) bool {
	id, err := ir.RuleID(r)
	if err != nil {
		return false
	}
	_, ok := s.ids[id]
	return ok
}

// HasRules reports whether any rule defines sig.
func (s *Store) HasRules(sig ir.Signature) bool {
	return len(s.rules[sig]) > 0
}

// Len returns the total number of stored rules.
func (s *Store) Len() int {
	return len(s.ids)
}

// All returns every rule, grouped by sorted signature and in declaration
// order within each group.
func (s *Store) All() []ir.Rule {
	sigs := make([]ir.Signature, 0, len(s.rules))
	for sig := range s.rules {
		sigs = append(sigs, sig)
	}
	slices.SortFunc(sigs, func(a, b ir.Signature) int {
		if a.Predicate != b.Predicate {
			if a.Predicate < b.Predicate {
				return -1
			}
			return 1
		}
		return a.Arity - b.Arity
	})
	var out []ir.Rule
	for _, sig := range sigs {
		out = append(out, s.RulesFor(sig)...)
	}
	return out
}
