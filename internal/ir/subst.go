package ir

import (
	"maps"
	"slices"
	"strings"
)

// Subst maps variable names to canonical constants.
//
// Subst is an immutable snapshot: Bind copies. The zero Subst is empty and
// ready to use.
type Subst struct {
	m map[string]string
}

// Lookup returns the value bound to a variable.
func (s Subst) Lookup(name string) (string, bool) {
	v, ok := s.m[name]
	return v, ok
}

// Bind returns a new substitution with name bound to value.
// The receiver is never mutated.
func (s Subst) Bind(name, value string) Subst {
	m := make(map[string]string, len(s.m)+1)
	maps.Copy(m, s.m)
	m[name] = value
	return Subst{m: m}
}

// Len returns the number of bound variables.
func (s Subst) Len() int {
	return len(s.m)
}

// Resolve returns the value of a term under s: a constant's own value, or
// the binding of a variable.
func (s Subst) Resolve(t Term) (string, bool) {
	if !t.variable {
		return t.value, true
	}
	return s.Lookup(t.value)
}

// Map returns a copy of the bindings.
func (s Subst) Map() map[string]string {
	return maps.Clone(s.m)
}

// String renders the bindings sorted by variable name.
func (s Subst) String() string {
	names := slices.Sorted(maps.Keys(s.m))
	parts := make([]string, len(names))
	for i, n := range names {
		parts[i] = n + "=" + Term{value: s.m[n]}.String()
	}
	return "{" + strings.Join(parts, ", ") + "}"
}

// Match unifies a pattern of terms with a ground tuple under s.
//
// Constants must equal the tuple value at their position; variables already
// bound must agree; unbound variables are bound, so a variable repeated in
// the pattern must match the same value everywhere. Returns the extended
// substitution and true on success.
func Match(pattern []Term, t Tuple, s Subst) (Subst, bool) {
	if len(pattern) != len(t) {
		return s, false
	}
	out := s
	for i, p := range pattern {
		if !p.variable {
			if p.value != t[i] {
				return s, false
			}
			continue
		}
		if v, ok := out.Lookup(p.value); ok {
			if v != t[i] {
				return s, false
			}
			continue
		}
		out = out.Bind(p.value, t[i])
	}
	return out, true
}

// Matches reports whether a ground tuple unifies with a pattern.
func Matches(pattern []Term, t Tuple) bool {
	_, ok := Match(pattern, t, Subst{})
	return ok
}
