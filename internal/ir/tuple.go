package ir

import (
	"strconv"
	"strings"
)

// Tuple is an ordered sequence of canonical constant values.
type Tuple []string

// Key returns an unambiguous string key for map membership.
// Each value is length-prefixed so no separator can collide with content.
func (t Tuple) Key() string {
	var b strings.Builder
	for _, v := range t {
		b.WriteString(strconv.Itoa(len(v)))
		b.WriteByte(':')
		b.WriteString(v)
	}
	return b.String()
}

// Equal compares two tuples element by element.
func (t Tuple) Equal(other Tuple) bool {
	if len(t) != len(other) {
		return false
	}
	for i := range t {
		if t[i] != other[i] {
			return false
		}
	}
	return true
}

// String renders the tuple as "(a, b)".
func (t Tuple) String() string {
	parts := make([]string, len(t))
	for i, v := range t {
		parts[i] = Term{value: v}.String()
	}
	return "(" + strings.Join(parts, ", ") + ")"
}

// CompareValues orders canonical constants: numbers first in exact numeric
// order, then everything else in byte order.
func CompareValues(a, b string) int {
	da, aNum := ParseDecimal(a)
	db, bNum := ParseDecimal(b)
	switch {
	case aNum && bNum:
		if c := da.Cmp(db); c != 0 {
			return c
		}
		return strings.Compare(a, b)
	case aNum:
		return -1
	case bNum:
		return 1
	default:
		return strings.Compare(a, b)
	}
}

// CompareTuples orders tuples lexicographically using CompareValues.
func CompareTuples(a, b Tuple) int {
	for i := 0; i < len(a) && i < len(b); i++ {
		if c := CompareValues(a[i], b[i]); c != 0 {
			return c
		}
	}
	return len(a) - len(b)
}
