package ir

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
)

// Term is either a constant or a variable.
//
// Constants hold their canonical string form; variables hold their name.
// The zero Term is the empty-string constant.
type Term struct {
	variable bool
	value    string
}

func (Term) expr() {}

// Var creates a variable term.
func Var(name string) Term {
	return Term{variable: true, value: name}
}

// Normalize maps a raw Go value to its canonical constant.
//
// Strings are NFC normalized. Integers of every kind render in base 10.
// Floats render in their shortest exact decimal form, so 1.0 and 1 are the
// same constant. A Term passes through unchanged. A Literal fails with
// ErrNestedLiteral; unsupported values fail with ErrInvalidTerm.
func Normalize(raw any) (Term, error) {
	switch v := raw.(type) {
	case Term:
		return v, nil
	case Literal, *Literal:
		return Term{}, &Error{
			Code:    CodeNestedLiteral,
			Message: fmt.Sprintf("literal %v cannot be used as an argument", v),
		}
	case Arith, *Arith, Constraint, *Constraint:
		return Term{}, &Error{
			Code:    CodeInvalidTerm,
			Message: fmt.Sprintf("expression %v cannot be used as an argument", v),
		}
	case string:
		return Term{value: norm.NFC.String(v)}, nil
	case int:
		return Term{value: strconv.FormatInt(int64(v), 10)}, nil
	case int8:
		return Term{value: strconv.FormatInt(int64(v), 10)}, nil
	case int16:
		return Term{value: strconv.FormatInt(int64(v), 10)}, nil
	case int32:
		return Term{value: strconv.FormatInt(int64(v), 10)}, nil
	case int64:
		return Term{value: strconv.FormatInt(v, 10)}, nil
	case uint:
		return Term{value: strconv.FormatUint(uint64(v), 10)}, nil
	case uint8:
		return Term{value: strconv.FormatUint(uint64(v), 10)}, nil
	case uint16:
		return Term{value: strconv.FormatUint(uint64(v), 10)}, nil
	case uint32:
		return Term{value: strconv.FormatUint(uint64(v), 10)}, nil
	case uint64:
		return Term{value: strconv.FormatUint(v, 10)}, nil
	case float32:
		return normalizeFloat(float64(v))
	case float64:
		return normalizeFloat(v)
	case bool:
		return Term{value: strconv.FormatBool(v)}, nil
	case json.Number:
		d, ok := ParseDecimal(string(v))
		if !ok {
			return Term{}, &Error{Code: CodeInvalidTerm, Message: fmt.Sprintf("invalid number %q", string(v))}
		}
		return Term{value: FormatDecimal(d)}, nil
	case nil:
		return Term{}, &Error{Code: CodeInvalidTerm, Message: "nil is not a valid constant"}
	case fmt.Stringer:
		return Term{value: norm.NFC.String(v.String())}, nil
	default:
		return Term{}, &Error{Code: CodeInvalidTerm, Message: fmt.Sprintf("unsupported constant type %T", raw)}
	}
}

// MustTerm is like Normalize but panics on error.
// Use only in tests or when inputs are known to be valid.
func MustTerm(raw any) Term {
	t, err := Normalize(raw)
	if err != nil {
		panic(err)
	}
	return t
}

// C is a shorthand for MustTerm, for ergonomic construction of constants.
// Example: Eq(Var("X"), Sub(Var("Y"), C(1)))
func C(raw any) Term {
	return MustTerm(raw)
}

func normalizeFloat(f float64) (Term, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return Term{}, &Error{Code: CodeInvalidTerm, Message: fmt.Sprintf("non-finite number %v", f)}
	}
	if f == 0 {
		return Term{value: "0"}, nil
	}
	if f == math.Trunc(f) {
		// Exact digits, not the zero-padded shortest form.
		return Term{value: strconv.FormatFloat(f, 'f', 0, 64)}, nil
	}
	return Term{value: strconv.FormatFloat(f, 'f', -1, 64)}, nil
}

// IsVariable reports whether t is a variable.
func (t Term) IsVariable() bool {
	return t.variable
}

// IsConstant reports whether t is a constant.
func (t Term) IsConstant() bool {
	return !t.variable
}

// Value returns the canonical form of a constant or the name of a variable.
func (t Term) Value() string {
	return t.value
}

// Equal compares two terms by kind and canonical form.
func (t Term) Equal(other Term) bool {
	return t.variable == other.variable && t.value == other.value
}

// String renders variables by name and constants by value. Constants that
// would read as variables (or contain separators) are quoted.
func (t Term) String() string {
	if t.variable {
		return t.value
	}
	if LooksLikeVariable(t.value) || t.value == "" || strings.ContainsAny(t.value, " ,()\"'") {
		return strconv.Quote(t.value)
	}
	return t.value
}

// LooksLikeVariable reports whether a bare name follows the variable naming
// convention used by the structured front ends: an identifier whose first
// rune is an upper-case letter or underscore. "Moshe dayan" is not one.
func LooksLikeVariable(name string) bool {
	r, size := utf8.DecodeRuneInString(name)
	if size == 0 || (r != '_' && !unicode.IsUpper(r)) {
		return false
	}
	for _, r := range name[size:] {
		if r != '_' && !unicode.IsLetter(r) && !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}
