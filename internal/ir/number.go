package ir

import (
	"strings"

	"github.com/cockroachdb/apd/v3"
)

// maxDecimalExponent bounds the exponent accepted in scientific notation.
// Written-out digits parse with exponent 0 and are never rejected.
const maxDecimalExponent = 1000

// ParseDecimal returns the exact numeric interpretation of a canonical
// constant. Hexadecimal, NaN, infinities and underscore-separated digits
// are not numbers.
func ParseDecimal(v string) (*apd.Decimal, bool) {
	if v == "" || strings.ContainsAny(v, "xXnNiI_") {
		return nil, false
	}
	d, _, err := apd.NewFromString(v)
	if err != nil || d.Form != apd.Finite {
		return nil, false
	}
	if d.Exponent > maxDecimalExponent || d.Exponent < -maxDecimalExponent {
		return nil, false
	}
	return d, true
}

// FormatDecimal renders d in canonical form: plain decimal digits with no
// exponent and no trailing fractional zeros, so 2.50 is "2.5" and 1E+2 is
// "100". Negative zero renders as "0".
func FormatDecimal(d *apd.Decimal) string {
	var r apd.Decimal
	r.Reduce(d)
	if r.IsZero() {
		return "0"
	}
	return r.Text('f')
}
