// Package amount parses and compares the numeric values found in booking
// files. Parsing never fails hard: a value that is not a number is reported
// as such and the caller decides what to do with it.
package amount

import (
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

// DefaultTolerance is the absolute difference under which two amounts are equal.
var DefaultTolerance = decimal.NewFromInt(1)

var groupedRe = regexp.MustCompile(`^[+-]?\d{1,3}(,\d{3})+(\.\d+)?$`)

// Parse interprets s as a decimal number. Thousands separators ("1,234.56")
// and a trailing percent sign are accepted. ok is false for blanks and for
// anything else that is not a plain number.
func Parse(s string) (d decimal.Decimal, ok bool) {
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(s, "%")
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, false
	}
	if groupedRe.MatchString(s) {
		s = strings.ReplaceAll(s, ",", "")
	}
	if strings.ContainsAny(s, ", ") {
		return decimal.Zero, false
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, false
	}
	return d, true
}

// IsNumeric reports whether Parse accepts s.
func IsNumeric(s string) bool {
	_, ok := Parse(s)
	return ok
}

// Format renders d without trailing zeros, e.g. 15 or 1234.5.
func Format(d decimal.Decimal) string {
	return d.String()
}

// Within reports whether |a-b| <= tol.
func Within(a, b, tol decimal.Decimal) bool {
	return a.Sub(b).Abs().LessThanOrEqual(tol)
}

// Compare checks two raw strings numerically. numeric is false when either
// side does not parse, in which case equal is meaningless.
func Compare(a, b string, tol decimal.Decimal) (equal, numeric bool, delta decimal.Decimal) {
	da, okA := Parse(a)
	db, okB := Parse(b)
	if !okA || !okB {
		return false, false, decimal.Zero
	}
	delta = da.Sub(db)
	return delta.Abs().LessThanOrEqual(tol), true, delta
}

// Sum adds the numeric values of parts, treating blanks and non-numbers as
// zero. any is false when no part was numeric.
func Sum(parts ...string) (total decimal.Decimal, any bool) {
	total = decimal.Zero
	for _, p := range parts {
		if d, ok := Parse(p); ok {
			total = total.Add(d)
			any = true
		}
	}
	return total, any
}
