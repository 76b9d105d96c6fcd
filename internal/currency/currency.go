// Package currency builds and inspects the multi-currency markers used in
// dividend bookings, e.g. "USD EUR" or "KRW+USD".
package currency

import "strings"

// Normalize upper-cases and trims an ISO currency code.
func Normalize(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// Combine joins a quotation and settlement currency into a marker. Equal or
// single-sided currencies collapse to one code.
func Combine(quote, settle string) string {
	q, s := Normalize(quote), Normalize(settle)
	switch {
	case q == "":
		return s
	case s == "" || q == s:
		return q
	default:
		return q + " " + s
	}
}

// Tokens splits a marker on whitespace and '+'.
func Tokens(marker string) []string {
	return strings.FieldsFunc(marker, func(r rune) bool {
		return r == '+' || r == ' ' || r == '\t'
	})
}

// IsCrossCurrency reports whether a marker names more than one currency.
func IsCrossCurrency(marker string) bool {
	m := strings.TrimSpace(marker)
	return strings.Contains(m, "+") || len(Tokens(m)) > 1
}

// FormatFlag renders a boolean the way the booking files do.
func FormatFlag(b bool) string {
	if b {
		return "True"
	}
	return "False"
}
