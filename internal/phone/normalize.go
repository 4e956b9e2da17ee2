// Package phone normalizes caller numbers into the +<country><number> form
// used as the contact key in the CRM.
package phone

import "strings"

// Normalize strips every non-digit from raw and returns the canonical
// "+<digits>" form. A bare 10-digit number is assumed to be North American
// and gets a leading 1. No other length validation is done, so a 7-digit or
// 15-digit input is passed through with just a "+" in front.
//
// The second return value is false when raw contains no digits at all.
func Normalize(raw string) (string, bool) {
	digits := Digits(raw)
	if digits == "" {
		return "", false
	}
	if len(digits) == 10 {
		digits = "1" + digits
	}
	return "+" + digits, true
}

// Digits returns only the ASCII digits of s, in order.
func Digits(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// Equal reports whether a and b carry the same digits, ignoring formatting.
func Equal(a, b string) bool {
	da := Digits(a)
	return da != "" && da == Digits(b)
}
