// Package core provides amount parsing and formatting utilities.
//
// Amounts are float64 values: the calculator keeps the running total with
// plain floating-point addition and subtraction, so parsing and display follow
// the browser's number semantics (parseFloat and toFixed) rather than integer
// cents.
package core

import (
	"errors"
	"math"
	"strconv"
	"strings"
	"unicode"

	"github.com/shopspring/decimal"
)

// ParseLenientFloat parses the longest numeric prefix of s.
//
// Leading whitespace is skipped, an optional sign is accepted, then either
// "Infinity" or a decimal literal with optional fraction and exponent. Any
// trailing text is ignored. When s has no numeric prefix it returns NaN and
// false.
//
// Examples:
//
//	ParseLenientFloat("12.5kg") -> 12.5, true
//	ParseLenientFloat("  .5")   -> 0.5, true
//	ParseLenientFloat("1e3x")   -> 1000, true
//	ParseLenientFloat("abc")    -> NaN, false
func ParseLenientFloat(s string) (float64, bool) {
	s = strings.TrimLeftFunc(s, isNumberSpace)

	i := 0
	if i < len(s) && (s[i] == '+' || s[i] == '-') {
		i++
	}
	if strings.HasPrefix(s[i:], "Infinity") {
		if s[0] == '-' {
			return math.Inf(-1), true
		}
		return math.Inf(1), true
	}

	intDigits := countDigits(s[i:])
	i += intDigits
	fracDigits := 0
	if i < len(s) && s[i] == '.' {
		fracDigits = countDigits(s[i+1:])
		if intDigits > 0 || fracDigits > 0 {
			i += 1 + fracDigits
		}
	}
	if intDigits == 0 && fracDigits == 0 {
		return math.NaN(), false
	}

	// The exponent only counts when at least one digit follows it.
	if i < len(s) && (s[i] == 'e' || s[i] == 'E') {
		j := i + 1
		if j < len(s) && (s[j] == '+' || s[j] == '-') {
			j++
		}
		if n := countDigits(s[j:]); n > 0 {
			i = j + n
		}
	}

	v, err := strconv.ParseFloat(s[:i], 64)
	if err != nil && !errors.Is(err, strconv.ErrRange) {
		return math.NaN(), false
	}
	return v, true
}

// ParseLenientInt parses the leading base-10 integer of s the way
// parseInt(s, 10) does: leading whitespace is skipped, an optional sign is
// accepted and any text after the digits is ignored. Values that overflow int
// are clamped, which keeps them out of range of any list.
//
//	ParseLenientInt(" 2")   -> 2, true
//	ParseLenientInt("1abc") -> 1, true
//	ParseLenientInt("1.9")  -> 1, true
//	ParseLenientInt("x1")   -> 0, false
func ParseLenientInt(s string) (int, bool) {
	s = strings.TrimLeftFunc(s, isNumberSpace)

	i := 0
	if i < len(s) && (s[i] == '+' || s[i] == '-') {
		i++
	}
	n := countDigits(s[i:])
	if n == 0 {
		return 0, false
	}
	v, err := strconv.Atoi(s[:i+n])
	if err != nil && !errors.Is(err, strconv.ErrRange) {
		return 0, false
	}
	return v, true
}

// TrimSpace removes leading and trailing whitespace as String.prototype.trim
// does. Unlike strings.TrimSpace it strips U+FEFF and keeps U+0085.
func TrimSpace(s string) string {
	return strings.TrimFunc(s, isNumberSpace)
}

// ParseAmount parses raw amount text leniently and rejects results that are
// not finite numbers.
func ParseAmount(s string) (float64, error) {
	v, ok := ParseLenientFloat(s)
	if !ok || math.IsInf(v, 0) {
		return 0, ErrInvalidAmount
	}
	return v, nil
}

// FormatFixed2 renders x with exactly two decimals the way Number.toFixed(2)
// does: the exact binary value is rounded, exact halves go away from zero,
// negative zero prints as "0.00" and magnitudes from 1e21 up use exponent
// notation.
//
// Examples:
//
//	FormatFixed2(3.5)   -> "3.50"
//	FormatFixed2(0.125) -> "0.13"
//	FormatFixed2(1.005) -> "1.00" (1.005 is stored as 1.00499...)
func FormatFixed2(x float64) string {
	switch {
	case math.IsNaN(x):
		return "NaN"
	case math.IsInf(x, 1):
		return "Infinity"
	case math.IsInf(x, -1):
		return "-Infinity"
	case x == 0:
		return "0.00"
	}

	a := math.Abs(x)
	if a >= 1e21 {
		return strconv.FormatFloat(x, 'g', -1, 64)
	}

	var out string
	if isCentHalf(a) {
		// a*8 is an integer, so three fixed decimals print the exact binary
		// value and StringFixed rounds that tie half up.
		out = decimal.RequireFromString(strconv.FormatFloat(a, 'f', 3, 64)).StringFixed(2)
	} else {
		out = strconv.FormatFloat(a, 'f', 2, 64)
	}
	if x < 0 {
		return "-" + out
	}
	return out
}

// isCentHalf reports whether a lies exactly halfway between two cents.
// That only happens for fractions .125, .375, .625 and .875, i.e. when a*8
// is an odd integer.
func isCentHalf(a float64) bool {
	t := a * 8
	return t == math.Trunc(t) && math.Mod(t, 2) == 1
}

func countDigits(s string) int {
	n := 0
	for n < len(s) && s[n] >= '0' && s[n] <= '9' {
		n++
	}
	return n
}

func isNumberSpace(r rune) bool {
	switch r {
	case '\t', '\n', '\v', '\f', '\r', ' ', '\u00a0', '\u2028', '\u2029', '\ufeff':
		return true
	}
	return unicode.Is(unicode.Zs, r)
}
