package tools

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Multiply handles multiplication sub-queries.
func Multiply(a, b float64) string {
	return fmt.Sprintf("Result of multiplying %s by %s is: %s", FormatNumber(a), FormatNumber(b), FormatNumber(a*b))
}

// Divide handles division sub-queries. A zero divisor yields a message, not an error.
func Divide(a, b float64) string {
	if b == 0 {
		return "Division by zero is not allowed."
	}
	return fmt.Sprintf("Result of dividing %s by %s is: %s", FormatNumber(a), FormatNumber(b), FormatNumber(a/b))
}

// FormatNumber renders f as the shortest decimal that round-trips, always
// carrying a fractional part (6 -> "6.0"). Magnitudes outside [1e-4, 1e16)
// use exponent notation ("1e+16", "1.5e-05").
func FormatNumber(f float64) string {
	switch {
	case math.IsNaN(f):
		return "nan"
	case math.IsInf(f, 1):
		return "inf"
	case math.IsInf(f, -1):
		return "-inf"
	}

	abs := math.Abs(f)
	if abs != 0 && (abs < 1e-4 || abs >= 1e16) {
		return strconv.FormatFloat(f, 'e', -1, 64)
	}

	s := strconv.FormatFloat(f, 'f', -1, 64)
	if !strings.Contains(s, ".") {
		s += ".0"
	}
	return s
}
