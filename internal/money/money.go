// Package money converts between the decimal-string amounts used on the wire
// and the integer cent amounts used everywhere inside the engine. All
// arithmetic in this codebase happens on int64 cents; floating point never
// touches a monetary value.
package money

import (
	"fmt"
	"strconv"
	"strings"
)

// ParseDecimal parses a decimal-string amount such as "12.50" or "-3" into
// cents. At most two fraction digits are accepted.
func ParseDecimal(raw string) (int64, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return 0, fmt.Errorf("empty amount")
	}

	negative := false
	switch trimmed[0] {
	case '-':
		negative = true
		trimmed = trimmed[1:]
	case '+':
		trimmed = trimmed[1:]
	}
	if trimmed == "" {
		return 0, fmt.Errorf("invalid amount %q", raw)
	}

	whole := trimmed
	frac := ""
	if idx := strings.IndexByte(trimmed, '.'); idx >= 0 {
		whole = trimmed[:idx]
		frac = trimmed[idx+1:]
	}
	if whole == "" {
		whole = "0"
	}
	if len(frac) > 2 {
		return 0, fmt.Errorf("amount %q has more than two fraction digits", raw)
	}
	for len(frac) < 2 {
		frac += "0"
	}

	wholeCents, err := strconv.ParseInt(whole, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid amount %q", raw)
	}
	fracCents, err := strconv.ParseInt(frac, 10, 64)
	if err != nil || fracCents < 0 {
		return 0, fmt.Errorf("invalid amount %q", raw)
	}

	cents := wholeCents*100 + fracCents
	if negative {
		cents = -cents
	}
	return cents, nil
}

// FormatDecimal renders cents as a two-fraction-digit decimal string.
func FormatDecimal(cents int64) string {
	sign := ""
	if cents < 0 {
		sign = "-"
		cents = -cents
	}
	return fmt.Sprintf("%s%d.%02d", sign, cents/100, cents%100)
}
