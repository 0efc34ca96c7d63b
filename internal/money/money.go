// Package money converts between provider decimal strings and integer minor units.
package money

import (
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/text/currency"
)

const defaultScale = 2

// Scale returns the number of minor-unit digits for an ISO 4217 code.
// Unknown codes fall back to two.
func Scale(code string) int {
	unit, err := currency.ParseISO(strings.TrimSpace(code))
	if err != nil {
		return defaultScale
	}
	scale, _ := currency.Standard.Rounding(unit)
	return scale
}

// Parse converts a decimal string such as "123.4" into minor units of code.
func Parse(s, code string) (int64, error) {
	scale := Scale(code)

	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("empty amount")
	}
	neg := strings.HasPrefix(s, "-")
	s = strings.TrimPrefix(s, "-")

	whole, frac, _ := strings.Cut(s, ".")
	if len(frac) > scale {
		return 0, fmt.Errorf("amount %q has more than %d decimals for %s", s, scale, code)
	}
	frac += strings.Repeat("0", scale-len(frac))
	if whole == "" {
		whole = "0"
	}

	units, err := strconv.ParseInt(whole, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid amount %q: %w", s, err)
	}
	var minor int64
	if frac != "" {
		minor, err = strconv.ParseInt(frac, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("invalid amount %q: %w", s, err)
		}
	}

	total := units*pow10(scale) + minor
	if neg {
		total = -total
	}
	return total, nil
}

// Format renders minor units of code as a decimal string.
func Format(minor int64, code string) string {
	scale := Scale(code)

	sign := ""
	if minor < 0 {
		sign = "-"
		minor = -minor
	}
	if scale == 0 {
		return sign + strconv.FormatInt(minor, 10)
	}
	factor := pow10(scale)
	return fmt.Sprintf("%s%d.%0*d", sign, minor/factor, scale, minor%factor)
}

func pow10(n int) int64 {
	p := int64(1)
	for i := 0; i < n; i++ {
		p *= 10
	}
	return p
}
