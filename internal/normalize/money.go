package normalize

import (
	"fmt"
	"strconv"
	"strings"
)

// ParseCents parses a decimal amount string into int64 cents. Amounts stay
// fixed-point end to end; nothing here goes through float64. Up to two
// fraction digits are honored, extra digits are rejected rather than rounded.
func ParseCents(s string) (int64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}

	neg := false
	switch s[0] {
	case '-':
		neg = true
		s = s[1:]
	case '+':
		s = s[1:]
	}

	whole, frac, _ := strings.Cut(s, ".")
	if whole == "" && frac == "" {
		return 0, false
	}
	if whole == "" {
		whole = "0"
	}
	if len(frac) > 2 {
		return 0, false
	}
	for len(frac) < 2 {
		frac += "0"
	}

	w, err := strconv.ParseInt(whole, 10, 64)
	if err != nil {
		return 0, false
	}
	f, err := strconv.ParseInt(frac, 10, 64)
	if err != nil {
		return 0, false
	}

	cents := w*100 + f
	if neg {
		cents = -cents
	}
	return cents, true
}

// FormatCents renders int64 cents back as a decimal amount string.
func FormatCents(cents int64) string {
	sign := ""
	if cents < 0 {
		sign = "-"
		cents = -cents
	}
	return fmt.Sprintf("%s%d.%02d", sign, cents/100, cents%100)
}

// BPSOf returns basis points of part relative to whole (e.g. tolerance math),
// saturating at 0 when whole is zero.
func BPSOf(part, whole int64) int64 {
	if whole == 0 {
		return 0
	}
	return part * 10_000 / whole
}

// CentsWithinBPS reports whether a and b differ by no more than slackBPS
// basis points of b.
func CentsWithinBPS(a, b, slackBPS int64) bool {
	diff := a - b
	if diff < 0 {
		diff = -diff
	}
	limit := b * slackBPS / 10_000
	if limit < 0 {
		limit = -limit
	}
	return diff <= limit
}
