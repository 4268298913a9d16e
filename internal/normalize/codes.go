package normalize

import (
	"regexp"
	"strings"
)

var nonCodeChars = regexp.MustCompile(`[^A-Za-z0-9.]`)

// NormalizeCode trims whitespace, uppercases, and strips characters that are
// not part of diagnosis/procedure code alphabets (dots are kept: ICD-10 codes
// such as E11.9 carry them). Returns "" when nothing survives.
func NormalizeCode(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	s = strings.ToUpper(s)
	return nonCodeChars.ReplaceAllString(s, "")
}

var multiSpace = regexp.MustCompile(`\s+`)

// NormalizeName lowercases, collapses whitespace, and trims the input; used
// when a payer name has to serve as its natural key.
func NormalizeName(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	s = strings.ToLower(s)
	return multiSpace.ReplaceAllString(s, " ")
}
