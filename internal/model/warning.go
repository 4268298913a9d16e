package model

import "fmt"

// Warning codes accumulated during parsing and extraction.
const (
	WarnMalformedSegment = "malformed_segment"
	WarnMissingSegment   = "missing_segment"
	WarnMissingElement   = "missing_element"
	WarnUnknownQualifier = "unknown_qualifier"
	WarnBadDate          = "bad_date"
	WarnBadAmount        = "bad_amount"
	WarnMissingTrailer   = "missing_trailer"
	WarnCountMismatch    = "count_mismatch"
)

// Warning is a non-fatal extraction problem tied to a segment position.
// Messages carry only segment ids, qualifiers, and positions; never any
// patient-identifying content.
type Warning struct {
	Code    string `json:"code"`
	Segment string `json:"segment,omitempty"`
	Element int    `json:"element,omitempty"`
	Message string `json:"message"`
}

func (w Warning) String() string {
	if w.Segment == "" {
		return fmt.Sprintf("%s: %s", w.Code, w.Message)
	}
	if w.Element > 0 {
		return fmt.Sprintf("%s: %s%02d: %s", w.Code, w.Segment, w.Element, w.Message)
	}
	return fmt.Sprintf("%s: %s: %s", w.Code, w.Segment, w.Message)
}

// Warnf builds a Warning with a formatted message.
func Warnf(code, segment string, element int, format string, args ...any) Warning {
	return Warning{
		Code:    code,
		Segment: segment,
		Element: element,
		Message: fmt.Sprintf(format, args...),
	}
}
