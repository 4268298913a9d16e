package normalize

import (
	"strings"
	"time"
)

// DTP03 date formats observed in 837/835 files.
const (
	FormatD8  = "D8"  // CCYYMMDD
	FormatD6  = "D6"  // YYMMDD
	FormatRD8 = "RD8" // CCYYMMDD-CCYYMMDD range
)

// ParseEDIDate parses a DTP date value according to its qualifier. For RD8
// both ends of the range are returned; for single-date formats end is nil.
// Unparsable input returns nil, nil; the caller records a warning and leaves
// the field null rather than failing.
func ParseEDIDate(format, value string) (start, end *time.Time) {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil, nil
	}
	switch format {
	case FormatD8:
		return parseOne("20060102", value), nil
	case FormatD6:
		return parseOne("060102", value), nil
	case FormatRD8:
		from, to, ok := strings.Cut(value, "-")
		if !ok {
			return nil, nil
		}
		return parseOne("20060102", from), parseOne("20060102", to)
	default:
		// Unknown qualifier: try D8 as the dominant convention.
		return parseOne("20060102", value), nil
	}
}

func parseOne(layout, s string) *time.Time {
	t, err := time.Parse(layout, strings.TrimSpace(s))
	if err != nil {
		return nil
	}
	return &t
}

// DatesOverlap reports whether two date ranges overlap. A nil end collapses
// the range to its start; a nil start never overlaps anything.
func DatesOverlap(aStart, aEnd, bStart, bEnd *time.Time) bool {
	if aStart == nil || bStart == nil {
		return false
	}
	ae, be := aStart, bStart
	if aEnd != nil {
		ae = aEnd
	}
	if bEnd != nil {
		be = bEnd
	}
	return !aStart.After(*be) && !bStart.After(*ae)
}
