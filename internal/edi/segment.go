package edi

import "strings"

// Segment is one X12 segment: a type tag plus its ordered element strings.
// Elements[0] is the first element after the tag (X12 position 01). Segments
// are immutable once tokenized and never persisted as-is.
type Segment struct {
	ID       string
	Elements []string
	// Position is the 1-based ordinal of the segment within its file.
	Position int
}

// Element returns the element at the given 1-based X12 position, or "" when
// the segment is too short. Positions match the X12 convention, so
// seg.Element(1) of a CLM segment is CLM01.
func (s Segment) Element(i int) string {
	if i < 1 || i > len(s.Elements) {
		return ""
	}
	return s.Elements[i-1]
}

// Composite returns component j (1-based) of element i, split on the
// component separator. Qualified values like "ABK:I10" live in composites.
func (s Segment) Composite(i, j int, d Delimiters) string {
	el := s.Element(i)
	if el == "" {
		return ""
	}
	parts := strings.Split(el, string(d.Component))
	if j < 1 || j > len(parts) {
		return ""
	}
	return parts[j-1]
}

// String re-serializes the segment with the given delimiters, including the
// segment terminator. Tokenizing then re-serializing a well-formed file with
// its original delimiters reproduces the original bytes.
func (s Segment) String(d Delimiters) string {
	var b strings.Builder
	b.WriteString(s.ID)
	for _, el := range s.Elements {
		b.WriteByte(d.Element)
		b.WriteString(el)
	}
	b.WriteByte(d.Segment)
	return b.String()
}

// Serialize re-serializes a segment sequence with the given delimiters.
func Serialize(segs []Segment, d Delimiters) []byte {
	var b strings.Builder
	for _, s := range segs {
		b.WriteString(s.String(d))
	}
	return []byte(b.String())
}

// IsEnvelope reports whether the segment id is one of the interchange, group,
// or transaction envelope tags.
func (s Segment) IsEnvelope() bool {
	switch s.ID {
	case "ISA", "IEA", "GS", "GE", "ST", "SE":
		return true
	}
	return false
}
