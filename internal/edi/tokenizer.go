package edi

import (
	"strings"

	"github.com/nmartin15/claimflow/internal/model"
)

// Tokenizer splits a whole buffer into an ordered sequence of segments. It is
// restartable via Reset; the streaming single-pass variant lives in stream.go.
type Tokenizer struct {
	buf      []byte
	d        Delimiters
	pos      int
	ordinal  int
	warnings []model.Warning
}

// NewTokenizer returns a tokenizer over buf using the given delimiters.
func NewTokenizer(buf []byte, d Delimiters) *Tokenizer {
	return &Tokenizer{buf: buf, d: d}
}

// Reset rewinds the tokenizer to the start of the buffer.
func (t *Tokenizer) Reset() {
	t.pos = 0
	t.ordinal = 0
	t.warnings = nil
}

// Warnings returns the warnings accumulated so far (skipped malformed
// segments).
func (t *Tokenizer) Warnings() []model.Warning {
	return t.warnings
}

// Next returns the next segment. ok is false at end of buffer. A malformed
// non-envelope segment is skipped with a warning; a malformed envelope
// segment returns a StructuralError.
func (t *Tokenizer) Next() (seg Segment, ok bool, err error) {
	for {
		raw, found := t.nextRaw()
		if !found {
			return Segment{}, false, nil
		}
		t.ordinal++

		seg, serr := parseSegment(raw, t.d, t.ordinal)
		if serr == nil {
			return seg, true, nil
		}
		if se, isStructural := serr.(*StructuralError); isStructural {
			return Segment{}, false, se
		}
		t.warnings = append(t.warnings, model.Warnf(
			model.WarnMalformedSegment, "", t.ordinal,
			"segment %d skipped: %v", t.ordinal, serr))
	}
}

// nextRaw advances to the next non-empty chunk between segment terminators.
// Whitespace padding between segments (common when originators add line
// breaks after the terminator) is tolerated.
func (t *Tokenizer) nextRaw() (string, bool) {
	for t.pos < len(t.buf) {
		end := t.pos
		for end < len(t.buf) && t.buf[end] != t.d.Segment {
			end++
		}
		raw := strings.TrimSpace(string(t.buf[t.pos:end]))
		if end < len(t.buf) {
			t.pos = end + 1
		} else {
			t.pos = end
		}
		if raw != "" {
			return raw, true
		}
	}
	return "", false
}

// ReadAll tokenizes the remainder of the buffer.
func (t *Tokenizer) ReadAll() ([]Segment, []model.Warning, error) {
	var segs []Segment
	for {
		seg, ok, err := t.Next()
		if err != nil {
			return nil, t.warnings, err
		}
		if !ok {
			return segs, t.warnings, nil
		}
		segs = append(segs, seg)
	}
}

// Parse sniffs delimiters from the ISA header and tokenizes the whole buffer.
func Parse(buf []byte) ([]Segment, Delimiters, []model.Warning, error) {
	d, err := SniffDelimiters(buf)
	if err != nil {
		return nil, Delimiters{}, nil, err
	}
	segs, warns, err := NewTokenizer(buf, d).ReadAll()
	return segs, d, warns, err
}

type malformedError struct{ msg string }

func (e *malformedError) Error() string { return e.msg }

// parseSegment splits one raw segment on the element separator. A bare tag
// with no elements, or an unrecognizable tag, is malformed; for envelope tags
// that escalates to a StructuralError.
func parseSegment(raw string, d Delimiters, ordinal int) (Segment, error) {
	parts := strings.Split(raw, string(d.Element))
	id := strings.TrimSpace(parts[0])

	if !validSegmentID(id) {
		return Segment{}, &malformedError{msg: "unrecognizable segment tag"}
	}
	if len(parts) == 1 {
		if isEnvelopeID(id) {
			return Segment{}, structuralf(id, ordinal, "envelope segment has no elements")
		}
		return Segment{}, &malformedError{msg: "segment has no elements"}
	}
	return Segment{ID: id, Elements: parts[1:], Position: ordinal}, nil
}

// validSegmentID accepts 2-3 character uppercase alphanumeric tags.
func validSegmentID(id string) bool {
	if len(id) < 2 || len(id) > 3 {
		return false
	}
	for i := 0; i < len(id); i++ {
		c := id[i]
		if (c < 'A' || c > 'Z') && (c < '0' || c > '9') {
			return false
		}
	}
	return true
}

func isEnvelopeID(id string) bool {
	switch id {
	case "ISA", "IEA", "GS", "GE", "ST", "SE":
		return true
	}
	return false
}
