package edi

import "fmt"

// StructuralError is fatal: a malformed or missing envelope segment. Files
// rejected with a StructuralError must not be retried; re-parsing cannot
// succeed against structurally invalid input.
type StructuralError struct {
	Segment  string // envelope segment id (ISA, IEA, GS, GE, ST, SE)
	Position int    // segment ordinal in the file, 0 when unknown
	Msg      string
}

func (e *StructuralError) Error() string {
	if e.Position > 0 {
		return fmt.Sprintf("edi: structural error at segment %d (%s): %s", e.Position, e.Segment, e.Msg)
	}
	return fmt.Sprintf("edi: structural error (%s): %s", e.Segment, e.Msg)
}

func structuralf(segment string, pos int, format string, args ...any) *StructuralError {
	return &StructuralError{Segment: segment, Position: pos, Msg: fmt.Sprintf(format, args...)}
}
