package edi

// Delimiters are the three separators an X12 interchange declares in its ISA
// header. Originators vary them, so they are sniffed from fixed ISA positions
// rather than assumed.
type Delimiters struct {
	Element   byte
	Component byte
	Segment   byte
}

// DefaultDelimiters returns the conventional X12 separators.
func DefaultDelimiters() Delimiters {
	return Delimiters{Element: '*', Component: ':', Segment: '~'}
}

// The ISA segment is fixed width: 3-byte tag, element separator at offset 3,
// component separator at offset 104, segment terminator at offset 105.
const (
	isaElementOffset   = 3
	isaComponentOffset = 104
	isaMinLength       = 106
)

// SniffDelimiters reads the separators from the fixed positions of the ISA
// header. The buffer must hold at least the full 106-byte ISA segment.
func SniffDelimiters(buf []byte) (Delimiters, error) {
	if len(buf) < isaMinLength {
		return Delimiters{}, structuralf("ISA", 1, "buffer shorter than ISA header (%d bytes)", len(buf))
	}
	if string(buf[:3]) != "ISA" {
		return Delimiters{}, structuralf("ISA", 1, "interchange does not start with ISA")
	}
	d := Delimiters{
		Element:   buf[isaElementOffset],
		Component: buf[isaComponentOffset],
		Segment:   buf[isaComponentOffset+1],
	}
	if d.Element == d.Segment || d.Element == d.Component || d.Component == d.Segment {
		return Delimiters{}, structuralf("ISA", 1, "separators collide (element=%q component=%q segment=%q)",
			d.Element, d.Component, d.Segment)
	}
	return d, nil
}
