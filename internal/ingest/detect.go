package ingest

import (
	"fmt"
	"strings"

	"github.com/nmartin15/claimflow/internal/edi"
)

// Format is what DetectFormat learns from the head of a file.
type Format struct {
	SenderID        string
	TransactionType string
	Delimiters      edi.Delimiters
}

// DetectFormat identifies the transaction type from the leading envelope
// headers: ST01 when present, the GS01 functional id otherwise, and the first
// claim or payment marker as a last resort. The head may be truncated
// mid-segment; detection only needs the early segments.
func DetectFormat(head []byte) (Format, error) {
	d, err := edi.SniffDelimiters(head)
	if err != nil {
		return Format{}, err
	}

	var f Format
	f.Delimiters = d

	tok := edi.NewTokenizer(head, d)
	for {
		seg, ok, err := tok.Next()
		if err != nil {
			// A malformed envelope segment this early is fatal at parse
			// time too; report it now.
			return Format{}, err
		}
		if !ok {
			break
		}
		switch seg.ID {
		case "ISA":
			f.SenderID = strings.TrimSpace(seg.Element(6))
		case "GS":
			switch seg.Element(1) {
			case "HC":
				f.TransactionType = edi.Transaction837
			case "HP":
				f.TransactionType = edi.Transaction835
			}
		case "ST":
			// ST01 is authoritative; envelope validation cross-checks it
			// against GS01 later.
			f.TransactionType = seg.Element(1)
			return f, nil
		case edi.ClaimMarker:
			if f.TransactionType == "" {
				f.TransactionType = edi.Transaction837
			}
			return f, nil
		case edi.PaymentMarker:
			if f.TransactionType == "" {
				f.TransactionType = edi.Transaction835
			}
			return f, nil
		}
	}

	if f.TransactionType == "" {
		return Format{}, fmt.Errorf("cannot determine transaction type from file head")
	}
	return f, nil
}
