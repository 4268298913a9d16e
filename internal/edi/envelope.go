package edi

import (
	"strconv"
	"strings"

	"github.com/nmartin15/claimflow/internal/model"
)

// Transaction types this pipeline consumes.
const (
	Transaction837 = "837"
	Transaction835 = "835"
)

// Envelope carries the interchange, group, and transaction identifiers of a
// validated file.
type Envelope struct {
	SenderID           string // ISA06, trimmed
	ReceiverID         string // ISA08, trimmed
	InterchangeControl string // ISA13
	InterchangeVersion string // ISA12
	FunctionalID       string // GS01 (HC = claims, HP = payment advice)
	GroupControl       string // GS06
	GroupVersion       string // GS08 (e.g. 005010X221A1)
	TransactionType    string // ST01
	TransactionControl string // ST02
	SegmentCount       int
}

// ValidateEnvelope confirms the interchange and group header/trailer pairs
// exist with matching control numbers and that the declared transaction type
// matches the file's content. A missing or unbalanced interchange or group
// envelope is fatal; a missing transaction-set trailer is a warning only.
func ValidateEnvelope(segs []Segment) (*Envelope, []model.Warning, error) {
	var warns []model.Warning

	if len(segs) == 0 {
		return nil, nil, structuralf("ISA", 0, "empty interchange")
	}

	isa := segs[0]
	if isa.ID != "ISA" {
		return nil, nil, structuralf("ISA", 1, "interchange does not start with ISA")
	}
	if len(isa.Elements) < 16 {
		return nil, nil, structuralf("ISA", 1, "ISA has %d elements, want 16", len(isa.Elements))
	}

	env := &Envelope{
		SenderID:           strings.TrimSpace(isa.Element(6)),
		ReceiverID:         strings.TrimSpace(isa.Element(8)),
		InterchangeControl: strings.TrimSpace(isa.Element(13)),
		InterchangeVersion: strings.TrimSpace(isa.Element(12)),
		SegmentCount:       len(segs),
	}

	var iea, gs, ge, st, se *Segment
	hasCLM, hasCLP := false, false
	for i := range segs {
		switch segs[i].ID {
		case "IEA":
			iea = &segs[i]
		case "GS":
			if gs == nil {
				gs = &segs[i]
			}
		case "GE":
			ge = &segs[i]
		case "ST":
			if st == nil {
				st = &segs[i]
			}
		case "SE":
			se = &segs[i]
		case "CLM":
			hasCLM = true
		case "CLP":
			hasCLP = true
		}
	}

	if iea == nil {
		return nil, nil, structuralf("IEA", 0, "missing IEA interchange trailer")
	}
	if ieaCtl := strings.TrimSpace(iea.Element(2)); ieaCtl != env.InterchangeControl {
		return nil, nil, structuralf("IEA", iea.Position,
			"interchange control number mismatch (ISA13 vs IEA02)")
	}

	if gs == nil {
		return nil, nil, structuralf("GS", 0, "missing GS group header")
	}
	if ge == nil {
		return nil, nil, structuralf("GE", 0, "missing GE group trailer")
	}
	env.FunctionalID = gs.Element(1)
	env.GroupControl = gs.Element(6)
	env.GroupVersion = gs.Element(8)
	if geCtl := strings.TrimSpace(ge.Element(2)); geCtl != env.GroupControl {
		return nil, nil, structuralf("GE", ge.Position,
			"group control number mismatch (GS06 vs GE02)")
	}

	if st == nil {
		return nil, nil, structuralf("ST", 0, "missing ST transaction header")
	}
	env.TransactionType = st.Element(1)
	env.TransactionControl = st.Element(2)

	switch env.TransactionType {
	case Transaction837:
		if hasCLP && !hasCLM {
			return nil, nil, structuralf("ST", st.Position,
				"declared 837 but content is claim payments (CLP)")
		}
	case Transaction835:
		if hasCLM && !hasCLP {
			return nil, nil, structuralf("ST", st.Position,
				"declared 835 but content is claims (CLM)")
		}
	default:
		return nil, nil, structuralf("ST", st.Position,
			"unsupported transaction type %q", env.TransactionType)
	}

	// Functional id cross-check: HC carries 837, HP carries 835.
	if env.FunctionalID == "HC" && env.TransactionType != Transaction837 {
		return nil, nil, structuralf("GS", gs.Position, "GS01=HC but ST01=%s", env.TransactionType)
	}
	if env.FunctionalID == "HP" && env.TransactionType != Transaction835 {
		return nil, nil, structuralf("GS", gs.Position, "GS01=HP but ST01=%s", env.TransactionType)
	}

	if se == nil {
		warns = append(warns, model.Warnf(model.WarnMissingTrailer, "SE", 0,
			"missing SE transaction trailer"))
	} else {
		if declared, err := strconv.Atoi(strings.TrimSpace(se.Element(1))); err == nil {
			actual := se.Position - st.Position + 1
			if declared != actual {
				warns = append(warns, model.Warnf(model.WarnCountMismatch, "SE", 1,
					"SE01 declares %d segments, counted %d", declared, actual))
			}
		}
		if seCtl := strings.TrimSpace(se.Element(2)); seCtl != env.TransactionControl {
			warns = append(warns, model.Warnf(model.WarnCountMismatch, "SE", 2,
				"transaction control number mismatch (ST02 vs SE02)"))
		}
	}

	return env, warns, nil
}
