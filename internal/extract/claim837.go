// Package extract turns tokenized claim and payment blocks into
// possibly-partial records. Extractors never fail on an absent optional
// field; they append a warning and keep going. Absence of a required segment
// (CLM, CLP) yields an empty record plus a warning, leaving incompleteness
// handling to the caller.
package extract

import (
	"strings"

	"github.com/nmartin15/claimflow/internal/edi"
	"github.com/nmartin15/claimflow/internal/model"
	"github.com/nmartin15/claimflow/internal/normalize"
)

// ExtractClaim runs the 837 extractor suite over one claim block: header,
// diagnoses, payer/subscriber, and service lines.
func ExtractClaim(block []edi.Segment, opts Options) (ClaimRecord, []model.Warning) {
	var warns []model.Warning
	rec := ClaimRecord{
		Dates: map[string]DateValue{},
		Refs:  map[string]string{},
	}

	clm := firstSegment(block, "CLM")
	if clm == nil {
		rec.Missing = true
		warns = append(warns, model.Warnf(model.WarnMissingSegment, "CLM", 0,
			"claim block has no CLM segment"))
		return rec, warns
	}

	extractClaimHeader(*clm, &rec, opts, &warns)
	extractDiagnoses(block, &rec, opts, &warns)
	extractPayerSubscriber(block, &rec, opts, &warns)
	extractServiceLines(block, &rec, opts, &warns)
	extractClaimDates(block, &rec, &warns)
	extractRefs(block, rec.Refs)

	if v, ok := rec.Refs["patient_control_number"]; ok {
		rec.PatientControlNumber = v
	}

	return rec, warns
}

func extractClaimHeader(clm edi.Segment, rec *ClaimRecord, opts Options, warns *[]model.Warning) {
	rec.ControlNumber = strings.TrimSpace(clm.Element(1))
	if rec.ControlNumber == "" {
		*warns = append(*warns, model.Warnf(model.WarnMissingElement, "CLM", 1,
			"claim control number is empty"))
	}

	rec.Charge = strings.TrimSpace(clm.Element(2))
	if rec.Charge == "" {
		*warns = append(*warns, model.Warnf(model.WarnMissingElement, "CLM", 2,
			"total charge amount is empty"))
	}

	// CLM05 is a composite: facility code : qualifier : frequency code.
	rec.FacilityCode = clm.Composite(5, 1, opts.Delimiters)
	rec.FrequencyCode = clm.Composite(5, 3, opts.Delimiters)
}

// extractDiagnoses walks every HI segment. Each element is either a
// qualified composite ("ABK:E11.9"), a code-list version tag ("I10"), or a
// bare code inheriting the segment's current qualifier. Principal selection
// is table-driven by diagnosisRoles.
func extractDiagnoses(block []edi.Segment, rec *ClaimRecord, opts Options, warns *[]model.Warning) {
	his := allSegments(block, "HI")
	if len(his) == 0 {
		if !opts.Profile.SuppressMissing("HI", opts.LeniencyThreshold) {
			*warns = append(*warns, model.Warnf(model.WarnMissingSegment, "HI", 0,
				"claim block has no diagnosis (HI) segment"))
		}
		return
	}

	for _, hi := range his {
		principal := false
		for i := 1; i <= len(hi.Elements); i++ {
			first := hi.Composite(i, 1, opts.Delimiters)
			rest := hi.Composite(i, 2, opts.Delimiters)

			var code string
			if isPrincipal, known := diagnosisRoles[first]; known {
				principal = isPrincipal
				code = rest
			} else {
				code = first
				if rest != "" {
					code = rest
				}
			}

			code = normalize.NormalizeCode(code)
			if code == "" || codeListVersions[code] {
				continue
			}
			rec.DiagnosisCodes = append(rec.DiagnosisCodes, code)
			if principal && rec.PrincipalDiagnosis == "" {
				rec.PrincipalDiagnosis = code
			}
		}
	}

	if len(rec.DiagnosisCodes) > 0 && rec.PrincipalDiagnosis == "" {
		// No principal qualifier seen; the first listed code is principal by
		// position, which is how lenient originators send it.
		rec.PrincipalDiagnosis = rec.DiagnosisCodes[0]
		*warns = append(*warns, model.Warnf(model.WarnUnknownQualifier, "HI", 1,
			"no principal diagnosis qualifier; using first listed code"))
	}
}

func extractPayerSubscriber(block []edi.Segment, rec *ClaimRecord, opts Options, warns *[]model.Warning) {
	if sbr := firstSegment(block, "SBR"); sbr != nil {
		rec.PayerResponsibility = sbr.Element(1)
		rec.SubscriberRelationship = sbr.Element(2)
	} else if opts.Context.PayerResponsibility != "" || opts.Context.SubscriberRelationship != "" {
		rec.PayerResponsibility = opts.Context.PayerResponsibility
		rec.SubscriberRelationship = opts.Context.SubscriberRelationship
	} else if !opts.Profile.SuppressMissing("SBR", opts.LeniencyThreshold) {
		*warns = append(*warns, model.Warnf(model.WarnMissingSegment, "SBR", 0,
			"claim block has no subscriber (SBR) segment"))
	}

	if dmg := firstSegment(block, "DMG"); dmg != nil {
		rec.SubscriberBirthDate = DateValue{
			Format: dmg.Element(1),
			Value:  dmg.Element(2),
		}
	}

	for _, nm1 := range allSegments(block, "NM1") {
		entity := nm1.Element(1)
		name := strings.TrimSpace(nm1.Element(3))
		id := strings.TrimSpace(nm1.Element(9))

		switch entity {
		case entityBillingProvider:
			rec.BillingProviderName = name
			if nm1.Element(8) == idQualifierNPI {
				rec.BillingProviderNPI = id
			} else if id != "" {
				rec.BillingProviderNPI = id
				*warns = append(*warns, model.Warnf(model.WarnUnknownQualifier, "NM1", 8,
					"billing provider id qualifier %q, expected XX", nm1.Element(8)))
			}
		case entityRenderingProvider:
			if nm1.Element(8) == idQualifierNPI {
				rec.RenderingProviderNPI = id
			}
		case entityPayer:
			rec.PayerName = name
			rec.PayerID = id
		}
	}

	// Fall back to the file-level loops for anything the block did not name.
	if rec.BillingProviderNPI == "" {
		rec.BillingProviderNPI = opts.Context.BillingProviderNPI
	}
	if rec.BillingProviderName == "" {
		rec.BillingProviderName = opts.Context.BillingProviderName
	}
	if rec.RenderingProviderNPI == "" {
		rec.RenderingProviderNPI = opts.Context.RenderingProviderNPI
	}
	if rec.PayerID == "" && rec.PayerName == "" {
		rec.PayerID = opts.Context.PayerID
		rec.PayerName = opts.Context.PayerName
	}
}

// ExtractClaimContext reads the 837 file-level loops from the header block:
// billing provider, subscriber, and payer NM1/SBR segments ahead of the
// first claim.
func ExtractClaimContext(header []edi.Segment) ClaimContext {
	var cc ClaimContext
	if sbr := firstSegment(header, "SBR"); sbr != nil {
		cc.PayerResponsibility = sbr.Element(1)
		cc.SubscriberRelationship = sbr.Element(2)
	}
	for _, nm1 := range allSegments(header, "NM1") {
		name := strings.TrimSpace(nm1.Element(3))
		id := strings.TrimSpace(nm1.Element(9))
		switch nm1.Element(1) {
		case entityBillingProvider:
			cc.BillingProviderName = name
			if id != "" {
				cc.BillingProviderNPI = id
			}
		case entityRenderingProvider:
			if nm1.Element(8) == idQualifierNPI {
				cc.RenderingProviderNPI = id
			}
		case entityPayer:
			cc.PayerName = name
			cc.PayerID = id
		}
	}
	return cc
}

func extractServiceLines(block []edi.Segment, rec *ClaimRecord, opts Options, warns *[]model.Warning) {
	lineNo := 0
	for i, s := range block {
		var line LineRecord
		switch s.ID {
		case "SV1":
			// SV101 composite: qualifier (HC) : procedure code.
			line.ProcedureCode = normalize.NormalizeCode(s.Composite(1, 2, opts.Delimiters))
			if line.ProcedureCode == "" {
				line.ProcedureCode = normalize.NormalizeCode(s.Composite(1, 1, opts.Delimiters))
			}
			line.Charge = strings.TrimSpace(s.Element(2))
			line.Units = strings.TrimSpace(s.Element(4))
		case "SV2":
			line.RevenueCode = strings.TrimSpace(s.Element(1))
			line.ProcedureCode = normalize.NormalizeCode(s.Composite(2, 2, opts.Delimiters))
			line.Charge = strings.TrimSpace(s.Element(3))
			line.Units = strings.TrimSpace(s.Element(5))
		default:
			continue
		}

		lineNo++
		line.Number = lineNo
		if line.Charge == "" {
			*warns = append(*warns, model.Warnf(model.WarnMissingElement, s.ID, 2,
				"service line %d has no charge amount", lineNo))
		}

		// A DTP*472 directly following the service segment dates this line.
		if i+1 < len(block) && block[i+1].ID == "DTP" &&
			block[i+1].Element(1) == dateServiceQualifier {
			dtp := block[i+1]
			line.ServiceDate = DateValue{
				Qualifier: dtp.Element(1),
				Format:    dtp.Element(2),
				Value:     dtp.Element(3),
			}
		}

		rec.Lines = append(rec.Lines, line)
	}
}

// extractClaimDates collects claim-level DTP segments (those not consumed as
// line dates) into named slots.
func extractClaimDates(block []edi.Segment, rec *ClaimRecord, warns *[]model.Warning) {
	prevService := false
	for _, s := range block {
		if s.ID == "SV1" || s.ID == "SV2" {
			prevService = true
			continue
		}
		if s.ID != "DTP" {
			prevService = false
			continue
		}

		q := s.Element(1)
		if prevService && q == dateServiceQualifier {
			// Already captured as a line date.
			prevService = false
			continue
		}
		prevService = false

		slot, known := claimDateFields[q]
		if !known {
			*warns = append(*warns, model.Warnf(model.WarnUnknownQualifier, "DTP", 1,
				"unrecognized date qualifier %q", q))
			continue
		}
		if _, dup := rec.Dates[slot]; dup {
			continue
		}
		rec.Dates[slot] = DateValue{
			Qualifier: q,
			Format:    s.Element(2),
			Value:     s.Element(3),
		}
	}
}

func extractRefs(block []edi.Segment, dst map[string]string) {
	for _, s := range allSegments(block, "REF") {
		if slot, ok := refFields[s.Element(1)]; ok {
			if _, dup := dst[slot]; !dup {
				dst[slot] = strings.TrimSpace(s.Element(2))
			}
		}
	}
}

func firstSegment(segs []edi.Segment, id string) *edi.Segment {
	for i := range segs {
		if segs[i].ID == id {
			return &segs[i]
		}
	}
	return nil
}

func allSegments(segs []edi.Segment, id string) []edi.Segment {
	var out []edi.Segment
	for _, s := range segs {
		if s.ID == id {
			out = append(out, s)
		}
	}
	return out
}
