package extract

import (
	"strings"

	"github.com/nmartin15/claimflow/internal/edi"
	"github.com/nmartin15/claimflow/internal/model"
	"github.com/nmartin15/claimflow/internal/normalize"
)

// ExtractRemittance runs the 835 extractor suite over one payment block:
// claim payment, adjustments, and service-line payments.
func ExtractRemittance(block []edi.Segment, opts Options) (RemitRecord, []model.Warning) {
	var warns []model.Warning
	rec := RemitRecord{
		Amounts: map[string]string{},
		Refs:    map[string]string{},
	}

	clp := firstSegment(block, "CLP")
	if clp == nil {
		rec.Missing = true
		warns = append(warns, model.Warnf(model.WarnMissingSegment, "CLP", 0,
			"payment block has no CLP segment"))
		return rec, warns
	}

	rec.ControlNumber = strings.TrimSpace(clp.Element(1))
	if rec.ControlNumber == "" {
		warns = append(warns, model.Warnf(model.WarnMissingElement, "CLP", 1,
			"claim control number is empty"))
	}
	rec.Status = strings.TrimSpace(clp.Element(2))
	switch rec.Status {
	case model.ClaimStatusPrimary, model.ClaimStatusSecondary, model.ClaimStatusTertiary,
		model.ClaimStatusDenied, model.ClaimStatusReversal:
	case "":
		warns = append(warns, model.Warnf(model.WarnMissingElement, "CLP", 2,
			"claim status is empty"))
	default:
		warns = append(warns, model.Warnf(model.WarnUnknownQualifier, "CLP", 2,
			"unrecognized claim status %q", rec.Status))
	}
	rec.Charge = strings.TrimSpace(clp.Element(3))
	rec.Payment = strings.TrimSpace(clp.Element(4))
	rec.PatientResp = strings.TrimSpace(clp.Element(5))
	rec.PayerControlNumber = strings.TrimSpace(clp.Element(7))

	// Claim-level CAS segments appear before the first SVC; CAS after an SVC
	// belongs to that service line.
	svcSeen := false
	var curLine *LinePaymentRecord
	for i := range block {
		s := block[i]
		switch s.ID {
		case "SVC":
			svcSeen = true
			rec.Lines = append(rec.Lines, extractLinePayment(s, opts, &warns))
			curLine = &rec.Lines[len(rec.Lines)-1]
		case "CAS":
			adjs := extractAdjustments(s, &warns)
			if svcSeen && curLine != nil {
				curLine.Adjustments = append(curLine.Adjustments, adjs...)
			} else {
				rec.Adjustments = append(rec.Adjustments, adjs...)
			}
		case "DTM":
			// Claim-level DTM only; a DTM after an SVC dates that service
			// line. 232 opens the statement period, 233 closes it, 050 and
			// the rest stay unmapped.
			if svcSeen {
				continue
			}
			switch s.Element(1) {
			case dateQualServiceStart:
				rec.ServiceStart = DateValue{
					Qualifier: dateQualServiceStart,
					Format:    normalize.FormatD8,
					Value:     strings.TrimSpace(s.Element(2)),
				}
			case dateQualServiceEnd:
				rec.ServiceEnd = DateValue{
					Qualifier: dateQualServiceEnd,
					Format:    normalize.FormatD8,
					Value:     strings.TrimSpace(s.Element(2)),
				}
			}
		case "AMT":
			if q := s.Element(1); q != "" {
				rec.Amounts[q] = strings.TrimSpace(s.Element(2))
			}
		}
	}

	extractRefs(block, rec.Refs)
	if v, ok := rec.Refs["patient_control_number"]; ok {
		rec.PatientControlNumber = v
	}

	return rec, warns
}

// extractAdjustments expands one CAS segment into adjustment records. After
// the group code, CAS repeats (reason, amount, quantity) triplets up to six
// times in one segment.
func extractAdjustments(cas edi.Segment, warns *[]model.Warning) []AdjustmentRecord {
	group := strings.TrimSpace(cas.Element(1))
	if group == "" {
		*warns = append(*warns, model.Warnf(model.WarnMissingElement, "CAS", 1,
			"adjustment group code is empty"))
		return nil
	}
	category := AdjustmentCategory(group)

	var out []AdjustmentRecord
	for i := 2; i <= len(cas.Elements); i += 3 {
		reason := strings.TrimSpace(cas.Element(i))
		amount := strings.TrimSpace(cas.Element(i + 1))
		if reason == "" && amount == "" {
			continue
		}
		out = append(out, AdjustmentRecord{
			Group:    group,
			Category: category,
			Reason:   reason,
			Amount:   amount,
			Quantity: strings.TrimSpace(cas.Element(i + 2)),
		})
	}

	if len(out) == 0 {
		*warns = append(*warns, model.Warnf(model.WarnMissingElement, "CAS", 2,
			"adjustment group %s has no reason/amount pairs", group))
	}
	return out
}

func extractLinePayment(svc edi.Segment, opts Options, warns *[]model.Warning) LinePaymentRecord {
	line := LinePaymentRecord{
		ProcedureCode: normalize.NormalizeCode(svc.Composite(1, 2, opts.Delimiters)),
		Charge:        strings.TrimSpace(svc.Element(2)),
		Paid:          strings.TrimSpace(svc.Element(3)),
		Units:         strings.TrimSpace(svc.Element(5)),
	}
	if line.ProcedureCode == "" {
		line.ProcedureCode = normalize.NormalizeCode(svc.Composite(1, 1, opts.Delimiters))
	}
	if line.Charge == "" {
		*warns = append(*warns, model.Warnf(model.WarnMissingElement, "SVC", 2,
			"service-line payment has no charge amount"))
	}
	return line
}

// ExtractPaymentContext reads file-level 835 segments (BPR, TRN, payer and
// payee N1 loops) from the header block.
func ExtractPaymentContext(header []edi.Segment, opts Options) (PaymentContext, []model.Warning) {
	var warns []model.Warning
	var pc PaymentContext

	if bpr := firstSegment(header, "BPR"); bpr != nil {
		pc.TotalPaid = strings.TrimSpace(bpr.Element(2))
		pc.PaymentMethod = strings.TrimSpace(bpr.Element(4))
		if v := strings.TrimSpace(bpr.Element(16)); v != "" {
			pc.PaymentDate = DateValue{Format: normalize.FormatD8, Value: v}
		}
	} else if !opts.Profile.SuppressMissing("BPR", opts.LeniencyThreshold) {
		warns = append(warns, model.Warnf(model.WarnMissingSegment, "BPR", 0,
			"835 file has no BPR payment segment"))
	}

	if trn := firstSegment(header, "TRN"); trn != nil {
		pc.TraceNumber = strings.TrimSpace(trn.Element(2))
		if pc.PayerID == "" {
			pc.PayerID = strings.TrimSpace(trn.Element(3))
		}
	} else if !opts.Profile.SuppressMissing("TRN", opts.LeniencyThreshold) {
		warns = append(warns, model.Warnf(model.WarnMissingSegment, "TRN", 0,
			"835 file has no TRN trace segment"))
	}

	// N1 loops: PR identifies the payer, PE the payee.
	for _, n1 := range allSegments(header, "N1") {
		switch n1.Element(1) {
		case entityPayer:
			pc.PayerName = strings.TrimSpace(n1.Element(2))
			if id := strings.TrimSpace(n1.Element(4)); id != "" {
				pc.PayerID = id
			}
		case entityPayee:
			pc.PayeeName = strings.TrimSpace(n1.Element(2))
			if n1.Element(3) == idQualifierNPI {
				pc.PayeeNPI = strings.TrimSpace(n1.Element(4))
			}
		}
	}

	return pc, warns
}
