package ingest

import (
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/nmartin15/claimflow/internal/extract"
	"github.com/nmartin15/claimflow/internal/model"
	"github.com/nmartin15/claimflow/internal/normalize"
)

// buildClaim converts an extracted claim record into the persisted claim and
// its service lines. Unparsable amounts and dates become warnings; a claim
// lacking its identifying or monetary fields is persisted with the incomplete
// flag rather than dropped.
func buildClaim(rec extract.ClaimRecord, fileID int64, providerID, payerID uuid.UUID, warns []model.Warning) (model.Claim, []model.ClaimLine) {
	c := model.Claim{
		ID:                 uuid.New(),
		EDIFileID:          fileID,
		ProviderID:         providerID,
		PayerID:            payerID,
		ClaimControlNumber: rec.ControlNumber,
		DiagnosisCodes:     rec.DiagnosisCodes,
	}

	if rec.PatientControlNumber != "" {
		pcn := rec.PatientControlNumber
		c.PatientControlNumber = &pcn
	}
	if rec.PrincipalDiagnosis != "" {
		pd := rec.PrincipalDiagnosis
		c.PrincipalDiagnosis = &pd
	}
	if rec.FacilityCode != "" {
		fc := rec.FacilityCode
		c.FacilityCode = &fc
	}
	if rec.FrequencyCode != "" {
		fq := rec.FrequencyCode
		c.FrequencyCode = &fq
	}

	if cents, ok := normalize.ParseCents(rec.Charge); ok {
		c.TotalChargeCents = cents
	} else {
		warns = append(warns, model.Warnf(model.WarnBadAmount, "CLM", 2,
			"unparsable total charge amount"))
		c.Incomplete = true
	}

	if dv, ok := rec.Dates["statement"]; ok {
		start, end := normalize.ParseEDIDate(dv.Format, dv.Value)
		if start == nil {
			warns = append(warns, model.Warnf(model.WarnBadDate, "DTP", 3,
				"unparsable statement date"))
		}
		c.StatementStart, c.StatementEnd = start, end
	}
	if dv, ok := rec.Dates["service"]; ok {
		start, _ := normalize.ParseEDIDate(dv.Format, dv.Value)
		if start == nil {
			warns = append(warns, model.Warnf(model.WarnBadDate, "DTP", 3,
				"unparsable service date"))
		}
		c.ServiceDate = start
	}

	if rec.ControlNumber == "" {
		c.Incomplete = true
	}
	if len(rec.DiagnosisCodes) == 0 {
		c.Incomplete = true
	}

	var lines []model.ClaimLine
	for _, lr := range rec.Lines {
		line := model.ClaimLine{
			ID:            uuid.New(),
			ClaimID:       c.ID,
			LineNumber:    lr.Number,
			ProcedureCode: lr.ProcedureCode,
			Units:         1,
		}
		if cents, ok := normalize.ParseCents(lr.Charge); ok {
			line.ChargeCents = cents
		} else if lr.Charge != "" {
			warns = append(warns, model.Warnf(model.WarnBadAmount, "SV1", 2,
				"unparsable charge on service line %d", lr.Number))
		}
		if lr.Units != "" {
			if u, err := strconv.ParseFloat(lr.Units, 64); err == nil && u > 0 {
				line.Units = u
			}
		}
		if lr.ServiceDate.Value != "" {
			start, _ := normalize.ParseEDIDate(lr.ServiceDate.Format, lr.ServiceDate.Value)
			line.ServiceDate = start
		}
		lines = append(lines, line)
	}

	c.Warnings = warns
	return c, lines
}

// buildRemittance converts an extracted payment record into the persisted
// remittance.
func buildRemittance(rec extract.RemitRecord, fileID int64, payerID uuid.UUID, warns []model.Warning) model.Remittance {
	r := model.Remittance{
		ID:                 uuid.New(),
		EDIFileID:          fileID,
		PayerID:            payerID,
		ClaimControlNumber: rec.ControlNumber,
		ClaimStatus:        rec.Status,
	}

	if rec.PatientControlNumber != "" {
		pcn := rec.PatientControlNumber
		r.PatientControlNumber = &pcn
	}

	parse := func(raw, segment string, element int) int64 {
		if raw == "" {
			return 0
		}
		cents, ok := normalize.ParseCents(raw)
		if !ok {
			warns = append(warns, model.Warnf(model.WarnBadAmount, segment, element,
				"unparsable amount"))
			r.Incomplete = true
			return 0
		}
		return cents
	}

	r.ChargeCents = parse(rec.Charge, "CLP", 3)
	r.PaymentCents = parse(rec.Payment, "CLP", 4)
	r.PatientRespCents = parse(rec.PatientResp, "CLP", 5)

	if rec.ServiceStart.Value != "" {
		start, _ := normalize.ParseEDIDate(rec.ServiceStart.Format, rec.ServiceStart.Value)
		if start == nil {
			warns = append(warns, model.Warnf(model.WarnBadDate, "DTM", 2,
				"unparsable service period start"))
		}
		r.ServiceStart = start
	}
	if rec.ServiceEnd.Value != "" {
		end, _ := normalize.ParseEDIDate(rec.ServiceEnd.Format, rec.ServiceEnd.Value)
		if end == nil {
			warns = append(warns, model.Warnf(model.WarnBadDate, "DTM", 2,
				"unparsable service period end"))
		}
		r.ServiceEnd = end
	}

	if rec.ControlNumber == "" && rec.PatientControlNumber == "" {
		r.Incomplete = true
	}

	for _, a := range rec.Adjustments {
		r.Adjustments = append(r.Adjustments, buildAdjustment(a, &warns))
	}
	for _, l := range rec.Lines {
		lp := model.LinePayment{
			ProcedureCode: l.ProcedureCode,
			ChargeCents:   parse(l.Charge, "SVC", 2),
			PaidCents:     parse(l.Paid, "SVC", 3),
			Units:         1,
		}
		if l.Units != "" {
			if u, err := strconv.ParseFloat(l.Units, 64); err == nil && u > 0 {
				lp.Units = u
			}
		}
		for _, a := range l.Adjustments {
			lp.Adjustments = append(lp.Adjustments, buildAdjustment(a, &warns))
		}
		r.LinePayments = append(r.LinePayments, lp)
	}

	r.Warnings = warns
	return r
}

func buildAdjustment(a extract.AdjustmentRecord, warns *[]model.Warning) model.Adjustment {
	adj := model.Adjustment{
		Category:   a.Category,
		Group:      a.Group,
		ReasonCode: a.Reason,
		Quantity:   1,
	}
	if cents, ok := normalize.ParseCents(a.Amount); ok {
		adj.AmountCents = cents
	} else if a.Amount != "" {
		*warns = append(*warns, model.Warnf(model.WarnBadAmount, "CAS", 3,
			"unparsable adjustment amount"))
	}
	if a.Quantity != "" {
		if q, err := strconv.ParseFloat(a.Quantity, 64); err == nil && q != 0 {
			adj.Quantity = q
		}
	}
	return adj
}

func nilIfEmpty(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}
