package extract

import (
	"testing"

	"github.com/nmartin15/claimflow/internal/edi"
	"github.com/nmartin15/claimflow/internal/model"
)

func paymentBlock(t *testing.T) []edi.Segment {
	t.Helper()
	return segments(t,
		"CLP*PAT001*1*150.00*120.00*15.00*MC*ICN123456~"+
			"CAS*CO*45*15.00~"+
			"CAS*PR*1*15.00~"+
			"AMT*AU*150.00~"+
			"SVC*HC:99213*75.00*60.00**1~"+
			"DTP*472*D8*20240110~"+
			"CAS*CO*45*15.00~"+
			"SVC*HC:80053*75.00*60.00**1~"+
			"REF*D9*PAT001~")
}

func TestExtractRemittance(t *testing.T) {
	rec, warns := ExtractRemittance(paymentBlock(t), testOpts())

	if len(warns) != 0 {
		t.Errorf("unexpected warnings: %v", warns)
	}
	if rec.ControlNumber != "PAT001" || rec.Status != "1" {
		t.Errorf("CLP header = %q / %q", rec.ControlNumber, rec.Status)
	}
	if rec.Charge != "150.00" || rec.Payment != "120.00" || rec.PatientResp != "15.00" {
		t.Errorf("amounts = %q / %q / %q", rec.Charge, rec.Payment, rec.PatientResp)
	}
	if rec.PayerControlNumber != "ICN123456" {
		t.Errorf("PayerControlNumber = %q", rec.PayerControlNumber)
	}
	if rec.PatientControlNumber != "PAT001" {
		t.Errorf("PatientControlNumber = %q", rec.PatientControlNumber)
	}
	if rec.Amounts["AU"] != "150.00" {
		t.Errorf("AMT AU = %q", rec.Amounts["AU"])
	}

	// The two CAS before the first SVC are claim level; the one after belongs
	// to the first service line.
	if len(rec.Adjustments) != 2 {
		t.Fatalf("got %d claim adjustments, want 2", len(rec.Adjustments))
	}
	if rec.Adjustments[0].Group != "CO" || rec.Adjustments[0].Category != "contractual" ||
		rec.Adjustments[0].Reason != "45" || rec.Adjustments[0].Amount != "15.00" {
		t.Errorf("adjustment 1 = %+v", rec.Adjustments[0])
	}
	if rec.Adjustments[1].Category != "patient-responsibility" {
		t.Errorf("adjustment 2 category = %q", rec.Adjustments[1].Category)
	}

	if len(rec.Lines) != 2 {
		t.Fatalf("got %d line payments, want 2", len(rec.Lines))
	}
	l := rec.Lines[0]
	if l.ProcedureCode != "99213" || l.Charge != "75.00" || l.Paid != "60.00" || l.Units != "1" {
		t.Errorf("line 1 = %+v", l)
	}
	if len(l.Adjustments) != 1 || l.Adjustments[0].Reason != "45" {
		t.Errorf("line 1 adjustments = %+v", l.Adjustments)
	}
	if len(rec.Lines[1].Adjustments) != 0 {
		t.Errorf("line 2 adjustments = %+v", rec.Lines[1].Adjustments)
	}
}

func TestExtractRemittanceServicePeriod(t *testing.T) {
	block := segments(t,
		"CLP*PAT001*1*150.00*120.00~"+
			"DTM*232*20240108~"+
			"DTM*233*20240112~"+
			"DTM*050*20240301~"+
			"SVC*HC:99213*75.00*60.00**1~"+
			"DTM*232*20240401~")

	rec, warns := ExtractRemittance(block, testOpts())
	if len(warns) != 0 {
		t.Errorf("unexpected warnings: %v", warns)
	}
	if rec.ServiceStart.Value != "20240108" || rec.ServiceStart.Qualifier != "232" {
		t.Errorf("ServiceStart = %+v", rec.ServiceStart)
	}
	if rec.ServiceEnd.Value != "20240112" {
		t.Errorf("ServiceEnd = %+v", rec.ServiceEnd)
	}
}

func TestExtractRemittanceMissingCLP(t *testing.T) {
	rec, warns := ExtractRemittance(segments(t, "CAS*CO*45*15.00~"), testOpts())
	if !rec.Missing {
		t.Error("record not marked missing")
	}
	if len(warns) != 1 {
		t.Errorf("got %d warnings, want 1", len(warns))
	}
}

func TestExtractRemittanceStatusWarnings(t *testing.T) {
	t.Run("unknown status", func(t *testing.T) {
		_, warns := ExtractRemittance(segments(t, "CLP*PAT001*9*150.00*0~"), testOpts())
		found := false
		for _, w := range warns {
			if w.Code == model.WarnUnknownQualifier {
				found = true
			}
		}
		if !found {
			t.Errorf("no unknown-qualifier warning in %v", warns)
		}
	})
	t.Run("reversal is known", func(t *testing.T) {
		rec, warns := ExtractRemittance(segments(t, "CLP*PAT001*22*-150.00*-120.00~"), testOpts())
		if rec.Status != model.ClaimStatusReversal {
			t.Errorf("Status = %q", rec.Status)
		}
		if len(warns) != 0 {
			t.Errorf("unexpected warnings: %v", warns)
		}
	})
}

func TestExtractAdjustmentTriplets(t *testing.T) {
	// One CAS with two (reason, amount, quantity) triplets.
	block := segments(t, "CLP*PAT001*1*150.00*120.00~CAS*CO*45*10.00*1*97*5.00*2~")
	rec, _ := ExtractRemittance(block, testOpts())
	if len(rec.Adjustments) != 2 {
		t.Fatalf("got %d adjustments, want 2", len(rec.Adjustments))
	}
	if rec.Adjustments[0].Reason != "45" || rec.Adjustments[0].Amount != "10.00" || rec.Adjustments[0].Quantity != "1" {
		t.Errorf("triplet 1 = %+v", rec.Adjustments[0])
	}
	if rec.Adjustments[1].Reason != "97" || rec.Adjustments[1].Amount != "5.00" || rec.Adjustments[1].Quantity != "2" {
		t.Errorf("triplet 2 = %+v", rec.Adjustments[1])
	}
}

func TestExtractPaymentContext(t *testing.T) {
	header := segments(t,
		"BPR*I*1200.00*C*ACH*CCP*01*999999992***1234567890**01*999988880*DA*98765*20240120~"+
			"TRN*1*71700666555*1935665544~"+
			"N1*PR*EXAMPLE HEALTH*PI*60054~"+
			"N1*PE*ACME MEDICAL GROUP*XX*1234567890~")
	pc, warns := ExtractPaymentContext(header, testOpts())

	if len(warns) != 0 {
		t.Errorf("unexpected warnings: %v", warns)
	}
	if pc.TotalPaid != "1200.00" || pc.PaymentMethod != "ACH" {
		t.Errorf("BPR = %q / %q", pc.TotalPaid, pc.PaymentMethod)
	}
	if pc.PaymentDate.Value != "20240120" {
		t.Errorf("PaymentDate = %+v", pc.PaymentDate)
	}
	if pc.TraceNumber != "71700666555" {
		t.Errorf("TraceNumber = %q", pc.TraceNumber)
	}
	if pc.PayerName != "EXAMPLE HEALTH" || pc.PayerID != "60054" {
		t.Errorf("payer = %q / %q", pc.PayerName, pc.PayerID)
	}
	if pc.PayeeName != "ACME MEDICAL GROUP" || pc.PayeeNPI != "1234567890" {
		t.Errorf("payee = %q / %q", pc.PayeeName, pc.PayeeNPI)
	}
}

func TestExtractPaymentContextWarnsWhenHeaderlessFile(t *testing.T) {
	pc, warns := ExtractPaymentContext(segments(t, "N1*PR*EXAMPLE HEALTH~"), testOpts())
	if pc.PayerName != "EXAMPLE HEALTH" {
		t.Errorf("PayerName = %q", pc.PayerName)
	}
	if len(warns) != 2 {
		t.Errorf("got %d warnings, want 2 (missing BPR and TRN)", len(warns))
	}
}
