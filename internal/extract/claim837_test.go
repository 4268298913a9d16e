package extract

import (
	"testing"

	"github.com/nmartin15/claimflow/internal/edi"
	"github.com/nmartin15/claimflow/internal/formatprofile"
	"github.com/nmartin15/claimflow/internal/model"
)

var testDelims = edi.Delimiters{Element: '*', Component: ':', Segment: '~'}

func testOpts() Options {
	return Options{Delimiters: testDelims}
}

func segments(t *testing.T, raw string) []edi.Segment {
	t.Helper()
	segs, _, err := edi.NewTokenizer([]byte(raw), testDelims).ReadAll()
	if err != nil {
		t.Fatalf("tokenize: %v", err)
	}
	return segs
}

func claimBlock(t *testing.T) []edi.Segment {
	t.Helper()
	return segments(t,
		"CLM*CLM001*150.00***11:B:1~"+
			"DTP*434*RD8*20240110-20240112~"+
			"HI*ABK:E11.9*ABF:I10.9~"+
			"REF*D9*PAT001~"+
			"REF*EA*MRN42~"+
			"NM1*85*2*ACME MEDICAL GROUP*****XX*1234567890~"+
			"NM1*82*1*SMITH*JANE****XX*9876543210~"+
			"NM1*PR*2*EXAMPLE HEALTH*****PI*60054~"+
			"SBR*P*18~"+
			"DMG*D8*19800101~"+
			"SV1*HC:99213*75.00*UN*1~"+
			"DTP*472*D8*20240110~"+
			"SV1*HC:80053*75.00*UN*2~"+
			"DTP*472*D8*20240111~")
}

func TestExtractClaim(t *testing.T) {
	rec, warns := ExtractClaim(claimBlock(t), testOpts())

	if len(warns) != 0 {
		t.Errorf("unexpected warnings: %v", warns)
	}
	if rec.Missing {
		t.Fatal("record marked missing")
	}
	if rec.ControlNumber != "CLM001" || rec.Charge != "150.00" {
		t.Errorf("header = %q / %q", rec.ControlNumber, rec.Charge)
	}
	if rec.FacilityCode != "11" || rec.FrequencyCode != "1" {
		t.Errorf("facility/frequency = %q / %q", rec.FacilityCode, rec.FrequencyCode)
	}
	if rec.PatientControlNumber != "PAT001" {
		t.Errorf("PatientControlNumber = %q", rec.PatientControlNumber)
	}
	if rec.Refs["medical_record_number"] != "MRN42" {
		t.Errorf("medical_record_number = %q", rec.Refs["medical_record_number"])
	}

	if len(rec.DiagnosisCodes) != 2 {
		t.Fatalf("got %d diagnosis codes, want 2", len(rec.DiagnosisCodes))
	}
	if rec.PrincipalDiagnosis != "E11.9" {
		t.Errorf("PrincipalDiagnosis = %q, want E11.9", rec.PrincipalDiagnosis)
	}
	if rec.DiagnosisCodes[1] != "I10.9" {
		t.Errorf("second diagnosis = %q, want I10.9", rec.DiagnosisCodes[1])
	}

	if rec.BillingProviderNPI != "1234567890" || rec.BillingProviderName != "ACME MEDICAL GROUP" {
		t.Errorf("billing provider = %q / %q", rec.BillingProviderNPI, rec.BillingProviderName)
	}
	if rec.RenderingProviderNPI != "9876543210" {
		t.Errorf("RenderingProviderNPI = %q", rec.RenderingProviderNPI)
	}
	if rec.PayerID != "60054" || rec.PayerName != "EXAMPLE HEALTH" {
		t.Errorf("payer = %q / %q", rec.PayerID, rec.PayerName)
	}
	if rec.PayerResponsibility != "P" || rec.SubscriberRelationship != "18" {
		t.Errorf("SBR = %q / %q", rec.PayerResponsibility, rec.SubscriberRelationship)
	}
	if rec.SubscriberBirthDate.Value != "19800101" {
		t.Errorf("SubscriberBirthDate = %+v", rec.SubscriberBirthDate)
	}

	stmt, ok := rec.Dates["statement"]
	if !ok || stmt.Format != "RD8" || stmt.Value != "20240110-20240112" {
		t.Errorf("statement date = %+v", stmt)
	}

	if len(rec.Lines) != 2 {
		t.Fatalf("got %d lines, want 2", len(rec.Lines))
	}
	l := rec.Lines[0]
	if l.Number != 1 || l.ProcedureCode != "99213" || l.Charge != "75.00" || l.Units != "1" {
		t.Errorf("line 1 = %+v", l)
	}
	if l.ServiceDate.Value != "20240110" || l.ServiceDate.Format != "D8" {
		t.Errorf("line 1 service date = %+v", l.ServiceDate)
	}
	if rec.Lines[1].ServiceDate.Value != "20240111" {
		t.Errorf("line 2 service date = %+v", rec.Lines[1].ServiceDate)
	}
}

func TestExtractClaimMissingCLM(t *testing.T) {
	rec, warns := ExtractClaim(segments(t, "HI*ABK:E11.9~SV1*HC:99213*75.00*UN*1~"), testOpts())
	if !rec.Missing {
		t.Error("record not marked missing")
	}
	if len(warns) != 1 {
		t.Errorf("got %d warnings, want 1", len(warns))
	}
}

func TestExtractDiagnoses(t *testing.T) {
	cases := []struct {
		name      string
		hi        string
		codes     []string
		principal string
		warns     int
	}{
		{
			name:      "icd9 qualifiers",
			hi:        "HI*BK:250.00*BF:401.9~",
			codes:     []string{"250.00", "401.9"},
			principal: "250.00",
		},
		{
			name:      "bare codes with version tag",
			hi:        "HI*I10*E11.9*I10.9~",
			codes:     []string{"E11.9", "I10.9"},
			principal: "E11.9",
			warns:     1, // no principal qualifier, first listed wins
		},
		{
			name:      "multiple HI segments",
			hi:        "HI*ABK:E11.9~HI*APR:Z79.4~",
			codes:     []string{"E11.9", "Z79.4"},
			principal: "E11.9",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			block := segments(t, "CLM*C1*10.00~SBR*P*18~"+tc.hi)
			rec, warns := ExtractClaim(block, testOpts())
			if len(warns) != tc.warns {
				t.Errorf("got %d warnings, want %d: %v", len(warns), tc.warns, warns)
			}
			if len(rec.DiagnosisCodes) != len(tc.codes) {
				t.Fatalf("codes = %v, want %v", rec.DiagnosisCodes, tc.codes)
			}
			for i := range tc.codes {
				if rec.DiagnosisCodes[i] != tc.codes[i] {
					t.Errorf("codes[%d] = %q, want %q", i, rec.DiagnosisCodes[i], tc.codes[i])
				}
			}
			if rec.PrincipalDiagnosis != tc.principal {
				t.Errorf("principal = %q, want %q", rec.PrincipalDiagnosis, tc.principal)
			}
		})
	}
}

func TestExtractClaimWarnsOnAbsentSegments(t *testing.T) {
	block := segments(t, "CLM*C1*10.00~SV1*HC:99213*10.00*UN*1~")
	_, warns := ExtractClaim(block, testOpts())

	var missing []string
	for _, w := range warns {
		if w.Code == model.WarnMissingSegment {
			missing = append(missing, w.Segment)
		}
	}
	if len(missing) != 2 {
		t.Fatalf("missing-segment warnings = %v, want HI and SBR", missing)
	}
}

func TestExtractClaimProfileSuppression(t *testing.T) {
	// Two prior files from this originator, neither carrying HI or SBR.
	prof := formatprofile.New("SUBMITTERID")
	prof.FilesSeen = 2
	prof.SegmentCounts["CLM"] = 4
	prof.SegmentFiles["CLM"] = 2

	opts := testOpts()
	opts.Profile = prof
	opts.LeniencyThreshold = 0.8

	block := segments(t, "CLM*C1*10.00~SV1*HC:99213*10.00*UN*1~")
	_, warns := ExtractClaim(block, opts)
	for _, w := range warns {
		if w.Code == model.WarnMissingSegment {
			t.Errorf("suppressed warning still emitted: %v", w)
		}
	}
}

func TestExtractClaimInheritsFileContext(t *testing.T) {
	header := segments(t,
		"NM1*85*2*ACME MEDICAL GROUP*****XX*1234567890~"+
			"NM1*PR*2*EXAMPLE HEALTH*****PI*60054~"+
			"SBR*P*18~")
	opts := testOpts()
	opts.Context = ExtractClaimContext(header)

	block := segments(t, "CLM*C1*10.00~HI*ABK:E11.9~SV1*HC:99213*10.00*UN*1~")
	rec, warns := ExtractClaim(block, opts)

	if len(warns) != 0 {
		t.Errorf("unexpected warnings: %v", warns)
	}
	if rec.BillingProviderNPI != "1234567890" || rec.BillingProviderName != "ACME MEDICAL GROUP" {
		t.Errorf("billing provider = %q / %q", rec.BillingProviderNPI, rec.BillingProviderName)
	}
	if rec.PayerID != "60054" || rec.PayerName != "EXAMPLE HEALTH" {
		t.Errorf("payer = %q / %q", rec.PayerID, rec.PayerName)
	}
	if rec.PayerResponsibility != "P" || rec.SubscriberRelationship != "18" {
		t.Errorf("SBR = %q / %q", rec.PayerResponsibility, rec.SubscriberRelationship)
	}

	t.Run("block values win", func(t *testing.T) {
		block := segments(t, "CLM*C2*10.00~HI*ABK:E11.9~SBR*S*01~"+
			"NM1*PR*2*OTHER PLAN*****PI*70001~")
		rec, _ := ExtractClaim(block, opts)
		if rec.PayerID != "70001" || rec.PayerResponsibility != "S" {
			t.Errorf("payer = %q, SBR01 = %q", rec.PayerID, rec.PayerResponsibility)
		}
	})
}

func TestExtractInstitutionalLines(t *testing.T) {
	block := segments(t, "CLM*C1*500.00~HI*ABK:E11.9~SBR*P*18~"+
		"SV2*0450*HC:99284*500.00*UN*1~")
	rec, _ := ExtractClaim(block, testOpts())
	if len(rec.Lines) != 1 {
		t.Fatalf("got %d lines, want 1", len(rec.Lines))
	}
	l := rec.Lines[0]
	if l.RevenueCode != "0450" || l.ProcedureCode != "99284" || l.Charge != "500.00" || l.Units != "1" {
		t.Errorf("SV2 line = %+v", l)
	}
}
