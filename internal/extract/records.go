package extract

import (
	"github.com/nmartin15/claimflow/internal/edi"
	"github.com/nmartin15/claimflow/internal/formatprofile"
)

// Options tune extractor leniency. Profile may be nil (no history yet);
// LeniencyThreshold is the share of files a segment must be absent from
// before its absence stops producing warnings. Context carries the 837
// file-level provider and payer loops that precede the claim loops.
type Options struct {
	Profile           *formatprofile.Profile
	LeniencyThreshold float64
	Delimiters        edi.Delimiters
	Context           ClaimContext
}

// ClaimContext is extracted once per 837 file from the header block. Claim
// blocks inherit these values unless they carry their own loops.
type ClaimContext struct {
	BillingProviderNPI     string
	BillingProviderName    string
	RenderingProviderNPI   string
	PayerID                string
	PayerName              string
	PayerResponsibility    string
	SubscriberRelationship string
}

// DateValue is a raw DTP date as extracted: qualifier, declared format, and
// unparsed value. The transformer parses it; extractors never fail on dates.
type DateValue struct {
	Qualifier string
	Format    string // D8, D6, RD8
	Value     string
}

// LineRecord is one extracted 837 service line (SV1 or SV2).
type LineRecord struct {
	Number        int
	ProcedureCode string
	RevenueCode   string // SV2 institutional lines only
	Charge        string
	Units         string
	ServiceDate   DateValue
}

// ClaimRecord is the possibly-partial output of the 837 extractor suite for
// one claim block. All amounts and dates are raw strings; parsing belongs to
// the transformer.
type ClaimRecord struct {
	ControlNumber        string // CLM01
	PatientControlNumber string // REF D9 when present
	Charge               string // CLM02
	FacilityCode         string // CLM05-1
	FrequencyCode        string // CLM05-3

	DiagnosisCodes     []string
	PrincipalDiagnosis string

	Dates map[string]DateValue // keyed by claimDateFields slot
	Refs  map[string]string    // keyed by refFields slot

	BillingProviderNPI   string
	BillingProviderName  string
	RenderingProviderNPI string

	PayerID                string
	PayerName              string
	PayerResponsibility    string // SBR01
	SubscriberRelationship string // SBR02
	SubscriberBirthDate    DateValue

	Lines []LineRecord

	// Missing is true when the block had no CLM segment at all; the record is
	// empty and the caller decides how to handle incompleteness.
	Missing bool
}

// AdjustmentRecord is one CAS adjustment triplet as extracted.
type AdjustmentRecord struct {
	Group    string // CO, CR, OA, PI, PR
	Category string // derived via AdjustmentCategory
	Reason   string
	Amount   string
	Quantity string
}

// LinePaymentRecord is one SVC service-line payment as extracted.
type LinePaymentRecord struct {
	ProcedureCode string
	Charge        string
	Paid          string
	Units         string
	Adjustments   []AdjustmentRecord
}

// RemitRecord is the possibly-partial output of the 835 extractor suite for
// one payment block.
type RemitRecord struct {
	ControlNumber        string // CLP01
	Status               string // CLP02
	Charge               string // CLP03
	Payment              string // CLP04
	PatientResp          string // CLP05
	PayerControlNumber   string // CLP07
	PatientControlNumber string // REF D9 when present

	ServiceStart DateValue // claim-level DTM 232
	ServiceEnd   DateValue // claim-level DTM 233

	Adjustments []AdjustmentRecord
	Lines       []LinePaymentRecord
	Amounts     map[string]string // AMT qualifier -> raw amount
	Refs        map[string]string

	Missing bool
}

// PaymentContext is extracted once per 835 file from the header block.
type PaymentContext struct {
	TotalPaid     string // BPR02
	PaymentMethod string // BPR04
	PaymentDate   DateValue
	TraceNumber   string // TRN02
	PayerName     string // N1*PR
	PayerID       string // N1*PR id or TRN03
	PayeeName     string // N1*PE
	PayeeNPI      string
}
