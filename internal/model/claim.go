package model

import (
	"time"

	"github.com/google/uuid"
)

// Provider is a billing or rendering provider, keyed by NPI.
type Provider struct {
	ID        uuid.UUID
	NPI       string
	Name      *string
	CreatedAt time.Time
}

// Payer is an insurance payer, keyed by its natural identifier from the file.
type Payer struct {
	ID         uuid.UUID
	ExternalID string
	Name       *string
	CreatedAt  time.Time
}

// Claim is one persisted 837 claim. It is owned by exactly one Provider and
// one Payer and is immutable after creation except for linkage and score
// back-references. Money values are int64 cents.
type Claim struct {
	ID         uuid.UUID
	EDIFileID  int64
	ProviderID uuid.UUID
	PayerID    uuid.UUID

	// ClaimControlNumber is CLM01, unique per provider/payer pair.
	ClaimControlNumber   string
	PatientControlNumber *string

	TotalChargeCents int64
	FacilityCode     *string
	FrequencyCode    *string

	DiagnosisCodes     []string
	PrincipalDiagnosis *string

	StatementStart *time.Time
	StatementEnd   *time.Time
	ServiceDate    *time.Time

	Warnings   []Warning
	Incomplete bool
	CreatedAt  time.Time
}

// ClaimLine is one service line, owned exclusively by its Claim.
type ClaimLine struct {
	ID            uuid.UUID
	ClaimID       uuid.UUID
	LineNumber    int
	ProcedureCode string
	ChargeCents   int64
	Units         float64
	ServiceDate   *time.Time
}

// LineColumns is the COPY column order for claim_lines.
func LineColumns() []string {
	return []string{"id", "claim_id", "line_number", "procedure_code", "charge_cents", "units", "service_date"}
}

// CopyValues returns the line's values in LineColumns order.
func (l ClaimLine) CopyValues() []any {
	return []any{l.ID, l.ClaimID, l.LineNumber, l.ProcedureCode, l.ChargeCents, l.Units, l.ServiceDate}
}

// LineChargeSumCents returns the sum of charges across the given lines.
func LineChargeSumCents(lines []ClaimLine) int64 {
	var sum int64
	for _, l := range lines {
		sum += l.ChargeCents
	}
	return sum
}
