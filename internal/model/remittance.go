package model

import (
	"time"

	"github.com/google/uuid"
)

// CLP02 claim status codes consumed from 835 files.
const (
	ClaimStatusPrimary   = "1"
	ClaimStatusSecondary = "2"
	ClaimStatusTertiary  = "3"
	ClaimStatusDenied    = "4"
	ClaimStatusReversal  = "22"
)

// Adjustment categories derived from the CAS group code.
const (
	AdjContractual = "contractual"
	AdjPatientResp = "patient-responsibility"
	AdjOther       = "other"
)

// Adjustment is one CAS adjustment triplet on a remittance.
type Adjustment struct {
	Category    string  `json:"category"` // contractual, patient-responsibility, other
	Group       string  `json:"group"`    // CO, CR, OA, PI, PR
	ReasonCode  string  `json:"reason_code"`
	AmountCents int64   `json:"amount_cents"`
	Quantity    float64 `json:"quantity"` // CAS units, defaults to 1
}

// LinePayment is one SVC service-line payment on a remittance.
type LinePayment struct {
	ProcedureCode string       `json:"procedure_code"`
	ChargeCents   int64        `json:"charge_cents"`
	PaidCents     int64        `json:"paid_cents"`
	Units         float64      `json:"units"`
	Adjustments   []Adjustment `json:"adjustments,omitempty"`
}

// Remittance is one persisted 835 claim payment. It is owned by a Payer and
// links to at most one Claim through a ClaimEpisode.
type Remittance struct {
	ID        uuid.UUID
	EDIFileID int64
	PayerID   uuid.UUID

	// ClaimControlNumber is CLP01, expected to match a Claim's control number.
	ClaimControlNumber   string
	PatientControlNumber *string
	ClaimStatus          string

	ChargeCents      int64
	PaymentCents     int64
	PatientRespCents int64

	// Service period from the claim-level DTM 232/233 pair, when transmitted.
	ServiceStart *time.Time
	ServiceEnd   *time.Time

	Adjustments  []Adjustment
	LinePayments []LinePayment

	// EpisodeID is set once the linker has attached this remittance.
	EpisodeID *uuid.UUID

	Warnings   []Warning
	Incomplete bool
	CreatedAt  time.Time
}

// AdjustmentSumCents returns the total adjusted amount across all adjustments.
func (r *Remittance) AdjustmentSumCents() int64 {
	var sum int64
	for _, a := range r.Adjustments {
		sum += a.AmountCents
	}
	return sum
}

// DenialOnly reports whether the remittance carries zero payment and only
// denial-category adjustments. PR (patient responsibility) adjustments are
// cost sharing, not denial.
func (r *Remittance) DenialOnly() bool {
	if r.PaymentCents != 0 {
		return false
	}
	if r.ClaimStatus == ClaimStatusDenied {
		return true
	}
	if len(r.Adjustments) == 0 {
		return false
	}
	for _, a := range r.Adjustments {
		if a.Category == AdjPatientResp {
			return false
		}
	}
	return true
}
