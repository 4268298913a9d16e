package model

import (
	"time"

	"github.com/google/uuid"
)

// ClaimEpisode reconciliation states. An episode moves
// pending → linked → complete, or pending → denied.
const (
	EpisodePending  = "pending"
	EpisodeLinked   = "linked"
	EpisodeComplete = "complete"
	EpisodeDenied   = "denied"
)

// ClaimEpisode reconciles one Claim with zero or more Remittances.
type ClaimEpisode struct {
	ID      uuid.UUID
	ClaimID uuid.UUID
	PayerID uuid.UUID

	Status string

	PaymentCents    int64
	AdjustmentCents int64
	DenialCount     int
	AdjustmentCount int

	LinkedAt  *time.Time
	UpdatedAt time.Time
}

// CoveredCents is the amount accounted for by payments plus adjustments.
func (e *ClaimEpisode) CoveredCents() int64 {
	return e.PaymentCents + e.AdjustmentCents
}

// Covers reports whether payment plus adjustment reaches the charge amount
// within toleranceCents.
func (e *ClaimEpisode) Covers(chargeCents, toleranceCents int64) bool {
	return e.CoveredCents() >= chargeCents-toleranceCents
}
