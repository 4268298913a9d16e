package model

import (
	"time"

	"github.com/google/uuid"
)

// DenialPattern is a payer-scoped mined denial signature: a recurring
// (procedure code, adjustment reason code) combination across reconciled
// episodes. Refreshed by the pattern detector; read-only to the risk scorer.
type DenialPattern struct {
	ID      uuid.UUID
	PayerID uuid.UUID

	PatternType   string // e.g. "procedure_reason"
	Description   string
	ProcedureCode string
	ReasonCode    string

	Occurrences int64
	Frequency   float64 // occurrences / episodes in lookback window
	Confidence  float64 // 0..1, rises with count, decays with recency gap

	FirstSeen time.Time
	LastSeen  time.Time
	UpdatedAt time.Time
}
