package model

import (
	"time"

	"github.com/google/uuid"
)

// Risk levels bucketing the overall 0-100 score.
const (
	RiskLow      = "LOW"      // 0-30
	RiskMedium   = "MEDIUM"   // 31-60
	RiskHigh     = "HIGH"     // 61-80
	RiskCritical = "CRITICAL" // 81-100
)

// RiskLevel returns the bucket for an overall score.
func RiskLevel(overall int) string {
	switch {
	case overall <= 30:
		return RiskLow
	case overall <= 60:
		return RiskMedium
	case overall <= 80:
		return RiskHigh
	default:
		return RiskCritical
	}
}

// RiskFactor is one triggered rule with its recommendation.
type RiskFactor struct {
	Name           string `json:"name"`
	Detail         string `json:"detail"`
	Recommendation string `json:"recommendation"`
}

// RiskScore is the current denial-risk assessment for a Claim. Recomputed on
// demand, one current row per claim, not versioned.
type RiskScore struct {
	ID      uuid.UUID
	ClaimID uuid.UUID

	Overall int
	Level   string

	CodingScore        int
	DocumentationScore int
	PayerRuleScore     int
	HistoricalScore    int

	Factors []RiskFactor

	ScoredAt time.Time
}
