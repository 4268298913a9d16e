package risk

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/nmartin15/claimflow/internal/config"
	"github.com/nmartin15/claimflow/internal/model"
	"github.com/nmartin15/claimflow/internal/pattern"
	"github.com/nmartin15/claimflow/internal/store"
)

func testWeights() config.WeightConfig {
	return config.WeightConfig{Coding: 0.3, Documentation: 0.2, PayerRules: 0.3, Historical: 0.2}
}

func seedScorableClaim(t *testing.T, m *store.Memory, mutate func(*model.Claim)) *model.Claim {
	t.Helper()
	now := time.Date(2024, time.January, 10, 0, 0, 0, 0, time.UTC)
	pd := "E11.9"
	pat := "PAT001"
	c := &model.Claim{
		ProviderID:           uuid.New(),
		PayerID:              uuid.New(),
		ClaimControlNumber:   "CLM001",
		PatientControlNumber: &pat,
		TotalChargeCents:     15000,
		DiagnosisCodes:       []string{"E11.9", "I10.9"},
		PrincipalDiagnosis:   &pd,
		ServiceDate:          &now,
	}
	if mutate != nil {
		mutate(c)
	}
	lines := []model.ClaimLine{
		{LineNumber: 1, ProcedureCode: "99213", ChargeCents: 7500, Units: 1},
		{LineNumber: 2, ProcedureCode: "80053", ChargeCents: 7500, Units: 1},
	}
	if err := m.CreateClaim(context.Background(), c, lines); err != nil {
		t.Fatalf("seed claim: %v", err)
	}
	return c
}

func TestScoreCleanClaim(t *testing.T) {
	ctx := context.Background()
	m := store.NewMemory()
	c := seedScorableClaim(t, m, nil)

	got, err := New(m, zerolog.Nop(), testWeights(), nil).Score(ctx, c.ID)
	if err != nil {
		t.Fatalf("Score: %v", err)
	}
	if got.Overall != 0 || got.Level != "LOW" {
		t.Errorf("clean claim scored %d (%s)", got.Overall, got.Level)
	}
	if len(got.Factors) != 0 {
		t.Errorf("factors = %+v", got.Factors)
	}

	// The score is persisted and replaces on re-score.
	saved, err := m.GetRiskScore(ctx, c.ID)
	if err != nil {
		t.Fatalf("GetRiskScore: %v", err)
	}
	if saved.Overall != got.Overall {
		t.Errorf("saved %d, returned %d", saved.Overall, got.Overall)
	}
}

func TestScoreMissingDiagnoses(t *testing.T) {
	ctx := context.Background()
	m := store.NewMemory()
	c := seedScorableClaim(t, m, func(c *model.Claim) {
		c.DiagnosisCodes = nil
		c.PrincipalDiagnosis = nil
	})

	got, err := New(m, zerolog.Nop(), testWeights(), nil).Score(ctx, c.ID)
	if err != nil {
		t.Fatalf("Score: %v", err)
	}
	// Coding: 40 (no principal) + 50 (no diagnoses) = 90; weighted 0.3 → 27.
	if got.CodingScore != 90 {
		t.Errorf("CodingScore = %d", got.CodingScore)
	}
	if got.Overall != 27 || got.Level != "LOW" {
		t.Errorf("Overall = %d (%s)", got.Overall, got.Level)
	}
	if len(got.Factors) != 2 {
		t.Errorf("factors = %+v", got.Factors)
	}
}

func TestScoreIncompleteClaim(t *testing.T) {
	ctx := context.Background()
	m := store.NewMemory()
	c := seedScorableClaim(t, m, func(c *model.Claim) {
		c.Incomplete = true
		c.ServiceDate = nil
		c.PatientControlNumber = nil
		c.Warnings = []model.Warning{
			{Code: model.WarnBadAmount, Segment: "CLM", Message: "unparsable total charge amount"},
		}
	})

	got, err := New(m, zerolog.Nop(), testWeights(), nil).Score(ctx, c.ID)
	if err != nil {
		t.Fatalf("Score: %v", err)
	}
	// Documentation: 40 + 30 + 15 + 5 = 90.
	if got.DocumentationScore != 90 {
		t.Errorf("DocumentationScore = %d", got.DocumentationScore)
	}
}

func TestScoreMalformedDiagnosisCapped(t *testing.T) {
	ctx := context.Background()
	m := store.NewMemory()
	c := seedScorableClaim(t, m, func(c *model.Claim) {
		c.DiagnosisCodes = []string{"NOT-A-CODE", "12345", "XXXX", "ALSO BAD"}
	})

	got, err := New(m, zerolog.Nop(), testWeights(), nil).Score(ctx, c.ID)
	if err != nil {
		t.Fatalf("Score: %v", err)
	}
	// Four malformed codes would be 60 points; the rule caps at 45.
	if got.CodingScore != 45 {
		t.Errorf("CodingScore = %d", got.CodingScore)
	}
}

func TestScorePayerPattern(t *testing.T) {
	ctx := context.Background()
	m := store.NewMemory()
	c := seedScorableClaim(t, m, nil)

	if err := m.UpsertDenialPattern(ctx, &model.DenialPattern{
		PayerID:       c.PayerID,
		PatternType:   pattern.TypeProcedureDenial,
		ProcedureCode: "99213",
		ReasonCode:    "45",
		Occurrences:   8,
		Frequency:     0.5,
		Confidence:    0.8,
		FirstSeen:     time.Now().UTC().AddDate(0, -2, 0),
		LastSeen:      time.Now().UTC(),
	}); err != nil {
		t.Fatalf("seed pattern: %v", err)
	}

	got, err := New(m, zerolog.Nop(), testWeights(), nil).Score(ctx, c.ID)
	if err != nil {
		t.Fatalf("Score: %v", err)
	}
	// One line hits the pattern: 0.8 * 60 = 48 payer-rule points; the
	// payer's 50% denial frequency drives the historical component.
	if got.PayerRuleScore != 48 {
		t.Errorf("PayerRuleScore = %d", got.PayerRuleScore)
	}
	if got.HistoricalScore != 50 {
		t.Errorf("HistoricalScore = %d", got.HistoricalScore)
	}
	// 0.3*48 + 0.2*50 = 24.4 → 24, MEDIUM territory starts above 30.
	if got.Overall != 24 || got.Level != "LOW" {
		t.Errorf("Overall = %d (%s)", got.Overall, got.Level)
	}

	found := false
	for _, f := range got.Factors {
		if f.Name == "payer-denies-procedure" {
			found = true
		}
	}
	if !found {
		t.Errorf("no payer factor in %+v", got.Factors)
	}
}

func TestScoreExternalPredictor(t *testing.T) {
	ctx := context.Background()
	m := store.NewMemory()
	c := seedScorableClaim(t, m, nil)

	predict := func(ctx context.Context, c *model.Claim, lines []model.ClaimLine) (float64, error) {
		return 0.9, nil
	}
	got, err := New(m, zerolog.Nop(), testWeights(), predict).Score(ctx, c.ID)
	if err != nil {
		t.Fatalf("Score: %v", err)
	}
	// No pattern history: (0 + 90) / 2 = 45.
	if got.HistoricalScore != 45 {
		t.Errorf("HistoricalScore = %d", got.HistoricalScore)
	}

	t.Run("predictor failure falls back to history", func(t *testing.T) {
		failing := func(ctx context.Context, c *model.Claim, lines []model.ClaimLine) (float64, error) {
			return 0, errors.New("model endpoint unavailable")
		}
		got, err := New(m, zerolog.Nop(), testWeights(), failing).Score(ctx, c.ID)
		if err != nil {
			t.Fatalf("Score: %v", err)
		}
		if got.HistoricalScore != 0 {
			t.Errorf("HistoricalScore = %d", got.HistoricalScore)
		}
	})
}

func TestScoreLevels(t *testing.T) {
	cases := []struct {
		overall int
		level   string
	}{
		{0, "LOW"}, {30, "LOW"}, {31, "MEDIUM"}, {60, "MEDIUM"},
		{61, "HIGH"}, {80, "HIGH"}, {81, "CRITICAL"}, {100, "CRITICAL"},
	}
	for _, tc := range cases {
		if got := model.RiskLevel(tc.overall); got != tc.level {
			t.Errorf("RiskLevel(%d) = %q, want %q", tc.overall, got, tc.level)
		}
	}
}
