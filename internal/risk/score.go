// Package risk computes the denial-risk score for a claim before it goes out
// the door. The overall 0-100 score blends four components: coding quality,
// documentation completeness, payer-specific rules, and the payer's
// historical denial patterns. Every triggered rule surfaces as a factor with
// a concrete recommendation.
package risk

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/nmartin15/claimflow/internal/config"
	"github.com/nmartin15/claimflow/internal/model"
	"github.com/nmartin15/claimflow/internal/pattern"
	"github.com/nmartin15/claimflow/internal/store"
)

// PredictFunc is an optional external predictor returning a 0-1 denial
// probability for a claim. When set, its output blends into the historical
// component.
type PredictFunc func(ctx context.Context, c *model.Claim, lines []model.ClaimLine) (float64, error)

// Scorer computes and persists risk scores.
type Scorer struct {
	st      store.Store
	log     zerolog.Logger
	weights config.WeightConfig
	predict PredictFunc
}

func New(st store.Store, log zerolog.Logger, weights config.WeightConfig, predict PredictFunc) *Scorer {
	return &Scorer{st: st, log: log, weights: weights, predict: predict}
}

// Score computes the claim's risk score and saves it, replacing any previous
// score for the claim.
func (s *Scorer) Score(ctx context.Context, claimID uuid.UUID) (*model.RiskScore, error) {
	claim, err := s.st.GetClaim(ctx, claimID)
	if err != nil {
		return nil, fmt.Errorf("load claim: %w", err)
	}
	lines, err := s.st.GetClaimLines(ctx, claimID)
	if err != nil {
		return nil, fmt.Errorf("load claim lines: %w", err)
	}
	patterns, err := s.st.ListDenialPatterns(ctx, claim.PayerID)
	if err != nil {
		return nil, fmt.Errorf("load denial patterns: %w", err)
	}

	score := s.compute(ctx, claim, lines, patterns)

	if err := s.st.SaveRiskScore(ctx, score); err != nil {
		return nil, fmt.Errorf("save risk score: %w", err)
	}

	s.log.Info().
		Str("claim_id", claimID.String()).
		Int("overall", score.Overall).
		Str("level", score.Level).
		Int("factors", len(score.Factors)).
		Msg("claim scored")

	return score, nil
}

func (s *Scorer) compute(ctx context.Context, claim *model.Claim, lines []model.ClaimLine, patterns []*model.DenialPattern) *model.RiskScore {
	score := &model.RiskScore{
		ID:       uuid.New(),
		ClaimID:  claim.ID,
		ScoredAt: time.Now().UTC(),
	}

	score.CodingScore = runRules(codingRules, claim, lines, &score.Factors)
	score.DocumentationScore = runRules(documentationRules, claim, lines, &score.Factors)
	score.PayerRuleScore = s.payerRuleScore(claim, lines, patterns, &score.Factors)
	score.HistoricalScore = s.historicalScore(ctx, claim, lines, patterns, &score.Factors)

	overall := s.weights.Coding*float64(score.CodingScore) +
		s.weights.Documentation*float64(score.DocumentationScore) +
		s.weights.PayerRules*float64(score.PayerRuleScore) +
		s.weights.Historical*float64(score.HistoricalScore)
	score.Overall = clamp(int(math.Round(overall)))
	score.Level = model.RiskLevel(score.Overall)
	return score
}

func runRules(rules []Rule, claim *model.Claim, lines []model.ClaimLine, factors *[]model.RiskFactor) int {
	total := 0
	for _, r := range rules {
		points, factor := r.Evaluate(claim, lines)
		if factor != nil {
			*factors = append(*factors, *factor)
		}
		total += points
	}
	return clamp(total)
}

// payerRuleScore flags claims whose procedures sit inside the payer's known
// pattern table: a procedure the payer habitually denies is risky before any
// other signal.
func (s *Scorer) payerRuleScore(claim *model.Claim, lines []model.ClaimLine, patterns []*model.DenialPattern, factors *[]model.RiskFactor) int {
	byProcedure := map[string]*model.DenialPattern{}
	for _, p := range patterns {
		if p.PatternType == pattern.TypeProcedureDenial && p.ProcedureCode != "" {
			byProcedure[p.ProcedureCode] = p
		}
	}
	if len(byProcedure) == 0 {
		return 0
	}

	total := 0
	for _, l := range lines {
		p, ok := byProcedure[l.ProcedureCode]
		if !ok {
			continue
		}
		points := int(math.Round(p.Confidence * 60))
		total += points
		*factors = append(*factors, model.RiskFactor{
			Name: "payer-denies-procedure",
			Detail: fmt.Sprintf("payer has denied procedure %s %d time(s), reason %s",
				p.ProcedureCode, p.Occurrences, p.ReasonCode),
			Recommendation: "review the payer's coverage policy for this procedure before submission",
		})
	}
	return clamp(total)
}

// historicalScore reflects the payer's overall denial pressure, blended with
// the external predictor when configured.
func (s *Scorer) historicalScore(ctx context.Context, claim *model.Claim, lines []model.ClaimLine, patterns []*model.DenialPattern, factors *[]model.RiskFactor) int {
	var freq float64
	for _, p := range patterns {
		if p.Frequency > freq {
			freq = p.Frequency
		}
	}
	base := freq * 100

	if s.predict != nil {
		prob, err := s.predict(ctx, claim, lines)
		if err != nil {
			s.log.Warn().Err(err).Msg("external prediction failed, using pattern history only")
		} else {
			// Equal blend: the predictor and the pattern table each carry
			// half the component.
			base = (base + prob*100) / 2
			*factors = append(*factors, model.RiskFactor{
				Name:           "predicted-denial-probability",
				Detail:         fmt.Sprintf("external model predicts %.0f%% denial probability", prob*100),
				Recommendation: "treat as advisory; the prediction carries half the historical weight",
			})
		}
	}
	return clamp(int(math.Round(base)))
}

func clamp(v int) int {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}
