package main

import (
	"context"
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/nmartin15/claimflow/internal/db"
	"github.com/nmartin15/claimflow/internal/exitcode"
	"github.com/nmartin15/claimflow/internal/logging"
	"github.com/nmartin15/claimflow/internal/risk"
	"github.com/nmartin15/claimflow/internal/store"
)

var scoreClaimID string

var scoreCmd = &cobra.Command{
	Use:   "score",
	Short: "Compute the denial-risk score for a claim",
	RunE:  runScore,
}

func init() {
	scoreCmd.Flags().StringVar(&scoreClaimID, "claim", "", "Claim id (UUID, required)")
	_ = scoreCmd.MarkFlagRequired("claim")
	rootCmd.AddCommand(scoreCmd)
}

func runScore(cmd *cobra.Command, args []string) error {
	log := logging.Setup(cfg.LogFormat)
	ctx := context.Background()

	if cfg.DSN == "" {
		log.Error().Msg("--dsn or DATABASE_URL is required")
		os.Exit(exitcode.UsageError)
	}
	claimID, err := uuid.Parse(scoreClaimID)
	if err != nil {
		log.Error().Err(err).Msg("invalid claim id")
		os.Exit(exitcode.UsageError)
	}

	pool, err := db.NewPool(ctx, cfg.DSN)
	if err != nil {
		log.Error().Err(err).Msg("database connection failed")
		os.Exit(exitcode.DBConnError)
	}
	defer pool.Close()

	scorer := risk.New(store.NewPG(pool), log, cfg.Weights, nil)
	score, err := scorer.Score(ctx, claimID)
	if err != nil {
		log.Error().Err(err).Msg("scoring failed")
		os.Exit(exitcode.TransformError)
	}

	fmt.Printf("Risk score: %d (%s)\n", score.Overall, score.Level)
	fmt.Printf("  coding=%d documentation=%d payer-rules=%d historical=%d\n",
		score.CodingScore, score.DocumentationScore, score.PayerRuleScore, score.HistoricalScore)
	for _, f := range score.Factors {
		fmt.Printf("  - %s: %s\n    %s\n", f.Name, f.Detail, f.Recommendation)
	}
	return nil
}
