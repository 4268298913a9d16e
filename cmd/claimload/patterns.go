package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/nmartin15/claimflow/internal/db"
	"github.com/nmartin15/claimflow/internal/exitcode"
	"github.com/nmartin15/claimflow/internal/logging"
	"github.com/nmartin15/claimflow/internal/pattern"
	"github.com/nmartin15/claimflow/internal/store"
)

var (
	patternsPayerID  string
	patternsLookback time.Duration
	patternsMinOcc   int64
)

var patternsCmd = &cobra.Command{
	Use:   "patterns",
	Short: "Detect denial patterns for a payer",
	RunE:  runPatterns,
}

func init() {
	f := patternsCmd.Flags()
	f.StringVar(&patternsPayerID, "payer", "", "Payer id (UUID, required)")
	f.DurationVar(&patternsLookback, "lookback", 180*24*time.Hour, "How far back to scan remittances")
	f.Int64Var(&patternsMinOcc, "min-occurrences", 3, "Occurrence floor below which a combination is ignored")
	_ = patternsCmd.MarkFlagRequired("payer")
	rootCmd.AddCommand(patternsCmd)
}

func runPatterns(cmd *cobra.Command, args []string) error {
	log := logging.Setup(cfg.LogFormat)
	ctx := context.Background()

	if cfg.DSN == "" {
		log.Error().Msg("--dsn or DATABASE_URL is required")
		os.Exit(exitcode.UsageError)
	}
	payerID, err := uuid.Parse(patternsPayerID)
	if err != nil {
		log.Error().Err(err).Msg("invalid payer id")
		os.Exit(exitcode.UsageError)
	}

	pool, err := db.NewPool(ctx, cfg.DSN)
	if err != nil {
		log.Error().Err(err).Msg("database connection failed")
		os.Exit(exitcode.DBConnError)
	}
	defer pool.Close()

	detector := pattern.New(store.NewPG(pool), log, pattern.Options{
		Lookback:       patternsLookback,
		MinOccurrences: patternsMinOcc,
	})
	res, err := detector.Run(ctx, payerID)
	if err != nil {
		log.Error().Err(err).Msg("pattern detection failed")
		os.Exit(exitcode.TransformError)
	}

	fmt.Printf("Pattern detection complete: %d remittances scanned, %d denials, %d patterns (%.1fs)\n",
		res.RemitsScanned, res.Denials, res.Patterns, res.Duration.Seconds())
	return nil
}
