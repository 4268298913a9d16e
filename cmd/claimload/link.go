package main

import (
	"context"
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/nmartin15/claimflow/internal/db"
	"github.com/nmartin15/claimflow/internal/exitcode"
	"github.com/nmartin15/claimflow/internal/link"
	"github.com/nmartin15/claimflow/internal/logging"
	"github.com/nmartin15/claimflow/internal/store"
)

var (
	linkPayerID string
	linkLimit   int
)

var linkCmd = &cobra.Command{
	Use:   "link",
	Short: "Link unmatched remittances to their claims",
	RunE:  runLink,
}

func init() {
	f := linkCmd.Flags()
	f.StringVar(&linkPayerID, "payer", "", "Limit linking to one payer id (UUID)")
	f.IntVar(&linkLimit, "limit", 0, "Cap remittances processed this run (0 = no cap)")
	rootCmd.AddCommand(linkCmd)
}

func runLink(cmd *cobra.Command, args []string) error {
	log := logging.Setup(cfg.LogFormat)
	ctx := context.Background()

	if cfg.DSN == "" {
		log.Error().Msg("--dsn or DATABASE_URL is required")
		os.Exit(exitcode.UsageError)
	}

	var payerID *uuid.UUID
	if linkPayerID != "" {
		id, err := uuid.Parse(linkPayerID)
		if err != nil {
			log.Error().Err(err).Msg("invalid payer id")
			os.Exit(exitcode.UsageError)
		}
		payerID = &id
	}

	pool, err := db.NewPool(ctx, cfg.DSN)
	if err != nil {
		log.Error().Err(err).Msg("database connection failed")
		os.Exit(exitcode.DBConnError)
	}
	defer pool.Close()

	linker := link.New(store.NewPG(pool), log, link.Options{
		CompletionToleranceBPS: cfg.CompletionToleranceBPS,
		FuzzyAmountBPS:         cfg.FuzzyAmountBPS,
		FuzzyWindowDays:        cfg.FuzzyWindowDays,
		Limit:                  linkLimit,
	})
	res, err := linker.Run(ctx, payerID)
	if err != nil {
		log.Error().Err(err).Msg("linking failed")
		os.Exit(exitcode.LinkError)
	}

	fmt.Printf("Linking complete: %d linked (%d fuzzy), %d unmatched, %d completed, %d denied (%.1fs)\n",
		res.Linked, res.FuzzyLinked, res.Unmatched, res.Completed, res.Denied,
		res.Duration.Seconds())
	return nil
}
