package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/nmartin15/claimflow/internal/edi"
	"github.com/nmartin15/claimflow/internal/exitcode"
	"github.com/nmartin15/claimflow/internal/extract"
	"github.com/nmartin15/claimflow/internal/ingest"
	"github.com/nmartin15/claimflow/internal/logging"
	"github.com/nmartin15/claimflow/internal/normalize"
)

var planCmd = &cobra.Command{
	Use:   "plan",
	Short: "Dry-run validation and stats (no writes)",
	RunE:  runPlan,
}

func init() {
	planCmd.Flags().StringVar(&cfg.FilePath, "file", "", "Path to X12 EDI file (required)")
	_ = planCmd.MarkFlagRequired("file")
	rootCmd.AddCommand(planCmd)
}

func runPlan(cmd *cobra.Command, args []string) error {
	log := logging.Setup(cfg.LogFormat)
	ctx := context.Background()

	if err := cfg.Validate(); err != nil {
		log.Error().Err(err).Msg("config validation failed")
		os.Exit(exitcode.UsageError)
	}

	sha, err := normalize.FileHash(cfg.FilePath)
	if err != nil {
		log.Error().Err(err).Msg("failed to hash file")
		os.Exit(exitcode.ValidationError)
	}

	stat, err := os.Stat(cfg.FilePath)
	if err != nil {
		log.Error().Err(err).Msg("failed to stat file")
		os.Exit(exitcode.ValidationError)
	}

	parsed, err := ingest.Parse(ctx, log, cfg.FilePath)
	if err != nil {
		log.Error().Err(err).Msg("file failed validation")
		os.Exit(exitcode.StructuralError)
	}

	opts := extract.Options{
		LeniencyThreshold: cfg.LeniencyThreshold,
		Delimiters:        parsed.Delimiters,
	}

	var incomplete, warnings int
	warnings = len(parsed.Warnings)
	for _, block := range parsed.Blocks {
		switch parsed.Envelope.TransactionType {
		case edi.Transaction837:
			rec, warns := extract.ExtractClaim(block, opts)
			warnings += len(warns)
			if rec.Missing {
				incomplete++
			}
		case edi.Transaction835:
			rec, warns := extract.ExtractRemittance(block, opts)
			warnings += len(warns)
			if rec.Missing {
				incomplete++
			}
		}
	}

	fmt.Println("=== claimload plan ===")
	fmt.Printf("File:             %s\n", cfg.FilePath)
	fmt.Printf("SHA-256:          %s\n", sha)
	fmt.Printf("Size:             %d bytes\n", stat.Size())
	fmt.Printf("Transaction type: %s\n", parsed.Envelope.TransactionType)
	fmt.Printf("Sender (ISA06):   %s\n", parsed.Envelope.SenderID)
	fmt.Printf("Version (GS08):   %s\n", parsed.Envelope.GroupVersion)
	fmt.Printf("Segments:         %d\n", parsed.SegmentsRead)
	fmt.Printf("Blocks:           %d\n", len(parsed.Blocks))
	fmt.Printf("Incomplete:       %d\n", incomplete)
	fmt.Printf("Warnings:         %d\n", warnings)
	fmt.Println("Envelope validation: OK")

	return nil
}
