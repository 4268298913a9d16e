package main

import (
	"context"
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/nmartin15/claimflow/internal/db"
	"github.com/nmartin15/claimflow/internal/exitcode"
	"github.com/nmartin15/claimflow/internal/export"
	"github.com/nmartin15/claimflow/internal/logging"
	"github.com/nmartin15/claimflow/internal/store"
)

var (
	exportWhat    string
	exportPayerID string
	exportOut     string
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export episodes or denial patterns to Parquet",
	RunE:  runExport,
}

func init() {
	f := exportCmd.Flags()
	f.StringVar(&exportWhat, "what", "episodes", "What to export: episodes or patterns")
	f.StringVar(&exportPayerID, "payer", "", "Payer id (UUID; required for patterns, optional for episodes)")
	f.StringVar(&exportOut, "out", "", "Output Parquet path (required)")
	_ = exportCmd.MarkFlagRequired("out")
	rootCmd.AddCommand(exportCmd)
}

func runExport(cmd *cobra.Command, args []string) error {
	log := logging.Setup(cfg.LogFormat)
	ctx := context.Background()

	if cfg.DSN == "" {
		log.Error().Msg("--dsn or DATABASE_URL is required")
		os.Exit(exitcode.UsageError)
	}

	var payerID *uuid.UUID
	if exportPayerID != "" {
		id, err := uuid.Parse(exportPayerID)
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

	st := store.NewPG(pool)

	var res *export.Result
	switch exportWhat {
	case "episodes":
		res, err = export.Episodes(ctx, st, log, store.EpisodeFilter{PayerID: payerID}, exportOut)
	case "patterns":
		if payerID == nil {
			log.Error().Msg("--payer is required for pattern export")
			os.Exit(exitcode.UsageError)
		}
		res, err = export.Patterns(ctx, st, log, *payerID, exportOut)
	default:
		log.Error().Str("what", exportWhat).Msg("unknown export target")
		os.Exit(exitcode.UsageError)
	}
	if err != nil {
		log.Error().Err(err).Msg("export failed")
		os.Exit(exitcode.TransformError)
	}

	fmt.Printf("Export complete: %d rows written to %s (%.1fs)\n",
		res.Rows, res.Path, res.Duration.Seconds())
	return nil
}
