package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/nmartin15/claimflow/internal/config"
	"github.com/nmartin15/claimflow/internal/db"
	"github.com/nmartin15/claimflow/internal/exitcode"
	"github.com/nmartin15/claimflow/internal/ingest"
	"github.com/nmartin15/claimflow/internal/logging"
	"github.com/nmartin15/claimflow/internal/store"
)

var ingestConfigPath string

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Ingest an 837 or 835 file into the database",
	RunE:  runIngest,
}

func init() {
	f := ingestCmd.Flags()
	f.StringVar(&cfg.FilePath, "file", "", "Path to X12 EDI file (required)")
	f.StringVar(&cfg.OriginatorID, "originator", "", "Originator id for format profiling (defaults to ISA06 sender)")
	f.StringVar(&cfg.Mode, "mode", config.ModeUpload, "Duplicate handling: upload (duplicates are errors) or reprocess (duplicates are skipped)")
	f.BoolVar(&cfg.Streaming, "streaming", false, "Stream blocks instead of tokenizing the whole file up front")
	f.BoolVar(&cfg.Force, "force", false, "Re-import even if file SHA already exists")
	f.StringVar(&ingestConfigPath, "config", "", "Path to YAML tuning config")
	_ = ingestCmd.MarkFlagRequired("file")
	rootCmd.AddCommand(ingestCmd)
}

func runIngest(cmd *cobra.Command, args []string) error {
	log := logging.Setup(cfg.LogFormat)
	ctx := context.Background()

	if ingestConfigPath != "" {
		if err := cfg.LoadFromFile(ingestConfigPath); err != nil {
			log.Error().Err(err).Msg("config file load failed")
			os.Exit(exitcode.UsageError)
		}
	}
	if err := cfg.ValidateWithDSN(); err != nil {
		log.Error().Err(err).Msg("config validation failed")
		os.Exit(exitcode.UsageError)
	}

	pool, err := db.NewPool(ctx, cfg.DSN)
	if err != nil {
		log.Error().Err(err).Msg("database connection failed")
		os.Exit(exitcode.DBConnError)
	}
	defer pool.Close()

	summary, err := ingest.Run(ctx, store.NewPG(pool), log, &cfg)
	if err != nil {
		if pe, ok := err.(*ingest.PipelineError); ok {
			log.Error().Err(pe.Err).Str("phase", pe.Phase).Msg("ingest failed")
			switch pe.Phase {
			case "preflight":
				os.Exit(exitcode.ValidationError)
			case "parse":
				os.Exit(exitcode.StructuralError)
			default:
				os.Exit(exitcode.TransformError)
			}
		}
		log.Error().Err(err).Msg("ingest failed")
		os.Exit(exitcode.TransformError)
	}

	fmt.Printf("Ingest complete: %d claims, %d remittances, %d duplicates skipped (%.1fs)\n",
		summary.ClaimsPersisted, summary.RemitsPersisted, summary.DuplicatesSkipped,
		summary.DurationTotal.Seconds())
	return nil
}
