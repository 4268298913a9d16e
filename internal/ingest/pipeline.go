package ingest

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/nmartin15/claimflow/internal/config"
	"github.com/nmartin15/claimflow/internal/model"
	"github.com/nmartin15/claimflow/internal/store"
)

// PipelineError wraps an error with the phase where it occurred.
type PipelineError struct {
	Phase string
	Err   error
}

func (e *PipelineError) Error() string {
	return fmt.Sprintf("%s: %s", e.Phase, e.Err)
}

func (e *PipelineError) Unwrap() error {
	return e.Err
}

// Run executes the full ingest pipeline: preflight → parse → transform.
// The transform phase runs in a single transaction per file: either every
// record of the file lands, or none do.
func Run(ctx context.Context, st store.Store, log zerolog.Logger, cfg *config.Config) (*model.IngestSummary, error) {
	totalStart := time.Now()

	// Phase 1: Preflight
	log.Info().Str("file", cfg.FilePath).Msg("starting preflight")
	pf, err := Preflight(ctx, st, log, cfg)
	if err != nil {
		return nil, &PipelineError{Phase: "preflight", Err: err}
	}

	if pf.AlreadyLoaded {
		log.Info().
			Int64("edi_file_id", pf.File.ID).
			Str("sha256", pf.FileSHA256).
			Msg("file already imported, skipping (use --force to re-import)")
		return &model.IngestSummary{
			FilePath:        pf.FilePath,
			FileSHA256:      pf.FileSHA256,
			EDIFileID:       pf.File.ID,
			IngestBatchID:   pf.IngestBatchID.String(),
			TransactionType: pf.TransactionType,
			DurationTotal:   time.Since(totalStart),
		}, nil
	}

	if cfg.Streaming {
		return runStreaming(ctx, st, log, cfg, pf, totalStart)
	}

	// Phase 2: Parse
	log.Info().Msg("starting parse")
	if err := st.UpdateFileStatus(ctx, pf.File.ID, store.FileStatusProcessing); err != nil {
		return nil, &PipelineError{Phase: "parse", Err: err}
	}

	parsed, err := Parse(ctx, log, pf.FilePath)
	if err != nil {
		_ = st.UpdateFileStatus(ctx, pf.File.ID, rejectionStatus(err))
		return nil, &PipelineError{Phase: "parse", Err: err}
	}

	// Phase 3: Transform
	log.Info().Msg("starting transform")
	tr, err := Transform(ctx, st, log, cfg, pf, parsed)
	if err != nil {
		_ = st.UpdateFileStatus(ctx, pf.File.ID, store.FileStatusFailed)
		return nil, &PipelineError{Phase: "transform", Err: err}
	}

	summary := &model.IngestSummary{
		FilePath:          pf.FilePath,
		FileSHA256:        pf.FileSHA256,
		EDIFileID:         pf.File.ID,
		IngestBatchID:     pf.IngestBatchID.String(),
		TransactionType:   parsed.Envelope.TransactionType,
		SegmentsRead:      parsed.SegmentsRead,
		BlocksRead:        int64(len(parsed.Blocks)),
		ClaimsExtracted:   tr.ClaimsExtracted,
		RemitsExtracted:   tr.RemitsExtracted,
		ClaimsPersisted:   tr.ClaimsPersisted,
		RemitsPersisted:   tr.RemitsPersisted,
		DuplicatesSkipped: tr.DuplicatesSkipped,
		IncompleteCount:   tr.IncompleteCount,
		WarningCount:      int64(len(parsed.Warnings)) + tr.WarningCount,
		DurationParse:     parsed.Duration,
		DurationTransform: tr.Duration,
		DurationTotal:     time.Since(totalStart),
	}

	log.Info().
		Int64("segments", summary.SegmentsRead).
		Int64("blocks", summary.BlocksRead).
		Int64("claims", summary.ClaimsPersisted).
		Int64("remits", summary.RemitsPersisted).
		Int64("duplicates_skipped", summary.DuplicatesSkipped).
		Int64("warnings", summary.WarningCount).
		Str("total_duration", summary.DurationTotal.String()).
		Msg("ingest pipeline complete")

	return summary, nil
}
