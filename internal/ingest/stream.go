package ingest

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"

	"github.com/nmartin15/claimflow/internal/config"
	"github.com/nmartin15/claimflow/internal/edi"
	"github.com/nmartin15/claimflow/internal/extract"
	"github.com/nmartin15/claimflow/internal/formatprofile"
	"github.com/nmartin15/claimflow/internal/model"
	"github.com/nmartin15/claimflow/internal/store"
)

// runStreaming is the bounded-memory variant of the pipeline: blocks are
// extracted and persisted as they arrive instead of tokenizing the whole
// file first. The file still commits as one transaction, and envelope
// validation happens once the trailer block arrives, so a file that fails
// validation at its very end leaves no records behind.
func runStreaming(ctx context.Context, st store.Store, log zerolog.Logger, cfg *config.Config, pf *PreflightResult, totalStart time.Time) (*model.IngestSummary, error) {
	if err := st.UpdateFileStatus(ctx, pf.File.ID, store.FileStatusProcessing); err != nil {
		return nil, &PipelineError{Phase: "stream", Err: err}
	}

	f, err := os.Open(pf.FilePath)
	if err != nil {
		return nil, &PipelineError{Phase: "stream", Err: err}
	}
	defer f.Close()

	// The block producer parks on its send when a handler error abandons the
	// channel mid-file; canceling on every exit path releases it.
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	res := &TransformResult{}
	var sres *edi.StreamResult
	var blocksRead int64
	var envWarns []model.Warning

	txErr := st.WithinTx(ctx, func(tx store.Store) error {
		profile, err := tx.GetFormatProfile(ctx, pf.OriginatorID)
		if err != nil {
			return fmt.Errorf("load format profile: %w", err)
		}

		fileProf := formatprofile.New(pf.OriginatorID)
		fileProf.FilesSeen = 1

		marker := edi.MarkerFor(pf.TransactionType)
		var ch <-chan edi.Block
		var errCh <-chan error
		ch, errCh, sres = edi.StreamBlocks(ctx, f, marker)

		s := &streamState{
			tx:      tx,
			cfg:     cfg,
			pf:      pf,
			res:     res,
			profile: profile,
		}

		for block := range ch {
			formatprofile.ObserveInto(fileProf, block.Segments, sres.Delimiters)
			if err := s.handle(ctx, block, sres.Delimiters); err != nil {
				return err
			}
			if block.Header || block.Trailer {
				continue
			}
			blocksRead++
			if cfg.BatchSize > 0 && len(s.pendingClaims) >= cfg.BatchSize {
				if err := s.flush(ctx); err != nil {
					return err
				}
				log.Info().
					Int64("blocks", blocksRead).
					Int64("claims", res.ClaimsPersisted).
					Msg("streaming progress")
			}
		}
		if err := <-errCh; err != nil {
			return err
		}
		if err := s.flush(ctx); err != nil {
			return err
		}

		// The stream is exhausted; validate the envelope from the header and
		// trailer segments plus one marker per block.
		env, warns, err := edi.ValidateEnvelope(s.envelopeSegments())
		if err != nil {
			return err
		}
		envWarns = warns
		if env.TransactionType != pf.TransactionType {
			return fmt.Errorf("detected %s but envelope declares %s",
				pf.TransactionType, env.TransactionType)
		}

		merged := formatprofile.Merge(profile, fileProf)
		if err := tx.SaveFormatProfile(ctx, merged); err != nil {
			return fmt.Errorf("save format profile: %w", err)
		}
		return tx.UpdateFileStatus(ctx, pf.File.ID, store.FileStatusTransformed)
	})
	if txErr != nil {
		_ = st.UpdateFileStatus(ctx, pf.File.ID, rejectionStatus(txErr))
		return nil, &PipelineError{Phase: "stream", Err: txErr}
	}

	summary := &model.IngestSummary{
		FilePath:          pf.FilePath,
		FileSHA256:        pf.FileSHA256,
		EDIFileID:         pf.File.ID,
		IngestBatchID:     pf.IngestBatchID.String(),
		TransactionType:   pf.TransactionType,
		SegmentsRead:      sres.SegmentsRead,
		BlocksRead:        blocksRead,
		ClaimsExtracted:   res.ClaimsExtracted,
		RemitsExtracted:   res.RemitsExtracted,
		ClaimsPersisted:   res.ClaimsPersisted,
		RemitsPersisted:   res.RemitsPersisted,
		DuplicatesSkipped: res.DuplicatesSkipped,
		IncompleteCount:   res.IncompleteCount,
		WarningCount: int64(len(sres.Warnings)) + int64(len(envWarns)) +
			res.WarningCount,
		DurationTotal: time.Since(totalStart),
	}

	log.Info().
		Int64("segments", summary.SegmentsRead).
		Int64("blocks", summary.BlocksRead).
		Int64("claims", summary.ClaimsPersisted).
		Int64("remits", summary.RemitsPersisted).
		Str("total_duration", summary.DurationTotal.String()).
		Msg("streaming ingest complete")

	return summary, nil
}

// streamState carries per-file context across blocks of one streaming run.
type streamState struct {
	tx      store.Store
	cfg     *config.Config
	pf      *PreflightResult
	res     *TransformResult
	profile *formatprofile.Profile

	opts     extract.Options
	header   []edi.Segment
	markers  []edi.Segment
	trailer  []edi.Segment
	payCtx   extract.PaymentContext
	blockIdx int

	// Claims accumulate here until a flush; lines already carry their claim
	// IDs. seenControls catches in-file repeats during a reprocess, since
	// the store's uniqueness check cannot see rows still in the batch.
	pendingClaims []*model.Claim
	pendingLines  []model.ClaimLine
	seenControls  map[string]bool
}

// flush writes the accumulated claim batch and folds it into the counters.
func (s *streamState) flush(ctx context.Context) error {
	if len(s.pendingClaims) == 0 {
		return nil
	}
	if err := s.tx.CreateClaimBatch(ctx, s.pendingClaims, s.pendingLines); err != nil {
		return err
	}
	for _, c := range s.pendingClaims {
		s.res.ClaimsPersisted++
		if c.Incomplete {
			s.res.IncompleteCount++
		}
	}
	s.pendingClaims = s.pendingClaims[:0]
	s.pendingLines = s.pendingLines[:0]
	return nil
}

func (s *streamState) handle(ctx context.Context, block edi.Block, d edi.Delimiters) error {
	switch {
	case block.Header:
		s.handleHeader(block.Segments, d)
		return nil
	case block.Trailer:
		s.trailer = block.Segments
		return nil
	default:
		return s.handleBlock(ctx, block.Segments)
	}
}

func (s *streamState) handleHeader(segs []edi.Segment, d edi.Delimiters) {
	s.header = segs
	s.opts = extract.Options{
		Profile:           s.profile,
		LeniencyThreshold: s.cfg.LeniencyThreshold,
		Delimiters:        d,
	}
	if s.pf.TransactionType == edi.Transaction835 {
		var warns []model.Warning
		s.payCtx, warns = extract.ExtractPaymentContext(segs, s.opts)
		s.res.WarningCount += int64(len(warns))
		return
	}
	s.opts.Context = extract.ExtractClaimContext(segs)
}

func (s *streamState) handleBlock(ctx context.Context, segs []edi.Segment) error {
	if len(segs) > 0 {
		s.markers = append(s.markers, segs[0])
	}
	s.blockIdx++

	if s.pf.TransactionType == edi.Transaction835 {
		rec, warns := extract.ExtractRemittance(segs, s.opts)
		s.res.RemitsExtracted++
		s.res.WarningCount += int64(len(warns))
		if rec.Missing {
			s.res.IncompleteCount++
			return nil
		}
		payer, err := s.tx.GetOrCreatePayer(ctx,
			payerKey(s.payCtx.PayerID, s.payCtx.PayerName), nilIfEmpty(s.payCtx.PayerName))
		if err != nil {
			return fmt.Errorf("resolve payer: %w", err)
		}
		r := buildRemittance(rec, s.pf.File.ID, payer.ID, warns)
		if err := s.tx.CreateRemittance(ctx, &r); err != nil {
			return err
		}
		s.res.RemitsPersisted++
		if r.Incomplete {
			s.res.IncompleteCount++
		}
		return nil
	}

	rec, warns := extract.ExtractClaim(segs, s.opts)
	s.res.ClaimsExtracted++
	s.res.WarningCount += int64(len(warns))
	if rec.Missing {
		s.res.IncompleteCount++
		return nil
	}

	claim, lines, skip, err := prepareClaim(ctx, s.tx, s.cfg, s.pf, rec, warns, s.blockIdx-1)
	if err != nil {
		return err
	}
	if skip {
		s.res.DuplicatesSkipped++
		return nil
	}
	if s.cfg.Mode == config.ModeReprocess {
		key := claim.ProviderID.String() + "|" + claim.PayerID.String() + "|" + claim.ClaimControlNumber
		if s.seenControls[key] {
			s.res.DuplicatesSkipped++
			return nil
		}
		if s.seenControls == nil {
			s.seenControls = map[string]bool{}
		}
		s.seenControls[key] = true
	}

	s.pendingClaims = append(s.pendingClaims, &claim)
	s.pendingLines = append(s.pendingLines, lines...)
	return nil
}

// envelopeSegments assembles the minimal segment set the envelope validator
// needs: full header and trailer plus one marker segment per block for the
// content cross-check.
func (s *streamState) envelopeSegments() []edi.Segment {
	out := make([]edi.Segment, 0, len(s.header)+len(s.markers)+len(s.trailer))
	out = append(out, s.header...)
	out = append(out, s.markers...)
	out = append(out, s.trailer...)
	return out
}
