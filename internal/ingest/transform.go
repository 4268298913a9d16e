package ingest

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/nmartin15/claimflow/internal/config"
	"github.com/nmartin15/claimflow/internal/edi"
	"github.com/nmartin15/claimflow/internal/extract"
	"github.com/nmartin15/claimflow/internal/formatprofile"
	"github.com/nmartin15/claimflow/internal/model"
	"github.com/nmartin15/claimflow/internal/normalize"
	"github.com/nmartin15/claimflow/internal/store"
)

// unknownEntity is the natural key used when a file never identifies its
// provider or payer. The record still lands, flagged incomplete, so it can be
// repaired once a later file names the party.
const unknownEntity = "UNKNOWN"

// TransformResult holds metrics from the transform phase.
type TransformResult struct {
	ClaimsExtracted   int64
	ClaimsPersisted   int64
	RemitsExtracted   int64
	RemitsPersisted   int64
	DuplicatesSkipped int64
	IncompleteCount   int64
	WarningCount      int64
	Duration          time.Duration
}

// Transform converts parsed blocks into persisted records inside a single
// transaction, then folds this file into the originator's format profile and
// marks the file transformed. Any error rolls the whole file back.
func Transform(ctx context.Context, st store.Store, log zerolog.Logger, cfg *config.Config, pf *PreflightResult, parsed *ParseResult) (*TransformResult, error) {
	start := time.Now()
	res := &TransformResult{}

	err := st.WithinTx(ctx, func(tx store.Store) error {
		profile, err := tx.GetFormatProfile(ctx, pf.OriginatorID)
		if err != nil {
			return fmt.Errorf("load format profile: %w", err)
		}

		opts := extract.Options{
			Profile:           profile,
			LeniencyThreshold: cfg.LeniencyThreshold,
			Delimiters:        parsed.Delimiters,
		}

		switch parsed.Envelope.TransactionType {
		case edi.Transaction837:
			opts.Context = extract.ExtractClaimContext(parsed.Header)
			err = transformClaims(ctx, tx, cfg, pf, parsed, opts, res)
		case edi.Transaction835:
			err = transformRemits(ctx, tx, pf, parsed, opts, res)
		default:
			err = fmt.Errorf("unsupported transaction type %q", parsed.Envelope.TransactionType)
		}
		if err != nil {
			return err
		}

		if err := saveProfile(ctx, tx, profile, pf, parsed); err != nil {
			return err
		}
		return tx.UpdateFileStatus(ctx, pf.File.ID, store.FileStatusTransformed)
	})
	if err != nil {
		return nil, err
	}

	res.Duration = time.Since(start)
	log.Info().
		Int64("claims", res.ClaimsPersisted).
		Int64("remits", res.RemitsPersisted).
		Int64("duplicates_skipped", res.DuplicatesSkipped).
		Int64("incomplete", res.IncompleteCount).
		Str("duration", res.Duration.String()).
		Msg("transform complete")

	return res, nil
}

func transformClaims(ctx context.Context, tx store.Store, cfg *config.Config, pf *PreflightResult, parsed *ParseResult, opts extract.Options, res *TransformResult) error {
	for i, block := range parsed.Blocks {
		rec, warns := extract.ExtractClaim(block, opts)
		res.ClaimsExtracted++
		res.WarningCount += int64(len(warns))

		if rec.Missing {
			res.IncompleteCount++
			continue
		}

		if err := persistClaim(ctx, tx, cfg, pf, rec, warns, i, res); err != nil {
			return err
		}
	}
	return nil
}

// prepareClaim resolves the claim's parties, builds the persisted rows, and
// applies the reprocess duplicate policy. skip is true when the claim is
// already on file and should be counted, not written.
func prepareClaim(ctx context.Context, tx store.Store, cfg *config.Config, pf *PreflightResult, rec extract.ClaimRecord, warns []model.Warning, blockIdx int) (claim model.Claim, lines []model.ClaimLine, skip bool, err error) {
	npi := rec.BillingProviderNPI
	if npi == "" {
		npi = unknownEntity
		warns = append(warns, model.Warnf(model.WarnMissingElement, "NM1", 9,
			"no billing provider NPI"))
	}
	provider, err := tx.GetOrCreateProvider(ctx, npi, nilIfEmpty(rec.BillingProviderName))
	if err != nil {
		return claim, nil, false, fmt.Errorf("resolve provider: %w", err)
	}

	payer, err := tx.GetOrCreatePayer(ctx, payerKey(rec.PayerID, rec.PayerName), nilIfEmpty(rec.PayerName))
	if err != nil {
		return claim, nil, false, fmt.Errorf("resolve payer: %w", err)
	}

	claim, lines = buildClaim(rec, pf.File.ID, provider.ID, payer.ID, warns)
	if npi == unknownEntity {
		claim.Incomplete = true
	}
	if claim.ClaimControlNumber == "" {
		// Synthesize a stable control number so the uniqueness guard still
		// works across re-submissions of the same file.
		claim.ClaimControlNumber = syntheticControl(pf.FileSHA256, blockIdx)
	}

	if cfg.Mode == config.ModeReprocess {
		exists, err := tx.ClaimExists(ctx, provider.ID, payer.ID, claim.ClaimControlNumber)
		if err != nil {
			return claim, nil, false, fmt.Errorf("check claim exists: %w", err)
		}
		if exists {
			return claim, nil, true, nil
		}
	}
	return claim, lines, false, nil
}

func persistClaim(ctx context.Context, tx store.Store, cfg *config.Config, pf *PreflightResult, rec extract.ClaimRecord, warns []model.Warning, blockIdx int, res *TransformResult) error {
	claim, lines, skip, err := prepareClaim(ctx, tx, cfg, pf, rec, warns, blockIdx)
	if err != nil {
		return err
	}
	if skip {
		res.DuplicatesSkipped++
		return nil
	}

	if err := tx.CreateClaim(ctx, &claim, lines); err != nil {
		if store.IsDuplicate(err) && cfg.Mode == config.ModeReprocess {
			res.DuplicatesSkipped++
			return nil
		}
		return err
	}

	res.ClaimsPersisted++
	if claim.Incomplete {
		res.IncompleteCount++
	}
	return nil
}

// syntheticControl derives a control number from the file digest and block
// ordinal. Re-submissions of the same file produce the same number, so the
// uniqueness guard still holds for claims that never carried a CLM01.
func syntheticControl(fileSHA string, blockIdx int) string {
	sum := normalize.BlockHash(fileSHA, strconv.Itoa(blockIdx))
	return fmt.Sprintf("%X-%04d", sum[:6], blockIdx+1)
}

func transformRemits(ctx context.Context, tx store.Store, pf *PreflightResult, parsed *ParseResult, opts extract.Options, res *TransformResult) error {
	payCtx, ctxWarns := extract.ExtractPaymentContext(parsed.Header, opts)
	res.WarningCount += int64(len(ctxWarns))

	payer, err := tx.GetOrCreatePayer(ctx, payerKey(payCtx.PayerID, payCtx.PayerName), nilIfEmpty(payCtx.PayerName))
	if err != nil {
		return fmt.Errorf("resolve payer: %w", err)
	}

	for _, block := range parsed.Blocks {
		rec, warns := extract.ExtractRemittance(block, opts)
		res.RemitsExtracted++
		res.WarningCount += int64(len(warns))

		if rec.Missing {
			res.IncompleteCount++
			continue
		}

		r := buildRemittance(rec, pf.File.ID, payer.ID, warns)
		if err := tx.CreateRemittance(ctx, &r); err != nil {
			return err
		}
		res.RemitsPersisted++
		if r.Incomplete {
			res.IncompleteCount++
		}
	}
	return nil
}

// saveProfile folds this file's observed shape into the originator's
// accumulated format profile.
func saveProfile(ctx context.Context, tx store.Store, old *formatprofile.Profile, pf *PreflightResult, parsed *ParseResult) error {
	all := make([]edi.Segment, 0, parsed.SegmentsRead)
	all = append(all, parsed.Header...)
	for _, b := range parsed.Blocks {
		all = append(all, b...)
	}
	all = append(all, parsed.Trailer...)

	cur := formatprofile.Observe(pf.OriginatorID, all, parsed.Delimiters)
	merged := formatprofile.Merge(old, cur)
	if err := tx.SaveFormatProfile(ctx, merged); err != nil {
		return fmt.Errorf("save format profile: %w", err)
	}
	return nil
}

// payerKey picks the natural key for a payer: its transmitted id, its
// normalized name as a fallback, or the unknown bucket.
func payerKey(id, name string) string {
	if id = strings.TrimSpace(id); id != "" {
		return id
	}
	if name = normalize.NormalizeName(name); name != "" {
		return strings.ToUpper(strings.ReplaceAll(name, " ", "_"))
	}
	return unknownEntity
}
