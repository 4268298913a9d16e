// Package link reconciles remittances against claims. Each remittance is
// matched to its claim (exactly by control number, fuzzily as a fallback),
// attached to the claim's episode, and the episode state machine advanced:
// pending → linked → complete, or → denied. Linking is idempotent; an
// already-attached remittance is never applied twice.
package link

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/nmartin15/claimflow/internal/model"
	"github.com/nmartin15/claimflow/internal/normalize"
	"github.com/nmartin15/claimflow/internal/store"
)

// Options tune matching and completion.
type Options struct {
	// CompletionToleranceBPS is the payment-vs-charge slack, in basis points
	// of the charge, under which an episode counts as complete.
	CompletionToleranceBPS int64
	// FuzzyAmountBPS bounds how far a fuzzy candidate's charge may sit from
	// the remittance's charge.
	FuzzyAmountBPS int64
	// FuzzyWindowDays bounds how far a fuzzy candidate's service dates may
	// sit from the remittance's arrival.
	FuzzyWindowDays int
	// Limit caps how many unlinked remittances one run processes. Zero means
	// no cap.
	Limit int
}

// Result holds metrics from one linking run.
type Result struct {
	Seen        int64
	Linked      int64
	FuzzyLinked int64
	Unmatched   int64
	Leased      int64
	Completed   int64
	Denied      int64
	Duration    time.Duration
}

// Linker drives linking runs against a Store.
type Linker struct {
	st   store.Store
	log  zerolog.Logger
	opts Options
}

func New(st store.Store, log zerolog.Logger, opts Options) *Linker {
	return &Linker{st: st, log: log, opts: opts}
}

// Run links every unlinked remittance, optionally scoped to one payer. Each
// remittance links in its own transaction under the claim's lease, so
// concurrent runs never double-apply a payment; a leased claim is skipped
// and picked up by a later run.
func (l *Linker) Run(ctx context.Context, payerID *uuid.UUID) (*Result, error) {
	start := time.Now()
	res := &Result{}

	remits, err := l.st.ListRemittances(ctx, store.RemittanceFilter{
		PayerID:  payerID,
		Unlinked: true,
		Limit:    l.opts.Limit,
	})
	if err != nil {
		return nil, fmt.Errorf("list unlinked remittances: %w", err)
	}

	for _, r := range remits {
		res.Seen++
		if err := l.linkOne(ctx, r, res); err != nil {
			return nil, err
		}
	}

	res.Duration = time.Since(start)
	l.log.Info().
		Int64("seen", res.Seen).
		Int64("linked", res.Linked).
		Int64("fuzzy", res.FuzzyLinked).
		Int64("unmatched", res.Unmatched).
		Int64("leased", res.Leased).
		Int64("completed", res.Completed).
		Int64("denied", res.Denied).
		Str("duration", res.Duration.String()).
		Msg("linking run complete")

	return res, nil
}

func (l *Linker) linkOne(ctx context.Context, r *model.Remittance, res *Result) error {
	err := l.st.WithinTx(ctx, func(tx store.Store) error {
		claim, fuzzy, err := l.match(ctx, tx, r)
		if err != nil {
			return err
		}
		if claim == nil {
			res.Unmatched++
			return nil
		}

		if err := tx.LeaseClaim(ctx, claim.ID); err != nil {
			if errors.Is(err, store.ErrClaimLeased) {
				res.Leased++
				return nil
			}
			return err
		}

		ep, err := episodeFor(ctx, tx, claim)
		if err != nil {
			return err
		}

		if err := tx.AttachRemittance(ctx, r.ID, ep.ID); err != nil {
			return err
		}

		applyRemittance(ep, r)
		advance(ep, claim, l.opts.CompletionToleranceBPS)

		if err := tx.SaveEpisode(ctx, ep); err != nil {
			return err
		}

		res.Linked++
		if fuzzy {
			res.FuzzyLinked++
		}
		switch ep.Status {
		case model.EpisodeComplete:
			res.Completed++
		case model.EpisodeDenied:
			res.Denied++
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("link remittance %s: %w", r.ID, err)
	}
	return nil
}

// match finds the claim a remittance pays: first by exact control number,
// then fuzzily by patient control number plus charge and date proximity.
// The second return reports whether the match was fuzzy.
func (l *Linker) match(ctx context.Context, tx store.Store, r *model.Remittance) (*model.Claim, bool, error) {
	if r.ClaimControlNumber != "" {
		claim, err := tx.GetClaimByControl(ctx, r.PayerID, r.ClaimControlNumber)
		if err == nil {
			return claim, false, nil
		}
		if !errors.Is(err, store.ErrNotFound) {
			return nil, false, err
		}
	}

	if r.PatientControlNumber == nil || *r.PatientControlNumber == "" {
		return nil, false, nil
	}

	candidates, err := tx.ListClaims(ctx, store.ClaimFilter{
		PayerID:              &r.PayerID,
		PatientControlNumber: r.PatientControlNumber,
	})
	if err != nil {
		return nil, false, err
	}

	window := time.Duration(l.opts.FuzzyWindowDays) * 24 * time.Hour
	var best *model.Claim
	for _, c := range candidates {
		if !normalize.CentsWithinBPS(c.TotalChargeCents, r.ChargeCents, l.opts.FuzzyAmountBPS) {
			continue
		}
		if !datesCompatible(c, r, window) {
			continue
		}
		if best != nil {
			// Ambiguous: more than one plausible claim. Leave unlinked
			// rather than guess.
			return nil, false, nil
		}
		best = c
	}
	return best, best != nil, nil
}

// datesCompatible checks the date leg of a fuzzy match. When the remittance
// carries its DTM service period, the claim's service dates must overlap it.
// Otherwise the claim's service period must sit within the window around the
// remittance's arrival. A claim without dates always qualifies.
func datesCompatible(c *model.Claim, r *model.Remittance, window time.Duration) bool {
	start := c.ServiceDate
	if start == nil {
		start = c.StatementStart
	}
	end := c.StatementEnd
	if start == nil && end == nil {
		return true
	}
	if start == nil {
		start = end
	}

	if r.ServiceStart != nil || r.ServiceEnd != nil {
		rStart := r.ServiceStart
		if rStart == nil {
			rStart = r.ServiceEnd
		}
		return normalize.DatesOverlap(start, end, rStart, r.ServiceEnd)
	}

	diff := r.CreatedAt.Sub(*start)
	if diff < 0 {
		diff = -diff
	}
	return diff <= window
}

func episodeFor(ctx context.Context, tx store.Store, claim *model.Claim) (*model.ClaimEpisode, error) {
	ep, err := tx.GetEpisodeByClaim(ctx, claim.ID)
	if err == nil {
		return ep, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}
	return &model.ClaimEpisode{
		ID:      uuid.New(),
		ClaimID: claim.ID,
		PayerID: claim.PayerID,
		Status:  model.EpisodePending,
	}, nil
}

// applyRemittance folds one remittance's amounts into the episode. Reversal
// remittances (CLP02 = 22) arrive with negated amounts and simply fold in,
// backing the totals out.
func applyRemittance(ep *model.ClaimEpisode, r *model.Remittance) {
	ep.PaymentCents += r.PaymentCents
	ep.AdjustmentCents += r.AdjustmentSumCents()
	ep.AdjustmentCount++
	if r.DenialOnly() {
		ep.DenialCount++
	}
	if ep.LinkedAt == nil {
		now := time.Now().UTC()
		ep.LinkedAt = &now
	}
}

// advance moves the episode through its state machine given the linked
// claim's charge.
func advance(ep *model.ClaimEpisode, claim *model.Claim, toleranceBPS int64) {
	tolerance := claim.TotalChargeCents * toleranceBPS / 10000

	switch {
	case ep.PaymentCents <= 0 && ep.DenialCount > 0:
		ep.Status = model.EpisodeDenied
	case ep.Covers(claim.TotalChargeCents, tolerance):
		ep.Status = model.EpisodeComplete
	default:
		ep.Status = model.EpisodeLinked
	}
}
