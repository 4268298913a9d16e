// Package pattern mines denial patterns from linked remittances. A pattern
// is a (payer, procedure, reason) combination that keeps producing denials;
// the risk scorer consumes the resulting table.
package pattern

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/nmartin15/claimflow/internal/model"
	"github.com/nmartin15/claimflow/internal/store"
)

// Pattern types emitted by the detector.
const (
	TypeProcedureDenial = "procedure-denial"
	TypeReasonDenial    = "reason-denial"
)

// Options tune detection.
type Options struct {
	// Lookback bounds how far back remittances are considered.
	Lookback time.Duration
	// MinOccurrences is the floor below which a combination is noise, not a
	// pattern.
	MinOccurrences int64
}

// Result holds metrics from one detection run.
type Result struct {
	RemitsScanned int64
	Denials       int64
	Patterns      int64
	Duration      time.Duration
}

// Detector aggregates denials per payer.
type Detector struct {
	st   store.Store
	log  zerolog.Logger
	opts Options
}

func New(st store.Store, log zerolog.Logger, opts Options) *Detector {
	if opts.MinOccurrences <= 0 {
		opts.MinOccurrences = 3
	}
	return &Detector{st: st, log: log, opts: opts}
}

// key groups denials by procedure and reason.
type key struct {
	procedure string
	reason    string
}

type bucket struct {
	occurrences int64
	firstSeen   time.Time
	lastSeen    time.Time
}

// Run scans the payer's remittances inside the lookback window, groups
// denials by procedure and reason, and upserts one pattern row per group
// that clears the occurrence floor.
func (d *Detector) Run(ctx context.Context, payerID uuid.UUID) (*Result, error) {
	start := time.Now()
	res := &Result{}

	remits, err := d.st.ListRemittances(ctx, store.RemittanceFilter{PayerID: &payerID})
	if err != nil {
		return nil, fmt.Errorf("list remittances: %w", err)
	}

	cutoff := time.Time{}
	if d.opts.Lookback > 0 {
		cutoff = time.Now().UTC().Add(-d.opts.Lookback)
	}

	buckets := map[key]*bucket{}
	for _, r := range remits {
		if r.CreatedAt.Before(cutoff) {
			continue
		}
		res.RemitsScanned++
		if !r.DenialOnly() {
			continue
		}
		res.Denials++
		observeDenial(buckets, r)
	}

	err = d.st.WithinTx(ctx, func(tx store.Store) error {
		for k, b := range buckets {
			if b.occurrences < d.opts.MinOccurrences {
				continue
			}
			p := buildPattern(payerID, k, b, res.RemitsScanned)
			if err := tx.UpsertDenialPattern(ctx, p); err != nil {
				return err
			}
			res.Patterns++
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("upsert patterns: %w", err)
	}

	res.Duration = time.Since(start)
	d.log.Info().
		Str("payer_id", payerID.String()).
		Int64("remits_scanned", res.RemitsScanned).
		Int64("denials", res.Denials).
		Int64("patterns", res.Patterns).
		Str("duration", res.Duration.String()).
		Msg("pattern detection complete")

	return res, nil
}

// observeDenial buckets one denial remittance. Line-level denials attribute
// to the line's procedure; claim-level denials attribute to the reason alone.
func observeDenial(buckets map[key]*bucket, r *model.Remittance) {
	add := func(k key, at time.Time) {
		b := buckets[k]
		if b == nil {
			b = &bucket{firstSeen: at, lastSeen: at}
			buckets[k] = b
		}
		b.occurrences++
		if at.Before(b.firstSeen) {
			b.firstSeen = at
		}
		if at.After(b.lastSeen) {
			b.lastSeen = at
		}
	}

	attributed := false
	for _, lp := range r.LinePayments {
		if lp.PaidCents != 0 || lp.ProcedureCode == "" {
			continue
		}
		for _, a := range lp.Adjustments {
			if a.Category == model.AdjPatientResp {
				continue
			}
			add(key{procedure: lp.ProcedureCode, reason: a.ReasonCode}, r.CreatedAt)
			attributed = true
		}
	}
	if attributed {
		return
	}

	for _, a := range r.Adjustments {
		if a.Category == model.AdjPatientResp {
			continue
		}
		add(key{reason: a.ReasonCode}, r.CreatedAt)
	}
}

// buildPattern converts a bucket into a pattern row. Frequency is the share
// of the payer's scanned remittances hitting this combination; confidence
// grows with occurrences and decays when the pattern has gone quiet.
func buildPattern(payerID uuid.UUID, k key, b *bucket, scanned int64) *model.DenialPattern {
	ptype := TypeReasonDenial
	desc := fmt.Sprintf("denials with reason %s", k.reason)
	if k.procedure != "" {
		ptype = TypeProcedureDenial
		desc = fmt.Sprintf("denials of procedure %s with reason %s", k.procedure, k.reason)
	}

	var freq float64
	if scanned > 0 {
		freq = float64(b.occurrences) / float64(scanned)
	}

	return &model.DenialPattern{
		ID:            uuid.New(),
		PayerID:       payerID,
		PatternType:   ptype,
		Description:   desc,
		ProcedureCode: k.procedure,
		ReasonCode:    k.reason,
		Occurrences:   b.occurrences,
		Frequency:     freq,
		Confidence:    confidence(b),
		FirstSeen:     b.firstSeen,
		LastSeen:      b.lastSeen,
		UpdatedAt:     time.Now().UTC(),
	}
}

// confidence saturates at ten occurrences and halves for every ninety days
// since the pattern was last seen.
func confidence(b *bucket) float64 {
	base := float64(b.occurrences) / 10
	if base > 1 {
		base = 1
	}
	quiet := time.Since(b.lastSeen)
	if quiet <= 0 {
		return base
	}
	return base * math.Pow(0.5, quiet.Hours()/(90*24))
}
