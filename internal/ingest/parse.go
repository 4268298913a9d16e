package ingest

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"

	"github.com/nmartin15/claimflow/internal/edi"
	"github.com/nmartin15/claimflow/internal/model"
	"github.com/nmartin15/claimflow/internal/store"
)

// ParseResult holds the tokenized and validated file: the envelope, the
// pre-claim header segments, one segment block per claim or payment, and the
// envelope trailers.
type ParseResult struct {
	Delimiters   edi.Delimiters
	Envelope     *edi.Envelope
	Header       []edi.Segment
	Blocks       [][]edi.Segment
	Trailer      []edi.Segment
	SegmentsRead int64
	Warnings     []model.Warning
	Duration     time.Duration
}

// Parse tokenizes the whole file, validates the envelope, and splits the
// segments into per-claim blocks. A structural error rejects the file.
func Parse(ctx context.Context, log zerolog.Logger, filePath string) (*ParseResult, error) {
	start := time.Now()

	buf, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("parse read: %w", err)
	}

	segs, d, warns, err := edi.Parse(buf)
	if err != nil {
		return nil, err
	}

	env, envWarns, err := edi.ValidateEnvelope(segs)
	if err != nil {
		return nil, err
	}
	warns = append(warns, envWarns...)

	header, blocks, trailer := edi.SplitBlocks(segs, edi.MarkerFor(env.TransactionType))

	dur := time.Since(start)
	log.Info().
		Str("transaction_type", env.TransactionType).
		Str("sender", env.SenderID).
		Int("segments", len(segs)).
		Int("blocks", len(blocks)).
		Int("warnings", len(warns)).
		Str("duration", dur.String()).
		Msg("parse complete")

	return &ParseResult{
		Delimiters:   d,
		Envelope:     env,
		Header:       header,
		Blocks:       blocks,
		Trailer:      trailer,
		SegmentsRead: int64(len(segs)),
		Warnings:     warns,
		Duration:     dur,
	}, nil
}

// rejectionStatus maps a parse failure to the file status it should leave
// behind: structural errors reject the file permanently, anything else is a
// retryable failure.
func rejectionStatus(err error) string {
	var se *edi.StructuralError
	if errors.As(err, &se) {
		return store.FileStatusRejected
	}
	return store.FileStatusFailed
}
