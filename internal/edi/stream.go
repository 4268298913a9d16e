package edi

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/nmartin15/claimflow/internal/model"
)

// Block is a contiguous run of segments. The first block of a stream carries
// the file context (envelope headers, payment-level segments); each following
// block is one claim or payment loop opened by the marker segment; the final
// block carries the envelope trailers.
type Block struct {
	Header   bool
	Trailer  bool
	Segments []Segment
}

// Marker segments that open a new block per transaction type.
const (
	ClaimMarker   = "CLM"
	PaymentMarker = "CLP"
)

// MarkerFor returns the block-start marker for a transaction type.
func MarkerFor(transactionType string) string {
	if transactionType == Transaction835 {
		return PaymentMarker
	}
	return ClaimMarker
}

// SplitBlocks groups already-tokenized segments into per-claim blocks at each
// marker segment. Envelope trailers (SE, GE, IEA) are returned separately so
// they never leak into the last claim block.
func SplitBlocks(segs []Segment, marker string) (header []Segment, blocks [][]Segment, trailer []Segment) {
	cur := -1
	for _, s := range segs {
		switch s.ID {
		case "SE", "GE", "IEA":
			trailer = append(trailer, s)
			continue
		}
		if s.ID == marker {
			blocks = append(blocks, []Segment{s})
			cur = len(blocks) - 1
			continue
		}
		if cur < 0 {
			header = append(header, s)
		} else {
			blocks[cur] = append(blocks[cur], s)
		}
	}
	return header, blocks, trailer
}

// StreamResult is filled in by StreamBlocks as the input is consumed.
// Delimiters is valid once the first block arrives; the counters and
// warnings are complete once the error channel yields.
type StreamResult struct {
	Delimiters   Delimiters
	SegmentsRead int64
	Warnings     []model.Warning
}

// StreamBlocks reads segments from r in a single pass and sends completed
// blocks on the returned channel, holding at most one block in memory. The
// error channel receives exactly one value once the stream ends. Delimiters
// are sniffed from the leading ISA header.
//
// The per-block producer/consumer shape mirrors the staging path: the caller
// consumes blocks while the producer keeps reading ahead.
func StreamBlocks(ctx context.Context, r io.Reader, marker string) (<-chan Block, <-chan error, *StreamResult) {
	ch := make(chan Block, 1)
	errCh := make(chan error, 1)
	res := &StreamResult{}

	go func() {
		defer close(ch)
		errCh <- streamBlocks(ctx, r, marker, ch, res)
	}()

	return ch, errCh, res
}

func streamBlocks(ctx context.Context, r io.Reader, marker string, ch chan<- Block, res *StreamResult) error {
	br := bufio.NewReader(r)

	head, err := br.Peek(isaMinLength)
	if err != nil {
		return structuralf("ISA", 1, "read interchange header: %v", err)
	}
	d, err := SniffDelimiters(head)
	if err != nil {
		return err
	}
	res.Delimiters = d

	var (
		cur      Block
		started  bool // a marker segment has been seen
		trailer  []Segment
		ordinal  int
	)
	cur.Header = true

	emit := func(b Block) error {
		select {
		case ch <- b:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	for {
		raw, rerr := br.ReadString(d.Segment)
		raw = strings.TrimSuffix(raw, string(d.Segment))
		raw = strings.TrimSpace(raw)

		if raw != "" {
			ordinal++
			res.SegmentsRead++

			seg, perr := parseSegment(raw, d, ordinal)
			switch {
			case perr == nil:
				switch seg.ID {
				case "SE", "GE", "IEA":
					trailer = append(trailer, seg)
				case marker:
					if err := emit(cur); err != nil {
						return err
					}
					cur = Block{Segments: []Segment{seg}}
					started = true
				default:
					cur.Segments = append(cur.Segments, seg)
				}
			default:
				if se, isStructural := perr.(*StructuralError); isStructural {
					return se
				}
				res.Warnings = append(res.Warnings, model.Warnf(
					model.WarnMalformedSegment, "", ordinal,
					"segment %d skipped: %v", ordinal, perr))
			}
		}

		if rerr == io.EOF {
			break
		}
		if rerr != nil {
			return fmt.Errorf("read segment %d: %w", ordinal+1, rerr)
		}
	}

	if started || len(cur.Segments) > 0 {
		if err := emit(cur); err != nil {
			return err
		}
	}
	if err := emit(Block{Trailer: true, Segments: trailer}); err != nil {
		return err
	}
	return nil
}
