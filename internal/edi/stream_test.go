package edi

import (
	"context"
	"errors"
	"strings"
	"testing"
)

// sample837Multi appends a second claim loop before the trailer.
func sample837Multi() string {
	extra := "CLM*CLM002*80.00***11:B:1~" +
		"HI*ABK:J06.9~" +
		"SV1*HC:99212*80.00*UN*1~" +
		"DTP*472*D8*20240111~"
	s := strings.Replace(sample837(), "SE*14*0001~", extra+"SE*18*0001~", 1)
	return s
}

func TestSplitBlocks(t *testing.T) {
	segs := parseAll(t, sample837Multi())
	header, blocks, trailer := SplitBlocks(segs, ClaimMarker)

	if len(header) != 7 {
		t.Errorf("header has %d segments, want 7", len(header))
	}
	if header[0].ID != "ISA" || header[len(header)-1].ID != "SBR" {
		t.Errorf("header bounds = %s ... %s", header[0].ID, header[len(header)-1].ID)
	}

	if len(blocks) != 2 {
		t.Fatalf("got %d blocks, want 2", len(blocks))
	}
	if blocks[0][0].Element(1) != "CLM001" || blocks[1][0].Element(1) != "CLM002" {
		t.Errorf("block claim ids = %q, %q", blocks[0][0].Element(1), blocks[1][0].Element(1))
	}
	if len(blocks[0]) != 8 {
		t.Errorf("first block has %d segments, want 8", len(blocks[0]))
	}
	if len(blocks[1]) != 4 {
		t.Errorf("second block has %d segments, want 4", len(blocks[1]))
	}

	if len(trailer) != 3 {
		t.Fatalf("trailer has %d segments, want 3", len(trailer))
	}
	for i, want := range []string{"SE", "GE", "IEA"} {
		if trailer[i].ID != want {
			t.Errorf("trailer[%d] = %s, want %s", i, trailer[i].ID, want)
		}
	}
}

func TestMarkerFor(t *testing.T) {
	if got := MarkerFor(Transaction837); got != ClaimMarker {
		t.Errorf("MarkerFor(837) = %q", got)
	}
	if got := MarkerFor(Transaction835); got != PaymentMarker {
		t.Errorf("MarkerFor(835) = %q", got)
	}
}

func TestStreamBlocksMatchesSplit(t *testing.T) {
	content := sample837Multi()
	ch, errCh, res := StreamBlocks(context.Background(), strings.NewReader(content), ClaimMarker)

	var blocks []Block
	for b := range ch {
		blocks = append(blocks, b)
	}
	if err := <-errCh; err != nil {
		t.Fatalf("stream error: %v", err)
	}

	if res.Delimiters.Element != '*' || res.Delimiters.Segment != '~' {
		t.Errorf("delimiters = %+v", res.Delimiters)
	}
	if res.SegmentsRead != 22 {
		t.Errorf("SegmentsRead = %d, want 22", res.SegmentsRead)
	}
	if len(res.Warnings) != 0 {
		t.Errorf("unexpected warnings: %v", res.Warnings)
	}

	// Header block, two claim blocks, trailer block.
	if len(blocks) != 4 {
		t.Fatalf("got %d blocks, want 4", len(blocks))
	}
	if !blocks[0].Header || blocks[0].Trailer {
		t.Errorf("first block flags = %+v", blocks[0])
	}
	if len(blocks[0].Segments) != 7 {
		t.Errorf("header block has %d segments, want 7", len(blocks[0].Segments))
	}
	if blocks[1].Segments[0].Element(1) != "CLM001" || blocks[2].Segments[0].Element(1) != "CLM002" {
		t.Errorf("claim blocks = %q, %q",
			blocks[1].Segments[0].Element(1), blocks[2].Segments[0].Element(1))
	}
	if !blocks[3].Trailer {
		t.Errorf("last block is not the trailer: %+v", blocks[3])
	}
	if len(blocks[3].Segments) != 3 {
		t.Errorf("trailer block has %d segments, want 3", len(blocks[3].Segments))
	}
}

func TestStreamBlocksStructuralError(t *testing.T) {
	content := strings.Replace(sample837(), "SE*14*0001~", "SE~", 1)
	ch, errCh, _ := StreamBlocks(context.Background(), strings.NewReader(content), ClaimMarker)
	for range ch {
	}
	err := <-errCh
	var se *StructuralError
	if !errors.As(err, &se) {
		t.Fatalf("got %v, want StructuralError", err)
	}
}

func TestStreamBlocksHonorsCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	// Nothing drains the block channel, so the producer must bail out on the
	// cancelled context instead of blocking forever.
	ch, errCh, _ := StreamBlocks(ctx, strings.NewReader(sample837Multi()), ClaimMarker)
	if err := <-errCh; err != context.Canceled {
		t.Fatalf("got %v, want context.Canceled", err)
	}
	for range ch {
	}
}
