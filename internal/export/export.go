// Package export writes reconciliation results to Parquet for downstream
// analytics. Episodes and denial patterns are the two surfaces analysts ask
// for; both export as flat row types with generic writers.
package export

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/parquet-go/parquet-go"
	"github.com/rs/zerolog"

	"github.com/nmartin15/claimflow/internal/model"
	"github.com/nmartin15/claimflow/internal/store"
)

// EpisodeRow is the flattened Parquet shape of one claim episode.
type EpisodeRow struct {
	EpisodeID       string  `parquet:"episode_id"`
	ClaimID         string  `parquet:"claim_id"`
	PayerID         string  `parquet:"payer_id"`
	Status          string  `parquet:"status"`
	PaymentCents    int64   `parquet:"payment_cents"`
	AdjustmentCents int64   `parquet:"adjustment_cents"`
	DenialCount     int32   `parquet:"denial_count"`
	AdjustmentCount int32   `parquet:"adjustment_count"`
	// Unix milliseconds; the timestamp annotation is not valid on optional
	// pointer fields, so the column stays a plain int64.
	LinkedAt  *int64 `parquet:"linked_at,optional"`
	UpdatedAt int64  `parquet:"updated_at,timestamp(millisecond)"`
}

// PatternRow is the flattened Parquet shape of one denial pattern.
type PatternRow struct {
	PatternID     string  `parquet:"pattern_id"`
	PayerID       string  `parquet:"payer_id"`
	PatternType   string  `parquet:"pattern_type"`
	ProcedureCode string  `parquet:"procedure_code"`
	ReasonCode    string  `parquet:"reason_code"`
	Occurrences   int64   `parquet:"occurrences"`
	Frequency     float64 `parquet:"frequency"`
	Confidence    float64 `parquet:"confidence"`
	FirstSeen     int64   `parquet:"first_seen,timestamp(millisecond)"`
	LastSeen      int64   `parquet:"last_seen,timestamp(millisecond)"`
}

// Result holds metrics from one export run.
type Result struct {
	Rows     int64
	Path     string
	Duration time.Duration
}

// Episodes writes the payer's episodes (all payers when payerID is nil) to a
// Parquet file at path.
func Episodes(ctx context.Context, st store.Store, log zerolog.Logger, f store.EpisodeFilter, path string) (*Result, error) {
	start := time.Now()

	episodes, err := st.ListEpisodes(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("list episodes: %w", err)
	}

	rows := make([]EpisodeRow, 0, len(episodes))
	for _, e := range episodes {
		rows = append(rows, episodeRow(e))
	}

	if err := writeRows(path, rows); err != nil {
		return nil, err
	}

	res := &Result{Rows: int64(len(rows)), Path: path, Duration: time.Since(start)}
	log.Info().
		Int64("rows", res.Rows).
		Str("path", path).
		Str("duration", res.Duration.String()).
		Msg("episode export complete")
	return res, nil
}

// Patterns writes one payer's denial patterns to a Parquet file at path.
func Patterns(ctx context.Context, st store.Store, log zerolog.Logger, payerID uuid.UUID, path string) (*Result, error) {
	start := time.Now()

	patterns, err := st.ListDenialPatterns(ctx, payerID)
	if err != nil {
		return nil, fmt.Errorf("list denial patterns: %w", err)
	}

	rows := make([]PatternRow, 0, len(patterns))
	for _, p := range patterns {
		rows = append(rows, PatternRow{
			PatternID:     p.ID.String(),
			PayerID:       p.PayerID.String(),
			PatternType:   p.PatternType,
			ProcedureCode: p.ProcedureCode,
			ReasonCode:    p.ReasonCode,
			Occurrences:   p.Occurrences,
			Frequency:     p.Frequency,
			Confidence:    p.Confidence,
			FirstSeen:     p.FirstSeen.UnixMilli(),
			LastSeen:      p.LastSeen.UnixMilli(),
		})
	}

	if err := writeRows(path, rows); err != nil {
		return nil, err
	}

	res := &Result{Rows: int64(len(rows)), Path: path, Duration: time.Since(start)}
	log.Info().
		Int64("rows", res.Rows).
		Str("path", path).
		Str("duration", res.Duration.String()).
		Msg("pattern export complete")
	return res, nil
}

func episodeRow(e *model.ClaimEpisode) EpisodeRow {
	row := EpisodeRow{
		EpisodeID:       e.ID.String(),
		ClaimID:         e.ClaimID.String(),
		PayerID:         e.PayerID.String(),
		Status:          e.Status,
		PaymentCents:    e.PaymentCents,
		AdjustmentCents: e.AdjustmentCents,
		DenialCount:     int32(e.DenialCount),
		AdjustmentCount: int32(e.AdjustmentCount),
		UpdatedAt:       e.UpdatedAt.UnixMilli(),
	}
	if e.LinkedAt != nil {
		ms := e.LinkedAt.UnixMilli()
		row.LinkedAt = &ms
	}
	return row
}

// writeRows writes all rows with a generic writer. The write is atomic at
// the file level: a partial file never lands at the target path.
func writeRows[T any](path string, rows []T) error {
	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("create export file: %w", err)
	}

	w := parquet.NewGenericWriter[T](f)
	if _, err := w.Write(rows); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("write parquet rows: %w", err)
	}
	if err := w.Close(); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("close parquet writer: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("close export file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("rename export file: %w", err)
	}
	return nil
}
