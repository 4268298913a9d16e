package db

import (
	"github.com/jackc/pgx/v5"

	"github.com/nmartin15/claimflow/internal/model"
)

// LineSource implements pgx.CopyFromSource by reading claim lines from a
// channel. This provides natural backpressure between the extractor and the
// COPY writer.
type LineSource struct {
	ch      <-chan model.ClaimLine
	current model.ClaimLine
	err     error
}

// NewLineSource creates a CopyFromSource backed by a channel.
func NewLineSource(ch <-chan model.ClaimLine) *LineSource {
	return &LineSource{ch: ch}
}

// Next advances to the next line. Returns false when the channel is closed.
func (s *LineSource) Next() bool {
	line, ok := <-s.ch
	if !ok {
		return false
	}
	s.current = line
	return true
}

// Values returns the current line's values in COPY column order.
func (s *LineSource) Values() ([]any, error) {
	return s.current.CopyValues(), nil
}

// Err returns any error encountered during iteration.
func (s *LineSource) Err() error {
	return s.err
}

// Compile-time check that LineSource satisfies the interface.
var _ pgx.CopyFromSource = (*LineSource)(nil)
