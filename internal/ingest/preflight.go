package ingest

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/nmartin15/claimflow/internal/config"
	"github.com/nmartin15/claimflow/internal/normalize"
	"github.com/nmartin15/claimflow/internal/store"
)

// detectWindow is how much of the file the preflight reads to identify the
// interchange and transaction type. Envelope headers sit well inside it.
const detectWindow = 8192

// PreflightResult holds all context resolved during the preflight phase.
type PreflightResult struct {
	// FilePath is the original path passed to Preflight, stored as-is.
	FilePath string
	// FileSHA256 is the hex-encoded SHA-256 digest of the file.
	FileSHA256 string
	// FileSize is the file size in bytes from os.Stat.
	FileSize int64
	// OriginatorID identifies the submitter, from config or the ISA06
	// sender when not configured. Format profiles key on it.
	OriginatorID string
	// TransactionType is "837" or "835", detected from the leading
	// envelope headers. Full envelope validation happens at parse time.
	TransactionType string
	// File is the registration record, inserted or looked up by
	// (originator, sha256).
	File *store.EDIFile
	// IngestBatchID is a freshly generated UUIDv4 identifying this run.
	IngestBatchID uuid.UUID
	// AlreadyLoaded is true when the file's sha256 is already registered
	// with a terminal status and force mode is off.
	AlreadyLoaded bool
}

// Preflight hashes the file, detects the transaction type from its head, and
// registers the file record for dedupe.
func Preflight(ctx context.Context, st store.Store, log zerolog.Logger, cfg *config.Config) (*PreflightResult, error) {
	start := time.Now()

	sha, err := normalize.FileHash(cfg.FilePath)
	if err != nil {
		return nil, fmt.Errorf("preflight hash: %w", err)
	}

	stat, err := os.Stat(cfg.FilePath)
	if err != nil {
		return nil, fmt.Errorf("preflight stat: %w", err)
	}

	head, err := readHead(cfg.FilePath, detectWindow)
	if err != nil {
		return nil, fmt.Errorf("preflight read head: %w", err)
	}

	format, err := DetectFormat(head)
	if err != nil {
		return nil, fmt.Errorf("preflight detect: %w", err)
	}

	originator := cfg.OriginatorID
	if originator == "" {
		originator = format.SenderID
	}
	if originator == "" {
		return nil, fmt.Errorf("preflight: no originator id in config or ISA06")
	}

	file := &store.EDIFile{
		OriginatorID:    originator,
		FileName:        filepath.Base(cfg.FilePath),
		SHA256:          sha,
		SizeBytes:       stat.Size(),
		TransactionType: format.TransactionType,
	}
	alreadyLoaded, err := st.RegisterFile(ctx, file)
	if err != nil {
		return nil, fmt.Errorf("preflight register file: %w", err)
	}

	if alreadyLoaded && cfg.Force {
		if err := st.UpdateFileStatus(ctx, file.ID, store.FileStatusPending); err != nil {
			return nil, fmt.Errorf("preflight reset status: %w", err)
		}
		alreadyLoaded = false
	}

	log.Info().
		Str("file", file.FileName).
		Str("sha256", sha).
		Str("originator", originator).
		Str("transaction_type", format.TransactionType).
		Dur("duration", time.Since(start)).
		Msg("preflight complete")

	return &PreflightResult{
		FilePath:        cfg.FilePath,
		FileSHA256:      sha,
		FileSize:        stat.Size(),
		OriginatorID:    originator,
		TransactionType: format.TransactionType,
		File:            file,
		IngestBatchID:   uuid.New(),
		AlreadyLoaded:   alreadyLoaded,
	}, nil
}

func readHead(path string, n int) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	buf := make([]byte, n)
	read, err := io.ReadFull(f, buf)
	if err == io.ErrUnexpectedEOF || err == io.EOF {
		return buf[:read], nil
	}
	if err != nil {
		return nil, err
	}
	return buf, nil
}
