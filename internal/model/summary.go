package model

import "time"

// IngestSummary captures metrics from a single EDI file ingest run. It is the
// result surface handed back to whatever scheduled the work.
type IngestSummary struct {
	FilePath        string
	FileSHA256      string
	EDIFileID       int64
	IngestBatchID   string
	TransactionType string // "837" or "835"

	SegmentsRead      int64
	BlocksRead        int64
	ClaimsExtracted   int64
	RemitsExtracted   int64
	ClaimsPersisted   int64
	RemitsPersisted   int64
	DuplicatesSkipped int64
	IncompleteCount   int64
	WarningCount      int64

	DurationParse     time.Duration
	DurationExtract   time.Duration
	DurationTransform time.Duration
	DurationTotal     time.Duration
}
