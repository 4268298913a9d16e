// Package store is the persistence seam of the pipeline. The parsing core
// never talks to the database directly; it is handed a Store, scoped
// transactionally per file, so tests run against the in-memory fake and
// production runs against Postgres.
package store

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/nmartin15/claimflow/internal/formatprofile"
	"github.com/nmartin15/claimflow/internal/model"
)

// EDIFile registration statuses.
const (
	FileStatusPending     = "pending"
	FileStatusProcessing  = "processing"
	FileStatusTransformed = "transformed"
	FileStatusFailed      = "failed"
	FileStatusRejected    = "rejected" // structural error, never retried
)

// EDIFile is the registration record for one ingested file, deduplicated by
// SHA-256 per originator.
type EDIFile struct {
	ID              int64
	OriginatorID    string
	FileName        string
	SHA256          string
	SizeBytes       int64
	TransactionType string
	Status          string
	CreatedAt       time.Time
}

// ClaimFilter selects claims for list queries and fuzzy-match candidate
// retrieval. Nil fields are ignored.
type ClaimFilter struct {
	ProviderID           *uuid.UUID
	PayerID              *uuid.UUID
	PatientControlNumber *string
	MinChargeCents       *int64
	MaxChargeCents       *int64
	ServiceFrom          *time.Time
	ServiceTo            *time.Time
	Incomplete           *bool
	Limit                int
}

// RemittanceFilter selects remittances. Unlinked selects rows with no
// episode attached.
type RemittanceFilter struct {
	PayerID  *uuid.UUID
	Unlinked bool
	Limit    int
}

// EpisodeFilter selects claim episodes.
type EpisodeFilter struct {
	PayerID      *uuid.UUID
	Status       *string
	UpdatedAfter *time.Time
	Limit        int
}

// Store is the repository abstraction consumed by the pipeline, the linker,
// the pattern detector, and the risk scorer.
type Store interface {
	// WithinTx runs fn against a transactionally scoped Store: full success
	// or full rollback. The transformer commits one file per transaction.
	WithinTx(ctx context.Context, fn func(Store) error) error

	// Reference entities, get-or-created on a natural key so retries are safe.
	GetOrCreateProvider(ctx context.Context, npi string, name *string) (*model.Provider, error)
	GetOrCreatePayer(ctx context.Context, externalID string, name *string) (*model.Payer, error)

	// File registration and dedupe.
	RegisterFile(ctx context.Context, f *EDIFile) (alreadyLoaded bool, err error)
	UpdateFileStatus(ctx context.Context, fileID int64, status string) error

	// Claims.
	CreateClaim(ctx context.Context, c *model.Claim, lines []model.ClaimLine) error
	// CreateClaimBatch persists a batch of claims and all their lines in one
	// round of writes. Lines must already carry their claim IDs.
	CreateClaimBatch(ctx context.Context, claims []*model.Claim, lines []model.ClaimLine) error
	GetClaim(ctx context.Context, id uuid.UUID) (*model.Claim, error)
	GetClaimByControl(ctx context.Context, payerID uuid.UUID, controlNumber string) (*model.Claim, error)
	ClaimExists(ctx context.Context, providerID, payerID uuid.UUID, controlNumber string) (bool, error)
	ListClaims(ctx context.Context, f ClaimFilter) ([]*model.Claim, error)
	GetClaimLines(ctx context.Context, claimID uuid.UUID) ([]model.ClaimLine, error)

	// Remittances.
	CreateRemittance(ctx context.Context, r *model.Remittance) error
	GetRemittance(ctx context.Context, id uuid.UUID) (*model.Remittance, error)
	ListRemittances(ctx context.Context, f RemittanceFilter) ([]*model.Remittance, error)
	// AttachRemittance links a remittance to an episode. A remittance links
	// to exactly one claim; attaching an already-attached remittance to a
	// different episode is an integrity violation.
	AttachRemittance(ctx context.Context, remittanceID, episodeID uuid.UUID) error

	// Episodes.
	GetEpisodeByClaim(ctx context.Context, claimID uuid.UUID) (*model.ClaimEpisode, error)
	SaveEpisode(ctx context.Context, e *model.ClaimEpisode) error
	ListEpisodes(ctx context.Context, f EpisodeFilter) ([]*model.ClaimEpisode, error)

	// LeaseClaim takes the per-claim advisory lease for the duration of the
	// surrounding transaction. ErrClaimLeased when another linking attempt
	// holds it. Linking logic assumes the lease is already held.
	LeaseClaim(ctx context.Context, claimID uuid.UUID) error
	ReleaseClaim(ctx context.Context, claimID uuid.UUID) error

	// Denial patterns.
	UpsertDenialPattern(ctx context.Context, p *model.DenialPattern) error
	ListDenialPatterns(ctx context.Context, payerID uuid.UUID) ([]*model.DenialPattern, error)

	// Risk scores: one current row per claim, replaced on recompute.
	SaveRiskScore(ctx context.Context, s *model.RiskScore) error
	GetRiskScore(ctx context.Context, claimID uuid.UUID) (*model.RiskScore, error)

	// Format profiles, keyed by originator.
	GetFormatProfile(ctx context.Context, originatorID string) (*formatprofile.Profile, error)
	SaveFormatProfile(ctx context.Context, p *formatprofile.Profile) error
}
