package store

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/nmartin15/claimflow/internal/formatprofile"
	"github.com/nmartin15/claimflow/internal/model"
)

// Memory is an in-memory Store for tests and dry runs. WithinTx snapshots
// state and restores it on error, matching the full-success-or-full-rollback
// contract of the Postgres implementation.
type Memory struct {
	mu sync.Mutex

	nextFileID int64
	files      map[string]*EDIFile // originator+sha -> file
	providers  map[string]*model.Provider
	payers     map[string]*model.Payer
	claims     map[uuid.UUID]*model.Claim
	lines      map[uuid.UUID][]model.ClaimLine
	remits     map[uuid.UUID]*model.Remittance
	episodes   map[uuid.UUID]*model.ClaimEpisode // keyed by claim id
	patterns   map[string]*model.DenialPattern   // payer+procedure+reason
	scores     map[uuid.UUID]*model.RiskScore    // keyed by claim id
	profiles   map[string]*formatprofile.Profile
	leases     map[uuid.UUID]bool

	inTx bool
}

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		files:     map[string]*EDIFile{},
		providers: map[string]*model.Provider{},
		payers:    map[string]*model.Payer{},
		claims:    map[uuid.UUID]*model.Claim{},
		lines:     map[uuid.UUID][]model.ClaimLine{},
		remits:    map[uuid.UUID]*model.Remittance{},
		episodes:  map[uuid.UUID]*model.ClaimEpisode{},
		patterns:  map[string]*model.DenialPattern{},
		scores:    map[uuid.UUID]*model.RiskScore{},
		profiles:  map[string]*formatprofile.Profile{},
		leases:    map[uuid.UUID]bool{},
	}
}

var _ Store = (*Memory)(nil)

func (m *Memory) WithinTx(ctx context.Context, fn func(Store) error) error {
	m.mu.Lock()
	if m.inTx {
		m.mu.Unlock()
		// Nested transaction joins the outer one.
		return fn(m)
	}
	snap := m.snapshot()
	m.inTx = true
	m.mu.Unlock()

	err := fn(m)

	m.mu.Lock()
	defer m.mu.Unlock()
	m.inTx = false
	for id := range m.leases {
		delete(m.leases, id)
	}
	if err != nil {
		m.restore(snap)
		return err
	}
	return nil
}

type memSnapshot struct {
	nextFileID int64
	files      map[string]*EDIFile
	providers  map[string]*model.Provider
	payers     map[string]*model.Payer
	claims     map[uuid.UUID]*model.Claim
	lines      map[uuid.UUID][]model.ClaimLine
	remits     map[uuid.UUID]*model.Remittance
	episodes   map[uuid.UUID]*model.ClaimEpisode
	patterns   map[string]*model.DenialPattern
	scores     map[uuid.UUID]*model.RiskScore
	profiles   map[string]*formatprofile.Profile
}

func (m *Memory) snapshot() memSnapshot {
	s := memSnapshot{
		nextFileID: m.nextFileID,
		files:      map[string]*EDIFile{},
		providers:  map[string]*model.Provider{},
		payers:     map[string]*model.Payer{},
		claims:     map[uuid.UUID]*model.Claim{},
		lines:      map[uuid.UUID][]model.ClaimLine{},
		remits:     map[uuid.UUID]*model.Remittance{},
		episodes:   map[uuid.UUID]*model.ClaimEpisode{},
		patterns:   map[string]*model.DenialPattern{},
		scores:     map[uuid.UUID]*model.RiskScore{},
		profiles:   map[string]*formatprofile.Profile{},
	}
	for k, v := range m.files {
		c := *v
		s.files[k] = &c
	}
	for k, v := range m.providers {
		c := *v
		s.providers[k] = &c
	}
	for k, v := range m.payers {
		c := *v
		s.payers[k] = &c
	}
	for k, v := range m.claims {
		c := *v
		s.claims[k] = &c
	}
	for k, v := range m.lines {
		s.lines[k] = append([]model.ClaimLine(nil), v...)
	}
	for k, v := range m.remits {
		c := *v
		s.remits[k] = &c
	}
	for k, v := range m.episodes {
		c := *v
		s.episodes[k] = &c
	}
	for k, v := range m.patterns {
		c := *v
		s.patterns[k] = &c
	}
	for k, v := range m.scores {
		c := *v
		s.scores[k] = &c
	}
	for k, v := range m.profiles {
		s.profiles[k] = v
	}
	return s
}

func (m *Memory) restore(s memSnapshot) {
	m.nextFileID = s.nextFileID
	m.files = s.files
	m.providers = s.providers
	m.payers = s.payers
	m.claims = s.claims
	m.lines = s.lines
	m.remits = s.remits
	m.episodes = s.episodes
	m.patterns = s.patterns
	m.scores = s.scores
	m.profiles = s.profiles
}

func (m *Memory) GetOrCreateProvider(ctx context.Context, npi string, name *string) (*model.Provider, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p, ok := m.providers[npi]; ok {
		out := *p
		return &out, nil
	}
	p := &model.Provider{ID: uuid.New(), NPI: npi, Name: name, CreatedAt: time.Now().UTC()}
	m.providers[npi] = p
	out := *p
	return &out, nil
}

func (m *Memory) GetOrCreatePayer(ctx context.Context, externalID string, name *string) (*model.Payer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p, ok := m.payers[externalID]; ok {
		out := *p
		return &out, nil
	}
	p := &model.Payer{ID: uuid.New(), ExternalID: externalID, Name: name, CreatedAt: time.Now().UTC()}
	m.payers[externalID] = p
	out := *p
	return &out, nil
}

func (m *Memory) RegisterFile(ctx context.Context, f *EDIFile) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := f.OriginatorID + "\x00" + f.SHA256
	if existing, ok := m.files[key]; ok {
		f.ID = existing.ID
		f.Status = existing.Status
		already := existing.Status == FileStatusTransformed || existing.Status == FileStatusRejected
		return already, nil
	}
	m.nextFileID++
	f.ID = m.nextFileID
	if f.Status == "" {
		f.Status = FileStatusPending
	}
	f.CreatedAt = time.Now().UTC()
	c := *f
	m.files[key] = &c
	return false, nil
}

func (m *Memory) UpdateFileStatus(ctx context.Context, fileID int64, status string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, f := range m.files {
		if f.ID == fileID {
			f.Status = status
			return nil
		}
	}
	return ErrNotFound
}

func (m *Memory) CreateClaim(ctx context.Context, c *model.Claim, lines []model.ClaimLine) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.claims {
		if existing.ProviderID == c.ProviderID && existing.PayerID == c.PayerID &&
			existing.ClaimControlNumber == c.ClaimControlNumber {
			return &DuplicateError{Entity: "claim", Key: c.ClaimControlNumber}
		}
	}
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	c.CreatedAt = time.Now().UTC()
	cp := *c
	m.claims[c.ID] = &cp
	stored := make([]model.ClaimLine, len(lines))
	for i, l := range lines {
		if l.ID == uuid.Nil {
			l.ID = uuid.New()
		}
		l.ClaimID = c.ID
		stored[i] = l
	}
	m.lines[c.ID] = stored
	return nil
}

func (m *Memory) CreateClaimBatch(ctx context.Context, claims []*model.Claim, lines []model.ClaimLine) error {
	byClaim := make(map[uuid.UUID][]model.ClaimLine)
	for _, l := range lines {
		byClaim[l.ClaimID] = append(byClaim[l.ClaimID], l)
	}
	for _, c := range claims {
		if err := m.CreateClaim(ctx, c, byClaim[c.ID]); err != nil {
			return err
		}
	}
	return nil
}

func (m *Memory) GetClaim(ctx context.Context, id uuid.UUID) (*model.Claim, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.claims[id]
	if !ok {
		return nil, ErrNotFound
	}
	out := *c
	return &out, nil
}

func (m *Memory) GetClaimByControl(ctx context.Context, payerID uuid.UUID, control string) (*model.Claim, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.claims {
		if c.PayerID == payerID && c.ClaimControlNumber == control {
			out := *c
			return &out, nil
		}
	}
	return nil, ErrNotFound
}

func (m *Memory) ClaimExists(ctx context.Context, providerID, payerID uuid.UUID, control string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.claims {
		if c.ProviderID == providerID && c.PayerID == payerID && c.ClaimControlNumber == control {
			return true, nil
		}
	}
	return false, nil
}

func (m *Memory) ListClaims(ctx context.Context, f ClaimFilter) ([]*model.Claim, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.Claim
	for _, c := range m.claims {
		if f.ProviderID != nil && c.ProviderID != *f.ProviderID {
			continue
		}
		if f.PayerID != nil && c.PayerID != *f.PayerID {
			continue
		}
		if f.PatientControlNumber != nil {
			if c.PatientControlNumber == nil || *c.PatientControlNumber != *f.PatientControlNumber {
				continue
			}
		}
		if f.MinChargeCents != nil && c.TotalChargeCents < *f.MinChargeCents {
			continue
		}
		if f.MaxChargeCents != nil && c.TotalChargeCents > *f.MaxChargeCents {
			continue
		}
		if f.Incomplete != nil && c.Incomplete != *f.Incomplete {
			continue
		}
		if f.ServiceFrom != nil && !claimOnOrAfter(c, *f.ServiceFrom) {
			continue
		}
		if f.ServiceTo != nil && !claimOnOrBefore(c, *f.ServiceTo) {
			continue
		}
		cp := *c
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

func claimOnOrAfter(c *model.Claim, t time.Time) bool {
	if c.ServiceDate != nil && !c.ServiceDate.Before(t) {
		return true
	}
	return c.StatementEnd != nil && !c.StatementEnd.Before(t)
}

func claimOnOrBefore(c *model.Claim, t time.Time) bool {
	if c.ServiceDate != nil && !c.ServiceDate.After(t) {
		return true
	}
	return c.StatementStart != nil && !c.StatementStart.After(t)
}

func (m *Memory) GetClaimLines(ctx context.Context, claimID uuid.UUID) ([]model.ClaimLine, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]model.ClaimLine(nil), m.lines[claimID]...), nil
}

func (m *Memory) CreateRemittance(ctx context.Context, r *model.Remittance) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	r.CreatedAt = time.Now().UTC()
	cp := *r
	m.remits[r.ID] = &cp
	return nil
}

func (m *Memory) GetRemittance(ctx context.Context, id uuid.UUID) (*model.Remittance, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.remits[id]
	if !ok {
		return nil, ErrNotFound
	}
	out := *r
	return &out, nil
}

func (m *Memory) ListRemittances(ctx context.Context, f RemittanceFilter) ([]*model.Remittance, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.Remittance
	for _, r := range m.remits {
		if f.PayerID != nil && r.PayerID != *f.PayerID {
			continue
		}
		if f.Unlinked && r.EpisodeID != nil {
			continue
		}
		cp := *r
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

func (m *Memory) AttachRemittance(ctx context.Context, remittanceID, episodeID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.remits[remittanceID]
	if !ok {
		return ErrNotFound
	}
	if r.EpisodeID != nil && *r.EpisodeID != episodeID {
		return &IntegrityError{Op: "attach remittance",
			Err: errors.New("remittance already linked to another episode")}
	}
	id := episodeID
	r.EpisodeID = &id
	return nil
}

func (m *Memory) GetEpisodeByClaim(ctx context.Context, claimID uuid.UUID) (*model.ClaimEpisode, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.episodes[claimID]
	if !ok {
		return nil, ErrNotFound
	}
	out := *e
	return &out, nil
}

func (m *Memory) SaveEpisode(ctx context.Context, e *model.ClaimEpisode) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	e.UpdatedAt = time.Now().UTC()
	cp := *e
	m.episodes[e.ClaimID] = &cp
	return nil
}

func (m *Memory) ListEpisodes(ctx context.Context, f EpisodeFilter) ([]*model.ClaimEpisode, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.ClaimEpisode
	for _, e := range m.episodes {
		if f.PayerID != nil && e.PayerID != *f.PayerID {
			continue
		}
		if f.Status != nil && e.Status != *f.Status {
			continue
		}
		if f.UpdatedAfter != nil && e.UpdatedAt.Before(*f.UpdatedAfter) {
			continue
		}
		cp := *e
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.Before(out[j].UpdatedAt) })
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

func (m *Memory) LeaseClaim(ctx context.Context, claimID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.leases[claimID] {
		return ErrClaimLeased
	}
	m.leases[claimID] = true
	return nil
}

func (m *Memory) ReleaseClaim(ctx context.Context, claimID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.leases, claimID)
	return nil
}

func patternKey(p *model.DenialPattern) string {
	return p.PayerID.String() + "\x00" + p.ProcedureCode + "\x00" + p.ReasonCode
}

func (m *Memory) UpsertDenialPattern(ctx context.Context, p *model.DenialPattern) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := patternKey(p)
	if existing, ok := m.patterns[key]; ok {
		p.ID = existing.ID
		if existing.FirstSeen.Before(p.FirstSeen) {
			p.FirstSeen = existing.FirstSeen
		}
	} else if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	p.UpdatedAt = time.Now().UTC()
	cp := *p
	m.patterns[key] = &cp
	return nil
}

func (m *Memory) ListDenialPatterns(ctx context.Context, payerID uuid.UUID) ([]*model.DenialPattern, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.DenialPattern
	for _, p := range m.patterns {
		if p.PayerID != payerID {
			continue
		}
		cp := *p
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Occurrences > out[j].Occurrences })
	return out, nil
}

func (m *Memory) SaveRiskScore(ctx context.Context, s *model.RiskScore) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	cp := *s
	m.scores[s.ClaimID] = &cp
	return nil
}

func (m *Memory) GetRiskScore(ctx context.Context, claimID uuid.UUID) (*model.RiskScore, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.scores[claimID]
	if !ok {
		return nil, ErrNotFound
	}
	out := *s
	return &out, nil
}

func (m *Memory) GetFormatProfile(ctx context.Context, originatorID string) (*formatprofile.Profile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.profiles[originatorID]
	if !ok {
		return nil, nil
	}
	return p, nil
}

func (m *Memory) SaveFormatProfile(ctx context.Context, p *formatprofile.Profile) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.profiles[p.OriginatorID] = p
	return nil
}
