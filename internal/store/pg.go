package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/nmartin15/claimflow/internal/db"
	"github.com/nmartin15/claimflow/internal/formatprofile"
	"github.com/nmartin15/claimflow/internal/model"
)

type queryable interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// PG is the Postgres Store backed by a pgxpool.
type PG struct {
	pool *pgxpool.Pool
	tx   pgx.Tx // non-nil when scoped inside WithinTx
}

// NewPG wraps a pool as a Store.
func NewPG(pool *pgxpool.Pool) *PG { return &PG{pool: pool} }

var _ Store = (*PG)(nil)

func (s *PG) conn() queryable {
	if s.tx != nil {
		return s.tx
	}
	return s.pool
}

func (s *PG) WithinTx(ctx context.Context, fn func(Store) error) error {
	if s.tx != nil {
		// Already transactional; join the outer transaction.
		return fn(s)
	}
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	scoped := &PG{pool: s.pool, tx: tx}
	if err := fn(scoped); err != nil {
		_ = tx.Rollback(ctx)
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// classify maps pg constraint violations to the store's error kinds.
func classify(op string, err error) error {
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		if pgErr.Code == "23505" { // unique_violation
			return &DuplicateError{Entity: op, Key: pgErr.ConstraintName}
		}
		if pgErr.Code >= "23000" && pgErr.Code < "24000" {
			return &IntegrityError{Op: op, Err: err}
		}
	}
	return fmt.Errorf("%s: %w", op, err)
}

func (s *PG) GetOrCreateProvider(ctx context.Context, npi string, name *string) (*model.Provider, error) {
	p := &model.Provider{}
	err := s.conn().QueryRow(ctx, `
		INSERT INTO providers (id, npi, name)
		VALUES ($1, $2, $3)
		ON CONFLICT (npi) DO UPDATE SET name = COALESCE(providers.name, EXCLUDED.name)
		RETURNING id, npi, name, created_at`,
		uuid.New(), npi, name).
		Scan(&p.ID, &p.NPI, &p.Name, &p.CreatedAt)
	if err != nil {
		return nil, classify("get-or-create provider", err)
	}
	return p, nil
}

func (s *PG) GetOrCreatePayer(ctx context.Context, externalID string, name *string) (*model.Payer, error) {
	p := &model.Payer{}
	err := s.conn().QueryRow(ctx, `
		INSERT INTO payers (id, external_id, name)
		VALUES ($1, $2, $3)
		ON CONFLICT (external_id) DO UPDATE SET name = COALESCE(payers.name, EXCLUDED.name)
		RETURNING id, external_id, name, created_at`,
		uuid.New(), externalID, name).
		Scan(&p.ID, &p.ExternalID, &p.Name, &p.CreatedAt)
	if err != nil {
		return nil, classify("get-or-create payer", err)
	}
	return p, nil
}

func (s *PG) RegisterFile(ctx context.Context, f *EDIFile) (bool, error) {
	err := s.conn().QueryRow(ctx, `
		INSERT INTO edi_files (originator_id, file_name, sha256, size_bytes, transaction_type, status)
		VALUES ($1, $2, $3, $4, $5, 'pending')
		ON CONFLICT (originator_id, sha256) DO NOTHING
		RETURNING edi_file_id, status, created_at`,
		f.OriginatorID, f.FileName, f.SHA256, f.SizeBytes, f.TransactionType).
		Scan(&f.ID, &f.Status, &f.CreatedAt)
	if err == nil {
		return false, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return false, classify("register file", err)
	}

	// Already registered; decide whether it still needs processing.
	err = s.conn().QueryRow(ctx, `
		SELECT edi_file_id, status, created_at FROM edi_files
		WHERE originator_id = $1 AND sha256 = $2`,
		f.OriginatorID, f.SHA256).
		Scan(&f.ID, &f.Status, &f.CreatedAt)
	if err != nil {
		return false, classify("lookup file", err)
	}
	already := f.Status == FileStatusTransformed || f.Status == FileStatusRejected
	return already, nil
}

func (s *PG) UpdateFileStatus(ctx context.Context, fileID int64, status string) error {
	tag, err := s.conn().Exec(ctx,
		`UPDATE edi_files SET status = $2 WHERE edi_file_id = $1`, fileID, status)
	if err != nil {
		return classify("update file status", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

const claimCols = `id, edi_file_id, provider_id, payer_id, claim_control_number,
	patient_control_number, total_charge_cents, facility_code, frequency_code,
	diagnosis_codes, principal_diagnosis, statement_start, statement_end,
	service_date, warnings, incomplete, created_at`

func scanClaim(row pgx.Row) (*model.Claim, error) {
	var c model.Claim
	var diagJSON, warnJSON []byte
	err := row.Scan(&c.ID, &c.EDIFileID, &c.ProviderID, &c.PayerID, &c.ClaimControlNumber,
		&c.PatientControlNumber, &c.TotalChargeCents, &c.FacilityCode, &c.FrequencyCode,
		&diagJSON, &c.PrincipalDiagnosis, &c.StatementStart, &c.StatementEnd,
		&c.ServiceDate, &warnJSON, &c.Incomplete, &c.CreatedAt)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(diagJSON, &c.DiagnosisCodes); err != nil {
		return nil, fmt.Errorf("decode diagnosis codes: %w", err)
	}
	if err := json.Unmarshal(warnJSON, &c.Warnings); err != nil {
		return nil, fmt.Errorf("decode claim warnings: %w", err)
	}
	return &c, nil
}

func (s *PG) CreateClaim(ctx context.Context, c *model.Claim, lines []model.ClaimLine) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	diagJSON := mustJSON(emptySlice(c.DiagnosisCodes))
	warnJSON := mustJSON(emptyWarnings(c.Warnings))

	_, err := s.conn().Exec(ctx, `
		INSERT INTO claims (`+claimCols+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,now())`,
		c.ID, c.EDIFileID, c.ProviderID, c.PayerID, c.ClaimControlNumber,
		c.PatientControlNumber, c.TotalChargeCents, c.FacilityCode, c.FrequencyCode,
		diagJSON, c.PrincipalDiagnosis, c.StatementStart, c.StatementEnd,
		c.ServiceDate, warnJSON, c.Incomplete)
	if err != nil {
		return classify("create claim", err)
	}

	if len(lines) == 0 {
		return nil
	}
	ch := make(chan model.ClaimLine)
	go func() {
		defer close(ch)
		for _, l := range lines {
			if l.ID == uuid.Nil {
				l.ID = uuid.New()
			}
			l.ClaimID = c.ID
			ch <- l
		}
	}()
	_, err = copyFrom(ctx, s.conn(), pgx.Identifier{"claim_lines"},
		model.LineColumns(), db.NewLineSource(ch))
	if err != nil {
		return classify("copy claim lines", err)
	}
	return nil
}

// CreateClaimBatch inserts each claim row, then streams every line of the
// batch through a single COPY.
func (s *PG) CreateClaimBatch(ctx context.Context, claims []*model.Claim, lines []model.ClaimLine) error {
	for _, c := range claims {
		if c.ID == uuid.Nil {
			c.ID = uuid.New()
		}
		_, err := s.conn().Exec(ctx, `
			INSERT INTO claims (`+claimCols+`)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,now())`,
			c.ID, c.EDIFileID, c.ProviderID, c.PayerID, c.ClaimControlNumber,
			c.PatientControlNumber, c.TotalChargeCents, c.FacilityCode, c.FrequencyCode,
			mustJSON(emptySlice(c.DiagnosisCodes)), c.PrincipalDiagnosis,
			c.StatementStart, c.StatementEnd, c.ServiceDate,
			mustJSON(emptyWarnings(c.Warnings)), c.Incomplete)
		if err != nil {
			return classify("create claim", err)
		}
	}

	if len(lines) == 0 {
		return nil
	}
	ch := make(chan model.ClaimLine)
	go func() {
		defer close(ch)
		for _, l := range lines {
			if l.ID == uuid.Nil {
				l.ID = uuid.New()
			}
			ch <- l
		}
	}()
	_, err := copyFrom(ctx, s.conn(), pgx.Identifier{"claim_lines"},
		model.LineColumns(), db.NewLineSource(ch))
	if err != nil {
		return classify("copy claim lines", err)
	}
	return nil
}

// copyFrom routes COPY through whichever connection kind is active.
func copyFrom(ctx context.Context, q queryable, table pgx.Identifier, cols []string, src pgx.CopyFromSource) (int64, error) {
	switch c := q.(type) {
	case pgx.Tx:
		return c.CopyFrom(ctx, table, cols, src)
	case *pgxpool.Pool:
		return c.CopyFrom(ctx, table, cols, src)
	default:
		return 0, fmt.Errorf("connection does not support COPY")
	}
}

func (s *PG) GetClaim(ctx context.Context, id uuid.UUID) (*model.Claim, error) {
	c, err := scanClaim(s.conn().QueryRow(ctx,
		`SELECT `+claimCols+` FROM claims WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, classify("get claim", err)
	}
	return c, nil
}

func (s *PG) GetClaimByControl(ctx context.Context, payerID uuid.UUID, control string) (*model.Claim, error) {
	c, err := scanClaim(s.conn().QueryRow(ctx,
		`SELECT `+claimCols+` FROM claims
		 WHERE payer_id = $1 AND claim_control_number = $2
		 ORDER BY created_at LIMIT 1`, payerID, control))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, classify("get claim by control", err)
	}
	return c, nil
}

func (s *PG) ClaimExists(ctx context.Context, providerID, payerID uuid.UUID, control string) (bool, error) {
	var exists bool
	err := s.conn().QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM claims
			WHERE provider_id = $1 AND payer_id = $2 AND claim_control_number = $3)`,
		providerID, payerID, control).Scan(&exists)
	if err != nil {
		return false, classify("claim exists", err)
	}
	return exists, nil
}

func (s *PG) ListClaims(ctx context.Context, f ClaimFilter) ([]*model.Claim, error) {
	q := `SELECT ` + claimCols + ` FROM claims WHERE 1=1`
	var args []any
	add := func(cond string, v any) {
		args = append(args, v)
		q += fmt.Sprintf(" AND "+cond, len(args))
	}
	if f.ProviderID != nil {
		add("provider_id = $%d", *f.ProviderID)
	}
	if f.PayerID != nil {
		add("payer_id = $%d", *f.PayerID)
	}
	if f.PatientControlNumber != nil {
		add("patient_control_number = $%d", *f.PatientControlNumber)
	}
	if f.MinChargeCents != nil {
		add("total_charge_cents >= $%d", *f.MinChargeCents)
	}
	if f.MaxChargeCents != nil {
		add("total_charge_cents <= $%d", *f.MaxChargeCents)
	}
	if f.ServiceFrom != nil {
		args = append(args, *f.ServiceFrom)
		q += fmt.Sprintf(" AND (service_date >= $%d OR statement_end >= $%d)", len(args), len(args))
	}
	if f.ServiceTo != nil {
		args = append(args, *f.ServiceTo)
		q += fmt.Sprintf(" AND (service_date <= $%d OR statement_start <= $%d)", len(args), len(args))
	}
	if f.Incomplete != nil {
		add("incomplete = $%d", *f.Incomplete)
	}
	q += " ORDER BY created_at"
	if f.Limit > 0 {
		args = append(args, f.Limit)
		q += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	rows, err := s.conn().Query(ctx, q, args...)
	if err != nil {
		return nil, classify("list claims", err)
	}
	defer rows.Close()

	var out []*model.Claim
	for rows.Next() {
		c, err := scanClaim(rows)
		if err != nil {
			return nil, classify("scan claim", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *PG) GetClaimLines(ctx context.Context, claimID uuid.UUID) ([]model.ClaimLine, error) {
	rows, err := s.conn().Query(ctx, `
		SELECT id, claim_id, line_number, procedure_code, charge_cents, units, service_date
		FROM claim_lines WHERE claim_id = $1 ORDER BY line_number`, claimID)
	if err != nil {
		return nil, classify("get claim lines", err)
	}
	defer rows.Close()

	var out []model.ClaimLine
	for rows.Next() {
		var l model.ClaimLine
		if err := rows.Scan(&l.ID, &l.ClaimID, &l.LineNumber, &l.ProcedureCode,
			&l.ChargeCents, &l.Units, &l.ServiceDate); err != nil {
			return nil, classify("scan claim line", err)
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

const remitCols = `id, edi_file_id, payer_id, claim_control_number, patient_control_number,
	claim_status, charge_cents, payment_cents, patient_resp_cents,
	service_start, service_end,
	adjustments, line_payments, episode_id, warnings, incomplete, created_at`

func scanRemittance(row pgx.Row) (*model.Remittance, error) {
	var r model.Remittance
	var adjJSON, lineJSON, warnJSON []byte
	err := row.Scan(&r.ID, &r.EDIFileID, &r.PayerID, &r.ClaimControlNumber, &r.PatientControlNumber,
		&r.ClaimStatus, &r.ChargeCents, &r.PaymentCents, &r.PatientRespCents,
		&r.ServiceStart, &r.ServiceEnd,
		&adjJSON, &lineJSON, &r.EpisodeID, &warnJSON, &r.Incomplete, &r.CreatedAt)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(adjJSON, &r.Adjustments); err != nil {
		return nil, fmt.Errorf("decode adjustments: %w", err)
	}
	if err := json.Unmarshal(lineJSON, &r.LinePayments); err != nil {
		return nil, fmt.Errorf("decode line payments: %w", err)
	}
	if err := json.Unmarshal(warnJSON, &r.Warnings); err != nil {
		return nil, fmt.Errorf("decode remittance warnings: %w", err)
	}
	return &r, nil
}

func (s *PG) CreateRemittance(ctx context.Context, r *model.Remittance) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	_, err := s.conn().Exec(ctx, `
		INSERT INTO remittances (`+remitCols+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,now())`,
		r.ID, r.EDIFileID, r.PayerID, r.ClaimControlNumber, r.PatientControlNumber,
		r.ClaimStatus, r.ChargeCents, r.PaymentCents, r.PatientRespCents,
		r.ServiceStart, r.ServiceEnd,
		mustJSON(emptyAdjustments(r.Adjustments)), mustJSON(emptyLinePayments(r.LinePayments)),
		r.EpisodeID, mustJSON(emptyWarnings(r.Warnings)), r.Incomplete)
	return classify("create remittance", err)
}

func (s *PG) GetRemittance(ctx context.Context, id uuid.UUID) (*model.Remittance, error) {
	r, err := scanRemittance(s.conn().QueryRow(ctx,
		`SELECT `+remitCols+` FROM remittances WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, classify("get remittance", err)
	}
	return r, nil
}

func (s *PG) ListRemittances(ctx context.Context, f RemittanceFilter) ([]*model.Remittance, error) {
	q := `SELECT ` + remitCols + ` FROM remittances WHERE 1=1`
	var args []any
	if f.PayerID != nil {
		args = append(args, *f.PayerID)
		q += fmt.Sprintf(" AND payer_id = $%d", len(args))
	}
	if f.Unlinked {
		q += " AND episode_id IS NULL"
	}
	q += " ORDER BY created_at"
	if f.Limit > 0 {
		args = append(args, f.Limit)
		q += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	rows, err := s.conn().Query(ctx, q, args...)
	if err != nil {
		return nil, classify("list remittances", err)
	}
	defer rows.Close()

	var out []*model.Remittance
	for rows.Next() {
		r, err := scanRemittance(rows)
		if err != nil {
			return nil, classify("scan remittance", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *PG) AttachRemittance(ctx context.Context, remittanceID, episodeID uuid.UUID) error {
	tag, err := s.conn().Exec(ctx, `
		UPDATE remittances SET episode_id = $2
		WHERE id = $1 AND (episode_id IS NULL OR episode_id = $2)`,
		remittanceID, episodeID)
	if err != nil {
		return classify("attach remittance", err)
	}
	if tag.RowsAffected() == 0 {
		var exists bool
		if err := s.conn().QueryRow(ctx,
			`SELECT EXISTS (SELECT 1 FROM remittances WHERE id = $1)`, remittanceID).
			Scan(&exists); err != nil {
			return classify("attach remittance", err)
		}
		if !exists {
			return ErrNotFound
		}
		return &IntegrityError{Op: "attach remittance",
			Err: fmt.Errorf("remittance already linked to another episode")}
	}
	return nil
}

const episodeCols = `id, claim_id, payer_id, status, payment_cents, adjustment_cents,
	denial_count, adjustment_count, linked_at, updated_at`

func scanEpisode(row pgx.Row) (*model.ClaimEpisode, error) {
	var e model.ClaimEpisode
	err := row.Scan(&e.ID, &e.ClaimID, &e.PayerID, &e.Status, &e.PaymentCents,
		&e.AdjustmentCents, &e.DenialCount, &e.AdjustmentCount, &e.LinkedAt, &e.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &e, nil
}

func (s *PG) GetEpisodeByClaim(ctx context.Context, claimID uuid.UUID) (*model.ClaimEpisode, error) {
	e, err := scanEpisode(s.conn().QueryRow(ctx,
		`SELECT `+episodeCols+` FROM claim_episodes WHERE claim_id = $1`, claimID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, classify("get episode", err)
	}
	return e, nil
}

func (s *PG) SaveEpisode(ctx context.Context, e *model.ClaimEpisode) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	err := s.conn().QueryRow(ctx, `
		INSERT INTO claim_episodes (`+episodeCols+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,now())
		ON CONFLICT (claim_id) DO UPDATE SET
			status = EXCLUDED.status,
			payment_cents = EXCLUDED.payment_cents,
			adjustment_cents = EXCLUDED.adjustment_cents,
			denial_count = EXCLUDED.denial_count,
			adjustment_count = EXCLUDED.adjustment_count,
			linked_at = COALESCE(claim_episodes.linked_at, EXCLUDED.linked_at),
			updated_at = now()
		RETURNING id, updated_at`,
		e.ID, e.ClaimID, e.PayerID, e.Status, e.PaymentCents, e.AdjustmentCents,
		e.DenialCount, e.AdjustmentCount, e.LinkedAt).
		Scan(&e.ID, &e.UpdatedAt)
	return classify("save episode", err)
}

func (s *PG) ListEpisodes(ctx context.Context, f EpisodeFilter) ([]*model.ClaimEpisode, error) {
	q := `SELECT ` + episodeCols + ` FROM claim_episodes WHERE 1=1`
	var args []any
	if f.PayerID != nil {
		args = append(args, *f.PayerID)
		q += fmt.Sprintf(" AND payer_id = $%d", len(args))
	}
	if f.Status != nil {
		args = append(args, *f.Status)
		q += fmt.Sprintf(" AND status = $%d", len(args))
	}
	if f.UpdatedAfter != nil {
		args = append(args, *f.UpdatedAfter)
		q += fmt.Sprintf(" AND updated_at >= $%d", len(args))
	}
	q += " ORDER BY updated_at"
	if f.Limit > 0 {
		args = append(args, f.Limit)
		q += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	rows, err := s.conn().Query(ctx, q, args...)
	if err != nil {
		return nil, classify("list episodes", err)
	}
	defer rows.Close()

	var out []*model.ClaimEpisode
	for rows.Next() {
		e, err := scanEpisode(rows)
		if err != nil {
			return nil, classify("scan episode", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// LeaseClaim takes a transaction-scoped advisory lock keyed on the claim id.
// Linking attempts originate from independently scheduled tasks, so the lease
// lives in the database, not in process memory.
func (s *PG) LeaseClaim(ctx context.Context, claimID uuid.UUID) error {
	if s.tx == nil {
		return fmt.Errorf("lease claim: must be called inside a transaction")
	}
	var ok bool
	err := s.conn().QueryRow(ctx,
		`SELECT pg_try_advisory_xact_lock(hashtextextended($1::text, 0))`,
		claimID).Scan(&ok)
	if err != nil {
		return classify("lease claim", err)
	}
	if !ok {
		return ErrClaimLeased
	}
	return nil
}

// ReleaseClaim is a no-op for the Postgres store: the advisory lock releases
// with the transaction.
func (s *PG) ReleaseClaim(ctx context.Context, claimID uuid.UUID) error { return nil }

func (s *PG) UpsertDenialPattern(ctx context.Context, p *model.DenialPattern) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	err := s.conn().QueryRow(ctx, `
		INSERT INTO denial_patterns (id, payer_id, pattern_type, description,
			procedure_code, reason_code, occurrences, frequency, confidence,
			first_seen, last_seen, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,now())
		ON CONFLICT (payer_id, procedure_code, reason_code) DO UPDATE SET
			pattern_type = EXCLUDED.pattern_type,
			description = EXCLUDED.description,
			occurrences = EXCLUDED.occurrences,
			frequency = EXCLUDED.frequency,
			confidence = EXCLUDED.confidence,
			first_seen = LEAST(denial_patterns.first_seen, EXCLUDED.first_seen),
			last_seen = GREATEST(denial_patterns.last_seen, EXCLUDED.last_seen),
			updated_at = now()
		RETURNING id, first_seen, updated_at`,
		p.ID, p.PayerID, p.PatternType, p.Description, p.ProcedureCode, p.ReasonCode,
		p.Occurrences, p.Frequency, p.Confidence, p.FirstSeen, p.LastSeen).
		Scan(&p.ID, &p.FirstSeen, &p.UpdatedAt)
	return classify("upsert denial pattern", err)
}

func (s *PG) ListDenialPatterns(ctx context.Context, payerID uuid.UUID) ([]*model.DenialPattern, error) {
	rows, err := s.conn().Query(ctx, `
		SELECT id, payer_id, pattern_type, description, procedure_code, reason_code,
			occurrences, frequency, confidence, first_seen, last_seen, updated_at
		FROM denial_patterns WHERE payer_id = $1 ORDER BY occurrences DESC`, payerID)
	if err != nil {
		return nil, classify("list denial patterns", err)
	}
	defer rows.Close()

	var out []*model.DenialPattern
	for rows.Next() {
		var p model.DenialPattern
		if err := rows.Scan(&p.ID, &p.PayerID, &p.PatternType, &p.Description,
			&p.ProcedureCode, &p.ReasonCode, &p.Occurrences, &p.Frequency,
			&p.Confidence, &p.FirstSeen, &p.LastSeen, &p.UpdatedAt); err != nil {
			return nil, classify("scan denial pattern", err)
		}
		out = append(out, &p)
	}
	return out, rows.Err()
}

func (s *PG) SaveRiskScore(ctx context.Context, sc *model.RiskScore) error {
	if sc.ID == uuid.Nil {
		sc.ID = uuid.New()
	}
	_, err := s.conn().Exec(ctx, `
		INSERT INTO risk_scores (id, claim_id, overall, level, coding_score,
			documentation_score, payer_rule_score, historical_score, factors, scored_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
		ON CONFLICT (claim_id) DO UPDATE SET
			overall = EXCLUDED.overall,
			level = EXCLUDED.level,
			coding_score = EXCLUDED.coding_score,
			documentation_score = EXCLUDED.documentation_score,
			payer_rule_score = EXCLUDED.payer_rule_score,
			historical_score = EXCLUDED.historical_score,
			factors = EXCLUDED.factors,
			scored_at = EXCLUDED.scored_at`,
		sc.ID, sc.ClaimID, sc.Overall, sc.Level, sc.CodingScore,
		sc.DocumentationScore, sc.PayerRuleScore, sc.HistoricalScore,
		mustJSON(emptyFactors(sc.Factors)), sc.ScoredAt)
	return classify("save risk score", err)
}

func (s *PG) GetRiskScore(ctx context.Context, claimID uuid.UUID) (*model.RiskScore, error) {
	var sc model.RiskScore
	var factorsJSON []byte
	err := s.conn().QueryRow(ctx, `
		SELECT id, claim_id, overall, level, coding_score, documentation_score,
			payer_rule_score, historical_score, factors, scored_at
		FROM risk_scores WHERE claim_id = $1`, claimID).
		Scan(&sc.ID, &sc.ClaimID, &sc.Overall, &sc.Level, &sc.CodingScore,
			&sc.DocumentationScore, &sc.PayerRuleScore, &sc.HistoricalScore,
			&factorsJSON, &sc.ScoredAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, classify("get risk score", err)
	}
	if err := json.Unmarshal(factorsJSON, &sc.Factors); err != nil {
		return nil, fmt.Errorf("decode risk factors: %w", err)
	}
	return &sc, nil
}

func (s *PG) GetFormatProfile(ctx context.Context, originatorID string) (*formatprofile.Profile, error) {
	var raw []byte
	err := s.conn().QueryRow(ctx,
		`SELECT profile FROM format_profiles WHERE originator_id = $1`, originatorID).
		Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, classify("get format profile", err)
	}
	var p formatprofile.Profile
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, fmt.Errorf("decode format profile: %w", err)
	}
	return &p, nil
}

func (s *PG) SaveFormatProfile(ctx context.Context, p *formatprofile.Profile) error {
	_, err := s.conn().Exec(ctx, `
		INSERT INTO format_profiles (originator_id, profile, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (originator_id) DO UPDATE SET
			profile = EXCLUDED.profile, updated_at = now()`,
		p.OriginatorID, mustJSON(p))
	return classify("save format profile", err)
}

func mustJSON(v any) []byte {
	b, err := json.Marshal(v)
	if err != nil {
		// Only reachable with unmarshalable types, which the models are not.
		panic(fmt.Sprintf("store: marshal json: %v", err))
	}
	return b
}

func emptySlice(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func emptyWarnings(w []model.Warning) []model.Warning {
	if w == nil {
		return []model.Warning{}
	}
	return w
}

func emptyAdjustments(a []model.Adjustment) []model.Adjustment {
	if a == nil {
		return []model.Adjustment{}
	}
	return a
}

func emptyLinePayments(l []model.LinePayment) []model.LinePayment {
	if l == nil {
		return []model.LinePayment{}
	}
	return l
}

func emptyFactors(f []model.RiskFactor) []model.RiskFactor {
	if f == nil {
		return []model.RiskFactor{}
	}
	return f
}
