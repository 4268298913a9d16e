package link

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/nmartin15/claimflow/internal/model"
	"github.com/nmartin15/claimflow/internal/store"
)

func testLinker(m *store.Memory) *Linker {
	return New(m, zerolog.Nop(), Options{
		CompletionToleranceBPS: 100,
		FuzzyAmountBPS:         100,
		FuzzyWindowDays:        30,
	})
}

func seedClaim(t *testing.T, m *store.Memory, payerID uuid.UUID, control string, chargeCents int64) *model.Claim {
	t.Helper()
	c := &model.Claim{
		ProviderID:         uuid.New(),
		PayerID:            payerID,
		ClaimControlNumber: control,
		TotalChargeCents:   chargeCents,
	}
	if err := m.CreateClaim(context.Background(), c, nil); err != nil {
		t.Fatalf("seed claim: %v", err)
	}
	return c
}

func seedRemit(t *testing.T, m *store.Memory, r *model.Remittance) *model.Remittance {
	t.Helper()
	if err := m.CreateRemittance(context.Background(), r); err != nil {
		t.Fatalf("seed remittance: %v", err)
	}
	return r
}

func TestLinkExactMatch(t *testing.T) {
	ctx := context.Background()
	m := store.NewMemory()
	payerID := uuid.New()
	claim := seedClaim(t, m, payerID, "CLM001", 15000)

	// Partial payment: 120 of 150 paid, 15 contractual, 15 patient share.
	seedRemit(t, m, &model.Remittance{
		PayerID:            payerID,
		ClaimControlNumber: "CLM001",
		ClaimStatus:        model.ClaimStatusPrimary,
		ChargeCents:        15000,
		PaymentCents:       12000,
		PatientRespCents:   1500,
		Adjustments: []model.Adjustment{
			{Category: model.AdjContractual, Group: "CO", ReasonCode: "45", AmountCents: 1500},
		},
	})

	res, err := testLinker(m).Run(ctx, nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Seen != 1 || res.Linked != 1 || res.FuzzyLinked != 0 {
		t.Errorf("result = %+v", res)
	}

	ep, err := m.GetEpisodeByClaim(ctx, claim.ID)
	if err != nil {
		t.Fatalf("GetEpisodeByClaim: %v", err)
	}
	if ep.PaymentCents != 12000 || ep.AdjustmentCents != 1500 {
		t.Errorf("episode amounts = %d / %d", ep.PaymentCents, ep.AdjustmentCents)
	}
	if ep.Status != model.EpisodeLinked {
		t.Errorf("Status = %q, want linked (patient share still open)", ep.Status)
	}
	if ep.LinkedAt == nil {
		t.Error("LinkedAt not set")
	}
}

func TestLinkCompletion(t *testing.T) {
	ctx := context.Background()
	m := store.NewMemory()
	payerID := uuid.New()
	claim := seedClaim(t, m, payerID, "CLM001", 15000)

	// Payment plus contractual adjustment cover the full charge.
	seedRemit(t, m, &model.Remittance{
		PayerID:            payerID,
		ClaimControlNumber: "CLM001",
		ClaimStatus:        model.ClaimStatusPrimary,
		ChargeCents:        15000,
		PaymentCents:       12000,
		Adjustments: []model.Adjustment{
			{Category: model.AdjContractual, Group: "CO", ReasonCode: "45", AmountCents: 3000},
		},
	})

	res, err := testLinker(m).Run(ctx, nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Completed != 1 {
		t.Errorf("Completed = %d", res.Completed)
	}
	ep, _ := m.GetEpisodeByClaim(ctx, claim.ID)
	if ep.Status != model.EpisodeComplete {
		t.Errorf("Status = %q", ep.Status)
	}
}

func TestLinkDenial(t *testing.T) {
	ctx := context.Background()
	m := store.NewMemory()
	payerID := uuid.New()
	claim := seedClaim(t, m, payerID, "CLM001", 15000)

	seedRemit(t, m, &model.Remittance{
		PayerID:            payerID,
		ClaimControlNumber: "CLM001",
		ClaimStatus:        model.ClaimStatusDenied,
		ChargeCents:        15000,
		PaymentCents:       0,
		Adjustments: []model.Adjustment{
			{Category: model.AdjContractual, Group: "CO", ReasonCode: "29", AmountCents: 15000},
		},
	})

	res, err := testLinker(m).Run(ctx, nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Denied != 1 {
		t.Errorf("Denied = %d", res.Denied)
	}
	ep, _ := m.GetEpisodeByClaim(ctx, claim.ID)
	if ep.Status != model.EpisodeDenied || ep.DenialCount != 1 {
		t.Errorf("episode = %+v", ep)
	}
}

func TestLinkReversalBacksOut(t *testing.T) {
	ctx := context.Background()
	m := store.NewMemory()
	payerID := uuid.New()
	claim := seedClaim(t, m, payerID, "CLM001", 15000)

	seedRemit(t, m, &model.Remittance{
		PayerID:            payerID,
		ClaimControlNumber: "CLM001",
		ClaimStatus:        model.ClaimStatusPrimary,
		ChargeCents:        15000,
		PaymentCents:       15000,
	})
	if _, err := testLinker(m).Run(ctx, nil); err != nil {
		t.Fatalf("first run: %v", err)
	}
	ep, _ := m.GetEpisodeByClaim(ctx, claim.ID)
	if ep.Status != model.EpisodeComplete {
		t.Fatalf("Status after payment = %q", ep.Status)
	}

	// Reversal arrives with negated amounts and folds the payment back out.
	seedRemit(t, m, &model.Remittance{
		PayerID:            payerID,
		ClaimControlNumber: "CLM001",
		ClaimStatus:        model.ClaimStatusReversal,
		ChargeCents:        -15000,
		PaymentCents:       -15000,
	})
	if _, err := testLinker(m).Run(ctx, nil); err != nil {
		t.Fatalf("second run: %v", err)
	}
	ep, _ = m.GetEpisodeByClaim(ctx, claim.ID)
	if ep.PaymentCents != 0 {
		t.Errorf("PaymentCents = %d after reversal", ep.PaymentCents)
	}
	if ep.Status == model.EpisodeComplete {
		t.Error("episode still complete after reversal")
	}
}

func TestLinkFuzzyMatch(t *testing.T) {
	ctx := context.Background()
	m := store.NewMemory()
	payerID := uuid.New()
	pat := "PAT001"

	c := &model.Claim{
		ProviderID:           uuid.New(),
		PayerID:              payerID,
		ClaimControlNumber:   "CLM001",
		PatientControlNumber: &pat,
		TotalChargeCents:     15000,
	}
	if err := m.CreateClaim(ctx, c, nil); err != nil {
		t.Fatal(err)
	}

	// The payer renamed the control number; only the patient control and the
	// charge amount line up.
	seedRemit(t, m, &model.Remittance{
		PayerID:              payerID,
		ClaimControlNumber:   "X-CLM001-R",
		PatientControlNumber: &pat,
		ClaimStatus:          model.ClaimStatusPrimary,
		ChargeCents:          15000,
		PaymentCents:         15000,
	})

	res, err := testLinker(m).Run(ctx, nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Linked != 1 || res.FuzzyLinked != 1 {
		t.Errorf("result = %+v", res)
	}
	ep, err := m.GetEpisodeByClaim(ctx, c.ID)
	if err != nil {
		t.Fatalf("episode: %v", err)
	}
	if ep.Status != model.EpisodeComplete {
		t.Errorf("Status = %q", ep.Status)
	}
}

func TestLinkFuzzyAmbiguityLeavesUnlinked(t *testing.T) {
	ctx := context.Background()
	m := store.NewMemory()
	payerID := uuid.New()
	pat := "PAT001"

	for _, control := range []string{"CLM001", "CLM002"} {
		c := &model.Claim{
			ProviderID:           uuid.New(),
			PayerID:              payerID,
			ClaimControlNumber:   control,
			PatientControlNumber: &pat,
			TotalChargeCents:     15000,
		}
		if err := m.CreateClaim(ctx, c, nil); err != nil {
			t.Fatal(err)
		}
	}

	seedRemit(t, m, &model.Remittance{
		PayerID:              payerID,
		ClaimControlNumber:   "UNKNOWN-REF",
		PatientControlNumber: &pat,
		ClaimStatus:          model.ClaimStatusPrimary,
		ChargeCents:          15000,
		PaymentCents:         15000,
	})

	res, err := testLinker(m).Run(ctx, nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Unmatched != 1 || res.Linked != 0 {
		t.Errorf("result = %+v", res)
	}
}

func TestLinkFuzzyAmountGate(t *testing.T) {
	ctx := context.Background()
	m := store.NewMemory()
	payerID := uuid.New()
	pat := "PAT001"

	c := &model.Claim{
		ProviderID:           uuid.New(),
		PayerID:              payerID,
		ClaimControlNumber:   "CLM001",
		PatientControlNumber: &pat,
		TotalChargeCents:     15000,
	}
	if err := m.CreateClaim(ctx, c, nil); err != nil {
		t.Fatal(err)
	}

	// Charge differs by far more than the allowed 100 bps.
	seedRemit(t, m, &model.Remittance{
		PayerID:              payerID,
		ClaimControlNumber:   "UNKNOWN-REF",
		PatientControlNumber: &pat,
		ClaimStatus:          model.ClaimStatusPrimary,
		ChargeCents:          90000,
		PaymentCents:         90000,
	})

	res, err := testLinker(m).Run(ctx, nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Unmatched != 1 {
		t.Errorf("result = %+v", res)
	}
}

func TestLinkFuzzyServicePeriodOverlap(t *testing.T) {
	ctx := context.Background()
	m := store.NewMemory()
	payerID := uuid.New()
	pat := "PAT001"
	svc := time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC)

	c := &model.Claim{
		ProviderID:           uuid.New(),
		PayerID:              payerID,
		ClaimControlNumber:   "CLM001",
		PatientControlNumber: &pat,
		TotalChargeCents:     15000,
		ServiceDate:          &svc,
	}
	if err := m.CreateClaim(ctx, c, nil); err != nil {
		t.Fatal(err)
	}

	// The remittance's DTM service period spans the claim's service date, so
	// the fuzzy match holds even though the remittance arrived much later.
	start := time.Date(2024, 1, 8, 0, 0, 0, 0, time.UTC)
	end := time.Date(2024, 1, 12, 0, 0, 0, 0, time.UTC)
	seedRemit(t, m, &model.Remittance{
		PayerID:              payerID,
		ClaimControlNumber:   "X-CLM001-R",
		PatientControlNumber: &pat,
		ClaimStatus:          model.ClaimStatusPrimary,
		ChargeCents:          15000,
		PaymentCents:         15000,
		ServiceStart:         &start,
		ServiceEnd:           &end,
	})

	res, err := testLinker(m).Run(ctx, nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Linked != 1 || res.FuzzyLinked != 1 {
		t.Errorf("result = %+v", res)
	}
}

func TestLinkFuzzyServicePeriodGate(t *testing.T) {
	ctx := context.Background()
	m := store.NewMemory()
	payerID := uuid.New()
	pat := "PAT001"

	// The claim's service date is recent enough that arrival proximity alone
	// would accept it; only the disjoint service period rejects the match.
	svc := time.Now().UTC().AddDate(0, 0, -5)
	c := &model.Claim{
		ProviderID:           uuid.New(),
		PayerID:              payerID,
		ClaimControlNumber:   "CLM001",
		PatientControlNumber: &pat,
		TotalChargeCents:     15000,
		ServiceDate:          &svc,
	}
	if err := m.CreateClaim(ctx, c, nil); err != nil {
		t.Fatal(err)
	}

	start := svc.AddDate(0, -3, 0)
	end := start.AddDate(0, 0, 4)
	seedRemit(t, m, &model.Remittance{
		PayerID:              payerID,
		ClaimControlNumber:   "UNKNOWN-REF",
		PatientControlNumber: &pat,
		ClaimStatus:          model.ClaimStatusPrimary,
		ChargeCents:          15000,
		PaymentCents:         15000,
		ServiceStart:         &start,
		ServiceEnd:           &end,
	})

	res, err := testLinker(m).Run(ctx, nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Unmatched != 1 || res.Linked != 0 {
		t.Errorf("result = %+v", res)
	}
}

func TestLinkFuzzyArrivalWindowFallback(t *testing.T) {
	ctx := context.Background()
	m := store.NewMemory()
	payerID := uuid.New()
	pat := "PAT001"

	// No DTM period on the remittance: the claim's service date must sit
	// within the window around the remittance's arrival, and a year-old
	// claim does not.
	svc := time.Now().UTC().AddDate(-1, 0, 0)
	c := &model.Claim{
		ProviderID:           uuid.New(),
		PayerID:              payerID,
		ClaimControlNumber:   "CLM001",
		PatientControlNumber: &pat,
		TotalChargeCents:     15000,
		ServiceDate:          &svc,
	}
	if err := m.CreateClaim(ctx, c, nil); err != nil {
		t.Fatal(err)
	}

	seedRemit(t, m, &model.Remittance{
		PayerID:              payerID,
		ClaimControlNumber:   "UNKNOWN-REF",
		PatientControlNumber: &pat,
		ClaimStatus:          model.ClaimStatusPrimary,
		ChargeCents:          15000,
		PaymentCents:         15000,
	})

	res, err := testLinker(m).Run(ctx, nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Unmatched != 1 {
		t.Errorf("result = %+v", res)
	}
}

func TestLinkIdempotent(t *testing.T) {
	ctx := context.Background()
	m := store.NewMemory()
	payerID := uuid.New()
	claim := seedClaim(t, m, payerID, "CLM001", 15000)

	seedRemit(t, m, &model.Remittance{
		PayerID:            payerID,
		ClaimControlNumber: "CLM001",
		ClaimStatus:        model.ClaimStatusPrimary,
		ChargeCents:        15000,
		PaymentCents:       15000,
	})

	lk := testLinker(m)
	if _, err := lk.Run(ctx, nil); err != nil {
		t.Fatalf("first run: %v", err)
	}
	// A second run sees no unlinked remittances and applies nothing.
	res, err := lk.Run(ctx, nil)
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if res.Seen != 0 {
		t.Errorf("second run saw %d remittances", res.Seen)
	}
	ep, _ := m.GetEpisodeByClaim(ctx, claim.ID)
	if ep.PaymentCents != 15000 {
		t.Errorf("payment applied twice: %d", ep.PaymentCents)
	}
}

func TestLinkUnmatchedStaysPending(t *testing.T) {
	ctx := context.Background()
	m := store.NewMemory()
	payerID := uuid.New()

	seedRemit(t, m, &model.Remittance{
		PayerID:            payerID,
		ClaimControlNumber: "NOSUCHCLAIM",
		ClaimStatus:        model.ClaimStatusPrimary,
		ChargeCents:        15000,
		PaymentCents:       15000,
	})

	res, err := testLinker(m).Run(ctx, nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Unmatched != 1 {
		t.Errorf("result = %+v", res)
	}

	// Still unlinked: a later run picks it up once the claim arrives.
	remits, _ := m.ListRemittances(ctx, store.RemittanceFilter{Unlinked: true})
	if len(remits) != 1 {
		t.Errorf("got %d unlinked remittances", len(remits))
	}

	seedClaim(t, m, payerID, "NOSUCHCLAIM", 15000)
	res, err = testLinker(m).Run(ctx, nil)
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if res.Linked != 1 {
		t.Errorf("second run = %+v", res)
	}
}

func TestLinkPayerScope(t *testing.T) {
	ctx := context.Background()
	m := store.NewMemory()
	payerA, payerB := uuid.New(), uuid.New()
	seedClaim(t, m, payerA, "CLM001", 15000)
	seedClaim(t, m, payerB, "CLM001", 15000)

	for _, p := range []uuid.UUID{payerA, payerB} {
		seedRemit(t, m, &model.Remittance{
			PayerID:            p,
			ClaimControlNumber: "CLM001",
			ClaimStatus:        model.ClaimStatusPrimary,
			ChargeCents:        15000,
			PaymentCents:       15000,
		})
	}

	res, err := testLinker(m).Run(ctx, &payerA)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Seen != 1 || res.Linked != 1 {
		t.Errorf("scoped run = %+v", res)
	}
}
