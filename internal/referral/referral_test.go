package referral_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/qashgo/backend/internal/models"
	"github.com/qashgo/backend/internal/referral"
	"github.com/shopspring/decimal"
	"pgregory.net/rapid"
)

// fakeStore is an in-memory Store for exercising the chain walk without a
// database. Commission payments are keyed like the unique index on the
// referrals table, so replays are visible as paid=false.
type fakeStore struct {
	users    map[string]*models.User // by referral code
	payments map[string]paidEdge
	failAt   map[int]error // level -> forced PayCommission error
}

type paidEdge struct {
	referrerID uuid.UUID
	referredID uuid.UUID
	level      int
	commission decimal.Decimal
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		users:    map[string]*models.User{},
		payments: map[string]paidEdge{},
		failAt:   map[int]error{},
	}
}

func (f *fakeStore) addUser(code string, referredBy string) *models.User {
	u := &models.User{ID: uuid.New(), ReferralCode: code, AccountActive: true}
	if referredBy != "" {
		u.ReferredByCode = &referredBy
	}
	f.users[code] = u
	return u
}

func edgeKey(referrerID, referredID uuid.UUID, level int) string {
	return fmt.Sprintf("%s/%s/%d", referrerID, referredID, level)
}

func (f *fakeStore) FindUserByReferralCode(_ context.Context, code string) (*models.User, error) {
	u, ok := f.users[code]
	if !ok {
		return nil, referral.ErrCodeNotFound
	}
	return u, nil
}

func (f *fakeStore) PayCommission(_ context.Context, referrerID, referredID uuid.UUID, level int, commission decimal.Decimal) (bool, error) {
	if err := f.failAt[level]; err != nil {
		return false, err
	}
	key := edgeKey(referrerID, referredID, level)
	if _, ok := f.payments[key]; ok {
		return false, nil
	}
	f.payments[key] = paidEdge{referrerID: referrerID, referredID: referredID, level: level, commission: commission}
	return true, nil
}

func (f *fakeStore) ReferralsByReferrer(_ context.Context, referrerID uuid.UUID) ([]models.ReferralWithUser, error) {
	return nil, nil
}

func (f *fakeStore) CountActiveReferrals(_ context.Context, referrerID uuid.UUID, level int) (int, error) {
	count := 0
	for _, p := range f.payments {
		if p.referrerID == referrerID && p.level == level {
			count++
		}
	}
	return count, nil
}

func (f *fakeStore) ActiveReferralCounts(_ context.Context, referrerID uuid.UUID) (models.ActiveReferralCounts, error) {
	var counts models.ActiveReferralCounts
	counts.Level1, _ = f.CountActiveReferrals(context.Background(), referrerID, 1)
	counts.Level2, _ = f.CountActiveReferrals(context.Background(), referrerID, 2)
	counts.Level3, _ = f.CountActiveReferrals(context.Background(), referrerID, 3)
	return counts, nil
}

func (f *fakeStore) commissionFor(referrerID uuid.UUID, level int) (decimal.Decimal, bool) {
	for _, p := range f.payments {
		if p.referrerID == referrerID && p.level == level {
			return p.commission, true
		}
	}
	return decimal.Zero, false
}

func TestCommissionForLevel(t *testing.T) {
	cases := []struct {
		level int
		want  int64
	}{
		{1, 1800},
		{2, 900},
		{3, 500},
		{0, 0},
		{4, 0},
		{-1, 0},
	}
	for _, tc := range cases {
		got := referral.CommissionForLevel(tc.level)
		if !got.Equal(decimal.NewFromInt(tc.want)) {
			t.Errorf("CommissionForLevel(%d) = %s, want %d", tc.level, got, tc.want)
		}
	}
}

func TestDistributeCommissionsEmptyCode(t *testing.T) {
	store := newFakeStore()
	svc := referral.NewService(store)

	svc.DistributeCommissions(context.Background(), "", uuid.New())

	if len(store.payments) != 0 {
		t.Fatalf("expected no payments, got %d", len(store.payments))
	}
}

func TestDistributeCommissionsUnknownCode(t *testing.T) {
	store := newFakeStore()
	store.addUser("ALICE", "")
	svc := referral.NewService(store)

	svc.DistributeCommissions(context.Background(), "NOSUCH", uuid.New())

	if len(store.payments) != 0 {
		t.Fatalf("dangling code at level 1 must pay nothing, got %d payments", len(store.payments))
	}
}

func TestDistributeCommissionsThreeLevels(t *testing.T) {
	store := newFakeStore()
	grand := store.addUser("GRAND", "")
	parent := store.addUser("PARENT", "GRAND")
	direct := store.addUser("DIRECT", "PARENT")
	svc := referral.NewService(store)

	newUser := uuid.New()
	svc.DistributeCommissions(context.Background(), "DIRECT", newUser)

	if len(store.payments) != 3 {
		t.Fatalf("expected 3 payments, got %d", len(store.payments))
	}

	want := []struct {
		referrer *models.User
		level    int
		amount   int64
	}{
		{direct, 1, 1800},
		{parent, 2, 900},
		{grand, 3, 500},
	}
	for _, w := range want {
		got, ok := store.commissionFor(w.referrer.ID, w.level)
		if !ok {
			t.Fatalf("no payment to %s at level %d", w.referrer.ReferralCode, w.level)
		}
		if !got.Equal(decimal.NewFromInt(w.amount)) {
			t.Errorf("level %d commission = %s, want %d", w.level, got, w.amount)
		}
	}
}

func TestDistributeCommissionsShortChain(t *testing.T) {
	store := newFakeStore()
	direct := store.addUser("SOLO", "")
	svc := referral.NewService(store)

	svc.DistributeCommissions(context.Background(), "SOLO", uuid.New())

	if len(store.payments) != 1 {
		t.Fatalf("expected 1 payment, got %d", len(store.payments))
	}
	if got, _ := store.commissionFor(direct.ID, 1); !got.Equal(decimal.NewFromInt(1800)) {
		t.Errorf("level 1 commission = %s, want 1800", got)
	}
}

func TestDistributeCommissionsDanglingUpline(t *testing.T) {
	store := newFakeStore()
	direct := store.addUser("DIRECT", "GONE")
	svc := referral.NewService(store)

	svc.DistributeCommissions(context.Background(), "DIRECT", uuid.New())

	if len(store.payments) != 1 {
		t.Fatalf("expected only the level 1 payment, got %d", len(store.payments))
	}
	if _, ok := store.commissionFor(direct.ID, 1); !ok {
		t.Fatal("level 1 payment missing")
	}
}

func TestDistributeCommissionsIdempotent(t *testing.T) {
	store := newFakeStore()
	store.addUser("GRAND", "")
	store.addUser("PARENT", "GRAND")
	store.addUser("DIRECT", "PARENT")
	svc := referral.NewService(store)

	newUser := uuid.New()
	svc.DistributeCommissions(context.Background(), "DIRECT", newUser)
	first := make(map[string]paidEdge, len(store.payments))
	for k, v := range store.payments {
		first[k] = v
	}

	svc.DistributeCommissions(context.Background(), "DIRECT", newUser)

	if len(store.payments) != len(first) {
		t.Fatalf("replay changed payment count: %d -> %d", len(first), len(store.payments))
	}
	for k, v := range first {
		if store.payments[k] != v {
			t.Errorf("replay mutated payment %s", k)
		}
	}
}

func TestDistributeCommissionsSelfReferral(t *testing.T) {
	store := newFakeStore()
	u := store.addUser("SELF", "")
	svc := referral.NewService(store)

	svc.DistributeCommissions(context.Background(), "SELF", u.ID)

	if len(store.payments) != 0 {
		t.Fatalf("self referral must not pay, got %d payments", len(store.payments))
	}
}

func TestDistributeCommissionsLevelFailureIsIndependent(t *testing.T) {
	store := newFakeStore()
	grand := store.addUser("GRAND", "")
	store.addUser("PARENT", "GRAND")
	direct := store.addUser("DIRECT", "PARENT")
	store.failAt[2] = errors.New("connection reset")
	svc := referral.NewService(store)

	svc.DistributeCommissions(context.Background(), "DIRECT", uuid.New())

	if _, ok := store.commissionFor(direct.ID, 1); !ok {
		t.Error("level 1 payment missing after level 2 failure")
	}
	if _, ok := store.commissionFor(grand.ID, 3); !ok {
		t.Error("level 3 payment missing after level 2 failure")
	}
	if len(store.payments) != 2 {
		t.Fatalf("expected 2 payments, got %d", len(store.payments))
	}
}

// For any chain of length n, distribution pays exactly min(n, 3) commissions
// and the total equals the sum of the per-level schedule up to that depth.
func TestPropertyChainDepthPayout(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		depth := rapid.IntRange(0, 6).Draw(t, "depth")

		store := newFakeStore()
		prev := ""
		var codes []string
		for i := 0; i < depth; i++ {
			code := fmt.Sprintf("U%d", i)
			store.addUser(code, prev)
			codes = append(codes, code)
			prev = code
		}

		svc := referral.NewService(store)
		entry := ""
		if depth > 0 {
			// Walk starts at the deepest user, whose upline is the chain.
			entry = codes[depth-1]
		}
		svc.DistributeCommissions(context.Background(), entry, uuid.New())

		wantPayments := depth
		if wantPayments > models.MaxReferralLevel {
			wantPayments = models.MaxReferralLevel
		}
		if len(store.payments) != wantPayments {
			t.Fatalf("depth %d: expected %d payments, got %d", depth, wantPayments, len(store.payments))
		}

		total := decimal.Zero
		for _, p := range store.payments {
			total = total.Add(p.commission)
		}
		wantTotal := decimal.Zero
		for level := 1; level <= wantPayments; level++ {
			wantTotal = wantTotal.Add(referral.CommissionForLevel(level))
		}
		if !total.Equal(wantTotal) {
			t.Fatalf("depth %d: total paid %s, want %s", depth, total, wantTotal)
		}
	})
}
