package bonus_test

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/qashgo/backend/internal/bonus"
	"github.com/qashgo/backend/internal/models"
	"github.com/shopspring/decimal"
	"pgregory.net/rapid"
)

type fakeSettings struct {
	settings models.BonusSettings
}

func (f *fakeSettings) GetBonusSettings(context.Context) models.BonusSettings {
	return f.settings
}

type fakeCounter struct {
	counts map[uuid.UUID]int
	err    error
}

func (f *fakeCounter) CountActiveReferrals(_ context.Context, userID uuid.UUID, level int) (int, error) {
	if f.err != nil {
		return 0, f.err
	}
	if level != models.ReferralLevelDirect {
		return 0, nil
	}
	return f.counts[userID], nil
}

func newService(settings models.BonusSettings, counts map[uuid.UUID]int) *bonus.Service {
	return bonus.NewService(nil, &fakeSettings{settings: settings}, &fakeCounter{counts: counts})
}

func TestEvaluateBelowTarget(t *testing.T) {
	userID := uuid.New()
	svc := newService(models.DefaultBonusSettings(), map[uuid.UUID]int{userID: 14})

	got, err := svc.Evaluate(context.Background(), userID)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}

	if got.Eligible {
		t.Error("14 of 15 must not be eligible")
	}
	if got.ActiveReferrals != 14 || got.Target != 15 || got.Remaining != 1 {
		t.Errorf("got %+v, want 14/15 remaining 1", got)
	}
	if !got.BonusAmount.Equal(decimal.NewFromInt(700)) {
		t.Errorf("bonus amount = %s, want 700", got.BonusAmount)
	}
}

func TestEvaluateAtTarget(t *testing.T) {
	userID := uuid.New()
	svc := newService(models.DefaultBonusSettings(), map[uuid.UUID]int{userID: 15})

	got, err := svc.Evaluate(context.Background(), userID)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}

	if !got.Eligible {
		t.Error("15 of 15 must be eligible")
	}
	if got.Remaining != 0 {
		t.Errorf("remaining = %d, want 0", got.Remaining)
	}
}

func TestEvaluateAboveTargetClampsRemaining(t *testing.T) {
	userID := uuid.New()
	svc := newService(models.DefaultBonusSettings(), map[uuid.UUID]int{userID: 40})

	got, err := svc.Evaluate(context.Background(), userID)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}

	if !got.Eligible {
		t.Error("above target must be eligible")
	}
	if got.Remaining != 0 {
		t.Errorf("remaining = %d, want 0 (never negative)", got.Remaining)
	}
}

func TestEvaluateDisabledKeepsTargetAndAmount(t *testing.T) {
	settings := models.DefaultBonusSettings()
	settings.BonusEnabled = false
	userID := uuid.New()
	svc := newService(settings, map[uuid.UUID]int{userID: 40})

	got, err := svc.Evaluate(context.Background(), userID)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}

	if got.Eligible || got.BonusEnabled {
		t.Errorf("disabled bonus must not be eligible, got %+v", got)
	}
	if got.ActiveReferrals != 0 {
		t.Errorf("referral count = %d, want 0 when disabled (never read)", got.ActiveReferrals)
	}
	if got.Target != 15 || got.Remaining != 15 {
		t.Errorf("target/remaining = %d/%d, want 15/15 when disabled", got.Target, got.Remaining)
	}
	if !got.BonusAmount.Equal(decimal.NewFromInt(700)) {
		t.Errorf("bonus amount = %s, want 700 when disabled", got.BonusAmount)
	}
}

func TestEvaluateCounterError(t *testing.T) {
	svc := bonus.NewService(nil,
		&fakeSettings{settings: models.DefaultBonusSettings()},
		&fakeCounter{err: errors.New("connection refused")},
	)

	if _, err := svc.Evaluate(context.Background(), uuid.New()); err == nil {
		t.Fatal("expected error from failing counter")
	}
}

func TestClaimNotEligible(t *testing.T) {
	userID := uuid.New()
	svc := newService(models.DefaultBonusSettings(), map[uuid.UUID]int{userID: 3})

	_, err := svc.Claim(context.Background(), userID)
	if !errors.Is(err, bonus.ErrNotEligible) {
		t.Fatalf("err = %v, want ErrNotEligible", err)
	}
}

func TestClaimDisabled(t *testing.T) {
	settings := models.DefaultBonusSettings()
	settings.BonusEnabled = false
	userID := uuid.New()
	svc := newService(settings, map[uuid.UUID]int{userID: 100})

	_, err := svc.Claim(context.Background(), userID)
	if !errors.Is(err, bonus.ErrNotEligible) {
		t.Fatalf("err = %v, want ErrNotEligible when bonus disabled", err)
	}
}

// Eligibility is count >= target exactly, and remaining is always
// max(0, target-count), for any target and count.
func TestPropertyEligibilityBoundary(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		target := rapid.IntRange(1, 200).Draw(t, "target")
		count := rapid.IntRange(0, 400).Draw(t, "count")

		settings := models.DefaultBonusSettings()
		settings.ReferralTarget = target
		userID := uuid.New()
		svc := newService(settings, map[uuid.UUID]int{userID: count})

		got, err := svc.Evaluate(context.Background(), userID)
		if err != nil {
			t.Fatalf("Evaluate: %v", err)
		}

		if got.Eligible != (count >= target) {
			t.Fatalf("count=%d target=%d: eligible=%v", count, target, got.Eligible)
		}
		wantRemaining := target - count
		if wantRemaining < 0 {
			wantRemaining = 0
		}
		if got.Remaining != wantRemaining {
			t.Fatalf("count=%d target=%d: remaining=%d, want %d", count, target, got.Remaining, wantRemaining)
		}
	})
}
