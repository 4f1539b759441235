package settings_test

import (
	"context"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/qashgo/backend/internal/models"
	"github.com/qashgo/backend/internal/settings"
	"github.com/shopspring/decimal"
)

// The pool connects lazily, so pointing it at a closed port makes every
// query fail. Settings reads must absorb that and serve defaults.
func unreachableProvider(t *testing.T) *settings.Provider {
	t.Helper()

	pool, err := pgxpool.New(context.Background(), "postgres://postgres@127.0.0.1:1/none?sslmode=disable")
	if err != nil {
		t.Fatalf("pool config: %v", err)
	}
	t.Cleanup(pool.Close)
	return settings.NewProvider(pool)
}

func TestGetBonusSettingsFallsBackToDefaults(t *testing.T) {
	provider := unreachableProvider(t)

	got := provider.GetBonusSettings(context.Background())
	want := models.DefaultBonusSettings()

	if !got.WelcomeBonusAmount.Equal(want.WelcomeBonusAmount) ||
		got.ReferralTarget != want.ReferralTarget ||
		got.BonusEnabled != want.BonusEnabled ||
		!got.AffiliationFee.Equal(want.AffiliationFee) {
		t.Fatalf("got %+v, want defaults %+v", got, want)
	}
}

func TestGetAffiliationFeeFallsBackToDefault(t *testing.T) {
	provider := unreachableProvider(t)

	fee := provider.GetAffiliationFee(context.Background())
	if !fee.Equal(decimal.NewFromInt(4000)) {
		t.Fatalf("fee = %s, want 4000", fee)
	}
}

func TestDefaultBonusSettings(t *testing.T) {
	got := models.DefaultBonusSettings()

	if !got.WelcomeBonusAmount.Equal(decimal.NewFromInt(700)) {
		t.Errorf("welcome bonus = %s, want 700", got.WelcomeBonusAmount)
	}
	if got.ReferralTarget != 15 {
		t.Errorf("target = %d, want 15", got.ReferralTarget)
	}
	if !got.BonusEnabled {
		t.Error("bonus should default to enabled")
	}
	if !got.AffiliationFee.Equal(decimal.NewFromInt(4000)) {
		t.Errorf("affiliation fee = %s, want 4000", got.AffiliationFee)
	}
}
