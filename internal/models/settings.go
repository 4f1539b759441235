package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// BonusSettings is the singleton configuration row for the welcome bonus
// and the affiliation fee. When the row (or the whole table) is missing the
// service falls back to DefaultBonusSettings.
type BonusSettings struct {
	WelcomeBonusAmount decimal.Decimal `json:"welcome_bonus_amount" db:"welcome_bonus_amount"`
	ReferralTarget     int             `json:"referral_target" db:"referral_target"`
	BonusEnabled       bool            `json:"bonus_enabled" db:"bonus_enabled"`
	AffiliationFee     decimal.Decimal `json:"affiliation_fee_fcfa" db:"affiliation_fee_fcfa"`
	UpdatedAt          time.Time       `json:"updated_at" db:"updated_at"`
}

// DefaultBonusSettings returns the hardcoded fallback configuration.
func DefaultBonusSettings() BonusSettings {
	return BonusSettings{
		WelcomeBonusAmount: decimal.NewFromInt(700),
		ReferralTarget:     15,
		BonusEnabled:       true,
		AffiliationFee:     decimal.NewFromInt(4000),
	}
}

// BonusType identifies a claimable bonus kind.
type BonusType string

const (
	BonusTypeWelcome BonusType = "welcome"
)

// ClaimedBonus records a one-time bonus payout. The (user_id, type)
// uniqueness makes a second claim fail at insert time.
type ClaimedBonus struct {
	ID        uuid.UUID       `json:"id" db:"id"`
	UserID    uuid.UUID       `json:"user_id" db:"user_id"`
	Type      BonusType       `json:"type" db:"type"`
	Amount    decimal.Decimal `json:"amount" db:"amount"`
	ClaimedAt time.Time       `json:"claimed_at" db:"claimed_at"`
}
