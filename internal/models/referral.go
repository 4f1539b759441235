package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Referral levels. Level 1 is the direct recruiter, level 2 the recruiter's
// recruiter, level 3 the third ancestor. Commissions never fan out further.
const (
	ReferralLevelDirect = 1
	ReferralLevelSecond = 2
	ReferralLevelThird  = 3
	MaxReferralLevel    = 3
)

// Referral is an append-only commission edge: one row per
// (referrer, referred, level), written when the commission is paid out and
// never mutated afterwards.
type Referral struct {
	ID         uuid.UUID       `json:"id" db:"id"`
	ReferrerID uuid.UUID       `json:"referrer_id" db:"referrer_id"`
	ReferredID uuid.UUID       `json:"referred_id" db:"referred_id"`
	Level      int             `json:"level" db:"level"`
	Commission decimal.Decimal `json:"commission" db:"commission"`
	Paid       bool            `json:"paid" db:"paid"`
	CreatedAt  time.Time       `json:"created_at" db:"created_at"`
}

// ReferredUser is the subset of the referred user's record that referral
// listings expose alongside each edge.
type ReferredUser struct {
	ID            uuid.UUID `json:"id"`
	Username      string    `json:"username"`
	Name          string    `json:"name"`
	AccountActive bool      `json:"account_active"`
}

// ReferralWithUser is a referral edge joined with the referred user's
// current state. AccountActive reflects the live flag, not a snapshot.
type ReferralWithUser struct {
	Referral
	ReferredUser ReferredUser `json:"referred_user"`
}

// ActiveReferralCounts holds per-level counts of currently active
// downstream users. Display-only; bonus eligibility uses level 1 alone.
type ActiveReferralCounts struct {
	Level1 int `json:"level1"`
	Level2 int `json:"level2"`
	Level3 int `json:"level3"`
}
