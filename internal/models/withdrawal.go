package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// BalanceSource identifies which balance a withdrawal draws from.
type BalanceSource string

const (
	BalanceSourceMain    BalanceSource = "main"
	BalanceSourceYoutube BalanceSource = "youtube"
	BalanceSourceTiktok  BalanceSource = "tiktok"
)

// WithdrawalStatus represents the lifecycle of a withdrawal request.
// pending -> completed (admin approved, payout sent) -> confirmed
// (admin verified receipt), or pending -> rejected (funds restored).
type WithdrawalStatus string

const (
	WithdrawalStatusPending   WithdrawalStatus = "pending"
	WithdrawalStatusCompleted WithdrawalStatus = "completed"
	WithdrawalStatusConfirmed WithdrawalStatus = "confirmed"
	WithdrawalStatusRejected  WithdrawalStatus = "rejected"
)

// Withdrawal is a mobile-money payout request.
type Withdrawal struct {
	ID               uuid.UUID        `json:"id" db:"id"`
	UserID           uuid.UUID        `json:"user_id" db:"user_id"`
	Amount           decimal.Decimal  `json:"amount" db:"amount"`
	Country          string           `json:"country" db:"country"`
	Method           string           `json:"method" db:"method"`
	Phone            string           `json:"phone" db:"phone"`
	Status           WithdrawalStatus `json:"status" db:"status"`
	Source           BalanceSource    `json:"source" db:"source"`
	RequestedAt      time.Time        `json:"requested_at" db:"requested_at"`
	ProcessedAt      *time.Time       `json:"processed_at,omitempty" db:"processed_at"`
	AdminConfirmedAt *time.Time       `json:"admin_confirmed_at,omitempty" db:"admin_confirmed_at"`
}

// WithdrawalConfig holds the per-source minimum payout amounts in FCFA.
type WithdrawalConfig struct {
	MinimumMain  decimal.Decimal `json:"minimum_main"`
	MinimumVideo decimal.Decimal `json:"minimum_video"`
}

// DefaultWithdrawalConfig returns the default withdrawal configuration.
func DefaultWithdrawalConfig() *WithdrawalConfig {
	return &WithdrawalConfig{
		MinimumMain:  decimal.NewFromInt(2500),
		MinimumVideo: decimal.NewFromInt(500),
	}
}
