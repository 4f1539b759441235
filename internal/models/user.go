package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// User represents a registered member of the platform. Balances are kept in
// FCFA. The withdrawable balance is spendable immediately; the video balances
// (YouTube, TikTok) only become withdrawable above their own minimum.
type User struct {
	ID             uuid.UUID `json:"id" db:"id"`
	Email          string    `json:"email" db:"email"`
	Username       string    `json:"username" db:"username"`
	Name           string    `json:"name" db:"name"`
	Phone          *string   `json:"phone,omitempty" db:"phone"`
	CountryCode    string    `json:"country_code" db:"country_code"`
	PasswordHash   string    `json:"-" db:"password_hash"`
	ReferralCode   string    `json:"referral_code" db:"referral_code"`
	ReferredByCode *string   `json:"referred_by_code,omitempty" db:"referred_by_code"`
	AccountActive  bool      `json:"account_active" db:"account_active"`
	IsAdmin        bool      `json:"is_admin" db:"is_admin"`

	Balance             decimal.Decimal `json:"balance" db:"balance"`
	WithdrawableBalance decimal.Decimal `json:"withdrawable_balance" db:"withdrawable_balance"`
	YoutubeBalance      decimal.Decimal `json:"youtube_balance" db:"youtube_balance"`
	TiktokBalance       decimal.Decimal `json:"tiktok_balance" db:"tiktok_balance"`
	WelcomeBonus        decimal.Decimal `json:"welcome_bonus" db:"welcome_bonus"`
	TotalWithdrawals    decimal.Decimal `json:"total_withdrawals" db:"total_withdrawals"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}
