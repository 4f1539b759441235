package referral

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/qashgo/backend/internal/models"
	"github.com/shopspring/decimal"
)

// ErrCodeNotFound is returned when a referral code resolves to no user.
// Callers treat it as the end of a chain, not a failure.
var ErrCodeNotFound = errors.New("referral code not found")

// Store is the persistence boundary of the referral engine.
type Store interface {
	// FindUserByReferralCode resolves a referral code to its owner.
	// Returns ErrCodeNotFound when no user carries the code.
	FindUserByReferralCode(ctx context.Context, code string) (*models.User, error)

	// PayCommission records the referral edge and credits the referrer's
	// balance and withdrawable balance in a single transaction. The edge is
	// keyed on (referrer, referred, level): paying the same commission twice
	// is a no-op and returns paid=false.
	PayCommission(ctx context.Context, referrerID, referredID uuid.UUID, level int, commission decimal.Decimal) (paid bool, err error)

	// ReferralsByReferrer returns the referrer's edges joined with each
	// referred user's current state, newest first.
	ReferralsByReferrer(ctx context.Context, referrerID uuid.UUID) ([]models.ReferralWithUser, error)

	// CountActiveReferrals counts the referrer's edges at the given level
	// whose referred user is currently active. The join is evaluated live
	// against account_active, never a cached flag.
	CountActiveReferrals(ctx context.Context, referrerID uuid.UUID, level int) (int, error)

	// ActiveReferralCounts returns live per-level active counts.
	ActiveReferralCounts(ctx context.Context, referrerID uuid.UUID) (models.ActiveReferralCounts, error)
}
