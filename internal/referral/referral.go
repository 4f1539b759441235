package referral

import (
	"context"

	"github.com/google/uuid"
	"github.com/qashgo/backend/internal/logging"
	"github.com/qashgo/backend/internal/models"
	"github.com/qashgo/backend/internal/monitoring"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// Fixed commission schedule in FCFA per referral level.
var commissionSchedule = map[int]decimal.Decimal{
	models.ReferralLevelDirect: decimal.NewFromInt(1800),
	models.ReferralLevelSecond: decimal.NewFromInt(900),
	models.ReferralLevelThird:  decimal.NewFromInt(500),
}

// CommissionForLevel returns the FCFA commission for a referral level,
// or zero for levels outside the schedule.
func CommissionForLevel(level int) decimal.Decimal {
	commission, ok := commissionSchedule[level]
	if !ok {
		return decimal.Zero
	}
	return commission
}

// Service walks referral chains and pays multi-level commissions.
type Service struct {
	store Store
	log   zerolog.Logger
}

func NewService(store Store) *Service {
	return &Service{
		store: store,
		log:   logging.NewLogger("referral"),
	}
}

// DistributeCommissions pays commissions up the referral chain of a newly
// registered user. referrerCode is the code the new user signed up with; an
// empty code means the user was not referred and nothing happens.
//
// The walk is best effort. If the code resolves to nobody, no commission is
// paid at any level. After the first hop, a dangling or missing upline code
// simply ends the chain. A failure paying one level is logged and does not
// undo or block the other levels, and no error ever reaches the caller:
// registration must not fail because a commission could not be recorded.
func (s *Service) DistributeCommissions(ctx context.Context, referrerCode string, newUserID uuid.UUID) {
	if referrerCode == "" {
		return
	}

	code := referrerCode
	for level := models.ReferralLevelDirect; level <= models.MaxReferralLevel; level++ {
		referrer, err := s.store.FindUserByReferralCode(ctx, code)
		if err != nil {
			if err != ErrCodeNotFound {
				s.log.Error().Err(err).
					Int("level", level).
					Str("referred_id", newUserID.String()).
					Msg("Failed to resolve referrer, stopping chain walk")
			}
			return
		}

		// A user can never earn a commission for their own registration.
		if referrer.ID == newUserID {
			return
		}

		commission := CommissionForLevel(level)
		paid, err := s.store.PayCommission(ctx, referrer.ID, newUserID, level, commission)
		if err != nil {
			s.log.Error().Err(err).
				Int("level", level).
				Str("referrer_id", referrer.ID.String()).
				Str("referred_id", newUserID.String()).
				Msg("Failed to pay referral commission")
		} else if paid {
			logging.LogCommission(referrer.ID.String(), newUserID.String(), level, commission.String())
			monitoring.RecordCommission(level, commission.InexactFloat64())
		}

		if referrer.ReferredByCode == nil || *referrer.ReferredByCode == "" {
			return
		}
		code = *referrer.ReferredByCode
	}
}

// UserReferrals returns the user's referral edges with each referred user's
// current state, newest first.
func (s *Service) UserReferrals(ctx context.Context, userID uuid.UUID) ([]models.ReferralWithUser, error) {
	return s.store.ReferralsByReferrer(ctx, userID)
}

// ActiveReferralCounts returns live per-level counts of the user's referrals
// whose accounts are currently active.
func (s *Service) ActiveReferralCounts(ctx context.Context, userID uuid.UUID) (models.ActiveReferralCounts, error) {
	return s.store.ActiveReferralCounts(ctx, userID)
}

// CountActiveReferrals exposes the live active count at a single level.
func (s *Service) CountActiveReferrals(ctx context.Context, userID uuid.UUID, level int) (int, error) {
	return s.store.CountActiveReferrals(ctx, userID, level)
}
