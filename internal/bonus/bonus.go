package bonus

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/qashgo/backend/internal/logging"
	"github.com/qashgo/backend/internal/models"
	"github.com/qashgo/backend/internal/monitoring"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

var (
	ErrNotEligible    = errors.New("bonus eligibility target not reached")
	ErrAlreadyClaimed = errors.New("bonus already claimed")
)

// SettingsSource provides the current bonus configuration.
type SettingsSource interface {
	GetBonusSettings(ctx context.Context) models.BonusSettings
}

// ReferralCounter counts a user's live active referrals at one level.
type ReferralCounter interface {
	CountActiveReferrals(ctx context.Context, userID uuid.UUID, level int) (int, error)
}

// Eligibility is the result of evaluating a user against the welcome bonus
// target. When the bonus is disabled the referral count is not read, but the
// target and amount still reflect the current settings.
type Eligibility struct {
	Eligible        bool            `json:"eligible"`
	BonusEnabled    bool            `json:"bonus_enabled"`
	ActiveReferrals int             `json:"active_referrals"`
	Target          int             `json:"target"`
	Remaining       int             `json:"remaining"`
	BonusAmount     decimal.Decimal `json:"bonus_amount"`
}

// Service evaluates and pays the one-time welcome bonus.
type Service struct {
	db        *pgxpool.Pool
	settings  SettingsSource
	referrals ReferralCounter
	log       zerolog.Logger
}

func NewService(db *pgxpool.Pool, settings SettingsSource, referrals ReferralCounter) *Service {
	return &Service{
		db:        db,
		settings:  settings,
		referrals: referrals,
		log:       logging.NewLogger("bonus"),
	}
}

// Evaluate computes the user's standing against the welcome bonus target.
// The active referral count is read live, so a referred user deactivating
// can move a previously eligible referrer back below the target.
func (s *Service) Evaluate(ctx context.Context, userID uuid.UUID) (Eligibility, error) {
	settings := s.settings.GetBonusSettings(ctx)
	if !settings.BonusEnabled {
		return Eligibility{
			Target:      settings.ReferralTarget,
			Remaining:   settings.ReferralTarget,
			BonusAmount: settings.WelcomeBonusAmount,
		}, nil
	}

	count, err := s.referrals.CountActiveReferrals(ctx, userID, models.ReferralLevelDirect)
	if err != nil {
		return Eligibility{}, fmt.Errorf("failed to count active referrals: %w", err)
	}

	remaining := settings.ReferralTarget - count
	if remaining < 0 {
		remaining = 0
	}

	return Eligibility{
		Eligible:        count >= settings.ReferralTarget,
		BonusEnabled:    true,
		ActiveReferrals: count,
		Target:          settings.ReferralTarget,
		Remaining:       remaining,
		BonusAmount:     settings.WelcomeBonusAmount,
	}, nil
}

// Claim pays the welcome bonus once. Eligibility is re-evaluated at claim
// time, and the (user_id, type) uniqueness on claimed_bonuses makes a second
// claim fail even under concurrent requests.
func (s *Service) Claim(ctx context.Context, userID uuid.UUID) (*models.ClaimedBonus, error) {
	eligibility, err := s.Evaluate(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !eligibility.Eligible {
		return nil, ErrNotEligible
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var claim models.ClaimedBonus
	err = tx.QueryRow(ctx, `
		INSERT INTO claimed_bonuses (user_id, type, amount)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id, type) DO NOTHING
		RETURNING id, user_id, type, amount, claimed_at`,
		userID, models.BonusTypeWelcome, eligibility.BonusAmount,
	).Scan(&claim.ID, &claim.UserID, &claim.Type, &claim.Amount, &claim.ClaimedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAlreadyClaimed
		}
		return nil, fmt.Errorf("failed to record bonus claim: %w", err)
	}

	_, err = tx.Exec(ctx, `
		UPDATE users
		SET welcome_bonus = welcome_bonus + $1,
		    balance = balance + $1,
		    withdrawable_balance = withdrawable_balance + $1,
		    updated_at = NOW()
		WHERE id = $2`,
		eligibility.BonusAmount, userID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to credit welcome bonus: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	logging.LogBonusClaim(userID.String(), claim.Amount.String())
	monitoring.RecordBonusClaim()

	return &claim, nil
}
