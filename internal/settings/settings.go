package settings

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/qashgo/backend/internal/models"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

// Provider reads and writes the singleton bonus settings row.
//
// Reads never fail: any retrieval problem (no rows, missing relation,
// connection error) falls back to models.DefaultBonusSettings so the rest
// of the system stays functional without configuration storage.
type Provider struct {
	db *pgxpool.Pool
}

// NewProvider creates a new settings provider
func NewProvider(db *pgxpool.Pool) *Provider {
	return &Provider{db: db}
}

// GetBonusSettings fetches the settings singleton, falling back to defaults.
// The row is read fresh on every call; settings are never cached in-process.
func (p *Provider) GetBonusSettings(ctx context.Context) models.BonusSettings {
	var s models.BonusSettings
	err := p.db.QueryRow(ctx, `
		SELECT welcome_bonus_amount, referral_target, bonus_enabled, affiliation_fee_fcfa, updated_at
		FROM bonus_settings
		ORDER BY updated_at DESC
		LIMIT 1
	`).Scan(&s.WelcomeBonusAmount, &s.ReferralTarget, &s.BonusEnabled, &s.AffiliationFee, &s.UpdatedAt)
	if err != nil {
		log.Warn().Err(err).Msg("Bonus settings unavailable, using defaults")
		return models.DefaultBonusSettings()
	}
	return s
}

// GetAffiliationFee returns the configured affiliation fee in FCFA.
func (p *Provider) GetAffiliationFee(ctx context.Context) decimal.Decimal {
	return p.GetBonusSettings(ctx).AffiliationFee
}

// UpdateRequest carries the admin-editable settings fields.
type UpdateRequest struct {
	WelcomeBonusAmount decimal.Decimal `json:"welcome_bonus_amount" binding:"required"`
	ReferralTarget     int             `json:"referral_target" binding:"required,min=1"`
	BonusEnabled       bool            `json:"bonus_enabled"`
	AffiliationFee     decimal.Decimal `json:"affiliation_fee_fcfa" binding:"required"`
}

// UpdateBonusSettings upserts the settings singleton.
func (p *Provider) UpdateBonusSettings(ctx context.Context, req *UpdateRequest) (models.BonusSettings, error) {
	var s models.BonusSettings
	err := p.db.QueryRow(ctx, `
		INSERT INTO bonus_settings (id, welcome_bonus_amount, referral_target, bonus_enabled, affiliation_fee_fcfa, updated_at)
		VALUES (1, $1, $2, $3, $4, now())
		ON CONFLICT (id) DO UPDATE SET
			welcome_bonus_amount = EXCLUDED.welcome_bonus_amount,
			referral_target = EXCLUDED.referral_target,
			bonus_enabled = EXCLUDED.bonus_enabled,
			affiliation_fee_fcfa = EXCLUDED.affiliation_fee_fcfa,
			updated_at = now()
		RETURNING welcome_bonus_amount, referral_target, bonus_enabled, affiliation_fee_fcfa, updated_at
	`, req.WelcomeBonusAmount, req.ReferralTarget, req.BonusEnabled, req.AffiliationFee).Scan(
		&s.WelcomeBonusAmount, &s.ReferralTarget, &s.BonusEnabled, &s.AffiliationFee, &s.UpdatedAt,
	)
	if err != nil {
		return models.BonusSettings{}, fmt.Errorf("failed to update bonus settings: %w", err)
	}
	return s, nil
}
