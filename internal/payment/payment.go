package payment

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
)

// Service errors
var (
	ErrPaymentNotFound    = errors.New("payment not found")
	ErrPaymentAlreadyDone = errors.New("payment already completed or failed")
	ErrAlreadyActive      = errors.New("account is already active")
)

// Service handles account activation payments. A user pays the affiliation
// fee once; completing the payment flips account_active, which is what makes
// the user count toward their referrer's bonus target.
type Service struct {
	db       *pgxpool.Pool
	settings SettingsSource
	log      zerolog.Logger
}

// SettingsSource provides the current bonus settings, which carry the
// affiliation fee.
type SettingsSource interface {
	GetBonusSettings(ctx context.Context) models.BonusSettings
}

func NewService(db *pgxpool.Pool, settings SettingsSource) *Service {
	return &Service{
		db:       db,
		settings: settings,
		log:      logging.NewLogger("payment"),
	}
}

// CreateActivation opens a pending activation payment at the current
// affiliation fee. An already active account cannot open another one.
func (s *Service) CreateActivation(ctx context.Context, userID uuid.UUID, providerRef string) (*models.Payment, error) {
	var active bool
	err := s.db.QueryRow(ctx, "SELECT account_active FROM users WHERE id = $1", userID).Scan(&active)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("user %s not found", userID)
		}
		return nil, fmt.Errorf("failed to check account status: %w", err)
	}
	if active {
		return nil, ErrAlreadyActive
	}

	fee := s.settings.GetBonusSettings(ctx).AffiliationFee

	var ref *string
	if providerRef != "" {
		ref = &providerRef
	}

	var p models.Payment
	err = s.db.QueryRow(ctx, `
		INSERT INTO payments (user_id, amount, provider_ref, status)
		VALUES ($1, $2, $3, $4)
		RETURNING id, user_id, amount, provider_ref, status, created_at, completed_at, failed_at`,
		userID, fee, ref, models.PaymentStatusPending,
	).Scan(&p.ID, &p.UserID, &p.Amount, &p.ProviderRef, &p.Status, &p.CreatedAt, &p.CompletedAt, &p.FailedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create payment: %w", err)
	}

	return &p, nil
}

// CompleteActivation marks a pending payment as completed and activates the
// user's account in the same transaction. Only pending payments can complete,
// so a duplicate provider callback is a no-op error rather than a double
// activation.
func (s *Service) CompleteActivation(ctx context.Context, paymentID uuid.UUID) (*models.Payment, error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var p models.Payment
	err = tx.QueryRow(ctx, `
		UPDATE payments
		SET status = $1, completed_at = NOW()
		WHERE id = $2 AND status = $3
		RETURNING id, user_id, amount, provider_ref, status, created_at, completed_at, failed_at`,
		models.PaymentStatusCompleted, paymentID, models.PaymentStatusPending,
	).Scan(&p.ID, &p.UserID, &p.Amount, &p.ProviderRef, &p.Status, &p.CreatedAt, &p.CompletedAt, &p.FailedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, s.classifyNotPending(ctx, paymentID)
		}
		return nil, fmt.Errorf("failed to complete payment: %w", err)
	}

	_, err = tx.Exec(ctx, `
		UPDATE users SET account_active = true, updated_at = NOW() WHERE id = $1`,
		p.UserID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to activate account: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	logging.LogActivation(p.UserID.String(), p.ID.String(), p.Amount.String())
	monitoring.RecordActivation()

	return &p, nil
}

// FailActivation marks a pending payment as failed. The account stays
// inactive and the user can open a new activation payment.
func (s *Service) FailActivation(ctx context.Context, paymentID uuid.UUID) (*models.Payment, error) {
	var p models.Payment
	err := s.db.QueryRow(ctx, `
		UPDATE payments
		SET status = $1, failed_at = NOW()
		WHERE id = $2 AND status = $3
		RETURNING id, user_id, amount, provider_ref, status, created_at, completed_at, failed_at`,
		models.PaymentStatusFailed, paymentID, models.PaymentStatusPending,
	).Scan(&p.ID, &p.UserID, &p.Amount, &p.ProviderRef, &p.Status, &p.CreatedAt, &p.CompletedAt, &p.FailedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, s.classifyNotPending(ctx, paymentID)
		}
		return nil, fmt.Errorf("failed to mark payment failed: %w", err)
	}

	return &p, nil
}

// UserPayments returns the user's activation payments, newest first.
func (s *Service) UserPayments(ctx context.Context, userID uuid.UUID) ([]models.Payment, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, user_id, amount, provider_ref, status, created_at, completed_at, failed_at
		FROM payments
		WHERE user_id = $1
		ORDER BY created_at DESC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query payments: %w", err)
	}
	defer rows.Close()

	payments := []models.Payment{}
	for rows.Next() {
		var p models.Payment
		err := rows.Scan(&p.ID, &p.UserID, &p.Amount, &p.ProviderRef, &p.Status, &p.CreatedAt, &p.CompletedAt, &p.FailedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan payment: %w", err)
		}
		payments = append(payments, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read payments: %w", err)
	}

	return payments, nil
}

// classifyNotPending turns a zero-row conditional update into the right error.
func (s *Service) classifyNotPending(ctx context.Context, paymentID uuid.UUID) error {
	var status models.PaymentStatus
	err := s.db.QueryRow(ctx, "SELECT status FROM payments WHERE id = $1", paymentID).Scan(&status)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrPaymentNotFound
		}
		return fmt.Errorf("failed to check payment status: %w", err)
	}
	return ErrPaymentAlreadyDone
}
