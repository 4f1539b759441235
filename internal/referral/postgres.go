package referral

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/qashgo/backend/internal/models"
	"github.com/qashgo/backend/internal/monitoring"
	"github.com/shopspring/decimal"
)

// PostgresStore implements Store on a pgx connection pool.
type PostgresStore struct {
	db *pgxpool.Pool
}

func NewPostgresStore(db *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{db: db}
}

// observe times a store query for the db_query_duration_seconds metric.
func observe(queryType string) func() {
	start := time.Now()
	return func() {
		monitoring.RecordDBQuery(queryType, time.Since(start))
	}
}

func (s *PostgresStore) FindUserByReferralCode(ctx context.Context, code string) (*models.User, error) {
	defer observe("find_user_by_referral_code")()

	var user models.User
	err := s.db.QueryRow(ctx, `
		SELECT id, email, username, name, phone, country_code, referral_code,
		       referred_by_code, account_active, is_admin, balance,
		       withdrawable_balance, created_at, updated_at
		FROM users
		WHERE referral_code = $1`,
		code,
	).Scan(
		&user.ID, &user.Email, &user.Username, &user.Name, &user.Phone,
		&user.CountryCode, &user.ReferralCode, &user.ReferredByCode,
		&user.AccountActive, &user.IsAdmin, &user.Balance,
		&user.WithdrawableBalance, &user.CreatedAt, &user.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrCodeNotFound
		}
		return nil, fmt.Errorf("failed to find user by referral code: %w", err)
	}

	return &user, nil
}

func (s *PostgresStore) PayCommission(ctx context.Context, referrerID, referredID uuid.UUID, level int, commission decimal.Decimal) (bool, error) {
	defer observe("pay_commission")()

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx, `
		INSERT INTO referrals (referrer_id, referred_id, level, commission, paid)
		VALUES ($1, $2, $3, $4, true)
		ON CONFLICT (referrer_id, referred_id, level) DO NOTHING`,
		referrerID, referredID, level, commission,
	)
	if err != nil {
		return false, fmt.Errorf("failed to insert referral: %w", err)
	}
	if tag.RowsAffected() == 0 {
		// Edge already exists, the commission was paid earlier.
		return false, nil
	}

	_, err = tx.Exec(ctx, `
		UPDATE users
		SET balance = balance + $1,
		    withdrawable_balance = withdrawable_balance + $1,
		    updated_at = NOW()
		WHERE id = $2`,
		commission, referrerID,
	)
	if err != nil {
		return false, fmt.Errorf("failed to credit referrer balance: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return false, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return true, nil
}

func (s *PostgresStore) ReferralsByReferrer(ctx context.Context, referrerID uuid.UUID) ([]models.ReferralWithUser, error) {
	defer observe("referrals_by_referrer")()

	rows, err := s.db.Query(ctx, `
		SELECT r.id, r.referrer_id, r.referred_id, r.level, r.commission,
		       r.paid, r.created_at,
		       u.id, u.username, u.name, u.account_active
		FROM referrals r
		JOIN users u ON u.id = r.referred_id
		WHERE r.referrer_id = $1
		ORDER BY r.created_at DESC`,
		referrerID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query referrals: %w", err)
	}
	defer rows.Close()

	referrals := []models.ReferralWithUser{}
	for rows.Next() {
		var r models.ReferralWithUser
		err := rows.Scan(
			&r.ID, &r.ReferrerID, &r.ReferredID, &r.Level, &r.Commission,
			&r.Paid, &r.CreatedAt,
			&r.ReferredUser.ID, &r.ReferredUser.Username, &r.ReferredUser.Name,
			&r.ReferredUser.AccountActive,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan referral: %w", err)
		}
		referrals = append(referrals, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read referrals: %w", err)
	}

	return referrals, nil
}

func (s *PostgresStore) CountActiveReferrals(ctx context.Context, referrerID uuid.UUID, level int) (int, error) {
	defer observe("count_active_referrals")()

	var count int
	err := s.db.QueryRow(ctx, `
		SELECT COUNT(*)
		FROM referrals r
		JOIN users u ON u.id = r.referred_id
		WHERE r.referrer_id = $1 AND r.level = $2 AND u.account_active = true`,
		referrerID, level,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count active referrals: %w", err)
	}

	return count, nil
}

func (s *PostgresStore) ActiveReferralCounts(ctx context.Context, referrerID uuid.UUID) (models.ActiveReferralCounts, error) {
	defer observe("active_referral_counts")()

	var counts models.ActiveReferralCounts
	err := s.db.QueryRow(ctx, `
		SELECT COUNT(*) FILTER (WHERE r.level = 1),
		       COUNT(*) FILTER (WHERE r.level = 2),
		       COUNT(*) FILTER (WHERE r.level = 3)
		FROM referrals r
		JOIN users u ON u.id = r.referred_id
		WHERE r.referrer_id = $1 AND u.account_active = true`,
		referrerID,
	).Scan(&counts.Level1, &counts.Level2, &counts.Level3)
	if err != nil {
		return counts, fmt.Errorf("failed to count referrals by level: %w", err)
	}

	return counts, nil
}
