package withdrawal

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

// Service errors
var (
	ErrWithdrawalNotFound   = errors.New("withdrawal not found")
	ErrWithdrawalNotPending = errors.New("withdrawal is not pending")
	ErrWithdrawalNotPaidOut = errors.New("withdrawal has not been paid out")
	ErrInsufficientBalance  = errors.New("insufficient balance")
	ErrBelowMinimum         = errors.New("amount is below the minimum withdrawal")
	ErrInvalidAmount        = errors.New("amount must be positive")
	ErrUnsupportedCountry   = errors.New("country is not supported for withdrawals")
	ErrInvalidOperator      = errors.New("operator does not serve this country")
	ErrInvalidSource        = errors.New("unknown balance source")
)

// CreateRequest is a mobile-money withdrawal request.
type CreateRequest struct {
	Amount   decimal.Decimal      `json:"amount" binding:"required"`
	Country  string               `json:"country" binding:"required"`
	Operator string               `json:"operator" binding:"required"`
	Phone    string               `json:"phone" binding:"required"`
	Source   models.BalanceSource `json:"source" binding:"required,oneof=main youtube tiktok"`
}

// HistoryResponse is a page of a user's withdrawals.
type HistoryResponse struct {
	Withdrawals []models.Withdrawal `json:"withdrawals"`
	Total       int                 `json:"total"`
	Page        int                 `json:"page"`
	PageSize    int                 `json:"page_size"`
	TotalPages  int                 `json:"total_pages"`
}

// Service handles mobile-money withdrawals against the three balance ledgers.
type Service struct {
	db     *pgxpool.Pool
	config *models.WithdrawalConfig
	log    zerolog.Logger
}

func NewService(db *pgxpool.Pool, config *models.WithdrawalConfig) *Service {
	if config == nil {
		config = models.DefaultWithdrawalConfig()
	}
	return &Service{
		db:     db,
		config: config,
		log:    logging.NewLogger("withdrawal"),
	}
}

// Minimum returns the minimum payout for a balance source.
func (s *Service) Minimum(source models.BalanceSource) decimal.Decimal {
	if source == models.BalanceSourceMain {
		return s.config.MinimumMain
	}
	return s.config.MinimumVideo
}

// balanceColumn maps a source to the users column it draws from.
func balanceColumn(source models.BalanceSource) (string, error) {
	switch source {
	case models.BalanceSourceMain:
		return "withdrawable_balance", nil
	case models.BalanceSourceYoutube:
		return "youtube_balance", nil
	case models.BalanceSourceTiktok:
		return "tiktok_balance", nil
	default:
		return "", ErrInvalidSource
	}
}

// Create validates and opens a pending withdrawal, deducting the source
// balance up front. The conditional UPDATE is the overdraft guard: if the
// balance no longer covers the amount, zero rows change and nothing is
// inserted.
func (s *Service) Create(ctx context.Context, userID uuid.UUID, req *CreateRequest) (*models.Withdrawal, error) {
	if req.Amount.LessThanOrEqual(decimal.Zero) {
		return nil, ErrInvalidAmount
	}
	if !SupportedCountry(req.Country) {
		return nil, ErrUnsupportedCountry
	}
	if !ValidOperator(req.Country, req.Operator) {
		return nil, ErrInvalidOperator
	}
	if req.Amount.LessThan(s.Minimum(req.Source)) {
		return nil, ErrBelowMinimum
	}

	column, err := balanceColumn(req.Source)
	if err != nil {
		return nil, err
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx, fmt.Sprintf(`
		UPDATE users
		SET %s = %s - $1, updated_at = NOW()
		WHERE id = $2 AND %s >= $1`, column, column, column),
		req.Amount, userID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to deduct balance: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return nil, ErrInsufficientBalance
	}

	var w models.Withdrawal
	err = tx.QueryRow(ctx, `
		INSERT INTO withdrawals (user_id, amount, country, method, phone, status, source)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, user_id, amount, country, method, phone, status, source,
		          requested_at, processed_at, admin_confirmed_at`,
		userID, req.Amount, req.Country, req.Operator, req.Phone,
		models.WithdrawalStatusPending, req.Source,
	).Scan(
		&w.ID, &w.UserID, &w.Amount, &w.Country, &w.Method, &w.Phone,
		&w.Status, &w.Source, &w.RequestedAt, &w.ProcessedAt, &w.AdminConfirmedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create withdrawal: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	logging.LogWithdrawal(w.ID.String(), userID.String(), string(w.Status), string(w.Source), w.Amount.String())
	monitoring.RecordWithdrawal(string(models.WithdrawalStatusPending))

	return &w, nil
}

// History returns a page of the user's withdrawals, newest first.
func (s *Service) History(ctx context.Context, userID uuid.UUID, page, pageSize int) (*HistoryResponse, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}

	var total int
	err := s.db.QueryRow(ctx, "SELECT COUNT(*) FROM withdrawals WHERE user_id = $1", userID).Scan(&total)
	if err != nil {
		return nil, fmt.Errorf("failed to count withdrawals: %w", err)
	}

	rows, err := s.db.Query(ctx, `
		SELECT id, user_id, amount, country, method, phone, status, source,
		       requested_at, processed_at, admin_confirmed_at
		FROM withdrawals
		WHERE user_id = $1
		ORDER BY requested_at DESC
		LIMIT $2 OFFSET $3`,
		userID, pageSize, (page-1)*pageSize,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query withdrawals: %w", err)
	}
	defer rows.Close()

	withdrawals, err := scanWithdrawals(rows)
	if err != nil {
		return nil, err
	}

	totalPages := (total + pageSize - 1) / pageSize

	return &HistoryResponse{
		Withdrawals: withdrawals,
		Total:       total,
		Page:        page,
		PageSize:    pageSize,
		TotalPages:  totalPages,
	}, nil
}

// ListByStatus returns all withdrawals in a status, oldest first, for the
// admin queue. An empty status returns everything.
func (s *Service) ListByStatus(ctx context.Context, status models.WithdrawalStatus) ([]models.Withdrawal, error) {
	query := `
		SELECT id, user_id, amount, country, method, phone, status, source,
		       requested_at, processed_at, admin_confirmed_at
		FROM withdrawals`
	args := []any{}
	if status != "" {
		query += " WHERE status = $1"
		args = append(args, status)
	}
	query += " ORDER BY requested_at ASC"

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query withdrawals: %w", err)
	}
	defer rows.Close()

	return scanWithdrawals(rows)
}

// Approve marks a pending withdrawal as completed, meaning the payout was
// sent to the operator, and bumps the user's lifetime withdrawal total.
func (s *Service) Approve(ctx context.Context, withdrawalID uuid.UUID) (*models.Withdrawal, error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var w models.Withdrawal
	err = tx.QueryRow(ctx, `
		UPDATE withdrawals
		SET status = $1, processed_at = NOW()
		WHERE id = $2 AND status = $3
		RETURNING id, user_id, amount, country, method, phone, status, source,
		          requested_at, processed_at, admin_confirmed_at`,
		models.WithdrawalStatusCompleted, withdrawalID, models.WithdrawalStatusPending,
	).Scan(
		&w.ID, &w.UserID, &w.Amount, &w.Country, &w.Method, &w.Phone,
		&w.Status, &w.Source, &w.RequestedAt, &w.ProcessedAt, &w.AdminConfirmedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, s.classify(ctx, withdrawalID, ErrWithdrawalNotPending)
		}
		return nil, fmt.Errorf("failed to approve withdrawal: %w", err)
	}

	_, err = tx.Exec(ctx, `
		UPDATE users
		SET total_withdrawals = total_withdrawals + $1, updated_at = NOW()
		WHERE id = $2`,
		w.Amount, w.UserID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to update withdrawal total: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	logging.LogWithdrawal(w.ID.String(), w.UserID.String(), string(w.Status), string(w.Source), w.Amount.String())
	monitoring.RecordWithdrawal(string(models.WithdrawalStatusCompleted))

	return &w, nil
}

// Confirm marks a completed withdrawal as confirmed after the admin verifies
// the payout was received.
func (s *Service) Confirm(ctx context.Context, withdrawalID uuid.UUID) (*models.Withdrawal, error) {
	var w models.Withdrawal
	err := s.db.QueryRow(ctx, `
		UPDATE withdrawals
		SET status = $1, admin_confirmed_at = NOW()
		WHERE id = $2 AND status = $3
		RETURNING id, user_id, amount, country, method, phone, status, source,
		          requested_at, processed_at, admin_confirmed_at`,
		models.WithdrawalStatusConfirmed, withdrawalID, models.WithdrawalStatusCompleted,
	).Scan(
		&w.ID, &w.UserID, &w.Amount, &w.Country, &w.Method, &w.Phone,
		&w.Status, &w.Source, &w.RequestedAt, &w.ProcessedAt, &w.AdminConfirmedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, s.classify(ctx, withdrawalID, ErrWithdrawalNotPaidOut)
		}
		return nil, fmt.Errorf("failed to confirm withdrawal: %w", err)
	}

	logging.LogWithdrawal(w.ID.String(), w.UserID.String(), string(w.Status), string(w.Source), w.Amount.String())
	monitoring.RecordWithdrawal(string(models.WithdrawalStatusConfirmed))

	return &w, nil
}

// Reject refuses a pending withdrawal and restores exactly the deducted
// amount to the balance it was drawn from.
func (s *Service) Reject(ctx context.Context, withdrawalID uuid.UUID) (*models.Withdrawal, error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var w models.Withdrawal
	err = tx.QueryRow(ctx, `
		UPDATE withdrawals
		SET status = $1, processed_at = NOW()
		WHERE id = $2 AND status = $3
		RETURNING id, user_id, amount, country, method, phone, status, source,
		          requested_at, processed_at, admin_confirmed_at`,
		models.WithdrawalStatusRejected, withdrawalID, models.WithdrawalStatusPending,
	).Scan(
		&w.ID, &w.UserID, &w.Amount, &w.Country, &w.Method, &w.Phone,
		&w.Status, &w.Source, &w.RequestedAt, &w.ProcessedAt, &w.AdminConfirmedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, s.classify(ctx, withdrawalID, ErrWithdrawalNotPending)
		}
		return nil, fmt.Errorf("failed to reject withdrawal: %w", err)
	}

	column, err := balanceColumn(w.Source)
	if err != nil {
		return nil, err
	}

	_, err = tx.Exec(ctx, fmt.Sprintf(`
		UPDATE users
		SET %s = %s + $1, updated_at = NOW()
		WHERE id = $2`, column, column),
		w.Amount, w.UserID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to restore balance: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	logging.LogWithdrawal(w.ID.String(), w.UserID.String(), string(w.Status), string(w.Source), w.Amount.String())
	monitoring.RecordWithdrawal(string(models.WithdrawalStatusRejected))

	return &w, nil
}

// classify turns a zero-row conditional update into not-found or wrong-state.
func (s *Service) classify(ctx context.Context, withdrawalID uuid.UUID, wrongState error) error {
	var exists bool
	err := s.db.QueryRow(ctx, "SELECT EXISTS(SELECT 1 FROM withdrawals WHERE id = $1)", withdrawalID).Scan(&exists)
	if err != nil {
		return fmt.Errorf("failed to check withdrawal: %w", err)
	}
	if !exists {
		return ErrWithdrawalNotFound
	}
	return wrongState
}

func scanWithdrawals(rows pgx.Rows) ([]models.Withdrawal, error) {
	withdrawals := []models.Withdrawal{}
	for rows.Next() {
		var w models.Withdrawal
		err := rows.Scan(
			&w.ID, &w.UserID, &w.Amount, &w.Country, &w.Method, &w.Phone,
			&w.Status, &w.Source, &w.RequestedAt, &w.ProcessedAt, &w.AdminConfirmedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan withdrawal: %w", err)
		}
		withdrawals = append(withdrawals, w)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read withdrawals: %w", err)
	}
	return withdrawals, nil
}
