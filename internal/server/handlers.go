package server

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/qashgo/backend/internal/auth"
	"github.com/qashgo/backend/internal/bonus"
	apierrors "github.com/qashgo/backend/internal/errors"
	"github.com/qashgo/backend/internal/middleware"
	"github.com/qashgo/backend/internal/models"
	"github.com/qashgo/backend/internal/payment"
	"github.com/qashgo/backend/internal/settings"
	"github.com/qashgo/backend/internal/withdrawal"
)

// handleGetMe returns the authenticated user's profile and balances.
func (s *APIServer) handleGetMe(c *gin.Context) {
	userID := middleware.GetUserIDFromContext(c)
	if userID == uuid.Nil {
		respondError(c, apierrors.ErrInvalidCredentialsError)
		return
	}

	user, err := s.authService.GetUserByID(c.Request.Context(), userID)
	if err != nil {
		respondError(c, apierrors.ErrUserNotFoundError)
		return
	}

	c.JSON(http.StatusOK, gin.H{"user": user})
}

// handleListReferrals returns the user's referral edges with each referred
// user's current state.
func (s *APIServer) handleListReferrals(c *gin.Context) {
	userID := middleware.GetUserIDFromContext(c)
	if userID == uuid.Nil {
		respondError(c, apierrors.ErrInvalidCredentialsError)
		return
	}

	referrals, err := s.referralService.UserReferrals(c.Request.Context(), userID)
	if err != nil {
		respondError(c, apierrors.ErrInternalServerError)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"referrals": referrals,
		"total":     len(referrals),
	})
}

// handleReferralCounts returns live per-level active referral counts.
func (s *APIServer) handleReferralCounts(c *gin.Context) {
	userID := middleware.GetUserIDFromContext(c)
	if userID == uuid.Nil {
		respondError(c, apierrors.ErrInvalidCredentialsError)
		return
	}

	counts, err := s.referralService.ActiveReferralCounts(c.Request.Context(), userID)
	if err != nil {
		respondError(c, apierrors.ErrInternalServerError)
		return
	}

	c.JSON(http.StatusOK, counts)
}

// handleBonusEligibility returns the user's standing against the welcome
// bonus target.
func (s *APIServer) handleBonusEligibility(c *gin.Context) {
	userID := middleware.GetUserIDFromContext(c)
	if userID == uuid.Nil {
		respondError(c, apierrors.ErrInvalidCredentialsError)
		return
	}

	eligibility, err := s.bonusService.Evaluate(c.Request.Context(), userID)
	if err != nil {
		respondError(c, apierrors.ErrInternalServerError)
		return
	}

	c.JSON(http.StatusOK, eligibility)
}

// handleBonusClaim pays the one-time welcome bonus.
func (s *APIServer) handleBonusClaim(c *gin.Context) {
	userID := middleware.GetUserIDFromContext(c)
	if userID == uuid.Nil {
		respondError(c, apierrors.ErrInvalidCredentialsError)
		return
	}

	claim, err := s.bonusService.Claim(c.Request.Context(), userID)
	if err != nil {
		switch err {
		case bonus.ErrNotEligible:
			respondError(c, apierrors.NewInvalidRequestError("Referral target not reached"))
		case bonus.ErrAlreadyClaimed:
			respondError(c, apierrors.ErrBonusAlreadyClaimedError)
		default:
			respondError(c, apierrors.ErrInternalServerError)
		}
		return
	}

	c.JSON(http.StatusCreated, claim)
}

// handleCreateWithdrawal opens a pending mobile-money withdrawal.
func (s *APIServer) handleCreateWithdrawal(c *gin.Context) {
	userID := middleware.GetUserIDFromContext(c)
	if userID == uuid.Nil {
		respondError(c, apierrors.ErrInvalidCredentialsError)
		return
	}

	var req withdrawal.CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, apierrors.NewValidationError(err.Error()))
		return
	}

	w, err := s.withdrawalService.Create(c.Request.Context(), userID, &req)
	if err != nil {
		switch err {
		case withdrawal.ErrInvalidAmount,
			withdrawal.ErrBelowMinimum,
			withdrawal.ErrUnsupportedCountry,
			withdrawal.ErrInvalidOperator,
			withdrawal.ErrInvalidSource:
			respondError(c, apierrors.NewInvalidRequestError(err.Error()))
		case withdrawal.ErrInsufficientBalance:
			respondError(c, apierrors.NewInvalidRequestError("Insufficient balance"))
		default:
			respondError(c, apierrors.ErrInternalServerError)
		}
		return
	}

	c.JSON(http.StatusCreated, w)
}

// handleWithdrawalHistory returns a page of the user's withdrawals.
func (s *APIServer) handleWithdrawalHistory(c *gin.Context) {
	userID := middleware.GetUserIDFromContext(c)
	if userID == uuid.Nil {
		respondError(c, apierrors.ErrInvalidCredentialsError)
		return
	}

	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))

	history, err := s.withdrawalService.History(c.Request.Context(), userID, page, pageSize)
	if err != nil {
		respondError(c, apierrors.ErrInternalServerError)
		return
	}

	c.JSON(http.StatusOK, history)
}

// activationRequest carries the optional payment provider reference.
type activationRequest struct {
	ProviderRef string `json:"provider_ref"`
}

// handleCreateActivation opens a pending activation payment at the current
// affiliation fee.
func (s *APIServer) handleCreateActivation(c *gin.Context) {
	userID := middleware.GetUserIDFromContext(c)
	if userID == uuid.Nil {
		respondError(c, apierrors.ErrInvalidCredentialsError)
		return
	}

	var req activationRequest
	if err := c.ShouldBindJSON(&req); err != nil && c.Request.ContentLength > 0 {
		respondError(c, apierrors.NewValidationError(err.Error()))
		return
	}

	p, err := s.paymentService.CreateActivation(c.Request.Context(), userID, req.ProviderRef)
	if err != nil {
		if err == payment.ErrAlreadyActive {
			respondError(c, apierrors.ErrAlreadyActiveError)
		} else {
			respondError(c, apierrors.ErrInternalServerError)
		}
		return
	}

	c.JSON(http.StatusCreated, p)
}

// handleCompleteActivation completes a pending payment and activates the
// account.
func (s *APIServer) handleCompleteActivation(c *gin.Context) {
	paymentID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		respondError(c, apierrors.NewInvalidRequestError("Invalid payment ID"))
		return
	}

	p, err := s.paymentService.CompleteActivation(c.Request.Context(), paymentID)
	if err != nil {
		switch err {
		case payment.ErrPaymentNotFound:
			respondError(c, apierrors.NewInvalidRequestError("Payment not found"))
		case payment.ErrPaymentAlreadyDone:
			respondError(c, apierrors.NewInvalidRequestError("Payment already processed"))
		default:
			respondError(c, apierrors.ErrInternalServerError)
		}
		return
	}

	c.JSON(http.StatusOK, p)
}

// handleFailActivation marks a pending payment as failed.
func (s *APIServer) handleFailActivation(c *gin.Context) {
	paymentID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		respondError(c, apierrors.NewInvalidRequestError("Invalid payment ID"))
		return
	}

	p, err := s.paymentService.FailActivation(c.Request.Context(), paymentID)
	if err != nil {
		switch err {
		case payment.ErrPaymentNotFound:
			respondError(c, apierrors.NewInvalidRequestError("Payment not found"))
		case payment.ErrPaymentAlreadyDone:
			respondError(c, apierrors.NewInvalidRequestError("Payment already processed"))
		default:
			respondError(c, apierrors.ErrInternalServerError)
		}
		return
	}

	c.JSON(http.StatusOK, p)
}

// handleListActivations returns the user's activation payments.
func (s *APIServer) handleListActivations(c *gin.Context) {
	userID := middleware.GetUserIDFromContext(c)
	if userID == uuid.Nil {
		respondError(c, apierrors.ErrInvalidCredentialsError)
		return
	}

	payments, err := s.paymentService.UserPayments(c.Request.Context(), userID)
	if err != nil {
		respondError(c, apierrors.ErrInternalServerError)
		return
	}

	c.JSON(http.StatusOK, gin.H{"payments": payments})
}

// handleAdminListWithdrawals lists withdrawals for the admin queue,
// optionally filtered by status.
func (s *APIServer) handleAdminListWithdrawals(c *gin.Context) {
	status := models.WithdrawalStatus(c.Query("status"))

	withdrawals, err := s.withdrawalService.ListByStatus(c.Request.Context(), status)
	if err != nil {
		respondError(c, apierrors.ErrInternalServerError)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"withdrawals": withdrawals,
		"total":       len(withdrawals),
	})
}

func (s *APIServer) handleAdminApproveWithdrawal(c *gin.Context) {
	s.adminWithdrawalAction(c, s.withdrawalService.Approve)
}

func (s *APIServer) handleAdminConfirmWithdrawal(c *gin.Context) {
	s.adminWithdrawalAction(c, s.withdrawalService.Confirm)
}

func (s *APIServer) handleAdminRejectWithdrawal(c *gin.Context) {
	s.adminWithdrawalAction(c, s.withdrawalService.Reject)
}

// adminWithdrawalAction runs one of the admin state transitions and maps
// its errors to API responses.
func (s *APIServer) adminWithdrawalAction(c *gin.Context, action func(ctx context.Context, id uuid.UUID) (*models.Withdrawal, error)) {
	withdrawalID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		respondError(c, apierrors.NewInvalidRequestError("Invalid withdrawal ID"))
		return
	}

	w, err := action(c.Request.Context(), withdrawalID)
	if err != nil {
		switch err {
		case withdrawal.ErrWithdrawalNotFound:
			respondError(c, apierrors.ErrWithdrawalNotFoundError)
		case withdrawal.ErrWithdrawalNotPending, withdrawal.ErrWithdrawalNotPaidOut:
			respondError(c, apierrors.NewInvalidRequestError(err.Error()))
		default:
			respondError(c, apierrors.ErrInternalServerError)
		}
		return
	}

	c.JSON(http.StatusOK, w)
}

// handleAdminListUsers returns a page of users for the admin panel.
func (s *APIServer) handleAdminListUsers(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))

	users, total, err := s.authService.ListUsers(c.Request.Context(), page, pageSize)
	if err != nil {
		respondError(c, apierrors.ErrInternalServerError)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"users": users,
		"total": total,
		"page":  page,
	})
}

// handleAdminActivateUser activates an account without a payment.
func (s *APIServer) handleAdminActivateUser(c *gin.Context) {
	userID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		respondError(c, apierrors.NewInvalidRequestError("Invalid user ID"))
		return
	}

	user, err := s.authService.ActivateUser(c.Request.Context(), userID)
	if err != nil {
		if err == auth.ErrUserNotFound {
			respondError(c, apierrors.ErrUserNotFoundError)
		} else {
			respondError(c, apierrors.ErrInternalServerError)
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{"user": user})
}

// handleAdminGetBonusSettings returns the current bonus configuration.
func (s *APIServer) handleAdminGetBonusSettings(c *gin.Context) {
	c.JSON(http.StatusOK, s.settingsProvider.GetBonusSettings(c.Request.Context()))
}

// handleAdminUpdateBonusSettings upserts the singleton bonus configuration.
func (s *APIServer) handleAdminUpdateBonusSettings(c *gin.Context) {
	var req settings.UpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, apierrors.NewValidationError(err.Error()))
		return
	}

	updated, err := s.settingsProvider.UpdateBonusSettings(c.Request.Context(), &req)
	if err != nil {
		respondError(c, apierrors.ErrInternalServerError)
		return
	}

	c.JSON(http.StatusOK, updated)
}
