package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/qashgo/backend/internal/auth"
	"github.com/qashgo/backend/internal/bonus"
	"github.com/qashgo/backend/internal/cache"
	"github.com/qashgo/backend/internal/config"
	apierrors "github.com/qashgo/backend/internal/errors"
	"github.com/qashgo/backend/internal/logging"
	"github.com/qashgo/backend/internal/middleware"
	"github.com/qashgo/backend/internal/monitoring"
	"github.com/qashgo/backend/internal/payment"
	"github.com/qashgo/backend/internal/referral"
	"github.com/qashgo/backend/internal/settings"
	"github.com/qashgo/backend/internal/withdrawal"
)

// APIServer represents the main API server
type APIServer struct {
	config            *config.Config
	router            *gin.Engine
	db                *pgxpool.Pool
	authService       *auth.Service
	referralService   *referral.Service
	bonusService      *bonus.Service
	paymentService    *payment.Service
	withdrawalService *withdrawal.Service
	settingsProvider  *settings.Provider
	jwtAuthenticator  *middleware.JWTAuthenticator
	rateLimiter       *cache.RateLimiter
}

// NewAPIServer creates a new API server instance. redis may be nil, in
// which case auth endpoints run without rate limiting.
func NewAPIServer(cfg *config.Config, db *pgxpool.Pool, redis *cache.Redis) *APIServer {
	if cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()

	// Add middleware in order
	router.Use(gin.Recovery())
	router.Use(middleware.RequestID())
	router.Use(middleware.CORS(cfg.CORS.AllowedOrigins))
	router.Use(monitoring.MetricsMiddleware())
	router.Use(logging.RequestLogger())

	settingsProvider := settings.NewProvider(db)
	referralService := referral.NewService(referral.NewPostgresStore(db))
	bonusService := bonus.NewService(db, settingsProvider, referralService)
	authService := auth.NewService(db, &cfg.JWT, referralService)
	paymentService := payment.NewService(db, settingsProvider)
	withdrawalService := withdrawal.NewService(db, nil)

	var rateLimiter *cache.RateLimiter
	if redis != nil {
		rateLimiter = cache.NewRateLimiter(redis, &cfg.RateLimit)
	}

	srv := &APIServer{
		config:            cfg,
		router:            router,
		db:                db,
		authService:       authService,
		referralService:   referralService,
		bonusService:      bonusService,
		paymentService:    paymentService,
		withdrawalService: withdrawalService,
		settingsProvider:  settingsProvider,
		jwtAuthenticator:  middleware.NewJWTAuthenticator(&cfg.JWT),
		rateLimiter:       rateLimiter,
	}

	srv.setupRoutes()
	return srv
}

// Router returns the gin router
func (s *APIServer) Router() http.Handler {
	return s.router
}

// setupRoutes configures all API routes
func (s *APIServer) setupRoutes() {
	// Health check
	s.router.GET("/health", s.healthCheck)

	// API v1 routes
	v1 := s.router.Group("/api/v1")
	{
		// Auth routes (public, rate limited)
		authGroup := v1.Group("/auth")
		if s.rateLimiter != nil {
			authGroup.Use(middleware.RateLimit(s.rateLimiter, "auth"))
		}
		{
			authGroup.POST("/register", s.handleRegister)
			authGroup.POST("/login", s.handleLogin)
			authGroup.POST("/logout", s.handleLogout)
			authGroup.POST("/refresh", s.handleRefresh)
		}

		// User routes (protected)
		users := v1.Group("/users")
		users.Use(s.jwtAuthenticator.JWTAuth())
		{
			users.GET("/me", s.handleGetMe)
		}

		// Referral routes (protected)
		referrals := v1.Group("/referrals")
		referrals.Use(s.jwtAuthenticator.JWTAuth())
		{
			referrals.GET("", s.handleListReferrals)
			referrals.GET("/counts", s.handleReferralCounts)
		}

		// Bonus routes (protected)
		bonusGroup := v1.Group("/bonus")
		bonusGroup.Use(s.jwtAuthenticator.JWTAuth())
		{
			bonusGroup.GET("", s.handleBonusEligibility)
			bonusGroup.POST("/claim", s.handleBonusClaim)
		}

		// Withdrawal routes (protected)
		withdrawals := v1.Group("/withdrawals")
		withdrawals.Use(s.jwtAuthenticator.JWTAuth())
		{
			withdrawals.POST("", s.handleCreateWithdrawal)
			withdrawals.GET("", s.handleWithdrawalHistory)
		}

		// Activation routes (protected)
		activation := v1.Group("/activation")
		activation.Use(s.jwtAuthenticator.JWTAuth())
		{
			activation.POST("", s.handleCreateActivation)
			activation.POST("/:id/complete", s.handleCompleteActivation)
			activation.POST("/:id/fail", s.handleFailActivation)
			activation.GET("", s.handleListActivations)
		}

		// Admin routes (protected, admin only)
		admin := v1.Group("/admin")
		admin.Use(s.jwtAuthenticator.JWTAuth())
		admin.Use(middleware.RequireAdmin())
		{
			admin.GET("/withdrawals", s.handleAdminListWithdrawals)
			admin.POST("/withdrawals/:id/approve", s.handleAdminApproveWithdrawal)
			admin.POST("/withdrawals/:id/confirm", s.handleAdminConfirmWithdrawal)
			admin.POST("/withdrawals/:id/reject", s.handleAdminRejectWithdrawal)
			admin.GET("/users", s.handleAdminListUsers)
			admin.POST("/users/:id/activate", s.handleAdminActivateUser)
			admin.GET("/settings/bonus", s.handleAdminGetBonusSettings)
			admin.PUT("/settings/bonus", s.handleAdminUpdateBonusSettings)
		}
	}
}

// Health check handler
func (s *APIServer) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"service": "api",
	})
}

// handleRegister handles user registration
func (s *APIServer) handleRegister(c *gin.Context) {
	var req auth.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, apierrors.NewValidationError(err.Error()))
		return
	}

	resp, err := s.authService.Register(c.Request.Context(), &req)
	if err != nil {
		switch err {
		case auth.ErrEmailAlreadyExists:
			respondError(c, apierrors.NewInvalidRequestError("Email already registered"))
		case auth.ErrUsernameAlreadyExists:
			respondError(c, apierrors.NewInvalidRequestError("Username already taken"))
		default:
			respondError(c, apierrors.ErrInternalServerError)
		}
		return
	}

	c.JSON(http.StatusCreated, resp)
}

// handleLogin handles user login
func (s *APIServer) handleLogin(c *gin.Context) {
	var req auth.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, apierrors.NewValidationError(err.Error()))
		return
	}

	resp, err := s.authService.Login(c.Request.Context(), &req)
	if err != nil {
		if err == auth.ErrInvalidCredentials {
			respondError(c, apierrors.ErrInvalidCredentialsError)
		} else {
			respondError(c, apierrors.ErrInternalServerError)
		}
		return
	}

	c.JSON(http.StatusOK, resp)
}

// handleLogout handles user logout
func (s *APIServer) handleLogout(c *gin.Context) {
	// Stateless JWT, logout is handled client-side by dropping the token
	c.JSON(http.StatusOK, gin.H{"message": "Logged out successfully"})
}

// handleRefresh handles token refresh
func (s *APIServer) handleRefresh(c *gin.Context) {
	var req auth.RefreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, apierrors.NewValidationError(err.Error()))
		return
	}

	tokens, err := s.authService.RefreshTokens(c.Request.Context(), req.RefreshToken)
	if err != nil {
		switch err {
		case auth.ErrInvalidToken:
			respondError(c, apierrors.ErrInvalidCredentialsError)
		case auth.ErrTokenExpired:
			respondError(c, apierrors.ErrTokenExpiredError)
		case auth.ErrUserNotFound:
			respondError(c, apierrors.ErrUserNotFoundError)
		default:
			respondError(c, apierrors.ErrInternalServerError)
		}
		return
	}

	c.JSON(http.StatusOK, tokens)
}

// respondError sends a standardized error response
func respondError(c *gin.Context, err *apierrors.APIError) {
	requestID := middleware.GetRequestIDFromContext(c)
	c.JSON(err.HTTPStatus, apierrors.NewErrorResponse(err, requestID))
}
