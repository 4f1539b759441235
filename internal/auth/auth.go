package auth

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"
	"unicode"

	"github.com/alexedwards/argon2id"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/qashgo/backend/internal/config"
	"github.com/qashgo/backend/internal/models"
	"github.com/qashgo/backend/internal/monitoring"
	"github.com/qashgo/backend/internal/referral"
)

// Service handles authentication operations
type Service struct {
	db        *pgxpool.Pool
	config    *config.JWTConfig
	referrals *referral.Service
}

// NewService creates a new auth service
func NewService(db *pgxpool.Pool, jwtCfg *config.JWTConfig, referrals *referral.Service) *Service {
	return &Service{
		db:        db,
		config:    jwtCfg,
		referrals: referrals,
	}
}

// Claims represents JWT claims
type Claims struct {
	UserID  string `json:"user_id"`
	Email   string `json:"email"`
	IsAdmin bool   `json:"is_admin"`
	jwt.RegisteredClaims
}

// TokenPair represents access and refresh tokens
type TokenPair struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	ExpiresAt    time.Time `json:"expires_at"`
	TokenType    string    `json:"token_type"`
}

// RegisterRequest represents a registration request
type RegisterRequest struct {
	Email        string `json:"email" binding:"required,email"`
	Password     string `json:"password" binding:"required,min=8"`
	Username     string `json:"username" binding:"required,min=3,max=30"`
	Name         string `json:"name" binding:"required"`
	Phone        string `json:"phone"`
	CountryCode  string `json:"country_code" binding:"required"`
	ReferralCode string `json:"referral_code"`
}

// LoginRequest represents a login request
type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// RefreshRequest represents a token refresh request
type RefreshRequest struct {
	RefreshToken string `json:"refresh_token" binding:"required"`
}

// RegisterResponse represents a registration response
type RegisterResponse struct {
	User    *models.User `json:"user"`
	Tokens  TokenPair    `json:"tokens"`
	Message string       `json:"message"`
}

// LoginResponse represents a login response
type LoginResponse struct {
	User   *models.User `json:"user"`
	Tokens TokenPair    `json:"tokens"`
}

// Register creates a new user account. The account starts inactive until the
// affiliation fee is paid, but referral commissions for the chain above the
// new user are distributed immediately after the account is created.
func (s *Service) Register(ctx context.Context, req *RegisterRequest) (*RegisterResponse, error) {
	var exists bool
	err := s.db.QueryRow(ctx, "SELECT EXISTS(SELECT 1 FROM users WHERE email = $1)", req.Email).Scan(&exists)
	if err != nil {
		return nil, fmt.Errorf("failed to check email existence: %w", err)
	}
	if exists {
		return nil, ErrEmailAlreadyExists
	}

	err = s.db.QueryRow(ctx, "SELECT EXISTS(SELECT 1 FROM users WHERE username = $1)", req.Username).Scan(&exists)
	if err != nil {
		return nil, fmt.Errorf("failed to check username existence: %w", err)
	}
	if exists {
		return nil, ErrUsernameAlreadyExists
	}

	passwordHash, err := argon2id.CreateHash(req.Password, argon2id.DefaultParams)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	referralCode, err := s.generateReferralCode(ctx, req.Username)
	if err != nil {
		return nil, fmt.Errorf("failed to generate referral code: %w", err)
	}

	var referredBy *string
	if req.ReferralCode != "" {
		code := strings.ToUpper(strings.TrimSpace(req.ReferralCode))
		referredBy = &code
	}
	var phone *string
	if req.Phone != "" {
		phone = &req.Phone
	}

	var user models.User
	err = s.db.QueryRow(ctx, `
		INSERT INTO users (email, username, name, phone, country_code, password_hash,
		                   referral_code, referred_by_code, account_active)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, false)
		RETURNING id, email, username, name, phone, country_code, password_hash,
		          referral_code, referred_by_code, account_active, is_admin,
		          balance, withdrawable_balance, youtube_balance, tiktok_balance,
		          welcome_bonus, total_withdrawals, created_at, updated_at
	`, req.Email, req.Username, req.Name, phone, req.CountryCode, passwordHash,
		referralCode, referredBy).Scan(
		&user.ID, &user.Email, &user.Username, &user.Name, &user.Phone,
		&user.CountryCode, &user.PasswordHash, &user.ReferralCode,
		&user.ReferredByCode, &user.AccountActive, &user.IsAdmin,
		&user.Balance, &user.WithdrawableBalance, &user.YoutubeBalance,
		&user.TiktokBalance, &user.WelcomeBonus, &user.TotalWithdrawals,
		&user.CreatedAt, &user.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	// Commission distribution is best effort and never blocks registration.
	if user.ReferredByCode != nil {
		s.referrals.DistributeCommissions(ctx, *user.ReferredByCode, user.ID)
	}

	monitoring.RecordRegistration()

	tokens, err := s.generateTokenPair(&user)
	if err != nil {
		return nil, fmt.Errorf("failed to generate tokens: %w", err)
	}

	return &RegisterResponse{
		User:    &user,
		Tokens:  *tokens,
		Message: "Registration successful. Activate your account to start earning.",
	}, nil
}

// Login authenticates a user and returns tokens
func (s *Service) Login(ctx context.Context, req *LoginRequest) (*LoginResponse, error) {
	user, err := s.findUser(ctx, "email = $1", req.Email)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			// Generic error to not reveal whether the email exists
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("failed to find user: %w", err)
	}

	match, err := argon2id.ComparePasswordAndHash(req.Password, user.PasswordHash)
	if err != nil {
		return nil, fmt.Errorf("failed to verify password: %w", err)
	}
	if !match {
		return nil, ErrInvalidCredentials
	}

	tokens, err := s.generateTokenPair(user)
	if err != nil {
		return nil, fmt.Errorf("failed to generate tokens: %w", err)
	}

	return &LoginResponse{
		User:   user,
		Tokens: *tokens,
	}, nil
}

// RefreshTokens generates new tokens from a valid refresh token
func (s *Service) RefreshTokens(ctx context.Context, refreshToken string) (*TokenPair, error) {
	claims, err := s.validateToken(refreshToken)
	if err != nil {
		return nil, ErrInvalidToken
	}
	if claims.Subject != "refresh" {
		return nil, ErrInvalidToken
	}

	userID, err := uuid.Parse(claims.UserID)
	if err != nil {
		return nil, ErrInvalidToken
	}

	user, err := s.GetUserByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	// Token rotation
	return s.generateTokenPair(user)
}

// ValidateAccessToken validates an access token and returns claims
func (s *Service) ValidateAccessToken(tokenString string) (*Claims, error) {
	claims, err := s.validateToken(tokenString)
	if err != nil {
		return nil, err
	}
	if claims.Subject != "access" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// GetUserByID retrieves a user by ID
func (s *Service) GetUserByID(ctx context.Context, userID uuid.UUID) (*models.User, error) {
	user, err := s.findUser(ctx, "id = $1", userID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	return user, nil
}

// ListUsers returns a page of users, newest first, with the total count.
func (s *Service) ListUsers(ctx context.Context, page, pageSize int) ([]models.User, int, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}

	var total int
	if err := s.db.QueryRow(ctx, "SELECT COUNT(*) FROM users").Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count users: %w", err)
	}

	rows, err := s.db.Query(ctx, `
		SELECT id, email, username, name, phone, country_code, password_hash,
		       referral_code, referred_by_code, account_active, is_admin,
		       balance, withdrawable_balance, youtube_balance, tiktok_balance,
		       welcome_bonus, total_withdrawals, created_at, updated_at
		FROM users
		ORDER BY created_at DESC
		LIMIT $1 OFFSET $2`, pageSize, (page-1)*pageSize)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list users: %w", err)
	}
	defer rows.Close()

	users := make([]models.User, 0, pageSize)
	for rows.Next() {
		var user models.User
		if err := rows.Scan(
			&user.ID, &user.Email, &user.Username, &user.Name, &user.Phone,
			&user.CountryCode, &user.PasswordHash, &user.ReferralCode,
			&user.ReferredByCode, &user.AccountActive, &user.IsAdmin,
			&user.Balance, &user.WithdrawableBalance, &user.YoutubeBalance,
			&user.TiktokBalance, &user.WelcomeBonus, &user.TotalWithdrawals,
			&user.CreatedAt, &user.UpdatedAt,
		); err != nil {
			return nil, 0, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, user)
	}
	return users, total, rows.Err()
}

// ActivateUser flips account_active without a payment. Admin override for
// out-of-band activations.
func (s *Service) ActivateUser(ctx context.Context, userID uuid.UUID) (*models.User, error) {
	tag, err := s.db.Exec(ctx, `
		UPDATE users SET account_active = true, updated_at = NOW()
		WHERE id = $1`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to activate user: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return nil, ErrUserNotFound
	}
	return s.GetUserByID(ctx, userID)
}

func (s *Service) findUser(ctx context.Context, where string, arg any) (*models.User, error) {
	var user models.User
	err := s.db.QueryRow(ctx, `
		SELECT id, email, username, name, phone, country_code, password_hash,
		       referral_code, referred_by_code, account_active, is_admin,
		       balance, withdrawable_balance, youtube_balance, tiktok_balance,
		       welcome_bonus, total_withdrawals, created_at, updated_at
		FROM users WHERE `+where, arg).Scan(
		&user.ID, &user.Email, &user.Username, &user.Name, &user.Phone,
		&user.CountryCode, &user.PasswordHash, &user.ReferralCode,
		&user.ReferredByCode, &user.AccountActive, &user.IsAdmin,
		&user.Balance, &user.WithdrawableBalance, &user.YoutubeBalance,
		&user.TiktokBalance, &user.WelcomeBonus, &user.TotalWithdrawals,
		&user.CreatedAt, &user.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// generateReferralCode derives a unique code from the username: uppercased,
// non-alphanumerics stripped, with a numeric suffix on collision.
func (s *Service) generateReferralCode(ctx context.Context, username string) (string, error) {
	base := NormalizeReferralCode(username)
	if base == "" {
		base = "USER"
	}

	candidate := base
	for attempt := 0; attempt < 10; attempt++ {
		var exists bool
		err := s.db.QueryRow(ctx, "SELECT EXISTS(SELECT 1 FROM users WHERE referral_code = $1)", candidate).Scan(&exists)
		if err != nil {
			return "", err
		}
		if !exists {
			return candidate, nil
		}
		n, err := rand.Int(rand.Reader, big.NewInt(10000))
		if err != nil {
			return "", err
		}
		candidate = fmt.Sprintf("%s%04d", base, n.Int64())
	}

	return "", fmt.Errorf("could not find a free referral code for %q", base)
}

// NormalizeReferralCode uppercases a username and strips everything that is
// not a letter or digit.
func NormalizeReferralCode(username string) string {
	var b strings.Builder
	for _, r := range strings.ToUpper(username) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// generateTokenPair creates access and refresh tokens
func (s *Service) generateTokenPair(user *models.User) (*TokenPair, error) {
	now := time.Now()
	accessExpiry := now.Add(s.config.AccessTokenExpiry)
	refreshExpiry := now.Add(s.config.RefreshTokenExpiry)

	accessClaims := &Claims{
		UserID:  user.ID.String(),
		Email:   user.Email,
		IsAdmin: user.IsAdmin,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "access",
			Issuer:    s.config.Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(accessExpiry),
			ID:        generateJTI(),
		},
	}

	accessToken := jwt.NewWithClaims(jwt.SigningMethodHS256, accessClaims)
	accessTokenString, err := accessToken.SignedString([]byte(s.config.Secret))
	if err != nil {
		return nil, fmt.Errorf("failed to sign access token: %w", err)
	}

	refreshClaims := &Claims{
		UserID:  user.ID.String(),
		Email:   user.Email,
		IsAdmin: user.IsAdmin,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "refresh",
			Issuer:    s.config.Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(refreshExpiry),
			ID:        generateJTI(),
		},
	}

	refreshToken := jwt.NewWithClaims(jwt.SigningMethodHS256, refreshClaims)
	refreshTokenString, err := refreshToken.SignedString([]byte(s.config.Secret))
	if err != nil {
		return nil, fmt.Errorf("failed to sign refresh token: %w", err)
	}

	return &TokenPair{
		AccessToken:  accessTokenString,
		RefreshToken: refreshTokenString,
		ExpiresAt:    accessExpiry,
		TokenType:    "Bearer",
	}, nil
}

// validateToken parses and validates a JWT token
func (s *Service) validateToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(s.config.Secret), nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}

	return claims, nil
}

// generateJTI generates a unique JWT ID
func generateJTI() string {
	b := make([]byte, 16)
	rand.Read(b)
	return base64.RawURLEncoding.EncodeToString(b)
}
