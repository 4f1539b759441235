package server_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/qashgo/backend/internal/config"
	"github.com/qashgo/backend/internal/middleware"
	"github.com/qashgo/backend/internal/server"
)

const testSecret = "test-secret-key-for-server-32chars"

// Route wiring and auth gating are testable without a database: none of
// these requests reach a handler that queries one.
func testServer() *server.APIServer {
	cfg := &config.Config{}
	cfg.Server.Env = "test"
	cfg.JWT.Secret = testSecret
	cfg.CORS.AllowedOrigins = []string{"*"}
	return server.NewAPIServer(cfg, nil, nil)
}

func signToken(t *testing.T, isAdmin bool) string {
	t.Helper()

	claims := &middleware.Claims{
		UserID:  "b5fca2e2-3f9f-4f62-9f57-0d5f9a3a1b11",
		Email:   "user@example.com",
		IsAdmin: isAdmin,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "access",
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Minute)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return signed
}

func TestHealthCheck(t *testing.T) {
	srv := testServer()

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	srv.Router().ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}

	var body map[string]string
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if body["status"] != "healthy" {
		t.Errorf("status field = %q, want healthy", body["status"])
	}
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	srv := testServer()

	paths := []string{
		"/api/v1/users/me",
		"/api/v1/referrals",
		"/api/v1/referrals/counts",
		"/api/v1/bonus",
		"/api/v1/withdrawals",
		"/api/v1/activation",
	}
	for _, path := range paths {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, path, nil)
		srv.Router().ServeHTTP(w, req)
		if w.Code != http.StatusUnauthorized {
			t.Errorf("GET %s without token: status = %d, want 401", path, w.Code)
		}
	}
}

func TestAdminRoutesRejectNonAdmins(t *testing.T) {
	srv := testServer()

	paths := []string{
		"/api/v1/admin/withdrawals",
		"/api/v1/admin/users",
		"/api/v1/admin/settings/bonus",
	}
	for _, path := range paths {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, path, nil)
		req.Header.Set("Authorization", "Bearer "+signToken(t, false))
		srv.Router().ServeHTTP(w, req)

		if w.Code != http.StatusForbidden {
			t.Errorf("non-admin GET %s: status = %d, want 403", path, w.Code)
		}
	}
}

func TestRegisterRejectsMalformedBody(t *testing.T) {
	srv := testServer()

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/register", nil)
	srv.Router().ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("empty register body: status = %d, want 400", w.Code)
	}
}
