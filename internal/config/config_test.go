package config_test

import (
	"testing"
	"time"

	"github.com/qashgo/backend/internal/config"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("API_PORT", "")
	t.Setenv("APP_ENV", "")
	t.Setenv("AUTH_RATE_LIMIT", "")
	t.Setenv("DB_MAX_CONNS", "")

	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Server.Port != 8080 {
		t.Errorf("port = %d, want 8080", cfg.Server.Port)
	}
	if cfg.Server.Env != "development" {
		t.Errorf("env = %q, want development", cfg.Server.Env)
	}
	if cfg.RateLimit.AuthLimit != 20 {
		t.Errorf("auth rate limit = %d, want 20", cfg.RateLimit.AuthLimit)
	}
	if cfg.JWT.AccessTokenExpiry != 15*time.Minute {
		t.Errorf("access expiry = %s, want 15m", cfg.JWT.AccessTokenExpiry)
	}
	if cfg.Database.MaxConns != 25 || cfg.Database.MinConns != 5 {
		t.Errorf("pool size = %d/%d, want 25/5", cfg.Database.MaxConns, cfg.Database.MinConns)
	}
	if cfg.Database.MaxConnLifetime != time.Hour {
		t.Errorf("conn lifetime = %s, want 1h", cfg.Database.MaxConnLifetime)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("API_PORT", "9999")
	t.Setenv("JWT_ACCESS_EXPIRY_MINUTES", "5")
	t.Setenv("DB_MAX_CONNS", "50")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example, https://b.example")

	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Server.Port != 9999 {
		t.Errorf("port = %d, want 9999", cfg.Server.Port)
	}
	if cfg.JWT.AccessTokenExpiry != 5*time.Minute {
		t.Errorf("access expiry = %s, want 5m", cfg.JWT.AccessTokenExpiry)
	}
	if cfg.Database.MaxConns != 50 {
		t.Errorf("max conns = %d, want 50", cfg.Database.MaxConns)
	}
	if len(cfg.CORS.AllowedOrigins) != 2 || cfg.CORS.AllowedOrigins[1] != "https://b.example" {
		t.Errorf("origins = %v, want trimmed pair", cfg.CORS.AllowedOrigins)
	}
}

func TestValidateProductionRequiresSecret(t *testing.T) {
	t.Setenv("APP_ENV", "production")
	t.Setenv("JWT_SECRET", "")

	if _, err := config.Load(); err == nil {
		t.Fatal("production without JWT_SECRET should fail")
	}

	t.Setenv("JWT_SECRET", "a-real-secret")
	if _, err := config.Load(); err != nil {
		t.Fatalf("production with secret: %v", err)
	}
}
