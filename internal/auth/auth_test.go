package auth_test

import (
	"testing"
	"time"
	"unicode"

	"github.com/golang-jwt/jwt/v5"
	"github.com/qashgo/backend/internal/auth"
	"pgregory.net/rapid"
)

func TestNormalizeReferralCode(t *testing.T) {
	cases := []struct {
		username string
		want     string
	}{
		{"alice", "ALICE"},
		{"Jean Pierre", "JEANPIERRE"},
		{"user_42", "USER42"},
		{"a.b-c", "ABC"},
		{"émile", "ÉMILE"},
		{"!!!", ""},
	}
	for _, tc := range cases {
		if got := auth.NormalizeReferralCode(tc.username); got != tc.want {
			t.Errorf("NormalizeReferralCode(%q) = %q, want %q", tc.username, got, tc.want)
		}
	}
}

// The derived code contains only letters and digits and carries no
// lowercase, whatever the username looks like.
func TestPropertyNormalizeReferralCode(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		username := rapid.String().Draw(t, "username")
		code := auth.NormalizeReferralCode(username)

		for _, r := range code {
			if !unicode.IsLetter(r) && !unicode.IsDigit(r) {
				t.Fatalf("code %q contains %q", code, r)
			}
			if unicode.IsLower(r) {
				t.Fatalf("code %q contains lowercase %q", code, r)
			}
		}
	})
}

func TestClaimsCarryAdminFlag(t *testing.T) {
	claims := &auth.Claims{
		UserID:  "id",
		Email:   "admin@example.com",
		IsAdmin: true,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "access",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Minute)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte("test-secret"))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	parsed, err := jwt.ParseWithClaims(signed, &auth.Claims{}, func(*jwt.Token) (interface{}, error) {
		return []byte("test-secret"), nil
	})
	if err != nil {
		t.Fatalf("parse: %v", err)
	}

	got, ok := parsed.Claims.(*auth.Claims)
	if !ok || !got.IsAdmin {
		t.Fatal("admin flag lost in the token round trip")
	}
}
