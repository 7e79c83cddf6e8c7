package store

import (
	"errors"
	"strings"
	"testing"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"

	"soutenance/pkg/domain"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func newTestSessionStore(t *testing.T, revoker TokenRevoker, opts JWTOptions) *JWTSessionStore {
	t.Helper()
	s, err := NewJWTSessionStore(testSecret, time.Minute, revoker, opts)
	if err != nil {
		t.Fatalf("new session store: %v", err)
	}
	return s
}

func testUser() domain.User {
	return domain.User{ID: "user-1", Email: "ada@uni.test", Role: domain.RoleProfessor}
}

func TestJWTSessionStoreRoundTrip(t *testing.T) {
	s := newTestSessionStore(t, nil, JWTOptions{})
	token, expiresAt, err := s.NewSession(testUser())
	if err != nil {
		t.Fatalf("new session: %v", err)
	}
	if time.Until(expiresAt) <= 0 || time.Until(expiresAt) > time.Minute {
		t.Fatalf("unexpected expiry: %v", expiresAt)
	}
	claims, err := s.ParseToken(token)
	if err != nil {
		t.Fatalf("parse token: %v", err)
	}
	if claims.UserID != "user-1" || claims.Email != "ada@uni.test" || claims.Role != domain.RoleProfessor {
		t.Fatalf("unexpected claims: %+v", claims)
	}
	if claims.TokenID == "" {
		t.Fatalf("expected jti")
	}
}

func TestJWTSessionStoreRejectsShortSecret(t *testing.T) {
	if _, err := NewJWTSessionStore("short", time.Minute, nil, JWTOptions{}); err == nil {
		t.Fatalf("expected short secret to be rejected")
	}
}

func TestJWTSessionStoreEnforcesAudience(t *testing.T) {
	signing := newTestSessionStore(t, nil, JWTOptions{Issuer: "issuer-a", Audience: "aud-a"})
	verify := newTestSessionStore(t, nil, JWTOptions{Issuer: "issuer-a", Audience: "aud-b"})

	token, _, err := signing.NewSession(testUser())
	if err != nil {
		t.Fatalf("new session: %v", err)
	}
	if _, err := verify.ParseToken(token); !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("expected audience mismatch to fail, got %v", err)
	}
}

func TestJWTSessionStoreRejectsTamperedAndForeignTokens(t *testing.T) {
	s := newTestSessionStore(t, nil, JWTOptions{})
	token, _, err := s.NewSession(testUser())
	if err != nil {
		t.Fatalf("new session: %v", err)
	}
	parts := strings.Split(token, ".")
	tampered := parts[0] + "." + parts[1] + ".AAAA"
	if _, err := s.ParseToken(tampered); err == nil {
		t.Fatalf("expected tampered signature to fail")
	}

	other, err := NewJWTSessionStore(strings.Repeat("z", 40), time.Minute, nil, JWTOptions{})
	if err != nil {
		t.Fatalf("new other store: %v", err)
	}
	if _, err := other.ParseToken(token); err == nil {
		t.Fatalf("expected token signed with another secret to fail")
	}
	if _, err := s.ParseToken("  "); !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("expected empty token to fail, got %v", err)
	}
}

func TestJWTSessionStoreRejectsExpiredToken(t *testing.T) {
	s := newTestSessionStore(t, nil, JWTOptions{Leeway: time.Millisecond})
	past := time.Now().Add(-time.Hour)
	claims := sessionClaims{
		UserID: "user-1",
		Email:  "ada@uni.test",
		Role:   string(domain.RoleStudent),
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    defaultJWTIssuer,
			Audience:  jwt.ClaimStrings{defaultJWTAudience},
			ExpiresAt: jwt.NewNumericDate(past),
			IssuedAt:  jwt.NewNumericDate(past.Add(-time.Minute)),
			ID:        "expired",
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if _, err := s.ParseToken(token); !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("expected expired token to fail, got %v", err)
	}
}

func TestJWTSessionStoreRevokesByJTI(t *testing.T) {
	revoker := NewMemoryTokenRevoker()
	s := newTestSessionStore(t, revoker, JWTOptions{})

	token, _, err := s.NewSession(testUser())
	if err != nil {
		t.Fatalf("new session: %v", err)
	}
	if err := s.DeleteSession(token); err != nil {
		t.Fatalf("delete session: %v", err)
	}
	if _, err := s.ParseToken(token); !errors.Is(err, ErrTokenRevoked) {
		t.Fatalf("expected revoked token to fail, got %v", err)
	}
	if err := s.DeleteSession("garbage"); err != nil {
		t.Fatalf("invalid tokens should be ignored on logout: %v", err)
	}
}
