package auth

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const testSecret = "signing-secret"

func mintToken(t *testing.T, secret string, claims jwt.MapClaims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return signed
}

func requestWithToken(token string) *http.Request {
	r := httptest.NewRequest(http.MethodGet, "/listings/user", nil)
	r.Header.Set("Authorization", "Bearer "+token)
	return r
}

func TestAuthenticate(t *testing.T) {
	provider := NewJWTProvider(testSecret)

	token := mintToken(t, testSecret, jwt.MapClaims{
		"sub":  "user_1",
		"plan": "premium",
		"role": "admin",
		"exp":  time.Now().Add(time.Hour).Unix(),
	})

	identity, err := provider.Authenticate(requestWithToken(token))
	if err != nil {
		t.Fatalf("authenticate: %v", err)
	}
	if identity.UserID != "user_1" {
		t.Fatalf("expected user_1, got %s", identity.UserID)
	}
	if !identity.Premium() || !identity.Admin() {
		t.Fatalf("expected premium admin, got %+v", identity)
	}
}

func TestAuthenticateDefaultsPlanAndRole(t *testing.T) {
	provider := NewJWTProvider(testSecret)

	token := mintToken(t, testSecret, jwt.MapClaims{
		"sub": "user_2",
		"exp": time.Now().Add(time.Hour).Unix(),
	})

	identity, err := provider.Authenticate(requestWithToken(token))
	if err != nil {
		t.Fatalf("authenticate: %v", err)
	}
	if identity.Premium() || identity.Admin() {
		t.Fatalf("expected free user, got %+v", identity)
	}
}

func TestAuthenticateRejections(t *testing.T) {
	provider := NewJWTProvider(testSecret)

	// Missing header.
	if _, err := provider.Authenticate(httptest.NewRequest(http.MethodGet, "/", nil)); !errors.Is(err, ErrUnauthenticated) {
		t.Fatalf("expected unauthenticated, got %v", err)
	}

	// Wrong signing key.
	forged := mintToken(t, "other-secret", jwt.MapClaims{"sub": "user_3"})
	if _, err := provider.Authenticate(requestWithToken(forged)); !errors.Is(err, ErrUnauthenticated) {
		t.Fatalf("expected unauthenticated for forged token, got %v", err)
	}

	// Expired token.
	expired := mintToken(t, testSecret, jwt.MapClaims{
		"sub": "user_4",
		"exp": time.Now().Add(-time.Hour).Unix(),
	})
	if _, err := provider.Authenticate(requestWithToken(expired)); !errors.Is(err, ErrUnauthenticated) {
		t.Fatalf("expected unauthenticated for expired token, got %v", err)
	}

	// Missing subject.
	anonymous := mintToken(t, testSecret, jwt.MapClaims{"exp": time.Now().Add(time.Hour).Unix()})
	if _, err := provider.Authenticate(requestWithToken(anonymous)); !errors.Is(err, ErrUnauthenticated) {
		t.Fatalf("expected unauthenticated without subject, got %v", err)
	}
}
