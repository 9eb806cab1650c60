// Package auth resolves the authenticated identity attached to a request by
// the external identity provider. The server trusts the provider's claims
// and never re-validates plan or role on its own.
package auth

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// Plan is the entitlement tier the identity provider reports.
type Plan string

const (
	PlanFree    Plan = "free"
	PlanPremium Plan = "premium"
)

// Role gates administrative operations.
type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// Identity is the actor threaded explicitly through every service call.
type Identity struct {
	UserID string
	Plan   Plan
	Role   Role
}

// Premium reports whether the actor is on the paid plan.
func (i Identity) Premium() bool { return i.Plan == PlanPremium }

// Admin reports whether the actor may perform administrative transitions.
func (i Identity) Admin() bool { return i.Role == RoleAdmin }

// ErrUnauthenticated signals a missing or invalid bearer token.
var ErrUnauthenticated = errors.New("unauthenticated")

// Provider extracts the identity from an incoming request.
type Provider interface {
	Authenticate(r *http.Request) (Identity, error)
}

// JWTProvider parses HS256 bearer tokens minted by the identity provider.
// Claims: sub (user id), plan (free|premium), role (user|admin).
type JWTProvider struct {
	secret []byte
}

// NewJWTProvider builds a provider around the shared signing secret.
func NewJWTProvider(secret string) *JWTProvider {
	return &JWTProvider{secret: []byte(secret)}
}

// Authenticate implements Provider.
func (p *JWTProvider) Authenticate(r *http.Request) (Identity, error) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return Identity{}, ErrUnauthenticated
	}
	tokenStr, ok := strings.CutPrefix(header, "Bearer ")
	if !ok {
		return Identity{}, ErrUnauthenticated
	}

	claims := jwt.MapClaims{}
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (any, error) {
		return p.secret, nil
	}, jwt.WithValidMethods([]string{"HS256"}))
	if err != nil {
		return Identity{}, fmt.Errorf("%w: %w", ErrUnauthenticated, err)
	}
	if !token.Valid {
		return Identity{}, ErrUnauthenticated
	}

	sub, err := claims.GetSubject()
	if err != nil || sub == "" {
		return Identity{}, ErrUnauthenticated
	}

	identity := Identity{UserID: sub, Plan: PlanFree, Role: RoleUser}
	if plan, ok := claims["plan"].(string); ok && Plan(plan) == PlanPremium {
		identity.Plan = PlanPremium
	}
	if role, ok := claims["role"].(string); ok && Role(role) == RoleAdmin {
		identity.Role = RoleAdmin
	}
	return identity, nil
}
