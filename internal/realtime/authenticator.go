package realtime

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrUnauthenticated means the upgrade request carries no valid session.
	ErrUnauthenticated = errors.New("unauthenticated")
	// ErrNoTenant means the user exists but cannot be mapped to a tenant.
	ErrNoTenant = errors.New("no tenant for user")
)

// SessionResolver maps a request's session credential to a user id.
type SessionResolver interface {
	ResolveSession(r *http.Request) (string, error)
}

// TenantResolver maps a user id to the tenant that owns its data.
type TenantResolver interface {
	ResolveTenant(ctx context.Context, userID string) (string, error)
}

// SessionResolverFunc adapts a function to SessionResolver.
type SessionResolverFunc func(r *http.Request) (string, error)

func (f SessionResolverFunc) ResolveSession(r *http.Request) (string, error) { return f(r) }

// TenantResolverFunc adapts a function to TenantResolver.
type TenantResolverFunc func(ctx context.Context, userID string) (string, error)

func (f TenantResolverFunc) ResolveTenant(ctx context.Context, userID string) (string, error) {
	return f(ctx, userID)
}

// Identity is who an accepted connection belongs to.
type Identity struct {
	UserID   string
	TenantID string
}

// Authenticator resolves an upgrade request to an Identity.
type Authenticator struct {
	sessions SessionResolver
	tenants  TenantResolver
}

func NewAuthenticator(sessions SessionResolver, tenants TenantResolver) *Authenticator {
	return &Authenticator{sessions: sessions, tenants: tenants}
}

// Authenticate returns an error wrapping ErrUnauthenticated or ErrNoTenant on failure.
func (a *Authenticator) Authenticate(r *http.Request) (Identity, error) {
	userID, err := a.sessions.ResolveSession(r)
	if err != nil {
		return Identity{}, fmt.Errorf("%w: %v", ErrUnauthenticated, err)
	}
	if userID == "" {
		return Identity{}, ErrUnauthenticated
	}

	tenantID, err := a.tenants.ResolveTenant(r.Context(), userID)
	if err != nil {
		return Identity{}, fmt.Errorf("%w: %v", ErrNoTenant, err)
	}
	if tenantID == "" {
		return Identity{}, ErrNoTenant
	}
	return Identity{UserID: userID, TenantID: tenantID}, nil
}
