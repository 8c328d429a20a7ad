package auth

import (
	"context"

	"github.com/prn-tf/bugtracker/internal/domain"
	"github.com/prn-tf/bugtracker/internal/session"
)

// =============================================================================
// Context Types
// =============================================================================

// AuthContext is the request-scoped session state attached by Middleware.
type AuthContext struct {
	// Principal is nil for anonymous requests.
	Principal *domain.Principal

	// Token is the session token presented by the client, if any.
	Token string

	// Session is the loaded session data. Never nil inside Middleware.
	Session *session.Data
}

// authContextKey is the context key for AuthContext.
type authContextKey struct{}

// AuthContextKey is the key used to store AuthContext in request context.
var AuthContextKey = authContextKey{}

// WithAuthContext returns a copy of ctx carrying ac.
func WithAuthContext(ctx context.Context, ac *AuthContext) context.Context {
	return context.WithValue(ctx, AuthContextKey, ac)
}

// GetAuthContext retrieves the AuthContext from a request context.
func GetAuthContext(ctx context.Context) *AuthContext {
	if authCtx, ok := ctx.Value(AuthContextKey).(*AuthContext); ok {
		return authCtx
	}
	return nil
}

// PrincipalFrom returns the request principal, or nil when anonymous.
func PrincipalFrom(ctx context.Context) *domain.Principal {
	if ac := GetAuthContext(ctx); ac != nil {
		return ac.Principal
	}
	return nil
}

// RequirePrincipal returns the request principal or ErrNotAuthenticated.
func RequirePrincipal(ctx context.Context) (*domain.Principal, error) {
	p := PrincipalFrom(ctx)
	if !p.IsAuthenticated() {
		return nil, ErrNotAuthenticated
	}
	return p, nil
}
