package httpx

import (
	"context"

	domainauth "github.com/target/gatehouse/internal/domain/auth"
)

// authKey is an unexported context key type to avoid collisions across packages.
// Centralized in this file so all handlers/middleware use the same key.
type authKey struct{}

// SetAuthInContext returns a child context that carries the resolved AuthContext.
func SetAuthInContext(ctx context.Context, auth domainauth.AuthContext) context.Context {
	return context.WithValue(ctx, authKey{}, auth)
}

// GetAuthFromContext returns the AuthContext and a boolean indicating presence.
func GetAuthFromContext(ctx context.Context) (domainauth.AuthContext, bool) {
	auth, ok := ctx.Value(authKey{}).(domainauth.AuthContext)
	return auth, ok
}

// AuthFromContext returns the AuthContext, or a guest context when identity
// resolution has not run.
func AuthFromContext(ctx context.Context) domainauth.AuthContext {
	if auth, ok := GetAuthFromContext(ctx); ok {
		return auth
	}
	return domainauth.NewAuthContext(domainauth.GuestIdentity())
}

// IsAdminRequest reports whether the current request belongs to an administrator.
func IsAdminRequest(ctx context.Context) bool {
	return AuthFromContext(ctx).IsAdmin()
}
