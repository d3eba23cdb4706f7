package ports

// Package ports defines interfaces (hexagonal ports) for auth-related behavior.
// Implementations live in internal/adapters; orchestration in internal/service.

import (
	"context"

	domainauth "github.com/target/gatehouse/internal/domain/auth"
)

// RoleMapper maps provider groups to application roles.
type RoleMapper interface {
	Map(groups []string) domainauth.Role
}

// Origin carries the request attributes used to decide whether a caller is local.
type Origin struct {
	Host       string
	RemoteAddr string
}

// ResolveInput is the ambient request state visible to identity resolvers.
type ResolveInput struct {
	Origin  Origin
	Session SessionReader
}

// IdentityResolver produces an Identity from ambient request state.
// Resolve is only called after Supports returned true and must not fail.
type IdentityResolver interface {
	Name() string
	Supports(ctx context.Context, in ResolveInput) bool
	Resolve(ctx context.Context, in ResolveInput) domainauth.Identity
}

// ProfileVerifier turns an upstream credential into the SSO profile and group
// payloads stored in the session.
type ProfileVerifier interface {
	Verify(ctx context.Context, rawIDToken string) (profile map[string]any, groups map[string]any, err error)
}
