package auth

// Package auth contains simple hand-written test doubles for auth ports.
// These are lightweight and suitable for unit tests without codegen.

import (
	"context"
	"errors"
	"maps"

	domainauth "github.com/target/gatehouse/internal/domain/auth"
	"github.com/target/gatehouse/internal/ports"
)

// Ensure compile-time conformance to ports.
var (
	_ ports.IdentityResolver = (*StubResolver)(nil)
	_ ports.SessionReader    = MapSession(nil)
	_ ports.RoleMapper       = (*StaticRoleMapper)(nil)
	_ ports.ProfileVerifier  = (*StubVerifier)(nil)
)

// StubResolver is an IdentityResolver with fixed answers. It records how often
// it was consulted.
type StubResolver struct {
	ResolverName string
	Supported    bool
	Identity     domainauth.Identity

	SupportsCalls int
	ResolveCalls  int
}

func (s *StubResolver) Name() string {
	if s.ResolverName == "" {
		return "stub"
	}
	return s.ResolverName
}

func (s *StubResolver) Supports(_ context.Context, _ ports.ResolveInput) bool {
	s.SupportsCalls++
	return s.Supported
}

func (s *StubResolver) Resolve(_ context.Context, _ ports.ResolveInput) domainauth.Identity {
	s.ResolveCalls++
	return s.Identity
}

// MapSession is a read-only session backed by a plain map.
type MapSession map[string]any

func (m MapSession) Get(key string) (any, error) { return m[key], nil }

func (m MapSession) Has(key string) (bool, error) {
	_, ok := m[key]
	return ok, nil
}

// StaticRoleMapper returns a fixed role for any non-empty groups slice.
type StaticRoleMapper struct {
	Role domainauth.Role
}

func (m StaticRoleMapper) Map(groups []string) domainauth.Role {
	if len(groups) == 0 {
		return domainauth.RoleForbidden
	}
	return m.Role
}

// ErrInvalidToken is returned by StubVerifier for unknown tokens.
var ErrInvalidToken = errors.New("invalid id token")

// StubVerifier maps raw tokens to canned profile payloads.
type StubVerifier struct {
	Tokens map[string]StubProfile
}

// StubProfile is the payload StubVerifier returns for one token.
type StubProfile struct {
	Profile map[string]any
	Groups  map[string]any
}

func (v *StubVerifier) Verify(_ context.Context, raw string) (map[string]any, map[string]any, error) {
	p, ok := v.Tokens[raw]
	if !ok {
		return nil, nil, ErrInvalidToken
	}
	return maps.Clone(p.Profile), maps.Clone(p.Groups), nil
}
