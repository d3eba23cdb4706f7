package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/target/gatehouse/internal/adapters/authroles"
	"github.com/target/gatehouse/internal/adapters/devauth"
	"github.com/target/gatehouse/internal/adapters/sso"
	domainauth "github.com/target/gatehouse/internal/domain/auth"
	authmocks "github.com/target/gatehouse/internal/mocks/auth"
	"github.com/target/gatehouse/internal/ports"
)

func TestIdentityChain_FirstSupportingResolverWins(t *testing.T) {
	skipped := &authmocks.StubResolver{ResolverName: "first"}
	winner := &authmocks.StubResolver{
		ResolverName: "second",
		Supported:    true,
		Identity:     domainauth.SSOIdentity(domainauth.RolePublic, "u1", "", ""),
	}
	never := &authmocks.StubResolver{ResolverName: "third", Supported: true}

	chain := NewIdentityChain(IdentityChainOptions{Resolvers: []ports.IdentityResolver{skipped, winner, never}})
	id := chain.Resolve(context.Background(), ports.ResolveInput{})

	assert.Equal(t, "u1", id.ID)
	assert.Equal(t, 1, skipped.SupportsCalls)
	assert.Zero(t, skipped.ResolveCalls)
	assert.Equal(t, 1, winner.ResolveCalls)
	assert.Zero(t, never.SupportsCalls)
}

func TestIdentityChain_FallsBackToGuest(t *testing.T) {
	chain := NewIdentityChain(IdentityChainOptions{
		Resolvers: []ports.IdentityResolver{nil, &authmocks.StubResolver{}},
	})
	ac := chain.ResolveContext(context.Background(), ports.ResolveInput{})

	assert.Equal(t, domainauth.RoleGuest, ac.Role())
	assert.Equal(t, domainauth.SourceGuest, ac.Identity().Source)
	assert.True(t, ac.IsAllowed())
	assert.False(t, ac.IsAuthenticated())
}

func newDefaultChain(t *testing.T, localEnabled bool) *IdentityChain {
	t.Helper()
	cfg := domainauth.AuthorizationConfig{
		LocalAuthEnabled: localEnabled,
		LocalForcedRole:  domainauth.RoleAdmin,
		AdminGroups:      []string{"APP-ADMINS"},
		PublicGroups:     []string{"APP-USERS"},
	}
	ssoResolver, err := sso.NewResolver(sso.Config{Mapper: authroles.GroupRoleMapper{Config: cfg}})
	require.NoError(t, err)
	return NewIdentityChain(IdentityChainOptions{
		Resolvers: []ports.IdentityResolver{
			devauth.NewResolver(devauth.Config{Enabled: cfg.LocalAuthEnabled, Role: cfg.LocalForcedRole}),
			ssoResolver,
		},
	})
}

func ssoSession(id string, groups ...string) authmocks.MapSession {
	g := map[string]any{}
	for _, name := range groups {
		g[name] = name + " display"
	}
	return authmocks.MapSession{
		sso.DefaultProfileKey: map[string]any{"id": id, "displayName": "User " + id, "mail": id + "@example.com"},
		sso.DefaultGroupsKey:  g,
	}
}

func TestIdentityChain_DefaultOrder(t *testing.T) {
	local := ports.Origin{Host: "localhost:8080", RemoteAddr: "127.0.0.1:5555"}
	remote := ports.Origin{Host: "app.example.com", RemoteAddr: "203.0.113.9:443"}

	tests := []struct {
		name         string
		localEnabled bool
		origin       ports.Origin
		session      ports.SessionReader
		wantRole     domainauth.Role
		wantSource   domainauth.Source
	}{
		{"local wins over sso", true, local, ssoSession("u1", "APP-USERS"), domainauth.RoleAdmin, domainauth.SourceLocal},
		{"local disabled falls to sso", false, local, ssoSession("u1", "APP-USERS"), domainauth.RolePublic, domainauth.SourceSSO},
		{"remote admin", true, remote, ssoSession("u2", "APP-USERS", "APP-ADMINS"), domainauth.RoleAdmin, domainauth.SourceSSO},
		{"remote no allowed group", true, remote, ssoSession("u3", "OTHER"), domainauth.RoleForbidden, domainauth.SourceForbidden},
		{"profile without id", true, remote, ssoSession("", "APP-ADMINS"), domainauth.RoleForbidden, domainauth.SourceForbidden},
		{"no profile", true, remote, authmocks.MapSession{}, domainauth.RoleGuest, domainauth.SourceGuest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			chain := newDefaultChain(t, tt.localEnabled)
			id := chain.Resolve(context.Background(), ports.ResolveInput{Origin: tt.origin, Session: tt.session})
			assert.Equal(t, tt.wantRole, id.Role)
			assert.Equal(t, tt.wantSource, id.Source)
		})
	}
}
