package devauth

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	domainauth "github.com/target/gatehouse/internal/domain/auth"
	"github.com/target/gatehouse/internal/ports"
)

func TestIsLocalOrigin(t *testing.T) {
	tests := []struct {
		name   string
		origin ports.Origin
		want   bool
	}{
		{"localhost", ports.Origin{Host: "localhost"}, true},
		{"localhost with port", ports.Origin{Host: "LOCALHOST:8080"}, true},
		{"ipv4 loopback host", ports.Origin{Host: "127.0.0.1:443"}, true},
		{"ipv6 loopback host bracketed", ports.Origin{Host: "[::1]:8080"}, true},
		{"ipv6 loopback bare", ports.Origin{Host: "::1"}, true},
		{"remote loopback v4", ports.Origin{Host: "intranet.example.com", RemoteAddr: "127.0.0.1:51234"}, true},
		{"remote loopback v6", ports.Origin{Host: "intranet.example.com", RemoteAddr: "[::1]:51234"}, true},
		{"remote host", ports.Origin{Host: "intranet.example.com", RemoteAddr: "10.1.2.3:5555"}, false},
		{"lookalike host", ports.Origin{Host: "localhost.example.com"}, false},
		{"empty", ports.Origin{}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsLocalOrigin(tt.origin))
		})
	}
}

func TestResolver_Supports(t *testing.T) {
	local := ports.ResolveInput{Origin: ports.Origin{Host: "localhost"}}
	remote := ports.ResolveInput{Origin: ports.Origin{Host: "app.example.com", RemoteAddr: "10.0.0.1:1"}}

	enabled := NewResolver(Config{Enabled: true, Role: domainauth.RolePublic})
	assert.True(t, enabled.Supports(context.Background(), local))
	assert.False(t, enabled.Supports(context.Background(), remote))

	disabled := NewResolver(Config{Enabled: false})
	assert.False(t, disabled.Supports(context.Background(), local))
}

func TestResolver_ResolveUsesForcedRole(t *testing.T) {
	for _, role := range []domainauth.Role{domainauth.RoleAdmin, domainauth.RolePublic, domainauth.RoleGuest} {
		r := NewResolver(Config{Enabled: true, Role: role})
		id := r.Resolve(context.Background(), ports.ResolveInput{})
		assert.Equal(t, role, id.Role)
		assert.Equal(t, "local", id.ID)
		assert.Equal(t, "Local Developer", id.Name)
		assert.True(t, id.Authenticated)
		assert.Equal(t, domainauth.SourceLocal, id.Source)
	}
}

func TestResolver_DefaultRoleIsAdmin(t *testing.T) {
	r := NewResolver(Config{Enabled: true})
	assert.Equal(t, domainauth.RoleAdmin, r.Resolve(context.Background(), ports.ResolveInput{}).Role)
}
