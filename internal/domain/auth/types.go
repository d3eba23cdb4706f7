package auth

// Package auth contains domain-level types for identity and authorization.
// It is pure and free of framework/adapter concerns.

import (
	"fmt"
	"strings"
)

// Role represents an application's authorization role.
// Keep string form for easy configuration and logs.
// Valid values are defined as constants below.
type Role string

const (
	RoleAdmin     Role = "admin"
	RolePublic    Role = "public"
	RoleGuest     Role = "guest"
	RoleForbidden Role = "forbidden"
)

// ParseRole converts a case-insensitive role name into a Role.
func ParseRole(s string) (Role, error) {
	switch Role(strings.ToLower(strings.TrimSpace(s))) {
	case RoleAdmin:
		return RoleAdmin, nil
	case RolePublic:
		return RolePublic, nil
	case RoleGuest:
		return RoleGuest, nil
	case RoleForbidden:
		return RoleForbidden, nil
	default:
		return "", fmt.Errorf("unknown role %q", s)
	}
}

// UnmarshalText lets Role be parsed directly from environment variables.
func (r *Role) UnmarshalText(text []byte) error {
	parsed, err := ParseRole(string(text))
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}

// String implements fmt.Stringer.
func (r Role) String() string { return string(r) }

// IsAdmin reports whether r grants administrative access.
func (r Role) IsAdmin() bool {
	switch r {
	case RoleAdmin:
		return true
	case RolePublic, RoleGuest, RoleForbidden:
		return false
	default:
		return false
	}
}

// IsAtLeastPublic reports whether r may see public pages as a signed-in member.
func (r Role) IsAtLeastPublic() bool {
	switch r {
	case RoleAdmin, RolePublic:
		return true
	case RoleGuest, RoleForbidden:
		return false
	default:
		return false
	}
}

// Source names the resolver that produced an Identity.
type Source string

const (
	SourceLocal     Source = "local"
	SourceSSO       Source = "sso"
	SourceForbidden Source = "forbidden"
	SourceGuest     Source = "guest"
)

// LocalUserID is the fixed identifier of the local developer identity.
const LocalUserID = "local"

// LocalUserName is the display name of the local developer identity.
const LocalUserName = "Local Developer"

// Identity is the immutable result of identity resolution for one request.
// Empty strings mean the attribute is absent.
type Identity struct {
	ID            string
	Name          string
	Email         string
	Authenticated bool
	Role          Role
	Source        Source
}

// LocalIdentity returns the developer identity used for loopback requests.
func LocalIdentity(role Role) Identity {
	return Identity{
		ID:            LocalUserID,
		Name:          LocalUserName,
		Authenticated: true,
		Role:          role,
		Source:        SourceLocal,
	}
}

// SSOIdentity returns an identity established from an SSO profile.
func SSOIdentity(role Role, id, name, email string) Identity {
	return Identity{
		ID:            id,
		Name:          name,
		Email:         email,
		Authenticated: true,
		Role:          role,
		Source:        SourceSSO,
	}
}

// ForbiddenIdentity returns an identity that is recognised but not permitted.
// It counts as authenticated only when an id is known.
func ForbiddenIdentity(id, name, email string) Identity {
	return Identity{
		ID:            id,
		Name:          name,
		Email:         email,
		Authenticated: id != "",
		Role:          RoleForbidden,
		Source:        SourceForbidden,
	}
}

// GuestIdentity returns the anonymous fallback identity.
func GuestIdentity() Identity {
	return Identity{Role: RoleGuest, Source: SourceGuest}
}

// HasID reports whether the identity carries a user id.
func (i Identity) HasID() bool { return i.ID != "" }

// AuthContext is the request-scoped view of the resolved identity.
type AuthContext struct {
	identity Identity
}

// NewAuthContext wraps identity. The wrapped value is never replaced.
func NewAuthContext(identity Identity) AuthContext {
	return AuthContext{identity: identity}
}

func (a AuthContext) Identity() Identity    { return a.identity }
func (a AuthContext) Role() Role            { return a.identity.Role }
func (a AuthContext) IsAdmin() bool         { return a.identity.Role.IsAdmin() }
func (a AuthContext) IsForbidden() bool     { return a.identity.Role == RoleForbidden }
func (a AuthContext) IsAuthenticated() bool { return a.identity.Authenticated }

// IsAllowed reports whether the identity may use the application at all.
func (a AuthContext) IsAllowed() bool { return !a.IsForbidden() }

// AuthorizationConfig is the process-wide policy used by identity resolution.
// Treat as immutable after startup.
type AuthorizationConfig struct {
	LocalAuthEnabled bool
	LocalForcedRole  Role
	AdminGroups      []string
	PublicGroups     []string
}
