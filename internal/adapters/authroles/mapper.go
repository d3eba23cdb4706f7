package authroles

// Package authroles maps identity-provider groups onto application roles.

import (
	"slices"

	domainauth "github.com/target/gatehouse/internal/domain/auth"
)

// DeriveRole returns Admin if any group exactly matches an admin group, else
// Public if any group matches a public group, else Forbidden.
// Matching is case-sensitive and admin membership always wins.
func DeriveRole(groups []string, cfg domainauth.AuthorizationConfig) domainauth.Role {
	if matchesAny(groups, cfg.AdminGroups) {
		return domainauth.RoleAdmin
	}
	if matchesAny(groups, cfg.PublicGroups) {
		return domainauth.RolePublic
	}
	return domainauth.RoleForbidden
}

func matchesAny(groups, allowed []string) bool {
	for _, g := range groups {
		if g != "" && slices.Contains(allowed, g) {
			return true
		}
	}
	return false
}

// GroupRoleMapper adapts DeriveRole to ports.RoleMapper.
type GroupRoleMapper struct {
	Config domainauth.AuthorizationConfig
}

// Map implements ports.RoleMapper.
func (m GroupRoleMapper) Map(groups []string) domainauth.Role {
	return DeriveRole(groups, m.Config)
}
