package config

import (
	"slices"
	"strings"

	domainauth "github.com/target/gatehouse/internal/domain/auth"
	apperrors "github.com/target/gatehouse/internal/errors"
)

// AuthConfig groups identity resolution settings.
type AuthConfig struct {
	// LocalEnabled turns on the local developer identity for loopback requests.
	LocalEnabled bool `env:"LOCAL_ENABLED" envDefault:"false"`
	// LocalRole is the role forced onto the local developer identity.
	LocalRole domainauth.Role `env:"LOCAL_ROLE" envDefault:"admin"`

	AdminGroups  []string `env:"ADMIN_GROUPS"  envSeparator:";"`
	PublicGroups []string `env:"PUBLIC_GROUPS" envSeparator:";"`

	SSO  SSOConfig  `envPrefix:"SSO_"`
	OIDC OIDCConfig `envPrefix:"OIDC_"`
}

// SSOConfig names the session keys an upstream SSO layer writes.
type SSOConfig struct {
	ProfileKey string `env:"PROFILE_KEY" envDefault:"Profile"`
	GroupsKey  string `env:"GROUPS_KEY"  envDefault:"GroupsDisplayName"`
	// GroupsExpr is an optional JMESPath expression selecting extra groups
	// from the profile, e.g. "memberOf[].cn".
	GroupsExpr string `env:"GROUPS_EXPR"`
}

// OIDCConfig enables importing a verified upstream ID token into the session.
type OIDCConfig struct {
	Enabled      bool   `env:"ENABLED"       envDefault:"false"`
	ClientID     string `env:"CLIENT_ID"`
	DiscoveryURL string `env:"DISCOVERY_URL"`
	// TokenHeader carries the raw ID token, optionally as "Bearer <token>".
	TokenHeader string `env:"TOKEN_HEADER" envDefault:"Authorization"`
}

// Validate checks that an enabled importer can reach its provider.
func (c *OIDCConfig) Validate() error {
	if !c.Enabled {
		return nil
	}
	if c.ClientID == "" || c.DiscoveryURL == "" {
		return apperrors.ValidationField("AUTH_OIDC_ENABLED", "AUTH_OIDC_ENABLED requires AUTH_OIDC_CLIENT_ID and AUTH_OIDC_DISCOVERY_URL")
	}
	return nil
}

// Sanitize trims group names and drops empty entries.
func (c *AuthConfig) Sanitize() {
	c.AdminGroups = cleanList(c.AdminGroups)
	c.PublicGroups = cleanList(c.PublicGroups)
	c.SSO.GroupsExpr = strings.TrimSpace(c.SSO.GroupsExpr)
	c.OIDC.ClientID = strings.TrimSpace(c.OIDC.ClientID)
	c.OIDC.DiscoveryURL = strings.TrimSpace(c.OIDC.DiscoveryURL)
	if c.LocalRole == "" {
		c.LocalRole = domainauth.RoleAdmin
	}
}

// Authorization returns the domain policy derived from this configuration.
func (c *AuthConfig) Authorization() domainauth.AuthorizationConfig {
	return domainauth.AuthorizationConfig{
		LocalAuthEnabled: c.LocalEnabled,
		LocalForcedRole:  c.LocalRole,
		AdminGroups:      slices.Clone(c.AdminGroups),
		PublicGroups:     slices.Clone(c.PublicGroups),
	}
}

// OverlappingGroups returns groups present in both lists. Matching is exact,
// as in role derivation.
func (c *AuthConfig) OverlappingGroups() []string {
	var out []string
	for _, g := range c.PublicGroups {
		if slices.Contains(c.AdminGroups, g) {
			out = append(out, g)
		}
	}
	return out
}

func cleanList(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
