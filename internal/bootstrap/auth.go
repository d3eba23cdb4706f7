package bootstrap

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/target/gatehouse/config"
	"github.com/target/gatehouse/internal/adapters/authroles"
	"github.com/target/gatehouse/internal/adapters/devauth"
	"github.com/target/gatehouse/internal/adapters/oidc"
	"github.com/target/gatehouse/internal/adapters/sso"
	httpx "github.com/target/gatehouse/internal/http"
	"github.com/target/gatehouse/internal/ports"
	"github.com/target/gatehouse/internal/service"
)

// AuthConfig contains configuration for identity resolution.
type AuthConfig struct {
	Auth      config.AuthConfig
	Logger    *slog.Logger
	Telemetry service.IdentityTelemetry
}

// BuildIdentityChain wires the local, SSO and guest resolvers in priority order.
func BuildIdentityChain(cfg AuthConfig) (*service.IdentityChain, error) {
	authz := cfg.Auth.Authorization()

	ssoResolver, err := sso.NewResolver(sso.Config{
		ProfileKey: cfg.Auth.SSO.ProfileKey,
		GroupsKey:  cfg.Auth.SSO.GroupsKey,
		GroupsExpr: cfg.Auth.SSO.GroupsExpr,
		Mapper:     authroles.GroupRoleMapper{Config: authz},
		Logger:     cfg.Logger,
	})
	if err != nil {
		return nil, fmt.Errorf("build sso resolver: %w", err)
	}

	if authz.LocalAuthEnabled && cfg.Logger != nil {
		cfg.Logger.Warn("local developer identity enabled for loopback requests", "role", authz.LocalForcedRole)
	}

	return service.NewIdentityChain(service.IdentityChainOptions{
		Resolvers: []ports.IdentityResolver{
			devauth.NewResolver(devauth.Config{
				Enabled: authz.LocalAuthEnabled,
				Role:    authz.LocalForcedRole,
				Logger:  cfg.Logger,
			}),
			ssoResolver,
		},
		Logger:    cfg.Logger,
		Telemetry: cfg.Telemetry,
	}), nil
}

// BuildSSOImporter returns nil when ID-token import is disabled.
func BuildSSOImporter(ctx context.Context, cfg AuthConfig) (*httpx.SSOImporter, error) {
	if !cfg.Auth.OIDC.Enabled {
		return nil, nil
	}
	verifier, err := oidc.NewProfileVerifier(ctx, oidc.VerifierConfig{
		ClientID:     cfg.Auth.OIDC.ClientID,
		DiscoveryURL: cfg.Auth.OIDC.DiscoveryURL,
	})
	if err != nil {
		return nil, fmt.Errorf("build oidc verifier: %w", err)
	}
	if cfg.Logger != nil {
		cfg.Logger.InfoContext(ctx, "SSO token import enabled", "header", cfg.Auth.OIDC.TokenHeader)
	}
	return NewSSOImporter(verifier, cfg), nil
}

// NewSSOImporter wires verifier to the configured session keys.
func NewSSOImporter(verifier ports.ProfileVerifier, cfg AuthConfig) *httpx.SSOImporter {
	return httpx.NewSSOImporter(httpx.SSOImportConfig{
		Verifier: verifier,
		Keys: httpx.SSOSessionKeys{
			Header:     cfg.Auth.OIDC.TokenHeader,
			ProfileKey: cfg.Auth.SSO.ProfileKey,
			GroupsKey:  cfg.Auth.SSO.GroupsKey,
		},
		Logger: cfg.Logger,
	})
}
