package oidc

// Package oidc verifies upstream-issued OIDC ID tokens and converts their
// claims into the SSO profile shape stored in the session.

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	gooidc "github.com/coreos/go-oidc/v3/oidc"
	"golang.org/x/oauth2"

	"github.com/target/gatehouse/internal/ports"
)

// VerifierConfig holds configuration for the ID token verifier.
type VerifierConfig struct {
	ClientID     string
	DiscoveryURL string
	HTTPClient   *http.Client // Optional, defaults to a client with a 30s timeout
}

// ProfileVerifier implements ports.ProfileVerifier using go-oidc.
type ProfileVerifier struct {
	verifier   *gooidc.IDTokenVerifier
	httpClient *http.Client
}

var _ ports.ProfileVerifier = (*ProfileVerifier)(nil)

// NewProfileVerifier performs discovery against the issuer and builds a verifier.
func NewProfileVerifier(ctx context.Context, config VerifierConfig) (*ProfileVerifier, error) {
	if config.ClientID == "" {
		return nil, errors.New("client ID is required")
	}
	if config.DiscoveryURL == "" {
		return nil, errors.New("discovery URL is required")
	}

	httpClient := config.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}

	ctx = context.WithValue(ctx, oauth2.HTTPClient, httpClient)
	op, err := gooidc.NewProvider(ctx, issuerFromDiscoveryURL(config.DiscoveryURL))
	if err != nil {
		return nil, fmt.Errorf("oidc new provider: %w", err)
	}

	return &ProfileVerifier{
		verifier:   op.Verifier(&gooidc.Config{ClientID: config.ClientID}),
		httpClient: httpClient,
	}, nil
}

// NewProfileVerifierWithKeySet builds a verifier without discovery.
func NewProfileVerifierWithKeySet(issuer, clientID string, keySet gooidc.KeySet, now func() time.Time) *ProfileVerifier {
	cfg := &gooidc.Config{ClientID: clientID}
	if now != nil {
		cfg.Now = now
	}
	return &ProfileVerifier{
		verifier:   gooidc.NewVerifier(issuer, keySet, cfg),
		httpClient: http.DefaultClient,
	}
}

// Verify checks signature, issuer, audience and expiry, then maps the claims.
// The returned groups map mirrors the display-name map an SSO front end stores.
func (p *ProfileVerifier) Verify(ctx context.Context, rawIDToken string) (map[string]any, map[string]any, error) {
	rawIDToken = strings.TrimSpace(rawIDToken)
	if rawIDToken == "" {
		return nil, nil, errors.New("id token is required")
	}

	ctx = gooidc.ClientContext(ctx, p.httpClient)
	idTok, err := p.verifier.Verify(ctx, rawIDToken)
	if err != nil {
		return nil, nil, fmt.Errorf("verify id_token: %w", err)
	}

	var claims idTokenADClaims
	if claimsErr := idTok.Claims(&claims); claimsErr != nil {
		return nil, nil, fmt.Errorf("parse id_token claims: %w", claimsErr)
	}

	profile, groups := mapIDTokenClaims(claims)
	return profile, groups, nil
}

func issuerFromDiscoveryURL(u string) string {
	issuer := strings.TrimSuffix(u, "/")
	issuer = strings.TrimSuffix(issuer, "/.well-known/openid-configuration")
	return strings.TrimSuffix(issuer, ".well-known/openid-configuration")
}

// idTokenADClaims represents a superset of OIDC and AD/ADFS claim shapes.
type idTokenADClaims struct {
	Sub            string   `json:"sub"`
	SamAccountName string   `json:"samaccountname"`
	FirstName      string   `json:"firstname"`
	LastName       string   `json:"lastname"`
	Name           string   `json:"name"`
	Mail           string   `json:"mail"`
	Email          string   `json:"email"`
	MemberOf       []string `json:"memberof"`
	Groups         []string `json:"groups"`
}

// mapIDTokenClaims maps raw id token claims into the session profile and
// group payloads using precedence rules.
func mapIDTokenClaims(c idTokenADClaims) (map[string]any, map[string]any) {
	profile := map[string]any{
		"id": firstNonEmpty(c.SamAccountName, c.Sub),
	}
	if display := strings.TrimSpace(c.FirstName + " " + c.LastName); display != "" {
		profile["displayName"] = display
	}
	if c.Name != "" {
		profile["name"] = c.Name
	}
	if email := firstNonEmpty(c.Mail, c.Email); email != "" {
		profile["mail"] = email
	}

	groups := map[string]any{}
	for _, g := range append(append([]string(nil), c.MemberOf...), c.Groups...) {
		if g = strings.TrimSpace(g); g != "" {
			groups[g] = g
		}
	}
	return profile, groups
}

// firstNonEmpty returns the first non-empty string from vals, or empty string if none.
func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
