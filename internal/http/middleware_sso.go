package httpx

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"strings"

	"github.com/target/gatehouse/internal/adapters/sso"
	"github.com/target/gatehouse/internal/observability/logging"
	"github.com/target/gatehouse/internal/ports"
)

// DefaultSSOTokenHeader carries the upstream ID token, optionally as "Bearer <token>".
const DefaultSSOTokenHeader = "Authorization"

// ssoTokenKey holds a digest of the last imported token so unchanged tokens
// are not re-verified on every request.
const ssoTokenKey = "__sso_token__"

// SSOImportConfig holds configuration for SSOImporter.
type SSOImportConfig struct {
	Verifier ports.ProfileVerifier // Required
	Keys     SSOSessionKeys
	Logger   *slog.Logger
}

// SSOSessionKeys names the session keys the SSO resolver reads.
type SSOSessionKeys struct {
	Header     string
	ProfileKey string
	GroupsKey  string
}

// SSOImporter verifies an upstream ID token and stores the resulting profile
// and groups in the session, where the SSO identity resolver picks them up.
type SSOImporter struct {
	verifier ports.ProfileVerifier
	keys     SSOSessionKeys
	logger   *slog.Logger
}

// NewSSOImporter constructs an SSOImporter. It panics without a verifier.
func NewSSOImporter(cfg SSOImportConfig) *SSOImporter {
	if cfg.Verifier == nil {
		panic("sso importer: verifier is required")
	}
	keys := cfg.Keys
	if keys.Header == "" {
		keys.Header = DefaultSSOTokenHeader
	}
	if keys.ProfileKey == "" {
		keys.ProfileKey = sso.DefaultProfileKey
	}
	if keys.GroupsKey == "" {
		keys.GroupsKey = sso.DefaultGroupsKey
	}
	return &SSOImporter{verifier: cfg.Verifier, keys: keys, logger: logging.Channel(cfg.Logger, logging.ChannelAuth)}
}

// Import runs before identity resolution. A rejected token leaves the session
// untouched; only infrastructure failures are returned.
func (i *SSOImporter) Import(ctx context.Context, req ports.RequestView, sess ports.Session) error {
	raw := bearerToken(req.Header(i.keys.Header))
	if raw == "" || !sess.Started() {
		return nil
	}
	digest := tokenDigest(raw)
	if prev, err := sess.Get(ssoTokenKey); err == nil && prev == digest {
		return nil
	}

	profile, groups, err := i.verifier.Verify(ctx, raw)
	if err != nil {
		i.logger.WarnContext(ctx, "SSO token rejected", "error", err)
		return nil
	}

	// A new principal gets a new session id.
	if err := sess.Regenerate(ctx); err != nil {
		return err
	}
	for key, value := range map[string]any{
		i.keys.ProfileKey: profile,
		i.keys.GroupsKey:  groups,
		ssoTokenKey:       digest,
	} {
		if err := sess.Set(ctx, key, value); err != nil {
			return err
		}
	}
	i.logger.InfoContext(ctx, "SSO profile imported", "user_id", profile["id"])
	return nil
}

func bearerToken(header string) string {
	header = strings.TrimSpace(header)
	if len(header) > 7 && strings.EqualFold(header[:7], "bearer ") {
		return strings.TrimSpace(header[7:])
	}
	return header
}

func tokenDigest(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}
