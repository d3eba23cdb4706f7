package sso

// Package sso resolves identities from an SSO profile that an upstream
// component has already stored in the session.

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"slices"
	"strconv"
	"strings"

	jmespath "github.com/jmespath-community/go-jmespath"

	domainauth "github.com/target/gatehouse/internal/domain/auth"
	"github.com/target/gatehouse/internal/observability/logging"
	"github.com/target/gatehouse/internal/ports"
)

// Default session keys written by the SSO front end.
const (
	DefaultProfileKey = "Profile"
	DefaultGroupsKey  = "GroupsDisplayName"
)

// Config controls how the profile and groups are read from the session.
type Config struct {
	ProfileKey string
	GroupsKey  string
	// GroupsExpr is an optional JMESPath expression evaluated against the
	// profile; string results are merged into the group set.
	GroupsExpr string
	Mapper     ports.RoleMapper
	Logger     *slog.Logger
}

// Resolver implements ports.IdentityResolver for SSO sessions.
type Resolver struct {
	profileKey string
	groupsKey  string
	groupsExpr string
	mapper     ports.RoleMapper
	logger     *slog.Logger
}

var _ ports.IdentityResolver = (*Resolver)(nil)

// NewResolver validates cfg and constructs a Resolver.
func NewResolver(cfg Config) (*Resolver, error) {
	if cfg.Mapper == nil {
		return nil, fmt.Errorf("sso: role mapper is required")
	}
	expr := strings.TrimSpace(cfg.GroupsExpr)
	if expr != "" {
		if _, err := jmespath.Compile(expr); err != nil {
			return nil, fmt.Errorf("sso: invalid groups expression: %w", err)
		}
	}
	r := &Resolver{
		profileKey: cfg.ProfileKey,
		groupsKey:  cfg.GroupsKey,
		groupsExpr: expr,
		mapper:     cfg.Mapper,
		logger:     logging.Channel(cfg.Logger, logging.ChannelAuth),
	}
	if r.profileKey == "" {
		r.profileKey = DefaultProfileKey
	}
	if r.groupsKey == "" {
		r.groupsKey = DefaultGroupsKey
	}
	return r, nil
}

func (r *Resolver) Name() string { return string(domainauth.SourceSSO) }

// Supports reports whether the session holds a structured SSO profile.
func (r *Resolver) Supports(_ context.Context, in ports.ResolveInput) bool {
	_, ok := r.profile(in.Session)
	return ok
}

// Resolve maps the stored profile to an Identity. A profile without an id, or
// whose groups grant no role, yields a forbidden identity.
func (r *Resolver) Resolve(ctx context.Context, in ports.ResolveInput) domainauth.Identity {
	profile, ok := r.profile(in.Session)
	if !ok {
		return domainauth.ForbiddenIdentity("", "", "")
	}

	id := stringField(profile, "id")
	name := firstNonEmpty(stringField(profile, "displayName"), stringField(profile, "name"))
	email := firstNonEmpty(stringField(profile, "mail"), stringField(profile, "email"))

	if id == "" {
		r.logger.WarnContext(ctx, "SSO profile found but missing id")
		return domainauth.ForbiddenIdentity("", "", "")
	}

	role := r.mapper.Map(r.groups(ctx, in.Session, profile))
	if role == domainauth.RoleForbidden {
		r.logger.WarnContext(ctx, "SSO user not in any allowed group", "user_id", id, "email", email)
		return domainauth.ForbiddenIdentity(id, name, email)
	}

	r.logger.InfoContext(ctx, "SSO user authenticated", "user_id", id, "role", role)
	return domainauth.SSOIdentity(role, id, name, email)
}

func (r *Resolver) profile(s ports.SessionReader) (map[string]any, bool) {
	if s == nil {
		return nil, false
	}
	v, err := s.Get(r.profileKey)
	if err != nil {
		return nil, false
	}
	profile, ok := v.(map[string]any)
	return profile, ok
}

// groups returns the sorted, de-duplicated union of the session group map keys
// and any groups selected by the configured expression.
func (r *Resolver) groups(ctx context.Context, s ports.SessionReader, profile map[string]any) []string {
	var out []string
	if v, err := s.Get(r.groupsKey); err == nil {
		if m, ok := v.(map[string]any); ok {
			for k := range m {
				out = append(out, k)
			}
		}
	}

	if r.groupsExpr != "" {
		res, err := jmespath.Search(r.groupsExpr, profile)
		if err != nil {
			r.logger.WarnContext(ctx, "SSO groups expression failed", "error", err)
		} else {
			out = append(out, stringList(res)...)
		}
	}

	slices.Sort(out)
	return slices.Compact(out)
}

func stringList(v any) []string {
	switch t := v.(type) {
	case string:
		return []string{t}
	case []string:
		return t
	case []any:
		out := make([]string, 0, len(t))
		for _, item := range t {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}

// stringField renders a scalar profile value as text. Numbers arrive as
// float64 or json.Number after the session JSON round trip; true renders as
// "1" and false as empty. Non-scalars count as missing.
func stringField(m map[string]any, key string) string {
	var s string
	switch v := m[key].(type) {
	case string:
		s = v
	case float64:
		s = strconv.FormatFloat(v, 'f', -1, 64)
	case json.Number:
		s = v.String()
	case int:
		s = strconv.Itoa(v)
	case int64:
		s = strconv.FormatInt(v, 10)
	case bool:
		if v {
			s = "1"
		}
	}
	return strings.TrimSpace(s)
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
