package devauth

// Package devauth resolves the fixed developer identity for requests that
// originate from the local machine.

import (
	"context"
	"log/slog"
	"net"
	"net/netip"
	"strings"

	domainauth "github.com/target/gatehouse/internal/domain/auth"
	"github.com/target/gatehouse/internal/observability/logging"
	"github.com/target/gatehouse/internal/ports"
)

var localHosts = map[string]struct{}{
	"localhost": {},
	"127.0.0.1": {},
	"::1":       {},
}

// Config controls the local resolver.
type Config struct {
	Enabled bool
	Role    domainauth.Role // role granted to local requests; defaults to admin
	Logger  *slog.Logger
}

// Resolver implements ports.IdentityResolver for local development.
type Resolver struct {
	enabled bool
	role    domainauth.Role
	logger  *slog.Logger
}

var _ ports.IdentityResolver = (*Resolver)(nil)

// NewResolver constructs a local resolver from Config.
func NewResolver(cfg Config) *Resolver {
	role := cfg.Role
	if role == "" {
		role = domainauth.RoleAdmin
	}
	return &Resolver{
		enabled: cfg.Enabled,
		role:    role,
		logger:  logging.Channel(cfg.Logger, logging.ChannelAuth),
	}
}

func (r *Resolver) Name() string { return string(domainauth.SourceLocal) }

// Supports reports whether local auth is enabled and the request is local.
func (r *Resolver) Supports(_ context.Context, in ports.ResolveInput) bool {
	return r.enabled && IsLocalOrigin(in.Origin)
}

// Resolve returns the local developer identity with the configured role.
func (r *Resolver) Resolve(ctx context.Context, _ ports.ResolveInput) domainauth.Identity {
	r.logger.InfoContext(ctx, "Local user authenticated", "role", r.role)
	return domainauth.LocalIdentity(r.role)
}

// IsLocalOrigin reports whether the host (without port) is a loopback name or
// the peer address is a loopback IP.
func IsLocalOrigin(o ports.Origin) bool {
	if _, ok := localHosts[normalizeHost(o.Host)]; ok {
		return true
	}
	return isLoopbackAddr(o.RemoteAddr)
}

func normalizeHost(host string) string {
	host = strings.TrimSpace(host)
	if host == "" {
		return ""
	}
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	host = strings.TrimSuffix(strings.TrimPrefix(host, "["), "]")
	return strings.ToLower(host)
}

func isLoopbackAddr(remote string) bool {
	remote = strings.TrimSpace(remote)
	if remote == "" {
		return false
	}
	if h, _, err := net.SplitHostPort(remote); err == nil {
		remote = h
	}
	addr, err := netip.ParseAddr(strings.Trim(remote, "[]"))
	if err != nil {
		return false
	}
	return addr.Unmap().IsLoopback()
}
