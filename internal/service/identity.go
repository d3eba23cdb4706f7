package service

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel/attribute"

	domainauth "github.com/target/gatehouse/internal/domain/auth"
	"github.com/target/gatehouse/internal/observability/logging"
	"github.com/target/gatehouse/internal/observability/metrics"
	"github.com/target/gatehouse/internal/observability/tracing"
	"github.com/target/gatehouse/internal/ports"
)

// GuestResolver always supports and yields the guest identity. It terminates
// every IdentityChain.
type GuestResolver struct{}

var _ ports.IdentityResolver = GuestResolver{}

func (GuestResolver) Name() string                                      { return "guest" }
func (GuestResolver) Supports(context.Context, ports.ResolveInput) bool { return true }
func (GuestResolver) Resolve(context.Context, ports.ResolveInput) domainauth.Identity {
	return domainauth.GuestIdentity()
}

// IdentityChainOptions groups dependencies for IdentityChain.
type IdentityChainOptions struct {
	// Resolvers are consulted in order; the first that supports the request wins.
	Resolvers []ports.IdentityResolver
	Logger    *slog.Logger
	Telemetry IdentityTelemetry
}

// IdentityTelemetry groups optional instrumentation.
type IdentityTelemetry struct {
	Metrics *metrics.Recorder
	Tracer  *tracing.Tracer
}

// IdentityChain resolves exactly one identity per request.
type IdentityChain struct {
	resolvers []ports.IdentityResolver
	logger    *slog.Logger
	metrics   *metrics.Recorder
	tracer    *tracing.Tracer
}

// NewIdentityChain builds a chain over opts.Resolvers followed by GuestResolver.
// Nil resolvers are skipped.
func NewIdentityChain(opts IdentityChainOptions) *IdentityChain {
	resolvers := make([]ports.IdentityResolver, 0, len(opts.Resolvers)+1)
	for _, r := range opts.Resolvers {
		if r != nil {
			resolvers = append(resolvers, r)
		}
	}
	resolvers = append(resolvers, GuestResolver{})
	return &IdentityChain{
		resolvers: resolvers,
		logger:    logging.Channel(opts.Logger, logging.ChannelAuth),
		metrics:   opts.Telemetry.Metrics,
		tracer:    opts.Telemetry.Tracer,
	}
}

// Resolve returns the identity produced by the first supporting resolver.
func (c *IdentityChain) Resolve(ctx context.Context, in ports.ResolveInput) domainauth.Identity {
	ctx, end := c.tracer.Start(ctx, "identity.resolve")
	for _, r := range c.resolvers {
		if !r.Supports(ctx, in) {
			continue
		}
		id := r.Resolve(ctx, in)
		tracing.Annotate(ctx,
			attribute.String("identity.resolver", r.Name()),
			attribute.String("identity.source", string(id.Source)),
			attribute.String("identity.role", string(id.Role)),
		)
		c.metrics.IdentityResolved(string(id.Source), string(id.Role))
		c.logger.DebugContext(ctx, "Identity resolved", "resolver", r.Name(), "role", id.Role)
		end(nil)
		return id
	}
	// Unreachable while GuestResolver terminates the chain.
	end(nil)
	return domainauth.GuestIdentity()
}

// ResolveContext resolves and wraps the identity for the request.
func (c *IdentityChain) ResolveContext(ctx context.Context, in ports.ResolveInput) domainauth.AuthContext {
	return domainauth.NewAuthContext(c.Resolve(ctx, in))
}
