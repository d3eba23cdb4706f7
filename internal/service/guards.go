package service

import (
	"context"
	"log/slog"
	"net/http"

	"go.opentelemetry.io/otel/attribute"

	domainauth "github.com/target/gatehouse/internal/domain/auth"
	"github.com/target/gatehouse/internal/domain/route"
	apperrors "github.com/target/gatehouse/internal/errors"
	"github.com/target/gatehouse/internal/observability/logging"
	"github.com/target/gatehouse/internal/observability/metrics"
	"github.com/target/gatehouse/internal/observability/tracing"
	"github.com/target/gatehouse/internal/ports"
)

// Guard failure messages shown to the user.
const (
	MsgAccountNotAllowed = "Your account is not allowed to access this application."
	MsgAdminRequired     = "Admin access required."
	MsgAjaxRequiresPost  = "AJAX endpoints require POST."
	MsgActionRequiresGet = "Actions require GET."
)

// Default CSRF token locations.
const (
	DefaultCSRFHeader = "X-CSRF-Token"
	DefaultCSRFField  = "_csrf"
)

// GuardInput is everything a guard may inspect for one request.
type GuardInput struct {
	Auth    domainauth.AuthContext
	Route   route.Route
	Request ports.RequestView
	CSRF    ports.CSRFTokenManager
}

// Guard either passes or returns exactly one typed failure.
type Guard interface {
	Name() string
	Check(ctx context.Context, in GuardInput) error
}

// AccessGuard enforces role and route compatibility.
type AccessGuard struct{}

func (AccessGuard) Name() string { return "access" }

func (AccessGuard) Check(_ context.Context, in GuardInput) error {
	if in.Auth.IsForbidden() {
		return apperrors.AccessDenied(MsgAccountNotAllowed)
	}
	if in.Route.IsAdmin() && !in.Auth.IsAdmin() {
		return apperrors.AccessDenied(MsgAdminRequired)
	}
	return nil
}

// MethodGuard enforces the HTTP method each route category accepts.
type MethodGuard struct{}

func (MethodGuard) Name() string { return "method" }

func (MethodGuard) Check(_ context.Context, in GuardInput) error {
	method := in.Request.Method()
	switch in.Route.Category {
	case route.CategoryAjax:
		if method != http.MethodPost {
			return apperrors.MethodNotAllowed(MsgAjaxRequiresPost)
		}
	case route.CategoryAction:
		if method == http.MethodPost {
			return apperrors.MethodNotAllowed(MsgActionRequiresGet)
		}
	case route.CategoryPublicView, route.CategoryAdminView:
	}
	return nil
}

// CSRFGuard validates and rotates the synchronizer token on POST requests.
type CSRFGuard struct {
	Extractor TokenExtractor
}

func (CSRFGuard) Name() string { return "csrf" }

func (g CSRFGuard) Check(ctx context.Context, in GuardInput) error {
	if in.Request.Method() != http.MethodPost {
		return nil
	}
	ok, err := in.CSRF.ValidateAndRegenerate(ctx, g.Extractor.Extract(in.Request))
	if err != nil {
		return err
	}
	if !ok {
		return apperrors.CSRFInvalid("csrf token missing or invalid")
	}
	return nil
}

// TokenExtractor reads a submitted CSRF token from a request. The header wins
// when present and non-empty.
type TokenExtractor struct {
	Header string
	Field  string
}

func (e TokenExtractor) Extract(r ports.RequestView) string {
	header, field := e.Header, e.Field
	if header == "" {
		header = DefaultCSRFHeader
	}
	if field == "" {
		field = DefaultCSRFField
	}
	if v := r.Header(header); v != "" {
		return v
	}
	return r.PostField(field)
}

// GuardChainOptions groups dependencies for GuardChain.
type GuardChainOptions struct {
	Extractor TokenExtractor
	Logger    *slog.Logger
	Telemetry IdentityTelemetry
}

// GuardChain runs the access, method and CSRF guards in that order.
type GuardChain struct {
	guards  []Guard
	logger  *slog.Logger
	metrics *metrics.Recorder
	tracer  *tracing.Tracer
}

// NewGuardChain builds the standard guard sequence.
func NewGuardChain(opts GuardChainOptions) *GuardChain {
	return &GuardChain{
		guards:  []Guard{AccessGuard{}, MethodGuard{}, CSRFGuard{Extractor: opts.Extractor}},
		logger:  logging.Channel(opts.Logger, logging.ChannelCSRF),
		metrics: opts.Telemetry.Metrics,
		tracer:  opts.Telemetry.Tracer,
	}
}

// Guards returns the guards in evaluation order.
func (c *GuardChain) Guards() []Guard {
	return append([]Guard(nil), c.guards...)
}

// Check stops at the first failing guard and returns its error.
func (c *GuardChain) Check(ctx context.Context, in GuardInput) (err error) {
	ctx, end := c.tracer.Start(ctx, "guards.check",
		attribute.String("route.name", in.Route.Name),
		attribute.String("route.category", string(in.Route.Category)),
	)
	defer func() { end(err) }()

	for _, g := range c.guards {
		if err = g.Check(ctx, in); err != nil {
			c.metrics.GuardRejected(g.Name(), string(apperrors.GetCode(err)))
			if apperrors.IsCSRFInvalid(err) {
				c.logger.WarnContext(ctx, "CSRF token rejected", "route", in.Route.Name)
			}
			return err
		}
	}
	return nil
}
