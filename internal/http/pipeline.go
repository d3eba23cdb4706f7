package httpx

import (
	"context"
	"log/slog"
	"net/http"
	"runtime/debug"
	"time"

	domainauth "github.com/target/gatehouse/internal/domain/auth"
	"github.com/target/gatehouse/internal/domain/route"
	"github.com/target/gatehouse/internal/observability/logging"
	"github.com/target/gatehouse/internal/observability/metrics"
	"github.com/target/gatehouse/internal/ports"
	"github.com/target/gatehouse/internal/service"
)

// PipelineOptions groups dependencies for Pipeline.
type PipelineOptions struct {
	Session  SessionStage
	Security SecurityStage
	Output   OutputStage
}

// SessionStage configures how each request obtains its session.
type SessionStage struct {
	Manager *service.SessionManager // Required for interactive contexts
	Context service.ExecutionContext
	// TrustForwardedProto treats X-Forwarded-Proto: https as a secure request.
	TrustForwardedProto bool
}

// SecurityStage holds identity resolution, routing and guards.
type SecurityStage struct {
	Identity  *service.IdentityChain // Required
	Routes    RouteResolver          // Required
	Guards    *service.GuardChain    // Required
	SSOImport *SSOImporter           // Optional
}

// OutputStage holds response producers and instrumentation.
type OutputStage struct {
	Renderer ViewRenderer  // Required
	Errors   *ErrorHandler // Required
	Logger   *slog.Logger
	Metrics  *metrics.Recorder
}

// Pipeline runs the per-request security sequence: session start, identity
// resolution, route resolution, access/method/CSRF guards, then rendering.
// Every failure, panics included, goes to the error handler.
type Pipeline struct {
	session  SessionStage
	security SecurityStage
	output   OutputStage
	logger   *slog.Logger
}

// NewPipeline constructs a Pipeline. It panics when a required stage is missing.
func NewPipeline(opts PipelineOptions) *Pipeline {
	switch {
	case opts.Security.Identity == nil:
		panic("pipeline: identity chain is required")
	case opts.Security.Routes == nil:
		panic("pipeline: route resolver is required")
	case opts.Security.Guards == nil:
		panic("pipeline: guard chain is required")
	case opts.Output.Renderer == nil:
		panic("pipeline: renderer is required")
	case opts.Output.Errors == nil:
		panic("pipeline: error handler is required")
	}
	if opts.Session.Context == "" {
		opts.Session.Context = service.ContextFront
	}
	if opts.Session.Context.Interactive() && opts.Session.Manager == nil {
		panic("pipeline: session manager is required for interactive contexts")
	}
	return &Pipeline{
		session:  opts.Session,
		security: opts.Security,
		output:   opts.Output,
		logger:   logging.Channel(opts.Output.Logger, logging.ChannelHTTP),
	}
}

func (p *Pipeline) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	req := NewRequest(w, r, p.session.TrustForwardedProto)
	sw := req.w
	category := "unresolved"

	defer func() {
		if v := recover(); v != nil {
			if v == http.ErrAbortHandler {
				panic(v)
			}
			p.output.Errors.Handle(sw, r, &PanicError{Value: v, Stack: debug.Stack()})
		}
		p.output.Metrics.Request(category, sw.status, time.Since(start))
	}()

	rt, err := p.serve(r.Context(), req, r)
	if rt.Category != "" {
		category = string(rt.Category)
	}
	if err != nil {
		p.output.Errors.Handle(sw, r, err)
	}
}

// serve returns the resolved route, when one was reached, and the first failure.
func (p *Pipeline) serve(ctx context.Context, req *Request, r *http.Request) (route.Route, error) {
	sess := service.NewSessionFor(p.session.Context, p.session.Manager, req)
	if err := sess.Start(ctx); err != nil {
		return route.Route{}, err
	}
	defer func() {
		if err := sess.Close(ctx); err != nil {
			p.logger.WarnContext(ctx, "Session close failed", "error", err)
		}
	}()

	if p.security.SSOImport != nil {
		if err := p.security.SSOImport.Import(ctx, req, sess); err != nil {
			return route.Route{}, err
		}
	}

	auth := p.security.Identity.ResolveContext(ctx, ports.ResolveInput{Origin: req.Origin(), Session: sess})
	ctx = SetAuthInContext(ctx, auth)
	r = r.WithContext(ctx)

	rt, err := p.security.Routes.Resolve(req)
	if err != nil {
		return route.Route{}, err
	}

	csrf := service.NewCSRFManager(p.session.Context, sess)
	if err := p.security.Guards.Check(ctx, service.GuardInput{Auth: auth, Route: rt, Request: req, CSRF: csrf}); err != nil {
		return rt, err
	}

	data, err := p.viewData(ctx, rt, requestScope{auth: auth, session: sess, csrf: csrf})
	if err != nil {
		return rt, err
	}
	return rt, p.output.Renderer.Render(req.w, r, rt, data)
}

// requestScope bundles the per-request collaborators built by the pipeline.
type requestScope struct {
	auth    domainauth.AuthContext
	session ports.Session
	csrf    ports.CSRFTokenManager
}

// viewData is built after the guards ran, so the token is the rotated one.
func (p *Pipeline) viewData(ctx context.Context, rt route.Route, scope requestScope) (ViewData, error) {
	token, err := scope.csrf.Token(ctx)
	if err != nil {
		return ViewData{}, err
	}
	return ViewData{
		Route:     rt,
		Auth:      scope.auth,
		Flash:     service.NewFlashBag(scope.session),
		CSRFToken: token,
		Layout:    LayoutFor(scope.auth),
	}, nil
}
