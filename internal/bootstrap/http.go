package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/target/gatehouse/config"
	httpx "github.com/target/gatehouse/internal/http"
	"github.com/target/gatehouse/internal/service"
)

// Runtime groups process-wide collaborators.
type Runtime struct {
	Logger        *slog.Logger
	Observability ObservabilityContainer
}

// HTTPServerConfig contains configuration for the HTTP handler and server.
type HTTPServerConfig struct {
	Config  *config.AppConfig
	Store   *SessionStore
	Runtime Runtime
}

// BuildHandler assembles the security pipeline and router.
func BuildHandler(ctx context.Context, cfg HTTPServerConfig) (http.Handler, error) {
	if cfg.Config == nil || cfg.Store == nil {
		return nil, errors.New("build handler: config and session store are required")
	}
	app := cfg.Config
	logger := cfg.Runtime.Logger
	obs := cfg.Runtime.Observability
	telemetry := service.IdentityTelemetry{Metrics: obs.Metrics, Tracer: obs.Tracer}

	execCtx, err := service.ParseExecutionContext(app.HTTP.ExecutionContext)
	if err != nil {
		return nil, err
	}
	sessions, err := NewSessionManager(app.Session, cfg.Store.Backend, logger, obs.Metrics)
	if err != nil {
		return nil, fmt.Errorf("build session manager: %w", err)
	}

	authCfg := AuthConfig{Auth: app.Auth, Logger: logger, Telemetry: telemetry}
	identity, err := BuildIdentityChain(authCfg)
	if err != nil {
		return nil, err
	}
	importer, err := BuildSSOImporter(ctx, authCfg)
	if err != nil {
		return nil, err
	}

	renderer, err := httpx.NewTemplateViewRenderer(httpx.TemplateViewRendererConfig{
		TemplateFS: templateFS(app.HTTP.TemplateDir),
		Endpoints:  httpx.DefaultEndpoints(),
		Logger:     logger,
	})
	if err != nil {
		return nil, err
	}

	errs := httpx.NewErrorHandler(httpx.ErrorHandlerOptions{
		Mappers: httpx.DefaultMappers(app.CSRF.FailureStatus),
		Pages:   renderer,
		Runtime: httpx.ErrorRuntime{Logger: logger, Metrics: obs.Metrics},
	})
	pipeline := httpx.NewPipeline(httpx.PipelineOptions{
		Session: httpx.SessionStage{
			Manager:             sessions,
			Context:             execCtx,
			TrustForwardedProto: app.HTTP.TrustForwardedProto,
		},
		Security: httpx.SecurityStage{
			Identity: identity,
			Routes:   httpx.NewQueryRouteResolver(renderer.Catalog()),
			Guards: service.NewGuardChain(service.GuardChainOptions{
				Extractor: service.TokenExtractor{Header: app.CSRF.Header, Field: app.CSRF.Field},
				Logger:    logger,
				Telemetry: telemetry,
			}),
			SSOImport: importer,
		},
		Output: httpx.OutputStage{
			Renderer: renderer,
			Errors:   errs,
			Logger:   logger,
			Metrics:  obs.Metrics,
		},
	})

	return httpx.NewRouter(httpx.RouterOptions{
		Pipeline: pipeline,
		Health:   cfg.Store.Health,
		Errors:   errs,
		Logger:   logger,
	}), nil
}

func templateFS(dir string) fs.FS {
	if dir == "" {
		return nil
	}
	return os.DirFS(dir)
}

// NewServer wraps handler in an http.Server with conservative timeouts.
func NewServer(cfg config.HTTPConfig, handler http.Handler) *http.Server {
	// Guard against empty addr to avoid listening on Go default
	addr := cfg.Addr
	if addr == "" {
		addr = ":8080"
	}
	readHeader := cfg.ReadHeaderTimeout
	if readHeader <= 0 {
		readHeader = 10 * time.Second
	}
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: readHeader,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
}
