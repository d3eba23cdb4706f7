package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/target/gatehouse/config"
	"github.com/target/gatehouse/internal/bootstrap"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger := bootstrap.InitLogger(slog.LevelInfo)
	if err := run(ctx, logger); err != nil {
		logger.ErrorContext(ctx, "fatal error", "error", err)
		stop()
		os.Exit(1) //nolint:forbidigo // Main entrypoint should exit with non-zero status on fatal errors.
	}
}

func run(ctx context.Context, logger *slog.Logger) (err error) {
	cfg, err := bootstrap.LoadConfig()
	if err != nil {
		return err
	}
	logger = bootstrap.InitLogger(cfg.Observability.SlogLevel())
	if err = bootstrap.ValidateConfig(&cfg, logger); err != nil {
		return err
	}
	logStartupInfo(ctx, logger, &cfg)

	obs := bootstrap.BuildObservability(logger, cfg.Observability)
	defer func() {
		if cerr := obs.Close(); cerr != nil {
			logger.ErrorContext(ctx, "close metrics sink failed", "error", cerr)
		}
	}()

	store, err := bootstrap.BuildSessionStore(ctx, bootstrap.SessionStoreConfig{Config: &cfg, Logger: logger})
	if err != nil {
		return fmt.Errorf("session store: %w", err)
	}
	defer func() {
		if cerr := store.Close(); cerr != nil {
			err = errors.Join(err, fmt.Errorf("close session store: %w", cerr))
		}
	}()

	handler, err := bootstrap.BuildHandler(ctx, bootstrap.HTTPServerConfig{
		Config:  &cfg,
		Store:   store,
		Runtime: bootstrap.Runtime{Logger: logger, Observability: obs},
	})
	if err != nil {
		return err
	}

	return bootstrap.Run(ctx, bootstrap.RunConfig{
		Server: bootstrap.NewServer(cfg.HTTP, handler),
		Purger: store.Purger,
		Timing: bootstrap.RunTiming{
			PurgeInterval:   cfg.Session.PurgeInterval,
			ShutdownTimeout: cfg.HTTP.ShutdownTimeout,
		},
	}, logger)
}

func logStartupInfo(ctx context.Context, logger *slog.Logger, cfg *config.AppConfig) {
	logger.InfoContext(ctx, "starting gatehouse",
		"addr", cfg.HTTP.Addr,
		"session_backend", cfg.Session.Backend,
		"execution_context", cfg.HTTP.ExecutionContext,
		"local_auth", cfg.Auth.LocalEnabled,
		"oidc_import", cfg.Auth.OIDC.Enabled,
		"csrf_failure_status", cfg.CSRF.FailureStatus,
		"dev", cfg.IsDev)
}
