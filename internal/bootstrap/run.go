package bootstrap

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/target/gatehouse/internal/ports"
)

// RunConfig contains dependencies for Run.
type RunConfig struct {
	Server *http.Server
	Purger ports.SessionPurger
	Timing RunTiming
}

// RunTiming controls background intervals.
type RunTiming struct {
	PurgeInterval   time.Duration
	ShutdownTimeout time.Duration
}

// Run serves HTTP and sweeps expired sessions until ctx is cancelled, then
// shuts the server down gracefully. The first failure stops everything.
func Run(ctx context.Context, cfg RunConfig, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}
	group, gctx := errgroup.WithContext(ctx)

	group.Go(func() error {
		logger.InfoContext(gctx, "starting HTTP server", "addr", cfg.Server.Addr)
		if err := cfg.Server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	group.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down HTTP server")
		timeout := cfg.Timing.ShutdownTimeout
		if timeout <= 0 {
			timeout = 15 * time.Second
		}
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(gctx), timeout)
		defer cancel()
		if err := cfg.Server.Shutdown(shutdownCtx); err != nil {
			return err
		}
		logger.Info("HTTP server stopped")
		return nil
	})

	if cfg.Purger != nil {
		group.Go(func() error {
			RunJanitor(gctx, cfg.Purger, cfg.Timing.PurgeInterval, logger)
			return nil
		})
	}

	return group.Wait()
}

// RunJanitor deletes expired session records every interval until ctx ends.
func RunJanitor(ctx context.Context, purger ports.SessionPurger, interval time.Duration, logger *slog.Logger) {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := purger.PurgeExpired(ctx)
			switch {
			case err != nil && ctx.Err() == nil:
				logger.ErrorContext(ctx, "session purge failed", "error", err)
			case n > 0:
				logger.DebugContext(ctx, "expired sessions purged", "count", n)
			}
		}
	}
}
