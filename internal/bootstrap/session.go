package bootstrap

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/target/gatehouse/config"
	"github.com/target/gatehouse/internal/adapters/memstore"
	"github.com/target/gatehouse/internal/adapters/postgres"
	redisadapter "github.com/target/gatehouse/internal/adapters/redis"
	httpx "github.com/target/gatehouse/internal/http"
	"github.com/target/gatehouse/internal/observability/metrics"
	"github.com/target/gatehouse/internal/ports"
	"github.com/target/gatehouse/internal/service"
)

// SessionStore is the selected session backend plus its lifecycle hooks.
type SessionStore struct {
	Backend ports.SessionBackend
	// Purger is set for backends without native expiry.
	Purger ports.SessionPurger
	Health httpx.HealthCheck
	close  func() error
}

// Close releases the backend's connections.
func (s *SessionStore) Close() error {
	if s == nil || s.close == nil {
		return nil
	}
	return s.close()
}

// SessionStoreConfig contains dependencies for BuildSessionStore.
type SessionStoreConfig struct {
	Config *config.AppConfig
	Logger *slog.Logger
}

// BuildSessionStore connects the backend named by SESSION_BACKEND.
func BuildSessionStore(ctx context.Context, cfg SessionStoreConfig) (*SessionStore, error) {
	if cfg.Config == nil {
		return nil, errors.New("session store: config is required")
	}
	app := cfg.Config
	dbCfg := DatabaseConfig{DBConfig: app.Postgres, RedisConfig: app.Redis, Logger: cfg.Logger}

	switch app.Session.Backend {
	case config.SessionBackendRedis:
		client, err := ConnectRedis(ctx, dbCfg)
		if err != nil {
			return nil, fmt.Errorf("connect redis: %w", err)
		}
		return redisStore(client, app), nil

	case config.SessionBackendPostgres:
		db, err := ConnectDB(ctx, dbCfg)
		if err != nil {
			return nil, fmt.Errorf("connect db: %w", err)
		}
		if app.Postgres.RunMigrationsOnStart {
			if err = RunMigrations(ctx, db, cfg.Logger); err != nil {
				return nil, errors.Join(err, db.Close())
			}
		} else if cfg.Logger != nil {
			cfg.Logger.InfoContext(ctx, "skipping database migrations on startup", "reason", "disabled via config")
		}
		return postgresStore(db, app), nil

	case config.SessionBackendMemory, "":
		if cfg.Logger != nil {
			cfg.Logger.WarnContext(ctx, "using in-memory session backend; sessions are lost on restart and not shared between instances")
		}
		b := memstore.New(nil)
		return &SessionStore{Backend: b, Purger: b}, nil

	default:
		return nil, fmt.Errorf("unknown session backend %q", app.Session.Backend)
	}
}

func redisStore(client redis.UniversalClient, app *config.AppConfig) *SessionStore {
	backend := redisadapter.NewSessionBackend(client,
		redisadapter.WithPrefix(app.Redis.KeyPrefix),
		redisadapter.WithLockTTL(3*app.Session.LockTimeout),
	)
	return &SessionStore{
		Backend: backend,
		Health:  func(ctx context.Context) error { return client.Ping(ctx).Err() },
		close:   client.Close,
	}
}

func postgresStore(db *sql.DB, app *config.AppConfig) *SessionStore {
	backend := postgres.NewSessionBackend(db, nil, postgres.WithLockTTL(3*app.Session.LockTimeout))
	return &SessionStore{
		Backend: backend,
		Purger:  backend,
		Health:  db.PingContext,
		close:   db.Close,
	}
}

// NewSessionManager builds the session manager from configuration.
func NewSessionManager(cfg config.SessionConfig, backend ports.SessionBackend, logger *slog.Logger, rec *metrics.Recorder) (*service.SessionManager, error) {
	secure, err := cfg.Cookie.SecureMode()
	if err != nil {
		return nil, err
	}
	sameSite, err := cfg.Cookie.SameSiteMode()
	if err != nil {
		return nil, err
	}
	return service.NewSessionManager(service.SessionManagerOptions{
		Backend: backend,
		Config: service.SessionManagerConfig{
			Policy: service.SessionPolicy{
				IdleTimeout:   cfg.IdleTimeout,
				RegenInterval: cfg.RegenInterval,
				LockTimeout:   cfg.LockTimeout,
				SensitiveKeys: cfg.SensitiveKeys,
			},
			Cookie: service.CookieConfig{
				Name:     cfg.Cookie.Name,
				Path:     cfg.Cookie.Path,
				Domain:   cfg.Cookie.Domain,
				Secure:   secure,
				HTTPOnly: cfg.Cookie.HTTPOnly,
				SameSite: sameSite,
				Lifetime: cfg.Cookie.Lifetime,
			},
		},
		Runtime: service.SessionRuntime{Logger: logger, Metrics: rec},
	}), nil
}
