package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	apperrors "github.com/target/gatehouse/internal/errors"
)

// AppConfig is the main application configuration struct that composes
// domain-specific configuration from separate files.
//
// Configuration is loaded from environment variables using the
// github.com/caarlos0/env library. See individual domain config
// files for details on available environment variables:
//   - auth.go: Identity resolution and SSO import
//   - session.go: Session backend, lifecycle policy and cookie
//   - database.go: Postgres and Redis connections
//   - http.go: HTTP server and CSRF configuration
//   - observability.go: Logging, metrics and tracing
type AppConfig struct {
	// IsDev controls development mode behavior.
	// Set DEV=true or NODE_ENV=development for development mode.
	IsDev bool `env:"DEV" envDefault:"false"`

	Auth    AuthConfig    `envPrefix:"AUTH_"`
	Session SessionConfig `envPrefix:"SESSION_"`
	CSRF    CSRFConfig    `envPrefix:"CSRF_"`
	HTTP    HTTPConfig

	Postgres DBConfig    `envPrefix:"DB_"`
	Redis    RedisConfig `envPrefix:"REDIS_"`

	Observability ObservabilityConfig
}

// Sanitize applies guardrails to configuration values loaded from env.
// This should be called after loading configuration from environment variables.
func (c *AppConfig) Sanitize() {
	c.Auth.Sanitize()
	c.Session.Sanitize()
	c.CSRF.Sanitize()
	c.Observability.Sanitize()

	c.detectDevMode()
}

// Validate reports configuration that would make the service insecure or
// unable to start. It returns warnings for settings that are legal but likely
// mistakes.
func (c *AppConfig) Validate() (warnings []string, err error) {
	var errs []error
	if e := c.Session.Validate(); e != nil {
		errs = append(errs, e)
	}
	if e := c.Auth.OIDC.Validate(); e != nil {
		errs = append(errs, e)
	}
	if c.Session.Backend == SessionBackendRedis && strings.TrimSpace(c.Redis.URI) == "" && !c.Redis.UseSentinel && !c.Redis.UseCluster {
		errs = append(errs, apperrors.ValidationField("REDIS_URI", "SESSION_BACKEND=redis requires REDIS_URI"))
	}
	if overlap := c.Auth.OverlappingGroups(); len(overlap) > 0 {
		warnings = append(warnings, fmt.Sprintf("groups listed as both admin and public (admin wins): %s", strings.Join(overlap, ", ")))
	}
	if c.Auth.LocalEnabled && !c.IsDev {
		warnings = append(warnings, "AUTH_LOCAL_ENABLED is set outside development mode")
	}
	return warnings, errors.Join(errs...)
}

// detectDevMode checks both DEV and NODE_ENV environment variables.
// NODE_ENV is checked as a fallback (common in frontend tooling).
func (c *AppConfig) detectDevMode() {
	if !c.IsDev {
		nodeEnv := strings.ToLower(os.Getenv("NODE_ENV"))
		c.IsDev = nodeEnv == "development" || nodeEnv == "dev"
	}
}
