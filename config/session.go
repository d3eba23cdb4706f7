package config

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"golang.org/x/net/publicsuffix"

	apperrors "github.com/target/gatehouse/internal/errors"
)

// SessionBackendKind selects where session records are stored.
type SessionBackendKind string

const (
	SessionBackendMemory   SessionBackendKind = "memory"
	SessionBackendRedis    SessionBackendKind = "redis"
	SessionBackendPostgres SessionBackendKind = "postgres"
)

// UnmarshalText implements encoding.TextUnmarshaler for SessionBackendKind.
func (k *SessionBackendKind) UnmarshalText(text []byte) error {
	v := SessionBackendKind(strings.ToLower(strings.TrimSpace(string(text))))
	switch v {
	case SessionBackendMemory, SessionBackendRedis, SessionBackendPostgres:
		*k = v
		return nil
	default:
		return fmt.Errorf("invalid session backend: %q (valid options: memory, redis, postgres)", string(text))
	}
}

// SessionConfig controls session storage, fixation protection and the cookie.
type SessionConfig struct {
	Backend SessionBackendKind `env:"BACKEND" envDefault:"memory"`

	// Non-positive durations disable the corresponding policy.
	IdleTimeout   time.Duration `env:"IDLE_TIMEOUT"   envDefault:"20m"`
	RegenInterval time.Duration `env:"REGEN_INTERVAL" envDefault:"10m"`
	LockTimeout   time.Duration `env:"LOCK_TIMEOUT"   envDefault:"10s"`

	// SensitiveKeys are redacted from session logs in addition to the built-in list.
	SensitiveKeys []string `env:"SENSITIVE_KEYS" envSeparator:";"`

	// PurgeInterval controls the expired-record janitor for backends without native TTLs.
	PurgeInterval time.Duration `env:"PURGE_INTERVAL" envDefault:"5m"`

	Cookie CookieConfig
}

// CookieConfig describes the session cookie.
type CookieConfig struct {
	Name   string `env:"NAME"          envDefault:"gatehouse_session"`
	Path   string `env:"COOKIE_PATH"   envDefault:"/"`
	Domain string `env:"COOKIE_DOMAIN"`
	// Secure is "auto" (follow the request scheme), "true" or "false".
	Secure   string        `env:"COOKIE_SECURE"   envDefault:"auto"`
	HTTPOnly bool          `env:"COOKIE_HTTPONLY" envDefault:"true"`
	SameSite string        `env:"COOKIE_SAMESITE" envDefault:"lax"`
	Lifetime time.Duration `env:"COOKIE_LIFETIME" envDefault:"0s"`
}

// Sanitize normalises cookie fields and clamps durations.
func (c *SessionConfig) Sanitize() {
	if c.Backend == "" {
		c.Backend = SessionBackendMemory
	}
	if c.LockTimeout <= 0 {
		c.LockTimeout = 10 * time.Second
	}
	if c.PurgeInterval <= 0 {
		c.PurgeInterval = 5 * time.Minute
	}
	c.SensitiveKeys = cleanList(c.SensitiveKeys)

	c.Cookie.Name = strings.TrimSpace(c.Cookie.Name)
	if c.Cookie.Name == "" {
		c.Cookie.Name = "gatehouse_session"
	}
	if c.Cookie.Path = strings.TrimSpace(c.Cookie.Path); c.Cookie.Path == "" {
		c.Cookie.Path = "/"
	}
	c.Cookie.Domain = strings.TrimPrefix(strings.ToLower(strings.TrimSpace(c.Cookie.Domain)), ".")
	c.Cookie.Secure = strings.ToLower(strings.TrimSpace(c.Cookie.Secure))
	c.Cookie.SameSite = strings.ToLower(strings.TrimSpace(c.Cookie.SameSite))
}

// Validate rejects cookie settings browsers would refuse or that widen the
// cookie's scope beyond one site.
func (c *SessionConfig) Validate() error {
	var errs []error
	if _, err := c.Cookie.SecureMode(); err != nil {
		errs = append(errs, err)
	}
	sameSite, err := c.Cookie.SameSiteMode()
	if err != nil {
		errs = append(errs, err)
	}
	secure, _ := c.Cookie.SecureMode()
	if sameSite == http.SameSiteNoneMode && (secure == nil || !*secure) {
		errs = append(errs, apperrors.ValidationField("SESSION_COOKIE_SAMESITE", "SESSION_COOKIE_SAMESITE=none requires SESSION_COOKIE_SECURE=true"))
	}
	if err := validateCookieDomain(c.Cookie.Domain); err != nil {
		errs = append(errs, err)
	}
	if c.RegenInterval > 0 && c.IdleTimeout > 0 && c.RegenInterval >= c.IdleTimeout {
		errs = append(errs, apperrors.ValidationField("SESSION_REGEN_INTERVAL",
			fmt.Sprintf("SESSION_REGEN_INTERVAL (%s) must be shorter than SESSION_IDLE_TIMEOUT (%s)", c.RegenInterval, c.IdleTimeout)))
	}
	return errors.Join(errs...)
}

// SecureMode returns nil for "auto", or a pointer to the forced value.
func (c *CookieConfig) SecureMode() (*bool, error) {
	switch c.Secure {
	case "", "auto":
		return nil, nil
	case "true", "1", "yes":
		v := true
		return &v, nil
	case "false", "0", "no":
		v := false
		return &v, nil
	default:
		return nil, apperrors.ValidationField("SESSION_COOKIE_SECURE",
			fmt.Sprintf("invalid SESSION_COOKIE_SECURE: %q (valid options: auto, true, false)", c.Secure))
	}
}

// SameSiteMode maps the configured name to http.SameSite.
func (c *CookieConfig) SameSiteMode() (http.SameSite, error) {
	switch c.SameSite {
	case "", "lax":
		return http.SameSiteLaxMode, nil
	case "strict":
		return http.SameSiteStrictMode, nil
	case "none":
		return http.SameSiteNoneMode, nil
	default:
		return http.SameSiteDefaultMode, apperrors.ValidationField("SESSION_COOKIE_SAMESITE",
			fmt.Sprintf("invalid SESSION_COOKIE_SAMESITE: %q (valid options: lax, strict, none)", c.SameSite))
	}
}

// validateCookieDomain rejects domains that are themselves public suffixes,
// such as "com" or "co.uk".
func validateCookieDomain(domain string) error {
	if domain == "" || domain == "localhost" {
		return nil
	}
	suffix, icann := publicsuffix.PublicSuffix(domain)
	if suffix == domain && (icann || strings.Contains(domain, ".")) {
		return apperrors.ValidationField("SESSION_COOKIE_DOMAIN", fmt.Sprintf("SESSION_COOKIE_DOMAIN %q is a public suffix", domain))
	}
	return nil
}
