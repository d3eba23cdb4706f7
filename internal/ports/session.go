package ports

import (
	"context"
	"net/http"
	"time"

	domainsession "github.com/target/gatehouse/internal/domain/session"
)

// SessionReader is the read side of a session handle.
type SessionReader interface {
	// Get returns the value under key or nil when absent.
	Get(key string) (any, error)
	Has(key string) (bool, error)
}

// Session is a per-request handle on server-side session state.
// Mutations write through to the backend.
type Session interface {
	SessionReader
	Start(ctx context.Context) error
	Started() bool
	ID() string
	Set(ctx context.Context, key string, value any) error
	Remove(ctx context.Context, key string) error
	All() (map[string]any, error)
	Clear(ctx context.Context) error
	Regenerate(ctx context.Context) error
	Destroy(ctx context.Context) error
	// Close releases the per-id lock held since Start.
	Close(ctx context.Context) error
}

// SessionBackend persists session records keyed by id.
type SessionBackend interface {
	// Load returns domainsession.ErrNotFound when no live record exists.
	Load(ctx context.Context, id string) (domainsession.Record, error)
	Save(ctx context.Context, rec domainsession.Record, ttl time.Duration) error
	Delete(ctx context.Context, id string) error
	// Lock blocks until the caller holds exclusive access to id or ctx ends.
	Lock(ctx context.Context, id string) (release func(), err error)
}

// SessionPurger is implemented by backends that need explicit expiry sweeps.
type SessionPurger interface {
	PurgeExpired(ctx context.Context) (int64, error)
}

// CookieTransport exposes the response side a session needs.
type CookieTransport interface {
	// HeadersSent reports whether the response has already been committed.
	HeadersSent() bool
	Cookie(name string) (string, bool)
	SetCookie(c *http.Cookie)
	// IsSecure reports whether the request arrived over HTTPS.
	IsSecure() bool
}

// CSRFTokenManager issues and validates synchronizer tokens.
type CSRFTokenManager interface {
	Token(ctx context.Context) (string, error)
	IsValid(submitted string) bool
	ValidateAndRegenerate(ctx context.Context, submitted string) (bool, error)
	Regenerate(ctx context.Context) (string, error)
	Clear(ctx context.Context) error
}

// RequestView is the read-only request surface used by routing and guards.
type RequestView interface {
	Method() string
	Header(name string) string
	Query(name string) string
	PostField(name string) string
	HasPostField(name string) bool
	Origin() Origin
}
