package service

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"net/http"
	"time"

	"github.com/target/gatehouse/internal/clock"
	domainsession "github.com/target/gatehouse/internal/domain/session"
	"github.com/target/gatehouse/internal/observability/logging"
	"github.com/target/gatehouse/internal/observability/metrics"
	"github.com/target/gatehouse/internal/ports"
)

var (
	// ErrSessionNotStarted is returned by data operations on a handle that is not active.
	ErrSessionNotStarted = errors.New("session is not started; call Start first")
	// ErrHeadersSent is returned when Start is called after the response was committed.
	ErrHeadersSent = errors.New("cannot start session after headers were sent")
)

// SessionError reports a failure in the session layer. It never carries session data.
type SessionError struct {
	Op  string
	Err error
}

func (e *SessionError) Error() string { return "session " + e.Op + ": " + e.Err.Error() }
func (e *SessionError) Unwrap() error { return e.Err }

// Default policy values.
const (
	DefaultIdleTimeout   = 20 * time.Minute
	DefaultRegenInterval = 10 * time.Minute
	DefaultLockTimeout   = 10 * time.Second
	DefaultCookieName    = "gatehouse_session"

	defaultRecordTTL = 24 * time.Hour
	idleTTLGrace     = time.Minute
	sessionIDBytes   = 32
)

// SessionPolicy controls fixation protection. Non-positive durations disable a policy.
type SessionPolicy struct {
	IdleTimeout   time.Duration
	RegenInterval time.Duration
	LockTimeout   time.Duration
	// SensitiveKeys extend DefaultSensitiveKeys.
	SensitiveKeys []string
}

// CookieConfig is passed through to the session cookie. A nil Secure means
// "secure when the request arrived over HTTPS".
type CookieConfig struct {
	Name     string
	Path     string
	Domain   string
	Secure   *bool
	HTTPOnly bool
	SameSite http.SameSite
	Lifetime time.Duration
}

// SessionManagerConfig groups session policy and cookie settings.
type SessionManagerConfig struct {
	Policy SessionPolicy
	Cookie CookieConfig
}

// SessionRuntime groups optional collaborators.
type SessionRuntime struct {
	Logger  *slog.Logger
	Clock   clock.TimeProvider
	Metrics *metrics.Recorder
}

// SessionManagerOptions groups dependencies for SessionManager.
type SessionManagerOptions struct {
	Backend ports.SessionBackend // Required
	Config  SessionManagerConfig
	Runtime SessionRuntime // Optional
}

// SessionManager opens per-request session handles over a backend.
type SessionManager struct {
	backend  ports.SessionBackend
	policy   SessionPolicy
	cookie   CookieConfig
	redactor Redactor
	logger   *slog.Logger
	clock    clock.TimeProvider
	metrics  *metrics.Recorder
}

// NewSessionManager constructs a SessionManager. It panics without a backend.
func NewSessionManager(opts SessionManagerOptions) *SessionManager {
	if opts.Backend == nil {
		panic("session manager: backend is required")
	}
	cookie := opts.Config.Cookie
	if cookie.Name == "" {
		cookie.Name = DefaultCookieName
	}
	if cookie.Path == "" {
		cookie.Path = "/"
	}
	if cookie.SameSite == 0 {
		cookie.SameSite = http.SameSiteLaxMode
	}
	tp := opts.Runtime.Clock
	if tp == nil {
		tp = clock.RealTimeProvider{}
	}
	return &SessionManager{
		backend:  opts.Backend,
		policy:   opts.Config.Policy,
		cookie:   cookie,
		redactor: NewRedactor(opts.Config.Policy.SensitiveKeys),
		logger:   logging.Channel(opts.Runtime.Logger, logging.ChannelSession),
		clock:    tp,
		metrics:  opts.Runtime.Metrics,
	}
}

// CookieName returns the configured session cookie name.
func (m *SessionManager) CookieName() string { return m.cookie.Name }

// Open returns an unstarted handle bound to one request's cookies.
func (m *SessionManager) Open(t ports.CookieTransport) *Session {
	return &Session{m: m, transport: t}
}

func (m *SessionManager) recordTTL() time.Duration {
	switch {
	case m.policy.IdleTimeout > 0:
		return m.policy.IdleTimeout + idleTTLGrace
	case m.cookie.Lifetime > 0:
		return m.cookie.Lifetime
	default:
		return defaultRecordTTL
	}
}

// Session is a per-request handle. It is not safe for concurrent use; the
// backend lock serializes handles that share an id across requests.
type Session struct {
	m         *SessionManager
	transport ports.CookieTransport

	active  bool
	rec     domainsession.Record
	release func()
}

var _ ports.Session = (*Session)(nil)

// Start loads or creates the session and applies idle-expiry and
// regeneration policies. Calling Start on an active handle re-applies policies.
func (s *Session) Start(ctx context.Context) error {
	if s.active {
		return s.applyPolicies(ctx)
	}
	if s.transport.HeadersSent() {
		return &SessionError{Op: "start", Err: ErrHeadersSent}
	}

	if err := s.load(ctx); err != nil {
		return err
	}
	s.active = true
	return s.applyPolicies(ctx)
}

func (s *Session) load(ctx context.Context) error {
	if id, ok := s.transport.Cookie(s.m.cookie.Name); ok && validSessionID(id) {
		release, err := s.lock(ctx, id)
		if err != nil {
			return &SessionError{Op: "start", Err: err}
		}
		rec, err := s.m.backend.Load(ctx, id)
		switch {
		case err == nil:
			s.rec, s.release = rec, release
			return nil
		case errors.Is(err, domainsession.ErrNotFound):
			release()
		default:
			release()
			return &SessionError{Op: "start", Err: err}
		}
	}
	return s.fresh(ctx)
}

// fresh installs an empty record under a new, locked id. Client-supplied ids
// are never adopted.
func (s *Session) fresh(ctx context.Context) error {
	id, err := newSessionID()
	if err != nil {
		return &SessionError{Op: "start", Err: err}
	}
	release, err := s.lock(ctx, id)
	if err != nil {
		return &SessionError{Op: "start", Err: err}
	}
	s.rec = domainsession.NewRecord(id)
	s.release = release
	return nil
}

func (s *Session) lock(ctx context.Context, id string) (func(), error) {
	if s.m.policy.LockTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.m.policy.LockTimeout)
		defer cancel()
	}
	return s.m.backend.Lock(ctx, id)
}

func (s *Session) applyPolicies(ctx context.Context) error {
	now := s.m.clock.Now()

	if s.rec.InitiatedAt.IsZero() {
		if err := s.regenerate(ctx, now); err != nil {
			return err
		}
		s.rec.InitiatedAt = now
		s.m.logger.InfoContext(ctx, "Session started", "session", Fingerprint(s.rec.ID))
		s.m.metrics.SessionEvent(metrics.SessionStarted)
	} else if idle := s.m.policy.IdleTimeout; idle > 0 && !s.rec.LastActivityAt.IsZero() && now.Sub(s.rec.LastActivityAt) > idle {
		s.m.logger.InfoContext(ctx, "Session expired due to inactivity",
			"session", Fingerprint(s.rec.ID), "idle_seconds", int64(now.Sub(s.rec.LastActivityAt).Seconds()))
		s.m.metrics.SessionEvent(metrics.SessionExpired)
		if err := s.Destroy(ctx); err != nil {
			return err
		}
		if err := s.fresh(ctx); err != nil {
			return err
		}
		s.active = true
		return s.applyPolicies(ctx)
	} else if regen := s.m.policy.RegenInterval; regen > 0 {
		if s.rec.LastRegenAt.IsZero() {
			s.rec.LastRegenAt = now
		} else if now.Sub(s.rec.LastRegenAt) >= regen {
			if err := s.regenerate(ctx, now); err != nil {
				return err
			}
		}
	}

	s.rec.LastActivityAt = now
	return s.persist(ctx, "start")
}

// Started reports whether the handle is active.
func (s *Session) Started() bool { return s.active }

// ID returns the current session id, or "" when not active.
func (s *Session) ID() string {
	if !s.active {
		return ""
	}
	return s.rec.ID
}

func (s *Session) ensureActive(op string) error {
	if !s.active {
		return &SessionError{Op: op, Err: ErrSessionNotStarted}
	}
	return nil
}

// Get returns the value stored under key, or nil when absent.
func (s *Session) Get(key string) (any, error) {
	if err := s.ensureActive("get"); err != nil {
		return nil, err
	}
	return s.rec.Data[key], nil
}

// Has reports whether key is set, even to nil.
func (s *Session) Has(key string) (bool, error) {
	if err := s.ensureActive("has"); err != nil {
		return false, err
	}
	_, ok := s.rec.Data[key]
	return ok, nil
}

// All returns a shallow copy of the session data.
func (s *Session) All() (map[string]any, error) {
	if err := s.ensureActive("all"); err != nil {
		return nil, err
	}
	return maps.Clone(s.rec.Data), nil
}

// Set stores value under key and writes through. value must be JSON-encodable.
func (s *Session) Set(ctx context.Context, key string, value any) error {
	if err := s.ensureActive("set"); err != nil {
		return err
	}
	prev, had := s.rec.Data[key]
	s.rec.Data[key] = value
	s.touch()
	if err := s.persist(ctx, "set"); err != nil {
		if had {
			s.rec.Data[key] = prev
		} else {
			delete(s.rec.Data, key)
		}
		return err
	}
	s.m.logger.DebugContext(ctx, "Session key set", "key", s.m.redactor.Key(key))
	return nil
}

func (s *Session) Remove(ctx context.Context, key string) error {
	if err := s.ensureActive("remove"); err != nil {
		return err
	}
	if _, ok := s.rec.Data[key]; !ok {
		return nil
	}
	delete(s.rec.Data, key)
	s.touch()
	if err := s.persist(ctx, "remove"); err != nil {
		return err
	}
	s.m.logger.InfoContext(ctx, "Session key removed", "key", s.m.redactor.Key(key))
	return nil
}

// Clear removes all data but keeps the session and its id.
func (s *Session) Clear(ctx context.Context) error {
	if err := s.ensureActive("clear"); err != nil {
		return err
	}
	s.rec.Data = map[string]any{}
	s.touch()
	if err := s.persist(ctx, "clear"); err != nil {
		return err
	}
	s.m.logger.InfoContext(ctx, "Session cleared", "session", Fingerprint(s.rec.ID))
	return nil
}

// Regenerate moves the data to a new id and invalidates the old one.
func (s *Session) Regenerate(ctx context.Context) error {
	if err := s.ensureActive("regenerate"); err != nil {
		return err
	}
	if err := s.regenerate(ctx, s.m.clock.Now()); err != nil {
		return err
	}
	return s.persist(ctx, "regenerate")
}

// regenerate saves the record under a fresh id before deleting the old one so
// a failure never loses data.
func (s *Session) regenerate(ctx context.Context, now time.Time) error {
	newID, err := newSessionID()
	if err != nil {
		return &SessionError{Op: "regenerate", Err: err}
	}
	release, err := s.lock(ctx, newID)
	if err != nil {
		return &SessionError{Op: "regenerate", Err: err}
	}

	oldID := s.rec.ID
	next := s.rec.Clone()
	next.ID = newID
	next.LastRegenAt = now
	if err := s.m.backend.Save(ctx, next, s.m.recordTTL()); err != nil {
		release()
		return &SessionError{Op: "regenerate", Err: err}
	}
	if oldID != "" {
		if err := s.m.backend.Delete(ctx, oldID); err != nil {
			s.m.logger.WarnContext(ctx, "Failed to delete previous session record",
				"session", Fingerprint(oldID), "error", err)
		}
	}
	if s.release != nil {
		s.release()
	}

	s.rec, s.release = next, release
	s.writeCookie(newID)
	s.m.logger.InfoContext(ctx, "Session id regenerated", "old_id", Fingerprint(oldID), "new_id", Fingerprint(newID))
	s.m.metrics.SessionEvent(metrics.SessionRegenerated)
	return nil
}

// Destroy deletes the record, expires the cookie, and releases the lock.
// It is a no-op on an inactive handle.
func (s *Session) Destroy(ctx context.Context) error {
	if !s.active {
		return nil
	}
	id := s.rec.ID
	if err := s.m.backend.Delete(ctx, id); err != nil {
		return &SessionError{Op: "destroy", Err: err}
	}
	s.expireCookie()
	s.releaseLock()
	s.active = false
	s.rec = domainsession.Record{}
	s.m.logger.InfoContext(ctx, "Session destroyed", "session", Fingerprint(id))
	s.m.metrics.SessionEvent(metrics.SessionDestroyed)
	return nil
}

// Close releases the backend lock and deactivates the handle.
func (s *Session) Close(_ context.Context) error {
	s.releaseLock()
	s.active = false
	return nil
}

func (s *Session) releaseLock() {
	if s.release != nil {
		s.release()
		s.release = nil
	}
}

func (s *Session) touch() { s.rec.LastActivityAt = s.m.clock.Now() }

func (s *Session) persist(ctx context.Context, op string) error {
	if err := s.m.backend.Save(ctx, s.rec.Clone(), s.m.recordTTL()); err != nil {
		return &SessionError{Op: op, Err: err}
	}
	return nil
}

func (s *Session) writeCookie(id string) {
	c := s.baseCookie()
	c.Value = id
	if lt := s.m.cookie.Lifetime; lt > 0 {
		c.MaxAge = int(lt.Seconds())
		c.Expires = s.m.clock.Now().Add(lt)
	}
	s.transport.SetCookie(c)
}

func (s *Session) expireCookie() {
	c := s.baseCookie()
	c.MaxAge = -1
	c.Expires = time.Unix(0, 0)
	s.transport.SetCookie(c)
}

func (s *Session) baseCookie() *http.Cookie {
	secure := s.transport.IsSecure()
	if s.m.cookie.Secure != nil {
		secure = *s.m.cookie.Secure
	}
	return &http.Cookie{
		Name:     s.m.cookie.Name,
		Path:     s.m.cookie.Path,
		Domain:   s.m.cookie.Domain,
		Secure:   secure,
		HttpOnly: s.m.cookie.HTTPOnly,
		SameSite: s.m.cookie.SameSite,
	}
}

func newSessionID() (string, error) {
	b := make([]byte, sessionIDBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate session id: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

func validSessionID(id string) bool {
	if len(id) != base64.RawURLEncoding.EncodedLen(sessionIDBytes) {
		return false
	}
	for _, c := range id {
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9', c == '-', c == '_':
		default:
			return false
		}
	}
	return true
}

// Fingerprint returns a short, non-reversible tag for logging a session id.
func Fingerprint(id string) string {
	if id == "" {
		return ""
	}
	sum := sha256.Sum256([]byte(id))
	return hex.EncodeToString(sum[:])[:12]
}
