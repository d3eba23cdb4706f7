package service

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/target/gatehouse/internal/adapters/memstore"
	"github.com/target/gatehouse/internal/clock"
	"github.com/target/gatehouse/internal/testutil"
)

// fakeTransport records cookies written by a session handle.
type fakeTransport struct {
	cookies map[string]string
	set     []*http.Cookie
	sent    bool
	secure  bool
}

func newTransport(cookies map[string]string) *fakeTransport {
	if cookies == nil {
		cookies = map[string]string{}
	}
	return &fakeTransport{cookies: cookies}
}

func (f *fakeTransport) HeadersSent() bool { return f.sent }
func (f *fakeTransport) IsSecure() bool    { return f.secure }

func (f *fakeTransport) Cookie(name string) (string, bool) {
	v, ok := f.cookies[name]
	return v, ok
}

func (f *fakeTransport) SetCookie(c *http.Cookie) { f.set = append(f.set, c) }

// last returns the most recent cookie written under name.
func (f *fakeTransport) last(name string) *http.Cookie {
	for i := len(f.set) - 1; i >= 0; i-- {
		if f.set[i].Name == name {
			return f.set[i]
		}
	}
	return nil
}

type sessionFixture struct {
	manager *SessionManager
	backend *memstore.Backend
	clock   *clock.FixedTimeProvider
	logs    *testutil.LogBuffer
}

func newSessionFixture(t *testing.T, policy SessionPolicy) *sessionFixture {
	t.Helper()
	tp := clock.NewFixedTimeProvider(testutil.TestTime())
	backend := memstore.New(tp)
	logger, logs := testutil.NewTestLogger()
	m := NewSessionManager(SessionManagerOptions{
		Backend: backend,
		Config: SessionManagerConfig{
			Policy: policy,
			Cookie: CookieConfig{HTTPOnly: true},
		},
		Runtime: SessionRuntime{Logger: logger, Clock: tp},
	})
	return &sessionFixture{manager: m, backend: backend, clock: tp, logs: logs}
}

func defaultPolicy() SessionPolicy {
	return SessionPolicy{
		IdleTimeout:   DefaultIdleTimeout,
		RegenInterval: DefaultRegenInterval,
		LockTimeout:   time.Second,
	}
}

// start opens and starts a handle presenting cookieID (may be empty).
func (f *sessionFixture) start(t *testing.T, cookieID string) (*Session, *fakeTransport) {
	t.Helper()
	cookies := map[string]string{}
	if cookieID != "" {
		cookies[f.manager.CookieName()] = cookieID
	}
	tr := newTransport(cookies)
	s := f.manager.Open(tr)
	require.NoError(t, s.Start(context.Background()))
	return s, tr
}
