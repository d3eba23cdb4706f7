package service

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	domainsession "github.com/target/gatehouse/internal/domain/session"
	"github.com/target/gatehouse/internal/mocks"
)

func TestSession_StartIssuesCookie(t *testing.T) {
	f := newSessionFixture(t, defaultPolicy())
	s, tr := f.start(t, "")
	defer s.Close(context.Background())

	assert.True(t, s.Started())
	require.NotEmpty(t, s.ID())

	c := tr.last(DefaultCookieName)
	require.NotNil(t, c)
	assert.Equal(t, s.ID(), c.Value)
	assert.Equal(t, "/", c.Path)
	assert.True(t, c.HttpOnly)
	assert.Equal(t, http.SameSiteLaxMode, c.SameSite)
	assert.False(t, c.Secure)
	assert.Contains(t, f.logs.String(), "Session started")
}

func TestSession_SecureFollowsTransport(t *testing.T) {
	f := newSessionFixture(t, defaultPolicy())
	tr := newTransport(nil)
	tr.secure = true
	s := f.manager.Open(tr)
	require.NoError(t, s.Start(context.Background()))
	defer s.Close(context.Background())

	assert.True(t, tr.last(DefaultCookieName).Secure)
}

func TestSession_PersistsAcrossRequests(t *testing.T) {
	ctx := context.Background()
	f := newSessionFixture(t, defaultPolicy())

	s1, _ := f.start(t, "")
	require.NoError(t, s1.Set(ctx, "theme", "dark"))
	id := s1.ID()
	require.NoError(t, s1.Close(ctx))

	f.clock.AddTime(time.Minute)
	s2, tr := f.start(t, id)
	defer s2.Close(ctx)

	assert.Equal(t, id, s2.ID())
	v, err := s2.Get("theme")
	require.NoError(t, err)
	assert.Equal(t, "dark", v)
	assert.Nil(t, tr.last(DefaultCookieName), "no cookie rewrite without regeneration")
}

func TestSession_ClientIDsAreNeverAdopted(t *testing.T) {
	f := newSessionFixture(t, defaultPolicy())

	for _, presented := range []string{
		"attacker-chosen",
		"AAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA", // well-formed but unknown
	} {
		s, _ := f.start(t, presented)
		assert.NotEqual(t, presented, s.ID())
		require.NoError(t, s.Close(context.Background()))
	}
}

func TestSession_RegeneratesAfterInterval(t *testing.T) {
	ctx := context.Background()
	f := newSessionFixture(t, defaultPolicy())

	s1, _ := f.start(t, "")
	require.NoError(t, s1.Set(ctx, "theme", "dark"))
	oldID := s1.ID()
	require.NoError(t, s1.Close(ctx))

	f.clock.AddTime(11 * time.Minute)
	s2, tr := f.start(t, oldID)
	defer s2.Close(ctx)

	assert.NotEqual(t, oldID, s2.ID())
	assert.Equal(t, s2.ID(), tr.last(DefaultCookieName).Value)
	v, err := s2.Get("theme")
	require.NoError(t, err)
	assert.Equal(t, "dark", v, "data survives regeneration")

	_, err = f.backend.Load(ctx, oldID)
	require.ErrorIs(t, err, domainsession.ErrNotFound)
	assert.Contains(t, f.logs.String(), "Session id regenerated")
}

func TestSession_IdleExpiryStartsClean(t *testing.T) {
	ctx := context.Background()
	f := newSessionFixture(t, defaultPolicy())

	s1, _ := f.start(t, "")
	require.NoError(t, s1.Set(ctx, "theme", "dark"))
	oldID := s1.ID()
	require.NoError(t, s1.Close(ctx))

	f.clock.AddTime(DefaultIdleTimeout + 30*time.Second)
	s2, tr := f.start(t, oldID)
	defer s2.Close(ctx)

	assert.NotEqual(t, oldID, s2.ID())
	has, err := s2.Has("theme")
	require.NoError(t, err)
	assert.False(t, has)
	assert.Equal(t, s2.ID(), tr.last(DefaultCookieName).Value)

	_, err = f.backend.Load(ctx, oldID)
	require.ErrorIs(t, err, domainsession.ErrNotFound)
	assert.Contains(t, f.logs.String(), "Session expired due to inactivity")
}

func TestSession_DisabledPoliciesKeepID(t *testing.T) {
	ctx := context.Background()
	f := newSessionFixture(t, SessionPolicy{})

	s1, _ := f.start(t, "")
	id := s1.ID()
	require.NoError(t, s1.Close(ctx))

	f.clock.AddTime(time.Hour)
	s2, _ := f.start(t, id)
	defer s2.Close(ctx)
	assert.Equal(t, id, s2.ID())
}

func TestSession_StartAfterHeadersSent(t *testing.T) {
	f := newSessionFixture(t, defaultPolicy())
	tr := newTransport(nil)
	tr.sent = true

	err := f.manager.Open(tr).Start(context.Background())
	require.ErrorIs(t, err, ErrHeadersSent)

	var se *SessionError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, "start", se.Op)
	assert.Zero(t, f.backend.Len())
}

func TestSession_OperationsRequireStart(t *testing.T) {
	ctx := context.Background()
	f := newSessionFixture(t, defaultPolicy())
	s := f.manager.Open(newTransport(nil))

	_, err := s.Get("k")
	require.ErrorIs(t, err, ErrSessionNotStarted)
	_, err = s.Has("k")
	require.ErrorIs(t, err, ErrSessionNotStarted)
	require.ErrorIs(t, s.Set(ctx, "k", "v"), ErrSessionNotStarted)
	require.ErrorIs(t, s.Remove(ctx, "k"), ErrSessionNotStarted)
	require.ErrorIs(t, s.Clear(ctx), ErrSessionNotStarted)
	require.ErrorIs(t, s.Regenerate(ctx), ErrSessionNotStarted)
	_, err = s.All()
	require.ErrorIs(t, err, ErrSessionNotStarted)
	assert.Empty(t, s.ID())
}

func TestSession_DataOperations(t *testing.T) {
	ctx := context.Background()
	f := newSessionFixture(t, defaultPolicy())
	s, _ := f.start(t, "")
	defer s.Close(ctx)

	require.NoError(t, s.Set(ctx, "a", "1"))
	require.NoError(t, s.Set(ctx, "b", "2"))
	all, err := s.All()
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"a": "1", "b": "2"}, all)

	all["c"] = "3"
	has, err := s.Has("c")
	require.NoError(t, err)
	assert.False(t, has, "All returns a copy")

	require.NoError(t, s.Remove(ctx, "a"))
	require.NoError(t, s.Remove(ctx, "missing"))
	has, err = s.Has("a")
	require.NoError(t, err)
	assert.False(t, has)

	require.NoError(t, s.Set(ctx, "empty", nil))
	has, err = s.Has("empty")
	require.NoError(t, err)
	assert.True(t, has, "a key set to nil is still present")
	require.NoError(t, s.Remove(ctx, "empty"))

	id := s.ID()
	require.NoError(t, s.Clear(ctx))
	all, err = s.All()
	require.NoError(t, err)
	assert.Empty(t, all)
	assert.Equal(t, id, s.ID(), "clear keeps the id")
}

func TestSession_ExplicitRegenerate(t *testing.T) {
	ctx := context.Background()
	f := newSessionFixture(t, defaultPolicy())
	s, tr := f.start(t, "")
	defer s.Close(ctx)

	require.NoError(t, s.Set(ctx, "user", "alice"))
	oldID := s.ID()
	require.NoError(t, s.Regenerate(ctx))

	assert.NotEqual(t, oldID, s.ID())
	assert.Equal(t, s.ID(), tr.last(DefaultCookieName).Value)
	v, err := s.Get("user")
	require.NoError(t, err)
	assert.Equal(t, "alice", v)

	rec, err := f.backend.Load(ctx, s.ID())
	require.NoError(t, err)
	assert.Equal(t, "alice", rec.Data["user"])
	_, err = f.backend.Load(ctx, oldID)
	require.ErrorIs(t, err, domainsession.ErrNotFound)
}

func TestSession_DestroyIsIdempotent(t *testing.T) {
	ctx := context.Background()
	f := newSessionFixture(t, defaultPolicy())
	s, tr := f.start(t, "")

	require.NoError(t, s.Set(ctx, "user", "alice"))
	require.NoError(t, s.Destroy(ctx))
	require.NoError(t, s.Destroy(ctx))

	assert.False(t, s.Started())
	assert.Zero(t, f.backend.Len())
	c := tr.last(DefaultCookieName)
	require.NotNil(t, c)
	assert.Equal(t, -1, c.MaxAge)
	assert.Contains(t, f.logs.String(), "Session destroyed")
}

func TestSession_LockSerializesSameID(t *testing.T) {
	ctx := context.Background()
	f := newSessionFixture(t, SessionPolicy{LockTimeout: 50 * time.Millisecond})

	s1, _ := f.start(t, "")
	id := s1.ID()

	blocked := f.manager.Open(newTransport(map[string]string{DefaultCookieName: id}))
	err := blocked.Start(ctx)
	require.ErrorIs(t, err, context.DeadlineExceeded)

	require.NoError(t, s1.Close(ctx))
	s2, _ := f.start(t, id)
	defer s2.Close(ctx)
	assert.Equal(t, id, s2.ID())
}

func TestSession_LogsRedactSensitiveKeys(t *testing.T) {
	ctx := context.Background()
	f := newSessionFixture(t, defaultPolicy())
	s, _ := f.start(t, "")
	defer s.Close(ctx)

	require.NoError(t, s.Set(ctx, "password", "hunter2"))
	require.NoError(t, s.Set(ctx, "theme", "dark"))

	logs := f.logs.String()
	assert.Contains(t, logs, Redacted)
	assert.Contains(t, logs, `"key":"theme"`)
	assert.NotContains(t, logs, `"key":"password"`)
	assert.NotContains(t, logs, "hunter2")
	assert.NotContains(t, logs, s.ID(), "ids are fingerprinted")
}

func TestSession_ConfiguredSensitiveKeysExtendDefaults(t *testing.T) {
	ctx := context.Background()
	policy := defaultPolicy()
	policy.SensitiveKeys = []string{"ssn"}
	f := newSessionFixture(t, policy)
	s, _ := f.start(t, "")
	defer s.Close(ctx)

	require.NoError(t, s.Set(ctx, "ssn", "000-00-0000"))
	require.NoError(t, s.Set(ctx, "password", "hunter2"))
	_, err := NewSessionCSRFManager(s).Token(ctx)
	require.NoError(t, err)

	logs := f.logs.String()
	assert.NotContains(t, logs, `"key":"ssn"`)
	assert.NotContains(t, logs, `"key":"password"`)
	assert.NotContains(t, logs, `"key":"`+domainsession.KeyCSRFToken+`"`)
}

func TestNewRedactor(t *testing.T) {
	r := NewRedactor([]string{"ssn", ""})
	assert.Equal(t, Redacted, r.Key("ssn"))
	assert.Equal(t, Redacted, r.Key("password"))
	assert.Equal(t, Redacted, r.Key(domainsession.KeyCSRFToken))
	assert.Equal(t, "theme", r.Key("theme"))
	assert.Equal(t, "", r.Key(""))

	assert.Equal(t, Redacted, NewRedactor(nil).Key("token"))
}

func TestSession_SetRevertsOnPersistFailure(t *testing.T) {
	ctx := context.Background()
	ctrl := gomock.NewController(t)
	backend := mocks.NewMockSessionBackend(ctrl)

	backend.EXPECT().Lock(gomock.Any(), gomock.Any()).Return(func() {}, nil).Times(2)
	backend.EXPECT().Save(gomock.Any(), gomock.Any(), gomock.Any()).Return(nil).Times(2)
	backend.EXPECT().Delete(gomock.Any(), gomock.Any()).Return(nil)
	backend.EXPECT().Save(gomock.Any(), gomock.Any(), gomock.Any()).Return(errors.New("backend down"))

	m := NewSessionManager(SessionManagerOptions{Backend: backend})
	s := m.Open(newTransport(nil))
	require.NoError(t, s.Start(ctx))

	err := s.Set(ctx, "k", "v")
	var se *SessionError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, "set", se.Op)

	v, err := s.Get("k")
	require.NoError(t, err)
	assert.Nil(t, v)
	require.NoError(t, s.Close(ctx))
}

func TestNewSessionManager_PanicsWithoutBackend(t *testing.T) {
	assert.Panics(t, func() { NewSessionManager(SessionManagerOptions{}) })
}

func TestFingerprint(t *testing.T) {
	assert.Empty(t, Fingerprint(""))
	fp := Fingerprint("abc")
	assert.Len(t, fp, 12)
	assert.Equal(t, fp, Fingerprint("abc"))
	assert.NotEqual(t, fp, Fingerprint("abd"))
}

func TestNoopSession(t *testing.T) {
	ctx := context.Background()
	var s NoopSession
	require.NoError(t, s.Start(ctx))
	assert.False(t, s.Started())
	require.NoError(t, s.Set(ctx, "k", "v"))
	v, err := s.Get("k")
	require.NoError(t, err)
	assert.Nil(t, v)
	require.NoError(t, s.Destroy(ctx))
}
