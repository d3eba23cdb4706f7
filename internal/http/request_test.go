package httpx

import (
	"crypto/tls"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRequest_SetCookieReplacesSameName(t *testing.T) {
	rec := httptest.NewRecorder()
	req := NewRequest(rec, httptest.NewRequest(http.MethodGet, "/", nil), false)

	req.SetCookie(&http.Cookie{Name: "sid", Value: "old"})
	req.SetCookie(&http.Cookie{Name: "other", Value: "keep"})
	req.SetCookie(&http.Cookie{Name: "sid", Value: "new"})

	got := rec.Header().Values("Set-Cookie")
	assert.Len(t, got, 2)
	assert.Contains(t, got, "other=keep")
	assert.Contains(t, got, "sid=new")
	assert.NotContains(t, strings.Join(got, ";"), "sid=old")
}

func TestRequest_HeadersSent(t *testing.T) {
	rec := httptest.NewRecorder()
	req := NewRequest(rec, httptest.NewRequest(http.MethodGet, "/", nil), false)
	assert.False(t, req.HeadersSent())

	_, _ = req.Writer().Write([]byte("x"))
	assert.True(t, req.HeadersSent())

	// Rewrapping the same writer shares the committed state.
	again := NewRequest(req.Writer(), httptest.NewRequest(http.MethodGet, "/", nil), false)
	assert.True(t, again.HeadersSent())
}

func TestRequest_IsSecure(t *testing.T) {
	plain := httptest.NewRequest(http.MethodGet, "/", nil)
	proxied := httptest.NewRequest(http.MethodGet, "/", nil)
	proxied.Header.Set("X-Forwarded-Proto", "HTTPS")
	direct := httptest.NewRequest(http.MethodGet, "/", nil)
	direct.TLS = &tls.ConnectionState{}

	assert.False(t, NewRequest(httptest.NewRecorder(), plain, true).IsSecure())
	assert.False(t, NewRequest(httptest.NewRecorder(), proxied, false).IsSecure(), "forwarded header ignored without trust")
	assert.True(t, NewRequest(httptest.NewRecorder(), proxied, true).IsSecure())
	assert.True(t, NewRequest(httptest.NewRecorder(), direct, false).IsSecure())
}

func TestRequest_PostFieldsOnlyFromBody(t *testing.T) {
	get := NewRequest(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/?_csrf=q", nil), false)
	assert.False(t, get.HasPostField("_csrf"))
	assert.Empty(t, get.PostField("_csrf"))

	r := httptest.NewRequest(http.MethodPost, "/?_csrf=query", strings.NewReader("_csrf=body&empty="))
	r.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	post := NewRequest(httptest.NewRecorder(), r, false)
	assert.Equal(t, "body", post.PostField("_csrf"))
	assert.True(t, post.HasPostField("empty"))
	assert.False(t, post.HasPostField("missing"))
	assert.Equal(t, http.MethodPost, post.Method())
}

func TestRequest_Origin(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Host = "localhost:8080"
	r.RemoteAddr = "10.1.2.3:5555"

	o := NewRequest(httptest.NewRecorder(), r, false).Origin()
	assert.Equal(t, "localhost:8080", o.Host)
	assert.Equal(t, "10.1.2.3:5555", o.RemoteAddr)
}

func TestWantsJSON(t *testing.T) {
	xhr := httptest.NewRequest(http.MethodGet, "/", nil)
	xhr.Header.Set("X-Requested-With", "XMLHttpRequest")

	api := httptest.NewRequest(http.MethodGet, "/", nil)
	api.Header.Set("Accept", "application/json")

	browser := httptest.NewRequest(http.MethodGet, "/", nil)
	browser.Header.Set("Accept", "text/html,application/xhtml+xml,application/json;q=0.9")

	ajax := httptest.NewRequest(http.MethodPost, "/", strings.NewReader("ajax=ping"))
	ajax.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	_ = ajax.ParseForm()

	assert.True(t, WantsJSON(xhr))
	assert.True(t, WantsJSON(api))
	assert.False(t, WantsJSON(browser))
	assert.True(t, WantsJSON(ajax))
	assert.False(t, WantsJSON(httptest.NewRequest(http.MethodGet, "/", nil)))
}
