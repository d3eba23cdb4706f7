package httpx

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domainauth "github.com/target/gatehouse/internal/domain/auth"
	"github.com/target/gatehouse/internal/domain/route"
)

func TestTemplateViewRenderer_Catalog(t *testing.T) {
	r, err := NewTemplateViewRenderer(TemplateViewRendererConfig{Endpoints: DefaultEndpoints()})
	require.NoError(t, err)

	c := r.Catalog()
	assert.True(t, c.Has(route.CategoryPublicView, "home"))
	assert.True(t, c.Has(route.CategoryPublicView, "about"))
	assert.True(t, c.Has(route.CategoryAdminView, "dashboard"))
	assert.True(t, c.Has(route.CategoryAjax, EndpointPing))
	assert.True(t, c.Has(route.CategoryAction, EndpointClearFlash))
	assert.False(t, c.Has(route.CategoryPublicView, "dashboard"), "admin pages are not public")
	assert.False(t, c.Has(route.CategoryPublicView, "error"))
}

func TestTemplateViewRenderer_CustomFS(t *testing.T) {
	fsys := fstest.MapFS{
		"site.tmpl": {Data: []byte(`{{define "nav/public"}}[{{.Title}}]{{end}}` +
			`{{define "footer/public"}}[end]{{end}}` +
			`{{define "public/release-notes"}}notes{{end}}`)},
	}
	r, err := NewTemplateViewRenderer(TemplateViewRendererConfig{TemplateFS: fsys})
	require.NoError(t, err)

	rt := route.Route{Name: "release-notes", Category: route.CategoryPublicView}
	rec := httptest.NewRecorder()
	err = r.Render(rec, httptest.NewRequest(http.MethodGet, "/", nil), rt, ViewData{Route: rt})
	require.NoError(t, err)
	assert.Equal(t, "[Release Notes]notes[end]", rec.Body.String())
	assert.Equal(t, "text/html; charset=utf-8", rec.Header().Get("Content-Type"))

	// No error template in this set; the caller falls back to plain text.
	require.Error(t, r.RenderError(httptest.NewRecorder(), nil, ErrorPage{Status: http.StatusNotFound}))
}

func TestTemplateViewRenderer_ParseError(t *testing.T) {
	_, err := NewTemplateViewRenderer(TemplateViewRendererConfig{
		TemplateFS: fstest.MapFS{"bad.tmpl": {Data: []byte(`{{define "x"}}{{.Missing`)}},
	})
	require.Error(t, err)
}

func TestTemplateViewRenderer_MissingTargets(t *testing.T) {
	r, err := NewTemplateViewRenderer(TemplateViewRendererConfig{})
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodGet, "/", nil)

	err = r.Render(httptest.NewRecorder(), req, route.Route{Name: "nope", Category: route.CategoryPublicView}, ViewData{})
	require.Error(t, err)

	err = r.Render(httptest.NewRecorder(), req, route.Route{Name: "nope", Category: route.CategoryAjax}, ViewData{})
	require.Error(t, err)
}

func TestTemplateViewRenderer_EscapesOutput(t *testing.T) {
	r, err := NewTemplateViewRenderer(TemplateViewRendererConfig{})
	require.NoError(t, err)

	auth := domainauth.NewAuthContext(domainauth.SSOIdentity(domainauth.RolePublic, "u1", "<script>x</script>", ""))
	rec := httptest.NewRecorder()
	err = r.Render(rec, httptest.NewRequest(http.MethodGet, "/", nil), route.Home, ViewData{Route: route.Home, Auth: auth})
	require.NoError(t, err)
	assert.NotContains(t, rec.Body.String(), "<script>x</script>")
	assert.Contains(t, rec.Body.String(), "&lt;script&gt;")
}

func TestTemplateViewRenderer_RenderError(t *testing.T) {
	r, err := NewTemplateViewRenderer(TemplateViewRendererConfig{})
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	require.NoError(t, r.RenderError(rec, nil, ErrorPage{Status: 500, Message: MsgInternal, CorrelationID: "abc123def456"}))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "abc123def456")
	assert.Contains(t, rec.Body.String(), MsgInternal)
}

func TestLayoutFor(t *testing.T) {
	assert.Equal(t, LayoutAdmin, LayoutFor(domainauth.NewAuthContext(domainauth.LocalIdentity(domainauth.RoleAdmin))))
	assert.Equal(t, LayoutPublic, LayoutFor(domainauth.NewAuthContext(domainauth.LocalIdentity(domainauth.RolePublic))))
	assert.Equal(t, LayoutPublic, LayoutFor(domainauth.NewAuthContext(domainauth.GuestIdentity())))
}
