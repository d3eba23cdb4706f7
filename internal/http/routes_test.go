package httpx

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/target/gatehouse/internal/domain/route"
	apperrors "github.com/target/gatehouse/internal/errors"
	"github.com/target/gatehouse/internal/testutil"
)

func testCatalog() RouteCatalog {
	return RouteCatalog{
		route.CategoryPublicView: {"home", "about"},
		route.CategoryAdminView:  {"dashboard"},
		route.CategoryAjax:       {"ping"},
		route.CategoryAction:     {"do"},
	}
}

func TestQueryRouteResolver(t *testing.T) {
	resolver := NewQueryRouteResolver(testCatalog())

	tests := []struct {
		name    string
		method  string
		target  string
		form    url.Values
		want    route.Route
		wantErr func(error) bool
	}{
		{name: "default is home", method: http.MethodGet, target: "/", want: route.Home},
		{name: "empty page is absent", method: http.MethodGet, target: "/?page=", want: route.Home},
		{name: "public page", method: http.MethodGet, target: "/?page=about", want: route.Route{Name: "about", Category: route.CategoryPublicView}},
		{name: "admin page", method: http.MethodGet, target: "/?admin_page=dashboard", want: route.Route{Name: "dashboard", Category: route.CategoryAdminView}},
		{name: "action", method: http.MethodGet, target: "/?action=do", want: route.Route{Name: "do", Category: route.CategoryAction}},
		{name: "ajax from post field", method: http.MethodPost, target: "/", form: url.Values{"ajax": {"ping"}}, want: route.Route{Name: "ping", Category: route.CategoryAjax}},
		{name: "ajax wins over query", method: http.MethodPost, target: "/?page=about&action=do", form: url.Values{"ajax": {"ping"}}, want: route.Route{Name: "ping", Category: route.CategoryAjax}},
		{name: "action wins over pages", method: http.MethodGet, target: "/?admin_page=dashboard&action=do", want: route.Route{Name: "do", Category: route.CategoryAction}},
		{name: "admin page wins over page", method: http.MethodGet, target: "/?page=about&admin_page=dashboard", want: route.Route{Name: "dashboard", Category: route.CategoryAdminView}},
		{name: "ajax query on GET is ignored", method: http.MethodGet, target: "/?ajax=ping", want: route.Home},
		{name: "action posted as GET query", method: http.MethodPost, target: "/?action=do", want: route.Route{Name: "do", Category: route.CategoryAction}},
		{name: "name is trimmed", method: http.MethodGet, target: "/?page=%20about%20", want: route.Route{Name: "about", Category: route.CategoryPublicView}},
		{name: "invalid characters", method: http.MethodGet, target: "/?page=a/b", wantErr: apperrors.IsBadRoute},
		{name: "traversal", method: http.MethodGet, target: "/?admin_page=..%2Fsecret", wantErr: apperrors.IsBadRoute},
		{name: "blank after trim", method: http.MethodGet, target: "/?page=%20", wantErr: apperrors.IsBadRoute},
		{name: "unknown page", method: http.MethodGet, target: "/?page=missing", wantErr: apperrors.IsRouteNotFound},
		{name: "admin name in public category", method: http.MethodGet, target: "/?page=dashboard", wantErr: apperrors.IsRouteNotFound},
		{name: "unknown ajax", method: http.MethodPost, target: "/", form: url.Values{"ajax": {"nope"}}, wantErr: apperrors.IsRouteNotFound},
		{name: "bare route param", method: http.MethodGet, target: "/?route=home", wantErr: apperrors.IsRouteNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(tt.method, tt.target, strings.NewReader(tt.form.Encode()))
			if tt.form != nil {
				r.Header.Set("Content-Type", "application/x-www-form-urlencoded")
			}

			got, err := resolver.Resolve(NewRequest(httptest.NewRecorder(), r, false))
			if tt.wantErr != nil {
				require.Error(t, err)
				assert.True(t, tt.wantErr(err), "unexpected error kind: %v", err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRouteCatalog_Merge(t *testing.T) {
	a := RouteCatalog{route.CategoryPublicView: {"home"}}
	b := RouteCatalog{route.CategoryPublicView: {"about"}, route.CategoryAjax: {"ping"}}

	m := a.Merge(b)
	assert.Equal(t, []string{"about", "home"}, m[route.CategoryPublicView])
	assert.True(t, m.Has(route.CategoryAjax, "ping"))
	assert.Len(t, a[route.CategoryPublicView], 1, "receiver is not modified")
}

func TestHealthHandler(t *testing.T) {
	tests := []struct {
		name   string
		method string
		check  HealthCheck
		status int
		body   string
	}{
		{"nil check", http.MethodGet, nil, http.StatusOK, healthResponse},
		{"passing check", http.MethodGet, func(context.Context) error { return nil }, http.StatusOK, healthResponse},
		{"failing check", http.MethodGet, func(context.Context) error { return errors.New("redis down") }, http.StatusServiceUnavailable, unhealthResponse},
		{"head has no body", http.MethodHead, nil, http.StatusOK, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			healthHandler(tt.check).ServeHTTP(rec, httptest.NewRequest(tt.method, "/healthz", nil))
			assert.Equal(t, tt.status, rec.Code)
			assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
			assert.Equal(t, tt.body, rec.Body.String())
		})
	}
}

func TestNewRouter_RecoversHealthPanic(t *testing.T) {
	logger, logs := testutil.NewTestLogger()
	errs := NewErrorHandler(ErrorHandlerOptions{
		Mappers: DefaultMappers(StatusCSRFExpired),
		Runtime: ErrorRuntime{Logger: logger},
	})
	router := NewRouter(RouterOptions{
		Pipeline: http.NotFoundHandler(),
		Health:   func(context.Context) error { panic("backend client is nil") },
		Errors:   errs,
		Logger:   logger,
	})

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("Accept", "application/json")
	rec := httptest.NewRecorder()
	require.NotPanics(t, func() { router.ServeHTTP(rec, req) })

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "correlation_id")
	assert.Contains(t, logs.String(), "backend client is nil")
	assert.Contains(t, logs.String(), `"status":500`, "access log records the recovered status")
}
