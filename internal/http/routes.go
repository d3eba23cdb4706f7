package httpx

import (
	"log/slog"
	"net/http"
	"regexp"
	"sort"
	"strings"

	"github.com/target/gatehouse/internal/domain/route"
	apperrors "github.com/target/gatehouse/internal/errors"
	"github.com/target/gatehouse/internal/ports"
)

// Query and form parameters that select a route.
const (
	ParamAjax      = "ajax"
	ParamAction    = "action"
	ParamAdminPage = "admin_page"
	ParamPage      = "page"
	ParamRoute     = "route"
)

var routeNamePattern = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

// RouteResolver maps a request to a route descriptor. Failures are
// BadRoute or RouteNotFound errors.
type RouteResolver interface {
	Resolve(req ports.RequestView) (route.Route, error)
}

// RouteCatalog lists the route names registered per category.
type RouteCatalog map[route.Category][]string

// Has reports whether name is registered under category.
func (c RouteCatalog) Has(category route.Category, name string) bool {
	for _, n := range c[category] {
		if n == name {
			return true
		}
	}
	return false
}

// Merge returns a catalog holding the names of c and other.
func (c RouteCatalog) Merge(other RouteCatalog) RouteCatalog {
	out := RouteCatalog{}
	for _, src := range []RouteCatalog{c, other} {
		for cat, names := range src {
			out[cat] = append(out[cat], names...)
		}
	}
	for cat := range out {
		sort.Strings(out[cat])
	}
	return out
}

// QueryRouteResolver selects a route from query and form parameters:
// a POSTed "ajax" field, then "action", "admin_page" and "page" query
// parameters. A bare "route" parameter never matches. With no parameter the
// public home page is served.
type QueryRouteResolver struct {
	catalog RouteCatalog
}

var _ RouteResolver = (*QueryRouteResolver)(nil)

// NewQueryRouteResolver builds a resolver over catalog.
func NewQueryRouteResolver(catalog RouteCatalog) *QueryRouteResolver {
	return &QueryRouteResolver{catalog: catalog}
}

func (q *QueryRouteResolver) Resolve(req ports.RequestView) (route.Route, error) {
	if req.Method() == http.MethodPost && req.HasPostField(ParamAjax) {
		return q.lookup(route.CategoryAjax, req.PostField(ParamAjax))
	}
	if name := req.Query(ParamAction); name != "" {
		return q.lookup(route.CategoryAction, name)
	}
	if name := req.Query(ParamAdminPage); name != "" {
		return q.lookup(route.CategoryAdminView, name)
	}
	if name := req.Query(ParamPage); name != "" {
		return q.lookup(route.CategoryPublicView, name)
	}
	if name := req.Query(ParamRoute); name != "" {
		return route.Route{}, apperrors.RouteNotFoundf("no route matched: %s", name)
	}
	return q.lookup(route.Home.Category, route.Home.Name)
}

func (q *QueryRouteResolver) lookup(category route.Category, raw string) (route.Route, error) {
	name := strings.TrimSpace(raw)
	if !routeNamePattern.MatchString(name) {
		return route.Route{}, apperrors.BadRoutef("invalid route name: %q", name)
	}
	if !q.catalog.Has(category, name) {
		return route.Route{}, apperrors.RouteNotFoundf("no %s route named %s", category, name)
	}
	return route.Route{Name: name, Category: category}, nil
}

// RouterOptions groups the handlers mounted by NewRouter.
type RouterOptions struct {
	Pipeline http.Handler // Required
	Health   HealthCheck
	// Errors renders panics escaping any mounted handler as a 500.
	Errors *ErrorHandler
	Logger *slog.Logger
}

// NewRouter mounts the health endpoint and sends everything else through the
// security pipeline.
func NewRouter(opts RouterOptions) http.Handler {
	if opts.Pipeline == nil {
		panic("router: pipeline is required")
	}
	mux := http.NewServeMux()
	health := healthHandler(opts.Health)
	mux.Handle("GET /healthz", health)
	mux.Handle("/", opts.Pipeline)

	var h http.Handler = mux
	if opts.Errors != nil {
		h = Recover(opts.Errors)(h)
	}
	return Logging(opts.Logger)(h)
}
