package httpx

import (
	"bytes"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"io/fs"
	"log/slog"
	"net/http"
	"strings"

	domainauth "github.com/target/gatehouse/internal/domain/auth"
	"github.com/target/gatehouse/internal/domain/route"
	"github.com/target/gatehouse/internal/service"
)

//go:embed views/*.tmpl
var defaultViews embed.FS

// DefaultViewsFS returns the built-in templates.
func DefaultViewsFS() fs.FS { return defaultViews }

// Layout names.
const (
	LayoutPublic = "public"
	LayoutAdmin  = "admin"
)

// ViewData is the data bag handed to the renderer once every guard passed.
type ViewData struct {
	Route     route.Route
	Auth      domainauth.AuthContext
	Flash     *service.FlashBag
	CSRFToken string
	// Layout is "admin" for administrators on every page, public pages included.
	Layout string
}

// LayoutFor picks the chrome for auth. The route area is left untouched, so
// access decisions never depend on it.
func LayoutFor(auth domainauth.AuthContext) string {
	if auth.IsAdmin() {
		return LayoutAdmin
	}
	return LayoutPublic
}

// ViewRenderer produces the response for a resolved route.
type ViewRenderer interface {
	Render(w http.ResponseWriter, r *http.Request, rt route.Route, data ViewData) error
}

// ErrorPage is the data for an error response.
type ErrorPage struct {
	Status        int
	Message       string
	CorrelationID string
}

// ErrorPageRenderer writes an HTML error page.
type ErrorPageRenderer interface {
	RenderError(w http.ResponseWriter, r *http.Request, page ErrorPage) error
}

// Endpoint serves an ajax or action route.
type Endpoint func(w http.ResponseWriter, r *http.Request, data ViewData) error

// TemplateViewRendererConfig holds configuration for creating a TemplateViewRenderer.
type TemplateViewRendererConfig struct {
	TemplateFS fs.FS               // Filesystem containing *.tmpl (defaults to the built-in views)
	Endpoints  map[string]Endpoint // Keyed by EndpointKey(category, name)
	Logger     *slog.Logger        // Logger for template errors (optional)
}

// TemplateViewRenderer renders view routes from html/template definitions
// named "public/<name>" and "admin/<name>", framed by the "nav/<layout>" and
// "footer/<layout>" templates. Ajax and action routes go to registered endpoints.
type TemplateViewRenderer struct {
	t         *template.Template
	endpoints map[string]Endpoint
	logger    *slog.Logger
}

var (
	_ ViewRenderer      = (*TemplateViewRenderer)(nil)
	_ ErrorPageRenderer = (*TemplateViewRenderer)(nil)
)

// EndpointKey builds the endpoint map key for a route.
func EndpointKey(category route.Category, name string) string {
	return string(category) + ":" + name
}

// NewTemplateViewRenderer parses the templates in cfg.TemplateFS.
func NewTemplateViewRenderer(cfg TemplateViewRendererConfig) (*TemplateViewRenderer, error) {
	fsys := cfg.TemplateFS
	pattern := "*.tmpl"
	if fsys == nil {
		fsys, pattern = defaultViews, "views/*.tmpl"
	}
	t, err := template.New("root").ParseFS(fsys, pattern)
	if err != nil {
		if cfg.Logger != nil {
			cfg.Logger.Error("template parsing failed",
				slog.Any("error", err),
				slog.String("phase", "initialization"),
			)
		}
		return nil, fmt.Errorf("parse templates: %w", err)
	}
	endpoints := make(map[string]Endpoint, len(cfg.Endpoints))
	for k, v := range cfg.Endpoints {
		endpoints[k] = v
	}
	return &TemplateViewRenderer{t: t, endpoints: endpoints, logger: cfg.Logger}, nil
}

// Catalog lists every route this renderer can serve.
func (v *TemplateViewRenderer) Catalog() RouteCatalog {
	c := RouteCatalog{}
	for _, t := range v.t.Templates() {
		switch name := t.Name(); {
		case strings.HasPrefix(name, "public/"):
			c[route.CategoryPublicView] = append(c[route.CategoryPublicView], strings.TrimPrefix(name, "public/"))
		case strings.HasPrefix(name, "admin/"):
			c[route.CategoryAdminView] = append(c[route.CategoryAdminView], strings.TrimPrefix(name, "admin/"))
		}
	}
	for key := range v.endpoints {
		cat, name, ok := strings.Cut(key, ":")
		if ok {
			c[route.Category(cat)] = append(c[route.Category(cat)], name)
		}
	}
	return c.Merge(nil)
}

func (v *TemplateViewRenderer) Render(w http.ResponseWriter, r *http.Request, rt route.Route, data ViewData) error {
	if !rt.IsView() {
		ep, ok := v.endpoints[EndpointKey(rt.Category, rt.Name)]
		if !ok {
			return fmt.Errorf("no endpoint registered for %s route %q", rt.Category, rt.Name)
		}
		return ep(w, r, data)
	}

	page := pageTemplate(rt)
	if v.t.Lookup(page) == nil {
		return fmt.Errorf("template %q is not defined", page)
	}
	layout := data.Layout
	if layout == "" {
		layout = LayoutPublic
	}

	var flashes map[string]any
	if data.Flash != nil {
		var err error
		if flashes, err = data.Flash.ConsumeAll(r.Context()); err != nil {
			return fmt.Errorf("consume flash: %w", err)
		}
	}
	model := pageModel{ViewData: data, Title: titleFor(rt), Flashes: flashes}

	var buf bytes.Buffer
	for _, name := range []string{"nav/" + layout, page, "footer/" + layout} {
		if err := v.t.ExecuteTemplate(&buf, name, model); err != nil {
			v.logTemplateError(name, err)
			return err
		}
	}
	return v.write(w, http.StatusOK, &buf)
}

// RenderError renders the "error" template, falling back to plain text when
// the template set has none.
func (v *TemplateViewRenderer) RenderError(w http.ResponseWriter, _ *http.Request, page ErrorPage) error {
	if v.t.Lookup("error") == nil {
		return errors.New("error template is not defined")
	}
	var buf bytes.Buffer
	if err := v.t.ExecuteTemplate(&buf, "error", page); err != nil {
		v.logTemplateError("error", err)
		return err
	}
	return v.write(w, page.Status, &buf)
}

func (v *TemplateViewRenderer) write(w http.ResponseWriter, status int, buf *bytes.Buffer) error {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if _, err := buf.WriteTo(w); err != nil {
		if v.logger != nil {
			v.logger.Error("failed to write rendered template", slog.Any("error", err))
		}
		return err
	}
	return nil
}

// logTemplateError logs a template execution error with context.
func (v *TemplateViewRenderer) logTemplateError(templateName string, err error) {
	if v.logger == nil || err == nil {
		return
	}
	v.logger.Error("template execution failed",
		slog.String("template", templateName),
		slog.Any("error", err),
	)
}

type pageModel struct {
	ViewData
	Title   string
	Flashes map[string]any
}

func pageTemplate(rt route.Route) string {
	if rt.IsAdmin() {
		return "admin/" + rt.Name
	}
	return "public/" + rt.Name
}

func titleFor(rt route.Route) string {
	words := strings.FieldsFunc(rt.Name, func(r rune) bool { return r == '-' || r == '_' })
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}
