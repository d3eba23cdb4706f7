package httpx

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/target/gatehouse/internal/domain/route"
)

// Built-in endpoint names.
const (
	EndpointPing       = "ping"
	EndpointFlash      = "flash"
	EndpointClearFlash = "clear-flash"
)

// DefaultEndpoints returns the built-in ajax and action endpoints.
func DefaultEndpoints() map[string]Endpoint {
	return map[string]Endpoint{
		EndpointKey(route.CategoryAjax, EndpointPing):         pingEndpoint,
		EndpointKey(route.CategoryAjax, EndpointFlash):        flashEndpoint,
		EndpointKey(route.CategoryAction, EndpointClearFlash): clearFlashEndpoint,
	}
}

// pingEndpoint answers with the rotated CSRF token for the next request.
func pingEndpoint(w http.ResponseWriter, r *http.Request, data ViewData) error {
	ctx := r.Context()
	WriteJSON(w, http.StatusOK, map[string]string{
		"status":     "pong",
		"role":       AuthFromContext(ctx).Role().String(),
		"admin":      strconv.FormatBool(IsAdminRequest(ctx)),
		"csrf_token": data.CSRFToken,
	})
	return nil
}

// flashEndpoint queues the posted message for the next page view.
func flashEndpoint(w http.ResponseWriter, r *http.Request, data ViewData) error {
	msg := strings.TrimSpace(r.PostFormValue("message"))
	if msg == "" {
		WriteJSON(w, http.StatusOK, map[string]string{"status": "ignored", "csrf_token": data.CSRFToken})
		return nil
	}
	if err := data.Flash.Set(r.Context(), "notice", msg); err != nil {
		return err
	}
	WriteJSON(w, http.StatusOK, map[string]string{"status": "queued", "csrf_token": data.CSRFToken})
	return nil
}

func clearFlashEndpoint(w http.ResponseWriter, r *http.Request, data ViewData) error {
	if _, err := data.Flash.ConsumeAll(r.Context()); err != nil {
		return err
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
	return nil
}
