package httpx

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/uuid"

	apperrors "github.com/target/gatehouse/internal/errors"
	obserrors "github.com/target/gatehouse/internal/observability/errors"
	"github.com/target/gatehouse/internal/observability/logging"
	"github.com/target/gatehouse/internal/observability/metrics"
)

// StatusCSRFExpired is the non-standard "page expired" status used for CSRF failures.
const StatusCSRFExpired = 419

// Public messages. Internal error text never reaches a response body.
const (
	MsgBadRequest       = "Invalid request."
	MsgAccessDenied     = "Access denied."
	MsgNotFound         = "The requested page does not exist."
	MsgMethodNotAllowed = "Method not allowed."
	MsgCSRFExpired      = "Your session expired. Please refresh and try again."
	MsgInternal         = "Something went wrong. Please try again."
)

// HTTPError is the user-facing outcome of a failed request.
type HTTPError struct {
	Status        int
	PublicMessage string
	// CorrelationID is set for unclassified failures only.
	CorrelationID string
}

// ErrorMapper converts a class of errors into an HTTPError.
type ErrorMapper interface {
	Supports(err error) bool
	Map(err error) HTTPError
}

// codeMapper maps an AppError code to a fixed status. With passMessage set
// the error's own message is shown, since guard messages are written for users.
type codeMapper struct {
	code        apperrors.ErrorCode
	status      int
	message     string
	passMessage bool
}

func (m codeMapper) Supports(err error) bool { return apperrors.GetCode(err) == m.code }

func (m codeMapper) Map(err error) HTTPError {
	msg := m.message
	if m.passMessage {
		var appErr *apperrors.AppError
		if errors.As(err, &appErr) && appErr.Message != "" {
			msg = appErr.Message
		}
	}
	return HTTPError{Status: m.status, PublicMessage: msg}
}

// FallbackMapper matches every error and yields a 500 with a fresh correlation id.
type FallbackMapper struct{}

func (FallbackMapper) Supports(error) bool { return true }

func (FallbackMapper) Map(error) HTTPError {
	return HTTPError{Status: http.StatusInternalServerError, PublicMessage: MsgInternal, CorrelationID: NewCorrelationID()}
}

// NewCorrelationID returns a short opaque id for support lookups.
func NewCorrelationID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
}

// DefaultMappers returns the standard mapping. csrfStatus is 419 unless the
// deployment cannot emit it, in which case 403 is used.
func DefaultMappers(csrfStatus int) []ErrorMapper {
	if csrfStatus != http.StatusForbidden {
		csrfStatus = StatusCSRFExpired
	}
	return []ErrorMapper{
		codeMapper{code: apperrors.ErrCodeBadRoute, status: http.StatusBadRequest, message: MsgBadRequest},
		codeMapper{code: apperrors.ErrCodeAccessDenied, status: http.StatusForbidden, message: MsgAccessDenied, passMessage: true},
		codeMapper{code: apperrors.ErrCodeRouteNotFound, status: http.StatusNotFound, message: MsgNotFound},
		codeMapper{code: apperrors.ErrCodeMethodNotAllowed, status: http.StatusMethodNotAllowed, message: MsgMethodNotAllowed, passMessage: true},
		codeMapper{code: apperrors.ErrCodeCSRFInvalid, status: csrfStatus, message: MsgCSRFExpired},
		FallbackMapper{},
	}
}

// ErrorHandlerOptions groups dependencies for ErrorHandler.
type ErrorHandlerOptions struct {
	Mappers []ErrorMapper     // Defaults to DefaultMappers(419)
	Pages   ErrorPageRenderer // Optional; plain text when nil
	Runtime ErrorRuntime
}

// ErrorRuntime groups optional collaborators.
type ErrorRuntime struct {
	Logger  *slog.Logger
	Metrics *metrics.Recorder
}

// ErrorHandler turns any error into exactly one logged, sanitized response.
type ErrorHandler struct {
	mappers []ErrorMapper
	pages   ErrorPageRenderer
	logger  *slog.Logger
	metrics *metrics.Recorder
}

// NewErrorHandler constructs an ErrorHandler. A FallbackMapper is always consulted last.
func NewErrorHandler(opts ErrorHandlerOptions) *ErrorHandler {
	mappers := opts.Mappers
	if len(mappers) == 0 {
		mappers = DefaultMappers(StatusCSRFExpired)
	}
	return &ErrorHandler{
		mappers: mappers,
		pages:   opts.Pages,
		logger:  logging.Channel(opts.Runtime.Logger, logging.ChannelHTTP),
		metrics: opts.Runtime.Metrics,
	}
}

// Map returns the HTTPError for err.
func (h *ErrorHandler) Map(err error) HTTPError {
	for _, m := range h.mappers {
		if m.Supports(err) {
			return m.Map(err)
		}
	}
	return FallbackMapper{}.Map(err)
}

// Handle logs err and writes the mapped response. Nothing is written when the
// response was already committed.
func (h *ErrorHandler) Handle(w http.ResponseWriter, r *http.Request, err error) HTTPError {
	he := h.Map(err)
	kind := obserrors.Classify(err)

	attrs := []any{
		slog.Int("status", he.Status),
		slog.String("kind", kind),
		slog.String("message", err.Error()),
		slog.String("path", r.URL.Path),
	}
	if he.CorrelationID != "" {
		attrs = append(attrs, slog.String("correlation_id", he.CorrelationID))
	}
	var pe *PanicError
	if errors.As(err, &pe) {
		attrs = append(attrs, slog.String("stack", string(pe.Stack)))
	}
	if he.Status >= http.StatusInternalServerError {
		h.logger.ErrorContext(r.Context(), "HTTP error", attrs...)
	} else {
		h.logger.WarnContext(r.Context(), "HTTP error", attrs...)
	}
	h.metrics.ErrorResponse(he.Status, kind)

	if sw, ok := w.(*statusWriter); ok && sw.wroteHeader {
		h.logger.WarnContext(r.Context(), "Response already committed; error not rendered", slog.Int("status", sw.status))
		return he
	}
	h.write(w, r, he)
	return he
}

func (h *ErrorHandler) write(w http.ResponseWriter, r *http.Request, he HTTPError) {
	w.Header().Set("Cache-Control", "no-store")
	if WantsJSON(r) {
		WriteJSON(w, he.Status, errorBody{
			Error:         errorName(he.Status),
			Message:       he.PublicMessage,
			CorrelationID: he.CorrelationID,
		})
		return
	}
	if h.pages != nil {
		page := ErrorPage{Status: he.Status, Message: he.PublicMessage, CorrelationID: he.CorrelationID}
		if err := h.pages.RenderError(w, r, page); err == nil {
			return
		}
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(he.Status)
	body := fmt.Sprintf("%d - %s", he.Status, he.PublicMessage)
	if he.CorrelationID != "" {
		body += " (reference " + he.CorrelationID + ")"
	}
	_, _ = w.Write([]byte(body + "\n"))
}

func errorName(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "bad_request"
	case http.StatusForbidden:
		return "forbidden"
	case http.StatusNotFound:
		return "not_found"
	case http.StatusMethodNotAllowed:
		return "method_not_allowed"
	case StatusCSRFExpired:
		return "csrf_expired"
	default:
		return "internal_error"
	}
}
