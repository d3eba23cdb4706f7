package errors

import (
	"errors"
	"fmt"
)

// ErrorCode represents a category of application error.
type ErrorCode string

const (
	// ErrCodeNotFound indicates a resource was not found.
	ErrCodeNotFound ErrorCode = "not_found"
	// ErrCodeValidation indicates invalid input data.
	ErrCodeValidation ErrorCode = "validation"
	// ErrCodeInternal indicates an internal server error.
	ErrCodeInternal ErrorCode = "internal"
	// ErrCodeTimeout indicates a timeout occurred.
	ErrCodeTimeout ErrorCode = "timeout"
	// ErrCodeCanceled indicates the operation was canceled.
	ErrCodeCanceled ErrorCode = "canceled"

	// ErrCodeBadRoute indicates a malformed route identifier.
	ErrCodeBadRoute ErrorCode = "bad_route"
	// ErrCodeAccessDenied indicates the caller's role may not reach the route.
	ErrCodeAccessDenied ErrorCode = "access_denied"
	// ErrCodeRouteNotFound indicates a well-formed but unknown route.
	ErrCodeRouteNotFound ErrorCode = "route_not_found"
	// ErrCodeMethodNotAllowed indicates the HTTP method does not fit the route category.
	ErrCodeMethodNotAllowed ErrorCode = "method_not_allowed"
	// ErrCodeCSRFInvalid indicates a missing or mismatched CSRF token.
	ErrCodeCSRFInvalid ErrorCode = "csrf_invalid"
)

// AppError represents a structured application error with a code, message, and optional cause.
// It supports error wrapping and unwrapping for use with errors.Is and errors.As.
//
// For security codes Message is safe to show to the end user.
type AppError struct {
	// Code categorizes the error type
	Code ErrorCode
	// Message is a human-readable error message
	Message string
	// Cause is the underlying error that caused this error (optional)
	Cause error
	// Field is the configuration key or input that caused the error (optional)
	Field string
}

// Error implements the error interface.
func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

// Unwrap returns the underlying cause, enabling errors.Is and errors.As.
func (e *AppError) Unwrap() error {
	return e.Cause
}

// ValidationField creates a new Validation error for a specific field.
func ValidationField(field, message string) *AppError {
	return &AppError{Code: ErrCodeValidation, Message: message, Field: field}
}

// BadRoute reports a route identifier that failed validation.
func BadRoute(message string) *AppError {
	return &AppError{Code: ErrCodeBadRoute, Message: message}
}

// BadRoutef creates a BadRoute error with formatted message.
func BadRoutef(format string, args ...any) *AppError {
	return &AppError{Code: ErrCodeBadRoute, Message: fmt.Sprintf(format, args...)}
}

// AccessDenied reports a role/route mismatch. message is shown to the user.
func AccessDenied(message string) *AppError {
	return &AppError{Code: ErrCodeAccessDenied, Message: message}
}

// RouteNotFound reports an unknown route.
func RouteNotFound(message string) *AppError {
	return &AppError{Code: ErrCodeRouteNotFound, Message: message}
}

// RouteNotFoundf creates a RouteNotFound error with formatted message.
func RouteNotFoundf(format string, args ...any) *AppError {
	return &AppError{Code: ErrCodeRouteNotFound, Message: fmt.Sprintf(format, args...)}
}

// MethodNotAllowed reports a method/category mismatch. message is shown to the user.
func MethodNotAllowed(message string) *AppError {
	return &AppError{Code: ErrCodeMethodNotAllowed, Message: message}
}

// CSRFInvalid reports a failed CSRF validation.
func CSRFInvalid(message string) *AppError {
	return &AppError{Code: ErrCodeCSRFInvalid, Message: message}
}

// isCode checks if an error has a specific error code.
func isCode(err error, code ErrorCode) bool {
	var appErr *AppError
	return errors.As(err, &appErr) && appErr.Code == code
}

// IsNotFound checks if an error is a NotFound error.
func IsNotFound(err error) bool {
	return isCode(err, ErrCodeNotFound)
}

// IsValidation checks if an error is a Validation error.
func IsValidation(err error) bool {
	return isCode(err, ErrCodeValidation)
}

// IsBadRoute checks if an error is a BadRoute error.
func IsBadRoute(err error) bool {
	return isCode(err, ErrCodeBadRoute)
}

// IsAccessDenied checks if an error is an AccessDenied error.
func IsAccessDenied(err error) bool {
	return isCode(err, ErrCodeAccessDenied)
}

// IsRouteNotFound checks if an error is a RouteNotFound error.
func IsRouteNotFound(err error) bool {
	return isCode(err, ErrCodeRouteNotFound)
}

// IsMethodNotAllowed checks if an error is a MethodNotAllowed error.
func IsMethodNotAllowed(err error) bool {
	return isCode(err, ErrCodeMethodNotAllowed)
}

// IsCSRFInvalid checks if an error is a CSRFInvalid error.
func IsCSRFInvalid(err error) bool {
	return isCode(err, ErrCodeCSRFInvalid)
}

// GetCode returns the ErrorCode from an error, or empty string if not an AppError.
func GetCode(err error) ErrorCode {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return ""
}

// GetMessage returns the Message of the outermost AppError in the chain, or "".
func GetMessage(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Message
	}
	return ""
}

// GetField returns the Field from an error, or empty string if not an AppError or no field set.
func GetField(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Field
	}
	return ""
}
