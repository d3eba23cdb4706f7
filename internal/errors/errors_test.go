package errors

import (
	"errors"
	"fmt"
	"testing"
)

func TestAppError_Error(t *testing.T) {
	tests := []struct {
		name string
		err  *AppError
		want string
	}{
		{
			name: "error without cause",
			err: &AppError{
				Code:    ErrCodeAccessDenied,
				Message: "Admin access required.",
			},
			want: "Admin access required.",
		},
		{
			name: "error with cause",
			err: &AppError{
				Code:    ErrCodeInternal,
				Message: "failed to load session",
				Cause:   errors.New("connection refused"),
			},
			want: "failed to load session: connection refused",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.want {
				t.Errorf("AppError.Error() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestAppError_Unwrap(t *testing.T) {
	cause := errors.New("underlying error")
	err := &AppError{
		Code:    ErrCodeInternal,
		Message: "wrapped error",
		Cause:   cause,
	}

	if unwrapped := err.Unwrap(); !errors.Is(unwrapped, cause) {
		t.Errorf("AppError.Unwrap() = %v, want %v", unwrapped, cause)
	}
}

func TestSecurityConstructors(t *testing.T) {
	tests := []struct {
		name     string
		err      *AppError
		wantCode ErrorCode
		wantMsg  string
		is       func(error) bool
	}{
		{"bad route", BadRoute("bad"), ErrCodeBadRoute, "bad", IsBadRoute},
		{"bad route formatted", BadRoutef("invalid page %q", "../x"), ErrCodeBadRoute, `invalid page "../x"`, IsBadRoute},
		{"access denied", AccessDenied("Admin access required."), ErrCodeAccessDenied, "Admin access required.", IsAccessDenied},
		{"route not found", RouteNotFound("missing"), ErrCodeRouteNotFound, "missing", IsRouteNotFound},
		{"route not found formatted", RouteNotFoundf("view %s", "x"), ErrCodeRouteNotFound, "view x", IsRouteNotFound},
		{"method not allowed", MethodNotAllowed("Actions require GET."), ErrCodeMethodNotAllowed, "Actions require GET.", IsMethodNotAllowed},
		{"csrf invalid", CSRFInvalid("token mismatch"), ErrCodeCSRFInvalid, "token mismatch", IsCSRFInvalid},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.err.Code != tt.wantCode {
				t.Errorf("Code = %v, want %v", tt.err.Code, tt.wantCode)
			}
			if tt.err.Message != tt.wantMsg {
				t.Errorf("Message = %v, want %v", tt.err.Message, tt.wantMsg)
			}
			if !tt.is(tt.err) {
				t.Errorf("predicate returned false for %v", tt.err)
			}
			wrapped := fmt.Errorf("pipeline: %w", tt.err)
			if !tt.is(wrapped) {
				t.Errorf("predicate returned false for wrapped %v", wrapped)
			}
			if GetCode(wrapped) != tt.wantCode {
				t.Errorf("GetCode(wrapped) = %v, want %v", GetCode(wrapped), tt.wantCode)
			}
		})
	}
}

func TestValidationField(t *testing.T) {
	err := ValidationField("SESSION_COOKIE_DOMAIN", "cookie domain is a public suffix")
	if err.Code != ErrCodeValidation {
		t.Errorf("ValidationField().Code = %v, want %v", err.Code, ErrCodeValidation)
	}
	if GetField(err) != "SESSION_COOKIE_DOMAIN" {
		t.Errorf("GetField() = %v, want %v", GetField(err), "SESSION_COOKIE_DOMAIN")
	}
	if !IsValidation(err) {
		t.Error("IsValidation() = false")
	}
}

func TestGetMessage(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"app error", AccessDenied("Admin access required."), "Admin access required."},
		{"wrapped app error", fmt.Errorf("guard: %w", MethodNotAllowed("AJAX endpoints require POST.")), "AJAX endpoints require POST."},
		{"plain error", errors.New("boom"), ""},
		{"nil", nil, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := GetMessage(tt.err); got != tt.want {
				t.Errorf("GetMessage() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestPredicates_NonAppErrors(t *testing.T) {
	for _, err := range []error{nil, errors.New("plain")} {
		if IsAccessDenied(err) || IsCSRFInvalid(err) || IsNotFound(err) || IsValidation(err) {
			t.Errorf("predicate matched non-AppError %v", err)
		}
		if GetCode(err) != "" {
			t.Errorf("GetCode(%v) = %q, want empty", err, GetCode(err))
		}
	}
}
