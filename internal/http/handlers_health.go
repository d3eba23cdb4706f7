package httpx

import (
	"context"
	"io"
	"net/http"
	"time"
)

const (
	healthResponse   = `{"status":"ok"}`
	unhealthResponse = `{"status":"unavailable"}`
	healthTimeout    = 2 * time.Second
)

// HealthCheck checks a dependency such as the session backend. Nil means always healthy.
type HealthCheck func(ctx context.Context) error

// healthHandler returns 200 when check passes and 503 otherwise.
func healthHandler(check HealthCheck) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		status, body := http.StatusOK, healthResponse
		if check != nil {
			ctx, cancel := context.WithTimeout(r.Context(), healthTimeout)
			defer cancel()
			if err := check(ctx); err != nil {
				status, body = http.StatusServiceUnavailable, unhealthResponse
			}
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		if r.Method == http.MethodHead {
			return
		}
		if _, err := io.WriteString(w, body); err != nil {
			// Nothing more to do if the client connection is gone.
			return
		}
	})
}
