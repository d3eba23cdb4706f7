// Package metrics emits security pipeline counters over a statsd.Sink.
package metrics

import (
	"strconv"
	"time"

	"github.com/target/gatehouse/internal/observability/statsd"
)

// Session lifecycle events.
const (
	SessionStarted     = "started"
	SessionRegenerated = "regenerated"
	SessionExpired     = "expired"
	SessionDestroyed   = "destroyed"
)

// Recorder is a nil-safe facade over a statsd.Sink.
type Recorder struct {
	sink statsd.Sink
}

// NewRecorder wraps sink. A nil sink yields a recorder that drops everything.
func NewRecorder(sink statsd.Sink) *Recorder {
	return &Recorder{sink: sink}
}

func (r *Recorder) enabled() bool { return r != nil && r.sink != nil }

// IdentityResolved counts which resolver produced the request identity.
func (r *Recorder) IdentityResolved(source, role string) {
	if !r.enabled() {
		return
	}
	r.sink.Count("auth.identity", 1, map[string]string{"source": source, "role": role})
}

// GuardRejected counts a guard failure by guard name and error code.
func (r *Recorder) GuardRejected(guard, code string) {
	if !r.enabled() {
		return
	}
	r.sink.Count("guard.rejected", 1, map[string]string{"guard": guard, "code": code})
}

// SessionEvent counts a session lifecycle event.
func (r *Recorder) SessionEvent(event string) {
	if !r.enabled() {
		return
	}
	r.sink.Count("session.event", 1, map[string]string{"event": event})
}

// ErrorResponse counts an error response by status and kind.
func (r *Recorder) ErrorResponse(status int, kind string) {
	if !r.enabled() {
		return
	}
	r.sink.Count("http.error", 1, map[string]string{"status": strconv.Itoa(status), "kind": kind})
}

// Request records request latency tagged by route category and status.
func (r *Recorder) Request(category string, status int, d time.Duration) {
	if !r.enabled() {
		return
	}
	r.sink.Timing("http.request", d, map[string]string{"category": category, "status": strconv.Itoa(status)})
}
