package service

import (
	"fmt"
	"strings"

	"github.com/target/gatehouse/internal/ports"
)

// ExecutionContext names how the process was entered.
type ExecutionContext string

const (
	ContextFront      ExecutionContext = "front"
	ContextController ExecutionContext = "controller"
	ContextHealth     ExecutionContext = "health"
	ContextCLI        ExecutionContext = "cli"
	ContextJob        ExecutionContext = "job"
)

// ParseExecutionContext parses a case-insensitive context name.
func ParseExecutionContext(s string) (ExecutionContext, error) {
	switch c := ExecutionContext(strings.ToLower(strings.TrimSpace(s))); c {
	case ContextFront, ContextController, ContextHealth, ContextCLI, ContextJob:
		return c, nil
	default:
		return "", fmt.Errorf("unknown execution context %q", s)
	}
}

// Interactive reports whether the context serves a browser and so needs a
// real session and CSRF protection.
func (c ExecutionContext) Interactive() bool {
	switch c {
	case ContextCLI, ContextJob:
		return false
	default:
		return true
	}
}

// NewSessionFor opens a session handle for interactive contexts and a
// NoopSession otherwise.
func NewSessionFor(c ExecutionContext, m *SessionManager, t ports.CookieTransport) ports.Session {
	if !c.Interactive() || m == nil {
		return NoopSession{}
	}
	return m.Open(t)
}

// NewCSRFManager selects the CSRF implementation for c.
func NewCSRFManager(c ExecutionContext, s ports.Session) ports.CSRFTokenManager {
	if !c.Interactive() {
		return NoopCSRFManager{}
	}
	return NewSessionCSRFManager(s)
}
