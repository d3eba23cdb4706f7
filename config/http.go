package config

import (
	"net/http"
	"strings"
	"time"
)

// HTTPConfig contains HTTP server configuration.
type HTTPConfig struct {
	// Addr is the address to bind the HTTP server to.
	Addr string `env:"HTTP_ADDR" envDefault:":8080"`

	// TrustForwardedProto lets X-Forwarded-Proto mark a request as HTTPS.
	// Enable only behind a proxy that sets the header.
	TrustForwardedProto bool `env:"HTTP_TRUST_FORWARDED_PROTO" envDefault:"false"`

	// ExecutionContext selects session behaviour: front, controller or health.
	ExecutionContext string `env:"HTTP_EXECUTION_CONTEXT" envDefault:"front"`

	ReadHeaderTimeout time.Duration `env:"HTTP_READ_HEADER_TIMEOUT" envDefault:"10s"`
	ShutdownTimeout   time.Duration `env:"HTTP_SHUTDOWN_TIMEOUT"    envDefault:"15s"`

	// TemplateDir overrides the built-in view templates when set.
	TemplateDir string `env:"HTTP_TEMPLATE_DIR"`
}

// CSRFConfig controls synchronizer token handling.
type CSRFConfig struct {
	Header string `env:"HEADER" envDefault:"X-CSRF-Token"`
	Field  string `env:"FIELD"  envDefault:"_csrf"`
	// FailureStatus is 419 unless a fronting proxy rejects non-standard codes.
	FailureStatus int `env:"FAILURE_STATUS" envDefault:"419"`
}

// Sanitize clamps the failure status to the two supported values.
func (c *CSRFConfig) Sanitize() {
	c.Header = strings.TrimSpace(c.Header)
	c.Field = strings.TrimSpace(c.Field)
	if c.FailureStatus != http.StatusForbidden {
		c.FailureStatus = 419
	}
}
