package service

import domainsession "github.com/target/gatehouse/internal/domain/session"

// Redacted replaces sensitive key names in logs.
const Redacted = "[REDACTED]"

// DefaultSensitiveKeys are session keys whose names are never logged.
var DefaultSensitiveKeys = []string{"password", "token", "csrf", "auth", "jwt", domainsession.KeyCSRFToken}

// Redactor hides sensitive key names. Values are never logged at all.
type Redactor struct {
	keys map[string]struct{}
}

// NewRedactor builds a Redactor over DefaultSensitiveKeys plus extra.
func NewRedactor(extra []string) Redactor {
	r := Redactor{keys: make(map[string]struct{}, len(DefaultSensitiveKeys)+len(extra))}
	for _, k := range DefaultSensitiveKeys {
		r.keys[k] = struct{}{}
	}
	for _, k := range extra {
		if k != "" {
			r.keys[k] = struct{}{}
		}
	}
	return r
}

// Key returns key, or Redacted when key is sensitive.
func (r Redactor) Key(key string) string {
	if _, ok := r.keys[key]; ok {
		return Redacted
	}
	return key
}
