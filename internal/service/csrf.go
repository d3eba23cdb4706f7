package service

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"fmt"

	domainsession "github.com/target/gatehouse/internal/domain/session"
	"github.com/target/gatehouse/internal/ports"
)

const csrfTokenBytes = 32

// SessionCSRFManager stores a synchronizer token in the session.
type SessionCSRFManager struct {
	session ports.Session
}

var _ ports.CSRFTokenManager = (*SessionCSRFManager)(nil)

// NewSessionCSRFManager binds a CSRF manager to s.
func NewSessionCSRFManager(s ports.Session) *SessionCSRFManager {
	return &SessionCSRFManager{session: s}
}

// Token returns the stored token, minting one if none exists.
func (m *SessionCSRFManager) Token(ctx context.Context) (string, error) {
	if stored := m.stored(); stored != "" {
		return stored, nil
	}
	return m.Regenerate(ctx)
}

// IsValid compares submitted with the stored token in constant time.
// An empty submission is never valid.
func (m *SessionCSRFManager) IsValid(submitted string) bool {
	if submitted == "" {
		return false
	}
	stored := m.stored()
	if stored == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(stored), []byte(submitted)) == 1
}

// ValidateAndRegenerate rotates the token only when submitted is valid, so a
// token is accepted at most once.
func (m *SessionCSRFManager) ValidateAndRegenerate(ctx context.Context, submitted string) (bool, error) {
	if !m.IsValid(submitted) {
		return false, nil
	}
	if _, err := m.Regenerate(ctx); err != nil {
		return false, err
	}
	return true, nil
}

// Regenerate replaces the token unconditionally.
func (m *SessionCSRFManager) Regenerate(ctx context.Context) (string, error) {
	b := make([]byte, csrfTokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate csrf token: %w", err)
	}
	token := hex.EncodeToString(b)
	if err := m.session.Set(ctx, domainsession.KeyCSRFToken, token); err != nil {
		return "", fmt.Errorf("store csrf token: %w", err)
	}
	return token, nil
}

// Clear drops the stored token; the next Token call mints a fresh one.
func (m *SessionCSRFManager) Clear(ctx context.Context) error {
	return m.session.Remove(ctx, domainsession.KeyCSRFToken)
}

func (m *SessionCSRFManager) stored() string {
	v, err := m.session.Get(domainsession.KeyCSRFToken)
	if err != nil {
		return ""
	}
	s, _ := v.(string)
	return s
}

// NoopCSRFManager never blocks. Used where no browser is involved.
type NoopCSRFManager struct{}

var _ ports.CSRFTokenManager = NoopCSRFManager{}

func (NoopCSRFManager) Token(context.Context) (string, error)                       { return "", nil }
func (NoopCSRFManager) IsValid(string) bool                                         { return true }
func (NoopCSRFManager) ValidateAndRegenerate(context.Context, string) (bool, error) { return true, nil }
func (NoopCSRFManager) Regenerate(context.Context) (string, error)                  { return "", nil }
func (NoopCSRFManager) Clear(context.Context) error                                 { return nil }
