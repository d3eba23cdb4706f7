// Package postgres stores session records in PostgreSQL through database/sql
// and the pgx stdlib driver.
package postgres

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/target/gatehouse/internal/clock"
	domainsession "github.com/target/gatehouse/internal/domain/session"
	apperrors "github.com/target/gatehouse/internal/errors"
	"github.com/target/gatehouse/internal/ports"
)

const (
	loadQuery = `SELECT record FROM sessions
		WHERE id = $1 AND (expires_at IS NULL OR expires_at > $2)`
	saveQuery = `INSERT INTO sessions (id, record, expires_at, updated_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE
		SET record = EXCLUDED.record, expires_at = EXCLUDED.expires_at, updated_at = EXCLUDED.updated_at`
	deleteQuery = `DELETE FROM sessions WHERE id = $1`
	purgeQuery  = `DELETE FROM sessions WHERE expires_at IS NOT NULL AND expires_at <= $1`

	// Lease locks use the database clock so every instance agrees on expiry.
	lockQuery = `INSERT INTO session_locks (id, token, expires_at)
		VALUES ($1, $2, now() + make_interval(secs => $3))
		ON CONFLICT (id) DO UPDATE
		SET token = EXCLUDED.token, expires_at = EXCLUDED.expires_at
		WHERE session_locks.expires_at <= now()`
	extendQuery     = `UPDATE session_locks SET expires_at = now() + make_interval(secs => $3) WHERE id = $1 AND token = $2`
	unlockQuery     = `DELETE FROM session_locks WHERE id = $1 AND token = $2`
	purgeLocksQuery = `DELETE FROM session_locks WHERE expires_at <= now()`
)

const (
	defaultLockTTL      = 30 * time.Second
	defaultLockInterval = 25 * time.Millisecond
)

// SessionBackend implements ports.SessionBackend on a "sessions" table.
// Per-id exclusion uses leased rows in "session_locks"; no connection is held
// between statements, so lock holders never starve the pool.
type SessionBackend struct {
	db           *sql.DB
	clock        clock.TimeProvider
	lockTTL      time.Duration
	lockInterval time.Duration
}

var (
	_ ports.SessionBackend = (*SessionBackend)(nil)
	_ ports.SessionPurger  = (*SessionBackend)(nil)
)

// Option configures a SessionBackend.
type Option func(*SessionBackend)

// WithLockTTL sets the lease length. Holders renew at a third of it.
func WithLockTTL(ttl time.Duration) Option {
	return func(b *SessionBackend) {
		if ttl > 0 {
			b.lockTTL = ttl
		}
	}
}

// NewSessionBackend wraps db. A nil clock uses wall time.
func NewSessionBackend(db *sql.DB, tp clock.TimeProvider, opts ...Option) *SessionBackend {
	if tp == nil {
		tp = clock.RealTimeProvider{}
	}
	b := &SessionBackend{db: db, clock: tp, lockTTL: defaultLockTTL, lockInterval: defaultLockInterval}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

func (b *SessionBackend) Load(ctx context.Context, id string) (domainsession.Record, error) {
	if id == "" {
		return domainsession.Record{}, domainsession.ErrNotFound
	}

	var payload []byte
	err := b.db.QueryRowContext(ctx, loadQuery, id, b.clock.Now()).Scan(&payload)
	if err != nil {
		mapped := apperrors.MapDBError(err)
		if apperrors.IsNotFound(mapped) {
			return domainsession.Record{}, domainsession.ErrNotFound
		}
		return domainsession.Record{}, fmt.Errorf("load session: %w", mapped)
	}

	var rec domainsession.Record
	if unmarshalErr := json.Unmarshal(payload, &rec); unmarshalErr != nil {
		return domainsession.Record{}, fmt.Errorf("unmarshal session: %w", unmarshalErr)
	}
	if rec.Data == nil {
		rec.Data = map[string]any{}
	}
	return rec, nil
}

func (b *SessionBackend) Save(ctx context.Context, rec domainsession.Record, ttl time.Duration) error {
	if rec.ID == "" {
		return errors.New("session ID cannot be empty")
	}
	payload, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}

	now := b.clock.Now()
	var expires sql.NullTime
	if ttl > 0 {
		expires = sql.NullTime{Time: now.Add(ttl), Valid: true}
	}
	if _, execErr := b.db.ExecContext(ctx, saveQuery, rec.ID, payload, expires, now); execErr != nil {
		return fmt.Errorf("save session: %w", apperrors.MapDBError(execErr))
	}
	return nil
}

func (b *SessionBackend) Delete(ctx context.Context, id string) error {
	if id == "" {
		return nil
	}
	if _, err := b.db.ExecContext(ctx, deleteQuery, id); err != nil {
		return fmt.Errorf("delete session: %w", apperrors.MapDBError(err))
	}
	return nil
}

// Lock takes the lease row for id, polling until acquired or ctx ends. The
// lease is renewed in the background until release is called.
func (b *SessionBackend) Lock(ctx context.Context, id string) (func(), error) {
	token, err := lockToken()
	if err != nil {
		return nil, err
	}
	ttl := b.lockTTL.Seconds()

	ticker := time.NewTicker(b.lockInterval)
	defer ticker.Stop()
	for {
		res, execErr := b.db.ExecContext(ctx, lockQuery, id, token, ttl)
		if execErr != nil {
			return nil, fmt.Errorf("session lock: %w", apperrors.MapDBError(execErr))
		}
		if n, _ := res.RowsAffected(); n == 1 {
			stop := b.keepAlive(id, token)
			var once sync.Once
			return func() {
				once.Do(func() {
					stop()
					b.unlock(id, token)
				})
			}, nil
		}
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("session lock %s: %w", id, ctx.Err())
		case <-ticker.C:
		}
	}
}

// keepAlive extends the lease while it is still ours. It stops on the first
// failed extension; the lease then expires on its own.
func (b *SessionBackend) keepAlive(id, token string) (stop func()) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		t := time.NewTicker(b.lockTTL / 3)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				res, err := b.db.ExecContext(ctx, extendQuery, id, token, b.lockTTL.Seconds())
				if err != nil {
					return
				}
				if n, _ := res.RowsAffected(); n == 0 {
					return
				}
			}
		}
	}()
	return func() {
		cancel()
		<-done
	}
}

func (b *SessionBackend) unlock(id, token string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	// A lost or expired lease is simply gone; nothing to report.
	_, _ = b.db.ExecContext(ctx, unlockQuery, id, token)
}

func lockToken() (string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate lock token: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

// PurgeExpired deletes rows whose expiry has passed.
func (b *SessionBackend) PurgeExpired(ctx context.Context) (int64, error) {
	res, err := b.db.ExecContext(ctx, purgeQuery, b.clock.Now())
	if err != nil {
		return 0, fmt.Errorf("purge sessions: %w", apperrors.MapDBError(err))
	}
	if _, lockErr := b.db.ExecContext(ctx, purgeLocksQuery); lockErr != nil {
		return 0, fmt.Errorf("purge session locks: %w", apperrors.MapDBError(lockErr))
	}
	return res.RowsAffected()
}
