package redis

// Package redis provides Redis-based adapters for session storage.

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	domainsession "github.com/target/gatehouse/internal/domain/session"
	"github.com/target/gatehouse/internal/ports"
)

const (
	defaultPrefix       = "session:"
	defaultLockTTL      = 30 * time.Second
	defaultLockInterval = 25 * time.Millisecond
)

// releaseScript deletes the lock only if it is still held by the caller's token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// extendScript refreshes the lock TTL only while the caller still holds it.
var extendScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0
`)

// SessionBackend is a Redis-based session backend for production use.
// Record expiry is delegated to Redis key TTLs.
type SessionBackend struct {
	client       redis.UniversalClient
	prefix       string
	lockTTL      time.Duration
	lockInterval time.Duration
}

var _ ports.SessionBackend = (*SessionBackend)(nil)

// Option configures a SessionBackend.
type Option func(*SessionBackend)

// WithPrefix overrides the key prefix (default "session:").
func WithPrefix(prefix string) Option {
	return func(b *SessionBackend) { b.prefix = prefix }
}

// WithLockTTL bounds how long a crashed holder can keep an id locked. Live
// holders renew the key at a third of ttl.
func WithLockTTL(ttl time.Duration) Option {
	return func(b *SessionBackend) {
		if ttl > 0 {
			b.lockTTL = ttl
		}
	}
}

// NewSessionBackend creates a new Redis-based session backend.
func NewSessionBackend(client redis.UniversalClient, opts ...Option) *SessionBackend {
	b := &SessionBackend{
		client:       client,
		prefix:       defaultPrefix,
		lockTTL:      defaultLockTTL,
		lockInterval: defaultLockInterval,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

func (b *SessionBackend) key(id string) string     { return b.prefix + id }
func (b *SessionBackend) lockKey(id string) string { return b.prefix + "lock:" + id }

func (b *SessionBackend) Load(ctx context.Context, id string) (domainsession.Record, error) {
	if id == "" {
		return domainsession.Record{}, domainsession.ErrNotFound
	}

	data, err := b.client.Get(ctx, b.key(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return domainsession.Record{}, domainsession.ErrNotFound
		}
		return domainsession.Record{}, fmt.Errorf("redis get: %w", err)
	}

	var rec domainsession.Record
	if unmarshalErr := json.Unmarshal(data, &rec); unmarshalErr != nil {
		return domainsession.Record{}, fmt.Errorf("unmarshal session: %w", unmarshalErr)
	}
	if rec.Data == nil {
		rec.Data = map[string]any{}
	}
	return rec, nil
}

// Save writes rec with ttl; a non-positive ttl stores the record without expiry.
func (b *SessionBackend) Save(ctx context.Context, rec domainsession.Record, ttl time.Duration) error {
	if rec.ID == "" {
		return errors.New("session ID cannot be empty")
	}

	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}

	if ttl < 0 {
		ttl = 0
	}
	return b.client.Set(ctx, b.key(rec.ID), data, ttl).Err()
}

func (b *SessionBackend) Delete(ctx context.Context, id string) error {
	if id == "" {
		return nil
	}
	return b.client.Del(ctx, b.key(id)).Err()
}

// Lock acquires a SET NX lock for id, polling until acquired or ctx ends.
// The key is renewed in the background until release is called.
func (b *SessionBackend) Lock(ctx context.Context, id string) (func(), error) {
	token, err := lockToken()
	if err != nil {
		return nil, err
	}
	key := b.lockKey(id)

	ticker := time.NewTicker(b.lockInterval)
	defer ticker.Stop()
	for {
		ok, setErr := b.client.SetNX(ctx, key, token, b.lockTTL).Result()
		if setErr != nil {
			return nil, fmt.Errorf("redis lock: %w", setErr)
		}
		if ok {
			stop := b.keepAlive(key, token)
			var once sync.Once
			return func() {
				once.Do(func() {
					stop()
					b.release(key, token)
				})
			}, nil
		}
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("redis lock %s: %w", id, ctx.Err())
		case <-ticker.C:
		}
	}
}

// keepAlive extends the lock while it is still ours. It stops on the first
// failed extension; the key then expires on its own.
func (b *SessionBackend) keepAlive(key, token string) (stop func()) {
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
				n, err := extendScript.Run(ctx, b.client, []string{key}, token, b.lockTTL.Milliseconds()).Int()
				if err != nil || n == 0 {
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

func (b *SessionBackend) release(key, token string) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	// An expired lock is simply gone; nothing to report.
	_ = releaseScript.Run(ctx, b.client, []string{key}, token).Err()
}

func lockToken() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate lock token: %w", err)
	}
	return hex.EncodeToString(b), nil
}
