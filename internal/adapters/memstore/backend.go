// Package memstore keeps session records in process memory.
// Suitable for a single instance and for tests.
package memstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/target/gatehouse/internal/clock"
	domainsession "github.com/target/gatehouse/internal/domain/session"
	"github.com/target/gatehouse/internal/ports"
)

type entry struct {
	payload   []byte
	expiresAt time.Time
}

type idLock struct {
	ch   chan struct{}
	refs int
}

// Backend implements ports.SessionBackend and ports.SessionPurger.
type Backend struct {
	clock clock.TimeProvider

	mu      sync.RWMutex
	records map[string]entry

	lockMu sync.Mutex
	locks  map[string]*idLock
}

var (
	_ ports.SessionBackend = (*Backend)(nil)
	_ ports.SessionPurger  = (*Backend)(nil)
)

// New creates an empty backend. A nil clock uses wall time.
func New(tp clock.TimeProvider) *Backend {
	if tp == nil {
		tp = clock.RealTimeProvider{}
	}
	return &Backend{
		clock:   tp,
		records: map[string]entry{},
		locks:   map[string]*idLock{},
	}
}

// Load returns a deep copy of the stored record. Records are stored as JSON
// so values behave exactly as they would with the networked backends.
func (b *Backend) Load(_ context.Context, id string) (domainsession.Record, error) {
	b.mu.RLock()
	e, ok := b.records[id]
	b.mu.RUnlock()
	if !ok || b.expired(e) {
		return domainsession.Record{}, domainsession.ErrNotFound
	}

	var rec domainsession.Record
	if err := json.Unmarshal(e.payload, &rec); err != nil {
		return domainsession.Record{}, fmt.Errorf("unmarshal session: %w", err)
	}
	if rec.Data == nil {
		rec.Data = map[string]any{}
	}
	return rec, nil
}

func (b *Backend) Save(_ context.Context, rec domainsession.Record, ttl time.Duration) error {
	if rec.ID == "" {
		return errors.New("session ID cannot be empty")
	}
	payload, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}

	e := entry{payload: payload}
	if ttl > 0 {
		e.expiresAt = b.clock.Now().Add(ttl)
	}
	b.mu.Lock()
	b.records[rec.ID] = e
	b.mu.Unlock()
	return nil
}

func (b *Backend) Delete(_ context.Context, id string) error {
	b.mu.Lock()
	delete(b.records, id)
	b.mu.Unlock()
	return nil
}

// Lock gives the caller exclusive access to id until release is called.
func (b *Backend) Lock(ctx context.Context, id string) (func(), error) {
	b.lockMu.Lock()
	l, ok := b.locks[id]
	if !ok {
		l = &idLock{ch: make(chan struct{}, 1)}
		b.locks[id] = l
	}
	l.refs++
	b.lockMu.Unlock()

	select {
	case l.ch <- struct{}{}:
	case <-ctx.Done():
		b.unref(id, l)
		return nil, fmt.Errorf("memstore lock %s: %w", id, ctx.Err())
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			<-l.ch
			b.unref(id, l)
		})
	}, nil
}

func (b *Backend) unref(id string, l *idLock) {
	b.lockMu.Lock()
	l.refs--
	if l.refs == 0 {
		delete(b.locks, id)
	}
	b.lockMu.Unlock()
}

// PurgeExpired drops records whose TTL has elapsed.
func (b *Backend) PurgeExpired(_ context.Context) (int64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	var n int64
	for id, e := range b.records {
		if b.expired(e) {
			delete(b.records, id)
			n++
		}
	}
	return n, nil
}

// Len reports the number of stored records, expired or not.
func (b *Backend) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.records)
}

func (b *Backend) expired(e entry) bool {
	return !e.expiresAt.IsZero() && !b.clock.Now().Before(e.expiresAt)
}
