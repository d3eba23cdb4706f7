package service

import (
	"context"
	"maps"

	domainsession "github.com/target/gatehouse/internal/domain/session"
	"github.com/target/gatehouse/internal/ports"
)

// FlashBag stores values that are read exactly once, typically across a redirect.
type FlashBag struct {
	session ports.Session
}

// NewFlashBag binds a flash bag to s.
func NewFlashBag(s ports.Session) *FlashBag {
	return &FlashBag{session: s}
}

// Set stores value under key, replacing any unread value.
func (f *FlashBag) Set(ctx context.Context, key string, value any) error {
	bag := f.load()
	bag[key] = value
	return f.session.Set(ctx, domainsession.KeyFlash, bag)
}

// Peek returns the value under key without consuming it.
func (f *FlashBag) Peek(key string) (any, bool) {
	v, ok := f.load()[key]
	return v, ok
}

// Has reports whether an unread message is queued under key.
func (f *FlashBag) Has(key string) bool {
	_, ok := f.Peek(key)
	return ok
}

// Consume returns the value under key and removes it. The bag itself is
// removed once empty.
func (f *FlashBag) Consume(ctx context.Context, key string) (any, bool, error) {
	bag := f.load()
	v, ok := bag[key]
	if !ok {
		return nil, false, nil
	}
	delete(bag, key)
	if err := f.store(ctx, bag); err != nil {
		return nil, false, err
	}
	return v, true, nil
}

// ConsumeAll drains the bag.
func (f *FlashBag) ConsumeAll(ctx context.Context) (map[string]any, error) {
	bag := f.load()
	if len(bag) == 0 {
		return map[string]any{}, nil
	}
	if err := f.session.Remove(ctx, domainsession.KeyFlash); err != nil {
		return nil, err
	}
	return bag, nil
}

func (f *FlashBag) store(ctx context.Context, bag map[string]any) error {
	if len(bag) == 0 {
		return f.session.Remove(ctx, domainsession.KeyFlash)
	}
	return f.session.Set(ctx, domainsession.KeyFlash, bag)
}

// load returns a private copy so callers never mutate the stored map.
func (f *FlashBag) load() map[string]any {
	v, err := f.session.Get(domainsession.KeyFlash)
	if err != nil {
		return map[string]any{}
	}
	if m, ok := v.(map[string]any); ok {
		return maps.Clone(m)
	}
	return map[string]any{}
}
