package service

import (
	"context"

	"github.com/target/gatehouse/internal/ports"
)

// NoopSession satisfies ports.Session for execution contexts without a
// browser. It never starts; reads return zero values and writes are dropped.
type NoopSession struct{}

var _ ports.Session = NoopSession{}

func (NoopSession) Start(context.Context) error            { return nil }
func (NoopSession) Started() bool                          { return false }
func (NoopSession) ID() string                             { return "" }
func (NoopSession) Get(string) (any, error)                { return nil, nil }
func (NoopSession) Has(string) (bool, error)               { return false, nil }
func (NoopSession) Set(context.Context, string, any) error { return nil }
func (NoopSession) Remove(context.Context, string) error   { return nil }
func (NoopSession) All() (map[string]any, error)           { return map[string]any{}, nil }
func (NoopSession) Clear(context.Context) error            { return nil }
func (NoopSession) Regenerate(context.Context) error       { return nil }
func (NoopSession) Destroy(context.Context) error          { return nil }
func (NoopSession) Close(context.Context) error            { return nil }
