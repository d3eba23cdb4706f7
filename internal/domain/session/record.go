// Package session holds the persisted shape of a server-side session.
package session

import (
	"errors"
	"maps"
	"time"
)

// ErrNotFound is returned by backends when no live record exists for an id.
var ErrNotFound = errors.New("session not found")

// Reserved data keys.
const (
	KeyCSRFToken = "__csrf_token__"
	KeyFlash     = "__flash__"
)

// Record is the unit a backend persists. Data values must survive a JSON round trip.
type Record struct {
	ID             string         `json:"id"`
	Data           map[string]any `json:"data"`
	InitiatedAt    time.Time      `json:"initiated_at"`
	LastRegenAt    time.Time      `json:"last_regen_at"`
	LastActivityAt time.Time      `json:"last_activity_at"`
}

// NewRecord returns an empty record for id.
func NewRecord(id string) Record {
	return Record{ID: id, Data: map[string]any{}}
}

// Clone returns a copy whose Data map can be mutated independently.
func (r Record) Clone() Record {
	out := r
	out.Data = maps.Clone(r.Data)
	if out.Data == nil {
		out.Data = map[string]any{}
	}
	return out
}
