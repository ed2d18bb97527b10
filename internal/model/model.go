// Package model defines the core document and model types.
package model

import "time"

// Model is a domain object that can be persisted as a document.
type Model interface {
	GetKey() string
	SetKey(key string)
	GetRev() string
	SetRev(rev string)
}

// Base carries the storage-assigned attributes every model shares.
// Embed it in a model struct to satisfy Model.
type Base struct {
	Key       string    `doc:"key,omitempty" json:"key,omitempty"`
	Rev       string    `doc:"rev,omitempty" json:"rev,omitempty"`
	CreatedAt time.Time `doc:"created_at,omitempty" json:"created_at,omitempty"`
	UpdatedAt time.Time `doc:"updated_at,omitempty" json:"updated_at,omitempty"`
}

func (b *Base) GetKey() string    { return b.Key }
func (b *Base) SetKey(key string) { b.Key = key }
func (b *Base) GetRev() string    { return b.Rev }
func (b *Base) SetRev(rev string) { b.Rev = rev }

// Timestamped is implemented by models that record store write times.
type Timestamped interface {
	SetTimestamps(created, updated time.Time)
}

func (b *Base) SetTimestamps(created, updated time.Time) {
	b.CreatedAt, b.UpdatedAt = created, updated
}

// Persisted reports whether the model has been assigned a key by a store.
func (b *Base) Persisted() bool { return b.Key != "" }

// Same reports whether a and b denote the same persisted entity: identical
// dynamic type and equal non-empty key.
func Same(a, b Model) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if any(a) == any(b) {
		return true
	}
	if a.GetKey() == "" || a.GetKey() != b.GetKey() {
		return false
	}
	return sameType(a, b)
}
