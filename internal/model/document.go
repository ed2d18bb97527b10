package model

import (
	"maps"
	"reflect"
)

// Reserved attribute names. Key and revision travel as document metadata,
// never in the payload; the timestamps are payload fields set by the store.
const (
	KeyField       = "key"
	RevField       = "rev"
	CreatedAtField = "created_at"
	UpdatedAtField = "updated_at"
)

// Fields is a flat document payload: field name to value.
type Fields map[string]any

// Clone returns a shallow copy of f.
func (f Fields) Clone() Fields {
	if f == nil {
		return Fields{}
	}
	return maps.Clone(f)
}

// Without returns a copy of f with the given names removed.
func (f Fields) Without(names ...string) Fields {
	out := f.Clone()
	for _, n := range names {
		delete(out, n)
	}
	return out
}

// Document is a record as produced by a store: a key, a revision and a
// field map. Key and Rev are empty until the document has been written.
type Document struct {
	Key    string `json:"key,omitempty"`
	Rev    string `json:"rev,omitempty"`
	Fields Fields `json:"fields"`
}

// Get returns the named field.
func (d Document) Get(name string) (any, bool) {
	v, ok := d.Fields[name]
	return v, ok
}

func sameType(a, b Model) bool {
	return reflect.TypeOf(a) == reflect.TypeOf(b)
}
