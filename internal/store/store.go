// Package store defines document collections and provides the SQLite
// backend. Other backends live in subpackages.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
	"github.com/rcliao/docmap/internal/model"
	"github.com/spf13/cast"
)

var (
	// ErrNotFound is returned when no document has the requested key.
	ErrNotFound = errors.New("document not found")
	// ErrDuplicateKey is returned by Insert when the key is already taken.
	ErrDuplicateKey = errors.New("duplicate key")
)

// Collection is a named set of documents.
type Collection interface {
	// Name returns the collection name.
	Name() string

	// LookupByKey returns the document stored under key, or ErrNotFound.
	LookupByKey(ctx context.Context, key string) (model.Document, error)

	// QueryByExample returns documents whose fields equal every entry of
	// example, ordered by key.
	QueryByExample(ctx context.Context, example model.Fields) ([]model.Document, error)

	// All returns every document, ordered by key.
	All(ctx context.Context) ([]model.Document, error)

	// Insert writes a new document. A key is generated when doc.Key is
	// empty; an existing key fails with ErrDuplicateKey.
	// The returned document carries the assigned key, revision and timestamps.
	Insert(ctx context.Context, doc model.Document) (model.Document, error)

	// Replace overwrites the fields of an existing document and assigns a
	// new revision. Returns ErrNotFound if doc.Key does not exist.
	Replace(ctx context.Context, doc model.Document) (model.Document, error)

	// Delete removes the document stored under key.
	Delete(ctx context.Context, key string) error
}

// Store opens collections on one backend.
type Store interface {
	// Collection returns the named collection. Collections are created
	// implicitly on first write.
	Collection(name string) Collection

	// Stats returns per-collection document counts.
	Stats(ctx context.Context) ([]CollectionStats, error)

	// Close closes the store.
	Close() error
}

// CollectionStats holds per-collection counts.
type CollectionStats struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

// NewKey returns a fresh document key. Keys are ULIDs, so keys generated
// later sort after earlier ones.
func NewKey() string {
	return ulid.Make().String()
}

// NewRev returns a fresh revision token.
func NewRev() string {
	return uuid.NewString()
}

// Payload returns the fields to persist for doc: reserved metadata removed
// and timestamps set.
func Payload(doc model.Document, createdAt, now time.Time) model.Fields {
	fields := doc.Fields.Without(model.KeyField, model.RevField)
	fields[model.CreatedAtField] = createdAt
	fields[model.UpdatedAtField] = now
	return fields
}

// CheckExample rejects example values that cannot be compared by equality
// on a flat field.
func CheckExample(example model.Fields) error {
	for name, v := range example {
		switch v.(type) {
		case nil, string, bool, int, int8, int16, int32, int64,
			uint, uint8, uint16, uint32, uint64, float32, float64:
		default:
			return fmt.Errorf("query by example: field %q: unsupported value type %T", name, v)
		}
	}
	return nil
}

// Matches reports whether fields satisfies example. Values are compared
// after string coercion so that numbers decoded from JSON match their
// integer counterparts.
func Matches(fields, example model.Fields) bool {
	for name, want := range example {
		got, ok := fields[name]
		if want == nil {
			if ok && got != nil {
				return false
			}
			continue
		}
		if !ok || got == nil {
			return false
		}
		if cast.ToString(got) != cast.ToString(want) {
			return false
		}
	}
	return true
}
