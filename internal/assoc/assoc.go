// Package assoc provides lazy association cells for non-embedded relations.
//
// A Ref stands in for the single model on the "many" side of a one-to-many
// relation, a Many for the collection on the "one" side. Both hold either a
// concrete value assigned by application code or a resolution function bound
// by the mapper. Reads resolve on first access and cache the result for the
// lifetime of the cell; callers cannot tell the two states apart except
// through Resolved.
package assoc

import (
	"context"
	"errors"
	"fmt"
	"reflect"

	"github.com/rcliao/docmap/internal/model"
)

var (
	// ErrTypeMismatch is returned when a resolution function yields a model
	// of a type the cell cannot hold.
	ErrTypeMismatch = errors.New("association resolved to unexpected type")
	// ErrUnbound is returned when a cell was bound without a resolution
	// function.
	ErrUnbound = errors.New("association has no resolver")
)

// LookupFunc resolves a single related model. found is false for a
// dangling key.
type LookupFunc func(ctx context.Context) (m model.Model, found bool, err error)

// QueryFunc resolves the related models of a one-to-many relation.
type QueryFunc func(ctx context.Context) ([]model.Model, error)

// Policy controls whether a Many caches its first successful resolution.
type Policy int

const (
	// CacheFirst resolves once and reuses the result.
	CacheFirst Policy = iota
	// Live re-issues the query on every access.
	Live
)

func (p Policy) String() string {
	switch p {
	case CacheFirst:
		return "cache-first"
	case Live:
		return "live"
	}
	return fmt.Sprintf("Policy(%d)", int(p))
}

type state int

const (
	unset state = iota
	pending
	resolved
)

// Reference is implemented by *Ref. The mapper binds and reads forward
// references through it.
type Reference interface {
	BindKey(key string, fn LookupFunc)
	Key() (string, bool)
	IsSet() bool
	Clear()
}

// Collection is implemented by *Many. The mapper binds reverse references
// through it.
type Collection interface {
	BindQuery(fn QueryFunc, p Policy)
	IsSet() bool
	Clear()
}

type inspectable interface {
	resolved() bool
}

// Resolved reports whether cell currently holds a concrete value, either
// assigned directly or produced by a completed resolution. It is meant for
// internals and tests; application code should not need it.
func Resolved(cell any) bool {
	if c, ok := cell.(inspectable); ok {
		return c.resolved()
	}
	return false
}

func as[T model.Model](m model.Model) (T, error) {
	var zero T
	if m == nil {
		return zero, nil
	}
	v, ok := m.(T)
	if !ok {
		return zero, fmt.Errorf("%w: got %T, want %T", ErrTypeMismatch, m, zero)
	}
	return v, nil
}

func isNil[T any](v T) bool {
	rv := reflect.ValueOf(any(v))
	if !rv.IsValid() {
		return true
	}
	switch rv.Kind() {
	case reflect.Pointer, reflect.Interface, reflect.Map, reflect.Slice:
		return rv.IsNil()
	}
	return false
}
