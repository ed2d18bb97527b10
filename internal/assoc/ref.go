package assoc

import (
	"context"
	"fmt"
	"sync"

	"github.com/rcliao/docmap/internal/model"
)

// Ref holds a forward reference to a single model of type T.
//
// The zero value is an unset reference. A Ref must not be copied after
// first use.
type Ref[T model.Model] struct {
	mu     sync.Mutex
	st     state
	key    string
	lookup LookupFunc
	val    T
	found  bool
}

// RefTo returns a reference already holding v.
func RefTo[T model.Model](v T) *Ref[T] {
	r := &Ref[T]{}
	r.Set(v)
	return r
}

// BindKey makes r resolve lazily through fn. key is the target's key as
// stored in the owning document.
func (r *Ref[T]) BindKey(key string, fn LookupFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var zero T
	r.st, r.key, r.lookup, r.val, r.found = pending, key, fn, zero, false
}

// Set assigns v. Assigning a nil value clears the reference.
func (r *Ref[T]) Set(v T) {
	if isNil(v) {
		r.Clear()
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.st, r.key, r.lookup, r.val, r.found = resolved, v.GetKey(), nil, v, true
}

// Clear removes any value or binding.
func (r *Ref[T]) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	var zero T
	r.st, r.key, r.lookup, r.val, r.found = unset, "", nil, zero, false
}

// IsSet reports whether r refers to anything.
func (r *Ref[T]) IsSet() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.st != unset
}

// Key returns the key of the referenced model without resolving it.
func (r *Ref[T]) Key() (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	switch r.st {
	case pending:
		return r.key, r.key != ""
	case resolved:
		if r.found {
			if k := r.val.GetKey(); k != "" {
				return k, true
			}
		}
		// Dangling: keep pointing at the key we were bound to.
		return r.key, r.key != ""
	}
	return "", false
}

// Get returns the referenced model. found is false when r is unset or the
// stored key no longer resolves. Errors from the lookup are returned as-is
// and not cached, so a later Get retries.
func (r *Ref[T]) Get(ctx context.Context) (v T, found bool, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	switch r.st {
	case unset:
		return v, false, nil
	case resolved:
		return r.val, r.found, nil
	}

	if r.lookup == nil {
		return v, false, fmt.Errorf("ref %q: %w", r.key, ErrUnbound)
	}
	m, ok, err := r.lookup(ctx)
	if err != nil {
		return v, false, err
	}
	if ok {
		if v, err = as[T](m); err != nil {
			return v, false, err
		}
		ok = !isNil(v)
	}
	r.st, r.val, r.found = resolved, v, ok
	return v, ok, nil
}

// MustGet is like Get but panics if the lookup fails.
func (r *Ref[T]) MustGet(ctx context.Context) T {
	v, _, err := r.Get(ctx)
	if err != nil {
		panic(err)
	}
	return v
}

// Equal resolves r and reports whether it refers to the same entity as v.
func (r *Ref[T]) Equal(ctx context.Context, v T) (bool, error) {
	got, found, err := r.Get(ctx)
	if err != nil {
		return false, err
	}
	if !found || isNil(v) {
		return !found && isNil(v), nil
	}
	return model.Same(got, v), nil
}

func (r *Ref[T]) resolved() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.st == resolved
}
