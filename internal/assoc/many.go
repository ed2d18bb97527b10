package assoc

import (
	"context"
	"slices"
	"sync"

	"github.com/rcliao/docmap/internal/model"
)

// Many holds the related models on the "one" side of a one-to-many
// relation.
//
// The zero value is an unset collection. A Many must not be copied after
// first use.
type Many[T model.Model] struct {
	mu     sync.Mutex
	st     state
	query  QueryFunc
	policy Policy
	vals   []T
}

// ManyOf returns a collection already holding vals.
func ManyOf[T model.Model](vals ...T) *Many[T] {
	m := &Many[T]{}
	m.Set(vals)
	return m
}

// BindQuery makes m resolve lazily through fn.
func (m *Many[T]) BindQuery(fn QueryFunc, p Policy) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.st, m.query, m.policy, m.vals = pending, fn, p, nil
}

// Set assigns vals.
func (m *Many[T]) Set(vals []T) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.st, m.query, m.vals = resolved, nil, slices.Clone(vals)
}

// Clear removes any value or binding.
func (m *Many[T]) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.st, m.query, m.vals = unset, nil, nil
}

// IsSet reports whether m holds values or a binding.
func (m *Many[T]) IsSet() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.st != unset
}

// All returns the related models. The returned slice is a copy.
func (m *Many[T]) All(ctx context.Context) ([]T, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	switch m.st {
	case unset:
		return nil, nil
	case resolved:
		return slices.Clone(m.vals), nil
	}

	if m.query == nil {
		return nil, ErrUnbound
	}
	found, err := m.query(ctx)
	if err != nil {
		return nil, err
	}
	vals := make([]T, 0, len(found))
	for _, f := range found {
		v, err := as[T](f)
		if err != nil {
			return nil, err
		}
		vals = append(vals, v)
	}
	if m.policy == CacheFirst {
		m.st, m.vals = resolved, vals
	}
	return slices.Clone(vals), nil
}

// Len returns the number of related models.
func (m *Many[T]) Len(ctx context.Context) (int, error) {
	vals, err := m.All(ctx)
	return len(vals), err
}

// First returns the first related model, if any.
func (m *Many[T]) First(ctx context.Context) (T, bool, error) {
	var zero T
	vals, err := m.All(ctx)
	if err != nil || len(vals) == 0 {
		return zero, false, err
	}
	return vals[0], true, nil
}

// Each calls fn for every related model, stopping at the first error.
func (m *Many[T]) Each(ctx context.Context, fn func(T) error) error {
	vals, err := m.All(ctx)
	if err != nil {
		return err
	}
	for _, v := range vals {
		if err := fn(v); err != nil {
			return err
		}
	}
	return nil
}

// Equal resolves m and reports whether it holds the same entities as vals,
// in order.
func (m *Many[T]) Equal(ctx context.Context, vals []T) (bool, error) {
	got, err := m.All(ctx)
	if err != nil {
		return false, err
	}
	return slices.EqualFunc(got, vals, func(a, b T) bool { return model.Same(a, b) }), nil
}

func (m *Many[T]) resolved() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.st == resolved
}
