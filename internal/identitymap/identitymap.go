// Package identitymap keeps at most one live model per persisted entity
// within a unit of work.
//
// A Map is keyed by (model type, key). Every mutation builds a new immutable
// snapshot and installs it with compare-and-swap, so readers never block and
// never observe a partially updated map. Concurrent RetrieveOrStore calls for
// the same entry may both run their factory; only the first committed result
// becomes canonical and the other caller receives it. A caller that captured
// its own instance before the swap completed may still hold a non-canonical
// object. That is the price of the lock-free design.
//
// Reset must be called by the host at unit-of-work boundaries (see Session);
// nothing in this module resets a map implicitly.
package identitymap

import (
	"errors"
	"fmt"
	"maps"
	"reflect"
	"sync/atomic"

	"github.com/rcliao/docmap/internal/model"
	"github.com/rs/zerolog"
)

// ErrMissingKey is returned when storing a model that has no key.
var ErrMissingKey = errors.New("model has no key")

type entryKey struct {
	typ reflect.Type
	key string
}

type snapshot map[entryKey]model.Model

// Map is an identity map. The zero value is not usable; call New.
type Map struct {
	current atomic.Pointer[snapshot]
	logger  zerolog.Logger
}

// Option configures a Map.
type Option func(*Map)

// WithLogger sets the logger used for reset and store events.
func WithLogger(l zerolog.Logger) Option {
	return func(m *Map) { m.logger = l }
}

// New returns an empty map.
func New(opts ...Option) *Map {
	m := &Map{logger: zerolog.Nop()}
	for _, o := range opts {
		o(m)
	}
	m.current.Store(&snapshot{})
	return m
}

var defaultMap = New()

// Default returns the process-wide map used by mappers that were not given
// one explicitly.
func Default() *Map { return defaultMap }

// Reset drops every entry.
func (m *Map) Reset() {
	m.logger.Debug().Msg("resetting identity map")
	m.current.Store(&snapshot{})
}

// Len returns the number of entries in the current snapshot.
func (m *Map) Len() int {
	return len(*m.current.Load())
}

// Store inserts or overwrites the entry for (type(obj), obj.GetKey()). The
// last writer for a given entry wins.
func (m *Map) Store(obj model.Model) (model.Model, error) {
	k, err := keyOf(obj)
	if err != nil {
		return nil, err
	}
	for {
		cur := m.current.Load()
		next := with(cur, k, obj)
		if m.current.CompareAndSwap(cur, next) {
			m.logger.Debug().Str("type", k.typ.String()).Str("key", k.key).Msg("stored model")
			return obj, nil
		}
	}
}

// Retrieve returns the model stored for (t, key).
func (m *Map) Retrieve(t reflect.Type, key string) (model.Model, bool) {
	obj, ok := (*m.current.Load())[entryKey{typ: t, key: key}]
	return obj, ok
}

// Includes reports whether an entry exists for (t, key).
func (m *Map) Includes(t reflect.Type, key string) bool {
	_, ok := m.Retrieve(t, key)
	return ok
}

// RetrieveOrStore returns the entry for (t, key), building and storing it
// with factory when absent. Factory errors are returned unchanged and leave
// the map untouched. The built model must carry key and be of type t.
func (m *Map) RetrieveOrStore(t reflect.Type, key string, factory func() (model.Model, error)) (model.Model, error) {
	if key == "" {
		return nil, ErrMissingKey
	}
	k := entryKey{typ: t, key: key}
	if obj, ok := (*m.current.Load())[k]; ok {
		m.logger.Debug().Str("type", t.String()).Str("key", key).Msg("identity map hit")
		return obj, nil
	}

	built, err := factory()
	if err != nil {
		return nil, err
	}
	if got := reflect.TypeOf(built); got != t {
		return nil, fmt.Errorf("identity map: factory built %v, want %v", got, t)
	}

	for {
		cur := m.current.Load()
		if obj, ok := (*cur)[k]; ok {
			// Another caller committed first; theirs is canonical.
			return obj, nil
		}
		if m.current.CompareAndSwap(cur, with(cur, k, built)) {
			m.logger.Debug().Str("type", t.String()).Str("key", key).Msg("identity map miss, stored")
			return built, nil
		}
	}
}

// Delete evicts the entry for (t, key) and reports whether there was one.
// Use it when the entity behind the entry no longer exists.
func (m *Map) Delete(t reflect.Type, key string) bool {
	k := entryKey{typ: t, key: key}
	for {
		cur := m.current.Load()
		if _, ok := (*cur)[k]; !ok {
			return false
		}
		next := maps.Clone(*cur)
		delete(next, k)
		if m.current.CompareAndSwap(cur, &next) {
			m.logger.Debug().Str("type", t.String()).Str("key", key).Msg("evicted model")
			return true
		}
	}
}

func keyOf(obj model.Model) (entryKey, error) {
	if obj == nil {
		return entryKey{}, fmt.Errorf("identity map: nil model")
	}
	if obj.GetKey() == "" {
		return entryKey{}, fmt.Errorf("identity map: store %T: %w", obj, ErrMissingKey)
	}
	return entryKey{typ: reflect.TypeOf(obj), key: obj.GetKey()}, nil
}

func with(cur *snapshot, k entryKey, obj model.Model) *snapshot {
	next := make(snapshot, len(*cur)+1)
	maps.Copy(next, *cur)
	next[k] = obj
	return &next
}
