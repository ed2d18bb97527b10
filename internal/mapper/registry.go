package mapper

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/rcliao/docmap/internal/model"
)

// ErrUnknownRelation is returned when a relation is resolved but no source
// was registered under its name.
var ErrUnknownRelation = errors.New("no source registered for relation")

// Source yields models of one type. *Repository implements it.
type Source interface {
	// LookupModel returns the model stored under key. found is false when
	// the key does not exist.
	LookupModel(ctx context.Context, key string) (m model.Model, found bool, err error)

	// QueryModels returns the models whose documents match example.
	QueryModels(ctx context.Context, example model.Fields) ([]model.Model, error)
}

// Registry maps relation names to the sources that resolve them. It is
// populated at startup; lookups happen when an association is first read.
type Registry struct {
	mu      sync.RWMutex
	sources map[string]Source
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{sources: map[string]Source{}}
}

var defaultRegistry = NewRegistry()

// DefaultRegistry returns the process-wide registry.
func DefaultRegistry() *Registry { return defaultRegistry }

// Register binds one or more relation names (for example "author" and
// "authors") to src. Later registrations replace earlier ones.
func (r *Registry) Register(src Source, names ...string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, n := range names {
		r.sources[n] = src
	}
}

// Lookup returns the source registered under name.
func (r *Registry) Lookup(name string) (Source, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	src, ok := r.sources[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownRelation, name)
	}
	return src, nil
}

// Names returns the registered relation names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.sources))
	for n := range r.sources {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
