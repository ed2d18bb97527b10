package identitymap

import (
	"context"
	"net/http"
)

type ctxKey struct{}

// WithContext returns a copy of ctx carrying m.
func WithContext(ctx context.Context, m *Map) context.Context {
	return context.WithValue(ctx, ctxKey{}, m)
}

// FromContext returns the map carried by ctx, or Default when there is none.
func FromContext(ctx context.Context) *Map {
	if m, ok := ctx.Value(ctxKey{}).(*Map); ok && m != nil {
		return m
	}
	return Default()
}

// Session is middleware that resets m before every request and makes it
// available to handlers through FromContext.
func Session(m *Map, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		m.Reset()
		next.ServeHTTP(w, r.WithContext(WithContext(r.Context(), m)))
	})
}
