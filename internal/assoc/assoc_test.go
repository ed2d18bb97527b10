package assoc

import (
	"context"
	"errors"
	"testing"

	"github.com/rcliao/docmap/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type author struct {
	model.Base
	Name string
}

type book struct {
	model.Base
	Title string
}

func countingLookup(m model.Model, found bool, calls *int) LookupFunc {
	return func(context.Context) (model.Model, bool, error) {
		*calls++
		return m, found, nil
	}
}

func TestRefResolvesOnce(t *testing.T) {
	ctx := context.Background()
	a := &author{Base: model.Base{Key: "a1"}, Name: "Rob"}
	calls := 0

	var r Ref[*author]
	r.BindKey("a1", countingLookup(a, true, &calls))

	assert.Equal(t, 0, calls)
	assert.False(t, Resolved(&r))
	key, ok := r.Key()
	require.True(t, ok)
	assert.Equal(t, "a1", key)
	assert.Equal(t, 0, calls, "Key must not resolve")

	got, found, err := r.Get(ctx)
	require.NoError(t, err)
	require.True(t, found)
	assert.Same(t, a, got)
	assert.Equal(t, "Rob", got.Name)

	_, _, _ = r.Get(ctx)
	assert.Equal(t, 1, calls)
	assert.True(t, Resolved(&r))
}

func TestRefDanglingKey(t *testing.T) {
	calls := 0
	var r Ref[*author]
	r.BindKey("gone", countingLookup(nil, false, &calls))

	got, found, err := r.Get(context.Background())
	require.NoError(t, err)
	assert.False(t, found)
	assert.Nil(t, got)
	assert.True(t, r.IsSet())

	key, ok := r.Key()
	assert.True(t, ok)
	assert.Equal(t, "gone", key)
}

func TestRefErrorIsNotCached(t *testing.T) {
	ctx := context.Background()
	boom := errors.New("store unreachable")
	a := &author{Base: model.Base{Key: "a1"}}
	fail := true

	var r Ref[*author]
	r.BindKey("a1", func(context.Context) (model.Model, bool, error) {
		if fail {
			return nil, false, boom
		}
		return a, true, nil
	})

	_, _, err := r.Get(ctx)
	require.ErrorIs(t, err, boom)
	assert.False(t, Resolved(&r))

	fail = false
	got, found, err := r.Get(ctx)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Same(t, a, got)
}

func TestRefTypeMismatch(t *testing.T) {
	var r Ref[*author]
	r.BindKey("b1", func(context.Context) (model.Model, bool, error) {
		return &book{Base: model.Base{Key: "b1"}}, true, nil
	})

	_, _, err := r.Get(context.Background())
	require.ErrorIs(t, err, ErrTypeMismatch)
}

func TestRefSetAndClear(t *testing.T) {
	ctx := context.Background()
	a := &author{Base: model.Base{Key: "a2"}}

	var r Ref[*author]
	assert.False(t, r.IsSet())
	_, found, err := r.Get(ctx)
	require.NoError(t, err)
	assert.False(t, found)

	r.Set(a)
	assert.True(t, r.IsSet())
	assert.True(t, Resolved(&r))
	key, _ := r.Key()
	assert.Equal(t, "a2", key)

	r.Set(nil)
	assert.False(t, r.IsSet())

	r.Set(a)
	r.Clear()
	_, ok := r.Key()
	assert.False(t, ok)
}

func TestRefEqualForcesResolution(t *testing.T) {
	ctx := context.Background()
	a := &author{Base: model.Base{Key: "a1"}}
	other := &author{Base: model.Base{Key: "a1"}}
	calls := 0

	var r Ref[*author]
	r.BindKey("a1", countingLookup(a, true, &calls))

	eq, err := r.Equal(ctx, other)
	require.NoError(t, err)
	assert.True(t, eq)
	assert.Equal(t, 1, calls)

	eq, err = r.Equal(ctx, &author{Base: model.Base{Key: "a9"}})
	require.NoError(t, err)
	assert.False(t, eq)

	eq, err = RefTo(a).Equal(ctx, a)
	require.NoError(t, err)
	assert.True(t, eq)
}

func booksQuery(calls *int, books ...*book) QueryFunc {
	return func(context.Context) ([]model.Model, error) {
		*calls++
		out := make([]model.Model, len(books))
		for i, b := range books {
			out[i] = b
		}
		return out, nil
	}
}

func TestManyCacheFirst(t *testing.T) {
	ctx := context.Background()
	b1 := &book{Base: model.Base{Key: "b1"}}
	b2 := &book{Base: model.Base{Key: "b2"}}
	calls := 0

	var m Many[*book]
	m.BindQuery(booksQuery(&calls, b1, b2), CacheFirst)
	assert.Equal(t, 0, calls)

	all, err := m.All(ctx)
	require.NoError(t, err)
	assert.Equal(t, []*book{b1, b2}, all)

	n, err := m.Len(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	first, ok, err := m.First(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Same(t, b1, first)

	assert.Equal(t, 1, calls)
	assert.True(t, Resolved(&m))
}

func TestManyLive(t *testing.T) {
	ctx := context.Background()
	calls := 0

	var m Many[*book]
	m.BindQuery(booksQuery(&calls, &book{Base: model.Base{Key: "b1"}}), Live)

	_, _ = m.All(ctx)
	_, _ = m.All(ctx)
	assert.Equal(t, 2, calls)
	assert.False(t, Resolved(&m))
}

func TestManyReturnsCopies(t *testing.T) {
	ctx := context.Background()
	m := ManyOf(&book{Base: model.Base{Key: "b1"}})

	all, _ := m.All(ctx)
	all[0] = nil

	again, _ := m.All(ctx)
	require.Len(t, again, 1)
	assert.NotNil(t, again[0])
}

func TestManyEachAndEqual(t *testing.T) {
	ctx := context.Background()
	b1 := &book{Base: model.Base{Key: "b1"}}
	b2 := &book{Base: model.Base{Key: "b2"}}
	calls := 0

	var m Many[*book]
	m.BindQuery(booksQuery(&calls, b1, b2), CacheFirst)

	eq, err := m.Equal(ctx, []*book{b1, b2})
	require.NoError(t, err)
	assert.True(t, eq)

	var keys []string
	require.NoError(t, m.Each(ctx, func(b *book) error {
		keys = append(keys, b.Key)
		return nil
	}))
	assert.Equal(t, []string{"b1", "b2"}, keys)

	stop := errors.New("stop")
	assert.ErrorIs(t, m.Each(ctx, func(*book) error { return stop }), stop)
	assert.Equal(t, 1, calls)
}

func TestManyUnset(t *testing.T) {
	var m Many[*book]
	all, err := m.All(context.Background())
	require.NoError(t, err)
	assert.Empty(t, all)
	assert.False(t, m.IsSet())
}

func TestPolicyString(t *testing.T) {
	assert.Equal(t, "cache-first", CacheFirst.String())
	assert.Equal(t, "live", Live.String())
}

func TestUnboundCells(t *testing.T) {
	ctx := context.Background()

	var r Ref[*author]
	r.BindKey("a1", nil)
	_, _, err := r.Get(ctx)
	require.ErrorIs(t, err, ErrUnbound)
	assert.Panics(t, func() { r.MustGet(ctx) })

	var m Many[*book]
	m.BindQuery(nil, CacheFirst)
	_, err = m.All(ctx)
	require.ErrorIs(t, err, ErrUnbound)
}

func TestRefMustGet(t *testing.T) {
	a := &author{Base: model.Base{Key: "a1"}}
	calls := 0
	var r Ref[*author]
	r.BindKey("a1", countingLookup(a, true, &calls))
	assert.Same(t, a, r.MustGet(context.Background()))

	var unset Ref[*author]
	assert.Nil(t, unset.MustGet(context.Background()))
}
