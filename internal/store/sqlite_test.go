package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/rcliao/docmap/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	dir := t.TempDir()
	s, err := NewSQLiteStore(filepath.Join(dir, "test.db"))
	require.NoError(t, err, "create store")
	t.Cleanup(func() { s.Close() })
	return s
}

func TestInsertAndLookup(t *testing.T) {
	ctx := context.Background()
	books := newTestStore(t).Collection("books")

	doc, err := books.Insert(ctx, model.Document{Fields: model.Fields{"title": "Go", "pages": 380}})
	require.NoError(t, err)
	assert.NotEmpty(t, doc.Key)
	assert.NotEmpty(t, doc.Rev)
	assert.Contains(t, doc.Fields, model.CreatedAtField)

	got, err := books.LookupByKey(ctx, doc.Key)
	require.NoError(t, err)
	assert.Equal(t, doc.Key, got.Key)
	assert.Equal(t, doc.Rev, got.Rev)
	assert.Equal(t, "Go", got.Fields["title"])
	assert.EqualValues(t, 380, got.Fields["pages"])
}

func TestInsertKeepsExplicitKey(t *testing.T) {
	ctx := context.Background()
	books := newTestStore(t).Collection("books")

	doc, err := books.Insert(ctx, model.Document{Key: "b1", Fields: model.Fields{"title": "Go", "key": "ignored", "rev": "ignored"}})
	require.NoError(t, err)
	assert.Equal(t, "b1", doc.Key)
	assert.NotContains(t, doc.Fields, "key")
	assert.NotContains(t, doc.Fields, "rev")

	_, err = books.Insert(ctx, model.Document{Key: "b1", Fields: model.Fields{"title": "again"}})
	require.ErrorIs(t, err, ErrDuplicateKey)
}

func TestLookupMissing(t *testing.T) {
	_, err := newTestStore(t).Collection("books").LookupByKey(context.Background(), "nope")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestCollectionsAreIsolated(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	_, err := s.Collection("books").Insert(ctx, model.Document{Key: "x", Fields: model.Fields{}})
	require.NoError(t, err)

	_, err = s.Collection("authors").LookupByKey(ctx, "x")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestQueryByExample(t *testing.T) {
	ctx := context.Background()
	books := newTestStore(t).Collection("books")

	for _, d := range []model.Document{
		{Key: "b1", Fields: model.Fields{"title": "Go", "author_id": "a1", "year": 2015, "draft": false}},
		{Key: "b2", Fields: model.Fields{"title": "C", "author_id": "a2", "year": 1978, "draft": false}},
		{Key: "b3", Fields: model.Fields{"title": "Go 2", "author_id": "a1", "year": 2025, "draft": true}},
	} {
		_, err := books.Insert(ctx, d)
		require.NoError(t, err)
	}

	docs, err := books.QueryByExample(ctx, model.Fields{"author_id": "a1"})
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, "b1", docs[0].Key)
	assert.Equal(t, "b3", docs[1].Key)

	docs, err = books.QueryByExample(ctx, model.Fields{"author_id": "a1", "draft": true})
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "b3", docs[0].Key)

	docs, err = books.QueryByExample(ctx, model.Fields{"year": 1978})
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "b2", docs[0].Key)

	docs, err = books.QueryByExample(ctx, model.Fields{"editor_id": nil})
	require.NoError(t, err)
	assert.Len(t, docs, 3)

	docs, err = books.QueryByExample(ctx, model.Fields{"author_id": "a9"})
	require.NoError(t, err)
	assert.Empty(t, docs)
}

func TestQueryByExampleRejectsNested(t *testing.T) {
	_, err := newTestStore(t).Collection("books").
		QueryByExample(context.Background(), model.Fields{"meta": map[string]any{"a": 1}})
	assert.Error(t, err)
}

func TestReplace(t *testing.T) {
	ctx := context.Background()
	books := newTestStore(t).Collection("books")

	first, err := books.Insert(ctx, model.Document{Fields: model.Fields{"title": "v1"}})
	require.NoError(t, err)
	before, err := books.LookupByKey(ctx, first.Key)
	require.NoError(t, err)

	second, err := books.Replace(ctx, model.Document{Key: first.Key, Fields: model.Fields{"title": "v2"}})
	require.NoError(t, err)
	assert.Equal(t, first.Key, second.Key)
	assert.NotEqual(t, first.Rev, second.Rev, "every write gets a new revision")

	got, err := books.LookupByKey(ctx, first.Key)
	require.NoError(t, err)
	assert.Equal(t, "v2", got.Fields["title"])
	assert.Equal(t, before.Fields[model.CreatedAtField], got.Fields[model.CreatedAtField])
	assert.Equal(t, second.Rev, got.Rev)

	_, err = books.Replace(ctx, model.Document{Key: "missing", Fields: model.Fields{}})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDelete(t *testing.T) {
	ctx := context.Background()
	books := newTestStore(t).Collection("books")

	doc, _ := books.Insert(ctx, model.Document{Fields: model.Fields{"title": "gone"}})
	require.NoError(t, books.Delete(ctx, doc.Key))

	_, err := books.LookupByKey(ctx, doc.Key)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, books.Delete(ctx, doc.Key), ErrNotFound)
}

func TestAllOrdersByKey(t *testing.T) {
	ctx := context.Background()
	books := newTestStore(t).Collection("books")

	for _, k := range []string{"c", "a", "b"} {
		_, err := books.Insert(ctx, model.Document{Key: k, Fields: model.Fields{}})
		require.NoError(t, err)
	}

	docs, err := books.All(ctx)
	require.NoError(t, err)
	require.Len(t, docs, 3)
	assert.Equal(t, []string{"a", "b", "c"}, []string{docs[0].Key, docs[1].Key, docs[2].Key})
}

func TestStatsAndSummary(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	_, _ = s.Collection("books").Insert(ctx, model.Document{Fields: model.Fields{}})
	_, _ = s.Collection("books").Insert(ctx, model.Document{Fields: model.Fields{}})
	_, _ = s.Collection("authors").Insert(ctx, model.Document{Fields: model.Fields{}})

	sum, err := Summarize(ctx, "sqlite", s)
	require.NoError(t, err)
	assert.Equal(t, 3, sum.TotalDocuments)
	assert.Equal(t, s.Path(), sum.Location)
	assert.Equal(t, []CollectionStats{{Name: "authors", Count: 1}, {Name: "books", Count: 2}}, sum.Collections)
}

func TestExportImport(t *testing.T) {
	ctx := context.Background()
	src := newTestStore(t).Collection("books")
	dst := newTestStore(t).Collection("books")

	_, _ = src.Insert(ctx, model.Document{Key: "b1", Fields: model.Fields{"title": "Go"}})
	_, _ = src.Insert(ctx, model.Document{Key: "b2", Fields: model.Fields{"title": "C"}})
	_, _ = dst.Insert(ctx, model.Document{Key: "b2", Fields: model.Fields{"title": "kept"}})

	docs, err := Export(ctx, src)
	require.NoError(t, err)
	require.Len(t, docs, 2)

	n, err := Import(ctx, dst, docs)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	got, err := dst.LookupByKey(ctx, "b2")
	require.NoError(t, err)
	assert.Equal(t, "kept", got.Fields["title"])
}

func TestMatches(t *testing.T) {
	fields := model.Fields{"author_id": "a1", "year": float64(2015), "draft": false}

	assert.True(t, Matches(fields, model.Fields{"author_id": "a1"}))
	assert.True(t, Matches(fields, model.Fields{"year": 2015}))
	assert.True(t, Matches(fields, model.Fields{"draft": false, "missing": nil}))
	assert.False(t, Matches(fields, model.Fields{"author_id": "a2"}))
	assert.False(t, Matches(fields, model.Fields{"editor_id": "e1"}))
	assert.False(t, Matches(fields, model.Fields{"author_id": nil}))
}
