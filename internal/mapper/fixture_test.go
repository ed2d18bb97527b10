package mapper

import (
	"context"
	"fmt"
	"sort"
	"testing"
	"time"

	"github.com/rcliao/docmap/internal/assoc"
	"github.com/rcliao/docmap/internal/identitymap"
	"github.com/rcliao/docmap/internal/model"
	"github.com/rcliao/docmap/internal/store"
	"github.com/stretchr/testify/require"
)

type Author struct {
	model.Base
	Name  string            `doc:"name" validate:"required"`
	Books assoc.Many[*Book] `doc:"books"`
}

type Book struct {
	model.Base
	Title    string             `doc:"title"`
	Pages    int                `doc:"pages,omitempty"`
	Author   assoc.Ref[*Author] `doc:"author"`
	Comments []*Comment         `doc:"comments"`
}

type Comment struct {
	model.Base
	Text  string `doc:"text"`
	Likes int    `doc:"likes,omitempty"`
}

// memCollection is an in-memory store.Collection that counts reads.
type memCollection struct {
	name    string
	docs    map[string]model.Document
	seq     int
	lookups int
	queries int
	fail    error
}

func newMemCollection(name string) *memCollection {
	return &memCollection{name: name, docs: map[string]model.Document{}}
}

func (c *memCollection) Name() string { return c.name }

func (c *memCollection) LookupByKey(_ context.Context, key string) (model.Document, error) {
	c.lookups++
	if c.fail != nil {
		return model.Document{}, c.fail
	}
	d, ok := c.docs[key]
	if !ok {
		return model.Document{}, fmt.Errorf("%s/%s: %w", c.name, key, store.ErrNotFound)
	}
	return d, nil
}

func (c *memCollection) QueryByExample(_ context.Context, example model.Fields) ([]model.Document, error) {
	c.queries++
	if c.fail != nil {
		return nil, c.fail
	}
	var out []model.Document
	for _, k := range c.keys() {
		if d := c.docs[k]; store.Matches(d.Fields, example) {
			out = append(out, d)
		}
	}
	return out, nil
}

func (c *memCollection) All(context.Context) ([]model.Document, error) {
	var out []model.Document
	for _, k := range c.keys() {
		out = append(out, c.docs[k])
	}
	return out, nil
}

func (c *memCollection) Insert(_ context.Context, doc model.Document) (model.Document, error) {
	c.seq++
	if doc.Key == "" {
		doc.Key = fmt.Sprintf("k%d", c.seq)
	}
	if _, dup := c.docs[doc.Key]; dup {
		return model.Document{}, fmt.Errorf("%s/%s: %w", c.name, doc.Key, store.ErrDuplicateKey)
	}
	now := time.Now().UTC()
	d := model.Document{Key: doc.Key, Rev: fmt.Sprintf("r%d", c.seq), Fields: store.Payload(doc, now, now)}
	c.docs[d.Key] = d
	return d, nil
}

func (c *memCollection) Replace(_ context.Context, doc model.Document) (model.Document, error) {
	prev, ok := c.docs[doc.Key]
	if !ok {
		return model.Document{}, store.ErrNotFound
	}
	c.seq++
	created, _ := prev.Fields[model.CreatedAtField].(time.Time)
	d := model.Document{Key: doc.Key, Rev: fmt.Sprintf("r%d", c.seq), Fields: store.Payload(doc, created, time.Now().UTC())}
	c.docs[d.Key] = d
	return d, nil
}

func (c *memCollection) Delete(_ context.Context, key string) error {
	if _, ok := c.docs[key]; !ok {
		return store.ErrNotFound
	}
	delete(c.docs, key)
	return nil
}

func (c *memCollection) put(key string, fields model.Fields) {
	c.docs[key] = model.Document{Key: key, Rev: "rev-" + key, Fields: fields}
}

func (c *memCollection) keys() []string {
	keys := make([]string, 0, len(c.docs))
	for k := range c.docs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

type fixture struct {
	identity *identitymap.Map
	registry *Registry

	authorDocs *memCollection
	bookDocs   *memCollection

	authorMapper *Mapper[*Author]
	bookMapper   *Mapper[*Book]

	authors *Repository[*Author]
	books   *Repository[*Book]
}

func newFixture(t *testing.T, authorRelations *Relations) *fixture {
	t.Helper()
	f := &fixture{
		identity:   identitymap.New(),
		registry:   NewRegistry(),
		authorDocs: newMemCollection("authors"),
		bookDocs:   newMemCollection("books"),
	}
	if authorRelations == nil {
		authorRelations = NewRelations().ReferencedBy("books")
	}

	var err error
	f.authorMapper, err = New[*Author](authorRelations,
		WithIdentityMap(f.identity), WithRegistry(f.registry))
	require.NoError(t, err)
	f.bookMapper, err = New[*Book](NewRelations().References("author").Embeds("comments"),
		WithIdentityMap(f.identity), WithRegistry(f.registry))
	require.NoError(t, err)

	f.authors = NewRepository(f.authorDocs, f.authorMapper)
	f.books = NewRepository(f.bookDocs, f.bookMapper)
	f.registry.Register(f.authors, "author", "authors")
	f.registry.Register(f.books, "books")
	return f
}
