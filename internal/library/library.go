// Package library is the book catalog domain: authors write books and
// readers leave comments on books.
//
// Books live in the "books" collection and reference their author through
// author_id. Authors live in "authors"; their books are derived by querying
// books for that author_id. Comments have no collection of their own and
// are stored inline in the book document.
package library

import (
	"context"
	"fmt"
	"strings"

	"github.com/rcliao/docmap/internal/assoc"
	"github.com/rcliao/docmap/internal/identitymap"
	"github.com/rcliao/docmap/internal/mapper"
	"github.com/rcliao/docmap/internal/model"
	"github.com/rcliao/docmap/internal/store"
	"github.com/rs/zerolog"
)

// Collection names.
const (
	AuthorsCollection = "authors"
	BooksCollection   = "books"
)

type Author struct {
	model.Base
	Name  string            `doc:"name" json:"name" validate:"required"`
	Bio   string            `doc:"bio,omitempty" json:"bio,omitempty"`
	Books assoc.Many[*Book] `doc:"books" json:"-"`
}

type Book struct {
	model.Base
	Title    string             `doc:"title" json:"title" validate:"required"`
	Year     int                `doc:"year,omitempty" json:"year,omitempty"`
	Author   assoc.Ref[*Author] `doc:"author" json:"-"`
	Comments []*Comment         `doc:"comments" json:"comments,omitempty"`
}

// BeforeValidation trims the title, so a blank title fails validation.
func (b *Book) BeforeValidation(context.Context) error {
	b.Title = strings.TrimSpace(b.Title)
	return nil
}

type Comment struct {
	model.Base
	Body string `doc:"body" json:"body" validate:"required"`
	By   string `doc:"by,omitempty" json:"by,omitempty"`
}

// Catalog wires the library models to a store.
type Catalog struct {
	Identity *identitymap.Map
	Registry *mapper.Registry
	Authors  *mapper.Repository[*Author]
	Books    *mapper.Repository[*Book]
}

type options struct {
	identity *identitymap.Map
	logger   zerolog.Logger
}

// Option configures Open.
type Option func(*options)

// WithIdentityMap makes the catalog use m. By default each catalog gets
// its own map.
func WithIdentityMap(m *identitymap.Map) Option {
	return func(o *options) { o.identity = m }
}

// WithLogger sets the logger passed to the mappers.
func WithLogger(l zerolog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// Open builds mappers and repositories for the library models on s.
func Open(s store.Store, opts ...Option) (*Catalog, error) {
	o := options{logger: zerolog.Nop()}
	for _, fn := range opts {
		fn(&o)
	}
	if o.identity == nil {
		o.identity = identitymap.New(identitymap.WithLogger(o.logger))
	}

	reg := mapper.NewRegistry()
	common := []mapper.Option{
		mapper.WithIdentityMap(o.identity),
		mapper.WithRegistry(reg),
		mapper.WithLogger(o.logger),
	}

	authors, err := mapper.New[*Author](mapper.NewRelations().ReferencedBy(BooksCollection), common...)
	if err != nil {
		return nil, err
	}
	books, err := mapper.New[*Book](mapper.NewRelations().References("author").Embeds("comments"), common...)
	if err != nil {
		return nil, err
	}

	c := &Catalog{
		Identity: o.identity,
		Registry: reg,
		Authors:  mapper.NewRepository(s.Collection(AuthorsCollection), authors),
		Books:    mapper.NewRepository(s.Collection(BooksCollection), books),
	}
	reg.Register(c.Authors, "author", AuthorsCollection)
	reg.Register(c.Books, BooksCollection)
	return c, nil
}

// Reset ends the current unit of work.
func (c *Catalog) Reset() {
	c.Identity.Reset()
}

// AddComment appends a comment to the book stored under bookKey and saves
// the book.
func (c *Catalog) AddComment(ctx context.Context, bookKey string, cm *Comment) (*Book, error) {
	b, found, err := c.Books.ByKey(ctx, bookKey)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, fmt.Errorf("book %s: %w", bookKey, store.ErrNotFound)
	}
	b.Comments = append(b.Comments, cm)
	if err := c.Books.Save(ctx, b); err != nil {
		return nil, err
	}
	return b, nil
}

// BooksBy returns the books of the author stored under authorKey.
func (c *Catalog) BooksBy(ctx context.Context, authorKey string) ([]*Book, error) {
	a, found, err := c.Authors.ByKey(ctx, authorKey)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, fmt.Errorf("author %s: %w", authorKey, store.ErrNotFound)
	}
	return a.Books.All(ctx)
}
