// Package mongostore implements store.Store on MongoDB. Each collection
// maps to a MongoDB collection of the same name; the document key is the
// _id and the revision is kept in _rev.
package mongostore

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/rcliao/docmap/internal/model"
	"github.com/rcliao/docmap/internal/store"
	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	idField  = "_id"
	revField = "_rev"
)

// Store is a MongoDB-backed store.Store.
type Store struct {
	client *mongo.Client
	db     *mongo.Database
	name   string
	logger zerolog.Logger
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger for write events.
func WithLogger(l zerolog.Logger) Option {
	return func(s *Store) { s.logger = l }
}

// Connect opens a connection, pings the server and returns a store on the
// named database. timeout bounds the connect and ping.
func Connect(ctx context.Context, uri, database string, timeout time.Duration, opts ...Option) (*Store, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("mongo connect: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("mongo ping: %w", err)
	}
	return New(client, database, opts...), nil
}

// New wraps an existing client.
func New(client *mongo.Client, database string, opts ...Option) *Store {
	s := &Store{client: client, db: client.Database(database), name: database, logger: zerolog.Nop()}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Path returns the database name.
func (s *Store) Path() string { return s.name }

// Collection returns the named collection.
func (s *Store) Collection(name string) store.Collection {
	return &collection{s: s, col: s.db.Collection(name)}
}

// Stats returns document counts for every non-empty collection.
func (s *Store) Stats(ctx context.Context) ([]store.CollectionStats, error) {
	names, err := s.db.ListCollectionNames(ctx, bson.D{})
	if err != nil {
		return nil, err
	}
	sort.Strings(names)

	var stats []store.CollectionStats
	for _, name := range names {
		n, err := s.db.Collection(name).CountDocuments(ctx, bson.D{})
		if err != nil {
			return nil, fmt.Errorf("count %s: %w", name, err)
		}
		if n > 0 {
			stats = append(stats, store.CollectionStats{Name: name, Count: int(n)})
		}
	}
	return stats, nil
}

// Close disconnects the client.
func (s *Store) Close() error {
	return s.client.Disconnect(context.Background())
}

type collection struct {
	s   *Store
	col *mongo.Collection
}

func (c *collection) Name() string { return c.col.Name() }

func (c *collection) LookupByKey(ctx context.Context, key string) (model.Document, error) {
	var raw bson.M
	err := c.col.FindOne(ctx, bson.M{idField: key}).Decode(&raw)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return model.Document{}, fmt.Errorf("%s/%s: %w", c.Name(), key, store.ErrNotFound)
	}
	if err != nil {
		return model.Document{}, err
	}
	return toDocument(raw), nil
}

func (c *collection) QueryByExample(ctx context.Context, example model.Fields) ([]model.Document, error) {
	if err := store.CheckExample(example); err != nil {
		return nil, err
	}
	filter := bson.M{}
	for name, v := range example {
		filter[name] = v
	}
	return c.find(ctx, filter)
}

func (c *collection) All(ctx context.Context) ([]model.Document, error) {
	return c.find(ctx, bson.M{})
}

func (c *collection) find(ctx context.Context, filter bson.M) ([]model.Document, error) {
	cur, err := c.col.Find(ctx, filter, options.Find().SetSort(bson.D{{Key: idField, Value: 1}}))
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var docs []model.Document
	for cur.Next(ctx) {
		var raw bson.M
		if err := cur.Decode(&raw); err != nil {
			return nil, err
		}
		docs = append(docs, toDocument(raw))
	}
	return docs, cur.Err()
}

func (c *collection) Insert(ctx context.Context, doc model.Document) (model.Document, error) {
	now := time.Now().UTC().Truncate(time.Millisecond)
	key := doc.Key
	if key == "" {
		key = store.NewKey()
	}
	rev := store.NewRev()
	fields := store.Payload(doc, now, now)

	if _, err := c.col.InsertOne(ctx, toBSON(key, rev, fields)); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return model.Document{}, fmt.Errorf("insert %s/%s: %w", c.Name(), key, store.ErrDuplicateKey)
		}
		return model.Document{}, fmt.Errorf("insert document: %w", err)
	}

	c.s.logger.Debug().Str("collection", c.Name()).Str("key", key).Str("rev", rev).Msg("inserted document")
	return model.Document{Key: key, Rev: rev, Fields: fields}, nil
}

func (c *collection) Replace(ctx context.Context, doc model.Document) (model.Document, error) {
	if doc.Key == "" {
		return model.Document{}, fmt.Errorf("replace %s: %w", c.Name(), store.ErrNotFound)
	}

	var prev struct {
		CreatedAt time.Time `bson:"created_at"`
	}
	err := c.col.FindOne(ctx, bson.M{idField: doc.Key},
		options.FindOne().SetProjection(bson.M{model.CreatedAtField: 1})).Decode(&prev)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return model.Document{}, fmt.Errorf("%s/%s: %w", c.Name(), doc.Key, store.ErrNotFound)
	}
	if err != nil {
		return model.Document{}, err
	}

	now := time.Now().UTC().Truncate(time.Millisecond)
	rev := store.NewRev()
	fields := store.Payload(doc, prev.CreatedAt.UTC(), now)

	res, err := c.col.ReplaceOne(ctx, bson.M{idField: doc.Key}, toBSON(doc.Key, rev, fields))
	if err != nil {
		return model.Document{}, fmt.Errorf("replace document: %w", err)
	}
	if res.MatchedCount == 0 {
		return model.Document{}, fmt.Errorf("%s/%s: %w", c.Name(), doc.Key, store.ErrNotFound)
	}

	c.s.logger.Debug().Str("collection", c.Name()).Str("key", doc.Key).Str("rev", rev).Msg("replaced document")
	return model.Document{Key: doc.Key, Rev: rev, Fields: fields}, nil
}

func (c *collection) Delete(ctx context.Context, key string) error {
	res, err := c.col.DeleteOne(ctx, bson.M{idField: key})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return fmt.Errorf("%s/%s: %w", c.Name(), key, store.ErrNotFound)
	}
	return nil
}

func toBSON(key, rev string, fields model.Fields) bson.M {
	out := bson.M{idField: key, revField: rev}
	for k, v := range fields {
		if k == idField || k == revField {
			continue
		}
		out[k] = v
	}
	return out
}

func toDocument(raw bson.M) model.Document {
	var d model.Document
	d.Key, _ = raw[idField].(string)
	d.Rev, _ = raw[revField].(string)
	d.Fields = make(model.Fields, len(raw))
	for k, v := range raw {
		if k == idField || k == revField {
			continue
		}
		d.Fields[k] = normalize(v)
	}
	return d
}

// normalize converts driver-specific decoded values into plain Go values:
// nested documents become maps, arrays become slices and datetimes become
// UTC times.
func normalize(v any) any {
	switch x := v.(type) {
	case primitive.M:
		out := make(map[string]any, len(x))
		for k, e := range x {
			out[k] = normalize(e)
		}
		return out
	case primitive.D:
		out := make(map[string]any, len(x))
		for _, e := range x {
			out[e.Key] = normalize(e.Value)
		}
		return out
	case primitive.A:
		out := make([]any, len(x))
		for i, e := range x {
			out[i] = normalize(e)
		}
		return out
	case primitive.DateTime:
		return x.Time().UTC()
	case primitive.ObjectID:
		return x.Hex()
	}
	return v
}
