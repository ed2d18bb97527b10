// Package redisstore implements store.Store on Redis.
//
// A document is a JSON value under <prefix><collection>:doc:<key>. Each
// collection keeps its keys in a sorted set with equal scores, so ZRANGE
// yields them in key order, and the collection names are kept in a set.
// QueryByExample scans the collection and filters client-side.
package redisstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/rcliao/docmap/internal/model"
	"github.com/rcliao/docmap/internal/store"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// DefaultPrefix is used when New is given an empty prefix.
const DefaultPrefix = "docmap:"

// Store is a Redis-backed store.Store.
type Store struct {
	client *redis.Client
	prefix string
	logger zerolog.Logger
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger for write events.
func WithLogger(l zerolog.Logger) Option {
	return func(s *Store) { s.logger = l }
}

// New returns a store on client. All keys are namespaced under prefix.
func New(client *redis.Client, prefix string, opts ...Option) *Store {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	s := &Store{client: client, prefix: prefix, logger: zerolog.Nop()}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Connect creates a client for addr and checks it with PING.
func Connect(ctx context.Context, addr, prefix string, opts ...Option) (*Store, error) {
	client := redis.NewClient(&redis.Options{Addr: addr})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return New(client, prefix, opts...), nil
}

// Path returns the server address and key prefix.
func (s *Store) Path() string { return s.client.Options().Addr + "/" + s.prefix }

func (s *Store) collectionsKey() string { return s.prefix + "collections" }

// Collection returns the named collection.
func (s *Store) Collection(name string) store.Collection {
	return &collection{s: s, name: name}
}

// Stats returns document counts for every non-empty collection.
func (s *Store) Stats(ctx context.Context) ([]store.CollectionStats, error) {
	names, err := s.client.SMembers(ctx, s.collectionsKey()).Result()
	if err != nil {
		return nil, err
	}
	sort.Strings(names)

	var stats []store.CollectionStats
	for _, name := range names {
		c := &collection{s: s, name: name}
		n, err := s.client.ZCard(ctx, c.indexKey()).Result()
		if err != nil {
			return nil, fmt.Errorf("count %s: %w", name, err)
		}
		if n > 0 {
			stats = append(stats, store.CollectionStats{Name: name, Count: int(n)})
		}
	}
	return stats, nil
}

// Close closes the client.
func (s *Store) Close() error {
	return s.client.Close()
}

// record is the stored JSON value.
type record struct {
	Rev    string       `json:"rev"`
	Fields model.Fields `json:"fields"`
}

type collection struct {
	s    *Store
	name string
}

func (c *collection) Name() string { return c.name }

func (c *collection) indexKey() string { return c.s.prefix + c.name + ":keys" }

func (c *collection) docKey(key string) string { return c.s.prefix + c.name + ":doc:" + key }

func (c *collection) LookupByKey(ctx context.Context, key string) (model.Document, error) {
	b, err := c.s.client.Get(ctx, c.docKey(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return model.Document{}, fmt.Errorf("%s/%s: %w", c.name, key, store.ErrNotFound)
	}
	if err != nil {
		return model.Document{}, err
	}
	return decode(key, b)
}

func (c *collection) QueryByExample(ctx context.Context, example model.Fields) ([]model.Document, error) {
	if err := store.CheckExample(example); err != nil {
		return nil, err
	}
	all, err := c.All(ctx)
	if err != nil {
		return nil, err
	}
	var out []model.Document
	for _, d := range all {
		if store.Matches(d.Fields, example) {
			out = append(out, d)
		}
	}
	return out, nil
}

func (c *collection) All(ctx context.Context) ([]model.Document, error) {
	keys, err := c.s.client.ZRange(ctx, c.indexKey(), 0, -1).Result()
	if err != nil {
		return nil, err
	}
	if len(keys) == 0 {
		return nil, nil
	}

	docKeys := make([]string, len(keys))
	for i, k := range keys {
		docKeys[i] = c.docKey(k)
	}
	vals, err := c.s.client.MGet(ctx, docKeys...).Result()
	if err != nil {
		return nil, err
	}

	docs := make([]model.Document, 0, len(vals))
	for i, v := range vals {
		raw, ok := v.(string)
		if !ok {
			// Index entry without a value: deleted between ZRANGE and MGET.
			continue
		}
		d, err := decode(keys[i], []byte(raw))
		if err != nil {
			return nil, err
		}
		docs = append(docs, d)
	}
	return docs, nil
}

func (c *collection) Insert(ctx context.Context, doc model.Document) (model.Document, error) {
	now := time.Now().UTC()
	key := doc.Key
	if key == "" {
		key = store.NewKey()
	}
	rev := store.NewRev()
	fields := store.Payload(doc, now, now)

	b, err := json.Marshal(record{Rev: rev, Fields: fields})
	if err != nil {
		return model.Document{}, fmt.Errorf("encode document: %w", err)
	}

	ok, err := c.s.client.SetNX(ctx, c.docKey(key), b, 0).Result()
	if err != nil {
		return model.Document{}, fmt.Errorf("insert document: %w", err)
	}
	if !ok {
		return model.Document{}, fmt.Errorf("insert %s/%s: %w", c.name, key, store.ErrDuplicateKey)
	}
	if _, err := c.s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.ZAdd(ctx, c.indexKey(), redis.Z{Score: 0, Member: key})
		pipe.SAdd(ctx, c.s.collectionsKey(), c.name)
		return nil
	}); err != nil {
		return model.Document{}, fmt.Errorf("index document: %w", err)
	}

	c.s.logger.Debug().Str("collection", c.name).Str("key", key).Str("rev", rev).Msg("inserted document")
	return model.Document{Key: key, Rev: rev, Fields: fields}, nil
}

func (c *collection) Replace(ctx context.Context, doc model.Document) (model.Document, error) {
	if doc.Key == "" {
		return model.Document{}, fmt.Errorf("replace %s: %w", c.name, store.ErrNotFound)
	}
	prev, err := c.LookupByKey(ctx, doc.Key)
	if err != nil {
		return model.Document{}, err
	}

	created, _ := time.Parse(time.RFC3339Nano, fmt.Sprint(prev.Fields[model.CreatedAtField]))
	now := time.Now().UTC()
	rev := store.NewRev()
	fields := store.Payload(doc, created, now)

	b, err := json.Marshal(record{Rev: rev, Fields: fields})
	if err != nil {
		return model.Document{}, fmt.Errorf("encode document: %w", err)
	}
	ok, err := c.s.client.SetXX(ctx, c.docKey(doc.Key), b, 0).Result()
	if err != nil {
		return model.Document{}, fmt.Errorf("replace document: %w", err)
	}
	if !ok {
		return model.Document{}, fmt.Errorf("%s/%s: %w", c.name, doc.Key, store.ErrNotFound)
	}

	c.s.logger.Debug().Str("collection", c.name).Str("key", doc.Key).Str("rev", rev).Msg("replaced document")
	return model.Document{Key: doc.Key, Rev: rev, Fields: fields}, nil
}

func (c *collection) Delete(ctx context.Context, key string) error {
	var del *redis.IntCmd
	if _, err := c.s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		del = pipe.Del(ctx, c.docKey(key))
		pipe.ZRem(ctx, c.indexKey(), key)
		return nil
	}); err != nil {
		return err
	}
	if del.Val() == 0 {
		return fmt.Errorf("%s/%s: %w", c.name, key, store.ErrNotFound)
	}
	return nil
}

func decode(key string, b []byte) (model.Document, error) {
	var r record
	if err := json.Unmarshal(b, &r); err != nil {
		return model.Document{}, fmt.Errorf("decode document %s: %w", key, err)
	}
	if r.Fields == nil {
		r.Fields = model.Fields{}
	}
	return model.Document{Key: key, Rev: r.Rev, Fields: r.Fields}, nil
}
