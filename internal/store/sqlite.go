package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/rcliao/docmap/internal/model"
	"github.com/rs/zerolog"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// SQLiteStore implements Store using SQLite. Documents are kept as JSON
// bodies in a single table partitioned by collection name.
type SQLiteStore struct {
	db     *sql.DB
	path   string
	logger zerolog.Logger
}

// SQLiteOption configures a SQLiteStore.
type SQLiteOption func(*SQLiteStore)

// WithSQLiteLogger sets the logger for write events.
func WithSQLiteLogger(l zerolog.Logger) SQLiteOption {
	return func(s *SQLiteStore) { s.logger = l }
}

// NewSQLiteStore opens or creates a SQLite database at the given path.
func NewSQLiteStore(dbPath string, opts ...SQLiteOption) (*SQLiteStore, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create db dir: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(wal)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	s := &SQLiteStore{db: db, path: dbPath, logger: zerolog.Nop()}
	for _, o := range opts {
		o(s)
	}

	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return s, nil
}

func (s *SQLiteStore) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS documents (
		collection  TEXT NOT NULL,
		key         TEXT NOT NULL,
		rev         TEXT NOT NULL,
		body        TEXT NOT NULL,
		created_at  TEXT NOT NULL,
		updated_at  TEXT NOT NULL,
		PRIMARY KEY (collection, key)
	);
	CREATE INDEX IF NOT EXISTS idx_documents_updated ON documents(collection, updated_at DESC);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Path returns the database file path.
func (s *SQLiteStore) Path() string { return s.path }

// Collection returns the named collection.
func (s *SQLiteStore) Collection(name string) Collection {
	return &sqliteCollection{s: s, name: name}
}

// Stats returns per-collection document counts.
func (s *SQLiteStore) Stats(ctx context.Context) ([]CollectionStats, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT collection, COUNT(*) AS cnt
		FROM documents GROUP BY collection ORDER BY collection`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var stats []CollectionStats
	for rows.Next() {
		var cs CollectionStats
		if err := rows.Scan(&cs.Name, &cs.Count); err != nil {
			return nil, err
		}
		stats = append(stats, cs)
	}
	return stats, rows.Err()
}

// SizeBytes returns the size of the database file.
func (s *SQLiteStore) SizeBytes() int64 {
	if info, err := os.Stat(s.path); err == nil {
		return info.Size()
	}
	return 0
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

type sqliteCollection struct {
	s    *SQLiteStore
	name string
}

func (c *sqliteCollection) Name() string { return c.name }

func (c *sqliteCollection) LookupByKey(ctx context.Context, key string) (model.Document, error) {
	row := c.s.db.QueryRowContext(ctx,
		`SELECT key, rev, body FROM documents WHERE collection = ? AND key = ?`, c.name, key)
	doc, err := scanDocument(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Document{}, fmt.Errorf("%s/%s: %w", c.name, key, ErrNotFound)
	}
	return doc, err
}

func (c *sqliteCollection) QueryByExample(ctx context.Context, example model.Fields) ([]model.Document, error) {
	if err := CheckExample(example); err != nil {
		return nil, err
	}

	where := []string{"collection = ?"}
	args := []interface{}{c.name}

	// Sorted so the generated SQL is stable.
	names := make([]string, 0, len(example))
	for name := range example {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		path := `$."` + strings.ReplaceAll(name, `"`, `\"`) + `"`
		v := example[name]
		if v == nil {
			where = append(where, "json_extract(body, ?) IS NULL")
			args = append(args, path)
			continue
		}
		if b, ok := v.(bool); ok {
			v = 0
			if b {
				v = 1
			}
		}
		where = append(where, "json_extract(body, ?) = ?")
		args = append(args, path, v)
	}

	query := `SELECT key, rev, body FROM documents WHERE ` + strings.Join(where, " AND ") + ` ORDER BY key`
	return c.query(ctx, query, args...)
}

func (c *sqliteCollection) All(ctx context.Context) ([]model.Document, error) {
	return c.query(ctx, `SELECT key, rev, body FROM documents WHERE collection = ? ORDER BY key`, c.name)
}

func (c *sqliteCollection) Insert(ctx context.Context, doc model.Document) (model.Document, error) {
	now := time.Now().UTC()
	key := doc.Key
	if key == "" {
		key = NewKey()
	}
	rev := NewRev()
	fields := Payload(doc, now, now)

	body, err := json.Marshal(fields)
	if err != nil {
		return model.Document{}, fmt.Errorf("encode document: %w", err)
	}

	_, err = c.s.db.ExecContext(ctx,
		`INSERT INTO documents (collection, key, rev, body, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		c.name, key, rev, string(body), now.Format(time.RFC3339Nano), now.Format(time.RFC3339Nano))
	var se *sqlite.Error
	if errors.As(err, &se) && se.Code() == sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY {
		return model.Document{}, fmt.Errorf("insert %s/%s: %w", c.name, key, ErrDuplicateKey)
	}
	if err != nil {
		return model.Document{}, fmt.Errorf("insert document: %w", err)
	}

	c.s.logger.Debug().Str("collection", c.name).Str("key", key).Str("rev", rev).Msg("inserted document")
	return model.Document{Key: key, Rev: rev, Fields: fields}, nil
}

func (c *sqliteCollection) Replace(ctx context.Context, doc model.Document) (model.Document, error) {
	if doc.Key == "" {
		return model.Document{}, fmt.Errorf("replace %s: %w", c.name, ErrNotFound)
	}

	tx, err := c.s.db.BeginTx(ctx, nil)
	if err != nil {
		return model.Document{}, err
	}
	defer tx.Rollback()

	var createdAt string
	err = tx.QueryRowContext(ctx,
		`SELECT created_at FROM documents WHERE collection = ? AND key = ?`, c.name, doc.Key).Scan(&createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Document{}, fmt.Errorf("%s/%s: %w", c.name, doc.Key, ErrNotFound)
	}
	if err != nil {
		return model.Document{}, err
	}

	now := time.Now().UTC()
	created, _ := time.Parse(time.RFC3339Nano, createdAt)
	rev := NewRev()
	fields := Payload(doc, created, now)

	body, err := json.Marshal(fields)
	if err != nil {
		return model.Document{}, fmt.Errorf("encode document: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		`UPDATE documents SET rev = ?, body = ?, updated_at = ? WHERE collection = ? AND key = ?`,
		rev, string(body), now.Format(time.RFC3339Nano), c.name, doc.Key)
	if err != nil {
		return model.Document{}, fmt.Errorf("update document: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return model.Document{}, err
	}

	c.s.logger.Debug().Str("collection", c.name).Str("key", doc.Key).Str("rev", rev).Msg("replaced document")
	return model.Document{Key: doc.Key, Rev: rev, Fields: fields}, nil
}

func (c *sqliteCollection) Delete(ctx context.Context, key string) error {
	res, err := c.s.db.ExecContext(ctx,
		`DELETE FROM documents WHERE collection = ? AND key = ?`, c.name, key)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%s/%s: %w", c.name, key, ErrNotFound)
	}
	return nil
}

func (c *sqliteCollection) query(ctx context.Context, query string, args ...interface{}) ([]model.Document, error) {
	rows, err := c.s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var docs []model.Document
	for rows.Next() {
		d, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		docs = append(docs, d)
	}
	return docs, rows.Err()
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanDocument(row scanner) (model.Document, error) {
	var d model.Document
	var body string

	if err := row.Scan(&d.Key, &d.Rev, &body); err != nil {
		return d, err
	}
	if err := json.Unmarshal([]byte(body), &d.Fields); err != nil {
		return d, fmt.Errorf("decode document %s: %w", d.Key, err)
	}
	return d, nil
}
