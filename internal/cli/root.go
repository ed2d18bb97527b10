// Package cli implements the docmap CLI commands.
package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/rcliao/docmap/internal/config"
	"github.com/rcliao/docmap/internal/library"
	"github.com/rcliao/docmap/internal/logger"
	"github.com/rcliao/docmap/internal/store"
	"github.com/rcliao/docmap/internal/store/mongostore"
	"github.com/rcliao/docmap/internal/store/redisstore"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

// RootCmd is the top-level command.
var RootCmd = &cobra.Command{
	Use:   "docmap",
	Short: "Book catalog on a document store",
	Long: "A small catalog of authors, books and comments kept in a document store " +
		"(SQLite, MongoDB or Redis). Output is JSON.",
}

func init() {
	pf := RootCmd.PersistentFlags()
	pf.StringP("db", "d", "", "SQLite database path (default: $DOCMAP_DB or ~/.docmap/docmap.db)")
	pf.String("backend", "", "Store backend: sqlite, mongo or redis (default: $DOCMAP_BACKEND or sqlite)")
	pf.String("mongo-uri", "", "MongoDB connection URI ($DOCMAP_MONGO_URI)")
	pf.String("mongo-database", "", "MongoDB database ($DOCMAP_MONGO_DATABASE)")
	pf.String("redis-addr", "", "Redis address ($DOCMAP_REDIS_ADDR)")
	pf.String("redis-prefix", "", "Redis key prefix ($DOCMAP_REDIS_PREFIX)")
	pf.String("log-level", "", "Log level ($DOCMAP_LOG_LEVEL)")
	pf.String("log-file", "", "Append logs to this file instead of stderr ($DOCMAP_LOG_FILE)")
}

// session is everything one command invocation needs.
type session struct {
	cfg     *config.Config
	log     *logger.Log
	store   store.Store
	catalog *library.Catalog
}

func (s *session) Close() {
	s.store.Close()
	s.log.Close()
}

func openSession(cmd *cobra.Command) *session {
	cfg, err := config.Load(RootCmd.PersistentFlags())
	if err != nil {
		exitErr("config", err)
	}

	l, err := logger.New().FromPath(cfg.Log.File).Level(cfg.Log.Level).Console(cfg.Log.File == "").Make()
	if err != nil {
		exitErr("logger", err)
	}

	st, err := openStore(cmd.Context(), cfg, l.Logger)
	if err != nil {
		exitErr("open store", err)
	}

	cat, err := library.Open(st, library.WithLogger(l.Logger))
	if err != nil {
		st.Close()
		exitErr("open catalog", err)
	}
	return &session{cfg: cfg, log: l, store: st, catalog: cat}
}

func openStore(ctx context.Context, cfg *config.Config, log zerolog.Logger) (store.Store, error) {
	log = log.With().Str("backend", cfg.Backend).Logger()
	switch cfg.Backend {
	case config.BackendSQLite:
		return store.NewSQLiteStore(cfg.SQLite.Path, store.WithSQLiteLogger(log))
	case config.BackendMongo:
		return mongostore.Connect(ctx, cfg.Mongo.URI, cfg.Mongo.Database, cfg.Mongo.Timeout, mongostore.WithLogger(log))
	case config.BackendRedis:
		return redisstore.Connect(ctx, cfg.Redis.Addr, cfg.Redis.Prefix, redisstore.WithLogger(log))
	}
	return nil, fmt.Errorf("unknown backend %q", cfg.Backend)
}

func exitErr(msg string, err error) {
	fmt.Fprintf(os.Stderr, "error: %s: %v\n", msg, err)
	os.Exit(1)
}
