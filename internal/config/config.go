// Package config loads docmap settings from the environment, an optional
// .env file and command-line flags.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cast"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Backends accepted by DOCMAP_BACKEND.
const (
	BackendSQLite = "sqlite"
	BackendMongo  = "mongo"
	BackendRedis  = "redis"
)

// Config holds application configuration.
type Config struct {
	Backend string
	SQLite  SQLiteConfig
	Mongo   MongoConfig
	Redis   RedisConfig
	Log     LogConfig
}

type SQLiteConfig struct {
	Path string
}

type MongoConfig struct {
	URI      string
	Database string
	Timeout  time.Duration
}

type RedisConfig struct {
	Addr   string
	Prefix string
}

type LogConfig struct {
	Level string
	File  string
}

// flagNames maps viper keys to the CLI flags that override them.
var flagNames = map[string]string{
	"backend":        "backend",
	"db":             "db",
	"mongo_uri":      "mongo-uri",
	"mongo_database": "mongo-database",
	"redis_addr":     "redis-addr",
	"redis_prefix":   "redis-prefix",
	"log_level":      "log-level",
	"log_file":       "log-file",
}

// Load reads DOCMAP_* variables, after loading envFiles (default ".env")
// into the environment. Flags in fs that were set on the command line take
// precedence. fs may be nil.
func Load(fs *pflag.FlagSet, envFiles ...string) (*Config, error) {
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, f := range envFiles {
		_ = godotenv.Load(f)
	}

	v := viper.New()
	v.SetEnvPrefix("DOCMAP")
	v.AutomaticEnv()

	v.SetDefault("backend", BackendSQLite)
	v.SetDefault("db", defaultDBPath())
	v.SetDefault("mongo_database", "docmap")
	v.SetDefault("mongo_timeout", "10s")
	v.SetDefault("redis_addr", "localhost:6379")
	v.SetDefault("redis_prefix", "docmap:")
	v.SetDefault("log_level", "warn")

	if fs != nil {
		for key, name := range flagNames {
			if f := fs.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, err
				}
			}
		}
	}

	timeout, err := duration(v.Get("mongo_timeout"))
	if err != nil {
		return nil, fmt.Errorf("config: DOCMAP_MONGO_TIMEOUT: %w", err)
	}

	cfg := &Config{
		Backend: v.GetString("backend"),
		SQLite: SQLiteConfig{
			Path: v.GetString("db"),
		},
		Mongo: MongoConfig{
			URI:      v.GetString("mongo_uri"),
			Database: v.GetString("mongo_database"),
			Timeout:  timeout,
		},
		Redis: RedisConfig{
			Addr:   v.GetString("redis_addr"),
			Prefix: v.GetString("redis_prefix"),
		},
		Log: LogConfig{
			Level: v.GetString("log_level"),
			File:  v.GetString("log_file"),
		},
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that the selected backend is fully configured.
func (c *Config) Validate() error {
	switch c.Backend {
	case BackendSQLite:
		if c.SQLite.Path == "" {
			return fmt.Errorf("config: sqlite backend needs DOCMAP_DB")
		}
	case BackendMongo:
		if c.Mongo.URI == "" {
			return fmt.Errorf("config: mongo backend needs DOCMAP_MONGO_URI")
		}
		if c.Mongo.Timeout <= 0 {
			return fmt.Errorf("config: DOCMAP_MONGO_TIMEOUT must be positive")
		}
	case BackendRedis:
		if c.Redis.Addr == "" {
			return fmt.Errorf("config: redis backend needs DOCMAP_REDIS_ADDR")
		}
	default:
		return fmt.Errorf("config: unknown backend %q (want sqlite, mongo or redis)", c.Backend)
	}
	return nil
}

// duration reads a bare number as seconds and anything else as a Go
// duration string ("1m30s").
func duration(v any) (time.Duration, error) {
	if n, err := cast.ToInt64E(v); err == nil {
		return time.Duration(n) * time.Second, nil
	}
	return cast.ToDurationE(v)
}

func defaultDBPath() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".docmap", "docmap.db")
}
