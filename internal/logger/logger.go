// Package logger builds the zerolog logger shared by the CLI and the
// storage and mapping layers.
package logger

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
)

const permission = 0o664

// Build collects logger settings. The zero value writes JSON at info level
// to stderr.
type Build struct {
	writer  io.Writer
	path    string
	level   string
	console bool
}

// Log is a built logger together with the file it writes to, if any.
type Log struct {
	File   *os.File
	Logger zerolog.Logger
}

// New starts a logger build.
func New() *Build {
	return &Build{}
}

// FromPath appends log lines to the file at path.
func (b *Build) FromPath(path string) *Build {
	b.path = path
	return b
}

// FromWriter writes log lines to w.
func (b *Build) FromWriter(w io.Writer) *Build {
	b.writer = w
	return b
}

// Level sets the minimum level by name ("debug", "info", "warn", ...).
// An empty name keeps the default.
func (b *Build) Level(name string) *Build {
	b.level = name
	return b
}

// Console switches to zerolog's human-readable console format.
func (b *Build) Console(on bool) *Build {
	b.console = on
	return b
}

// Make builds the logger. A file path takes precedence over a writer.
func (b *Build) Make() (*Log, error) {
	level := zerolog.InfoLevel
	if b.level != "" {
		l, err := zerolog.ParseLevel(strings.ToLower(b.level))
		if err != nil {
			return nil, fmt.Errorf("log level %q: %w", b.level, err)
		}
		level = l
	}

	out := &Log{}
	var w io.Writer = os.Stderr
	if b.writer != nil {
		w = b.writer
	}
	if b.path != "" {
		f, err := os.OpenFile(b.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, permission)
		if err != nil {
			return nil, err
		}
		out.File = f
		w = zerolog.SyncWriter(f)
	}
	if b.console {
		w = zerolog.ConsoleWriter{Out: w, NoColor: out.File != nil}
	}

	out.Logger = zerolog.New(w).Level(level).With().Timestamp().Logger()
	return out, nil
}

// Close closes the log file, if one was opened.
func (l *Log) Close() error {
	if l.File == nil {
		return nil
	}
	return l.File.Close()
}
