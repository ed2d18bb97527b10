package logger_test

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/rcliao/docmap/internal/logger"
	"github.com/stretchr/testify/require"
)

func TestLog(t *testing.T) {
	buff := bytes.NewBuffer([]byte{})
	l, err := logger.New().FromWriter(buff).Make()
	require.NoError(t, err)
	require.NotNil(t, l)

	require.Equal(t, 0, buff.Len())
	l.Logger.Info().Str("collection", "books").Msg("Test")
	require.Contains(t, buff.String(), `"message":"Test"`)
	require.Contains(t, buff.String(), `"collection":"books"`)

	buff.Reset()
	l.Logger.Debug().Msg("hidden")
	require.Equal(t, 0, buff.Len())
}

func TestLogLevel(t *testing.T) {
	buff := bytes.NewBuffer([]byte{})
	l, err := logger.New().FromWriter(buff).Level("DEBUG").Make()
	require.NoError(t, err)

	l.Logger.Debug().Msg("visible")
	require.Contains(t, buff.String(), "visible")

	_, err = logger.New().Level("loud").Make()
	require.Error(t, err)
}

func TestLogConsole(t *testing.T) {
	buff := bytes.NewBuffer([]byte{})
	l, err := logger.New().FromWriter(buff).Console(true).Make()
	require.NoError(t, err)

	l.Logger.Info().Msg("hello")
	require.Contains(t, buff.String(), "hello")
	require.NotContains(t, buff.String(), `"message"`)
}

func TestLogFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "docmap.log")
	l, err := logger.New().FromPath(path).Make()
	require.NoError(t, err)

	l.Logger.Info().Msg("to file")
	require.NoError(t, l.Close())

	b, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Contains(t, string(b), "to file")
}
