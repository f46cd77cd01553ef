package database

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/fx/fxtest"
	"go.uber.org/zap/zaptest"

	"github.com/Additional-Code/invoicer/internal/config"
)

func TestNewSharesPoolWhenReaderMatches(t *testing.T) {
	dsn := "file:" + filepath.Join(t.TempDir(), "invoicer.db")
	lc := fxtest.NewLifecycle(t)

	conns, err := New(lc, config.Config{Database: config.Database{Driver: "sqlite", WriterDSN: dsn, ReaderDSN: dsn}}, zaptest.NewLogger(t))
	require.NoError(t, err)
	assert.Same(t, conns.Writer, conns.Reader)

	lc.RequireStart()
	_, err = conns.Writer.ExecContext(context.Background(), "CREATE TABLE t (id INTEGER)")
	require.NoError(t, err)
	lc.RequireStop()
}

func TestNewOpensSeparateReader(t *testing.T) {
	dir := t.TempDir()
	lc := fxtest.NewLifecycle(t)

	conns, err := New(lc, config.Config{Database: config.Database{
		Driver:    "sqlite3",
		WriterDSN: "file:" + filepath.Join(dir, "writer.db"),
		ReaderDSN: "file:" + filepath.Join(dir, "reader.db"),
		Debug:     true,
	}}, zaptest.NewLogger(t))
	require.NoError(t, err)
	assert.NotSame(t, conns.Writer, conns.Reader)

	lc.RequireStart()
	lc.RequireStop()
}

func TestNewRejectsUnknownDriver(t *testing.T) {
	_, err := New(fxtest.NewLifecycle(t), config.Config{Database: config.Database{Driver: "oracle", WriterDSN: "x"}}, zaptest.NewLogger(t))
	assert.Error(t, err)
}

func TestOpenSQLDBRejectsEmptyDSN(t *testing.T) {
	_, err := openSQLDB("sqlite", "")
	assert.Error(t, err)
}
