package migration

import (
	"context"
	"database/sql"
	"testing"

	"github.com/pressly/goose/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"go.uber.org/zap/zaptest"
	_ "modernc.org/sqlite"

	"github.com/Additional-Code/invoicer/internal/config"
	"github.com/Additional-Code/invoicer/internal/database"
)

func newTestMigrator(t *testing.T) (*Migrator, *bun.DB) {
	t.Helper()

	sqldb, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	sqldb.SetMaxOpenConns(1)
	db := bun.NewDB(sqldb, sqlitedialect.New())
	t.Cleanup(func() { _ = db.Close() })

	cfg := config.Config{Database: config.Database{Driver: "sqlite"}}
	mig, err := New(cfg, database.Single(db), zaptest.NewLogger(t))
	require.NoError(t, err)
	return mig, db
}

func TestUpCreatesSchema(t *testing.T) {
	mig, db := newTestMigrator(t)
	ctx := context.Background()

	require.NoError(t, mig.Up(ctx))

	version, err := mig.Version(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), version)

	_, err = db.ExecContext(ctx, "INSERT INTO customers (id, name, email) VALUES ('abc', 'Lee', 'lee@example.com')")
	require.NoError(t, err)
	_, err = db.ExecContext(ctx, "INSERT INTO invoices (id, customer_id, amount, status, date) VALUES ('1', 'abc', 1250, 'pending', '2026-10-14')")
	require.NoError(t, err)
}

func TestUpIsIdempotent(t *testing.T) {
	mig, _ := newTestMigrator(t)
	ctx := context.Background()

	require.NoError(t, mig.Up(ctx))
	require.NoError(t, mig.Up(ctx))
}

func TestSchemaRejectsUnknownStatus(t *testing.T) {
	mig, db := newTestMigrator(t)
	ctx := context.Background()
	require.NoError(t, mig.Up(ctx))

	_, err := db.ExecContext(ctx, "INSERT INTO customers (id, name, email) VALUES ('abc', 'Lee', 'lee@example.com')")
	require.NoError(t, err)
	_, err = db.ExecContext(ctx, "INSERT INTO invoices (id, customer_id, amount, status, date) VALUES ('1', 'abc', 1250, 'overdue', '2026-10-14')")
	assert.Error(t, err)
}

func TestDownAllDropsTables(t *testing.T) {
	mig, db := newTestMigrator(t)
	ctx := context.Background()
	require.NoError(t, mig.Up(ctx))

	require.NoError(t, mig.Down(ctx, 0, true))

	var count int
	require.NoError(t, db.QueryRowContext(ctx, "SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name IN ('customers', 'invoices')").Scan(&count))
	assert.Zero(t, count)
}

func TestDownStepsStopsAtZero(t *testing.T) {
	mig, _ := newTestMigrator(t)
	ctx := context.Background()
	require.NoError(t, mig.Up(ctx))

	require.NoError(t, mig.Down(ctx, 5, false))

	version, err := mig.Version(ctx)
	require.NoError(t, err)
	assert.Zero(t, version)
}

func TestGooseDialect(t *testing.T) {
	for driver, want := range map[string]goose.Dialect{
		"postgres": goose.DialectPostgres,
		"pg":       goose.DialectPostgres,
		"mysql":    goose.DialectMySQL,
		"sqlite":   goose.DialectSQLite3,
		"SQLite3":  goose.DialectSQLite3,
	} {
		got, err := gooseDialect(driver)
		require.NoError(t, err, driver)
		assert.Equal(t, want, got, driver)
	}

	_, err := gooseDialect("oracle")
	assert.Error(t, err)
}
