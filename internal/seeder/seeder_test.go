package seeder

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"go.uber.org/zap/zaptest"
	_ "modernc.org/sqlite"

	"github.com/Additional-Code/invoicer/internal/database"
	"github.com/Additional-Code/invoicer/internal/entity"
)

func newTestSeeder(t *testing.T) (*Seeder, *bun.DB) {
	t.Helper()

	sqldb, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	sqldb.SetMaxOpenConns(1)
	db := bun.NewDB(sqldb, sqlitedialect.New())
	t.Cleanup(func() { _ = db.Close() })

	ctx := context.Background()
	_, err = db.NewCreateTable().Model((*entity.Customer)(nil)).Exec(ctx)
	require.NoError(t, err)
	_, err = db.NewCreateTable().Model((*entity.Invoice)(nil)).Exec(ctx)
	require.NoError(t, err)

	s := New(database.Single(db), zaptest.NewLogger(t))
	s.now = func() time.Time { return time.Date(2026, 10, 14, 12, 0, 0, 0, time.UTC) }
	return s, db
}

func TestInvoicesSeedsCustomersAndInvoices(t *testing.T) {
	s, db := newTestSeeder(t)
	ctx := context.Background()

	require.NoError(t, s.Invoices(ctx))

	nCustomers, err := db.NewSelect().Model((*entity.Customer)(nil)).Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, nCustomers)

	var invoices []entity.Invoice
	require.NoError(t, db.NewSelect().Model(&invoices).Order("date DESC").Scan(ctx))
	require.Len(t, invoices, 4)
	assert.Equal(t, entity.Date("2026-10-12"), invoices[0].Date)
	for _, inv := range invoices {
		assert.Contains(t, []string{"pending", "paid"}, inv.Status)
		assert.Positive(t, inv.Amount)
	}
}

func TestInvoicesIsRepeatable(t *testing.T) {
	s, db := newTestSeeder(t)
	ctx := context.Background()

	require.NoError(t, s.Invoices(ctx))
	require.NoError(t, s.Invoices(ctx))

	n, err := db.NewSelect().Model((*entity.Invoice)(nil)).Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 4, n)
}
