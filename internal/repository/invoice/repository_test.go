package invoice

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	_ "modernc.org/sqlite"

	"github.com/Additional-Code/invoicer/internal/database"
	"github.com/Additional-Code/invoicer/internal/entity"
)

func newTestRepository(t *testing.T) (*Repository, *bun.DB) {
	t.Helper()

	sqldb, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	// Every connection to :memory: is a fresh database.
	sqldb.SetMaxOpenConns(1)

	db := bun.NewDB(sqldb, sqlitedialect.New())
	t.Cleanup(func() { _ = db.Close() })

	ctx := context.Background()
	_, err = db.NewCreateTable().Model((*entity.Customer)(nil)).Exec(ctx)
	require.NoError(t, err)
	_, err = db.NewCreateTable().Model((*entity.Invoice)(nil)).Exec(ctx)
	require.NoError(t, err)

	_, err = db.NewInsert().Model(&entity.Customer{ID: "abc", Name: "Lee Robinson", Email: "lee@robinson.com"}).Exec(ctx)
	require.NoError(t, err)

	return NewRepository(database.Single(db)), db
}

func getInvoice(t *testing.T, db *bun.DB, id string) entity.Invoice {
	t.Helper()
	var inv entity.Invoice
	require.NoError(t, db.NewSelect().Model(&inv).Where("id = ?", id).Scan(context.Background()))
	return inv
}

func TestCreateInsertsRow(t *testing.T) {
	repo, db := newTestRepository(t)

	inv := &entity.Invoice{ID: "1", CustomerID: "abc", Amount: 1250, Status: "pending", Date: "2026-10-14"}
	require.NoError(t, repo.Create(context.Background(), inv))

	got := getInvoice(t, db, "1")
	assert.Equal(t, "abc", got.CustomerID)
	assert.Equal(t, int64(1250), got.Amount)
	assert.Equal(t, "pending", got.Status)
	assert.Equal(t, entity.Date("2026-10-14"), got.Date)
}

func TestCreateDuplicateIDFails(t *testing.T) {
	repo, _ := newTestRepository(t)
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, &entity.Invoice{ID: "1", CustomerID: "abc", Amount: 1, Status: "paid", Date: "2026-10-14"}))
	assert.Error(t, repo.Create(ctx, &entity.Invoice{ID: "1", CustomerID: "abc", Amount: 2, Status: "paid", Date: "2026-10-14"}))
}

func TestUpdateLeavesDateUntouched(t *testing.T) {
	repo, db := newTestRepository(t)
	ctx := context.Background()
	require.NoError(t, repo.Create(ctx, &entity.Invoice{ID: "1", CustomerID: "abc", Amount: 1250, Status: "pending", Date: "2026-01-02"}))

	n, err := repo.Update(ctx, &entity.Invoice{ID: "1", CustomerID: "abc", Amount: 500, Status: "paid", Date: "2030-12-31"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	got := getInvoice(t, db, "1")
	assert.Equal(t, int64(500), got.Amount)
	assert.Equal(t, "paid", got.Status)
	assert.Equal(t, entity.Date("2026-01-02"), got.Date)
}

func TestUpdateMissingIDAffectsNothing(t *testing.T) {
	repo, _ := newTestRepository(t)

	n, err := repo.Update(context.Background(), &entity.Invoice{ID: "missing", CustomerID: "abc", Amount: 500, Status: "paid"})
	require.NoError(t, err)
	assert.Equal(t, int64(0), n)
}

func TestDeleteIsIdempotent(t *testing.T) {
	repo, db := newTestRepository(t)
	ctx := context.Background()
	require.NoError(t, repo.Create(ctx, &entity.Invoice{ID: "1", CustomerID: "abc", Amount: 1250, Status: "pending", Date: "2026-10-14"}))

	n, err := repo.Delete(ctx, "1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	n, err = repo.Delete(ctx, "1")
	require.NoError(t, err)
	assert.Equal(t, int64(0), n)

	count, err := db.NewSelect().Model((*entity.Invoice)(nil)).Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestListNewestFirstWithCustomer(t *testing.T) {
	repo, _ := newTestRepository(t)
	ctx := context.Background()
	require.NoError(t, repo.Create(ctx, &entity.Invoice{ID: "old", CustomerID: "abc", Amount: 100, Status: "paid", Date: "2026-01-01"}))
	require.NoError(t, repo.Create(ctx, &entity.Invoice{ID: "new", CustomerID: "abc", Amount: 200, Status: "pending", Date: "2026-10-14"}))

	invoices, err := repo.List(ctx, 10)
	require.NoError(t, err)
	require.Len(t, invoices, 2)
	assert.Equal(t, "new", invoices[0].ID)
	assert.Equal(t, "old", invoices[1].ID)
	require.NotNil(t, invoices[0].Customer)
	assert.Equal(t, "Lee Robinson", invoices[0].Customer.Name)

	limited, err := repo.List(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}

func TestWriteFailuresSurface(t *testing.T) {
	repo, db := newTestRepository(t)
	require.NoError(t, db.Close())
	ctx := context.Background()

	assert.Error(t, repo.Create(ctx, &entity.Invoice{ID: "1", CustomerID: "abc", Amount: 1, Status: "paid", Date: "2026-10-14"}))
	_, err := repo.Update(ctx, &entity.Invoice{ID: "1"})
	assert.Error(t, err)
	_, err = repo.Delete(ctx, "1")
	assert.Error(t, err)
}
