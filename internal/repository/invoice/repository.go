package invoice

import (
	"context"
	"errors"

	"github.com/uptrace/bun"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/Additional-Code/invoicer/internal/database"
	"github.com/Additional-Code/invoicer/internal/entity"
)

var repoTracer = otel.Tracer("github.com/Additional-Code/invoicer/repository/invoice")

// Repository issues single-statement reads and writes against the invoices
// table. Writes never span more than one statement and carry no
// read-modify-write checks.
type Repository struct {
	writer *bun.DB
	reader *bun.DB
}

// NewRepository wires a repository backed by configured database connections.
func NewRepository(conns *database.Connections) *Repository {
	return &Repository{
		writer: conns.Writer,
		reader: conns.Reader,
	}
}

// Create inserts a new invoice row.
func (r *Repository) Create(ctx context.Context, inv *entity.Invoice) error {
	if inv == nil {
		return errors.New("nil invoice")
	}
	ctx, span := repoTracer.Start(ctx, "InvoiceRepository.Create", trace.WithAttributes(
		attribute.String("invoice.id", inv.ID),
		attribute.String("invoice.customer_id", inv.CustomerID),
	))
	defer span.End()

	_, err := r.writer.NewInsert().
		Model(inv).
		Column("id", "customer_id", "amount", "status", "date").
		Exec(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "insert failed")
	}
	return err
}

// Update overwrites customer, amount and status of the invoice with inv.ID.
// The date is left untouched. Updating a missing id affects no rows and is not
// an error.
func (r *Repository) Update(ctx context.Context, inv *entity.Invoice) (int64, error) {
	if inv == nil {
		return 0, errors.New("nil invoice")
	}
	ctx, span := repoTracer.Start(ctx, "InvoiceRepository.Update", trace.WithAttributes(attribute.String("invoice.id", inv.ID)))
	defer span.End()

	res, err := r.writer.NewUpdate().
		Model(inv).
		Column("customer_id", "amount", "status").
		Where("id = ?", inv.ID).
		Exec(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "update failed")
		return 0, err
	}
	return rowsAffected(span, res), nil
}

// Delete removes the invoice with id. Deleting a missing id affects no rows
// and is not an error.
func (r *Repository) Delete(ctx context.Context, id string) (int64, error) {
	ctx, span := repoTracer.Start(ctx, "InvoiceRepository.Delete", trace.WithAttributes(attribute.String("invoice.id", id)))
	defer span.End()

	res, err := r.writer.NewDelete().
		Model((*entity.Invoice)(nil)).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "delete failed")
		return 0, err
	}
	return rowsAffected(span, res), nil
}

// List returns the most recent invoices with their customer, newest first,
// using the read replica when available.
func (r *Repository) List(ctx context.Context, limit int) ([]entity.Invoice, error) {
	ctx, span := repoTracer.Start(ctx, "InvoiceRepository.List", trace.WithAttributes(attribute.Int("limit", limit)))
	defer span.End()

	var invoices []entity.Invoice
	q := r.reader.NewSelect().
		Model(&invoices).
		Relation("Customer").
		OrderExpr("i.date DESC").
		OrderExpr("i.id ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Scan(ctx); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "select failed")
		return nil, err
	}
	return invoices, nil
}

type resultRows interface {
	RowsAffected() (int64, error)
}

func rowsAffected(span trace.Span, res resultRows) int64 {
	n, err := res.RowsAffected()
	if err != nil {
		// Not every driver reports affected rows; the statement itself succeeded.
		return -1
	}
	span.SetAttributes(attribute.Int64("db.rows_affected", n))
	return n
}
