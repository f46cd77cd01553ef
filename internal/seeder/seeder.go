package seeder

import (
	"context"
	"fmt"
	"time"

	"github.com/uptrace/bun"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/Additional-Code/invoicer/internal/database"
	"github.com/Additional-Code/invoicer/internal/entity"
)

// Module provides the Seeder to the seed command.
var Module = fx.Provide(New)

// Seeder performs database seeding for local/dev setups.
type Seeder struct {
	db     *bun.DB
	logger *zap.Logger
	now    func() time.Time
}

// New constructs a Seeder backed by the primary database connection.
func New(conns *database.Connections, logger *zap.Logger) *Seeder {
	return &Seeder{db: conns.Writer, logger: logger, now: time.Now}
}

var customers = []entity.Customer{
	{ID: "3958dc9e-712f-4377-85e9-fec4b6a6442a", Name: "Delba de Oliveira", Email: "delba@oliveira.com", ImageURL: "/customers/delba-de-oliveira.png"},
	{ID: "3958dc9e-742f-4377-85e9-fec4b6a6442a", Name: "Lee Robinson", Email: "lee@robinson.com", ImageURL: "/customers/lee-robinson.png"},
	{ID: "3958dc9e-737f-4377-85e9-fec4b6a6442a", Name: "Hector Simpson", Email: "hector@simpson.com", ImageURL: "/customers/hector-simpson.png"},
}

// Invoices seeds example customers and their invoices if they are missing.
// Rerunning it leaves existing rows untouched.
func (s *Seeder) Invoices(ctx context.Context) error {
	today := s.now().UTC()
	samples := []entity.Invoice{
		{ID: "b1a0a2f4-5a7e-4f0c-9d43-0f4d1c7e2a01", CustomerID: customers[0].ID, Amount: 15795, Status: "pending", Date: entity.DateOf(today.AddDate(0, 0, -2))},
		{ID: "b1a0a2f4-5a7e-4f0c-9d43-0f4d1c7e2a02", CustomerID: customers[1].ID, Amount: 20348, Status: "pending", Date: entity.DateOf(today.AddDate(0, 0, -7))},
		{ID: "b1a0a2f4-5a7e-4f0c-9d43-0f4d1c7e2a03", CustomerID: customers[2].ID, Amount: 3040, Status: "paid", Date: entity.DateOf(today.AddDate(0, -1, 0))},
		{ID: "b1a0a2f4-5a7e-4f0c-9d43-0f4d1c7e2a04", CustomerID: customers[1].ID, Amount: 44800, Status: "paid", Date: entity.DateOf(today.AddDate(0, -2, 0))},
	}

	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		for i := range customers {
			if err := insertMissing(ctx, tx, &customers[i], customers[i].ID); err != nil {
				return fmt.Errorf("seed customer %s: %w", customers[i].ID, err)
			}
		}
		for i := range samples {
			if err := insertMissing(ctx, tx, &samples[i], samples[i].ID); err != nil {
				return fmt.Errorf("seed invoice %s: %w", samples[i].ID, err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	if s.logger != nil {
		s.logger.Info("seeded invoices", zap.Int("customers", len(customers)), zap.Int("invoices", len(samples)))
	}
	return nil
}

// insertMissing inserts model unless a row with the same id exists. The
// existence check keeps the seeder portable across postgres, mysql and sqlite,
// which disagree on upsert syntax.
func insertMissing(ctx context.Context, tx bun.Tx, model interface{}, id string) error {
	exists, err := tx.NewSelect().Model(model).Where("id = ?", id).Exists(ctx)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}
	_, err = tx.NewInsert().Model(model).Exec(ctx)
	return err
}
