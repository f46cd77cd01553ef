package migration

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/pressly/goose/v3"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/Additional-Code/invoicer/internal/config"
	"github.com/Additional-Code/invoicer/internal/database"
)

//go:embed sql/*.sql
var embedded embed.FS

// Module provides the Migrator to commands that need it.
var Module = fx.Provide(New)

// Migrator applies the customers and invoices schema with goose.
type Migrator struct {
	provider *goose.Provider
	logger   *zap.Logger
}

// New builds a goose provider over the writer connection and the embedded
// SQL files.
func New(cfg config.Config, conns *database.Connections, logger *zap.Logger) (*Migrator, error) {
	dialect, err := gooseDialect(cfg.Database.Driver)
	if err != nil {
		return nil, err
	}

	files, err := fs.Sub(embedded, "sql")
	if err != nil {
		return nil, err
	}

	provider, err := goose.NewProvider(dialect, conns.Writer.DB, files)
	if err != nil {
		return nil, fmt.Errorf("goose provider: %w", err)
	}
	return &Migrator{provider: provider, logger: logger}, nil
}

// Up applies all pending migrations.
func (m *Migrator) Up(ctx context.Context) error {
	results, err := m.provider.Up(ctx)
	if err != nil {
		if isNoMigrationErr(err) {
			m.logger.Info("no migrations to apply")
			return nil
		}
		return err
	}
	m.report(results...)
	m.logger.Info("migrations applied", zap.Int("count", len(results)))
	return nil
}

// Down rolls back migrations. Steps <= 0 defaults to 1; all=true rolls
// everything back.
func (m *Migrator) Down(ctx context.Context, steps int, all bool) error {
	if all {
		results, err := m.provider.DownTo(ctx, 0)
		if err != nil && !isNoMigrationErr(err) {
			return err
		}
		m.report(results...)
		m.logger.Info("migrations rolled back", zap.String("mode", "all"), zap.Int("count", len(results)))
		return nil
	}

	steps = max(steps, 1)
	rolled := 0
	for ; rolled < steps; rolled++ {
		result, err := m.provider.Down(ctx)
		if err != nil {
			if isNoMigrationErr(err) {
				m.logger.Info("no migrations to rollback")
				break
			}
			return err
		}
		if result == nil {
			break
		}
		m.report(result)
	}

	m.logger.Info("migrations rolled back", zap.Int("steps", rolled))
	return nil
}

// Version reports the currently applied schema version.
func (m *Migrator) Version(ctx context.Context) (int64, error) {
	return m.provider.GetDBVersion(ctx)
}

func (m *Migrator) report(results ...*goose.MigrationResult) {
	for _, r := range results {
		if r == nil || r.Source == nil {
			continue
		}
		m.logger.Info("migration",
			zap.Int64("version", r.Source.Version),
			zap.String("file", r.Source.Path),
			zap.String("direction", r.Direction),
			zap.Duration("took", r.Duration),
		)
	}
}

func gooseDialect(driver string) (goose.Dialect, error) {
	switch strings.ToLower(driver) {
	case "postgres", "pg":
		return goose.DialectPostgres, nil
	case "mysql":
		return goose.DialectMySQL, nil
	case "sqlite", "sqlite3":
		return goose.DialectSQLite3, nil
	default:
		return "", fmt.Errorf("unsupported goose dialect for driver %s", driver)
	}
}

func isNoMigrationErr(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, goose.ErrNoNextVersion) || errors.Is(err, goose.ErrNoMigrations) {
		return true
	}
	return strings.Contains(err.Error(), "no migrations")
}
