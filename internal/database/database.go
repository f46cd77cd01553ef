package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/mysqldialect"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/uptrace/bun/extra/bundebug"
	"github.com/uptrace/bun/schema"
	"go.uber.org/fx"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/Additional-Code/invoicer/internal/config"
)

const pingTimeout = 5 * time.Second

// Connections bundles writer and reader bun instances. Mutations always go
// through Writer; Reader serves the listing view and may lag behind.
type Connections struct {
	Writer *bun.DB
	Reader *bun.DB
}

// Module registers the database connections with Fx.
var Module = fx.Provide(New)

// New opens the writer pool, and a separate reader pool when the reader DSN
// differs, then pings both on start and closes them on stop.
func New(lc fx.Lifecycle, cfg config.Config, logger *zap.Logger) (*Connections, error) {
	db := cfg.Database

	writer, err := open(db, db.WriterDSN)
	if err != nil {
		return nil, fmt.Errorf("open writer: %w", err)
	}
	conns := Single(writer)

	if db.ReaderDSN != "" && db.ReaderDSN != db.WriterDSN {
		reader, err := open(db, db.ReaderDSN)
		if err != nil {
			_ = writer.Close()
			return nil, fmt.Errorf("open reader: %w", err)
		}
		conns.Reader = reader
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			if err := conns.Ping(ctx); err != nil {
				return err
			}
			logger.Info("database connected",
				zap.String("driver", db.Driver),
				zap.Bool("replica", conns.Reader != conns.Writer),
			)
			return nil
		},
		OnStop: func(context.Context) error {
			return conns.Close()
		},
	})

	return conns, nil
}

// Single wraps one bun instance as both writer and reader.
func Single(db *bun.DB) *Connections {
	return &Connections{Writer: db, Reader: db}
}

// Ping verifies both pools are reachable.
func (c *Connections) Ping(ctx context.Context) error {
	if err := ping(ctx, c.Writer); err != nil {
		return fmt.Errorf("ping writer: %w", err)
	}
	if c.Reader != c.Writer {
		if err := ping(ctx, c.Reader); err != nil {
			return fmt.Errorf("ping reader: %w", err)
		}
	}
	return nil
}

// Close releases both pools.
func (c *Connections) Close() error {
	var err error
	if e := c.Writer.Close(); e != nil {
		err = fmt.Errorf("close writer: %w", e)
	}
	if c.Reader != c.Writer {
		if e := c.Reader.Close(); e != nil {
			err = errors.Join(err, fmt.Errorf("close reader: %w", e))
		}
	}
	return err
}

func open(cfg config.Database, dsn string) (*bun.DB, error) {
	dialect, err := selectDialect(cfg.Driver)
	if err != nil {
		return nil, err
	}
	sqldb, err := openSQLDB(cfg.Driver, dsn)
	if err != nil {
		return nil, err
	}

	if cfg.MaxOpenConns > 0 {
		sqldb.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		sqldb.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.MaxConnLifetime > 0 {
		sqldb.SetConnMaxLifetime(cfg.MaxConnLifetime)
	}

	db := bun.NewDB(sqldb, dialect)
	if cfg.Debug {
		db.AddQueryHook(bundebug.NewQueryHook(bundebug.WithVerbose(true)))
	}
	return db, nil
}

func selectDialect(driver string) (schema.Dialect, error) {
	switch driver {
	case "postgres":
		return pgdialect.New(), nil
	case "mysql":
		return mysqldialect.New(), nil
	case "sqlite", "sqlite3":
		return sqlitedialect.New(), nil
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", driver)
	}
}

func openSQLDB(driver, dsn string) (*sql.DB, error) {
	if dsn == "" {
		return nil, errors.New("empty DSN")
	}

	switch driver {
	case "postgres":
		return sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(dsn))), nil
	case "mysql":
		return sql.Open("mysql", dsn)
	case "sqlite", "sqlite3":
		// modernc.org/sqlite registers itself as "sqlite".
		return sql.Open("sqlite", dsn)
	default:
		return nil, fmt.Errorf("unsupported driver: %s", driver)
	}
}

func ping(ctx context.Context, db *bun.DB) error {
	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	return db.PingContext(ctx)
}
