package database

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"beershop/internal/config"
	"beershop/internal/storage/database/migrations"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const (
	DialectPostgres = "postgres"
	DialectSQLite   = "sqlite"
)

// DB bundles the gorm handle with what is needed to close and migrate it.
type DB struct {
	Gorm    *gorm.DB
	SQL     *sql.DB
	Dialect string
	pool    *pgxpool.Pool
}

// Open connects to the configured database and verifies the connection.
// PostgreSQL goes through a pgx pool; gorm sits on top of it via database/sql.
func Open(ctx context.Context, cfg config.DatabaseConfig, log *slog.Logger) (*DB, error) {
	gormCfg := &gorm.Config{
		Logger: logger.New(&slogWriter{log: log}, logger.Config{
			SlowThreshold:             200 * time.Millisecond,
			LogLevel:                  logger.Warn,
			IgnoreRecordNotFoundError: true,
			ParameterizedQueries:      true,
			Colorful:                  false,
		}),
	}

	db := &DB{Dialect: cfg.Driver}
	var dialector gorm.Dialector
	switch cfg.Driver {
	case DialectPostgres:
		pool, err := pgxpool.New(ctx, cfg.DSN())
		if err != nil {
			return nil, fmt.Errorf("failed to create pgx pool: %w", err)
		}
		if err := pool.Ping(ctx); err != nil {
			pool.Close()
			return nil, fmt.Errorf("failed to ping database: %w", err)
		}
		db.pool = pool
		dialector = postgres.New(postgres.Config{Conn: stdlib.OpenDBFromPool(pool)})
	case DialectSQLite:
		dialector = sqlite.Open(cfg.DSN())
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}

	gdb, err := gorm.Open(dialector, gormCfg)
	if err != nil {
		db.closePool()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	sqlDB, err := gdb.DB()
	if err != nil {
		db.closePool()
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		_ = sqlDB.Close()
		db.closePool()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	db.Gorm = gdb
	db.SQL = sqlDB
	return db, nil
}

// RunMigrations applies the embedded goose migrations.
func (db *DB) RunMigrations(ctx context.Context) error {
	goose.SetBaseFS(migrations.Migrations)
	goose.SetLogger(goose.NopLogger())

	dialect := "pgx"
	if db.Dialect == DialectSQLite {
		dialect = "sqlite3"
	}
	if err := goose.SetDialect(dialect); err != nil {
		return fmt.Errorf("failed to set goose dialect: %w", err)
	}
	if err := goose.UpContext(ctx, db.SQL, "."); err != nil {
		return fmt.Errorf("migration error: %w", err)
	}
	return nil
}

// Ping is used by the health endpoint.
func (db *DB) Ping(ctx context.Context) error {
	return db.SQL.PingContext(ctx)
}

func (db *DB) Close() error {
	err := db.SQL.Close()
	db.closePool()
	return err
}

func (db *DB) closePool() {
	if db.pool != nil {
		db.pool.Close()
	}
}

// slogWriter routes gorm's logger output to slog.
type slogWriter struct {
	log *slog.Logger
}

func (w *slogWriter) Printf(format string, args ...interface{}) {
	if w.log == nil {
		return
	}
	msg := strings.TrimSpace(fmt.Sprintf(format, args...))
	w.log.Warn("gorm", slog.String("detail", msg))
}
