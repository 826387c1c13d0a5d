package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/stdlib"
	_ "github.com/mattn/go-sqlite3"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"go.uber.org/zap"
)

const (
	// DriverPgdriver selects bun's native Postgres driver.
	DriverPgdriver = "pgdriver"
	// DriverPgx selects the pgx database/sql driver.
	DriverPgx = "pgx"

	pingTimeout = 5 * time.Second
)

// Options selects and configures the storage backends.
type Options struct {
	PostgresURL    string
	PostgresDriver string
	SQLitePath     string
}

// Gateway runs canonical queries against whichever backend is live.
// Queries use bun's "?" placeholder on both backends; dialect-specific fragments
// come from Dialect.
type Gateway struct {
	runner
	db     *bun.DB
	logger *zap.Logger
}

// Open connects to Postgres when configured and reachable, otherwise falls back to
// the embedded SQLite file. The chosen backend is logged once.
func Open(ctx context.Context, opts Options, logger *zap.Logger) (*Gateway, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	if opts.PostgresURL != "" {
		db, err := openPostgres(ctx, opts)
		if err == nil {
			logger.Info("storage backend selected", zap.String("backend", string(BackendPostgres)), zap.String("driver", postgresDriver(opts)))
			return newGateway(db, BackendPostgres, logger), nil
		}
		logger.Warn("postgres unavailable, falling back to sqlite", zap.Error(err))
	} else {
		logger.Warn("postgres url not configured, using sqlite")
	}

	db, err := openSQLite(ctx, opts.SQLitePath)
	if err != nil {
		return nil, err
	}
	logger.Info("storage backend selected", zap.String("backend", string(BackendSQLite)), zap.String("path", opts.SQLitePath))
	return newGateway(db, BackendSQLite, logger), nil
}

func newGateway(db *bun.DB, backend Backend, logger *zap.Logger) *Gateway {
	return &Gateway{
		runner: runner{conn: db, dialect: Dialect{backend: backend}},
		db:     db,
		logger: logger,
	}
}

func postgresDriver(opts Options) string {
	if opts.PostgresDriver == "" {
		return DriverPgdriver
	}
	return opts.PostgresDriver
}

func openPostgres(ctx context.Context, opts Options) (*bun.DB, error) {
	var sqldb *sql.DB
	switch postgresDriver(opts) {
	case DriverPgdriver:
		sqldb = sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(opts.PostgresURL)))
	case DriverPgx:
		cfg, err := pgx.ParseConfig(opts.PostgresURL)
		if err != nil {
			return nil, fmt.Errorf("parse postgres url: %w", err)
		}
		sqldb = stdlib.OpenDB(*cfg)
	default:
		return nil, fmt.Errorf("unknown postgres driver %q", opts.PostgresDriver)
	}

	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := sqldb.PingContext(pingCtx); err != nil {
		sqldb.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return bun.NewDB(sqldb, pgdialect.New()), nil
}

func openSQLite(ctx context.Context, path string) (*bun.DB, error) {
	if path == "" {
		path = "quiz.db"
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create sqlite dir: %w", err)
		}
	}

	sqldb, err := sql.Open("sqlite3", "file:"+path+"?_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// One connection serializes writers; transactions hold it for their whole duration.
	sqldb.SetMaxOpenConns(1)
	if err := sqldb.PingContext(ctx); err != nil {
		sqldb.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}
	return bun.NewDB(sqldb, sqlitedialect.New()), nil
}

// Backend reports which backend is live.
func (g *Gateway) Backend() Backend {
	return g.dialect.backend
}

// DB exposes the underlying bun handle for migrations.
func (g *Gateway) DB() *bun.DB {
	return g.db
}

// Close releases the connection pool.
func (g *Gateway) Close() error {
	return g.db.Close()
}

// Exec runs a statement that returns no rows. Errors are returned to the caller.
func (g *Gateway) Exec(ctx context.Context, query string, args ...any) (int64, error) {
	n, err := g.exec(ctx, query, args...)
	if err != nil {
		g.logger.Error("db exec failed", zap.Error(err), zap.String("query", query))
	}
	return n, err
}

// InsertReturningID runs an INSERT (written without a RETURNING clause) and returns
// the value generated for idColumn. Errors are returned to the caller.
func (g *Gateway) InsertReturningID(ctx context.Context, query, idColumn string, args ...any) (int64, error) {
	id, err := g.insertReturningID(ctx, query, idColumn, args...)
	if err != nil {
		g.logger.Error("db insert failed", zap.Error(err), zap.String("query", query))
	}
	return id, err
}

// FetchAll scans every row into dest, a pointer to a slice. A failed read is logged
// and leaves dest empty.
func (g *Gateway) FetchAll(ctx context.Context, dest any, query string, args ...any) {
	if err := g.queryAll(ctx, dest, query, args...); err != nil {
		g.logger.Error("db fetch failed", zap.Error(err), zap.String("query", query))
	}
}

// FetchOne scans the first row into dest and reports whether a row was found.
// A failed read is logged and reported as absent.
func (g *Gateway) FetchOne(ctx context.Context, dest any, query string, args ...any) bool {
	found, err := g.queryOne(ctx, dest, query, args...)
	if err != nil {
		g.logger.Error("db fetch row failed", zap.Error(err), zap.String("query", query))
		return false
	}
	return found
}

// FetchScalar returns the first column of the first row. A failed read is logged and
// reported as absent.
func FetchScalar[T any](ctx context.Context, g *Gateway, query string, args ...any) (T, bool) {
	var v T
	found, err := g.queryOne(ctx, &v, query, args...)
	if err != nil {
		g.logger.Error("db fetch scalar failed", zap.Error(err), zap.String("query", query))
		var zero T
		return zero, false
	}
	return v, found
}

// InTx runs fn inside a transaction. Reads inside fn return their errors.
func (g *Gateway) InTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	return g.db.RunInTx(ctx, nil, func(ctx context.Context, btx bun.Tx) error {
		return fn(ctx, Tx{runner{conn: btx, dialect: g.dialect}})
	})
}

// Tx is a transaction-scoped runner. Unlike Gateway, its reads return errors.
type Tx struct {
	runner
}

// Exec runs a statement inside the transaction.
func (t Tx) Exec(ctx context.Context, query string, args ...any) (int64, error) {
	return t.exec(ctx, query, args...)
}

// QueryOne scans the first row into dest and reports whether a row was found.
func (t Tx) QueryOne(ctx context.Context, dest any, query string, args ...any) (bool, error) {
	return t.queryOne(ctx, dest, query, args...)
}

// InsertReturningID is Gateway.InsertReturningID inside the transaction.
func (t Tx) InsertReturningID(ctx context.Context, query, idColumn string, args ...any) (int64, error) {
	return t.insertReturningID(ctx, query, idColumn, args...)
}

// conn is the subset of bun.DB and bun.Tx the runner needs.
type conn interface {
	NewRaw(query string, args ...interface{}) *bun.RawQuery
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

type runner struct {
	conn    conn
	dialect Dialect
}

// Dialect returns the query fragments for the live backend.
func (r runner) Dialect() Dialect {
	return r.dialect
}

func (r runner) exec(ctx context.Context, query string, args ...any) (int64, error) {
	res, err := r.conn.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, nil
	}
	return n, nil
}

func (r runner) queryAll(ctx context.Context, dest any, query string, args ...any) error {
	return r.conn.NewRaw(query, args...).Scan(ctx, dest)
}

func (r runner) queryOne(ctx context.Context, dest any, query string, args ...any) (bool, error) {
	err := r.conn.NewRaw(query, args...).Scan(ctx, dest)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (r runner) insertReturningID(ctx context.Context, query, idColumn string, args ...any) (int64, error) {
	if r.dialect.backend == BackendPostgres {
		var id int64
		if err := r.conn.QueryRowContext(ctx, query+" RETURNING "+idColumn, args...).Scan(&id); err != nil {
			return 0, err
		}
		return id, nil
	}

	res, err := r.conn.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}
