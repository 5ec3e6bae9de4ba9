package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/Rodvdev/gainz-factory-sub003/backend/logger"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
)

// slowQuery is the duration above which a query is logged at warn level.
const slowQuery = 200 * time.Millisecond

// uniqueViolation is the PostgreSQL SQLSTATE of unique constraint violations.
const uniqueViolation = "23505"

// BunStorage is the PostgreSQL implementation of StorageInterface built on bun.
type BunStorage struct {
	db *bun.DB
}

type txKey struct{}

// Connect opens a bun database over pgdriver using dsn, sizes the pool and
// pings the server. It returns an error if the server cannot be reached.
func Connect(ctx context.Context, dsn string, poolSize int) (*BunStorage, error) {
	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(dsn)))
	if poolSize > 0 {
		sqldb.SetMaxOpenConns(poolSize)
		sqldb.SetMaxIdleConns(poolSize)
	}
	sqldb.SetConnMaxLifetime(30 * time.Minute)

	db := bun.NewDB(sqldb, pgdialect.New())
	db.AddQueryHook(queryLogger{})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("error connecting to PostgreSQL: %w", err)
	}

	return &BunStorage{db: db}, nil
}

// NewBunStorage wraps an already opened bun database.
func NewBunStorage(db *bun.DB) *BunStorage {
	return &BunStorage{db: db}
}

// DB exposes the underlying bun database.
func (s *BunStorage) DB() *bun.DB {
	return s.db
}

func (s *BunStorage) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *BunStorage) Close() error {
	return s.db.Close()
}

// WithTx runs fn inside a transaction. If ctx already carries a transaction fn
// joins it, so services can compose store calls freely.
func (s *BunStorage) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := ctx.Value(txKey{}).(bun.Tx); ok {
		return fn(ctx)
	}
	return s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		return fn(context.WithValue(ctx, txKey{}, tx))
	})
}

// conn returns the transaction carried by ctx, or the database handle.
func (s *BunStorage) conn(ctx context.Context) bun.IDB {
	if tx, ok := ctx.Value(txKey{}).(bun.Tx); ok {
		return tx
	}
	return s.db
}

// wrapErr maps driver errors onto ErrNotFound and ErrConflict.
func wrapErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	var pgErr pgdriver.Error
	if errors.As(err, &pgErr) && pgErr.Field('C') == uniqueViolation {
		return fmt.Errorf("%w: %s", ErrConflict, pgErr.Field('n'))
	}
	return err
}

// affected turns a write result matching no row into ErrNotFound.
func affected(res sql.Result, err error) error {
	if err != nil {
		return wrapErr(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// withUpdatedAt appends updated_at to an explicit column list.
func withUpdatedAt(columns []string) []string {
	if len(columns) == 0 {
		return nil
	}
	return append(columns[:len(columns):len(columns)], "updated_at")
}

// queryLogger logs failed and slow queries through the structured logger.
type queryLogger struct{}

func (queryLogger) BeforeQuery(ctx context.Context, _ *bun.QueryEvent) context.Context {
	return ctx
}

func (queryLogger) AfterQuery(_ context.Context, event *bun.QueryEvent) {
	elapsed := time.Since(event.StartTime)
	switch {
	case event.Err != nil && !errors.Is(event.Err, sql.ErrNoRows):
		logger.Debug("query failed", "query", event.Query, "err", event.Err, "elapsed", elapsed)
	case elapsed > slowQuery:
		logger.Warn("slow query", "query", event.Query, "elapsed", elapsed)
	}
}
