package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/pressly/goose/v3"
	"github.com/sirupsen/logrus"
	msqlite "modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/Lina3386/moliya-bot/internal/client/db"
)

//go:embed migrations/*.sql
var migrations embed.FS

const busyTimeoutMillis = 20000

type sqliteClient struct {
	db    *sql.DB
	lease sync.Mutex
}

// New opens the ledger file and brings the schema up to date.
func New(ctx context.Context, path string, log *logrus.Logger) (db.Client, error) {
	dsn := fmt.Sprintf(
		"file:%s?_pragma=busy_timeout(%d)&_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_txlock=immediate",
		path, busyTimeoutMillis,
	)
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open db: %w", Classify(err))
	}

	if err := sqlDB.PingContext(ctx); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("failed to ping db: %w", Classify(err))
	}

	if err := migrate(ctx, sqlDB, log); err != nil {
		sqlDB.Close()
		return nil, err
	}

	return &sqliteClient{db: sqlDB}, nil
}

func migrate(ctx context.Context, sqlDB *sql.DB, log *logrus.Logger) error {
	goose.SetBaseFS(migrations)
	if log != nil {
		goose.SetLogger(log)
	} else {
		goose.SetLogger(goose.NopLogger())
	}
	if err := goose.SetDialect("sqlite3"); err != nil {
		return fmt.Errorf("failed to set goose dialect: %w", err)
	}
	if err := goose.UpContext(ctx, sqlDB, "migrations"); err != nil {
		return fmt.Errorf("failed to migrate: %w", Classify(err))
	}
	return nil
}

func (c *sqliteClient) DB() *sql.DB {
	return c.db
}

func (c *sqliteClient) WriteTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	c.lease.Lock()
	defer c.lease.Unlock()

	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return Classify(err)
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return Classify(err)
	}
	if err := tx.Commit(); err != nil {
		return Classify(err)
	}
	return nil
}

func (c *sqliteClient) Classify(err error) error {
	return Classify(err)
}

func (c *sqliteClient) Ping(ctx context.Context) error {
	return Classify(c.db.PingContext(ctx))
}

func (c *sqliteClient) Close() error {
	if c.db != nil {
		return c.db.Close()
	}
	return nil
}

// Classify tags driver errors with db.ErrUnavailable or db.ErrCorrupt.
// Errors that are neither (constraint violations, domain errors) pass through.
func Classify(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, db.ErrUnavailable) || errors.Is(err, db.ErrCorrupt) {
		return err
	}
	if errors.Is(err, sql.ErrConnDone) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", db.ErrUnavailable, err)
	}

	var se *msqlite.Error
	if errors.As(err, &se) {
		switch se.Code() & 0xff {
		case sqlite3.SQLITE_BUSY, sqlite3.SQLITE_LOCKED, sqlite3.SQLITE_IOERR,
			sqlite3.SQLITE_CANTOPEN, sqlite3.SQLITE_FULL, sqlite3.SQLITE_NOMEM,
			sqlite3.SQLITE_PROTOCOL, sqlite3.SQLITE_READONLY:
			return fmt.Errorf("%w: %v", db.ErrUnavailable, err)
		case sqlite3.SQLITE_CORRUPT, sqlite3.SQLITE_NOTADB, sqlite3.SQLITE_SCHEMA,
			sqlite3.SQLITE_FORMAT, sqlite3.SQLITE_MISMATCH:
			return fmt.Errorf("%w: %v", db.ErrCorrupt, err)
		}
	}

	msg := err.Error()
	if strings.Contains(msg, "no such table") || strings.Contains(msg, "no such column") {
		return fmt.Errorf("%w: %v", db.ErrCorrupt, err)
	}
	return err
}
