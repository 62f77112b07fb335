package db

import (
	"context"
	"database/sql"
	"errors"
)

var (
	// ErrUnavailable is transient: the caller should surface a soft error and let the user retry.
	ErrUnavailable = errors.New("store unavailable")
	// ErrCorrupt is permanent: schema mismatch or a broken file.
	ErrCorrupt = errors.New("store corrupt")
)

type Client interface {
	DB() *sql.DB
	// WriteTx runs fn inside one transaction while holding the process-wide write lease.
	WriteTx(ctx context.Context, fn func(tx *sql.Tx) error) error
	// Classify tags driver errors with ErrUnavailable or ErrCorrupt.
	Classify(err error) error
	Ping(ctx context.Context) error
	Close() error
}
