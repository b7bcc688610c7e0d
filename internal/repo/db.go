// Package repo contains all database access logic for the PromptGenie
// backend. Each resource has its own file with an interface and a SQLite
// implementation. No business logic lives here — only SQL and type mapping.
package repo

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/sethvargo/go-retry"
	_ "modernc.org/sqlite" // registers the "sqlite" driver
)

// db is the minimal interface satisfied by *sql.DB, *sql.Tx, and retryingDB.
// Accepting this interface instead of *sql.DB directly allows integration
// tests to pass a transaction that is rolled back after each test, giving
// free per-test isolation without any manual cleanup.
type db interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// beginner is implemented by *sql.DB but not *sql.Tx. Repo methods that need
// multi-statement atomicity start a transaction when the handle supports it
// and otherwise assume they are already inside one.
type beginner interface {
	BeginTx(ctx context.Context, opts *sql.TxOptions) (*sql.Tx, error)
}

// Open opens (creating if needed) the SQLite database at path and applies
// the pragmas the store depends on: WAL for concurrent readers during
// writes, a busy timeout so back-to-back writers queue instead of failing,
// and enforced foreign keys.
func Open(path string) (*sql.DB, error) {
	sqlDB, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("repo.Open: %w", err)
	}

	// SQLite allows one writer at a time; a small pool is plenty.
	sqlDB.SetMaxOpenConns(4)
	sqlDB.SetMaxIdleConns(2)
	sqlDB.SetConnMaxLifetime(time.Hour)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
		"PRAGMA busy_timeout=5000",
	}
	for _, pragma := range pragmas {
		if _, err := sqlDB.Exec(pragma); err != nil {
			sqlDB.Close()
			return nil, fmt.Errorf("repo.Open: exec pragma %q: %w", pragma, err)
		}
	}
	return sqlDB, nil
}

// NewRetryingDB wraps a database handle so that statements failing with a
// transient busy/locked error are retried a bounded number of times with
// fibonacci backoff before the error surfaces. Busy contention is the only
// error class the store treats as transient; everything else fails fast.
func NewRetryingDB(inner db) db {
	return retryingDB{inner: inner}
}

type retryingDB struct {
	inner db
}

// backoff returns the per-call retry policy: 3 retries starting at 50ms.
func backoff() retry.Backoff {
	return retry.WithMaxRetries(3, retry.NewFibonacci(50*time.Millisecond))
}

func (r retryingDB) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	var res sql.Result
	err := retry.Do(ctx, backoff(), func(ctx context.Context) error {
		var execErr error
		res, execErr = r.inner.ExecContext(ctx, query, args...)
		if execErr != nil && isBusy(execErr) {
			return retry.RetryableError(execErr)
		}
		return execErr
	})
	return res, err
}

func (r retryingDB) QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	var rows *sql.Rows
	err := retry.Do(ctx, backoff(), func(ctx context.Context) error {
		var queryErr error
		rows, queryErr = r.inner.QueryContext(ctx, query, args...)
		if queryErr != nil && isBusy(queryErr) {
			return retry.RetryableError(queryErr)
		}
		return queryErr
	})
	return rows, err
}

// QueryRowContext cannot retry — *sql.Row defers its error until Scan.
// The busy_timeout pragma covers single-row reads instead.
func (r retryingDB) QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row {
	return r.inner.QueryRowContext(ctx, query, args...)
}

// isBusy reports whether err is SQLite lock contention.
func isBusy(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") ||
		strings.Contains(msg, "SQLITE_LOCKED") ||
		strings.Contains(msg, "database is locked")
}

// IsUniqueViolation reports whether err is a SQLite UNIQUE constraint
// failure. The driver exposes constraint errors only through the message
// text, so this matches the way the tags.name race is detected.
func IsUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// scanner is satisfied by both *sql.Row and *sql.Rows, allowing the scan
// helpers to be reused for both QueryRow and Query calls.
type scanner interface {
	Scan(dest ...any) error
}

// timeFormat is how timestamps are stored: RFC 3339 with sub-second
// precision, always UTC.
const timeFormat = time.RFC3339Nano

func formatTime(t time.Time) string {
	return t.UTC().Format(timeFormat)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(timeFormat, s)
	if err != nil {
		// Imported rows may carry second-precision stamps.
		t, err = time.Parse(time.RFC3339, s)
	}
	return t, err
}
