package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// execer is implemented by *sql.DB, *sql.Tx, and *sql.Conn, letting read
// helpers run unchanged whether or not they're inside a caller-managed
// transaction. Grounded on the teacher's execer interface in
// internal/storage/sqlite.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

var (
	_ execer = (*sql.DB)(nil)
	_ execer = (*sql.Tx)(nil)
	_ execer = (*sql.Conn)(nil)
)

// Isolation selects SQLite's transaction locking mode (spec §4.1:
// "transaction(fn, {isolation: deferred|immediate|exclusive})").
type Isolation string

const (
	// IsolationDeferred takes no lock until the first read or write
	// statement runs, matching SQLite's BEGIN DEFERRED.
	IsolationDeferred Isolation = "deferred"
	// IsolationImmediate takes the RESERVED write lock immediately,
	// matching SQLite's BEGIN IMMEDIATE. The default for withTx, since
	// every caller of it intends to write.
	IsolationImmediate Isolation = "immediate"
	// IsolationExclusive takes an EXCLUSIVE lock immediately, blocking
	// every other reader and writer for the duration of the transaction.
	IsolationExclusive Isolation = "exclusive"
)

func (i Isolation) beginStatement() string {
	switch i {
	case IsolationDeferred:
		return "BEGIN DEFERRED"
	case IsolationExclusive:
		return "BEGIN EXCLUSIVE"
	default:
		return "BEGIN IMMEDIATE"
	}
}

// withTx runs fn inside a BEGIN IMMEDIATE transaction, the isolation every
// internal write path wants. See withTxIsolation for the selectable form.
func (s *SQLiteStorage) withTx(ctx context.Context, fn func(tx execer) error) error {
	return s.withTxIsolation(ctx, IsolationImmediate, fn)
}

// Transaction exposes withTxIsolation as the storage backend's public
// contract (spec §4.1: "transaction(fn, {isolation: ...})").
func (s *SQLiteStorage) Transaction(ctx context.Context, isolation Isolation, fn func(tx execer) error) error {
	return s.withTxIsolation(ctx, isolation, fn)
}

// withTxIsolation runs fn inside a transaction on a dedicated connection,
// retrying with exponential backoff on SQLITE_BUSY the same way the
// teacher's writer does (internal/storage/sqlite's BEGIN IMMEDIATE +
// cenkalti/backoff pattern), so concurrent local writers never see a bare
// "database is locked" error surface to the caller. fn receives an execer
// rather than *sql.Tx: database/sql has no public API to hand back a *sql.Tx
// for a transaction already begun by a raw "BEGIN ..." statement, so every
// write inside fn goes through the same *sql.Conn directly.
func (s *SQLiteStorage) withTxIsolation(ctx context.Context, isolation Isolation, fn func(tx execer) error) error {
	if s.readOnly {
		return errors.New("sqlite: store is read-only")
	}

	start := time.Now()
	outcome := "commit"

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 5 * time.Millisecond
	b.MaxInterval = 250 * time.Millisecond
	b.MaxElapsedTime = 5 * time.Second
	bo := backoff.WithContext(b, ctx)

	err := backoff.Retry(func() error {
		err := s.runTxOnce(ctx, isolation, fn)
		if err != nil && isSQLiteBusy(err) {
			return err // retry
		}
		if err != nil {
			return backoff.Permanent(err)
		}
		return nil
	}, bo)

	if err != nil {
		outcome = "error"
	}
	s.meter.RecordTxDuration(ctx, time.Since(start).Seconds(), outcome)
	return err
}

func (s *SQLiteStorage) runTxOnce(ctx context.Context, isolation Isolation, fn func(tx execer) error) error {
	conn, err := s.db.Conn(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = conn.Close() }()

	if _, err := conn.ExecContext(ctx, isolation.beginStatement()); err != nil {
		return err
	}

	if err := fn(conn); err != nil {
		_, _ = conn.ExecContext(ctx, "ROLLBACK")
		return err
	}

	if _, err := conn.ExecContext(ctx, "COMMIT"); err != nil {
		_, _ = conn.ExecContext(ctx, "ROLLBACK")
		return err
	}
	return nil
}

// quoteSavepointName validates and double-quotes a savepoint identifier,
// rejecting anything but letters, digits, and underscores since savepoint
// names are always programmer-supplied constants, never user input.
func quoteSavepointName(name string) (string, error) {
	if name == "" {
		return "", errors.New("sqlite: empty savepoint name")
	}
	for _, r := range name {
		if r == '_' || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			continue
		}
		return "", fmt.Errorf("sqlite: invalid savepoint name %q", name)
	}
	return `"` + name + `"`, nil
}

// savepoint opens a nested rollback point inside the caller's transaction
// (spec §4.1: "Inside a transaction, savepoint(name) ... are available").
func savepoint(ctx context.Context, tx execer, name string) error {
	quoted, err := quoteSavepointName(name)
	if err != nil {
		return err
	}
	_, err = tx.ExecContext(ctx, "SAVEPOINT "+quoted)
	return err
}

// releaseSavepoint commits a savepoint into its parent transaction, keeping
// changes made since it was opened.
func releaseSavepoint(ctx context.Context, tx execer, name string) error {
	quoted, err := quoteSavepointName(name)
	if err != nil {
		return err
	}
	_, err = tx.ExecContext(ctx, "RELEASE "+quoted)
	return err
}

// rollbackToSavepoint undoes every change made since the named savepoint was
// opened, without ending the enclosing transaction.
func rollbackToSavepoint(ctx context.Context, tx execer, name string) error {
	quoted, err := quoteSavepointName(name)
	if err != nil {
		return err
	}
	_, err = tx.ExecContext(ctx, "ROLLBACK TO "+quoted)
	return err
}

// isSQLiteBusy reports whether err indicates SQLITE_BUSY/SQLITE_LOCKED,
// matching on the ncruces/go-sqlite3 driver's error text since it does not
// export a portable sentinel for this condition.
func isSQLiteBusy(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "SQLITE_LOCKED") ||
		strings.Contains(msg, "database is locked")
}
