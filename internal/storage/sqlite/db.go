// Package sqlite implements the Storage Backend (spec §4.1) on top of
// github.com/ncruces/go-sqlite3, a pure-Go, cgo-free SQLite driver built on
// wazero. Grounded on the teacher's internal/storage/sqlite package: same
// driver, same connstring/pragma conventions (internal/storage/connstring.go),
// same BEGIN IMMEDIATE + dedicated *sql.Conn transaction pattern.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"

	"github.com/stoneforge/stoneforge/internal/idgen"
	"github.com/stoneforge/stoneforge/internal/lockfile"
	"github.com/stoneforge/stoneforge/internal/storage"
)

// SQLiteStorage is the engine's embedded-database handle: one *sql.DB per
// workspace, WAL journal mode, foreign keys enforced, a single dedicated
// writer connection for BEGIN IMMEDIATE transactions (spec §4.1).
type SQLiteStorage struct {
	db       *sql.DB
	path     string
	readOnly bool
	idCache  *idgen.Cache
	lockFile *os.File

	meter             meterHooks
	pendingConfigFile string
}

// Option configures a SQLiteStorage at Open time.
type Option func(*SQLiteStorage)

// WithMeter wires an OpenTelemetry meter for transaction and blocked-cache
// instrumentation (spec's DOMAIN STACK). Storage functions correctly with the
// default no-op meter when this option is omitted.
func WithMeter(m meterHooks) Option {
	return func(s *SQLiteStorage) { s.meter = m }
}

// Open creates or opens a workspace database at path, applying the
// engine's standard pragmas (spec §4.1: WAL, NORMAL synchronous,
// foreign_keys ON, busy_timeout, in-memory temp store) and running any
// pending schema migrations (spec §4.2). path may be ":memory:" for an
// ephemeral, non-durable store used in tests.
func Open(ctx context.Context, path string, opts ...Option) (*SQLiteStorage, error) {
	var lock *os.File
	if path != ":memory:" {
		var err error
		lock, err = acquireWorkspaceLock(path)
		if err != nil {
			return nil, err
		}
	}

	dsn := path
	if path != ":memory:" {
		dsn = storage.SQLiteConnString(path, false)
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		if lock != nil {
			_ = lockfile.FlockUnlock(lock)
			_ = lock.Close()
		}
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	// A single writer connection avoids SQLITE_BUSY storms under WAL and
	// keeps the BEGIN IMMEDIATE retry loop meaningful; with the pool capped
	// at one connection, reads share that same connection.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if _, err := db.ExecContext(ctx, `
		PRAGMA journal_mode = WAL;
		PRAGMA synchronous = NORMAL;
		PRAGMA foreign_keys = ON;
		PRAGMA temp_store = MEMORY;
		PRAGMA cache_size = -2000;
	`); err != nil {
		_ = db.Close()
		releaseWorkspaceLock(lock)
		return nil, fmt.Errorf("apply pragmas: %w", err)
	}

	s := &SQLiteStorage{db: db, path: path, lockFile: lock, meter: noopMeter{}}
	for _, opt := range opts {
		opt(s)
	}

	if s.pendingConfigFile != "" {
		fc, err := LoadFileConfig(s.pendingConfigFile)
		if err != nil {
			_ = db.Close()
			releaseWorkspaceLock(lock)
			return nil, err
		}
		if overrides := fc.pragmaOverrides(); overrides != "" {
			if _, err := db.ExecContext(ctx, overrides); err != nil {
				_ = db.Close()
				releaseWorkspaceLock(lock)
				return nil, fmt.Errorf("apply config file pragmas: %w", err)
			}
		}
	}

	if _, err := applyMigrations(ctx, s.db); err != nil {
		_ = db.Close()
		releaseWorkspaceLock(lock)
		return nil, fmt.Errorf("apply migrations: %w", err)
	}

	s.idCache = idgen.NewCache(s.countLiveElements(ctx), idgen.DefaultTTL)

	return s, nil
}

// acquireWorkspaceLock takes an exclusive, non-blocking advisory lock on a
// ".lock" sidecar next to path, guarding Open() against a second process
// opening the same workspace outside of SQLite's own WAL locking (spec's
// AMBIENT STACK: "in case the store path is shared over a filesystem where
// SQLite locking primitives are unreliable").
func acquireWorkspaceLock(path string) (*os.File, error) {
	f, err := os.OpenFile(path+".lock", os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open workspace lock file: %w", err)
	}
	if err := lockfile.FlockExclusiveNonBlocking(f); err != nil {
		_ = f.Close()
		if lockfile.IsLocked(err) {
			return nil, fmt.Errorf("open workspace: %w: %s", lockfile.ErrLocked, path)
		}
		return nil, fmt.Errorf("lock workspace: %w", err)
	}
	return f, nil
}

func releaseWorkspaceLock(f *os.File) {
	if f == nil {
		return
	}
	_ = lockfile.FlockUnlock(f)
	_ = f.Close()
}

// OpenReadOnly opens an existing workspace database without applying
// migrations, for read-only tooling that must never mutate schema.
func OpenReadOnly(ctx context.Context, path string) (*SQLiteStorage, error) {
	dsn := storage.SQLiteConnString(path, true)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database read-only: %w", err)
	}
	db.SetMaxOpenConns(1)
	return &SQLiteStorage{db: db, path: path, readOnly: true, meter: noopMeter{}}, nil
}

// Close releases the underlying database handle and the workspace lock.
func (s *SQLiteStorage) Close() error {
	err := s.db.Close()
	releaseWorkspaceLock(s.lockFile)
	return err
}

// countLiveElements returns a idgen.Counter bound to this store's live
// (non-deleted) element count, feeding the adaptive ID-suffix cache.
func (s *SQLiteStorage) countLiveElements(ctx context.Context) idgen.Counter {
	return func() (int, error) {
		var n int
		err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM elements WHERE deleted_at IS NULL`).Scan(&n)
		return n, err
	}
}
