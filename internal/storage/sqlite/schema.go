package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
)

// migration is one versioned schema step (spec §4.2: "schema changes are
// versioned migrations, each with an up and down body, tracked in a
// schema_version marker table"). Grounded on the richest schema found in the
// retrieved pack (other_examples' internal/storage/sqlite/schema.go: issues,
// dependencies, labels, events, config, metadata, dirty_issues, child_counters),
// restructured around the Element sum type instead of a flat issues table,
// and on the teacher's idempotent-statement migration style.
type migration struct {
	version     int
	description string
	up          string
	down        string
}

var migrations = []migration{
	{
		version:     1,
		description: "core element, dependency, and event tables",
		up: `
CREATE TABLE IF NOT EXISTS elements (
	id TEXT PRIMARY KEY,
	type TEXT NOT NULL,
	payload TEXT NOT NULL,
	content_hash TEXT NOT NULL,
	created_at DATETIME NOT NULL,
	updated_at DATETIME NOT NULL,
	created_by TEXT NOT NULL,
	deleted_at DATETIME
);

CREATE INDEX IF NOT EXISTS idx_elements_type ON elements(type);
CREATE INDEX IF NOT EXISTS idx_elements_deleted_at ON elements(deleted_at);
CREATE INDEX IF NOT EXISTS idx_elements_created_by ON elements(created_by);
CREATE INDEX IF NOT EXISTS idx_elements_content_hash ON elements(content_hash);

CREATE TABLE IF NOT EXISTS tags (
	element_id TEXT NOT NULL REFERENCES elements(id) ON DELETE CASCADE,
	tag TEXT NOT NULL,
	PRIMARY KEY (element_id, tag)
);

CREATE INDEX IF NOT EXISTS idx_tags_tag ON tags(tag);

CREATE TABLE IF NOT EXISTS dependencies (
	blocked_id TEXT NOT NULL REFERENCES elements(id) ON DELETE CASCADE,
	blocker_id TEXT NOT NULL REFERENCES elements(id) ON DELETE CASCADE,
	type TEXT NOT NULL,
	actor TEXT NOT NULL,
	metadata TEXT,
	created_at DATETIME NOT NULL,
	PRIMARY KEY (blocked_id, blocker_id, type),
	CHECK (blocked_id != blocker_id)
);

CREATE INDEX IF NOT EXISTS idx_dependencies_blocker ON dependencies(blocker_id);
CREATE INDEX IF NOT EXISTS idx_dependencies_type ON dependencies(type);

CREATE TABLE IF NOT EXISTS events (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	element_id TEXT NOT NULL,
	event_type TEXT NOT NULL,
	actor TEXT NOT NULL,
	old_value TEXT,
	new_value TEXT,
	created_at DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_events_element_id ON events(element_id);
CREATE INDEX IF NOT EXISTS idx_events_actor ON events(actor);
CREATE INDEX IF NOT EXISTS idx_events_created_at ON events(created_at);

CREATE TABLE IF NOT EXISTS config (
	key TEXT PRIMARY KEY,
	value TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS metadata (
	key TEXT PRIMARY KEY,
	value TEXT NOT NULL
);
`,
		down: `
DROP TABLE IF EXISTS metadata;
DROP TABLE IF EXISTS config;
DROP TABLE IF EXISTS events;
DROP TABLE IF EXISTS dependencies;
DROP TABLE IF EXISTS tags;
DROP TABLE IF EXISTS elements;
`,
	},
	{
		version:     2,
		description: "blocked cache materialized view table",
		up: `
CREATE TABLE IF NOT EXISTS blocked_cache (
	element_id TEXT NOT NULL REFERENCES elements(id) ON DELETE CASCADE,
	blocker_id TEXT NOT NULL REFERENCES elements(id) ON DELETE CASCADE,
	reason TEXT NOT NULL,
	previous_status TEXT,
	PRIMARY KEY (element_id, blocker_id)
);

CREATE INDEX IF NOT EXISTS idx_blocked_cache_blocker ON blocked_cache(blocker_id);
`,
		down: `DROP TABLE IF EXISTS blocked_cache;`,
	},
	{
		version:     3,
		description: "document version history",
		up: `
CREATE TABLE IF NOT EXISTS document_versions (
	document_id TEXT NOT NULL REFERENCES elements(id) ON DELETE CASCADE,
	version INTEGER NOT NULL,
	body TEXT NOT NULL,
	created_at DATETIME NOT NULL,
	created_by TEXT NOT NULL,
	PRIMARY KEY (document_id, version)
);
`,
		down: `DROP TABLE IF EXISTS document_versions;`,
	},
	{
		version:     4,
		description: "dirty elements tracking for incremental export",
		up: `
CREATE TABLE IF NOT EXISTS dirty_elements (
	element_id TEXT PRIMARY KEY,
	marked_at DATETIME NOT NULL,
	content_hash TEXT
);
`,
		down: `DROP TABLE IF EXISTS dirty_elements;`,
	},
	{
		version:     5,
		description: "hierarchical child counters",
		up: `
CREATE TABLE IF NOT EXISTS child_counters (
	parent_id TEXT PRIMARY KEY,
	next_number INTEGER NOT NULL DEFAULT 1
);
`,
		down: `DROP TABLE IF EXISTS child_counters;`,
	},
	{
		version:     6,
		description: "event correlation ids",
		up: `ALTER TABLE events ADD COLUMN correlation_id TEXT;`,
		down: `-- SQLite cannot drop columns without a table rebuild; left in place.`,
	},
}

// tableNames lists every table a fully migrated schema owns, used by
// validateSchema to detect drift against what the migrations above actually
// create.
var tableNames = []string{
	"elements", "tags", "dependencies", "events", "config", "metadata",
	"blocked_cache", "document_versions", "dirty_elements", "child_counters",
	"schema_version",
}

// MigrationResult reports what applyMigrations did (spec §4.2 step 3):
// the version the schema started at, the version it ended at, which
// migrations actually ran this call, and whether the run succeeded.
type MigrationResult struct {
	FromVersion int
	ToVersion   int
	Applied     []int
	Success     bool
}

// applyMigrations brings db up to the latest schema version, tracking
// applied versions in schema_version (spec §4.2). Each pending migration runs
// in one transaction together with its schema_version row. The up bodies of
// migrations 1-5 use CREATE ... IF NOT EXISTS, matching the teacher's
// idempotent migration convention; migration 6's ALTER TABLE ... ADD COLUMN
// is not idempotent and fails if the column already exists.
func applyMigrations(ctx context.Context, db *sql.DB) (*MigrationResult, error) {
	if _, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_version (
			version INTEGER PRIMARY KEY,
			description TEXT NOT NULL,
			applied_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		)
	`); err != nil {
		return &MigrationResult{Success: false}, fmt.Errorf("create schema_version table: %w", err)
	}

	fromVersion, err := schemaVersion(ctx, db)
	if err != nil {
		return &MigrationResult{Success: false}, fmt.Errorf("read starting schema version: %w", err)
	}

	applied := map[int]bool{}
	rows, err := db.QueryContext(ctx, `SELECT version FROM schema_version`)
	if err != nil {
		return &MigrationResult{FromVersion: fromVersion, Success: false}, fmt.Errorf("read schema_version: %w", err)
	}
	for rows.Next() {
		var v int
		if err := rows.Scan(&v); err != nil {
			_ = rows.Close()
			return &MigrationResult{FromVersion: fromVersion, Success: false}, fmt.Errorf("scan schema_version row: %w", err)
		}
		applied[v] = true
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return &MigrationResult{FromVersion: fromVersion, Success: false}, err
	}
	_ = rows.Close()

	var appliedNow []int
	for _, m := range migrations {
		if applied[m.version] {
			continue
		}
		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			return &MigrationResult{FromVersion: fromVersion, Applied: appliedNow, Success: false}, fmt.Errorf("begin migration %d: %w", m.version, err)
		}
		if _, err := tx.ExecContext(ctx, m.up); err != nil {
			_ = tx.Rollback()
			return &MigrationResult{FromVersion: fromVersion, Applied: appliedNow, Success: false}, fmt.Errorf("apply migration %d (%s): %w", m.version, m.description, err)
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO schema_version (version, description) VALUES (?, ?)
		`, m.version, m.description); err != nil {
			_ = tx.Rollback()
			return &MigrationResult{FromVersion: fromVersion, Applied: appliedNow, Success: false}, fmt.Errorf("record migration %d: %w", m.version, err)
		}
		if err := tx.Commit(); err != nil {
			return &MigrationResult{FromVersion: fromVersion, Applied: appliedNow, Success: false}, fmt.Errorf("commit migration %d: %w", m.version, err)
		}
		appliedNow = append(appliedNow, m.version)
	}

	toVersion, err := schemaVersion(ctx, db)
	if err != nil {
		return &MigrationResult{FromVersion: fromVersion, Applied: appliedNow, Success: false}, fmt.Errorf("read ending schema version: %w", err)
	}

	return &MigrationResult{
		FromVersion: fromVersion,
		ToVersion:   toVersion,
		Applied:     appliedNow,
		Success:     true,
	}, nil
}

// schemaVersion returns the highest applied migration version, used by
// diagnostics and tests to assert the store is fully migrated.
func schemaVersion(ctx context.Context, db *sql.DB) (int, error) {
	var v sql.NullInt64
	err := db.QueryRowContext(ctx, `SELECT MAX(version) FROM schema_version`).Scan(&v)
	if err != nil {
		return 0, err
	}
	return int(v.Int64), nil
}

// SchemaValidation reports drift between the tables a fully migrated schema
// should own and what actually exists in the database (spec §4.2's
// validation pass).
type SchemaValidation struct {
	Missing []string
	Extra   []string
	OK      bool
}

// validateSchema enumerates existing tables and compares them against
// tableNames, the set every migration up through the latest version
// creates. Extra, non-sqlite-internal tables are reported too, since a
// renamed or half-dropped table is just as much drift as a missing one.
func validateSchema(ctx context.Context, db *sql.DB) (*SchemaValidation, error) {
	rows, err := db.QueryContext(ctx, `SELECT name FROM sqlite_master WHERE type = 'table' AND name NOT LIKE 'sqlite_%'`)
	if err != nil {
		return nil, fmt.Errorf("enumerate tables: %w", err)
	}
	existing := map[string]bool{}
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			_ = rows.Close()
			return nil, fmt.Errorf("scan table name: %w", err)
		}
		existing[name] = true
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return nil, err
	}
	_ = rows.Close()

	expected := map[string]bool{}
	for _, name := range tableNames {
		expected[name] = true
	}

	var missing, extra []string
	for _, name := range tableNames {
		if !existing[name] {
			missing = append(missing, name)
		}
	}
	for name := range existing {
		if !expected[name] {
			extra = append(extra, name)
		}
	}
	sort.Strings(missing)
	sort.Strings(extra)

	return &SchemaValidation{
		Missing: missing,
		Extra:   extra,
		OK:      len(missing) == 0 && len(extra) == 0,
	}, nil
}

// ValidateSchema exposes validateSchema against this store's live
// connection, for diagnostics and test assertions that the migrations above
// match what's actually on disk.
func (s *SQLiteStorage) ValidateSchema(ctx context.Context) (*SchemaValidation, error) {
	return validateSchema(ctx, s.db)
}

// Reset tears down every table this schema owns by running each migration's
// down body in reverse version order, then clears schema_version so the next
// Open re-applies every migration from scratch. Test-only: production code
// has no use for destroying a live workspace's schema.
func (s *SQLiteStorage) Reset(ctx context.Context) error {
	for i := len(migrations) - 1; i >= 0; i-- {
		m := migrations[i]
		if _, err := s.db.ExecContext(ctx, m.down); err != nil {
			return fmt.Errorf("revert migration %d (%s): %w", m.version, m.description, err)
		}
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM schema_version`); err != nil {
		return fmt.Errorf("reset schema_version: %w", err)
	}
	return nil
}
