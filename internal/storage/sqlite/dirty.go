package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// markElementsDirty marks elements as needing re-export/re-sync, adapted
// from the teacher's MarkIssuesDirty (internal/storage/sqlite/dirty.go) to
// the Element model. Called within the same transaction as the mutation that
// dirtied them, via the execer interface so it composes with withTx.
func markElementsDirty(ctx context.Context, tx execer, elementIDs []string) error {
	if len(elementIDs) == 0 {
		return nil
	}
	now := time.Now()
	for _, id := range elementIDs {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO dirty_elements (element_id, marked_at)
			VALUES (?, ?)
			ON CONFLICT (element_id) DO UPDATE SET marked_at = excluded.marked_at
		`, id, now); err != nil {
			return fmt.Errorf("mark element %s dirty: %w", id, err)
		}
	}
	return nil
}

// GetDirtyElements returns element IDs needing export, oldest-marked first.
func (s *SQLiteStorage) GetDirtyElements(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT element_id FROM dirty_elements ORDER BY marked_at ASC`)
	if err != nil {
		return nil, wrapDBError("get dirty elements", err)
	}
	defer func() { _ = rows.Close() }()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, wrapDBError("scan dirty element row", err)
		}
		ids = append(ids, id)
	}
	return ids, wrapDBError("iterate dirty elements", rows.Err())
}

// ClearDirtyElements removes specific element IDs from the dirty set. Only
// clearing IDs the caller actually exported avoids racing against a
// concurrent write that dirties the same element again mid-export.
func (s *SQLiteStorage) ClearDirtyElements(ctx context.Context, elementIDs []string) error {
	if len(elementIDs) == 0 {
		return nil
	}
	return s.withTx(ctx, func(tx execer) error {
		for _, id := range elementIDs {
			if _, err := tx.ExecContext(ctx, `DELETE FROM dirty_elements WHERE element_id = ?`, id); err != nil {
				return fmt.Errorf("clear dirty element %s: %w", id, err)
			}
		}
		return nil
	})
}

// GetDirtyElementCount reports how many elements are pending export.
func (s *SQLiteStorage) GetDirtyElementCount(ctx context.Context) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM dirty_elements`).Scan(&count)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	return count, wrapDBError("count dirty elements", err)
}
