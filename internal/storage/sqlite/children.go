// Hierarchical child numbering (spec §4.1: "a hierarchical child-counter
// table: getNextChildNumber(parent) atomically increments and returns").
// Grounded on internal/deps/deps.go's dot-nested child ID convention
// ("el-ab12.1" is a child of "el-ab12"); this file supplies the counter
// primitive the teacher's deps helpers never had a backing store for.
package sqlite

import (
	"context"
	"fmt"

	"github.com/stoneforge/stoneforge/internal/deps"
)

// NextChildNumber atomically increments and returns the next hierarchical
// child number for parentID, starting at 1. Callers combine it with
// parentID to mint a dot-nested child identifier (e.g. "<parentID>.<n>").
func (s *SQLiteStorage) NextChildNumber(ctx context.Context, parentID string) (int, error) {
	var n int
	err := s.withTx(ctx, func(tx execer) error {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO child_counters (parent_id, next_number) VALUES (?, 1)
			ON CONFLICT (parent_id) DO NOTHING
		`, parentID); err != nil {
			return fmt.Errorf("seed child counter: %w", err)
		}
		if err := tx.QueryRowContext(ctx, `
			SELECT next_number FROM child_counters WHERE parent_id = ?
		`, parentID).Scan(&n); err != nil {
			return fmt.Errorf("read child counter: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `
			UPDATE child_counters SET next_number = next_number + 1 WHERE parent_id = ?
		`, parentID); err != nil {
			return fmt.Errorf("bump child counter: %w", err)
		}
		return nil
	})
	return n, err
}

// ChildID mints a dot-nested hierarchical child identifier from parentID and
// a number obtained from NextChildNumber.
func ChildID(parentID string, number int) string {
	return fmt.Sprintf("%s.%d", parentID, number)
}

// IsHierarchicalChild reports whether childID is a dot-nested hierarchical
// descendant of parentID, delegating to the shared deps convention so the
// Dependency Service and any external sync adapter agree on the format.
func IsHierarchicalChild(childID, parentID string) bool {
	return deps.IsChildOf(childID, parentID)
}
