package sqlite

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/stoneforge/stoneforge/internal/types"
)

// wrapDBError wraps a database error with operation context, converting
// sql.ErrNoRows to the engine's ErrNotFound sentinel so callers can use
// errors.Is against internal/types regardless of which storage backend
// raised the error.
func wrapDBError(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s: %w", op, types.ErrNotFound)
	}
	return fmt.Errorf("%s: %w", op, err)
}

// wrapDBErrorf wraps a database error with a formatted operation description.
func wrapDBErrorf(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	return wrapDBError(fmt.Sprintf(format, args...), err)
}

func isNotFound(err error) bool { return types.IsNotFound(err) }
func isConflict(err error) bool { return types.IsConflict(err) }
func isCycle(err error) bool    { return types.IsCycle(err) }
