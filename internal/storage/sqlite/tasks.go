// Task status transitions (spec §4.4): the one Element mutation that isn't
// a plain payload replace, since moving a task's status can change whether
// it blocks its own dependents and must never target `blocked` directly
// (that status is derived, set only by the Blocked Cache). Grounded on the
// teacher's UpdateIssueStatus (internal/storage/sqlite/issues.go, removed —
// see DESIGN.md), which validates against a transition table before writing
// and appending a STATUS_CHANGED event in the same transaction.
package sqlite

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/stoneforge/stoneforge/internal/types"
)

// UpdateTaskStatus moves a task to a new status, validating the transition
// table (spec §4.4), then cascades the change to every direct dependent via
// the Blocked Cache (spec §4.6) within the same transaction.
func (s *SQLiteStorage) UpdateTaskStatus(ctx context.Context, taskID string, to types.TaskStatus, actor string) (*types.Element, error) {
	if to == types.StatusBlocked {
		return nil, types.NewError(types.KindValidation, "update task status",
			fmt.Errorf("blocked is a derived status and cannot be set directly"))
	}
	if !types.ValidTaskStatus(to) {
		return nil, types.NewError(types.KindValidation, "update task status", fmt.Errorf("invalid task status %q", to))
	}

	var result *types.Element
	err := s.withTx(ctx, func(tx execer) error {
		el, err := scanElement(tx.QueryRowContext(ctx, `
			SELECT id, type, payload, content_hash, created_at, updated_at, created_by, deleted_at
			FROM elements WHERE id = ? AND deleted_at IS NULL
		`, taskID))
		if err != nil {
			return wrapDBErrorf(err, "update task status %s", taskID)
		}
		if el.Type != types.TypeTask {
			return types.NewError(types.KindValidation, "update task status", fmt.Errorf("element %s is not a task", taskID))
		}

		var payload types.TaskPayload
		if err := json.Unmarshal(el.Payload, &payload); err != nil {
			return fmt.Errorf("decode task payload: %w", err)
		}

		from := payload.Status
		if !types.ValidTransition(from, to) {
			return types.NewError(types.KindInvalidTransition, "update task status",
				fmt.Errorf("%w: %s -> %s", types.ErrInvalidTransition, from, to))
		}

		oldPayload := el.Payload
		payload.Status = to
		if from == types.StatusBlocked {
			payload.PreviousStatus = ""
		}

		encoded, err := json.Marshal(payload)
		if err != nil {
			return err
		}

		el.Payload = encoded
		el.UpdatedAt = time.Now()
		if _, err := tx.ExecContext(ctx, `
			UPDATE elements SET payload = ?, updated_at = ? WHERE id = ?
		`, string(encoded), el.UpdatedAt, taskID); err != nil {
			return fmt.Errorf("update task status row: %w", err)
		}
		if from == types.StatusBlocked {
			if _, err := tx.ExecContext(ctx, `DELETE FROM blocked_cache WHERE element_id = ?`, taskID); err != nil {
				return fmt.Errorf("clear blocked cache for %s: %w", taskID, err)
			}
		}

		if err := appendEvent(ctx, tx, taskID, types.EventStatusChanged, actor, oldPayload, encoded); err != nil {
			return err
		}
		if err := markElementsDirty(ctx, tx, []string{taskID}); err != nil {
			return err
		}
		if err := onStatusChanged(ctx, tx, taskID); err != nil {
			return err
		}

		tags, err := getTags(ctx, tx, taskID)
		if err != nil {
			return err
		}
		el.Tags = tags
		result = el
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}
