// Event Log (spec §4.9): an append-only audit trail, one row per mutation,
// never updated or deleted. events.element_id has no foreign key, so rows
// stay in place when the element they describe is hard-deleted.
// Grounded on the teacher's events table usage pattern
// ("INSERT INTO events (issue_id, event_type, actor, old_value, new_value)
// ..."), generalized from issue-only events to every Element type.
package sqlite

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/stoneforge/stoneforge/internal/types"
)

// appendEvent writes one Event Log row within the caller's transaction,
// stamping it with a fresh random correlation ID (spec's DOMAIN STACK: the
// Event Log's IDs are fully-random, not content-hash derived like element
// IDs).
func appendEvent(ctx context.Context, tx execer, elementID string, eventType types.EventType, actor string, oldValue, newValue json.RawMessage) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO events (element_id, event_type, actor, old_value, new_value, created_at, correlation_id)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, elementID, string(eventType), actor, nullableJSON(oldValue), nullableJSON(newValue), time.Now(), uuid.NewString())
	if err != nil {
		return fmt.Errorf("append event: %w", err)
	}
	return nil
}

func nullableJSON(raw json.RawMessage) any {
	if len(raw) == 0 {
		return nil
	}
	return string(raw)
}

// ListEvents queries the Event Log by element, actor, type, or time window
// (spec §4.9), newest first.
func (s *SQLiteStorage) ListEvents(ctx context.Context, filter types.EventFilter) ([]*types.Event, error) {
	var clauses []string
	var args []any

	if filter.ElementID != "" {
		clauses = append(clauses, "element_id = ?")
		args = append(args, filter.ElementID)
	}
	if filter.Actor != "" {
		clauses = append(clauses, "actor = ?")
		args = append(args, filter.Actor)
	}
	if filter.EventType != "" {
		clauses = append(clauses, "event_type = ?")
		args = append(args, string(filter.EventType))
	}
	if filter.Since != nil {
		clauses = append(clauses, "created_at >= ?")
		args = append(args, *filter.Since)
	}
	if filter.Until != nil {
		clauses = append(clauses, "created_at <= ?")
		args = append(args, *filter.Until)
	}

	query := `SELECT id, element_id, event_type, actor, old_value, new_value, created_at, correlation_id FROM events`
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	query += " ORDER BY created_at DESC, id DESC"
	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", filter.Limit)
		if filter.Offset > 0 {
			query += fmt.Sprintf(" OFFSET %d", filter.Offset)
		}
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, wrapDBError("list events", err)
	}
	defer func() { _ = rows.Close() }()

	var events []*types.Event
	for rows.Next() {
		var e types.Event
		var eventType string
		var oldValue, newValue, correlationID *string
		if err := rows.Scan(&e.ID, &e.ElementID, &eventType, &e.Actor, &oldValue, &newValue, &e.CreatedAt, &correlationID); err != nil {
			return nil, wrapDBError("scan event row", err)
		}
		e.EventType = types.EventType(eventType)
		if oldValue != nil {
			e.OldValue = json.RawMessage(*oldValue)
		}
		if newValue != nil {
			e.NewValue = json.RawMessage(*newValue)
		}
		if correlationID != nil {
			e.CorrelationID = *correlationID
		}
		events = append(events, &e)
	}
	return events, wrapDBError("iterate events", rows.Err())
}
