package types

import (
	"encoding/json"
	"time"
)

// EventType is the closed set of event types appended to the Event Log
// (spec §4.9). Grounded on the teacher's events table usage in
// storage/sqlite/queries.go ("INSERT INTO events (issue_id, event_type,
// actor, old_value, new_value) ...").
type EventType string

const (
	EventCreated           EventType = "CREATED"
	EventUpdated           EventType = "UPDATED"
	EventStatusChanged     EventType = "STATUS_CHANGED"
	EventDeleted           EventType = "DELETED"
	EventDependencyAdded   EventType = "DEPENDENCY_ADDED"
	EventDependencyRemoved EventType = "DEPENDENCY_REMOVED"
	EventGateSatisfied     EventType = "GATE_SATISFIED"
	EventApprovalRecorded  EventType = "APPROVAL_RECORDED"
)

// Event is an append-only audit row (spec §3, §4.9).
type Event struct {
	ID        int64           `json:"id"`
	ElementID string          `json:"elementId"`
	EventType EventType       `json:"eventType"`
	Actor     string          `json:"actor"`
	OldValue  json.RawMessage `json:"oldValue,omitempty"`
	NewValue  json.RawMessage `json:"newValue,omitempty"`
	CreatedAt time.Time       `json:"createdAt"`

	// CorrelationID is a random identifier distinct from the engine's
	// content-hash derived element IDs, for callers that need to reference
	// one event row from an external system without colliding with IDs
	// minted by a different workspace.
	CorrelationID string `json:"correlationId,omitempty"`
}

// EventFilter selects events for Event Log readers (spec §4.9: "by element,
// actor, type, or time window").
type EventFilter struct {
	ElementID string
	Actor     string
	EventType EventType
	Since     *time.Time
	Until     *time.Time
	Limit     int
	Offset    int
}
