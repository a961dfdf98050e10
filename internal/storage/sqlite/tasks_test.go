package sqlite

import (
	"context"
	"testing"

	"github.com/stoneforge/stoneforge/internal/types"
)

func TestUpdateTaskStatusValidTransition(t *testing.T) {
	store := newTestStore(t)
	task := newTestTask(t, store, "Task", 3, 1)

	el, err := store.UpdateTaskStatus(context.Background(), task.ID, types.StatusInProgress, "test-user")
	if err != nil {
		t.Fatalf("UpdateTaskStatus failed: %v", err)
	}
	if taskStatus(t, store, el.ID) != types.StatusInProgress {
		t.Fatalf("expected status in_progress, got %s", taskStatus(t, store, el.ID))
	}
}

func TestUpdateTaskStatusRejectsInvalidTransition(t *testing.T) {
	store := newTestStore(t)
	task := newTestTask(t, store, "Task", 3, 1)

	// review is reached through in_progress (open -> review is not in the
	// table); then exercise an explicitly disallowed move: review -> backlog.
	if _, err := store.UpdateTaskStatus(context.Background(), task.ID, types.StatusInProgress, "test-user"); err != nil {
		t.Fatalf("open -> in_progress should be valid: %v", err)
	}
	if _, err := store.UpdateTaskStatus(context.Background(), task.ID, types.StatusReview, "test-user"); err != nil {
		t.Fatalf("in_progress -> review should be valid: %v", err)
	}
	if _, err := store.UpdateTaskStatus(context.Background(), task.ID, types.StatusBacklog, "test-user"); err == nil {
		t.Fatal("expected review -> backlog to be rejected")
	}
}

func TestUpdateTaskStatusRejectsDirectBlocked(t *testing.T) {
	store := newTestStore(t)
	task := newTestTask(t, store, "Task", 3, 1)

	_, err := store.UpdateTaskStatus(context.Background(), task.ID, types.StatusBlocked, "test-user")
	if err == nil {
		t.Fatal("expected direct transition to blocked to be rejected")
	}
}

func TestUpdateTaskStatusAppendsEvent(t *testing.T) {
	store := newTestStore(t)
	task := newTestTask(t, store, "Task", 3, 1)

	if _, err := store.UpdateTaskStatus(context.Background(), task.ID, types.StatusInProgress, "test-user"); err != nil {
		t.Fatalf("UpdateTaskStatus failed: %v", err)
	}

	events, err := store.ListEvents(context.Background(), types.EventFilter{ElementID: task.ID, EventType: types.EventStatusChanged})
	if err != nil {
		t.Fatalf("ListEvents failed: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("expected exactly one STATUS_CHANGED event, got %d", len(events))
	}
	if events[0].CorrelationID == "" {
		t.Fatal("expected event to carry a correlation id")
	}
}
