package sqlite

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stoneforge/stoneforge/internal/types"
)

// newTestStore opens an isolated on-disk store for a single test, mirroring
// the teacher's newTestStore (test_helpers.go): a private temp-dir file
// rather than ":memory:" avoids the shared-connection surprises that mode
// brings when SetMaxOpenConns(1) is in play.
func newTestStore(t *testing.T) *SQLiteStorage {
	t.Helper()

	ctx := context.Background()
	store, err := Open(ctx, t.TempDir()+"/test.db")
	if err != nil {
		t.Fatalf("open test store: %v", err)
	}
	t.Cleanup(func() {
		if err := store.Close(); err != nil {
			t.Fatalf("close test store: %v", err)
		}
	})
	return store
}

// newTestTask creates a Task element with the given title/priority/
// complexity and returns it.
func newTestTask(t *testing.T, store *SQLiteStorage, title string, priority, complexity int) *types.Element {
	t.Helper()

	payload, err := json.Marshal(types.TaskPayload{
		Title:      title,
		Status:     types.StatusOpen,
		Priority:   priority,
		Complexity: complexity,
	})
	if err != nil {
		t.Fatalf("marshal task payload: %v", err)
	}

	el := &types.Element{Type: types.TypeTask, Payload: payload}
	if err := store.CreateElement(context.Background(), el, "test-user"); err != nil {
		t.Fatalf("create task %q: %v", title, err)
	}
	return el
}

func taskStatus(t *testing.T, store *SQLiteStorage, id string) types.TaskStatus {
	t.Helper()
	el, err := store.GetElement(context.Background(), id)
	if err != nil {
		t.Fatalf("get element %s: %v", id, err)
	}
	var p types.TaskPayload
	if err := json.Unmarshal(el.Payload, &p); err != nil {
		t.Fatalf("decode task payload: %v", err)
	}
	return p.Status
}
