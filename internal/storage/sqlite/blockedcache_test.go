package sqlite

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stoneforge/stoneforge/internal/types"
)

func TestBlocksEdgeMirrorsTaskStatus(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	blocker := newTestTask(t, store, "Blocker", 3, 1)
	waiter := newTestTask(t, store, "Waiter", 3, 1)

	mustAddDependency(t, store, waiter.ID, blocker.ID, types.Blocks)

	if got := taskStatus(t, store, waiter.ID); got != types.StatusBlocked {
		t.Fatalf("expected waiter to be blocked, got %s", got)
	}

	blocked, err := store.IsBlocked(ctx, waiter.ID)
	if err != nil {
		t.Fatalf("IsBlocked failed: %v", err)
	}
	if !blocked {
		t.Fatal("expected IsBlocked to report true")
	}

	if _, err := store.UpdateTaskStatus(ctx, blocker.ID, types.StatusClosed, "test-user"); err != nil {
		t.Fatalf("close blocker failed: %v", err)
	}

	if got := taskStatus(t, store, waiter.ID); got != types.StatusOpen {
		t.Fatalf("expected waiter to be restored to open after blocker closed, got %s", got)
	}

	blocked, err = store.IsBlocked(ctx, waiter.ID)
	if err != nil {
		t.Fatalf("IsBlocked failed: %v", err)
	}
	if blocked {
		t.Fatal("expected IsBlocked to report false once blocker closes")
	}
}

func TestParentChildDoesNotBlockOnPlan(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	planPayload, _ := json.Marshal(types.PlanPayload{Title: "Roadmap", Status: types.PlanActive})
	plan := &types.Element{Type: types.TypePlan, Payload: planPayload}
	if err := store.CreateElement(ctx, plan, "test-user"); err != nil {
		t.Fatalf("create plan: %v", err)
	}

	task := newTestTask(t, store, "Child of plan", 3, 1)
	mustAddDependency(t, store, task.ID, plan.ID, types.ParentChild)

	if got := taskStatus(t, store, task.ID); got != types.StatusOpen {
		t.Fatalf("task parented under a plan should not be blocked, got %s", got)
	}
}

// TestParentChildCascadesThroughBlockedPlan is spec §8's S1 scenario: a task
// parented under a Plan must itself become blocked, with reason "parent is
// blocked", once that Plan is blocked by something else — and must clear
// once the Plan's BLOCKS edge to its blocker is removed.
func TestParentChildCascadesThroughBlockedPlan(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	planXPayload, _ := json.Marshal(types.PlanPayload{Title: "Plan X", Status: types.PlanActive})
	planX := &types.Element{Type: types.TypePlan, Payload: planXPayload}
	if err := store.CreateElement(ctx, planX, "test-user"); err != nil {
		t.Fatalf("create plan x: %v", err)
	}
	planYPayload, _ := json.Marshal(types.PlanPayload{Title: "Plan Y", Status: types.PlanActive})
	planY := &types.Element{Type: types.TypePlan, Payload: planYPayload}
	if err := store.CreateElement(ctx, planY, "test-user"); err != nil {
		t.Fatalf("create plan y: %v", err)
	}

	taskA := newTestTask(t, store, "Task A", 3, 1)
	mustAddDependency(t, store, taskA.ID, planX.ID, types.ParentChild)
	mustAddDependency(t, store, planX.ID, planY.ID, types.Blocks)

	planXBlocked, err := store.GetBlockedBy(ctx, planY.ID)
	if err != nil {
		t.Fatalf("GetBlockedBy: %v", err)
	}
	if len(planXBlocked) != 1 || planXBlocked[0].ElementID != planX.ID {
		t.Fatalf("expected plan x blocked by plan y, got %+v", planXBlocked)
	}

	rows, err := queryBlockedCache(ctx, store.db, `WHERE element_id = ?`, taskA.ID)
	if err != nil {
		t.Fatalf("queryBlockedCache: %v", err)
	}
	if len(rows) != 1 || rows[0].Reason != "parent is blocked" {
		t.Fatalf(`expected task a blocked with reason "parent is blocked", got %+v`, rows)
	}
	if got := taskStatus(t, store, taskA.ID); got != types.StatusBlocked {
		t.Fatalf("expected task a blocked, got %s", got)
	}

	if err := store.RemoveDependency(ctx, planX.ID, planY.ID, types.Blocks, "test-user"); err != nil {
		t.Fatalf("remove plan x blocks plan y: %v", err)
	}

	blocked, err := store.IsBlocked(ctx, planX.ID)
	if err != nil {
		t.Fatalf("IsBlocked(planX): %v", err)
	}
	if blocked {
		t.Fatal("expected plan x unblocked once its blocks edge to plan y is removed")
	}
	blocked, err = store.IsBlocked(ctx, taskA.ID)
	if err != nil {
		t.Fatalf("IsBlocked(taskA): %v", err)
	}
	if blocked {
		t.Fatal("expected task a unblocked once the cascade clears")
	}
	if got := taskStatus(t, store, taskA.ID); got != types.StatusOpen {
		t.Fatalf("expected task a restored to open, got %s", got)
	}
}

func TestAwaitsGateSatisfyUnblocks(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	gateOwner := newTestTask(t, store, "Gate owner", 3, 1)
	waiter := newTestTask(t, store, "Waiter", 3, 1)

	gate, _ := json.Marshal(types.GateMetadata{GateType: types.GateExternal})
	if err := store.AddDependency(ctx, &types.Dependency{
		BlockedID: waiter.ID, BlockerID: gateOwner.ID, Type: types.Awaits, Actor: "test-user", Metadata: gate,
	}); err != nil {
		t.Fatalf("AddDependency(AWAITS) failed: %v", err)
	}

	if got := taskStatus(t, store, waiter.ID); got != types.StatusBlocked {
		t.Fatalf("expected waiter blocked pending gate, got %s", got)
	}

	if err := store.SatisfyGate(ctx, waiter.ID, gateOwner.ID, "approver"); err != nil {
		t.Fatalf("SatisfyGate failed: %v", err)
	}

	if got := taskStatus(t, store, waiter.ID); got != types.StatusOpen {
		t.Fatalf("expected waiter unblocked after gate satisfied, got %s", got)
	}
}

func TestApprovalGateRequiresThreshold(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	gateOwner := newTestTask(t, store, "Gate owner", 3, 1)
	waiter := newTestTask(t, store, "Waiter", 3, 1)

	gate, _ := json.Marshal(types.GateMetadata{
		GateType:          types.GateApproval,
		RequiredApprovers: []string{"alice", "bob"},
	})
	if err := store.AddDependency(ctx, &types.Dependency{
		BlockedID: waiter.ID, BlockerID: gateOwner.ID, Type: types.Awaits, Actor: "test-user", Metadata: gate,
	}); err != nil {
		t.Fatalf("AddDependency(AWAITS) failed: %v", err)
	}

	if err := store.RecordApproval(ctx, waiter.ID, gateOwner.ID, "alice"); err != nil {
		t.Fatalf("RecordApproval failed: %v", err)
	}
	if got := taskStatus(t, store, waiter.ID); got != types.StatusBlocked {
		t.Fatalf("one of two required approvals should still block, got %s", got)
	}

	if err := store.RecordApproval(ctx, waiter.ID, gateOwner.ID, "bob"); err != nil {
		t.Fatalf("RecordApproval failed: %v", err)
	}
	if got := taskStatus(t, store, waiter.ID); got != types.StatusOpen {
		t.Fatalf("both approvals recorded should unblock, got %s", got)
	}
}

func TestRebuildMatchesIncrementalState(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	blocker := newTestTask(t, store, "Blocker", 3, 1)
	waiter := newTestTask(t, store, "Waiter", 3, 1)
	mustAddDependency(t, store, waiter.ID, blocker.ID, types.Blocks)

	before, err := store.GetAllBlocked(ctx)
	if err != nil {
		t.Fatalf("GetAllBlocked failed: %v", err)
	}

	if err := store.Rebuild(ctx); err != nil {
		t.Fatalf("Rebuild failed: %v", err)
	}

	after, err := store.GetAllBlocked(ctx)
	if err != nil {
		t.Fatalf("GetAllBlocked failed: %v", err)
	}

	if len(before) != len(after) {
		t.Fatalf("rebuild changed row count: before=%d after=%d", len(before), len(after))
	}
}

func TestTimerGateSatisfiesAfterDeadline(t *testing.T) {
	gate := types.GateMetadata{GateType: types.GateTimer}
	past := time.Now().Add(-time.Minute)
	gate.WaitUntil = &past
	if !gate.IsSatisfied(time.Now()) {
		t.Fatal("expected timer gate to be satisfied once WaitUntil has passed")
	}

	future := time.Now().Add(time.Hour)
	gate.WaitUntil = &future
	if gate.IsSatisfied(time.Now()) {
		t.Fatal("expected timer gate to be unsatisfied before WaitUntil")
	}
}
