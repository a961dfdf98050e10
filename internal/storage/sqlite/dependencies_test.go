package sqlite

import (
	"context"
	"encoding/json"
	"errors"
	"slices"
	"testing"

	"github.com/stoneforge/stoneforge/internal/types"
)

func TestAddDependencyBlocks(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	a := newTestTask(t, store, "A", 3, 1)
	b := newTestTask(t, store, "B", 3, 1)

	err := store.AddDependency(ctx, &types.Dependency{
		BlockedID: b.ID, BlockerID: a.ID, Type: types.Blocks, Actor: "test-user",
	})
	if err != nil {
		t.Fatalf("AddDependency failed: %v", err)
	}

	deps, err := store.GetDependencies(ctx, b.ID)
	if err != nil {
		t.Fatalf("GetDependencies failed: %v", err)
	}
	if len(deps) != 1 || deps[0].BlockerID != a.ID {
		t.Fatalf("expected one dependency on %s, got %+v", a.ID, deps)
	}
}

func TestAddDependencyRejectsSelfReference(t *testing.T) {
	store := newTestStore(t)
	a := newTestTask(t, store, "A", 3, 1)

	err := store.AddDependency(context.Background(), &types.Dependency{
		BlockedID: a.ID, BlockerID: a.ID, Type: types.Blocks, Actor: "test-user",
	})
	if err == nil {
		t.Fatal("expected self-reference to be rejected")
	}
}

func TestAddDependencyDetectsCycle(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	a := newTestTask(t, store, "A", 3, 1)
	b := newTestTask(t, store, "B", 3, 1)
	c := newTestTask(t, store, "C", 3, 1)

	// a depends on b, b depends on c.
	mustAddDependency(t, store, a.ID, b.ID, types.Blocks)
	mustAddDependency(t, store, b.ID, c.ID, types.Blocks)

	// c depends on a would close the cycle a->b->c->a.
	err := store.AddDependency(ctx, &types.Dependency{
		BlockedID: c.ID, BlockerID: a.ID, Type: types.Blocks, Actor: "test-user",
	})
	if !types.IsCycle(err) {
		t.Fatalf("expected cycle error, got %v", err)
	}
	var typed *types.Error
	if !errors.As(err, &typed) {
		t.Fatalf("expected *types.Error, got %T", err)
	}
	wantPath := []string{a.ID, b.ID, c.ID, c.ID}
	if !slices.Equal(typed.Path, wantPath) {
		t.Fatalf("expected cycle path %v, got %v", wantPath, typed.Path)
	}
}

func TestRelatesToNormalizesOrderingAndRejectsDuplicate(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	a := newTestTask(t, store, "A", 3, 1)
	b := newTestTask(t, store, "B", 3, 1)

	// Add with the "wrong" direction; expect normalization to the
	// lexicographically smaller ID as blocked_id.
	lo, hi := a.ID, b.ID
	if lo > hi {
		lo, hi = hi, lo
	}

	err := store.AddDependency(ctx, &types.Dependency{
		BlockedID: hi, BlockerID: lo, Type: types.RelatesTo, Actor: "test-user",
	})
	if err != nil {
		t.Fatalf("AddDependency(RELATES_TO) failed: %v", err)
	}

	dep, err := store.GetDependency(ctx, lo, hi, types.RelatesTo)
	if err != nil {
		t.Fatalf("expected normalized edge %s->%s, got error: %v", lo, hi, err)
	}
	if dep.BlockedID != lo || dep.BlockerID != hi {
		t.Fatalf("expected normalized ordering, got %+v", dep)
	}

	// Reverse-direction duplicate must be rejected.
	err = store.AddDependency(ctx, &types.Dependency{
		BlockedID: lo, BlockerID: hi, Type: types.RelatesTo, Actor: "test-user",
	})
	if err == nil {
		t.Fatal("expected duplicate relates_to in either orientation to be rejected")
	}
}

func TestAwaitsRequiresValidGateMetadata(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	a := newTestTask(t, store, "A", 3, 1)
	b := newTestTask(t, store, "B", 3, 1)

	err := store.AddDependency(ctx, &types.Dependency{
		BlockedID: a.ID, BlockerID: b.ID, Type: types.Awaits, Actor: "test-user",
	})
	if err == nil {
		t.Fatal("expected AWAITS edge without gate metadata to be rejected")
	}

	gate, _ := json.Marshal(types.GateMetadata{GateType: types.GateExternal})
	err = store.AddDependency(ctx, &types.Dependency{
		BlockedID: a.ID, BlockerID: b.ID, Type: types.Awaits, Actor: "test-user", Metadata: gate,
	})
	if err != nil {
		t.Fatalf("AddDependency(AWAITS) with valid gate metadata failed: %v", err)
	}
}

func TestAwaitsExternalGateRejectsMalformedRef(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	a := newTestTask(t, store, "A", 3, 1)
	b := newTestTask(t, store, "B", 3, 1)

	gate, _ := json.Marshal(types.GateMetadata{GateType: types.GateExternal, ExternalRef: "not-an-external-ref"})
	err := store.AddDependency(ctx, &types.Dependency{
		BlockedID: a.ID, BlockerID: b.ID, Type: types.Awaits, Actor: "test-user", Metadata: gate,
	})
	if err == nil {
		t.Fatal("expected malformed externalRef to be rejected")
	}

	gate, _ = json.Marshal(types.GateMetadata{GateType: types.GateExternal, ExternalRef: "external:jira:PROJ-123"})
	err = store.AddDependency(ctx, &types.Dependency{
		BlockedID: a.ID, BlockerID: b.ID, Type: types.Awaits, Actor: "test-user", Metadata: gate,
	})
	if err != nil {
		t.Fatalf("expected well-formed externalRef to be accepted: %v", err)
	}
}

func TestAwaitsTimerGateResolvesNaturalLanguageDeadline(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	a := newTestTask(t, store, "A", 3, 1)
	b := newTestTask(t, store, "B", 3, 1)

	gate, _ := json.Marshal(types.GateMetadata{GateType: types.GateTimer, WaitUntilText: "tomorrow at 9am"})
	dep := &types.Dependency{BlockedID: a.ID, BlockerID: b.ID, Type: types.Awaits, Actor: "test-user", Metadata: gate}
	if err := store.AddDependency(ctx, dep); err != nil {
		t.Fatalf("AddDependency: %v", err)
	}

	var stored types.GateMetadata
	if err := json.Unmarshal(dep.Metadata, &stored); err != nil {
		t.Fatalf("unmarshal stored metadata: %v", err)
	}
	if stored.WaitUntil == nil {
		t.Fatal("expected waitUntilText to be resolved into a concrete waitUntil")
	}
}

func TestAwaitsTimerGateRejectsMissingDeadline(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	a := newTestTask(t, store, "A", 3, 1)
	b := newTestTask(t, store, "B", 3, 1)

	gate, _ := json.Marshal(types.GateMetadata{GateType: types.GateTimer})
	err := store.AddDependency(ctx, &types.Dependency{
		BlockedID: a.ID, BlockerID: b.ID, Type: types.Awaits, Actor: "test-user", Metadata: gate,
	})
	if err == nil {
		t.Fatal("expected timer gate with no deadline to be rejected")
	}
}

func mustAddDependency(t *testing.T, store *SQLiteStorage, blockedID, blockerID string, depType types.DependencyType) {
	t.Helper()
	if err := store.AddDependency(context.Background(), &types.Dependency{
		BlockedID: blockedID, BlockerID: blockerID, Type: depType, Actor: "test-user",
	}); err != nil {
		t.Fatalf("AddDependency(%s, %s->%s) failed: %v", depType, blockedID, blockerID, err)
	}
}
