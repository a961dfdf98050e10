package sqlite

import (
	"context"
	"testing"
)

func TestNextChildNumberIncrementsPerParent(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	parent := newTestTask(t, store, "Parent", 3, 1)

	first, err := store.NextChildNumber(ctx, parent.ID)
	if err != nil {
		t.Fatalf("NextChildNumber failed: %v", err)
	}
	if first != 1 {
		t.Fatalf("expected first child number 1, got %d", first)
	}

	second, err := store.NextChildNumber(ctx, parent.ID)
	if err != nil {
		t.Fatalf("NextChildNumber failed: %v", err)
	}
	if second != 2 {
		t.Fatalf("expected second child number 2, got %d", second)
	}

	childID := ChildID(parent.ID, first)
	if !IsHierarchicalChild(childID, parent.ID) {
		t.Fatalf("expected %s to be a hierarchical child of %s", childID, parent.ID)
	}
}

func TestNextChildNumberIndependentPerParent(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	a := newTestTask(t, store, "A", 3, 1)
	b := newTestTask(t, store, "B", 3, 1)

	if _, err := store.NextChildNumber(ctx, a.ID); err != nil {
		t.Fatalf("NextChildNumber(a) failed: %v", err)
	}
	n, err := store.NextChildNumber(ctx, b.ID)
	if err != nil {
		t.Fatalf("NextChildNumber(b) failed: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected independent counters, b's first number to be 1, got %d", n)
	}
}
