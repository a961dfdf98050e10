package sqlite

import (
	"context"
	"testing"

	"github.com/stoneforge/stoneforge/internal/types"
)

// TestEffectivePriorityInfluence is spec §8 scenario S6: task T (priority 3),
// task U (priority 1), U blocked_by T via BLOCKS. effectivePriority(T) should
// report base 3, effective 1, influenced by U.
func TestEffectivePriorityInfluence(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	taskT := newTestTask(t, store, "T", 3, 1)
	taskU := newTestTask(t, store, "U", 1, 1)

	mustAddDependency(t, store, taskU.ID, taskT.ID, types.Blocks)

	result, err := store.CalculateEffectivePriority(ctx, taskT.ID)
	if err != nil {
		t.Fatalf("CalculateEffectivePriority failed: %v", err)
	}
	if result.BasePriority != 3 {
		t.Fatalf("expected base priority 3, got %d", result.BasePriority)
	}
	if result.EffectivePriority != 1 {
		t.Fatalf("expected effective priority 1, got %d", result.EffectivePriority)
	}
	if !result.IsInfluenced {
		t.Fatal("expected IsInfluenced to be true")
	}
	if len(result.DependentInfluencers) != 1 || result.DependentInfluencers[0] != taskU.ID {
		t.Fatalf("expected influencer %s, got %+v", taskU.ID, result.DependentInfluencers)
	}
}

func TestEffectivePriorityUnaffectedWithoutDependents(t *testing.T) {
	store := newTestStore(t)
	task := newTestTask(t, store, "Solo", 2, 1)

	result, err := store.CalculateEffectivePriority(context.Background(), task.ID)
	if err != nil {
		t.Fatalf("CalculateEffectivePriority failed: %v", err)
	}
	if result.IsInfluenced {
		t.Fatal("expected IsInfluenced to be false with no dependents")
	}
	if result.EffectivePriority != result.BasePriority {
		t.Fatalf("expected effective == base, got %d vs %d", result.EffectivePriority, result.BasePriority)
	}
}

func TestAggregateComplexitySumsBlockers(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	root := newTestTask(t, store, "Root", 3, 2)
	dep1 := newTestTask(t, store, "Dep1", 3, 3)
	dep2 := newTestTask(t, store, "Dep2", 3, 4)

	mustAddDependency(t, store, root.ID, dep1.ID, types.Blocks)
	mustAddDependency(t, store, root.ID, dep2.ID, types.Blocks)

	result, err := store.CalculateAggregateComplexity(ctx, root.ID)
	if err != nil {
		t.Fatalf("CalculateAggregateComplexity failed: %v", err)
	}
	if result.AggregateComplexity != 2+3+4 {
		t.Fatalf("expected aggregate complexity 9, got %d", result.AggregateComplexity)
	}
	if len(result.Blockers) != 2 {
		t.Fatalf("expected 2 blockers in breakdown, got %+v", result.Blockers)
	}
}

func TestSortByEffectivePriorityOrdersAscendingThenByBase(t *testing.T) {
	results := []*EffectivePriority{
		{TaskID: "a", BasePriority: 3, EffectivePriority: 2},
		{TaskID: "b", BasePriority: 1, EffectivePriority: 1},
		{TaskID: "c", BasePriority: 2, EffectivePriority: 1},
	}
	SortByEffectivePriority(results)

	order := []string{results[0].TaskID, results[1].TaskID, results[2].TaskID}
	want := []string{"b", "c", "a"}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("expected order %v, got %v", want, order)
		}
	}
}
