// Priority Service (spec §4.8): two derivations over the blocking
// sub-graph, both bounded at maxDepth=10. No teacher analog exists (the
// teacher's issue tracker has no transitive priority/complexity rollup);
// grounded on the Dependency Service's BFS shape in dependencies.go,
// adapted from cycle-search to a bounded fan-out accumulation.
package sqlite

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/stoneforge/stoneforge/internal/types"
)

// maxPriorityDepth bounds both traversals (spec §4.8: maxDepth=10).
const maxPriorityDepth = 10

// EffectivePriority is the result of the effective-priority derivation
// (spec §4.8).
type EffectivePriority struct {
	TaskID              string
	BasePriority        int
	EffectivePriority   int
	DependentInfluencers []string
	IsInfluenced        bool
}

// ComplexityBreakdown is the result of the aggregate-complexity derivation
// (spec §4.8).
type ComplexityBreakdown struct {
	TaskID             string
	BaseComplexity     int
	AggregateComplexity int
	Blockers           []string
}

// CalculateEffectivePriority computes task T's effective priority: the
// minimum of T's own priority and the priority of every task that
// transitively depends on T via BLOCKS edges (spec §4.8). Lower number is
// more urgent, so a more urgent dependent "pulls" T's effective priority
// down to match.
func (s *SQLiteStorage) CalculateEffectivePriority(ctx context.Context, taskID string) (*EffectivePriority, error) {
	base, err := s.loadTaskPayload(ctx, taskID)
	if err != nil {
		return nil, err
	}

	result := &EffectivePriority{
		TaskID:            taskID,
		BasePriority:      base.Priority,
		EffectivePriority: base.Priority,
	}

	visited := map[string]bool{taskID: true}
	frontier := []string{taskID}
	for depth := 0; depth < maxPriorityDepth && len(frontier) > 0; depth++ {
		var next []string
		for _, id := range frontier {
			dependents, err := queryDependencies(ctx, s.db, `WHERE blocker_id = ? AND type = ?`, id, string(types.Blocks))
			if err != nil {
				return nil, err
			}
			for _, dep := range dependents {
				if visited[dep.BlockedID] {
					continue
				}
				visited[dep.BlockedID] = true
				next = append(next, dep.BlockedID)

				payload, err := s.loadTaskPayload(ctx, dep.BlockedID)
				if err != nil {
					continue // dependent is not a task (or was deleted); not a priority influencer
				}
				if payload.Priority < result.EffectivePriority {
					result.EffectivePriority = payload.Priority
				}
				result.DependentInfluencers = append(result.DependentInfluencers, dep.BlockedID)
			}
		}
		frontier = next
	}

	result.IsInfluenced = result.EffectivePriority < result.BasePriority
	return result, nil
}

// CalculateEffectivePriorities is the bulk form of CalculateEffectivePriority
// (spec §4.8): it calls CalculateEffectivePriority once per ID, in input
// order, so each task gets its own traversal; no work is shared between them.
func (s *SQLiteStorage) CalculateEffectivePriorities(ctx context.Context, taskIDs []string) ([]*EffectivePriority, error) {
	results := make([]*EffectivePriority, 0, len(taskIDs))
	for _, id := range taskIDs {
		r, err := s.CalculateEffectivePriority(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("effective priority for %s: %w", id, err)
		}
		results = append(results, r)
	}
	return results, nil
}

// CalculateAggregateComplexity sums task T's complexity with the complexity
// of every task T transitively waits on via BLOCKS edges (spec §4.8),
// reporting the per-blocker breakdown.
func (s *SQLiteStorage) CalculateAggregateComplexity(ctx context.Context, taskID string) (*ComplexityBreakdown, error) {
	base, err := s.loadTaskPayload(ctx, taskID)
	if err != nil {
		return nil, err
	}

	result := &ComplexityBreakdown{
		TaskID:              taskID,
		BaseComplexity:      base.Complexity,
		AggregateComplexity: base.Complexity,
	}

	visited := map[string]bool{taskID: true}
	frontier := []string{taskID}
	for depth := 0; depth < maxPriorityDepth && len(frontier) > 0; depth++ {
		var next []string
		for _, id := range frontier {
			blockers, err := queryDependencies(ctx, s.db, `WHERE blocked_id = ? AND type = ?`, id, string(types.Blocks))
			if err != nil {
				return nil, err
			}
			for _, dep := range blockers {
				if visited[dep.BlockerID] {
					continue
				}
				visited[dep.BlockerID] = true
				next = append(next, dep.BlockerID)

				payload, err := s.loadTaskPayload(ctx, dep.BlockerID)
				if err != nil {
					continue // blocker is not a task; contributes no complexity
				}
				result.AggregateComplexity += payload.Complexity
				result.Blockers = append(result.Blockers, dep.BlockerID)
			}
		}
		frontier = next
	}

	return result, nil
}

func (s *SQLiteStorage) loadTaskPayload(ctx context.Context, taskID string) (*types.TaskPayload, error) {
	var typ, payload string
	err := s.db.QueryRowContext(ctx, `SELECT type, payload FROM elements WHERE id = ? AND deleted_at IS NULL`, taskID).
		Scan(&typ, &payload)
	if err != nil {
		return nil, wrapDBErrorf(err, "load task %s", taskID)
	}
	if types.ElementType(typ) != types.TypeTask {
		return nil, fmt.Errorf("element %s is not a task", taskID)
	}
	var p types.TaskPayload
	if err := json.Unmarshal([]byte(payload), &p); err != nil {
		return nil, fmt.Errorf("decode task payload: %w", err)
	}
	return &p, nil
}

// SortByEffectivePriority orders results by effective priority ascending,
// breaking ties by base priority ascending (spec §4.8 sorting helper).
func SortByEffectivePriority(results []*EffectivePriority) {
	sort.SliceStable(results, func(i, j int) bool {
		if results[i].EffectivePriority != results[j].EffectivePriority {
			return results[i].EffectivePriority < results[j].EffectivePriority
		}
		return results[i].BasePriority < results[j].BasePriority
	})
}
