// Dependency Service (spec §4.5): directed edges between elements, with
// RELATES_TO normalization, self-reference rejection, AWAITS/VALIDATES
// metadata requirements, and BFS cycle detection bounded at maxDepth=100.
// Grounded on the teacher's DependencyType/edge shape
// (internal/storage/dolt/dependencies.go, now removed — see DESIGN.md) and
// its recursive-reachability style, rewritten as the exact BFS algorithm
// spec §4.5 specifies (bounded depth, node-visited count, conservative
// allow on depth-limit, full cycle path on detection) rather than the
// teacher's unconditional recursive CTE.
package sqlite

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/stoneforge/stoneforge/internal/deps"
	"github.com/stoneforge/stoneforge/internal/naturaltime"
	"github.com/stoneforge/stoneforge/internal/types"
)

// maxCycleDepth bounds the BFS cycle check (spec §4.5).
const maxCycleDepth = 100

// CycleCheckResult reports the outcome of a cycle-detection BFS (spec §4.5).
type CycleCheckResult struct {
	CycleFound        bool
	CyclePath         []string // populated only when CycleFound
	NodesVisited      int
	DepthLimitReached bool
}

// AddDependency creates a directed edge (spec §4.5). Self-references are
// rejected outright. RELATES_TO edges are normalized so the
// lexicographically smaller ID is always BlockedID, and a duplicate in
// either orientation is rejected as a conflict. Blocking edges (BLOCKS,
// PARENT_CHILD, AWAITS) run cycle detection first and are rejected if a
// cycle would result.
func (s *SQLiteStorage) AddDependency(ctx context.Context, dep *types.Dependency) error {
	if !types.ValidDependencyType(dep.Type) {
		return types.NewError(types.KindValidation, "add dependency", fmt.Errorf("invalid dependency type %q", dep.Type))
	}
	if dep.BlockedID == dep.BlockerID {
		return types.NewError(types.KindValidation, "add dependency", fmt.Errorf("element cannot depend on itself"))
	}
	if err := validateDependencyMetadata(dep); err != nil {
		return types.NewError(types.KindValidation, "add dependency", err)
	}
	if err := resolveTimerDeadline(dep); err != nil {
		return types.NewError(types.KindValidation, "add dependency", err)
	}

	blockedID, blockerID := dep.BlockedID, dep.BlockerID
	if dep.Type == types.RelatesTo && blockerID < blockedID {
		blockedID, blockerID = blockerID, blockedID
	}

	return s.withTx(ctx, func(tx execer) error {
		if dep.Type == types.RelatesTo {
			var count int
			if err := tx.QueryRowContext(ctx, `
				SELECT COUNT(*) FROM dependencies
				WHERE type = ? AND ((blocked_id = ? AND blocker_id = ?) OR (blocked_id = ? AND blocker_id = ?))
			`, string(types.RelatesTo), blockedID, blockerID, blockerID, blockedID).Scan(&count); err != nil {
				return fmt.Errorf("check existing relates_to: %w", err)
			}
			if count > 0 {
				return types.NewError(types.KindConflict, "add dependency", fmt.Errorf("relates_to edge already exists between %s and %s", blockedID, blockerID))
			}
		}

		if types.IsBlocking(dep.Type) {
			result, err := detectCycle(ctx, tx, blockerID, blockedID)
			if err != nil {
				return fmt.Errorf("cycle detection: %w", err)
			}
			if result.CycleFound {
				return types.NewCycleError("add dependency", result.CyclePath)
			}
		}

		dep.CreatedAt = time.Now()
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO dependencies (blocked_id, blocker_id, type, actor, metadata, created_at)
			VALUES (?, ?, ?, ?, ?, ?)
		`, blockedID, blockerID, string(dep.Type), dep.Actor, nullableJSON(dep.Metadata), dep.CreatedAt); err != nil {
			if isUniqueViolation(err) {
				return types.NewError(types.KindConflict, "add dependency", fmt.Errorf("dependency already exists"))
			}
			return fmt.Errorf("insert dependency: %w", err)
		}

		if err := appendEvent(ctx, tx, blockedID, types.EventDependencyAdded, dep.Actor, nil, dep.Metadata); err != nil {
			return err
		}
		if err := markElementsDirty(ctx, tx, []string{blockedID, blockerID}); err != nil {
			return err
		}
		if types.IsBlocking(dep.Type) {
			return onDependencyAdded(ctx, tx, blockedID, blockerID, dep.Type)
		}
		return nil
	})
}

// validateDependencyMetadata enforces the per-type metadata shape spec §4.6
// requires: AWAITS carries a valid GateMetadata bag; VALIDATES carries a
// non-empty "criteria" field describing what validation means for this edge.
func validateDependencyMetadata(dep *types.Dependency) error {
	switch dep.Type {
	case types.Awaits:
		if len(dep.Metadata) == 0 {
			return fmt.Errorf("awaits edge requires gate metadata")
		}
		var gate types.GateMetadata
		if err := json.Unmarshal(dep.Metadata, &gate); err != nil {
			return fmt.Errorf("awaits metadata: %w", err)
		}
		if !types.ValidGateType(gate.GateType) {
			return fmt.Errorf("awaits metadata: invalid gate type %q", gate.GateType)
		}
		if gate.GateType == types.GateExternal && gate.ExternalRef != "" {
			if err := deps.ValidateExternalRef(gate.ExternalRef); err != nil {
				return fmt.Errorf("awaits metadata: %w", err)
			}
		}
		if gate.GateType == types.GateTimer && gate.WaitUntil == nil && gate.WaitUntilText == "" {
			return fmt.Errorf("awaits metadata: timer gate requires waitUntil or waitUntilText")
		}
	case types.Validates:
		if len(dep.Metadata) == 0 {
			return fmt.Errorf("validates edge requires a criteria field in metadata")
		}
		var probe struct {
			Criteria string `json:"criteria"`
		}
		if err := json.Unmarshal(dep.Metadata, &probe); err != nil || probe.Criteria == "" {
			return fmt.Errorf("validates edge requires a non-empty criteria field in metadata")
		}
	}
	return nil
}

// resolveTimerDeadline fills in a TIMER gate's WaitUntil from WaitUntilText
// when the caller supplied natural-language text instead of a concrete
// timestamp, rewriting dep.Metadata in place so the stored gate always
// carries a resolvable deadline.
func resolveTimerDeadline(dep *types.Dependency) error {
	if dep.Type != types.Awaits {
		return nil
	}
	var gate types.GateMetadata
	if err := json.Unmarshal(dep.Metadata, &gate); err != nil {
		return fmt.Errorf("awaits metadata: %w", err)
	}
	if gate.GateType != types.GateTimer || gate.WaitUntil != nil || gate.WaitUntilText == "" {
		return nil
	}
	deadline, err := naturaltime.ParseDeadline(gate.WaitUntilText, time.Now())
	if err != nil {
		return fmt.Errorf("awaits metadata: %w", err)
	}
	gate.WaitUntil = &deadline
	encoded, err := json.Marshal(gate)
	if err != nil {
		return fmt.Errorf("awaits metadata: %w", err)
	}
	dep.Metadata = encoded
	return nil
}

// detectCycle runs the bounded BFS from spec §4.5: starting at `from`,
// walk forward through blocking edges (X depends on Y) looking for `target`.
// Finding target means `from` already transitively depends on (is blocked
// by) target, so adding the edge target->from (the caller's new dependency)
// would close a cycle. Depth is capped at maxCycleDepth; hitting the cap without finding
// target is a conservative allow, not a rejection, since a path that long
// between local elements is vanishingly unlikely to be real and an
// unbounded search could otherwise stall a write.
func detectCycle(ctx context.Context, q execer, from, target string) (*CycleCheckResult, error) {
	if from == target {
		return &CycleCheckResult{CycleFound: true, CyclePath: []string{from, target}, NodesVisited: 1}, nil
	}

	type queued struct {
		id    string
		depth int
	}

	visited := map[string]bool{from: true}
	parent := map[string]string{}
	queue := []queued{{id: from, depth: 0}}
	nodesVisited := 0
	depthLimitReached := false

	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		nodesVisited++

		if cur.depth >= maxCycleDepth {
			depthLimitReached = true
			continue
		}

		next, err := blockingTargets(ctx, q, cur.id)
		if err != nil {
			return nil, err
		}

		for _, n := range next {
			if n == target {
				// Append target twice: once to close the existing chain
				// (from -> ... -> target) and once more for the repeated
				// node that marks where the new edge would close the loop.
				path := reconstructPath(parent, cur.id, from)
				path = append(path, target, target)
				return &CycleCheckResult{
					CycleFound:   true,
					CyclePath:    path,
					NodesVisited: nodesVisited,
				}, nil
			}
			if !visited[n] {
				visited[n] = true
				parent[n] = cur.id
				queue = append(queue, queued{id: n, depth: cur.depth + 1})
			}
		}
	}

	return &CycleCheckResult{
		CycleFound:        false,
		NodesVisited:      nodesVisited,
		DepthLimitReached: depthLimitReached,
	}, nil
}

// blockingTargets returns the set of elements `id` directly depends on via a
// blocking edge (BLOCKS, PARENT_CHILD, AWAITS).
func blockingTargets(ctx context.Context, q execer, id string) ([]string, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT blocker_id FROM dependencies
		WHERE blocked_id = ? AND type IN (?, ?, ?)
	`, id, string(types.Blocks), string(types.ParentChild), string(types.Awaits))
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []string
	for rows.Next() {
		var b string
		if err := rows.Scan(&b); err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

func reconstructPath(parent map[string]string, end, start string) []string {
	var path []string
	cur := end
	for {
		path = append([]string{cur}, path...)
		if cur == start {
			break
		}
		p, ok := parent[cur]
		if !ok {
			break
		}
		cur = p
	}
	return path
}

// RemoveDependency deletes a single edge and invalidates affected blocked
// cache rows.
func (s *SQLiteStorage) RemoveDependency(ctx context.Context, blockedID, blockerID string, depType types.DependencyType, actor string) error {
	return s.withTx(ctx, func(tx execer) error {
		res, err := tx.ExecContext(ctx, `
			DELETE FROM dependencies WHERE blocked_id = ? AND blocker_id = ? AND type = ?
		`, blockedID, blockerID, string(depType))
		if err != nil {
			return fmt.Errorf("remove dependency: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			return types.NewError(types.KindNotFound, "remove dependency", types.ErrNotFound)
		}
		if err := appendEvent(ctx, tx, blockedID, types.EventDependencyRemoved, actor, nil, nil); err != nil {
			return err
		}
		if err := markElementsDirty(ctx, tx, []string{blockedID, blockerID}); err != nil {
			return err
		}
		if types.IsBlocking(depType) {
			return onDependencyRemoved(ctx, tx, blockedID, blockerID, depType)
		}
		return nil
	})
}

// GetDependencies returns every edge where elementID is the blocked side.
func (s *SQLiteStorage) GetDependencies(ctx context.Context, elementID string) ([]*types.Dependency, error) {
	return queryDependencies(ctx, s.db, `WHERE blocked_id = ?`, elementID)
}

// GetDependents returns every edge where elementID is the blocker side.
func (s *SQLiteStorage) GetDependents(ctx context.Context, elementID string) ([]*types.Dependency, error) {
	return queryDependencies(ctx, s.db, `WHERE blocker_id = ?`, elementID)
}

// GetRelatedTo returns the associative (non-blocking) edges touching elementID.
func (s *SQLiteStorage) GetRelatedTo(ctx context.Context, elementID string) ([]*types.Dependency, error) {
	return queryDependencies(ctx, s.db, `
		WHERE (blocked_id = ? OR blocker_id = ?)
		AND type NOT IN (?, ?, ?)
	`, elementID, elementID, string(types.Blocks), string(types.ParentChild), string(types.Awaits))
}

// GetDependency fetches a single edge, or ErrNotFound.
func (s *SQLiteStorage) GetDependency(ctx context.Context, blockedID, blockerID string, depType types.DependencyType) (*types.Dependency, error) {
	deps, err := queryDependencies(ctx, s.db, `WHERE blocked_id = ? AND blocker_id = ? AND type = ?`, blockedID, blockerID, string(depType))
	if err != nil {
		return nil, err
	}
	if len(deps) == 0 {
		return nil, types.NewError(types.KindNotFound, "get dependency", types.ErrNotFound)
	}
	return deps[0], nil
}

// CountDependencies counts edges where elementID is the blocked side.
func (s *SQLiteStorage) CountDependencies(ctx context.Context, elementID string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM dependencies WHERE blocked_id = ?`, elementID).Scan(&n)
	return n, wrapDBError("count dependencies", err)
}

// CountDependents counts edges where elementID is the blocker side.
func (s *SQLiteStorage) CountDependents(ctx context.Context, elementID string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM dependencies WHERE blocker_id = ?`, elementID).Scan(&n)
	return n, wrapDBError("count dependents", err)
}

// GetDependenciesForMany batches GetDependencies across multiple elements,
// avoiding one round trip per element for bulk operations like priority
// recalculation (spec §4.8).
func (s *SQLiteStorage) GetDependenciesForMany(ctx context.Context, elementIDs []string) (map[string][]*types.Dependency, error) {
	result := make(map[string][]*types.Dependency, len(elementIDs))
	if len(elementIDs) == 0 {
		return result, nil
	}
	placeholderArgs := make([]any, len(elementIDs))
	for i, id := range elementIDs {
		placeholderArgs[i] = id
	}
	deps, err := queryDependencies(ctx, s.db, fmt.Sprintf(`WHERE blocked_id IN (%s)`, placeholders(len(elementIDs))), placeholderArgs...)
	if err != nil {
		return nil, err
	}
	for _, d := range deps {
		result[d.BlockedID] = append(result[d.BlockedID], d)
	}
	return result, nil
}

// removeAllDependencies deletes every edge where elementID is the blocked
// side (called by onElementDeleted when an element is soft-deleted).
func removeAllDependencies(ctx context.Context, tx execer, elementID string) error {
	_, err := tx.ExecContext(ctx, `DELETE FROM dependencies WHERE blocked_id = ?`, elementID)
	return err
}

// removeAllDependents deletes every edge where elementID is the blocker side.
func removeAllDependents(ctx context.Context, tx execer, elementID string) error {
	_, err := tx.ExecContext(ctx, `DELETE FROM dependencies WHERE blocker_id = ?`, elementID)
	return err
}

func queryDependencies(ctx context.Context, q execer, whereClause string, args ...any) ([]*types.Dependency, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT blocked_id, blocker_id, type, actor, metadata, created_at FROM dependencies
	`+whereClause, args...)
	if err != nil {
		return nil, wrapDBError("query dependencies", err)
	}
	defer func() { _ = rows.Close() }()

	var deps []*types.Dependency
	for rows.Next() {
		var d types.Dependency
		var typ string
		var metadata *string
		if err := rows.Scan(&d.BlockedID, &d.BlockerID, &typ, &d.Actor, &metadata, &d.CreatedAt); err != nil {
			return nil, wrapDBError("scan dependency row", err)
		}
		d.Type = types.DependencyType(typ)
		if metadata != nil {
			d.Metadata = json.RawMessage(*metadata)
		}
		deps = append(deps, &d)
	}
	return deps, wrapDBError("iterate dependencies", rows.Err())
}
