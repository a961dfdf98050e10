package types

import "fmt"

// TaskStatus is the closed set of task statuses (spec §3, §4.4). Blocked is
// derived: never a target of an explicit transition, set only by the
// Blocked Cache.
type TaskStatus string

const (
	StatusOpen       TaskStatus = "open"
	StatusInProgress TaskStatus = "in_progress"
	StatusBlocked    TaskStatus = "blocked"
	StatusDeferred   TaskStatus = "deferred"
	StatusBacklog    TaskStatus = "backlog"
	StatusReview     TaskStatus = "review"
	StatusClosed     TaskStatus = "closed"
	StatusTombstone  TaskStatus = "tombstone"
)

var validTaskStatuses = map[TaskStatus]bool{
	StatusOpen: true, StatusInProgress: true, StatusBlocked: true,
	StatusDeferred: true, StatusBacklog: true, StatusReview: true,
	StatusClosed: true, StatusTombstone: true,
}

// ValidTaskStatus reports whether s is one of the closed set of task statuses.
func ValidTaskStatus(s TaskStatus) bool { return validTaskStatuses[s] }

// completedStatuses is the "completed" bit referenced throughout §4.6: a
// blocker in one of these states no longer blocks its dependents.
var completedStatuses = map[TaskStatus]bool{
	StatusClosed:    true,
	StatusTombstone: true,
}

// IsCompleted reports whether status is in the "completed" set used by
// blocking evaluation (spec §4.6 rule 1): closed, tombstone. Note spec's
// prose also mentions a generic "completed" status name for non-task
// elements (e.g. Plan's "completed"); IsCompleted is task-specific and
// PlanIsCompleted below covers plans.
func IsCompleted(status TaskStatus) bool { return completedStatuses[status] }

// taskTransitions encodes the allowed-target table from spec §4.4. `blocked`
// is deliberately absent as a map key on the "from" side in the spec's own
// table; the engine resolves this open question (see DESIGN.md) by
// permitting `blocked -> closed` directly, the same direct close that open,
// in_progress and review have (deferred and backlog reach closed only
// through open). Moves into `blocked` never come from this table; the
// Blocked Cache sets that status.
var taskTransitions = map[TaskStatus]map[TaskStatus]bool{
	StatusOpen: {
		StatusOpen: true, StatusInProgress: true, StatusClosed: true,
		StatusDeferred: true, StatusBacklog: true,
	},
	StatusInProgress: {
		StatusOpen: true, StatusInProgress: true, StatusReview: true,
		StatusClosed: true, StatusDeferred: true,
	},
	StatusReview: {
		StatusOpen: true, StatusInProgress: true, StatusReview: true,
		StatusClosed: true,
	},
	StatusClosed: {
		StatusOpen: true, StatusClosed: true,
	},
	StatusDeferred: {
		StatusOpen: true, StatusDeferred: true, StatusBacklog: true,
	},
	StatusBacklog: {
		StatusOpen: true, StatusDeferred: true, StatusBacklog: true,
	},
	// blocked is derived; the only user-initiated move out of it that the
	// engine allows directly is to closed (see DESIGN.md Open Question).
	// Any other explicit transition attempted from blocked must first pass
	// through the cache's unblock path, which restores previous_status.
	StatusBlocked: {
		StatusClosed: true,
	},
}

// ValidTransition reports whether moving a task from `from` to `to` is
// permitted by the table in spec §4.4.
func ValidTransition(from, to TaskStatus) bool {
	if from == to {
		return taskTransitions[from][to]
	}
	return taskTransitions[from] != nil && taskTransitions[from][to]
}

// TitleMaxLength matches the teacher's validated bound (types_test.go: "title
// must be 500 characters or less").
const TitleMaxLength = 500

// PriorityMin and PriorityMax are the task priority bounds per spec §3
// (1 = most urgent, 5 = least). Differs from the teacher's 0..4 scale.
const (
	PriorityMin = 1
	PriorityMax = 5
)

// ComplexityMin and ComplexityMax bound task complexity (spec §3).
const (
	ComplexityMin = 1
	ComplexityMax = 5
)

// TaskPayload is the Task discriminant's typed payload (spec §3).
type TaskPayload struct {
	Title       string     `json:"title"`
	Description string     `json:"description,omitempty"`
	Status      TaskStatus `json:"status"`
	Priority    int        `json:"priority"`
	Complexity  int        `json:"complexity"`
	Assignee    *string    `json:"assignee,omitempty"`
	ParentID    *string    `json:"parentId,omitempty"`

	// PreviousStatus is maintained by the Blocked Cache only (spec §4.6
	// "Status mirroring"); never set directly by callers.
	PreviousStatus TaskStatus `json:"previousStatus,omitempty"`
}

// Validate enforces the field-level invariants the teacher's types package
// tested for (types_test.go: "title is required", length bound, priority
// range), adapted to the spec's 1..5 priority/complexity scale and closed
// status set.
func (p *TaskPayload) Validate() error {
	if p.Title == "" {
		return fmt.Errorf("title is required")
	}
	if len(p.Title) > TitleMaxLength {
		return fmt.Errorf("title must be %d characters or less", TitleMaxLength)
	}
	if p.Priority < PriorityMin || p.Priority > PriorityMax {
		return fmt.Errorf("priority must be between %d and %d", PriorityMin, PriorityMax)
	}
	if p.Complexity < ComplexityMin || p.Complexity > ComplexityMax {
		return fmt.Errorf("complexity must be between %d and %d", ComplexityMin, ComplexityMax)
	}
	if !ValidTaskStatus(p.Status) {
		return fmt.Errorf("invalid status %q", p.Status)
	}
	return nil
}
