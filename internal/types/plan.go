package types

import (
	"fmt"
	"time"
)

// PlanStatus is the closed set of plan statuses (spec §3).
type PlanStatus string

const (
	PlanDraft     PlanStatus = "draft"
	PlanActive    PlanStatus = "active"
	PlanCompleted PlanStatus = "completed"
	PlanCancelled PlanStatus = "cancelled"
)

var validPlanStatuses = map[PlanStatus]bool{
	PlanDraft: true, PlanActive: true, PlanCompleted: true, PlanCancelled: true,
}

// ValidPlanStatus reports whether s is one of the closed set of plan statuses.
func ValidPlanStatus(s PlanStatus) bool { return validPlanStatuses[s] }

// planTransitions encodes spec §3's Plan transition rules: draft<->active,
// active->completed<->active (reopen), *->cancelled, cancelled->draft
// (restart).
var planTransitions = map[PlanStatus]map[PlanStatus]bool{
	PlanDraft:     {PlanDraft: true, PlanActive: true, PlanCancelled: true},
	PlanActive:    {PlanActive: true, PlanDraft: true, PlanCompleted: true, PlanCancelled: true},
	PlanCompleted: {PlanCompleted: true, PlanActive: true, PlanCancelled: true},
	PlanCancelled: {PlanCancelled: true, PlanDraft: true},
}

// ValidPlanTransition reports whether moving a plan from `from` to `to` is
// permitted.
func ValidPlanTransition(from, to PlanStatus) bool {
	return planTransitions[from] != nil && planTransitions[from][to]
}

// PlanIsCompleted reports whether a plan's status counts as "completed" for
// blocking evaluation purposes (spec §4.6 rule 1, applied to a Plan acting
// as a BLOCKS blocker).
func PlanIsCompleted(status PlanStatus) bool {
	return status == PlanCompleted || status == PlanCancelled
}

// PlanPayload is the Plan discriminant's typed payload (spec §3). Plans are
// task collections, not blocking parents: a task that is the PARENT_CHILD
// child of a Plan is never blocked by the Plan's own status (spec §4.6
// rule 2, §9), though a Plan that is itself blocked cascades "parent is
// blocked" to it. Blocking reads PARENT_CHILD edges, not TaskPayload.ParentID.
type PlanPayload struct {
	Title       string     `json:"title"`
	Description string     `json:"description,omitempty"`
	Status      PlanStatus `json:"status"`

	CompletedAt *time.Time `json:"completedAt,omitempty"`
	CancelledAt *time.Time `json:"cancelledAt,omitempty"`
}

// Validate enforces Plan field invariants.
func (p *PlanPayload) Validate() error {
	if p.Title == "" {
		return fmt.Errorf("title is required")
	}
	if len(p.Title) > TitleMaxLength {
		return fmt.Errorf("title must be %d characters or less", TitleMaxLength)
	}
	if !ValidPlanStatus(p.Status) {
		return fmt.Errorf("invalid status %q", p.Status)
	}
	return nil
}
