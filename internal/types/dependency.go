package types

import (
	"encoding/json"
	"time"
)

// DependencyType is the closed set of edge types (spec §3). Grounded on the
// teacher's string-typed DependencyType ("blocks", "parent-child",
// "relates-to", ...) in internal/storage/dolt/dependencies.go, widened to
// the spec's four-category taxonomy.
type DependencyType string

const (
	// Blocking types: contribute to the Blocked Cache's blocking evaluation.
	Blocks      DependencyType = "BLOCKS"
	ParentChild DependencyType = "PARENT_CHILD"
	Awaits      DependencyType = "AWAITS"

	// Associative types: never block.
	RelatesTo  DependencyType = "RELATES_TO"
	References DependencyType = "REFERENCES"
	Supersedes DependencyType = "SUPERSEDES"
	Duplicates DependencyType = "DUPLICATES"
	CausedBy   DependencyType = "CAUSED_BY"
	Validates  DependencyType = "VALIDATES"

	// Attribution types: never block.
	AuthoredBy DependencyType = "AUTHORED_BY"
	AssignedTo DependencyType = "ASSIGNED_TO"
	ApprovedBy DependencyType = "APPROVED_BY"

	// Threading types: never block.
	RepliesTo DependencyType = "REPLIES_TO"
)

var validDependencyTypes = map[DependencyType]bool{
	Blocks: true, ParentChild: true, Awaits: true,
	RelatesTo: true, References: true, Supersedes: true, Duplicates: true,
	CausedBy: true, Validates: true,
	AuthoredBy: true, AssignedTo: true, ApprovedBy: true,
	RepliesTo: true,
}

// ValidDependencyType reports whether t is one of the closed set of edge types.
func ValidDependencyType(t DependencyType) bool { return validDependencyTypes[t] }

var blockingTypes = map[DependencyType]bool{
	Blocks: true, ParentChild: true, Awaits: true,
}

// IsBlocking reports whether an edge of this type contributes to blocking
// evaluation (spec §4.5 step 5, §4.6).
func IsBlocking(t DependencyType) bool { return blockingTypes[t] }

// Dependency is a directed edge between two elements (spec §3). BlockedID is
// the waiter, BlockerID is the thing being waited on. Composite key
// (BlockedID, BlockerID, Type); self-reference forbidden; RELATES_TO is
// normalized so the lexicographically smaller id is BlockedID.
type Dependency struct {
	BlockedID string          `json:"blockedId"`
	BlockerID string          `json:"blockerId"`
	Type      DependencyType  `json:"type"`
	Actor     string          `json:"actor"`
	Metadata  json.RawMessage `json:"metadata,omitempty"`
	CreatedAt time.Time       `json:"createdAt"`
}
