// Package types defines the Stoneforge engine's data model: the universal
// Element row, its typed payload discriminants, dependency edges, events,
// and the blocked-cache row shape. Grounded on the teacher's internal/types
// package (the closed-set Status/IssueType enums, test-asserted validation
// messages), generalized from a single flat Issue struct into a sum type
// per spec §3 and §9 ("Dynamic JSON payloads").
package types

import (
	"encoding/json"
	"time"
)

// ElementType is the closed set of element discriminators (spec §3).
type ElementType string

const (
	TypeTask     ElementType = "task"
	TypeMessage  ElementType = "message"
	TypeDocument ElementType = "document"
	TypeEntity   ElementType = "entity"
	TypePlan     ElementType = "plan"
	TypeWorkflow ElementType = "workflow"
	TypePlaybook ElementType = "playbook"
	TypeChannel  ElementType = "channel"
	TypeLibrary  ElementType = "library"
	TypeTeam     ElementType = "team"
)

// ValidElementTypes enumerates the closed discriminator set for validation.
var ValidElementTypes = map[ElementType]bool{
	TypeTask:     true,
	TypeMessage:  true,
	TypeDocument: true,
	TypeEntity:   true,
	TypePlan:     true,
	TypeWorkflow: true,
	TypePlaybook: true,
	TypeChannel:  true,
	TypeLibrary:  true,
	TypeTeam:     true,
}

// Element is the universal stored row (spec §3). Payload carries
// type-specific fields as opaque JSON; callers unmarshal it into the typed
// payload structs (TaskPayload, PlanPayload, DocumentPayload) at the
// boundary rather than holding untyped JSON in memory (spec §9).
type Element struct {
	ID          string          `json:"id"`
	Type        ElementType     `json:"type"`
	Payload     json.RawMessage `json:"payload"`
	ContentHash string          `json:"contentHash,omitempty"`
	CreatedAt   time.Time       `json:"createdAt"`
	UpdatedAt   time.Time       `json:"updatedAt"`
	CreatedBy   string          `json:"createdBy"`
	DeletedAt   *time.Time      `json:"deletedAt,omitempty"`
	Tags        []string        `json:"tags,omitempty"`
}

// IsDeleted reports whether the element is soft-deleted.
func (e *Element) IsDeleted() bool { return e.DeletedAt != nil }

// identityFields lists the Element identity fields (spec §4.7): id,
// createdAt, updatedAt, createdBy, deletedAt, plus contentHash and tags.
// hashing.ComputeContentHash does not consult it: it hashes the payload
// together with the sorted tags, so tags do affect the content hash.
var identityFields = map[string]bool{
	"id": true, "createdAt": true, "updatedAt": true,
	"createdBy": true, "deletedAt": true, "contentHash": true, "tags": true,
}

// Tag is the element<->tag side relation (spec §3), cascades on element delete.
type Tag struct {
	ElementID string `json:"elementId"`
	Tag       string `json:"tag"`
}

// Filter selects elements for List (spec §4.4).
type Filter struct {
	Type           *ElementType
	Tags           []string
	Status         *string
	Creator        *string
	Since          *time.Time
	IncludeDeleted bool
	Limit          int
	Offset         int
}
