// Package sync defines the outbound contract external task-sync providers
// must satisfy (spec §6). The core engine depends only on this interface;
// concrete providers (GitHub, Linear, Jira, ...) are external collaborators
// per spec §1's Non-goals and are not implemented here. Generalizes the
// teacher's per-provider adapters (internal/linear, internal/github, ...,
// all removed — see DESIGN.md) plus its external-reference convention in
// internal/deps/deps.go into the single contract the spec actually asks for.
package sync

import (
	"context"
	"time"
)

// ExternalTask is the provider-agnostic shape of a synced task (spec §6).
type ExternalTask struct {
	ExternalID string
	URL        string
	Provider   string
	Project    string
	Title      string
	Body       string
	State      ExternalState
	Labels     []string
	Assignees  []string
	// Priority is the local 1..5 scale; each adapter is responsible for
	// round-tripping its provider-native priority representation to and
	// from these five values (spec §6: "the core requires only round-trip
	// fidelity for the five values").
	Priority  *int
	CreatedAt time.Time
	UpdatedAt time.Time
	ClosedAt  *time.Time
	// Raw carries the provider-specific response body for adapters that
	// need more than the normalized fields above.
	Raw map[string]any
}

// ExternalState is the closed set of external task states (spec §6).
type ExternalState string

const (
	ExternalOpen   ExternalState = "open"
	ExternalClosed ExternalState = "closed"
)

// CreateIssueInput is the normalized shape for Adapter.CreateIssue.
type CreateIssueInput struct {
	Title     string
	Body      string
	State     ExternalState
	Labels    []string
	Assignees []string
	Priority  *int
}

// FieldMapping describes how one local field maps to one external field.
type FieldMapping struct {
	LocalField    string
	ExternalField string
	Direction     FieldDirection
	// ToExternal/ToLocal, when non-nil, perform value transformation beyond
	// a straight copy (e.g. priority scale remapping).
	ToExternal func(any) (any, error)
	ToLocal    func(any) (any, error)
}

// FieldDirection constrains which way a FieldMapping applies.
type FieldDirection string

const (
	DirectionToExternal FieldDirection = "to_external"
	DirectionToLocal    FieldDirection = "to_local"
	DirectionBoth       FieldDirection = "both"
)

// FieldMapConfig is returned by Adapter.GetFieldMapConfig (spec §6).
type FieldMapConfig struct {
	Provider string
	Fields   []FieldMapping
}

// Adapter is the outbound contract the core engine exposes to external
// sync code (spec §6). The core never implements a concrete Adapter; it
// only calls through this interface from whatever higher-layer sync
// machinery a caller wires in.
type Adapter interface {
	GetIssue(ctx context.Context, project, externalID string) (*ExternalTask, error)
	ListIssuesSince(ctx context.Context, project string, since time.Time) ([]*ExternalTask, error)
	CreateIssue(ctx context.Context, project string, input CreateIssueInput) (*ExternalTask, error)
	UpdateIssue(ctx context.Context, project, externalID string, patch map[string]any) (*ExternalTask, error)
	GetFieldMapConfig(ctx context.Context) (*FieldMapConfig, error)
	TestConnection(ctx context.Context) (bool, error)
}
