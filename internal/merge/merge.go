// Copyright (c) 2024 @neongreen (https://github.com/neongreen)
// Originally from: https://github.com/neongreen/mono/tree/main/beads-merge
//
// MIT License
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in all
// copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
// SOFTWARE.
//
// ---
// Vendored into Stoneforge with permission from @neongreen; field-merge rules
// generalized from the original flat Issue struct to the Element sum type's
// JSON payload (spec §4.7).

// Package merge implements 3-way merge of Elements for offline/branch-divergent
// edits to the same element (spec §4.7). Grounded on the teacher's
// internal/merge/merge.go field-level conflict rules (base/left/right
// comparison, deterministic tie-breaking, no rule ever requires user input),
// generalized to merge a JSON payload map instead of a fixed struct's fields.
package merge

import (
	"encoding/json"
	"sort"
	"time"

	"github.com/stoneforge/stoneforge/internal/types"
)

// Conflict describes one payload field where left and right both changed the
// base value to different things and deterministic resolution had to pick a
// winner; callers surface these for audit even though merge always succeeds.
type Conflict struct {
	Field      string
	BaseValue  json.RawMessage
	LeftValue  json.RawMessage
	RightValue json.RawMessage
	Resolution string // which side won: "left" or "right"
}

// MergeElements performs a 3-way merge of an element that diverged on two
// branches from a common base (spec §4.7). Identity fields (ID, Type,
// CreatedAt, CreatedBy) are taken from base since they never change; payload
// fields are merged key by key; deletion wins over any edit, mirroring the
// teacher's "closed always wins" status rule. Returns the merged element and
// any conflicts that were resolved deterministically.
func MergeElements(base, left, right *types.Element) (*types.Element, []Conflict, error) {
	result := *base
	result.ID = base.ID
	result.Type = base.Type
	result.CreatedAt = base.CreatedAt
	result.CreatedBy = base.CreatedBy

	result.DeletedAt = mergeDeletedAt(base.DeletedAt, left.DeletedAt, right.DeletedAt)
	result.Tags = mergeStringSlice(base.Tags, left.Tags, right.Tags)
	result.UpdatedAt = maxTime(left.UpdatedAt, right.UpdatedAt)

	payload, conflicts, err := mergePayload(base.Payload, left.Payload, right.Payload, left.UpdatedAt, right.UpdatedAt)
	if err != nil {
		return nil, nil, err
	}
	result.Payload = payload

	return &result, conflicts, nil
}

// mergeDeletedAt: a soft-delete on either side always wins (spec §4.7 carries
// forward the teacher's "closed always wins" precedent for destructive state).
func mergeDeletedAt(base, left, right *time.Time) *time.Time {
	if left != nil {
		return left
	}
	if right != nil {
		return right
	}
	return base
}

func maxTime(a, b time.Time) time.Time {
	if a.After(b) {
		return a
	}
	return b
}

// mergePayload merges two JSON objects field by field using the teacher's
// base/left/right string-equality rule, comparing each field's canonical
// JSON encoding rather than a typed value so it works uniformly across every
// element type's payload shape.
func mergePayload(base, left, right json.RawMessage, leftUpdatedAt, rightUpdatedAt time.Time) (json.RawMessage, []Conflict, error) {
	baseMap, err := toMap(base)
	if err != nil {
		return nil, nil, err
	}
	leftMap, err := toMap(left)
	if err != nil {
		return nil, nil, err
	}
	rightMap, err := toMap(right)
	if err != nil {
		return nil, nil, err
	}

	keys := map[string]bool{}
	for k := range baseMap {
		keys[k] = true
	}
	for k := range leftMap {
		keys[k] = true
	}
	for k := range rightMap {
		keys[k] = true
	}

	result := make(map[string]json.RawMessage, len(keys))
	var conflicts []Conflict

	for k := range keys {
		b, l, r := baseMap[k], leftMap[k], rightMap[k]

		switch {
		case jsonEqual(b, l) && !jsonEqual(b, r):
			result[k] = r
		case jsonEqual(b, r) && !jsonEqual(b, l):
			result[k] = l
		case jsonEqual(l, r):
			result[k] = l
		default:
			// True conflict: both sides changed the field to different
			// values. Deterministic tie-break by latest UpdatedAt, matching
			// the teacher's mergeFieldByUpdatedAt.
			winner, resolution := "left", "left"
			chosen := l
			if rightUpdatedAt.After(leftUpdatedAt) {
				winner, resolution = "right", "right"
				chosen = r
			}
			_ = winner
			result[k] = chosen
			conflicts = append(conflicts, Conflict{
				Field: k, BaseValue: b, LeftValue: l, RightValue: r,
				Resolution: resolution,
			})
		}
	}

	sort.Slice(conflicts, func(i, j int) bool { return conflicts[i].Field < conflicts[j].Field })

	out, err := json.Marshal(result)
	if err != nil {
		return nil, nil, err
	}
	return out, conflicts, nil
}

func toMap(raw json.RawMessage) (map[string]json.RawMessage, error) {
	if len(raw) == 0 {
		return map[string]json.RawMessage{}, nil
	}
	var m map[string]json.RawMessage
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, err
	}
	return m, nil
}

func jsonEqual(a, b json.RawMessage) bool {
	if len(a) == 0 && len(b) == 0 {
		return true
	}
	var va, vb any
	if err := json.Unmarshal(a, &va); err != nil {
		return string(a) == string(b)
	}
	if err := json.Unmarshal(b, &vb); err != nil {
		return string(a) == string(b)
	}
	ja, _ := json.Marshal(va)
	jb, _ := json.Marshal(vb)
	return string(ja) == string(jb)
}

// mergeStringSlice merges a tag set using additions-and-removals relative to
// base: a tag added on either side is kept, a tag removed on either side is
// dropped, matching the teacher's mergeLabels idiom.
func mergeStringSlice(base, left, right []string) []string {
	baseSet := toSet(base)
	leftSet := toSet(left)
	rightSet := toSet(right)

	result := map[string]bool{}
	for t := range leftSet {
		result[t] = true
	}
	for t := range rightSet {
		result[t] = true
	}
	// A tag present in base but removed by either side is dropped.
	for t := range baseSet {
		if !leftSet[t] || !rightSet[t] {
			removedByLeft := baseSet[t] && !leftSet[t]
			removedByRight := baseSet[t] && !rightSet[t]
			if removedByLeft || removedByRight {
				delete(result, t)
			}
		}
	}

	out := make([]string, 0, len(result))
	for t := range result {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

func toSet(s []string) map[string]bool {
	m := make(map[string]bool, len(s))
	for _, v := range s {
		m[v] = true
	}
	return m
}
