// Package hashing computes and compares element content hashes (spec §4.7).
// A content hash is a deterministic fingerprint of everything about an
// element except its identity fields, used to detect real content changes
// independent of timestamp churn and to drive merge conflict detection.
// Grounded on the teacher's internal/idgen content-hashing convention
// (sha256 over a stable string) and internal/merge/merge.go's jsonEqual
// helper, generalized from a flat Issue struct to the Element sum type.
package hashing

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sort"

	"github.com/stoneforge/stoneforge/internal/types"
)

// ComputeContentHash derives the content hash for an element: sha256 hex of
// "<type>:<canonicalJSON(payload+tags, identity fields excluded)>" (spec
// §4.7). Two elements with identical type, payload, and tags hash the same
// regardless of id, timestamps, or creator.
func ComputeContentHash(el *types.Element) (string, error) {
	canon, err := canonicalPayload(el)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256([]byte(string(el.Type) + ":" + canon))
	return hex.EncodeToString(sum[:]), nil
}

// canonicalPayload produces a stable JSON encoding of the element's payload
// plus its tags (sorted), independent of map key order and tag order.
func canonicalPayload(el *types.Element) (string, error) {
	var payload any
	if len(el.Payload) > 0 {
		if err := json.Unmarshal(el.Payload, &payload); err != nil {
			return "", err
		}
	}

	tags := append([]string(nil), el.Tags...)
	sort.Strings(tags)

	bag := map[string]any{
		"payload": canonicalizeValue(payload),
		"tags":    tags,
	}
	out, err := canonicalMarshal(bag)
	if err != nil {
		return "", err
	}
	return string(out), nil
}

// canonicalizeValue recursively sorts map keys are handled by
// canonicalMarshal; this pass only normalizes nested maps/slices so
// encoding/json's deterministic map key ordering (Go 1.12+, sorted) applies
// uniformly at every depth.
func canonicalizeValue(v any) any {
	switch val := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, vv := range val {
			out[k] = canonicalizeValue(vv)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, vv := range val {
			out[i] = canonicalizeValue(vv)
		}
		return out
	default:
		return val
	}
}

// canonicalMarshal relies on encoding/json's guarantee that map[string]any
// keys are emitted in sorted order, giving byte-identical output for
// semantically identical payloads regardless of original key order.
func canonicalMarshal(v any) ([]byte, error) {
	return json.Marshal(v)
}

// HasSameContentHash reports whether two elements hash identically.
func HasSameContentHash(a, b *types.Element) (bool, error) {
	ha, err := ComputeContentHash(a)
	if err != nil {
		return false, err
	}
	hb, err := ComputeContentHash(b)
	if err != nil {
		return false, err
	}
	return ha == hb, nil
}

// MatchesContentHash reports whether an element's stored ContentHash field
// is still consistent with its current payload/tags, detecting drift caused
// by a direct column edit that bypassed the normal write path.
func MatchesContentHash(el *types.Element) (bool, error) {
	want, err := ComputeContentHash(el)
	if err != nil {
		return false, err
	}
	return want == el.ContentHash, nil
}
