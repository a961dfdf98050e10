// Package playbook normalizes YAML-authored Playbook element payloads into
// the canonical JSON the Element Store stores (spec §9: "Dynamic JSON
// payloads"). Playbooks are opaque JSON at the storage boundary, but the
// teacher's world authors them as YAML, so this package reuses the
// teacher's gopkg.in/yaml.v3 dependency to bridge the two at the edge,
// before the payload ever reaches CreateElement.
package playbook

import (
	"encoding/json"
	"fmt"

	"gopkg.in/yaml.v3"
)

// ParseYAML decodes a YAML-authored Playbook document and re-encodes it as
// canonical JSON, ready to hand to the Element Store as an element's
// payload. The YAML is decoded into a generic tree rather than a fixed
// struct since Playbook payload shape is caller-defined (spec §9).
func ParseYAML(src []byte) (json.RawMessage, error) {
	var tree interface{}
	if err := yaml.Unmarshal(src, &tree); err != nil {
		return nil, fmt.Errorf("parse playbook yaml: %w", err)
	}
	tree = normalizeYAMLTree(tree)

	out, err := json.Marshal(tree)
	if err != nil {
		return nil, fmt.Errorf("encode playbook json: %w", err)
	}
	return out, nil
}

// normalizeYAMLTree copies the decoded tree, recursing through the
// map[string]interface{} mappings and []interface{} sequences yaml.v3
// produces. Any other value, including a mapping with non-string keys, is
// returned unchanged.
func normalizeYAMLTree(v interface{}) interface{} {
	switch val := v.(type) {
	case map[string]interface{}:
		out := make(map[string]interface{}, len(val))
		for k, item := range val {
			out[k] = normalizeYAMLTree(item)
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(val))
		for i, item := range val {
			out[i] = normalizeYAMLTree(item)
		}
		return out
	default:
		return val
	}
}
