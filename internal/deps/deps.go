// Package deps provides dependency-reference helpers shared by the
// Dependency Service and the external sync adapter contract.
package deps

import (
	"fmt"
	"strings"
)

// IsChildOf returns true if childID is a hierarchical child of parentID.
// Hierarchical IDs nest with dots, e.g. "el-ab12.1" is a child of "el-ab12",
// and "el-ab12.1.2" is a child of "el-ab12.1".
func IsChildOf(childID, parentID string) bool {
	if childID == "" || parentID == "" || childID == parentID {
		return false
	}
	return strings.HasPrefix(childID, parentID+".")
}

// ValidateExternalRef validates the format of an external dependency reference.
// Valid format: external:<project>:<capability>
func ValidateExternalRef(ref string) error {
	if !strings.HasPrefix(ref, "external:") {
		return fmt.Errorf("external reference must start with 'external:'")
	}

	parts := strings.SplitN(ref, ":", 3)
	if len(parts) != 3 {
		return fmt.Errorf("invalid external reference format: expected 'external:<project>:<capability>', got '%s'", ref)
	}

	if parts[1] == "" {
		return fmt.Errorf("external reference missing project name")
	}
	if parts[2] == "" {
		return fmt.Errorf("external reference missing capability name")
	}

	return nil
}

// IsExternalRef returns true if the dependency reference is an external reference.
func IsExternalRef(ref string) bool {
	return strings.HasPrefix(ref, "external:")
}

// ParseExternalRef parses an external reference into project and capability.
// Returns empty strings if the format is invalid.
func ParseExternalRef(ref string) (project, capability string) {
	if !IsExternalRef(ref) {
		return "", ""
	}
	parts := strings.SplitN(ref, ":", 3)
	if len(parts) != 3 {
		return "", ""
	}
	return parts[1], parts[2]
}
