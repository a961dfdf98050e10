package types

import (
	"fmt"
	"time"
)

// DocumentPayload is the Document discriminant's typed payload (spec §3, §4.7):
// a content-addressed text body with a monotonically increasing version
// counter. The live Element row always holds the latest version; history is
// retained in DocumentVersion rows keyed by (document_id, version).
type DocumentPayload struct {
	Title   string `json:"title"`
	Body    string `json:"body"`
	Version int    `json:"version"`
}

// Validate enforces Document field invariants.
func (d *DocumentPayload) Validate() error {
	if d.Title == "" {
		return fmt.Errorf("title is required")
	}
	if d.Version < 1 {
		return fmt.Errorf("version must be >= 1")
	}
	return nil
}

// DocumentVersion is a single retained revision of a Document element.
type DocumentVersion struct {
	DocumentID string    `json:"documentId"`
	Version    int       `json:"version"`
	Body       string    `json:"body"`
	CreatedAt  time.Time `json:"createdAt"`
	CreatedBy  string    `json:"createdBy"`
}
