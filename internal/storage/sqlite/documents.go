// Document versioning (spec §3, §4.7): updating a Document appends a new
// (document_id, version, body) row and bumps the live Element's version
// counter. Grounded on the teacher's BumpIssueVersion-style pattern of
// appending a history row inside the same transaction as the live-row
// update (internal/storage/sqlite/issues.go, removed — see DESIGN.md).
package sqlite

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/stoneforge/stoneforge/internal/hashing"
	"github.com/stoneforge/stoneforge/internal/types"
)

// UpdateDocumentBody replaces a Document's body, bumping its version
// counter and appending the prior body to document_versions history before
// overwriting the live row (spec §4.7: "the live row is the latest").
func (s *SQLiteStorage) UpdateDocumentBody(ctx context.Context, documentID, body, actor string) (*types.Element, error) {
	var result *types.Element
	err := s.withTx(ctx, func(tx execer) error {
		el, err := scanElement(tx.QueryRowContext(ctx, `
			SELECT id, type, payload, content_hash, created_at, updated_at, created_by, deleted_at
			FROM elements WHERE id = ? AND deleted_at IS NULL
		`, documentID))
		if err != nil {
			return wrapDBErrorf(err, "update document %s", documentID)
		}
		if el.Type != types.TypeDocument {
			return types.NewError(types.KindValidation, "update document", fmt.Errorf("element %s is not a document", documentID))
		}

		var payload types.DocumentPayload
		if err := json.Unmarshal(el.Payload, &payload); err != nil {
			return fmt.Errorf("decode document payload: %w", err)
		}

		now := time.Now()
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO document_versions (document_id, version, body, created_at, created_by)
			VALUES (?, ?, ?, ?, ?)
		`, documentID, payload.Version, payload.Body, now, actor); err != nil {
			return fmt.Errorf("insert document version: %w", err)
		}

		oldPayload := el.Payload
		payload.Body = body
		payload.Version++

		encoded, err := json.Marshal(payload)
		if err != nil {
			return err
		}
		el.Payload = encoded
		el.UpdatedAt = now

		hash, err := hashing.ComputeContentHash(el)
		if err != nil {
			return fmt.Errorf("compute content hash: %w", err)
		}
		el.ContentHash = hash

		if _, err := tx.ExecContext(ctx, `
			UPDATE elements SET payload = ?, content_hash = ?, updated_at = ? WHERE id = ?
		`, string(encoded), el.ContentHash, el.UpdatedAt, documentID); err != nil {
			return fmt.Errorf("update document row: %w", err)
		}

		if err := appendEvent(ctx, tx, documentID, types.EventUpdated, actor, oldPayload, encoded); err != nil {
			return err
		}
		if err := markElementsDirty(ctx, tx, []string{documentID}); err != nil {
			return err
		}

		tags, err := getTags(ctx, tx, documentID)
		if err != nil {
			return err
		}
		el.Tags = tags
		result = el
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// GetDocumentVersion fetches a single retained revision, or ErrNotFound.
func (s *SQLiteStorage) GetDocumentVersion(ctx context.Context, documentID string, version int) (*types.DocumentVersion, error) {
	var v types.DocumentVersion
	err := s.db.QueryRowContext(ctx, `
		SELECT document_id, version, body, created_at, created_by
		FROM document_versions WHERE document_id = ? AND version = ?
	`, documentID, version).Scan(&v.DocumentID, &v.Version, &v.Body, &v.CreatedAt, &v.CreatedBy)
	if err != nil {
		return nil, wrapDBErrorf(err, "get document version %s@%d", documentID, version)
	}
	return &v, nil
}

// ListDocumentVersions returns every retained revision of a document,
// oldest first.
func (s *SQLiteStorage) ListDocumentVersions(ctx context.Context, documentID string) ([]*types.DocumentVersion, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT document_id, version, body, created_at, created_by
		FROM document_versions WHERE document_id = ? ORDER BY version ASC
	`, documentID)
	if err != nil {
		return nil, wrapDBError("list document versions", err)
	}
	defer func() { _ = rows.Close() }()

	var versions []*types.DocumentVersion
	for rows.Next() {
		var v types.DocumentVersion
		if err := rows.Scan(&v.DocumentID, &v.Version, &v.Body, &v.CreatedAt, &v.CreatedBy); err != nil {
			return nil, wrapDBError("scan document version row", err)
		}
		versions = append(versions, &v)
	}
	return versions, wrapDBError("iterate document versions", rows.Err())
}
