package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/stoneforge/stoneforge/internal/hashing"
	"github.com/stoneforge/stoneforge/internal/idgen"
	"github.com/stoneforge/stoneforge/internal/types"
)

// maxIDCollisionRetries bounds the GenerateHashID retry loop in
// CreateElement: each retry uses a fresh nonce at the same suffix length,
// and once this many attempts have collided CreateElement fails with a
// conflict error. The suffix is not lengthened on collision.
const maxIDCollisionRetries = 5

// CreateElement inserts a new Element (spec §4.4). The ID is generated from
// content plus the adaptive suffix-length cache (spec §4.3); on the rare
// primary-key collision the call retries with a fresh nonce before giving up.
func (s *SQLiteStorage) CreateElement(ctx context.Context, el *types.Element, actor string) error {
	if !types.ValidElementTypes[el.Type] {
		return types.NewError(types.KindValidation, "create element", fmt.Errorf("invalid element type %q", el.Type))
	}

	now := time.Now()
	el.CreatedAt = now
	el.UpdatedAt = now
	el.CreatedBy = actor

	hash, err := hashing.ComputeContentHash(el)
	if err != nil {
		return fmt.Errorf("create element: compute content hash: %w", err)
	}
	el.ContentHash = hash

	prefix := idgen.PrefixFor(string(el.Type))
	title := elementTitle(el)

	// The suffix length is resolved before the transaction: a cache refresh
	// counts elements through s.db, whose single connection the transaction
	// would otherwise be holding.
	length, err := s.idCache.GetHashLength(now)
	if err != nil {
		length = idgen.MaxSuffixLength
	}

	return s.withTx(ctx, func(tx execer) error {
		var lastErr error
		for attempt := 0; attempt < maxIDCollisionRetries; attempt++ {
			id := idgen.GenerateHashID(prefix, title, "", actor, now, length, attempt)

			_, err := tx.ExecContext(ctx, `
				INSERT INTO elements (id, type, payload, content_hash, created_at, updated_at, created_by, deleted_at)
				VALUES (?, ?, ?, ?, ?, ?, ?, NULL)
			`, id, string(el.Type), string(el.Payload), el.ContentHash, el.CreatedAt, el.UpdatedAt, el.CreatedBy)
			if err == nil {
				el.ID = id
				s.idCache.NotifyCreate(now)
				lastErr = nil
				break
			}
			if !isUniqueViolation(err) {
				return fmt.Errorf("insert element: %w", err)
			}
			lastErr = err
		}
		if lastErr != nil {
			return types.NewError(types.KindConflict, "create element", fmt.Errorf("id generation exhausted retries: %w", lastErr))
		}

		if err := replaceTags(ctx, tx, el.ID, el.Tags); err != nil {
			return err
		}
		if err := appendEvent(ctx, tx, el.ID, types.EventCreated, actor, nil, el.Payload); err != nil {
			return err
		}
		return markElementsDirty(ctx, tx, []string{el.ID})
	})
}

// elementTitle extracts a best-effort title string from a payload for ID
// content-seeding; falls back to the element type when the payload carries
// no "title" field (e.g. Message, Entity).
func elementTitle(el *types.Element) string {
	var probe struct {
		Title string `json:"title"`
	}
	if len(el.Payload) > 0 {
		_ = json.Unmarshal(el.Payload, &probe)
	}
	if probe.Title != "" {
		return probe.Title
	}
	return string(el.Type)
}

func isUniqueViolation(err error) bool {
	return strings.Contains(err.Error(), "UNIQUE constraint") || strings.Contains(err.Error(), "constraint failed")
}

// GetElement fetches a single element by ID, including soft-deleted ones
// unless the caller filters them out separately.
func (s *SQLiteStorage) GetElement(ctx context.Context, id string) (*types.Element, error) {
	el, err := scanElement(s.db.QueryRowContext(ctx, `
		SELECT id, type, payload, content_hash, created_at, updated_at, created_by, deleted_at
		FROM elements WHERE id = ?
	`, id))
	if err != nil {
		return nil, wrapDBErrorf(err, "get element %s", id)
	}
	tags, err := getTags(ctx, s.db, id)
	if err != nil {
		return nil, err
	}
	el.Tags = tags
	return el, nil
}

func scanElement(row *sql.Row) (*types.Element, error) {
	var el types.Element
	var typ string
	var payload string
	var deletedAt sql.NullString
	if err := row.Scan(&el.ID, &typ, &payload, &el.ContentHash, &el.CreatedAt, &el.UpdatedAt, &el.CreatedBy, &deletedAt); err != nil {
		return nil, err
	}
	el.Type = types.ElementType(typ)
	el.Payload = json.RawMessage(payload)
	el.DeletedAt = parseNullableTimeString(deletedAt)
	return &el, nil
}

func getTags(ctx context.Context, q execer, elementID string) ([]string, error) {
	rows, err := q.QueryContext(ctx, `SELECT tag FROM tags WHERE element_id = ? ORDER BY tag`, elementID)
	if err != nil {
		return nil, wrapDBError("get tags", err)
	}
	defer func() { _ = rows.Close() }()

	var tags []string
	for rows.Next() {
		var t string
		if err := rows.Scan(&t); err != nil {
			return nil, wrapDBError("scan tag", err)
		}
		tags = append(tags, t)
	}
	return tags, wrapDBError("iterate tags", rows.Err())
}

func replaceTags(ctx context.Context, tx execer, elementID string, tags []string) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM tags WHERE element_id = ?`, elementID); err != nil {
		return fmt.Errorf("clear tags: %w", err)
	}
	for _, t := range tags {
		if _, err := tx.ExecContext(ctx, `INSERT INTO tags (element_id, tag) VALUES (?, ?)`, elementID, t); err != nil {
			return fmt.Errorf("insert tag %q: %w", t, err)
		}
	}
	return nil
}

// UpdateElement replaces an element's payload/tags, recomputing its content
// hash and appending an UPDATED event (spec §4.4, §4.7). Returns ErrNotFound
// if the element does not exist or is already deleted.
func (s *SQLiteStorage) UpdateElement(ctx context.Context, id string, payload json.RawMessage, tags []string, actor string) (*types.Element, error) {
	var result *types.Element
	err := s.withTx(ctx, func(tx execer) error {
		existing, err := scanElement(tx.QueryRowContext(ctx, `
			SELECT id, type, payload, content_hash, created_at, updated_at, created_by, deleted_at
			FROM elements WHERE id = ? AND deleted_at IS NULL
		`, id))
		if err != nil {
			return wrapDBErrorf(err, "update element %s", id)
		}

		oldPayload := existing.Payload
		existing.Payload = payload
		existing.Tags = tags
		existing.UpdatedAt = time.Now()

		hash, err := hashing.ComputeContentHash(existing)
		if err != nil {
			return fmt.Errorf("update element: compute content hash: %w", err)
		}
		existing.ContentHash = hash

		if _, err := tx.ExecContext(ctx, `
			UPDATE elements SET payload = ?, content_hash = ?, updated_at = ? WHERE id = ?
		`, string(payload), existing.ContentHash, existing.UpdatedAt, id); err != nil {
			return fmt.Errorf("update element row: %w", err)
		}
		if err := replaceTags(ctx, tx, id, tags); err != nil {
			return err
		}
		if err := appendEvent(ctx, tx, id, types.EventUpdated, actor, oldPayload, payload); err != nil {
			return err
		}
		if err := markElementsDirty(ctx, tx, []string{id}); err != nil {
			return err
		}
		result = existing
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// SoftDeleteElement marks an element deleted without removing its row,
// cascading to the blocked cache via onElementDeleted (spec §4.6, §4.4).
func (s *SQLiteStorage) SoftDeleteElement(ctx context.Context, id string, actor string) error {
	return s.withTx(ctx, func(tx execer) error {
		now := time.Now()
		res, err := tx.ExecContext(ctx, `
			UPDATE elements SET deleted_at = ?, updated_at = ? WHERE id = ? AND deleted_at IS NULL
		`, now, now, id)
		if err != nil {
			return fmt.Errorf("soft delete element: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			return types.NewError(types.KindNotFound, "soft delete element", types.ErrNotFound)
		}
		if err := appendEvent(ctx, tx, id, types.EventDeleted, actor, nil, nil); err != nil {
			return err
		}
		if err := onElementDeleted(ctx, tx, id); err != nil {
			return err
		}
		return markElementsDirty(ctx, tx, []string{id})
	})
}

// HardDeleteElement permanently removes an element and every row that
// references it via ON DELETE CASCADE (tags, dependencies, blocked_cache,
// document_versions). Its dirty_elements row, which has no foreign key, is
// left in place. Events referencing the element are
// retained for audit (spec §4.9: the Event Log is append-only and outlives
// the elements it describes).
func (s *SQLiteStorage) HardDeleteElement(ctx context.Context, id string) error {
	return s.withTx(ctx, func(tx execer) error {
		res, err := tx.ExecContext(ctx, `DELETE FROM elements WHERE id = ?`, id)
		if err != nil {
			return fmt.Errorf("hard delete element: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			return types.NewError(types.KindNotFound, "hard delete element", types.ErrNotFound)
		}
		return nil
	})
}

// ListElements returns elements matching the filter (spec §4.4: "filters by
// type, tags, status, creator, since, paging"), newest first. Status filters
// against the payload's JSON "status" field via json_extract, since status
// lives inside the per-type payload rather than its own column. Non-deleted
// elements only unless filter.IncludeDeleted is set.
func (s *SQLiteStorage) ListElements(ctx context.Context, filter types.Filter) ([]*types.Element, error) {
	var clauses []string
	var args []any

	if !filter.IncludeDeleted {
		clauses = append(clauses, "deleted_at IS NULL")
	}
	if filter.Type != nil {
		clauses = append(clauses, "type = ?")
		args = append(args, string(*filter.Type))
	}
	if filter.Status != nil {
		clauses = append(clauses, "json_extract(payload, '$.status') = ?")
		args = append(args, *filter.Status)
	}
	if filter.Creator != nil {
		clauses = append(clauses, "created_by = ?")
		args = append(args, *filter.Creator)
	}
	if filter.Since != nil {
		clauses = append(clauses, "updated_at >= ?")
		args = append(args, *filter.Since)
	}
	if len(filter.Tags) > 0 {
		clauses = append(clauses, fmt.Sprintf(
			"id IN (SELECT element_id FROM tags WHERE tag IN (%s) GROUP BY element_id HAVING COUNT(DISTINCT tag) = ?)",
			placeholders(len(filter.Tags)),
		))
		for _, t := range filter.Tags {
			args = append(args, t)
		}
		args = append(args, len(filter.Tags))
	}

	query := `SELECT id, type, payload, content_hash, created_at, updated_at, created_by, deleted_at FROM elements`
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	query += " ORDER BY updated_at DESC"
	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", filter.Limit)
		if filter.Offset > 0 {
			query += fmt.Sprintf(" OFFSET %d", filter.Offset)
		}
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, wrapDBError("list elements", err)
	}
	defer func() { _ = rows.Close() }()

	var elements []*types.Element
	for rows.Next() {
		var el types.Element
		var typ, payload string
		var deletedAt sql.NullString
		if err := rows.Scan(&el.ID, &typ, &payload, &el.ContentHash, &el.CreatedAt, &el.UpdatedAt, &el.CreatedBy, &deletedAt); err != nil {
			return nil, wrapDBError("scan element row", err)
		}
		el.Type = types.ElementType(typ)
		el.Payload = json.RawMessage(payload)
		el.DeletedAt = parseNullableTimeString(deletedAt)
		elements = append(elements, &el)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapDBError("iterate elements", err)
	}

	for _, el := range elements {
		tags, err := getTags(ctx, s.db, el.ID)
		if err != nil {
			return nil, err
		}
		el.Tags = tags
	}
	return elements, nil
}

func placeholders(n int) string {
	ph := make([]string, n)
	for i := range ph {
		ph[i] = "?"
	}
	return strings.Join(ph, ", ")
}
