package sqlite

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stoneforge/stoneforge/internal/types"
)

func newTestDocument(t *testing.T, store *SQLiteStorage, title, body string) *types.Element {
	t.Helper()
	payload, err := json.Marshal(types.DocumentPayload{Title: title, Body: body, Version: 1})
	if err != nil {
		t.Fatalf("marshal document payload: %v", err)
	}
	el := &types.Element{Type: types.TypeDocument, Payload: payload}
	if err := store.CreateElement(context.Background(), el, "test-user"); err != nil {
		t.Fatalf("create document: %v", err)
	}
	return el
}

func TestUpdateDocumentBodyBumpsVersionAndRetainsHistory(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	doc := newTestDocument(t, store, "Notes", "v1 body")

	updated, err := store.UpdateDocumentBody(ctx, doc.ID, "v2 body", "test-user")
	if err != nil {
		t.Fatalf("UpdateDocumentBody failed: %v", err)
	}

	var payload types.DocumentPayload
	if err := json.Unmarshal(updated.Payload, &payload); err != nil {
		t.Fatalf("decode updated payload: %v", err)
	}
	if payload.Version != 2 {
		t.Fatalf("expected version 2, got %d", payload.Version)
	}
	if payload.Body != "v2 body" {
		t.Fatalf("expected live body to be v2 body, got %q", payload.Body)
	}

	v1, err := store.GetDocumentVersion(ctx, doc.ID, 1)
	if err != nil {
		t.Fatalf("GetDocumentVersion(1) failed: %v", err)
	}
	if v1.Body != "v1 body" {
		t.Fatalf("expected retained v1 body, got %q", v1.Body)
	}

	versions, err := store.ListDocumentVersions(ctx, doc.ID)
	if err != nil {
		t.Fatalf("ListDocumentVersions failed: %v", err)
	}
	if len(versions) != 1 {
		t.Fatalf("expected 1 retained version row, got %d", len(versions))
	}
}
