package merge

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stoneforge/stoneforge/internal/types"
)

func newEl(payload string, tags []string, updatedAt time.Time) *types.Element {
	return &types.Element{
		ID:        "el-abc123",
		Type:      types.TypeTask,
		Payload:   json.RawMessage(payload),
		CreatedAt: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		UpdatedAt: updatedAt,
		Tags:      tags,
	}
}

func TestMergeElementsNoConflict(t *testing.T) {
	base := newEl(`{"title":"a","priority":3}`, []string{"x"}, time.Unix(1, 0))
	left := newEl(`{"title":"b","priority":3}`, []string{"x", "y"}, time.Unix(2, 0))
	right := newEl(`{"title":"a","priority":4}`, []string{"x"}, time.Unix(3, 0))

	merged, conflicts, err := MergeElements(base, left, right)
	require.NoError(t, err)
	assert.Empty(t, conflicts)

	var got map[string]any
	require.NoError(t, json.Unmarshal(merged.Payload, &got))
	assert.Equal(t, "b", got["title"])
	assert.Equal(t, float64(4), got["priority"])
	assert.Equal(t, []string{"x", "y"}, merged.Tags)
}

func TestMergeElementsTrueConflictPicksLatest(t *testing.T) {
	base := newEl(`{"title":"a"}`, nil, time.Unix(1, 0))
	left := newEl(`{"title":"left-edit"}`, nil, time.Unix(5, 0))
	right := newEl(`{"title":"right-edit"}`, nil, time.Unix(10, 0))

	merged, conflicts, err := MergeElements(base, left, right)
	require.NoError(t, err)
	require.Len(t, conflicts, 1)
	assert.Equal(t, "title", conflicts[0].Field)
	assert.Equal(t, "right", conflicts[0].Resolution)

	var got map[string]any
	require.NoError(t, json.Unmarshal(merged.Payload, &got))
	assert.Equal(t, "right-edit", got["title"])
}

func TestMergeElementsDeletionWins(t *testing.T) {
	base := newEl(`{"title":"a"}`, nil, time.Unix(1, 0))
	now := time.Now()
	left := newEl(`{"title":"a"}`, nil, time.Unix(2, 0))
	left.DeletedAt = &now
	right := newEl(`{"title":"edited"}`, nil, time.Unix(3, 0))

	merged, _, err := MergeElements(base, left, right)
	require.NoError(t, err)
	assert.NotNil(t, merged.DeletedAt)
}

func TestMergeElementsTagRemovalRespected(t *testing.T) {
	base := newEl(`{}`, []string{"a", "b"}, time.Unix(1, 0))
	left := newEl(`{}`, []string{"a"}, time.Unix(2, 0)) // removed "b"
	right := newEl(`{}`, []string{"a", "b", "c"}, time.Unix(3, 0))

	merged, _, err := MergeElements(base, left, right)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"a", "c"}, merged.Tags)
}
