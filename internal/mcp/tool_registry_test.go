package mcp

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testRegistry() *ToolRegistry {
	r := NewToolRegistry()
	r.Register(&ToolMetadata{Name: "score_person", Description: "Score one candidate", Category: CategoryScoring, Keywords: []string{"rate"}})
	r.Register(&ToolMetadata{Name: "bulk_like", Description: "Record likes", Category: CategoryFeedback})
	r.Register(&ToolMetadata{Name: "bulk_dislike", Description: "Record dislikes", Category: CategoryFeedback})
	r.Register(&ToolMetadata{Name: "sort_feed", Description: "Sort a feed by score", Category: CategoryFeed})
	return r
}

func TestToolRegistry_RegisterAndGet(t *testing.T) {
	r := testRegistry()
	r.Register(nil)
	r.Register(&ToolMetadata{})
	assert.Equal(t, 4, r.Count())

	tool, ok := r.Get("bulk_like")
	require.True(t, ok)
	assert.Equal(t, CategoryFeedback, tool.Category)

	_, ok = r.Get("missing")
	assert.False(t, ok)
}

func TestToolRegistry_ListIsSorted(t *testing.T) {
	names := []string{}
	for _, tool := range testRegistry().List() {
		names = append(names, tool.Name)
	}
	assert.Equal(t, []string{"bulk_dislike", "bulk_like", "score_person", "sort_feed"}, names)
}

func TestToolRegistry_ListByCategory(t *testing.T) {
	got := testRegistry().ListByCategory(CategoryFeedback)
	require.Len(t, got, 2)
	assert.Equal(t, "bulk_dislike", got[0].Name)
}

func TestToolRegistry_Search(t *testing.T) {
	r := testRegistry()

	tests := []struct {
		name      string
		query     string
		wantFirst string
		wantScore int
		wantCount int
	}{
		{"exact name", "sort_feed", "sort_feed", 3, 1},
		{"name contains", "like", "bulk_dislike", 2, 2},
		{"description", "candidate", "score_person", 1, 1},
		{"keyword", "rate", "score_person", 1, 1},
		{"regex", "^bulk_.*", "bulk_dislike", 2, 2},
		{"case insensitive", "SORT", "sort_feed", 2, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := r.Search(tt.query)
			require.Len(t, got, tt.wantCount)
			assert.Equal(t, tt.wantFirst, got[0].Tool.Name)
			assert.Equal(t, tt.wantScore, got[0].Score)
		})
	}

	assert.Nil(t, r.Search(""))
	assert.Empty(t, r.Search("zzz"))
}

func TestToolRegistry_SearchOrdersByScore(t *testing.T) {
	r := testRegistry()
	got := r.Search("score")
	require.Len(t, got, 2)
	assert.Equal(t, "score_person", got[0].Tool.Name)
	assert.Equal(t, "sort_feed", got[1].Tool.Name)
}

func TestToolRegistry_SearchByCategory(t *testing.T) {
	r := testRegistry()
	got := r.SearchByCategory("s", CategoryFeed)
	require.Len(t, got, 1)
	assert.Equal(t, "sort_feed", got[0].Tool.Name)
}
