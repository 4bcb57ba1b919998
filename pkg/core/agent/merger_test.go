package agent

import (
	"context"
	"testing"

	"github.com/y437li/infounit/pkg/core/llm"
	"github.com/y437li/infounit/pkg/models"
)

// With no gateway configured, Merge falls back to its mechanical union
// (sources/tags/entity hierarchy) and returns the first unit's textual
// fields untouched.
func newMergerWithoutGateway() *Merger {
	return NewMerger(NewManager(Config{}, map[string]*llm.Gateway{}))
}

func TestMergeRequiresAtLeastTwoUnits(t *testing.T) {
	m := newMergerWithoutGateway()
	_, err := m.Merge(context.Background(), []models.InformationUnit{{ID: "a"}})
	if err == nil {
		t.Fatal("expected error for single-unit merge")
	}
}

func TestMergeMergedCountIsSourceCountNotSum(t *testing.T) {
	m := newMergerWithoutGateway()
	units := []models.InformationUnit{
		{
			ID:      "a",
			Title:   "Original title",
			Sources: []models.SourceReference{{URL: "https://a.example/1"}, {URL: "https://a.example/2"}},
		},
		{
			ID:      "b",
			Sources: []models.SourceReference{{URL: "https://a.example/1"}, {URL: "https://b.example/1"}},
		},
	}

	merged, err := m.Merge(context.Background(), units)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// a.example/1, a.example/2, b.example/1 deduped by URL -> 3, not 2+2=4.
	if merged.MergedCount != 3 {
		t.Errorf("expected merged_count 3 (deduped by URL), got %d", merged.MergedCount)
	}
	if merged.Title != "Original title" {
		t.Errorf("expected first unit's title preserved without a gateway, got %q", merged.Title)
	}
}

func TestMergeUnionsTagsAndDedupsEntityHierarchy(t *testing.T) {
	m := newMergerWithoutGateway()
	units := []models.InformationUnit{
		{
			ID:   "a",
			Tags: []string{"ai", "funding"},
			EntityHierarchy: []models.EntityAnchor{
				{L1Name: "OpenAI", L3Root: "tech"},
			},
		},
		{
			ID:   "b",
			Tags: []string{"funding", "series-b"},
			EntityHierarchy: []models.EntityAnchor{
				{L1Name: "OpenAI", L3Root: "tech"},
				{L1Name: "Anthropic", L3Root: "tech"},
			},
		},
	}

	merged, err := m.Merge(context.Background(), units)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(merged.Tags) != 3 {
		t.Errorf("expected 3 unioned tags, got %v", merged.Tags)
	}
	if len(merged.EntityHierarchy) != 2 {
		t.Errorf("expected entity hierarchy deduped to 2 entries, got %d", len(merged.EntityHierarchy))
	}
}
