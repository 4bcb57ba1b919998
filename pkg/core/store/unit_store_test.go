package store

import (
	"context"
	"testing"
)

type stubIndex struct {
	hits []SearchHit
	err  error
}

func (s stubIndex) Upsert(ctx context.Context, id string, vector []float32) error { return nil }

func (s stubIndex) Search(ctx context.Context, vector []float32, topK int) ([]SearchHit, error) {
	return s.hits, s.err
}

func TestFindSimilarReturnsNilWithoutIndex(t *testing.T) {
	s := NewUnitStore(nil, nil)
	out, err := s.FindSimilar(context.Background(), []float32{1, 2, 3}, 0.6, "exclude-me", 3)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out != nil {
		t.Errorf("expected nil hits with no index configured, got %v", out)
	}
}

// Hits below threshold or matching excludeID are filtered before any row
// hydration is attempted, so this exercises the filter without a live pool.
func TestFindSimilarFiltersExcludedAndBelowThreshold(t *testing.T) {
	idx := stubIndex{hits: []SearchHit{
		{ID: "self", Score: 0.99},
		{ID: "too-far", Score: 0.2},
	}}
	s := NewUnitStore(nil, idx)
	out, err := s.FindSimilar(context.Background(), []float32{1, 2, 3}, 0.6, "self", 3)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(out) != 0 {
		t.Errorf("expected all hits filtered out, got %d", len(out))
	}
}

func TestFindSimilarPropagatesIndexError(t *testing.T) {
	idx := stubIndex{err: context.DeadlineExceeded}
	s := NewUnitStore(nil, idx)
	_, err := s.FindSimilar(context.Background(), []float32{1, 2, 3}, 0.6, "x", 3)
	if err == nil {
		t.Fatal("expected index search error to propagate")
	}
}
