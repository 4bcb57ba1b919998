package vectorindex

import (
	"testing"

	"github.com/y437li/infounit/pkg/core/store"
)

func TestEncodeDecodeVectorRoundTrip(t *testing.T) {
	original := []float32{0.1, -0.2, 0.3, 1.0, -1.0}
	blob, err := encodeVector(original)
	if err != nil {
		t.Fatalf("encode failed: %v", err)
	}
	decoded, err := decodeVector(blob)
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if len(decoded) != len(original) {
		t.Fatalf("length mismatch: got %d want %d", len(decoded), len(original))
	}
	for i := range original {
		if decoded[i] != original[i] {
			t.Fatalf("value mismatch at %d: got %v want %v", i, decoded[i], original[i])
		}
	}
}

func TestSortHitsDescending(t *testing.T) {
	hits := []store.SearchHit{
		{ID: "a", Score: 0.2},
		{ID: "b", Score: 0.9},
		{ID: "c", Score: 0.5},
	}
	sortHitsDescending(hits)
	if hits[0].ID != "b" || hits[1].ID != "c" || hits[2].ID != "a" {
		t.Fatalf("unexpected order: %+v", hits)
	}
}
