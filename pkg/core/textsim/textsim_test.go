package textsim

import "testing"

func TestRatioIdentical(t *testing.T) {
	if r := Ratio("hello world", "hello world"); r != 1.0 {
		t.Fatalf("expected 1.0, got %v", r)
	}
}

func TestRatioEmptyBoth(t *testing.T) {
	if r := Ratio("", ""); r != 1.0 {
		t.Fatalf("expected 1.0 for two empty strings, got %v", r)
	}
}

func TestRatioDisjoint(t *testing.T) {
	if r := Ratio("abc", "xyz"); r != 0.0 {
		t.Fatalf("expected 0.0, got %v", r)
	}
}

func TestRatioPartialOverlap(t *testing.T) {
	r := Ratio("Apple unveils new chip", "Apple unveils a new chip design")
	if r < 0.6 {
		t.Fatalf("expected high similarity for near-duplicate titles, got %v", r)
	}
}

func TestRatioSymmetric(t *testing.T) {
	a, b := "information unit pipeline", "pipeline for information units"
	if Ratio(a, b) != Ratio(b, a) {
		t.Fatalf("ratio should be symmetric")
	}
}
