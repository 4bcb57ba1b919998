package embedding

import "testing"

func TestHashNGramDeterministic(t *testing.T) {
	v1 := HashNGram("Apple unveils new chip")
	v2 := HashNGram("Apple unveils new chip")
	if len(v1) != Dimension {
		t.Fatalf("expected dimension %d, got %d", Dimension, len(v1))
	}
	for i := range v1 {
		if v1[i] != v2[i] {
			t.Fatalf("hash n-gram not deterministic at index %d", i)
		}
	}
}

func TestHashNGramUnitLength(t *testing.T) {
	v := HashNGram("some reasonably long sample sentence about markets")
	var sumSq float64
	for _, x := range v {
		sumSq += float64(x) * float64(x)
	}
	if sumSq < 0.99 || sumSq > 1.01 {
		t.Fatalf("expected unit-length vector, got squared norm %v", sumSq)
	}
}

func TestCosineIdentical(t *testing.T) {
	v := HashNGram("identical text")
	if c := Cosine(v, v); c < 0.999 {
		t.Fatalf("expected cosine ~1 for identical vectors, got %v", c)
	}
}

func TestCosineDissimilar(t *testing.T) {
	a := HashNGram("quarterly earnings beat expectations sharply")
	b := HashNGram("local weather forecast calls for rain tomorrow")
	if c := Cosine(a, b); c > 0.9 {
		t.Fatalf("expected lower similarity for unrelated text, got %v", c)
	}
}

func TestEmbedderFallsBackWhenNoProvider(t *testing.T) {
	e := New(nil)
	v := e.Embed(nil, "some text")
	if len(v) != Dimension {
		t.Fatalf("expected fallback vector of dimension %d, got %d", Dimension, len(v))
	}
}
