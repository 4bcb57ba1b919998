package models

import "testing"

func TestFingerprintDeterministic(t *testing.T) {
	fp1 := Fingerprint("Apple Unveils New Chip", "The chip improves battery life.")
	fp2 := Fingerprint("Apple Unveils New Chip", "The chip improves battery life.")
	if fp1 != fp2 {
		t.Fatalf("fingerprint not deterministic: %s != %s", fp1, fp2)
	}
}

func TestFingerprintCaseInsensitive(t *testing.T) {
	fp1 := Fingerprint("Apple Unveils New Chip", "Content here")
	fp2 := Fingerprint("APPLE UNVEILS NEW CHIP", "CONTENT HERE")
	if fp1 != fp2 {
		t.Fatalf("fingerprint should be case-insensitive: %s != %s", fp1, fp2)
	}
}

func TestUnitIDDerivation(t *testing.T) {
	fp := Fingerprint("title", "content")
	id := UnitID(fp)
	if len(id) != len(UnitIDPrefix)+16 {
		t.Fatalf("unexpected id length: %s", id)
	}
	if id[:len(UnitIDPrefix)] != UnitIDPrefix {
		t.Fatalf("id missing prefix: %s", id)
	}
}

func TestValueScoreDerivation(t *testing.T) {
	u := &InformationUnit{
		InformationGain: 8.0,
		Actionability:   6.0,
		Scarcity:        4.0,
		ImpactMagnitude: 9.0,
	}
	got := u.ValueScore()
	want := 0.30*8.0 + 0.25*6.0 + 0.20*4.0 + 0.25*9.0
	if got != want {
		t.Fatalf("value score mismatch: got %v want %v", got, want)
	}
}

func TestCoerceScoreDefaults(t *testing.T) {
	if got := CoerceScore(0, false); got != 5.0 {
		t.Fatalf("expected default 5.0, got %v", got)
	}
	if got := CoerceScore(15, true); got != 10.0 {
		t.Fatalf("expected clamp to 10.0, got %v", got)
	}
	if got := CoerceScore(0, true); got != 1.0 {
		t.Fatalf("expected clamp to 1.0, got %v", got)
	}
}

func TestResolveRootDomainExactAndFallback(t *testing.T) {
	if got := ResolveRootDomain("人工智能"); got != "人工智能" {
		t.Fatalf("expected exact match, got %s", got)
	}
	if got := ResolveRootDomain("人工智能芯片研究"); got != "人工智能" {
		t.Fatalf("expected substring match, got %s", got)
	}
	if got := ResolveRootDomain("量子物理"); got != FallbackRootDomain {
		t.Fatalf("expected fallback, got %s", got)
	}
}

func TestDedupSourcesByURL(t *testing.T) {
	a := []SourceReference{{URL: "https://a.com/1"}, {URL: "https://a.com/2"}}
	b := []SourceReference{{URL: "https://a.com/2"}, {URL: "https://a.com/3"}}
	merged := DedupSourcesByURL(a, b)
	if len(merged) != 3 {
		t.Fatalf("expected 3 unique sources, got %d", len(merged))
	}
}

func TestComputeTrendHotEntity(t *testing.T) {
	trend, pct := ComputeTrend(10, 2)
	if trend != "up" {
		t.Fatalf("expected up trend, got %s", trend)
	}
	if pct != 400.0 {
		t.Fatalf("expected 400%% change, got %v", pct)
	}
}

func TestComputeTrendNew(t *testing.T) {
	trend, pct := ComputeTrend(5, 0)
	if trend != "new" || pct != 100.0 {
		t.Fatalf("expected new/100, got %s/%v", trend, pct)
	}
}

func TestComputeTrendStableZero(t *testing.T) {
	trend, pct := ComputeTrend(0, 0)
	if trend != "stable" || pct != 0.0 {
		t.Fatalf("expected stable/0, got %s/%v", trend, pct)
	}
}
