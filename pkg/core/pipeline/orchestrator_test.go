package pipeline

import (
	"testing"

	"github.com/y437li/infounit/pkg/models"
)

func TestTopInsightsCapsAtN(t *testing.T) {
	u := models.InformationUnit{KeyInsights: []string{"a", "b", "c", "d"}}
	got := topInsights(u, 2)
	if got != "a b" {
		t.Errorf("expected first 2 insights joined, got %q", got)
	}
}

func TestTopInsightsShorterThanN(t *testing.T) {
	u := models.InformationUnit{KeyInsights: []string{"only"}}
	got := topInsights(u, 3)
	if got != "only" {
		t.Errorf("expected all insights when fewer than n, got %q", got)
	}
}

func TestDerefAllPreservesOrder(t *testing.T) {
	a := models.InformationUnit{ID: "a"}
	b := models.InformationUnit{ID: "b"}
	out := derefAll([]*models.InformationUnit{&a, &b})
	if len(out) != 2 || out[0].ID != "a" || out[1].ID != "b" {
		t.Errorf("expected [a b] in order, got %v", out)
	}
}

func TestModeDefaultIsDeep(t *testing.T) {
	if DefaultMode != ModeDeep {
		t.Errorf("expected DefaultMode to be ModeDeep")
	}
}

func TestSimilarityThresholds(t *testing.T) {
	if SimilarityThresholdStrict <= SimilarityThreshold {
		t.Errorf("expected strict threshold to be stricter (higher) than the default")
	}
}
