package agent

import (
	"testing"
	"time"

	"github.com/y437li/infounit/pkg/models"
)

func makeUnit(id string, title string, gain, action, scarcity, impact float64) models.InformationUnit {
	return models.InformationUnit{
		ID:              id,
		Fingerprint:     id,
		Title:           title,
		Content:         "content for " + title,
		InformationGain: gain,
		Actionability:   action,
		Scarcity:        scarcity,
		ImpactMagnitude: impact,
		ImportanceScore: 6,
		AnalysisDepth:   6,
		CreatedAt:       time.Now(),
		UpdatedAt:       time.Now(),
	}
}

func TestCuratorPreprocessExcludesLowScore(t *testing.T) {
	c := NewCurator(nil)
	low := makeUnit("u1", "Low value unit", 1, 1, 1, 1)
	low.ImportanceScore = 0.2
	low.AnalysisDepth = 0.2
	high := makeUnit("u2", "High value unit", 9, 9, 9, 9)

	result := c.preprocess([]models.InformationUnit{low, high})
	if len(result) != 1 || result[0].ID != "u2" {
		t.Fatalf("expected only u2 to survive preprocessing, got %+v", result)
	}
}

func TestCuratorPreprocessExcludesInterrogativeTitle(t *testing.T) {
	c := NewCurator(nil)
	u := makeUnit("u1", "怎么办 if this happens", 9, 9, 9, 9)
	result := c.preprocess([]models.InformationUnit{u})
	if len(result) != 0 {
		t.Fatalf("expected interrogative title to be excluded, got %+v", result)
	}
}

func TestCuratorNearDuplicateRemoval(t *testing.T) {
	c := NewCurator(nil)
	a := makeUnit("u1", "Apple unveils new chip for laptops", 9, 9, 9, 9)
	b := makeUnit("u2", "Apple unveils a new chip for laptops", 5, 5, 5, 5)
	result := c.preprocess([]models.InformationUnit{a, b})
	if len(result) != 1 {
		t.Fatalf("expected near-duplicate to be removed, got %d results", len(result))
	}
	if result[0].ID != "u1" {
		t.Fatalf("expected higher-scored unit u1 to survive, got %s", result[0].ID)
	}
}

func TestApplyFloorAndCapEnforcesFloor(t *testing.T) {
	byID := map[string]models.InformationUnit{
		"a": makeUnit("a", "A", 9, 9, 9, 9),
		"b": makeUnit("b", "B", 1, 1, 1, 1),
	}
	picks := []curatorPick{
		{ID: "a", Score: 8.0},
		{ID: "b", Score: 3.0},
	}
	out := applyFloorAndCap(picks, byID, topPicksFloor, defaultMaxTopPicks)
	if len(out) != 1 || out[0].ID != "a" {
		t.Fatalf("expected only unit above floor to survive, got %+v", out)
	}
}

func TestApplyFloorAndCapEnforcesCap(t *testing.T) {
	byID := make(map[string]models.InformationUnit)
	var picks []curatorPick
	for i := 0; i < 10; i++ {
		id := string(rune('a' + i))
		byID[id] = makeUnit(id, id, 9, 9, 9, 9)
		picks = append(picks, curatorPick{ID: id, Score: 8.0})
	}
	out := applyFloorAndCap(picks, byID, topPicksFloor, 3)
	if len(out) != 3 {
		t.Fatalf("expected cap of 3, got %d", len(out))
	}
}
