package digest

import (
	"strings"
	"testing"
	"time"

	"github.com/y437li/infounit/pkg/models"
)

func TestRenderMarkdownIncludesSections(t *testing.T) {
	d := models.Digest{
		Date:         time.Date(2026, 7, 30, 0, 0, 0, 0, time.UTC),
		DailySummary: "Quiet day overall.",
		TopPicks: []models.InformationUnit{
			{Title: "Chipmaker cuts guidance", Summary: "Demand softened.", InformationGain: 8, Actionability: 8, Scarcity: 7, ImpactMagnitude: 8},
		},
		QuickReads:      []models.InformationUnit{{Title: "Minor regulatory note", Summary: "Low impact filing."}},
		TotalCandidates: 40,
		TotalExcluded:   12,
	}

	out := RenderMarkdown(d)
	if !strings.Contains(out, "2026-07-30") {
		t.Error("expected date header")
	}
	if !strings.Contains(out, "Top Picks") || !strings.Contains(out, "Quick Reads") {
		t.Error("expected both sections")
	}
	if !strings.Contains(out, "Chipmaker cuts guidance") {
		t.Error("expected top pick title")
	}
	if !strings.Contains(out, "40 candidates considered, 12 excluded") {
		t.Error("expected candidate/excluded footer")
	}
}

func TestRenderMarkdownSkipsEmptySections(t *testing.T) {
	d := models.Digest{Date: time.Now(), DailySummary: "nothing today"}
	out := RenderMarkdown(d)
	if strings.Contains(out, "## Top Picks") || strings.Contains(out, "## Quick Reads") {
		t.Error("expected empty sections to be omitted")
	}
}

func TestRenderHTML(t *testing.T) {
	d := models.Digest{Date: time.Now(), DailySummary: "summary"}
	html, err := RenderHTML(d)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(html, "<h1>") {
		t.Error("expected rendered html heading")
	}
}
