package agent

import (
	"context"
	"fmt"
	"strings"

	"github.com/y437li/infounit/pkg/core/prompt"
	"github.com/y437li/infounit/pkg/models"
)

// Merger fuses two or more units believed to describe the same underlying
// event into one canonical unit.
type Merger struct {
	manager *Manager
}

// NewMerger builds a Merger backed by the given agent Manager.
func NewMerger(manager *Manager) *Merger {
	return &Merger{manager: manager}
}

type mergerResponse struct {
	Title            string   `json:"title"`
	Content          string   `json:"content"`
	Summary          string   `json:"summary"`
	AnalysisContent  string   `json:"analysis_content"`
	KeyInsights      []string `json:"key_insights"`
	CredibilityScore *float64 `json:"credibility_score"`
	ImportanceScore  *float64 `json:"importance_score"`
}

// Merge fuses units (len >= 2) into one canonical unit: the first unit's id
// and fingerprint are preserved, sources are deduplicated by URL, tags are
// unioned, and entity_hierarchy entries deduplicated by (l1_name, l3_root).
// merged_count is always len(sources) after the union (spec testable
// property #4), not a sum across inputs. On LLM failure, textual fields
// fall back to the first unit's content verbatim; the mechanical union
// still applies.
func (m *Merger) Merge(ctx context.Context, units []models.InformationUnit) (models.InformationUnit, error) {
	if len(units) < 2 {
		return models.InformationUnit{}, fmt.Errorf("merge requires at least 2 units, got %d", len(units))
	}

	first := units[0]
	merged := first

	sourceGroups := make([][]models.SourceReference, len(units))
	for i, u := range units {
		sourceGroups[i] = u.Sources
	}
	merged.Sources = models.DedupSourcesByURL(sourceGroups...)
	merged.MergedCount = len(merged.Sources)

	merged.Tags = unionStrings(collectTags(units))
	merged.EntityHierarchy = dedupEntityHierarchy(units)

	gw, err := m.manager.GatewayFor("merger")
	if err != nil {
		return merged, nil
	}
	systemPrompt, err := prompt.GetMergerPrompt()
	if err != nil {
		systemPrompt = defaultMergerPrompt
	}

	var resp mergerResponse
	options := map[string]interface{}{"temperature": 0.2}
	if _, err := gw.ChatJSON(ctx, "merge", buildMergerUserPrompt(units), systemPrompt, options, &resp); err != nil {
		return merged, nil
	}

	if resp.Title != "" {
		merged.Title = resp.Title
	}
	if resp.Content != "" {
		merged.Content = resp.Content
	}
	if resp.Summary != "" {
		merged.Summary = resp.Summary
	}
	if resp.AnalysisContent != "" {
		merged.AnalysisContent = resp.AnalysisContent
	}
	if len(resp.KeyInsights) > 0 {
		merged.KeyInsights = resp.KeyInsights
	}
	if resp.CredibilityScore != nil {
		merged.CredibilityScore = models.CoerceScore(*resp.CredibilityScore, true)
	}
	if resp.ImportanceScore != nil {
		merged.ImportanceScore = models.CoerceScore(*resp.ImportanceScore, true)
	}

	return merged, nil
}

func buildMergerUserPrompt(units []models.InformationUnit) string {
	var sb strings.Builder
	sb.WriteString("Fuse the following accounts of the same event into one canonical unit. Respond as JSON with keys title, content, summary, analysis_content, key_insights, credibility_score, importance_score.\n\n")
	for i, u := range units {
		fmt.Fprintf(&sb, "Account %d:\nTitle: %s\nContent: %s\nInsights: %s\n\n", i+1, u.Title, u.Content, strings.Join(u.KeyInsights, "; "))
	}
	return sb.String()
}

const defaultMergerPrompt = `You fuse multiple accounts of the same underlying event into one canonical Information Unit. Preserve factual accuracy; do not invent details absent from every account. Respond as JSON.`

func collectTags(units []models.InformationUnit) []string {
	var all []string
	for _, u := range units {
		all = append(all, u.Tags...)
	}
	return all
}

func unionStrings(items []string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, s := range items {
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}

func dedupEntityHierarchy(units []models.InformationUnit) []models.EntityAnchor {
	type key struct{ name, root string }
	seen := make(map[key]bool)
	var out []models.EntityAnchor
	for _, u := range units {
		for _, anchor := range u.EntityHierarchy {
			k := key{anchor.L1Name, anchor.L3Root}
			if seen[k] {
				continue
			}
			seen[k] = true
			out = append(out, anchor)
		}
	}
	return out
}
