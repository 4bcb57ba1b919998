package agent

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/y437li/infounit/pkg/core/prompt"
	"github.com/y437li/infounit/pkg/core/textsim"
	"github.com/y437li/infounit/pkg/models"
)

const (
	maxCandidateCap   = 25
	topPicksFloor     = 7.0
	quickReadsFloor   = 5.5
	defaultMaxTopPicks = 8
	maxQuickReads     = 15
	maxTotalPicks     = 20
)

var interrogativeSubstrings = []string{"怎么办", "为什么", "如何", "?", "？", "求助", "请问"}

var sourceDenylist = []string{"zhihu.com", "reddit.com", "tieba.baidu.com"}

// Curator selects a digest from the day's unsent Information Units.
type Curator struct {
	manager      *Manager
	maxTopPicks  int
}

// NewCurator builds a Curator backed by the given agent Manager.
func NewCurator(manager *Manager) *Curator {
	return &Curator{manager: manager, maxTopPicks: defaultMaxTopPicks}
}

type curatorPick struct {
	ID     string  `json:"id"`
	Score  float64 `json:"score"`
	Reason string  `json:"reason"`
}

type curatorResponse struct {
	DailySummary string        `json:"daily_summary"`
	TopPicks     []curatorPick `json:"top_picks"`
	QuickReads   []curatorPick `json:"quick_reads"`
}

// Select runs the deterministic pre-processing pipeline (exclusion filter,
// pre-rank, near-dup removal, cap) followed by the LLM selection call, with
// a deterministic fallback on LLM failure.
func (c *Curator) Select(ctx context.Context, units []models.InformationUnit) (models.Digest, error) {
	candidates := c.preprocess(units)

	byID := make(map[string]models.InformationUnit, len(candidates))
	for _, u := range candidates {
		byID[u.ID] = u
	}

	digest := models.Digest{TotalCandidates: len(units)}

	gw, err := c.manager.GatewayFor("curator")
	if err == nil {
		systemPrompt, perr := prompt.GetCuratorPrompt()
		if perr != nil {
			systemPrompt = defaultCuratorPrompt
		}
		var resp curatorResponse
		options := map[string]interface{}{"temperature": 0.15}
		if _, err := gw.ChatJSON(ctx, "curate", buildCuratorUserPrompt(candidates), systemPrompt, options, &resp); err == nil {
			digest.DailySummary = resp.DailySummary
			digest.TopPicks = applyFloorAndCap(resp.TopPicks, byID, topPicksFloor, c.maxTopPicks)
			digest.QuickReads = applyFloorAndCap(resp.QuickReads, byID, quickReadsFloor, maxQuickReads)
			capTotal(&digest)
			digest.TotalExcluded = len(units) - len(digest.TopPicks) - len(digest.QuickReads)
			return digest, nil
		}
	}

	// Deterministic fallback: top N by value_score into top_picks, next 12
	// into quick_reads.
	n := c.maxTopPicks
	if n > len(candidates) {
		n = len(candidates)
	}
	digest.TopPicks = cloneUnits(candidates[:n])
	rest := candidates[n:]
	if len(rest) > 12 {
		rest = rest[:12]
	}
	digest.QuickReads = cloneUnits(rest)
	digest.DailySummary = fmt.Sprintf("%d units curated today; top story: %s", len(candidates), firstTitle(candidates))
	digest.TotalExcluded = len(units) - len(digest.TopPicks) - len(digest.QuickReads)
	return digest, nil
}

// preprocess runs the deterministic exclusion filter, pre-rank by
// value_score, near-duplicate removal, and cap at maxCandidateCap — all
// before any LLM call (spec §4.9).
func (c *Curator) preprocess(units []models.InformationUnit) []models.InformationUnit {
	var filtered []models.InformationUnit
	for _, u := range units {
		if isExcluded(u) {
			continue
		}
		filtered = append(filtered, u)
	}

	sort.SliceStable(filtered, func(i, j int) bool {
		return filtered[i].ValueScore() > filtered[j].ValueScore()
	})

	deduped := removeNearDuplicates(filtered)

	if len(deduped) > maxCandidateCap {
		deduped = deduped[:maxCandidateCap]
	}
	return deduped
}

func isExcluded(u models.InformationUnit) bool {
	for _, src := range u.Sources {
		for _, banned := range sourceDenylist {
			if strings.Contains(src.URL, banned) {
				return true
			}
		}
	}
	for _, substr := range interrogativeSubstrings {
		if strings.Contains(u.Title, substr) {
			return true
		}
	}
	if u.ImportanceScore < 0.5 && u.AnalysisDepth < 0.5 {
		return true
	}
	return false
}

func removeNearDuplicates(units []models.InformationUnit) []models.InformationUnit {
	var out []models.InformationUnit
	for _, candidate := range units {
		duplicate := false
		for _, kept := range out {
			titleSim := textsim.Ratio(candidate.Title, kept.Title)
			contentSim := textsim.Ratio(firstN(candidate.Content, 200), firstN(kept.Content, 200))
			if titleSim > 0.55 || (titleSim > 0.40 && contentSim > 0.55) {
				duplicate = true
				break
			}
		}
		if !duplicate {
			out = append(out, candidate)
		}
	}
	return out
}

func firstN(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

func buildCuratorUserPrompt(candidates []models.InformationUnit) string {
	var sb strings.Builder
	sb.WriteString("Score and place each candidate into top_picks, quick_reads, or exclude. Respond as JSON: {\"daily_summary\":\"...\",\"top_picks\":[{\"id\":\"...\",\"score\":0,\"reason\":\"...\"}],\"quick_reads\":[...]}.\n\n")
	for _, u := range candidates {
		fmt.Fprintf(&sb, "id=%s title=%q gain=%.1f action=%.1f scarcity=%.1f impact=%.1f\n", u.ID, u.Title, u.InformationGain, u.Actionability, u.Scarcity, u.ImpactMagnitude)
	}
	return sb.String()
}

const defaultCuratorPrompt = `You curate a daily digest of Information Units using the 4D rubric: information_gain (0.30), actionability (0.25), scarcity (0.20), impact_magnitude (0.25). Assign each candidate a total score and place it in top_picks, quick_reads, or exclude it, with a one-line reason per pick. Respond as JSON.`

func applyFloorAndCap(picks []curatorPick, byID map[string]models.InformationUnit, floor float64, cap int) []models.InformationUnit {
	sort.SliceStable(picks, func(i, j int) bool { return picks[i].Score > picks[j].Score })

	var out []models.InformationUnit
	for _, p := range picks {
		if p.Score < floor {
			continue
		}
		u, ok := byID[p.ID]
		if !ok {
			continue
		}
		out = append(out, u)
		if len(out) >= cap {
			break
		}
	}
	return out
}

func capTotal(digest *models.Digest) {
	total := len(digest.TopPicks) + len(digest.QuickReads)
	if total <= maxTotalPicks {
		return
	}
	over := total - maxTotalPicks
	if over >= len(digest.QuickReads) {
		over -= len(digest.QuickReads)
		digest.QuickReads = nil
		if over > 0 && over < len(digest.TopPicks) {
			digest.TopPicks = digest.TopPicks[:len(digest.TopPicks)-over]
		}
		return
	}
	digest.QuickReads = digest.QuickReads[:len(digest.QuickReads)-over]
}

func cloneUnits(units []models.InformationUnit) []models.InformationUnit {
	out := make([]models.InformationUnit, len(units))
	copy(out, units)
	return out
}

func firstTitle(units []models.InformationUnit) string {
	if len(units) == 0 {
		return ""
	}
	return units[0].Title
}
