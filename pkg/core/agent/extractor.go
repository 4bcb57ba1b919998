package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/y437li/infounit/pkg/core/llm"
	"github.com/y437li/infounit/pkg/core/prompt"
	"github.com/y437li/infounit/pkg/models"
)

// Extractor turns one article into zero or more candidate Information
// Units, via a single JSON-mode Gateway call.
type Extractor struct {
	manager *Manager
}

// NewExtractor builds an Extractor backed by the given agent Manager.
func NewExtractor(manager *Manager) *Extractor {
	return &Extractor{manager: manager}
}

// extractorResponse is the raw shape the LLM returns: a list of draft units
// whose 5W1H fields may arrive as either a string or a list depending on
// the model (spec §9, "Polymorphic LLM fields").
type extractorResponse struct {
	Units []rawDraftUnit `json:"units"`
}

type rawDraftUnit struct {
	Type                string            `json:"type"`
	Title               string            `json:"title"`
	Content             string            `json:"content"`
	Summary             string            `json:"summary"`
	AnalysisContent     string            `json:"analysis_content"`
	KeyInsights         []string          `json:"key_insights"`
	EventTime           string            `json:"event_time"`
	TimeSensitivity     string            `json:"time_sensitivity"`
	InformationGain     *float64          `json:"information_gain"`
	Actionability       *float64          `json:"actionability"`
	Scarcity            *float64          `json:"scarcity"`
	ImpactMagnitude     *float64          `json:"impact_magnitude"`
	StateChangeType     string            `json:"state_change_type"`
	StateChangeSubtypes []string          `json:"state_change_subtypes"`
	EntityHierarchy     []rawEntityAnchor `json:"entity_hierarchy"`
	Relations           []models.ExtractedRelation `json:"relations"`
	Who                 json.RawMessage   `json:"who"`
	What                json.RawMessage   `json:"what"`
	When                json.RawMessage   `json:"when"`
	Where               json.RawMessage   `json:"where"`
	Why                 json.RawMessage   `json:"why"`
	How                 json.RawMessage   `json:"how"`
	CredibilityScore    *float64          `json:"credibility_score"`
	ImportanceScore     *float64          `json:"importance_score"`
	AnalysisDepth       *float64          `json:"analysis_depth_score"`
	Sentiment           string            `json:"sentiment"`
	Tags                []string          `json:"tags"`
}

type rawEntityAnchor struct {
	L1Name     string  `json:"l1_name"`
	L1Role     string  `json:"l1_role"`
	L2Sector   string  `json:"l2_sector"`
	L3Root     string  `json:"l3_root"`
	Confidence float64 `json:"confidence"`
}

// Extract runs the Extractor agent over actx.Article, populating
// actx.Candidates. On total gateway/parse failure it leaves Candidates
// empty rather than fabricating units (spec §4.2).
func (e *Extractor) Extract(ctx context.Context, actx *ArticleContext) error {
	gw, err := e.manager.GatewayFor("extractor")
	if err != nil {
		return err
	}

	systemPrompt, err := prompt.GetExtractorPrompt()
	if err != nil {
		systemPrompt = defaultExtractorPrompt
	}

	userPrompt := buildExtractorUserPrompt(actx)

	var resp extractorResponse
	options := map[string]interface{}{"temperature": 0.3}
	if _, err := gw.ChatJSON(ctx, "extract", userPrompt, systemPrompt, options, &resp); err != nil {
		actx.Candidates = nil
		return nil
	}

	now := time.Now()
	source := models.SourceReference{
		URL:         actx.Article.URL,
		Title:       actx.Article.Title,
		SourceName:  actx.Article.Source,
		PublishedAt: actx.Article.PublishedAt,
		Excerpt:     firstSentences(actx.Article.Content, 2),
	}

	candidates := make([]models.InformationUnit, 0, len(resp.Units))
	for _, raw := range resp.Units {
		fp := models.Fingerprint(raw.Title, raw.Content)
		unit := models.InformationUnit{
			ID:              models.UnitID(fp),
			Fingerprint:     fp,
			Type:            models.InformationType(orDefault(raw.Type, string(models.TypeFact))),
			Title:           raw.Title,
			Content:         raw.Content,
			Summary:         raw.Summary,
			AnalysisContent: raw.AnalysisContent,
			KeyInsights:     raw.KeyInsights,
			EventTime:       raw.EventTime,
			ReportTime:      now,
			TimeSensitivity: models.TimeSensitivity(orDefault(raw.TimeSensitivity, string(models.SensitivityNormal))),
			InformationGain: models.CoerceScore(derefFloat(raw.InformationGain), raw.InformationGain != nil),
			Actionability:   models.CoerceScore(derefFloat(raw.Actionability), raw.Actionability != nil),
			Scarcity:        models.CoerceScore(derefFloat(raw.Scarcity), raw.Scarcity != nil),
			ImpactMagnitude: models.CoerceScore(derefFloat(raw.ImpactMagnitude), raw.ImpactMagnitude != nil),
			StateChangeSubtypes: raw.StateChangeSubtypes,
			Who:              polymorphicToList(raw.Who),
			What:             polymorphicToString(raw.What),
			When:             polymorphicToString(raw.When),
			Where:            polymorphicToString(raw.Where),
			Why:              polymorphicToString(raw.Why),
			How:              polymorphicToString(raw.How),
			Sources:          []models.SourceReference{source},
			CredibilityScore: models.CoerceScore(derefFloat(raw.CredibilityScore), raw.CredibilityScore != nil),
			ImportanceScore:  models.CoerceScore(derefFloat(raw.ImportanceScore), raw.ImportanceScore != nil),
			AnalysisDepth:    models.CoerceScore(derefFloat(raw.AnalysisDepth), raw.AnalysisDepth != nil),
			Sentiment:        models.Sentiment(orDefault(raw.Sentiment, string(models.SentimentNeutral))),
			Tags:             raw.Tags,
			MergedCount:      1,
			CreatedAt:        now,
			UpdatedAt:        now,
		}

		hex := models.StateChangeType(strings.ToUpper(raw.StateChangeType))
		if models.ValidHEX(hex) {
			unit.StateChangeType = hex
		} else {
			unit.StateChangeType = models.StateSentiment
		}

		var entities []models.ExtractedEntity
		for _, anchor := range raw.EntityHierarchy {
			unit.EntityHierarchy = append(unit.EntityHierarchy, models.EntityAnchor{
				L1Name:     anchor.L1Name,
				L1Role:     models.EntityRole(orDefault(anchor.L1Role, string(models.RoleMentioned))),
				L2Sector:   anchor.L2Sector,
				L3Root:     models.ResolveRootDomain(anchor.L3Root),
				Confidence: anchor.Confidence,
			})
			entities = append(entities, models.ExtractedEntity{
				Name: anchor.L1Name,
				Type: anchor.L2Sector,
				Role: orDefault(anchor.L1Role, string(models.RoleMentioned)),
			})
		}
		actx.Entities[unit.ID] = entities
		actx.Relations[unit.ID] = raw.Relations

		candidates = append(candidates, unit)
	}

	actx.Candidates = candidates
	return nil
}

func buildExtractorUserPrompt(actx *ArticleContext) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Title: %s\nSource: %s\nPublished: %s\n\n", actx.Article.Title, actx.Article.Source, actx.Article.PublishedAt.Format(time.RFC3339))
	body := actx.Article.Content
	if len(body) > 8000 {
		body = body[:8000]
	}
	sb.WriteString(body)

	if len(actx.AnalystReports) > 0 {
		sb.WriteString("\n\nConsultant analyst notes:\n")
		for _, role := range []string{"skeptic", "economist", "detective"} {
			if report, ok := actx.AnalystReports[role]; ok && !report.Failed {
				fmt.Fprintf(&sb, "- %s: %s\n", role, report.Summary)
			}
		}
	}
	return sb.String()
}

const defaultExtractorPrompt = `You split a news article into atomic Information Units. Each unit is one fact, event, opinion, or datum. Respond as JSON: {"units": [...]}. Each unit has: type, title, content, summary, analysis_content, key_insights, event_time, time_sensitivity, information_gain, actionability, scarcity, impact_magnitude (all four 1-10), state_change_type (one of TECH, CAPITAL, REGULATION, ORG, RISK, SENTIMENT), state_change_subtypes, entity_hierarchy (each with l1_name, l1_role, l2_sector, l3_root, confidence), who, what, when, where, why, how, credibility_score, importance_score, analysis_depth_score, sentiment, tags, relations (each with source, target, relation, evidence).`

func orDefault(v, fallback string) string {
	if strings.TrimSpace(v) == "" {
		return fallback
	}
	return v
}

func derefFloat(v *float64) float64 {
	if v == nil {
		return 0
	}
	return *v
}

// polymorphicToString accepts either a JSON string or a JSON array and
// collapses it to a single string (array elements joined by "; ").
func polymorphicToString(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var list []string
	if err := json.Unmarshal(raw, &list); err == nil {
		return strings.Join(list, "; ")
	}
	return ""
}

// polymorphicToList accepts either a JSON string or a JSON array and
// normalizes it to a list form (spec §9, "Polymorphic LLM fields").
func polymorphicToList(raw json.RawMessage) []string {
	if len(raw) == 0 {
		return nil
	}
	var list []string
	if err := json.Unmarshal(raw, &list); err == nil {
		return list
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil && s != "" {
		return []string{s}
	}
	return nil
}

func firstSentences(text string, n int) string {
	parts := strings.SplitAfterN(text, "。", n+1)
	if len(parts) > n {
		parts = parts[:n]
	}
	excerpt := strings.Join(parts, "")
	if len(excerpt) > 400 {
		excerpt = excerpt[:400]
	}
	return excerpt
}
