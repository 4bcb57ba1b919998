package agent

import "github.com/y437li/infounit/pkg/models"

// AnalystReport is one consultant analyst's structured finding, attached to
// an ArticleContext so the Extractor prompt can reference it. Analysts run
// only in DEEP mode and never block extraction on failure.
type AnalystReport struct {
	Role    string                 `json:"role"`
	Summary string                 `json:"summary"`
	Details map[string]interface{} `json:"details"`
	Failed  bool                   `json:"failed"`
}

// ArticleContext carries one article through the pipeline: the raw input,
// whatever analyst reports were gathered, and the extracted candidates once
// the Extractor has run. The orchestrator builds one of these per article
// and threads it through every phase.
type ArticleContext struct {
	Article        models.Article
	AnalystReports map[string]AnalystReport
	Candidates     []models.InformationUnit

	// Entities and Relations are keyed by the candidate's pre-merge unit
	// ID, so the orchestrator can look up what to feed EntityStore after
	// a candidate has gone through the merge tiers.
	Entities  map[string][]models.ExtractedEntity
	Relations map[string][]models.ExtractedRelation
}

// NewArticleContext starts a fresh per-article context.
func NewArticleContext(article models.Article) *ArticleContext {
	return &ArticleContext{
		Article:        article,
		AnalystReports: make(map[string]AnalystReport),
		Entities:       make(map[string][]models.ExtractedEntity),
		Relations:      make(map[string][]models.ExtractedRelation),
	}
}
