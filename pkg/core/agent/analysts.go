package agent

import (
	"context"
	"fmt"
	"sync"

	"github.com/y437li/infounit/pkg/core/prompt"
)

// AnalystRoles is the fixed roster of consultant analysts run in DEEP mode.
var AnalystRoles = []string{"skeptic", "economist", "detective"}

var defaultAnalystPrompts = map[string]string{
	"skeptic":   "You assess source credibility tier and potential bias in the article. Respond as JSON: {\"credibility_tier\": \"...\", \"bias_notes\": \"...\"}.",
	"economist": "You assess first, second, and third-order economic impact and market sentiment implied by the article. Respond as JSON: {\"first_order\": \"...\", \"second_order\": \"...\", \"third_order\": \"...\", \"market_sentiment\": \"...\"}.",
	"detective": "You map entity relationships and stakeholders implied by the article. Respond as JSON: {\"stakeholders\": [...], \"relationships\": \"...\"}.",
}

// Analysts runs the three consultant analysts over an article in parallel.
// Each is independently prompted and a failure of one never blocks the
// others or the downstream extraction (spec §4.4).
type Analysts struct {
	manager *Manager
}

// NewAnalysts builds an Analysts runner backed by the given agent Manager.
func NewAnalysts(manager *Manager) *Analysts {
	return &Analysts{manager: manager}
}

// Run executes all analyst roles concurrently and writes their reports into
// actx.AnalystReports, keyed by role. A role whose call fails is recorded
// with Failed=true and an empty Details map rather than omitted, so callers
// can distinguish "ran and found nothing" from "never ran".
func (a *Analysts) Run(ctx context.Context, actx *ArticleContext) {
	var wg sync.WaitGroup
	var mu sync.Mutex

	for _, role := range AnalystRoles {
		wg.Add(1)
		go func(role string) {
			defer wg.Done()
			report := a.runOne(ctx, role, actx)
			mu.Lock()
			actx.AnalystReports[role] = report
			mu.Unlock()
		}(role)
	}
	wg.Wait()
}

func (a *Analysts) runOne(ctx context.Context, role string, actx *ArticleContext) AnalystReport {
	gw, err := a.manager.GatewayFor("analyst." + role)
	if err != nil {
		return AnalystReport{Role: role, Failed: true, Details: map[string]interface{}{}}
	}

	systemPrompt, err := prompt.GetAnalystPrompt(role)
	if err != nil {
		systemPrompt = defaultAnalystPrompts[role]
	}

	userPrompt := fmt.Sprintf("Title: %s\nSource: %s\n\n%s", actx.Article.Title, actx.Article.Source, actx.Article.Content)

	var details map[string]interface{}
	options := map[string]interface{}{"temperature": 0.35}
	if _, err := gw.ChatJSON(ctx, "analyst."+role, userPrompt, systemPrompt, options, &details); err != nil {
		return AnalystReport{Role: role, Failed: true, Details: map[string]interface{}{}}
	}

	return AnalystReport{
		Role:    role,
		Summary: summarizeDetails(details),
		Details: details,
	}
}

func summarizeDetails(details map[string]interface{}) string {
	if details == nil {
		return ""
	}
	for _, key := range []string{"summary", "bias_notes", "market_sentiment", "relationships"} {
		if v, ok := details[key].(string); ok && v != "" {
			return v
		}
	}
	return ""
}
