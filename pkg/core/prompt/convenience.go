package prompt

// Convenience functions for common prompt operations.

// GetExtractorPrompt returns the information-unit extractor's system prompt.
func GetExtractorPrompt() (string, error) {
	return Get().GetSystemPrompt(PromptIDs.Extractor)
}

// GetMergerPrompt returns the duplicate-merge agent's system prompt.
func GetMergerPrompt() (string, error) {
	return Get().GetSystemPrompt(PromptIDs.Merger)
}

// GetAnalystPrompt returns a named consultant analyst's system prompt.
func GetAnalystPrompt(role string) (string, error) {
	id := "analyst." + role
	return Get().GetSystemPrompt(id)
}

// GetCuratorPrompt returns the digest curator's system prompt.
func GetCuratorPrompt() (string, error) {
	return Get().GetSystemPrompt(PromptIDs.Curator)
}

// MustGetAnalystPrompt is like GetAnalystPrompt but panics on error.
func MustGetAnalystPrompt(role string) string {
	p, err := GetAnalystPrompt(role)
	if err != nil {
		panic(err)
	}
	return p
}

// PromptIDs contains every known prompt identifier for this pipeline.
var PromptIDs = struct {
	Extractor string
	Merger    string
	Curator   string

	AnalystSkeptic    string
	AnalystEconomist  string
	AnalystDetective  string
}{
	Extractor: "extraction.information_unit",
	Merger:    "merger.fuse",
	Curator:   "curator.select",

	AnalystSkeptic:   "analyst.skeptic",
	AnalystEconomist: "analyst.economist",
	AnalystDetective: "analyst.detective",
}
