// Package llm wraps the concrete model providers (DeepSeek, Gemini) behind
// a retrying, JSON-salvaging Gateway used by every agent in the pipeline.
package llm

import (
	"context"
)

// TokenUsage reports how many tokens a single provider call consumed, for
// telemetry and cost accounting (spec §4.1, a named Gateway responsibility).
type TokenUsage struct {
	PromptTokens int
	OutputTokens int
}

// Provider is the interface every concrete model backend implements.
type Provider interface {
	GenerateResponse(ctx context.Context, prompt string, systemPrompt string, options map[string]interface{}) (string, TokenUsage, error)
	AdaptInstructions(rawInstructions string) string
}

var (
	_ Provider = (*DeepSeekProvider)(nil)
	_ Provider = (*GeminiProvider)(nil)
)
