package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/y437li/infounit/pkg/core/utils"
)

// ErrNonRetryable marks a provider error the Gateway should not retry
// (bad API key, malformed request). Wrap with fmt.Errorf("...: %w", ErrNonRetryable).
var ErrNonRetryable = errors.New("llm: non-retryable error")

// ErrTimeout marks a provider call that exceeded its context deadline.
var ErrTimeout = errors.New("llm: call timed out")

// MaxRetries is the total number of attempts a Chat call makes, including
// the first (spec §4.1: "up to 3 attempts").
const MaxRetries = 3

// Gateway retries a Provider call with exponential backoff and salvages
// malformed JSON out of otherwise-successful completions.
type Gateway struct {
	provider Provider
	name     string
	onCall   func(CallRecord)
}

// CallRecord is emitted to onCall after every attempt, successful or not,
// for telemetry logging.
type CallRecord struct {
	Provider     string
	Purpose      string
	Attempt      int
	LatencyMS    int64
	Succeeded    bool
	Err          error
	PromptTokens int
	OutputTokens int
}

// NewGateway wraps provider, identified as name for telemetry, with retry
// and JSON-salvage behavior. onCall may be nil.
func NewGateway(name string, provider Provider, onCall func(CallRecord)) *Gateway {
	return &Gateway{provider: provider, name: name, onCall: onCall}
}

// Chat sends prompt/systemPrompt through the wrapped provider, retrying up
// to MaxRetries total attempts with backoff min(2^attempt, 30) seconds
// between attempts, per spec §4.1. A response wrapped in ErrNonRetryable
// (structured 4xx: bad request, auth) fails immediately without consuming
// the remaining retry budget.
func (g *Gateway) Chat(ctx context.Context, purpose, prompt, systemPrompt string, options map[string]interface{}) (string, TokenUsage, error) {
	var lastErr error
	for attempt := 0; attempt < MaxRetries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(minInt(1<<attempt, 30)) * time.Second
			select {
			case <-ctx.Done():
				return "", TokenUsage{}, fmt.Errorf("%w: %v", ErrTimeout, ctx.Err())
			case <-time.After(backoff):
			}
		}

		start := time.Now()
		adapted := g.provider.AdaptInstructions(systemPrompt)
		text, usage, err := g.provider.GenerateResponse(ctx, prompt, adapted, options)
		latency := time.Since(start).Milliseconds()

		g.record(purpose, attempt+1, latency, err == nil, err, usage)

		if err == nil {
			return text, usage, nil
		}
		lastErr = err
		if errors.Is(err, ErrNonRetryable) {
			break
		}
		if ctx.Err() != nil {
			return "", TokenUsage{}, fmt.Errorf("%w: %v", ErrTimeout, ctx.Err())
		}
	}
	return "", TokenUsage{}, fmt.Errorf("llm call failed after retries: %w", lastErr)
}

func (g *Gateway) record(purpose string, attempt int, latencyMS int64, ok bool, err error, usage TokenUsage) {
	if g.onCall == nil {
		return
	}
	g.onCall(CallRecord{
		Provider:     g.name,
		Purpose:      purpose,
		Attempt:      attempt,
		LatencyMS:    latencyMS,
		Succeeded:    ok,
		Err:          err,
		PromptTokens: usage.PromptTokens,
		OutputTokens: usage.OutputTokens,
	})
}

// ChatJSON is Chat plus a four-tier salvage pass on the response: strict
// json.Unmarshal, a fenced ```json code block, a brace-balanced substring,
// and finally json-repair followed by hjson as a last resort. The first
// tier to produce a value satisfying schema wins.
func (g *Gateway) ChatJSON(ctx context.Context, purpose, prompt, systemPrompt string, options map[string]interface{}, out interface{}) (TokenUsage, error) {
	text, usage, err := g.Chat(ctx, purpose, prompt, systemPrompt, options)
	if err != nil {
		return usage, err
	}
	return usage, SalvageJSON(text, out)
}

var fencedJSONPattern = regexp.MustCompile("(?s)```(?:json)?\\s*(.*?)\\s*```")

// SalvageJSON tries, in order: a strict parse, a fenced ```json block, a
// brace-balanced substring, then json-repair followed by hjson. Returns the
// first tier whose output unmarshals cleanly into out.
func SalvageJSON(text string, out interface{}) error {
	trimmed := strings.TrimSpace(text)

	if err := json.Unmarshal([]byte(trimmed), out); err == nil {
		return nil
	}

	if m := fencedJSONPattern.FindStringSubmatch(trimmed); m != nil {
		if err := json.Unmarshal([]byte(m[1]), out); err == nil {
			return nil
		}
	}

	if candidate := braceBalancedSubstring(trimmed); candidate != "" {
		if err := json.Unmarshal([]byte(candidate), out); err == nil {
			return nil
		}
	}

	if repaired, err := utils.RepairJSON(trimmed); err == nil {
		if err := json.Unmarshal([]byte(repaired), out); err == nil {
			return nil
		}
	}

	if reencoded, err := utils.ParseHJSON(trimmed); err == nil {
		if err := json.Unmarshal([]byte(reencoded), out); err == nil {
			return nil
		}
	}

	return fmt.Errorf("json salvage exhausted all tiers for %d-byte response", len(text))
}

// braceBalancedSubstring returns the first top-level {...} span in s, or ""
// if braces never balance.
func braceBalancedSubstring(s string) string {
	start := strings.IndexByte(s, '{')
	if start == -1 {
		return ""
	}
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		c := s[i]
		if inString {
			if escaped {
				escaped = false
			} else if c == '\\' {
				escaped = true
			} else if c == '"' {
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return s[start : i+1]
			}
		}
	}
	return ""
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
