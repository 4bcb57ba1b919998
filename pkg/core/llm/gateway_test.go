package llm

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

// fakeProvider fails its first failCount calls, then succeeds (or always
// fails if failCount >= the number of calls made).
type fakeProvider struct {
	failCount    int
	calls        int
	nonRetryable bool
}

func (p *fakeProvider) GenerateResponse(ctx context.Context, prompt, systemPrompt string, options map[string]interface{}) (string, TokenUsage, error) {
	p.calls++
	if p.calls <= p.failCount {
		if p.nonRetryable {
			return "", TokenUsage{}, fmt.Errorf("bad request: %w", ErrNonRetryable)
		}
		return "", TokenUsage{}, errors.New("transient failure")
	}
	return "ok", TokenUsage{PromptTokens: 10, OutputTokens: 5}, nil
}

func (p *fakeProvider) AdaptInstructions(raw string) string { return raw }

// TestChatSucceedsOnThirdAttempt pins the S4 scenario (spec: fails twice,
// succeeds on the third attempt, retry_count = 2) against MaxRetries = 3
// total attempts, not 3 retries after the first failure.
func TestChatSucceedsOnThirdAttempt(t *testing.T) {
	p := &fakeProvider{failCount: 2}
	g := NewGateway("fake", p, nil)
	text, usage, err := g.Chat(context.Background(), "test", "prompt", "system", nil)
	if err != nil {
		t.Fatalf("expected success on third attempt, got error: %v", err)
	}
	if text != "ok" {
		t.Fatalf("unexpected text: %q", text)
	}
	if usage.PromptTokens != 10 || usage.OutputTokens != 5 {
		t.Errorf("expected token usage threaded through, got %+v", usage)
	}
	if p.calls != 3 {
		t.Errorf("expected exactly 3 total attempts, got %d", p.calls)
	}
}

// TestChatGivesUpAfterMaxRetries confirms the gateway never exceeds
// MaxRetries total attempts (1 initial + 2 more, not 1 + MaxRetries).
func TestChatGivesUpAfterMaxRetries(t *testing.T) {
	p := &fakeProvider{failCount: 100}
	g := NewGateway("fake", p, nil)
	_, _, err := g.Chat(context.Background(), "test", "prompt", "system", nil)
	if err == nil {
		t.Fatal("expected error after exhausting retries")
	}
	if p.calls != MaxRetries {
		t.Errorf("expected %d total attempts, got %d", MaxRetries, p.calls)
	}
}

// TestChatNonRetryableFailsFast confirms a non-retryable error (spec: a bad
// API key/structured 4xx) aborts immediately rather than consuming the
// whole backoff budget.
func TestChatNonRetryableFailsFast(t *testing.T) {
	p := &fakeProvider{failCount: 100, nonRetryable: true}
	g := NewGateway("fake", p, nil)
	_, _, err := g.Chat(context.Background(), "test", "prompt", "system", nil)
	if err == nil {
		t.Fatal("expected error")
	}
	if !errors.Is(err, ErrNonRetryable) {
		t.Errorf("expected wrapped ErrNonRetryable, got %v", err)
	}
	if p.calls != 1 {
		t.Errorf("expected exactly 1 attempt before failing fast, got %d", p.calls)
	}
}

type salvageTarget struct {
	Name  string `json:"name"`
	Score int    `json:"score"`
}

func TestSalvageJSONStrict(t *testing.T) {
	var out salvageTarget
	if err := SalvageJSON(`{"name":"a","score":3}`, &out); err != nil {
		t.Fatalf("strict parse failed: %v", err)
	}
	if out.Name != "a" || out.Score != 3 {
		t.Fatalf("unexpected result: %+v", out)
	}
}

func TestSalvageJSONFencedBlock(t *testing.T) {
	input := "Here is the result:\n```json\n{\"name\":\"b\",\"score\":5}\n```\nThanks."
	var out salvageTarget
	if err := SalvageJSON(input, &out); err != nil {
		t.Fatalf("fenced parse failed: %v", err)
	}
	if out.Name != "b" || out.Score != 5 {
		t.Fatalf("unexpected result: %+v", out)
	}
}

func TestSalvageJSONBraceBalanced(t *testing.T) {
	input := `Sure, the data is {"name":"c","score":7} as requested.`
	var out salvageTarget
	if err := SalvageJSON(input, &out); err != nil {
		t.Fatalf("brace-balanced parse failed: %v", err)
	}
	if out.Name != "c" || out.Score != 7 {
		t.Fatalf("unexpected result: %+v", out)
	}
}

func TestSalvageJSONRepairTier(t *testing.T) {
	input := `{name: 'd', score: 9,}`
	var out salvageTarget
	if err := SalvageJSON(input, &out); err != nil {
		t.Fatalf("repair tier failed: %v", err)
	}
	if out.Name != "d" || out.Score != 9 {
		t.Fatalf("unexpected result: %+v", out)
	}
}

func TestSalvageJSONExhausted(t *testing.T) {
	var out salvageTarget
	if err := SalvageJSON("this is not json at all !!!", &out); err == nil {
		t.Fatalf("expected error for unsalvageable input")
	}
}

func TestMinInt(t *testing.T) {
	if minInt(5, 30) != 5 {
		t.Fatalf("expected 5")
	}
	if minInt(64, 30) != 30 {
		t.Fatalf("expected 30")
	}
}
