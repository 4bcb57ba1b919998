package ingest

import (
	"strings"
	"testing"
	"time"
)

func TestCleanHTMLStripsTagsAndNoise(t *testing.T) {
	html := `<div><script>track()</script><p>Hello <b>world</b>.</p><footer>copyright</footer></div>`
	got := CleanHTML(html)
	if strings.Contains(got, "track()") || strings.Contains(got, "copyright") {
		t.Errorf("expected script/footer stripped, got %q", got)
	}
	if !strings.Contains(got, "Hello world.") {
		t.Errorf("expected visible text preserved, got %q", got)
	}
}

func TestCollapseWhitespace(t *testing.T) {
	got := collapseWhitespace("a   b\n\nc\t d")
	if got != "a b c d" {
		t.Errorf("expected collapsed whitespace, got %q", got)
	}
}

func TestParseFeedTimeFallback(t *testing.T) {
	fallback := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	if got := parseFeedTime("not a date", fallback); !got.Equal(fallback) {
		t.Errorf("expected fallback time for unparsable input, got %v", got)
	}
	if got := parseFeedTime("", fallback); !got.Equal(fallback) {
		t.Errorf("expected fallback time for empty input, got %v", got)
	}
}

func TestParseFeedTimeRFC1123Z(t *testing.T) {
	fallback := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	got := parseFeedTime("Mon, 02 Jan 2006 15:04:05 -0700", fallback)
	if got.Year() != 2006 {
		t.Errorf("expected parsed year 2006, got %v", got.Year())
	}
}
