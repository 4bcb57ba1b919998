// Package digest renders a models.Digest into the Markdown (and HTML)
// document handed off to an out-of-scope sender, per spec §6.
package digest

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/yuin/goldmark"

	"github.com/y437li/infounit/pkg/core/utils"
	"github.com/y437li/infounit/pkg/models"
)

// RenderMarkdown builds the Markdown document for d: a daily summary
// followed by a Top Picks section and a Quick Reads section, each unit
// rendered with its title, value score, and a one-line excerpt.
func RenderMarkdown(d models.Digest) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "# Daily Digest — %s\n\n", d.Date.Format("2006-01-02"))
	if d.DailySummary != "" {
		sb.WriteString(utils.CleanMarkdown(d.DailySummary))
		sb.WriteString("\n\n")
	}

	renderSection(&sb, "Top Picks", d.TopPicks)
	renderSection(&sb, "Quick Reads", d.QuickReads)

	fmt.Fprintf(&sb, "\n_%d candidates considered, %d excluded._\n", d.TotalCandidates, d.TotalExcluded)

	return sb.String()
}

func renderSection(sb *strings.Builder, title string, units []models.InformationUnit) {
	if len(units) == 0 {
		return
	}
	fmt.Fprintf(sb, "## %s\n\n", title)
	for _, u := range units {
		fmt.Fprintf(sb, "- **%s** (%.1f) — %s\n", u.Title, u.ValueScore(), firstLine(u.Summary))
	}
	sb.WriteString("\n")
}

func firstLine(s string) string {
	if idx := strings.IndexByte(s, '\n'); idx >= 0 {
		s = s[:idx]
	}
	if len(s) > 200 {
		s = s[:200]
	}
	return s
}

// RenderHTML converts a digest's Markdown rendering to HTML via goldmark,
// for senders that need rendered output rather than raw Markdown.
func RenderHTML(d models.Digest) (string, error) {
	md := RenderMarkdown(d)
	var buf bytes.Buffer
	if err := goldmark.Convert([]byte(md), &buf); err != nil {
		return "", fmt.Errorf("render digest html: %w", err)
	}
	return buf.String(), nil
}
