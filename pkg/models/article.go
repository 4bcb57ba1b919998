package models

import "time"

// Article is the ingress shape delivered by the out-of-scope fetcher. URL
// is the durable identity; callers must not duplicate it.
type Article struct {
	URL         string    `json:"url"`
	Title       string    `json:"title"`
	Content     string    `json:"content"`
	Summary     string    `json:"summary"`
	Source      string    `json:"source"`
	Category    string    `json:"category"`
	Author      string    `json:"author"`
	PublishedAt time.Time `json:"published_at"`
	FetchedAt   time.Time `json:"fetched_at"`
}

// Digest is the egress shape handed to an out-of-scope renderer/sender.
type Digest struct {
	Date         time.Time          `json:"date"`
	DailySummary string             `json:"daily_summary"`
	TopPicks     []InformationUnit  `json:"top_picks"`
	QuickReads   []InformationUnit  `json:"quick_reads"`
	TotalCandidates int             `json:"total_candidates"`
	TotalExcluded   int             `json:"total_excluded"`
}
