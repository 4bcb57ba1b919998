// Package pipeline hosts the Orchestrator: the two-tier merge loop that
// turns a stream of articles into deduplicated, entity-linked Information
// Units.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/y437li/infounit/pkg/core/agent"
	"github.com/y437li/infounit/pkg/core/embedding"
	"github.com/y437li/infounit/pkg/core/store"
	"github.com/y437li/infounit/pkg/models"
)

// Mode selects how much work the orchestrator does per article. QUICK
// skips both the analyst phase and the semantic merge tier; STANDARD runs
// extraction and both merge tiers but skips analysts; DEEP runs everything
// (spec supplement: the legacy QUICK/STANDARD/DEEP modes, preserved from
// the original orchestrator and threaded through RunForArticle).
type Mode int

const (
	ModeQuick Mode = iota
	ModeStandard
	ModeDeep
)

// DefaultMode is used when a caller doesn't specify one.
const DefaultMode = ModeDeep

// SimilarityThreshold is the default semantic-tier merge threshold (spec
// §4.5 / §4.7).
const SimilarityThreshold = 0.60

// SimilarityThresholdStrict is used by callers that want a stricter match
// (spec §4.7, "0.65-0.70 in stricter modes").
const SimilarityThresholdStrict = 0.65

// semanticSearchK is how many neighbors the semantic tier considers.
const semanticSearchK = 3

// Orchestrator runs the per-article two-tier merge loop described in spec
// §4.5.
type Orchestrator struct {
	units     *store.UnitStore
	entities  *store.EntityStore
	extractor *agent.Extractor
	merger    *agent.Merger
	analysts  *agent.Analysts
	embedder  *embedding.Embedder
	logger    *slog.Logger

	globalSem chan struct{}
}

// New builds an Orchestrator. globalConcurrency bounds how many articles
// are processed concurrently across calls to RunForArticle (spec §5,
// default 5).
func New(units *store.UnitStore, entities *store.EntityStore, extractor *agent.Extractor, merger *agent.Merger, analysts *agent.Analysts, embedder *embedding.Embedder, logger *slog.Logger, globalConcurrency int) *Orchestrator {
	if globalConcurrency <= 0 {
		globalConcurrency = 5
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{
		units:     units,
		entities:  entities,
		extractor: extractor,
		merger:    merger,
		analysts:  analysts,
		embedder:  embedder,
		logger:    logger,
		globalSem: make(chan struct{}, globalConcurrency),
	}
}

// RunForArticle processes one article end to end: context build, the
// optional analyst phase (DEEP only), extraction, and the sequential
// per-candidate ingest loop. Returns the final (merged or novel) units
// produced for this article.
func (o *Orchestrator) RunForArticle(ctx context.Context, article models.Article, mode Mode) ([]models.InformationUnit, error) {
	o.globalSem <- struct{}{}
	defer func() { <-o.globalSem }()

	actx := agent.NewArticleContext(article)

	if mode == ModeDeep {
		o.analysts.Run(ctx, actx)
	}

	if err := o.extractor.Extract(ctx, actx); err != nil {
		return nil, fmt.Errorf("extract %q: %w", article.URL, err)
	}
	if len(actx.Candidates) == 0 {
		o.logger.Warn("article_analysis_failed", "url", article.URL, "reason", "no candidates extracted")
		return nil, nil
	}

	var results []models.InformationUnit
	for _, candidate := range actx.Candidates {
		preMergeID := candidate.ID
		unit, err := o.ingest(ctx, candidate, mode)
		if err != nil {
			o.logger.Error("article_analysis_failed", "url", article.URL, "unit_id", candidate.ID, "error", err)
			continue
		}

		entities := actx.Entities[preMergeID]
		relations := actx.Relations[preMergeID]
		if len(entities) > 0 || len(relations) > 0 {
			var eventTime *time.Time
			if t, err := time.Parse(time.RFC3339, candidate.EventTime); err == nil {
				eventTime = &t
			}
			if err := o.entities.ProcessExtracted(ctx, unit.ID, entities, relations, eventTime); err != nil {
				o.logger.Error("entity_merge_conflict", "unit_id", unit.ID, "error", err)
			}
		}

		results = append(results, unit)
	}
	return results, nil
}

// ingest runs one candidate through the exact-fingerprint tier, then (in
// STANDARD/DEEP mode) the semantic tier, and saves the result; entity
// ingest is left to RunForArticle. Candidates
// within one article are processed sequentially by the caller, which is
// what prevents two candidates from the same article both creating novel
// units for the same event (spec §4.5, "Ordering guarantee").
func (o *Orchestrator) ingest(ctx context.Context, candidate models.InformationUnit, mode Mode) (models.InformationUnit, error) {
	final := candidate

	if existing, err := o.units.GetByFingerprint(ctx, candidate.Fingerprint); err != nil {
		return candidate, fmt.Errorf("lookup fingerprint: %w", err)
	} else if existing != nil {
		merged, err := o.merger.Merge(ctx, []models.InformationUnit{*existing, candidate})
		if err != nil {
			return candidate, fmt.Errorf("merge exact match: %w", err)
		}
		final = merged
	} else if mode != ModeQuick {
		vector := o.embedder.Embed(ctx, candidate.Title+" "+candidate.Summary+" "+topInsights(candidate, 3))
		threshold := SimilarityThreshold
		if mode == ModeDeep {
			threshold = SimilarityThresholdStrict
		}
		similar, err := o.units.FindSimilar(ctx, vector, threshold, candidate.ID, semanticSearchK)
		if err != nil {
			return candidate, fmt.Errorf("semantic search: %w", err)
		}
		if len(similar) > 0 {
			group := append([]models.InformationUnit{candidate}, derefAll(similar)...)
			merged, err := o.merger.Merge(ctx, group)
			if err != nil {
				return candidate, fmt.Errorf("merge semantic match: %w", err)
			}
			merged.ID = similar[0].ID
			merged.Fingerprint = similar[0].Fingerprint
			final = merged
		}
	}

	if err := o.units.Save(ctx, &final); err != nil {
		return final, fmt.Errorf("save unit: %w", err)
	}

	return final, nil
}

func topInsights(u models.InformationUnit, n int) string {
	if len(u.KeyInsights) > n {
		return joinStrings(u.KeyInsights[:n])
	}
	return joinStrings(u.KeyInsights)
}

func joinStrings(items []string) string {
	out := ""
	for i, s := range items {
		if i > 0 {
			out += " "
		}
		out += s
	}
	return out
}

func derefAll(units []*models.InformationUnit) []models.InformationUnit {
	out := make([]models.InformationUnit, len(units))
	for i, u := range units {
		out[i] = *u
	}
	return out
}

// RunBatch fans articles out across the global semaphore, returning the
// union of all produced units. Order of results is not meaningful.
func (o *Orchestrator) RunBatch(ctx context.Context, articles []models.Article, mode Mode) ([]models.InformationUnit, error) {
	var wg sync.WaitGroup
	var mu sync.Mutex
	var all []models.InformationUnit
	var firstErr error

	for _, article := range articles {
		wg.Add(1)
		go func(a models.Article) {
			defer wg.Done()
			units, err := o.RunForArticle(ctx, a, mode)
			mu.Lock()
			defer mu.Unlock()
			if err != nil && firstErr == nil {
				firstErr = err
			}
			all = append(all, units...)
		}(article)
	}
	wg.Wait()
	return all, firstErr
}
