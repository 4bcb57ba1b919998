package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/y437li/infounit/pkg/core/agent"
	"github.com/y437li/infounit/pkg/core/config"
	"github.com/y437li/infounit/pkg/core/digest"
	"github.com/y437li/infounit/pkg/core/embedding"
	"github.com/y437li/infounit/pkg/core/ingest"
	"github.com/y437li/infounit/pkg/core/llm"
	"github.com/y437li/infounit/pkg/core/pipeline"
	"github.com/y437li/infounit/pkg/core/prompt"
	"github.com/y437li/infounit/pkg/core/store"
	"github.com/y437li/infounit/pkg/core/telemetry"
	"github.com/y437li/infounit/pkg/core/vectorindex"
	"github.com/y437li/infounit/pkg/models"
)

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	configPath := flag.String("config", "config.yaml", "path to the pipeline's YAML config")
	promptsDir := flag.String("prompts", "prompts", "path to the prompt registry directory")
	mode := flag.String("mode", "", "override schedule.default_mode (quick|standard|deep)")
	flag.Parse()

	verb := "run-cycle"
	if flag.NArg() > 0 {
		verb = flag.Arg(0)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Error("startup_failed", "error", err)
		os.Exit(1)
	}

	if cfg.AI.DeepSeekAPIKey != "" {
		os.Setenv("DEEPSEEK_API_KEY", cfg.AI.DeepSeekAPIKey)
	}
	if cfg.AI.GeminiAPIKey != "" {
		os.Setenv("GEMINI_API_KEY", cfg.AI.GeminiAPIKey)
	}
	if cfg.Storage.PostgresDSN != "" {
		os.Setenv("DATABASE_URL", cfg.Storage.PostgresDSN)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := prompt.LoadFromDirectory(*promptsDir); err != nil {
		logger.Warn("prompt_registry_load_failed", "dir", *promptsDir, "error", err)
	}

	if err := store.InitDB(ctx); err != nil {
		logger.Error("startup_failed", "error", err)
		os.Exit(1)
	}
	defer store.Close()

	vecIndex, err := vectorindex.Open(cfg.Storage.VectorDBPath)
	if err != nil {
		logger.Error("startup_failed", "error", err)
		os.Exit(1)
	}
	defer vecIndex.Close()
	if stats, err := vecIndex.Stats(ctx); err == nil && !stats.UsingVec0 {
		logger.Warn("vector_backend_unavailable", "path", cfg.Storage.VectorDBPath, "fallback", "brute_force_flat_table")
	}

	unitStore := store.NewUnitStore(store.GetPool(), vecIndex)
	entityStore := store.NewEntityStore(store.GetPool())

	recorder := telemetry.NewRecorder(store.GetPool(), logger, telemetry.DefaultQueueSize)
	defer recorder.Close()

	gateways := map[string]*llm.Gateway{
		"deepseek": llm.NewGateway("deepseek", &llm.DeepSeekProvider{}, recorder.Record),
		"gemini":   llm.NewGateway("gemini", &llm.GeminiProvider{}, recorder.Record),
	}
	manager := agent.NewManager(cfg.AgentManagerConfig(), gateways)

	extractor := agent.NewExtractor(manager)
	merger := agent.NewMerger(manager)
	analysts := agent.NewAnalysts(manager)
	curator := agent.NewCurator(manager)
	embedder := embedding.New(nil)

	orchestrator := pipeline.New(unitStore, entityStore, extractor, merger, analysts, embedder, logger, cfg.Schedule.GlobalConcurrency)

	runMode := resolveMode(*mode, cfg.Schedule.DefaultMode)

	var exitErr error
	switch verb {
	case "run-cycle":
		exitErr = runCycle(ctx, cfg, orchestrator, runMode, logger)
	case "send-digest":
		exitErr = sendDigest(ctx, unitStore, curator, logger)
	case "reprocess":
		exitErr = reprocess(ctx, cfg, orchestrator, runMode, logger)
	case "backfill-entities":
		exitErr = backfillEntities(ctx, unitStore, entityStore, extractor, logger)
	default:
		fmt.Fprintf(os.Stderr, "unknown verb %q (want run-cycle|send-digest|reprocess|backfill-entities)\n", verb)
		os.Exit(2)
	}

	if exitErr != nil {
		logger.Error("pipeline_run_failed", "verb", verb, "error", exitErr)
		os.Exit(1)
	}
}

func resolveMode(flagValue, configValue string) pipeline.Mode {
	v := flagValue
	if v == "" {
		v = configValue
	}
	switch v {
	case "quick":
		return pipeline.ModeQuick
	case "standard":
		return pipeline.ModeStandard
	default:
		return pipeline.ModeDeep
	}
}

func feedFetchers(cfg *config.AppConfig) []ingest.Fetcher {
	fetchers := make([]ingest.Fetcher, 0, len(cfg.Feeds))
	for _, f := range cfg.Feeds {
		fetchers = append(fetchers, ingest.NewFeedFetcher(f.Name, f.URL, f.Category))
	}
	return fetchers
}

// runCycle fetches every configured feed and runs the full merge loop over
// whatever articles come back.
func runCycle(ctx context.Context, cfg *config.AppConfig, orch *pipeline.Orchestrator, mode pipeline.Mode, logger *slog.Logger) error {
	var all []models.Article
	for _, fetcher := range feedFetchers(cfg) {
		articles, err := fetcher.Fetch(ctx)
		if err != nil {
			logger.Warn("feed_fetch_failed", "error", err)
			continue
		}
		all = append(all, articles...)
	}

	logger.Info("cycle_started", "article_count", len(all), "mode", mode)
	units, err := orch.RunBatch(ctx, all, mode)
	if err != nil {
		logger.Warn("cycle_completed_with_errors", "error", err)
	}
	logger.Info("cycle_completed", "unit_count", len(units))
	return nil
}

// sendDigest selects today's top picks/quick reads and renders them to
// Markdown on stdout (handoff to an out-of-scope sender).
func sendDigest(ctx context.Context, units *store.UnitStore, curator *agent.Curator, logger *slog.Logger) error {
	unsent, err := units.GetUnsent(ctx, 200)
	if err != nil {
		return fmt.Errorf("load unsent units: %w", err)
	}

	unitValues := make([]models.InformationUnit, 0, len(unsent))
	ids := make([]string, 0, len(unsent))
	for _, u := range unsent {
		unitValues = append(unitValues, *u)
		ids = append(ids, u.ID)
	}

	d, err := curator.Select(ctx, unitValues)
	if err != nil {
		logger.Warn("curation_failed_using_fallback", "error", err)
	}
	d.Date = time.Now()

	fmt.Println(digest.RenderMarkdown(d))

	if err := units.MarkSent(ctx, ids); err != nil {
		return fmt.Errorf("mark sent: %w", err)
	}
	return nil
}

// reprocess re-fetches every configured feed and re-runs the merge loop in
// STANDARD mode (extraction and both merge tiers, no analyst phase). The
// requested mode is only logged.
func reprocess(ctx context.Context, cfg *config.AppConfig, orch *pipeline.Orchestrator, mode pipeline.Mode, logger *slog.Logger) error {
	var all []models.Article
	for _, fetcher := range feedFetchers(cfg) {
		articles, err := fetcher.Fetch(ctx)
		if err != nil {
			logger.Warn("feed_fetch_failed", "error", err)
			continue
		}
		all = append(all, articles...)
	}
	units, err := orch.RunBatch(ctx, all, pipeline.ModeStandard)
	if err != nil {
		logger.Warn("reprocess_completed_with_errors", "error", err)
	}
	logger.Info("reprocess_completed", "unit_count", len(units), "requested_mode", mode)
	return nil
}

// backfillEntities re-runs the full Extractor over every unit with
// entity_processed = false and passes only the extracted entities and
// relations to the entity store; the re-extracted units are discarded.
func backfillEntities(ctx context.Context, units *store.UnitStore, entities *store.EntityStore, extractor *agent.Extractor, logger *slog.Logger) error {
	pending, err := units.ListUnprocessedEntities(ctx, 500)
	if err != nil {
		return fmt.Errorf("list unprocessed entities: %w", err)
	}

	for _, unit := range pending {
		actx := agent.NewArticleContext(models.Article{
			Title:   unit.Title,
			Content: unit.Content + "\n" + unit.AnalysisContent,
		})
		if err := extractor.Extract(ctx, actx); err != nil {
			logger.Warn("entity_merge_conflict", "unit_id", unit.ID, "error", err)
			continue
		}
		for _, candidate := range actx.Candidates {
			entitiesForUnit := actx.Entities[candidate.ID]
			relationsForUnit := actx.Relations[candidate.ID]
			if len(entitiesForUnit) == 0 && len(relationsForUnit) == 0 {
				continue
			}
			if err := entities.ProcessExtracted(ctx, unit.ID, entitiesForUnit, relationsForUnit, nil); err != nil {
				logger.Warn("entity_merge_conflict", "unit_id", unit.ID, "error", err)
			}
		}
		if err := units.MarkEntityProcessed(ctx, unit.ID); err != nil {
			logger.Warn("db_write_conflict_aborted", "unit_id", unit.ID, "error", err)
		}
	}
	logger.Info("backfill_entities_completed", "processed", len(pending))
	return nil
}
