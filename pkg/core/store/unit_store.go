package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/y437li/infounit/pkg/models"
)

// Index is the minimal vector-search capability the unit store delegates
// semantic-tier merge lookups to. Implemented by pkg/core/vectorindex.
type Index interface {
	Upsert(ctx context.Context, id string, vector []float32) error
	Search(ctx context.Context, vector []float32, topK int) ([]SearchHit, error)
}

// SearchHit is one result of a vector index similarity search.
type SearchHit struct {
	ID    string
	Score float64
}

// UnitStore persists Information Units and resolves merge lookups against
// both the exact-fingerprint index and, when configured, a vector index for
// semantic near-duplicate detection.
type UnitStore struct {
	pool  *pgxpool.Pool
	index Index
}

// NewUnitStore creates a unit store. index may be nil, in which case
// FindSimilar always returns no hits (exact-fingerprint matching still
// works through GetByFingerprint).
func NewUnitStore(pool *pgxpool.Pool, index Index) *UnitStore {
	return &UnitStore{pool: pool, index: index}
}

// GetByFingerprint returns the unit with the given exact fingerprint, or
// nil if none exists.
func (s *UnitStore) GetByFingerprint(ctx context.Context, fingerprint string) (*models.InformationUnit, error) {
	return s.scanOne(ctx, "SELECT "+unitColumns+" FROM information_units WHERE fingerprint = $1", fingerprint)
}

// GetByID returns the unit with the given id, or nil if none exists.
func (s *UnitStore) GetByID(ctx context.Context, id string) (*models.InformationUnit, error) {
	return s.scanOne(ctx, "SELECT "+unitColumns+" FROM information_units WHERE id = $1", id)
}

// FindSimilar searches the vector index for units whose embedding exceeds
// threshold cosine similarity with vector, excluding excludeID, then hydrates
// the matching rows. Returns nil, nil if no index is configured.
func (s *UnitStore) FindSimilar(ctx context.Context, vector []float32, threshold float64, excludeID string, topK int) ([]*models.InformationUnit, error) {
	if s.index == nil {
		return nil, nil
	}
	hits, err := s.index.Search(ctx, vector, topK)
	if err != nil {
		return nil, fmt.Errorf("vector index search: %w", err)
	}
	var out []*models.InformationUnit
	for _, h := range hits {
		if h.ID == excludeID || h.Score < threshold {
			continue
		}
		unit, err := s.GetByID(ctx, h.ID)
		if err != nil {
			return nil, err
		}
		if unit != nil {
			out = append(out, unit)
		}
	}
	return out, nil
}

// Save upserts a unit by fingerprint. On conflict, created_at is preserved
// from the existing row (Postgres translation of the original's
// COALESCE-subquery trick); updated_at is always stamped with the current
// time so it advances on every merge/re-save, and every other column is
// replaced with the incoming values.
func (s *UnitStore) Save(ctx context.Context, unit *models.InformationUnit) error {
	keyInsights, err := json.Marshal(unit.KeyInsights)
	if err != nil {
		return fmt.Errorf("marshal key_insights: %w", err)
	}
	subtypes, err := json.Marshal(unit.StateChangeSubtypes)
	if err != nil {
		return fmt.Errorf("marshal state_change_subtypes: %w", err)
	}
	hierarchy, err := json.Marshal(unit.EntityHierarchy)
	if err != nil {
		return fmt.Errorf("marshal entity_hierarchy: %w", err)
	}
	who, err := json.Marshal(unit.Who)
	if err != nil {
		return fmt.Errorf("marshal who: %w", err)
	}
	tags, err := json.Marshal(unit.Tags)
	if err != nil {
		return fmt.Errorf("marshal tags: %w", err)
	}

	createdAt := unit.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}
	updatedAt := time.Now()

	query := `
		INSERT INTO information_units (
			id, fingerprint, type, title, content, summary, analysis_content, key_insights,
			event_time, report_time, time_sensitivity,
			information_gain, actionability, scarcity, impact_magnitude,
			state_change_type, state_change_subtypes, entity_hierarchy,
			who, what, "when", "where", why, how,
			credibility_score, importance_score, analysis_depth_score, sentiment,
			tags, merged_count, is_sent, entity_processed, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8,
			$9, $10, $11,
			$12, $13, $14, $15,
			$16, $17, $18,
			$19, $20, $21, $22, $23, $24,
			$25, $26, $27, $28,
			$29, $30, $31, $32, $33, $34
		)
		ON CONFLICT (fingerprint) DO UPDATE SET
			type = EXCLUDED.type,
			title = EXCLUDED.title,
			content = EXCLUDED.content,
			summary = EXCLUDED.summary,
			analysis_content = EXCLUDED.analysis_content,
			key_insights = EXCLUDED.key_insights,
			event_time = EXCLUDED.event_time,
			report_time = EXCLUDED.report_time,
			time_sensitivity = EXCLUDED.time_sensitivity,
			information_gain = EXCLUDED.information_gain,
			actionability = EXCLUDED.actionability,
			scarcity = EXCLUDED.scarcity,
			impact_magnitude = EXCLUDED.impact_magnitude,
			state_change_type = EXCLUDED.state_change_type,
			state_change_subtypes = EXCLUDED.state_change_subtypes,
			entity_hierarchy = EXCLUDED.entity_hierarchy,
			who = EXCLUDED.who,
			what = EXCLUDED.what,
			"when" = EXCLUDED."when",
			"where" = EXCLUDED."where",
			why = EXCLUDED.why,
			how = EXCLUDED.how,
			credibility_score = EXCLUDED.credibility_score,
			importance_score = EXCLUDED.importance_score,
			analysis_depth_score = EXCLUDED.analysis_depth_score,
			sentiment = EXCLUDED.sentiment,
			tags = EXCLUDED.tags,
			merged_count = EXCLUDED.merged_count,
			is_sent = EXCLUDED.is_sent,
			entity_processed = EXCLUDED.entity_processed,
			updated_at = EXCLUDED.updated_at
			-- created_at intentionally omitted: the original row's value survives.
	`

	_, err = s.pool.Exec(ctx, query,
		unit.ID, unit.Fingerprint, unit.Type, unit.Title, unit.Content, unit.Summary, unit.AnalysisContent, keyInsights,
		unit.EventTime, unit.ReportTime, unit.TimeSensitivity,
		unit.InformationGain, unit.Actionability, unit.Scarcity, unit.ImpactMagnitude,
		unit.StateChangeType, subtypes, hierarchy,
		who, unit.What, unit.When, unit.Where, unit.Why, unit.How,
		unit.CredibilityScore, unit.ImportanceScore, unit.AnalysisDepth, unit.Sentiment,
		tags, unit.MergedCount, unit.IsSent, unit.EntityProcessed, createdAt, updatedAt,
	)
	if err != nil {
		return fmt.Errorf("save information unit: %w", err)
	}
	unit.CreatedAt = createdAt
	unit.UpdatedAt = updatedAt

	if len(unit.Sources) > 0 {
		if err := s.replaceSources(ctx, unit.ID, unit.Sources); err != nil {
			return err
		}
	}
	return nil
}

func (s *UnitStore) replaceSources(ctx context.Context, unitID string, sources []models.SourceReference) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, "DELETE FROM source_references WHERE unit_id = $1", unitID); err != nil {
		return fmt.Errorf("clear source_references: %w", err)
	}
	for _, src := range sources {
		_, err := tx.Exec(ctx, `
			INSERT INTO source_references (unit_id, url, title, source_name, published_at, excerpt, credibility_tier)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			ON CONFLICT (unit_id, url) DO NOTHING
		`, unitID, src.URL, src.Title, src.SourceName, src.PublishedAt, src.Excerpt, src.CredibilityTier)
		if err != nil {
			return fmt.Errorf("insert source_reference: %w", err)
		}
	}
	return tx.Commit(ctx)
}

// GetUnsent returns up to limit units not yet delivered in a digest, ordered
// by analysis_depth_score desc then importance_score desc (spec §4.9 curator
// candidate ordering).
func (s *UnitStore) GetUnsent(ctx context.Context, limit int) ([]*models.InformationUnit, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+unitColumns+` FROM information_units
		WHERE is_sent = FALSE
		ORDER BY analysis_depth_score DESC, importance_score DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("query unsent units: %w", err)
	}
	defer rows.Close()
	return s.scanAll(ctx, rows)
}

// MarkSent flags the given unit ids as delivered.
func (s *UnitStore) MarkSent(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := s.pool.Exec(ctx, `UPDATE information_units SET is_sent = TRUE, updated_at = now() WHERE id = ANY($1)`, ids)
	if err != nil {
		return fmt.Errorf("mark sent: %w", err)
	}
	return nil
}

// ListUnprocessedEntities is used by the backfill-entities CLI path; it
// returns up to limit units flagged entity_processed = FALSE, oldest first,
// so the entity graph can catch up on units ingested before it existed.
func (s *UnitStore) ListUnprocessedEntities(ctx context.Context, limit int) ([]*models.InformationUnit, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+unitColumns+` FROM information_units
		WHERE entity_processed = FALSE
		ORDER BY created_at ASC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("query unprocessed entities: %w", err)
	}
	defer rows.Close()
	return s.scanAll(ctx, rows)
}

// MarkEntityProcessed flags a unit as having passed through entity extraction.
func (s *UnitStore) MarkEntityProcessed(ctx context.Context, id string) error {
	_, err := s.pool.Exec(ctx, `UPDATE information_units SET entity_processed = TRUE, updated_at = now() WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("mark entity processed: %w", err)
	}
	return nil
}

const unitColumns = `
	id, fingerprint, type, title, content, summary, analysis_content, key_insights,
	event_time, report_time, time_sensitivity,
	information_gain, actionability, scarcity, impact_magnitude,
	state_change_type, state_change_subtypes, entity_hierarchy,
	who, what, "when", "where", why, how,
	credibility_score, importance_score, analysis_depth_score, sentiment,
	tags, merged_count, is_sent, entity_processed, created_at, updated_at
`

func (s *UnitStore) scanOne(ctx context.Context, query string, arg string) (*models.InformationUnit, error) {
	row := s.pool.QueryRow(ctx, query, arg)
	unit, err := scanUnit(row)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan information unit: %w", err)
	}
	if err := s.hydrateSources(ctx, unit); err != nil {
		return nil, err
	}
	return unit, nil
}

func (s *UnitStore) scanAll(ctx context.Context, rows pgx.Rows) ([]*models.InformationUnit, error) {
	var out []*models.InformationUnit
	for rows.Next() {
		unit, err := scanUnit(rows)
		if err != nil {
			return nil, fmt.Errorf("scan information unit: %w", err)
		}
		out = append(out, unit)
	}
	for _, unit := range out {
		if err := s.hydrateSources(ctx, unit); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (s *UnitStore) hydrateSources(ctx context.Context, unit *models.InformationUnit) error {
	rows, err := s.pool.Query(ctx, `
		SELECT url, title, source_name, published_at, excerpt, credibility_tier
		FROM source_references WHERE unit_id = $1
	`, unit.ID)
	if err != nil {
		return fmt.Errorf("query source_references: %w", err)
	}
	defer rows.Close()

	var sources []models.SourceReference
	for rows.Next() {
		var src models.SourceReference
		var publishedAt *time.Time
		if err := rows.Scan(&src.URL, &src.Title, &src.SourceName, &publishedAt, &src.Excerpt, &src.CredibilityTier); err != nil {
			return fmt.Errorf("scan source_reference: %w", err)
		}
		if publishedAt != nil {
			src.PublishedAt = *publishedAt
		}
		sources = append(sources, src)
	}
	unit.Sources = sources
	return nil
}

// rowScanner abstracts pgx.Row and pgx.Rows, both of which expose Scan.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanUnit(row rowScanner) (*models.InformationUnit, error) {
	var u models.InformationUnit
	var keyInsights, subtypes, hierarchy, who, tags []byte

	err := row.Scan(
		&u.ID, &u.Fingerprint, &u.Type, &u.Title, &u.Content, &u.Summary, &u.AnalysisContent, &keyInsights,
		&u.EventTime, &u.ReportTime, &u.TimeSensitivity,
		&u.InformationGain, &u.Actionability, &u.Scarcity, &u.ImpactMagnitude,
		&u.StateChangeType, &subtypes, &hierarchy,
		&who, &u.What, &u.When, &u.Where, &u.Why, &u.How,
		&u.CredibilityScore, &u.ImportanceScore, &u.AnalysisDepth, &u.Sentiment,
		&tags, &u.MergedCount, &u.IsSent, &u.EntityProcessed, &u.CreatedAt, &u.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if len(keyInsights) > 0 {
		json.Unmarshal(keyInsights, &u.KeyInsights)
	}
	if len(subtypes) > 0 {
		json.Unmarshal(subtypes, &u.StateChangeSubtypes)
	}
	if len(hierarchy) > 0 {
		json.Unmarshal(hierarchy, &u.EntityHierarchy)
	}
	if len(who) > 0 {
		json.Unmarshal(who, &u.Who)
	}
	if len(tags) > 0 {
		json.Unmarshal(tags, &u.Tags)
	}
	return &u, nil
}
