package store

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/y437li/infounit/pkg/models"
)

// EntityStore persists the longitudinal entity graph: entities, their
// aliases, unit mentions, and directed relations between them.
type EntityStore struct {
	pool *pgxpool.Pool
}

// NewEntityStore creates an entity store.
func NewEntityStore(pool *pgxpool.Pool) *EntityStore {
	return &EntityStore{pool: pool}
}

// ProcessExtracted resolves each raw extracted entity against the graph
// (creating it on first sight), records its mention against unitID, updates
// running mention counters, then resolves and merges the extracted
// relations. It is the single write path entities and relations enter the
// graph through.
func (s *EntityStore) ProcessExtracted(ctx context.Context, unitID string, entities []models.ExtractedEntity, relations []models.ExtractedRelation, eventTime *time.Time) error {
	resolved := make(map[string]string) // extracted name -> entity id

	for _, ext := range entities {
		entityID, err := s.resolveOrCreate(ctx, ext)
		if err != nil {
			return fmt.Errorf("resolve entity %q: %w", ext.Name, err)
		}
		resolved[ext.Name] = entityID

		role := models.EntityRole(ext.Role)
		if role == "" {
			role = models.RoleMentioned
		}
		dimension, delta := "", ""
		for dim, d := range ext.StateChange {
			dimension, delta = dim, d
			break
		}
		if err := s.recordMention(ctx, entityID, unitID, role, dimension, delta, eventTime); err != nil {
			return fmt.Errorf("record mention for %q: %w", ext.Name, err)
		}
		if err := s.touchCounters(ctx, entityID, eventTime); err != nil {
			return fmt.Errorf("update counters for %q: %w", ext.Name, err)
		}
	}

	for _, rel := range relations {
		sourceID, ok := resolved[rel.Source]
		if !ok {
			var err error
			sourceID, err = s.resolveByName(ctx, rel.Source)
			if err != nil || sourceID == "" {
				continue
			}
		}
		targetID, ok := resolved[rel.Target]
		if !ok {
			var err error
			targetID, err = s.resolveByName(ctx, rel.Target)
			if err != nil || targetID == "" {
				continue
			}
		}
		relType := models.RelationType(rel.Relation)
		if !models.ValidRelationType(relType) {
			continue
		}
		if err := s.mergeRelation(ctx, sourceID, targetID, relType, unitID); err != nil {
			return fmt.Errorf("merge relation %s->%s: %w", rel.Source, rel.Target, err)
		}
	}

	return nil
}

func (s *EntityStore) resolveOrCreate(ctx context.Context, ext models.ExtractedEntity) (string, error) {
	normalized := normalizeAlias(ext.Name)
	if id, err := s.resolveAlias(ctx, normalized); err == nil && id != "" {
		return id, nil
	}
	for _, alias := range ext.Aliases {
		if id, err := s.resolveAlias(ctx, normalizeAlias(alias)); err == nil && id != "" {
			if err := s.addAlias(ctx, id, normalized, false, "extractor"); err != nil {
				return "", err
			}
			return id, nil
		}
	}

	entityID := uuid.NewString()
	entityType := models.EntityType(ext.Type)
	_, err := s.pool.Exec(ctx, `
		INSERT INTO entities (id, canonical_name, type, created_at)
		VALUES ($1, $2, $3, now())
		ON CONFLICT (canonical_name) DO NOTHING
	`, entityID, ext.Name, entityType)
	if err != nil {
		return "", fmt.Errorf("insert entity: %w", err)
	}

	existingID, err := s.GetIDByCanonicalName(ctx, ext.Name)
	if err != nil {
		return "", err
	}
	if existingID != "" {
		entityID = existingID
	}

	if err := s.addAlias(ctx, entityID, normalized, true, "extractor"); err != nil {
		return "", err
	}
	for _, alias := range ext.Aliases {
		s.addAlias(ctx, entityID, normalizeAlias(alias), false, "extractor")
	}
	return entityID, nil
}

// GetIDByCanonicalName returns an entity's id by exact canonical name, or
// "" if none exists.
func (s *EntityStore) GetIDByCanonicalName(ctx context.Context, name string) (string, error) {
	var id string
	err := s.pool.QueryRow(ctx, `SELECT id FROM entities WHERE canonical_name = $1`, name).Scan(&id)
	if err == pgx.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("lookup entity by name: %w", err)
	}
	return id, nil
}

func (s *EntityStore) resolveByName(ctx context.Context, name string) (string, error) {
	if id, err := s.resolveAlias(ctx, normalizeAlias(name)); err == nil && id != "" {
		return id, nil
	}
	return s.GetIDByCanonicalName(ctx, name)
}

// resolveAlias looks up the entity id a normalized alias currently points
// to, or "" if the alias is unknown. Tries an exact match first, then
// falls back to a substring match (normalized appearing anywhere inside a
// known alias), mirroring the original's exact-then-LIKE resolution.
func (s *EntityStore) resolveAlias(ctx context.Context, normalized string) (string, error) {
	var id string
	err := s.pool.QueryRow(ctx, `SELECT entity_id FROM entity_aliases WHERE alias = $1`, normalized).Scan(&id)
	if err == nil {
		return id, nil
	}
	if err != pgx.ErrNoRows {
		return "", fmt.Errorf("lookup alias: %w", err)
	}

	err = s.pool.QueryRow(ctx, `SELECT entity_id FROM entity_aliases WHERE alias LIKE $1 LIMIT 1`, "%"+normalized+"%").Scan(&id)
	if err == pgx.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("lookup alias by substring: %w", err)
	}
	return id, nil
}

func (s *EntityStore) addAlias(ctx context.Context, entityID, normalized string, isPrimary bool, source string) error {
	if normalized == "" {
		return nil
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO entity_aliases (alias, entity_id, is_primary, source, created_at)
		VALUES ($1, $2, $3, $4, now())
		ON CONFLICT (alias) DO NOTHING
	`, normalized, entityID, isPrimary, source)
	if err != nil {
		return fmt.Errorf("insert alias: %w", err)
	}
	return nil
}

func normalizeAlias(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func (s *EntityStore) recordMention(ctx context.Context, entityID, unitID string, role models.EntityRole, dimension, delta string, eventTime *time.Time) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO entity_mentions (entity_id, unit_id, role, state_dimension, state_delta, event_time, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, now())
		ON CONFLICT (entity_id, unit_id) DO UPDATE SET
			role = EXCLUDED.role,
			state_dimension = EXCLUDED.state_dimension,
			state_delta = EXCLUDED.state_delta,
			event_time = EXCLUDED.event_time
	`, entityID, unitID, role, dimension, delta, eventTime)
	if err != nil {
		return fmt.Errorf("insert entity_mention: %w", err)
	}
	return nil
}

func (s *EntityStore) touchCounters(ctx context.Context, entityID string, eventTime *time.Time) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE entities SET
			mention_count = mention_count + 1,
			first_mentioned = COALESCE(first_mentioned, COALESCE($2, now())),
			last_mentioned = GREATEST(COALESCE(last_mentioned, to_timestamp(0)), COALESCE($2, now()))
		WHERE id = $1
	`, entityID, eventTime)
	if err != nil {
		return fmt.Errorf("update entity counters: %w", err)
	}
	return nil
}

// mergeRelation inserts a new relation or strengthens an existing one: per
// the "strengthened but never weakened" invariant, strength and confidence
// only ever move up to max(existing, new), and the triggering unit is
// appended to the evidence list.
func (s *EntityStore) mergeRelation(ctx context.Context, sourceID, targetID string, relType models.RelationType, unitID string) error {
	const newStrength, newConfidence = 0.5, 0.5

	var existingID string
	var strength, confidence float64
	var evidenceJSON []byte
	err := s.pool.QueryRow(ctx, `
		SELECT id, strength, confidence, evidence_unit_ids FROM entity_relations
		WHERE source_id = $1 AND target_id = $2 AND relation_type = $3
	`, sourceID, targetID, relType).Scan(&existingID, &strength, &confidence, &evidenceJSON)

	if err == pgx.ErrNoRows {
		evidence, _ := json.Marshal([]string{unitID})
		_, err := s.pool.Exec(ctx, `
			INSERT INTO entity_relations (source_id, target_id, relation_type, strength, confidence, evidence_unit_ids, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, now())
		`, sourceID, targetID, relType, newStrength, newConfidence, evidence)
		if err != nil {
			return fmt.Errorf("insert entity_relation: %w", err)
		}
		return nil
	}
	if err != nil {
		return fmt.Errorf("lookup entity_relation: %w", err)
	}

	var evidenceIDs []string
	json.Unmarshal(evidenceJSON, &evidenceIDs)
	if !contains(evidenceIDs, unitID) {
		evidenceIDs = append(evidenceIDs, unitID)
	}
	evidence, _ := json.Marshal(evidenceIDs)

	_, err = s.pool.Exec(ctx, `
		UPDATE entity_relations SET
			strength = $2,
			confidence = $3,
			evidence_unit_ids = $4
		WHERE id = $1
	`, existingID, maxFloat(strength, newStrength), maxFloat(confidence, newConfidence), evidence)
	if err != nil {
		return fmt.Errorf("update entity_relation: %w", err)
	}
	return nil
}

func contains(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}

func maxFloat(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}

// GetByName returns an entity by canonical name, or nil if none exists.
func (s *EntityStore) GetByName(ctx context.Context, name string) (*models.Entity, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, canonical_name, type, l3_root, l2_sector, mention_count, first_mentioned, last_mentioned, created_at
		FROM entities WHERE canonical_name = $1
	`, name)
	var e models.Entity
	err := row.Scan(&e.ID, &e.CanonicalName, &e.Type, &e.L3Root, &e.L2Sector, &e.MentionCount, &e.FirstMentioned, &e.LastMentioned, &e.CreatedAt)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get entity by name: %w", err)
	}
	return &e, nil
}

// GetAliases returns every alias currently registered for entityID.
func (s *EntityStore) GetAliases(ctx context.Context, entityID string) ([]models.EntityAlias, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT alias, entity_id, is_primary, source, created_at FROM entity_aliases WHERE entity_id = $1
	`, entityID)
	if err != nil {
		return nil, fmt.Errorf("list aliases: %w", err)
	}
	defer rows.Close()

	var out []models.EntityAlias
	for rows.Next() {
		var a models.EntityAlias
		if err := rows.Scan(&a.Alias, &a.EntityID, &a.IsPrimary, &a.Source, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan alias: %w", err)
		}
		out = append(out, a)
	}
	return out, nil
}

// GetMentionsByEntity returns every recorded mention of entityID, most
// recent first.
func (s *EntityStore) GetMentionsByEntity(ctx context.Context, entityID string) ([]models.EntityMention, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, entity_id, unit_id, role, sentiment, state_dimension, state_delta, event_time, created_at
		FROM entity_mentions WHERE entity_id = $1 ORDER BY created_at DESC
	`, entityID)
	if err != nil {
		return nil, fmt.Errorf("list mentions: %w", err)
	}
	defer rows.Close()

	var out []models.EntityMention
	for rows.Next() {
		var m models.EntityMention
		var id int64
		if err := rows.Scan(&id, &m.EntityID, &m.UnitID, &m.Role, &m.Sentiment, &m.StateDimension, &m.StateDelta, &m.EventTime, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan mention: %w", err)
		}
		m.ID = fmt.Sprintf("%d", id)
		out = append(out, m)
	}
	return out, nil
}

// GetRelations returns entityID's relations filtered by direction: "out"
// (entityID is the source), "in" (entityID is the target), or "both"
// (either). Any other value is treated as "both".
func (s *EntityStore) GetRelations(ctx context.Context, entityID string, direction string) ([]models.EntityRelation, error) {
	where := relationDirectionClause(direction)

	rows, err := s.pool.Query(ctx, `
		SELECT id, source_id, target_id, relation_type, strength, confidence, evidence_unit_ids, valid_from, valid_to, created_at
		FROM entity_relations WHERE `+where+`
	`, entityID)
	if err != nil {
		return nil, fmt.Errorf("list relations: %w", err)
	}
	defer rows.Close()

	var out []models.EntityRelation
	for rows.Next() {
		var r models.EntityRelation
		var id int64
		var evidenceJSON []byte
		if err := rows.Scan(&id, &r.SourceID, &r.TargetID, &r.RelationType, &r.Strength, &r.Confidence, &evidenceJSON, &r.ValidFrom, &r.ValidTo, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan relation: %w", err)
		}
		r.ID = fmt.Sprintf("%d", id)
		json.Unmarshal(evidenceJSON, &r.EvidenceUnitIDs)
		out = append(out, r)
	}
	return out, nil
}

// relationDirectionClause maps a GetRelations direction argument to its
// WHERE clause. Unrecognized values (including "both") match either side.
func relationDirectionClause(direction string) string {
	switch direction {
	case "out":
		return "source_id = $1"
	case "in":
		return "target_id = $1"
	default:
		return "source_id = $1 OR target_id = $1"
	}
}

// SearchByQuery does a simple case-insensitive substring search over
// canonical names and aliases, ranked by mention_count.
func (s *EntityStore) SearchByQuery(ctx context.Context, query string, limit int) ([]models.Entity, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT DISTINCT e.id, e.canonical_name, e.type, e.l3_root, e.l2_sector, e.mention_count, e.first_mentioned, e.last_mentioned, e.created_at
		FROM entities e
		LEFT JOIN entity_aliases a ON a.entity_id = e.id
		WHERE e.canonical_name ILIKE '%' || $1 || '%' OR a.alias ILIKE '%' || $1 || '%'
		ORDER BY e.mention_count DESC
		LIMIT $2
	`, query, limit)
	if err != nil {
		return nil, fmt.Errorf("search entities: %w", err)
	}
	defer rows.Close()

	var out []models.Entity
	for rows.Next() {
		var e models.Entity
		if err := rows.Scan(&e.ID, &e.CanonicalName, &e.Type, &e.L3Root, &e.L2Sector, &e.MentionCount, &e.FirstMentioned, &e.LastMentioned, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan entity: %w", err)
		}
		out = append(out, e)
	}
	return out, nil
}

// GetHotEntities compares mention counts in the trailing `recentWindow`
// against the `recentWindow` before it, for every entity mentioned in
// either window, and reports the resulting trend via models.ComputeTrend.
func (s *EntityStore) GetHotEntities(ctx context.Context, recentWindow time.Duration, limit int) ([]models.HotTrend, error) {
	now := time.Now()
	recentStart := now.Add(-recentWindow)
	previousStart := recentStart.Add(-recentWindow)

	rows, err := s.pool.Query(ctx, `
		SELECT
			e.id, e.canonical_name, e.type, e.l3_root, e.l2_sector, e.mention_count, e.first_mentioned, e.last_mentioned, e.created_at,
			COUNT(*) FILTER (WHERE m.created_at >= $1) AS recent_count,
			COUNT(*) FILTER (WHERE m.created_at >= $2 AND m.created_at < $1) AS previous_count
		FROM entities e
		JOIN entity_mentions m ON m.entity_id = e.id
		WHERE m.created_at >= $2
		GROUP BY e.id
		ORDER BY recent_count DESC
		LIMIT $3
	`, recentStart, previousStart, limit)
	if err != nil {
		return nil, fmt.Errorf("query hot entities: %w", err)
	}
	defer rows.Close()

	var out []models.HotTrend
	for rows.Next() {
		var h models.HotTrend
		if err := rows.Scan(&h.Entity.ID, &h.Entity.CanonicalName, &h.Entity.Type, &h.Entity.L3Root, &h.Entity.L2Sector,
			&h.Entity.MentionCount, &h.Entity.FirstMentioned, &h.Entity.LastMentioned, &h.Entity.CreatedAt,
			&h.RecentCount, &h.PreviousCount); err != nil {
			return nil, fmt.Errorf("scan hot entity: %w", err)
		}
		h.Trend, h.ChangePct = models.ComputeTrend(h.RecentCount, h.PreviousCount)
		out = append(out, h)
	}
	return out, nil
}
