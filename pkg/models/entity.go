package models

import "time"

// EntityType classifies a node in the entity graph.
type EntityType string

const (
	EntityCompany  EntityType = "COMPANY"
	EntityPerson   EntityType = "PERSON"
	EntityProduct  EntityType = "PRODUCT"
	EntityOrg      EntityType = "ORG"
	EntityConcept  EntityType = "CONCEPT"
	EntityLocation EntityType = "LOCATION"
	EntityEvent    EntityType = "EVENT"
)

// RelationType is the fixed vocabulary of directed edges between entities.
type RelationType string

const (
	RelationParentOf     RelationType = "parent_of"
	RelationSubsidiaryOf RelationType = "subsidiary_of"
	RelationCompetitor   RelationType = "competitor"
	RelationPartner      RelationType = "partner"
	RelationPeer         RelationType = "peer"
	RelationSupplier     RelationType = "supplier"
	RelationCustomer     RelationType = "customer"
	RelationInvestor     RelationType = "investor"
	RelationCEOOf        RelationType = "ceo_of"
	RelationFounderOf    RelationType = "founder_of"
	RelationEmployeeOf   RelationType = "employee_of"
)

// ValidRelationType reports whether rt belongs to the fixed vocabulary.
func ValidRelationType(rt RelationType) bool {
	switch rt {
	case RelationParentOf, RelationSubsidiaryOf, RelationCompetitor, RelationPartner,
		RelationPeer, RelationSupplier, RelationCustomer, RelationInvestor,
		RelationCEOOf, RelationFounderOf, RelationEmployeeOf:
		return true
	}
	return false
}

// Entity is a node in the longitudinal knowledge graph.
type Entity struct {
	ID             string     `json:"id"`
	CanonicalName  string     `json:"canonical_name"`
	Type           EntityType `json:"type"`
	L3Root         string     `json:"l3_root"`
	L2Sector       string     `json:"l2_sector"`
	MentionCount   int        `json:"mention_count"`
	FirstMentioned *time.Time `json:"first_mentioned,omitempty"`
	LastMentioned  *time.Time `json:"last_mentioned,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
}

// EntityAlias maps a normalized alias string to an entity id.
type EntityAlias struct {
	Alias     string    `json:"alias"`
	EntityID  string    `json:"entity_id"`
	IsPrimary bool      `json:"is_primary"`
	Source    string    `json:"source"`
	CreatedAt time.Time `json:"created_at"`
}

// EntityMention is the many-to-many join between an entity and a unit that
// mentioned it, carrying the narrative role and any observed state change.
type EntityMention struct {
	ID             string     `json:"id"`
	EntityID       string     `json:"entity_id"`
	UnitID         string     `json:"unit_id"`
	Role           EntityRole `json:"role"`
	Sentiment      Sentiment  `json:"sentiment"`
	StateDimension string     `json:"state_dimension"`
	StateDelta     string     `json:"state_delta"`
	EventTime      *time.Time `json:"event_time,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
}

// EntityRelation is a directed, evidenced edge between two entities.
type EntityRelation struct {
	ID               string       `json:"id"`
	SourceID         string       `json:"source_id"`
	TargetID         string       `json:"target_id"`
	RelationType     RelationType `json:"relation_type"`
	Strength         float64      `json:"strength"`
	Confidence       float64      `json:"confidence"`
	EvidenceUnitIDs  []string     `json:"evidence_unit_ids"`
	ValidFrom        *time.Time   `json:"valid_from,omitempty"`
	ValidTo          *time.Time   `json:"valid_to,omitempty"`
	CreatedAt        time.Time    `json:"created_at"`
}

// ExtractedEntity is the Extractor's raw, unresolved view of an entity
// mentioned in one article, before alias resolution against the graph.
type ExtractedEntity struct {
	Name        string            `json:"name"`
	Aliases     []string          `json:"aliases"`
	Type        string            `json:"type"`
	Role        string            `json:"role"`
	StateChange map[string]string `json:"state_change"`
}

// ExtractedRelation is the Extractor's raw, unresolved view of a relation
// between two named entities mentioned in one article.
type ExtractedRelation struct {
	Source   string `json:"source"`
	Target   string `json:"target"`
	Relation string `json:"relation"`
	Evidence string `json:"evidence"`
}

// HotTrend is one row of a getHotEntities report: an entity's mention
// velocity compared across two back-to-back windows.
type HotTrend struct {
	Entity       Entity  `json:"entity"`
	RecentCount  int     `json:"recent_count"`
	PreviousCount int    `json:"previous_count"`
	Trend        string  `json:"trend"` // up, down, stable, new
	ChangePct    float64 `json:"change_pct"`
}

// ComputeTrend reproduces the original system's windowed-trend arithmetic
// exactly: previous==0 is "new" if recent>0 else "stable"; otherwise
// change_pct = (recent-previous)/previous*100, trend "up" if >20, "down"
// if <-20, else "stable".
func ComputeTrend(recent, previous int) (trend string, changePct float64) {
	if previous == 0 {
		if recent > 0 {
			return "new", 100.0
		}
		return "stable", 0.0
	}
	changePct = float64(recent-previous) / float64(previous) * 100.0
	switch {
	case changePct > 20:
		trend = "up"
	case changePct < -20:
		trend = "down"
	default:
		trend = "stable"
	}
	return trend, changePct
}
