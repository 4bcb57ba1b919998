// Package models holds the data types shared across the information-unit
// pipeline: the Information Unit itself, its source references, the entity
// graph, and the raw article/digest shapes at the pipeline's edges.
package models

import (
	"crypto/md5"
	"encoding/hex"
	"strings"
	"time"
)

// InformationType classifies the nature of an Information Unit.
type InformationType string

const (
	TypeFact    InformationType = "fact"
	TypeOpinion InformationType = "opinion"
	TypeEvent   InformationType = "event"
	TypeData    InformationType = "data"
)

// StateChangeType is the HEX taxonomy: the six-way classification of what
// kind of state an Information Unit reports as having changed.
type StateChangeType string

const (
	StateTech        StateChangeType = "TECH"
	StateCapital     StateChangeType = "CAPITAL"
	StateRegulation  StateChangeType = "REGULATION"
	StateOrg         StateChangeType = "ORG"
	StateRisk        StateChangeType = "RISK"
	StateSentiment   StateChangeType = "SENTIMENT"
)

// ValidHEX reports whether t is a member of the HEX taxonomy.
func ValidHEX(t StateChangeType) bool {
	switch t {
	case StateTech, StateCapital, StateRegulation, StateOrg, StateRisk, StateSentiment:
		return true
	}
	return false
}

// TimeSensitivity buckets how perishable a unit's relevance is.
type TimeSensitivity string

const (
	SensitivityUrgent   TimeSensitivity = "urgent"
	SensitivityNormal   TimeSensitivity = "normal"
	SensitivityEvergreen TimeSensitivity = "evergreen"
)

// Sentiment is the coarse polarity attached to a unit.
type Sentiment string

const (
	SentimentPositive Sentiment = "positive"
	SentimentNeutral  Sentiment = "neutral"
	SentimentNegative Sentiment = "negative"
)

// RootDomains is the fixed ~18-element vocabulary anchoring the L3 root of
// every entity_hierarchy entry. FallbackRootDomain is used whenever neither
// an exact nor substring match is found.
var RootDomains = []string{
	"人工智能", "半导体芯片", "消费电子", "云计算与数据中心", "软件与开发工具",
	"区块链与加密货币", "网络安全", "电商与零售", "社交媒体", "游戏与娱乐",
	"内容与流媒体", "金融与银行", "汽车与出行", "能源与环境", "医疗与生物科技",
	"制造与工业", "宏观经济", "地缘政治",
}

const FallbackRootDomain = "其他"

// ResolveRootDomain validates candidate against RootDomains: exact match
// first, then substring containment either direction, then the fallback.
func ResolveRootDomain(candidate string) string {
	candidate = strings.TrimSpace(candidate)
	if candidate == "" {
		return FallbackRootDomain
	}
	for _, root := range RootDomains {
		if candidate == root {
			return root
		}
	}
	for _, root := range RootDomains {
		if strings.Contains(candidate, root) || strings.Contains(root, candidate) {
			return root
		}
	}
	return FallbackRootDomain
}

// EntityRole is the narrative role an entity plays within one unit.
type EntityRole string

const (
	RoleProtagonist EntityRole = "主角"
	RoleSupporting  EntityRole = "配角"
	RoleMentioned   EntityRole = "提及"
)

// EntityAnchor is one entry of a unit's entity_hierarchy: a named entity
// anchored into the L2/L3 sector taxonomy with a role and confidence.
type EntityAnchor struct {
	L1Name     string     `json:"l1_name"`
	L1Role     EntityRole `json:"l1_role"`
	L2Sector   string     `json:"l2_sector"`
	L3Root     string     `json:"l3_root"`
	Confidence float64    `json:"confidence"`
}

// SourceReference is one origin article backing an Information Unit.
// Equality and set membership are defined on URL alone.
type SourceReference struct {
	URL             string    `json:"url"`
	Title           string    `json:"title"`
	SourceName      string    `json:"source_name"`
	PublishedAt     time.Time `json:"published_at"`
	Excerpt         string    `json:"excerpt"`
	CredibilityTier string    `json:"credibility_tier"`
}

// DedupSourcesByURL returns the union of the given source slices, keeping
// the first occurrence of each URL and preserving first-seen order.
func DedupSourcesByURL(groups ...[]SourceReference) []SourceReference {
	seen := make(map[string]bool)
	var out []SourceReference
	for _, group := range groups {
		for _, s := range group {
			if seen[s.URL] {
				continue
			}
			seen[s.URL] = true
			out = append(out, s)
		}
	}
	return out
}

// InformationUnit is the atomic, deduplicated carrier of one fact, event,
// opinion, or datum — the minimal delivery payload of the pipeline.
type InformationUnit struct {
	ID          string          `json:"id"`
	Fingerprint string          `json:"fingerprint"`
	Type        InformationType `json:"type"`

	Title           string   `json:"title"`
	Content         string   `json:"content"`
	Summary         string   `json:"summary"`
	AnalysisContent string   `json:"analysis_content"`
	KeyInsights     []string `json:"key_insights"`

	EventTime       string          `json:"event_time"`
	ReportTime      time.Time       `json:"report_time"`
	TimeSensitivity TimeSensitivity `json:"time_sensitivity"`

	InformationGain float64 `json:"information_gain"`
	Actionability   float64 `json:"actionability"`
	Scarcity        float64 `json:"scarcity"`
	ImpactMagnitude float64 `json:"impact_magnitude"`

	StateChangeType    StateChangeType `json:"state_change_type"`
	StateChangeSubtypes []string       `json:"state_change_subtypes"`

	EntityHierarchy []EntityAnchor `json:"entity_hierarchy"`

	Who   []string `json:"who"`
	What  string   `json:"what"`
	When  string   `json:"when"`
	Where string   `json:"where"`
	Why   string   `json:"why"`
	How   string   `json:"how"`

	Sources []SourceReference `json:"sources"`

	CredibilityScore float64   `json:"credibility_score"`
	ImportanceScore  float64   `json:"importance_score"`
	AnalysisDepth    float64   `json:"analysis_depth_score"`
	Sentiment        Sentiment `json:"sentiment"`

	Tags []string `json:"tags"`

	MergedCount     int  `json:"merged_count"`
	IsSent          bool `json:"is_sent"`
	EntityProcessed bool `json:"entity_processed"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// The 4D value weights are fixed; value_score is always derived and never
// stored independently, to prevent drift (spec invariant #2).
const (
	WeightInformationGain = 0.30
	WeightActionability   = 0.25
	WeightScarcity        = 0.20
	WeightImpactMagnitude = 0.25
)

// ValueScore computes the weighted mean of the 4D dimensions.
func (u *InformationUnit) ValueScore() float64 {
	return WeightInformationGain*u.InformationGain +
		WeightActionability*u.Actionability +
		WeightScarcity*u.Scarcity +
		WeightImpactMagnitude*u.ImpactMagnitude
}

// SourceCount is the number of distinct source URLs currently attached.
func (u *InformationUnit) SourceCount() int {
	return len(u.Sources)
}

// Fingerprint computes the content-addressed dedup key: an md5 hash of the
// lowercased, whitespace-trimmed concatenation of title and content. Two
// units with identical fingerprints are definitionally the same unit.
func Fingerprint(title, content string) string {
	normalized := strings.ToLower(strings.TrimSpace(title)) + strings.ToLower(strings.TrimSpace(content))
	sum := md5.Sum([]byte(normalized))
	return hex.EncodeToString(sum[:])
}

// UnitIDPrefix is prepended to the first 16 hex characters of a fingerprint
// to produce a unit's opaque stable id.
const UnitIDPrefix = "iu_"

// UnitID derives a unit's id from its fingerprint.
func UnitID(fingerprint string) string {
	if len(fingerprint) > 16 {
		fingerprint = fingerprint[:16]
	}
	return UnitIDPrefix + fingerprint
}

// CoerceScore clamps a raw 4D score into [1.0, 10.0], substituting the
// default of 5.0 when parsing upstream produced no usable value (ok=false).
func CoerceScore(value float64, ok bool) float64 {
	if !ok {
		return 5.0
	}
	if value < 1.0 {
		return 1.0
	}
	if value > 10.0 {
		return 10.0
	}
	return value
}
