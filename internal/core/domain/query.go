package domain

import (
	"strings"
	"time"
)

type ConversationTurn struct {
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp,omitempty"`
}

// Query is the immutable request input: raw text plus optional history.
type Query struct {
	RawText        string             `json:"raw_text"`
	NormalizedText string             `json:"normalized_text"`
	History        []ConversationTurn `json:"history,omitempty"`
	SessionID      string             `json:"session_id,omitempty"`
}

func NewQuery(raw string, history []ConversationTurn, sessionID string) Query {
	return Query{
		RawText:        strings.TrimSpace(raw),
		NormalizedText: NormalizeQueryText(raw),
		History:        history,
		SessionID:      strings.TrimSpace(sessionID),
	}
}

// NormalizeQueryText lowercases and collapses whitespace; used as the
// analysis cache key.
func NormalizeQueryText(raw string) string {
	return strings.Join(strings.Fields(strings.ToLower(raw)), " ")
}

type Intent string

const (
	IntentInformational   Intent = "informational"
	IntentProduct         Intent = "product"
	IntentComparison      Intent = "comparison"
	IntentExploratory     Intent = "exploratory"
	IntentTroubleshooting Intent = "troubleshooting"
)

type Category string

const (
	CategoryGeneral         Category = "GENERAL_INFORMATION"
	CategoryProduct         Category = "PRODUCT_FEATURES"
	CategoryPricing         Category = "PRICING_INFORMATION"
	CategoryTechnical       Category = "TECHNICAL_DOCUMENTATION"
	CategoryComparison      Category = "COMPARISON"
	CategoryOnboarding      Category = "ONBOARDING"
	CategoryTroubleshooting Category = "TROUBLESHOOTING"
	CategoryCompany         Category = "COMPANY_INFORMATION"

	// CategoryUnmapped marks a model-produced category string that could not
	// be mapped onto the closed taxonomy.
	CategoryUnmapped Category = "UNMAPPED"
)

func KnownCategories() []Category {
	return []Category{
		CategoryGeneral,
		CategoryProduct,
		CategoryPricing,
		CategoryTechnical,
		CategoryComparison,
		CategoryOnboarding,
		CategoryTroubleshooting,
		CategoryCompany,
	}
}

type Entity struct {
	Name       string  `json:"name"`
	Type       string  `json:"type"`
	Confidence float64 `json:"confidence"`
}

const (
	TechnicalLevelMin = 1
	TechnicalLevelMax = 10
)

// QueryAnalysis is produced once per query and never mutated afterwards.
type QueryAnalysis struct {
	Intent              Intent     `json:"intent"`
	PrimaryCategory     Category   `json:"primary_category"`
	SecondaryCategories []Category `json:"secondary_categories,omitempty"`
	Entities            []Entity   `json:"entities,omitempty"`
	TechnicalLevel      int        `json:"technical_level"`
	IsAmbiguous         bool       `json:"is_ambiguous"`
	Keywords            []string   `json:"keywords,omitempty"`
}

type RetrievalFilter struct {
	PrimaryCategory     Category   `json:"primary_category,omitempty"`
	SecondaryCategories []Category `json:"secondary_categories,omitempty"`
	TechnicalLevelMin   int        `json:"technical_level_min"`
	TechnicalLevelMax   int        `json:"technical_level_max"`
	RequiredEntities    []string   `json:"required_entities,omitempty"`
	Keywords            []string   `json:"keywords,omitempty"`
}

// Normalized clamps the technical-level range into the corpus domain and
// swaps inverted bounds.
func (f RetrievalFilter) Normalized() RetrievalFilter {
	out := f
	if out.TechnicalLevelMin < TechnicalLevelMin {
		out.TechnicalLevelMin = TechnicalLevelMin
	}
	if out.TechnicalLevelMax <= 0 || out.TechnicalLevelMax > TechnicalLevelMax {
		out.TechnicalLevelMax = TechnicalLevelMax
	}
	if out.TechnicalLevelMin > out.TechnicalLevelMax {
		out.TechnicalLevelMin, out.TechnicalLevelMax = out.TechnicalLevelMax, out.TechnicalLevelMin
	}
	return out
}

// Relaxed widens the technical-level range to the full domain and clears the
// required-entity and keyword predicates.
func (f RetrievalFilter) Relaxed() RetrievalFilter {
	out := f
	out.TechnicalLevelMin = TechnicalLevelMin
	out.TechnicalLevelMax = TechnicalLevelMax
	out.RequiredEntities = nil
	out.Keywords = nil
	return out
}

// Minimal drops every predicate.
func (f RetrievalFilter) Minimal() RetrievalFilter {
	return RetrievalFilter{
		TechnicalLevelMin: TechnicalLevelMin,
		TechnicalLevelMax: TechnicalLevelMax,
	}
}

func (f RetrievalFilter) IsZero() bool {
	return f.PrimaryCategory == "" &&
		len(f.SecondaryCategories) == 0 &&
		len(f.RequiredEntities) == 0 &&
		len(f.Keywords) == 0 &&
		f.TechnicalLevelMin <= TechnicalLevelMin &&
		(f.TechnicalLevelMax == 0 || f.TechnicalLevelMax >= TechnicalLevelMax)
}

func FilterFromAnalysis(a QueryAnalysis) RetrievalFilter {
	entities := make([]string, 0, len(a.Entities))
	for _, e := range a.Entities {
		name := strings.TrimSpace(e.Name)
		if name != "" {
			entities = append(entities, name)
		}
	}

	level := a.TechnicalLevel
	if level < TechnicalLevelMin || level > TechnicalLevelMax {
		level = 0
	}
	filter := RetrievalFilter{
		PrimaryCategory:     a.PrimaryCategory,
		SecondaryCategories: a.SecondaryCategories,
		RequiredEntities:    entities,
		Keywords:            a.Keywords,
	}
	if level > 0 {
		// Allow one level of slack on each side of the detected level.
		filter.TechnicalLevelMin = level - 2
		filter.TechnicalLevelMax = level + 2
	}
	return filter.Normalized()
}
