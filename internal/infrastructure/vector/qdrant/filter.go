package qdrant

import "github.com/kirillkom/askbase/internal/core/domain"

// buildFilter maps a retrieval filter onto a qdrant filter clause. Categories
// and the technical-level range are hard predicates; keywords and entities go
// into should clauses so they bias rather than exclude.
func buildFilter(f domain.RetrievalFilter) map[string]any {
	f = f.Normalized()
	if f.IsZero() {
		return nil
	}

	var must []map[string]any
	var should []map[string]any

	categories := make([]string, 0, 1+len(f.SecondaryCategories))
	if f.PrimaryCategory != "" && f.PrimaryCategory != domain.CategoryUnmapped {
		categories = append(categories, string(f.PrimaryCategory))
	}
	for _, cat := range f.SecondaryCategories {
		if cat != "" && cat != domain.CategoryUnmapped {
			categories = append(categories, string(cat))
		}
	}
	if len(categories) > 0 {
		must = append(must, map[string]any{
			"key":   "category",
			"match": map[string]any{"any": categories},
		})
	}

	if f.TechnicalLevelMin > domain.TechnicalLevelMin || f.TechnicalLevelMax < domain.TechnicalLevelMax {
		must = append(must, map[string]any{
			"key": "technical_level",
			"range": map[string]any{
				"gte": f.TechnicalLevelMin,
				"lte": f.TechnicalLevelMax,
			},
		})
	}

	if len(f.Keywords) > 0 {
		should = append(should, map[string]any{
			"key":   "keywords",
			"match": map[string]any{"any": f.Keywords},
		})
	}
	if len(f.RequiredEntities) > 0 {
		should = append(should, map[string]any{
			"key":   "entities",
			"match": map[string]any{"any": f.RequiredEntities},
		})
	}

	if len(must) == 0 && len(should) == 0 {
		return nil
	}
	out := make(map[string]any, 2)
	if len(must) > 0 {
		out["must"] = must
	}
	if len(should) > 0 {
		out["should"] = should
	}
	return out
}
