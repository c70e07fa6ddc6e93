package usecase

import (
	"strings"
	"unicode"

	"github.com/kirillkom/askbase/internal/core/domain"
)

// ruleClassifier is the deterministic fallback: it must always produce a
// valid, possibly coarse, QueryAnalysis from raw text alone.
type ruleClassifier struct {
	tax *Taxonomy
}

func newRuleClassifier(tax *Taxonomy) *ruleClassifier {
	return &ruleClassifier{tax: tax}
}

func (rc *ruleClassifier) Classify(text string) domain.QueryAnalysis {
	tokens := splitAlphaNumLower(text)
	keywords := rc.ExtractKeywords(text)
	primary, secondary := rc.ExtractCategories(text)

	analysis := domain.QueryAnalysis{
		Intent:              rc.detectIntent(tokens, primary),
		PrimaryCategory:     primary,
		SecondaryCategories: secondary,
		Entities:            extractEntities(text),
		TechnicalLevel:      rc.estimateTechnicalLevel(tokens),
		IsAmbiguous:         rc.isAmbiguous(tokens),
		Keywords:            keywords,
	}
	return analysis
}

// ExtractKeywords strips stop-words and tokens of length 1-2 so a follow-up
// filter override does not over-constrain retrieval.
func (rc *ruleClassifier) ExtractKeywords(text string) []string {
	tokens := splitAlphaNumLower(text)
	seen := make(map[string]struct{}, len(tokens))
	out := make([]string, 0, len(tokens))
	for _, token := range tokens {
		if len(token) <= 2 || rc.tax.isStopword(token) {
			continue
		}
		if _, dup := seen[token]; dup {
			continue
		}
		seen[token] = struct{}{}
		out = append(out, token)
	}
	return out
}

// ExtractCategories votes query tokens against the taxonomy keyword map.
func (rc *ruleClassifier) ExtractCategories(text string) (domain.Category, []domain.Category) {
	tokens := splitAlphaNumLower(text)
	votes := make(map[domain.Category]int)
	order := make([]domain.Category, 0, 4)
	for _, token := range tokens {
		cat, ok := rc.tax.categoryForKeyword(token)
		if !ok {
			continue
		}
		if votes[cat] == 0 {
			order = append(order, cat)
		}
		votes[cat]++
	}
	if len(order) == 0 {
		return domain.CategoryGeneral, nil
	}

	primary := order[0]
	for _, cat := range order[1:] {
		if votes[cat] > votes[primary] {
			primary = cat
		}
	}
	secondary := make([]domain.Category, 0, len(order)-1)
	for _, cat := range order {
		if cat != primary {
			secondary = append(secondary, cat)
		}
	}
	return primary, secondary
}

func (rc *ruleClassifier) detectIntent(tokens []string, primary domain.Category) domain.Intent {
	set := make(map[string]struct{}, len(tokens))
	for _, t := range tokens {
		set[t] = struct{}{}
	}
	switch {
	case containsToken(set, "compare") || containsToken(set, "versus") || containsToken(set, "vs") ||
		containsToken(set, "difference") || containsToken(set, "alternative"):
		return domain.IntentComparison
	case primary == domain.CategoryTroubleshooting:
		return domain.IntentTroubleshooting
	case primary == domain.CategoryProduct || primary == domain.CategoryPricing:
		return domain.IntentProduct
	case containsToken(set, "explore") || containsToken(set, "overview") || containsToken(set, "learn"):
		return domain.IntentExploratory
	default:
		return domain.IntentInformational
	}
}

func (rc *ruleClassifier) estimateTechnicalLevel(tokens []string) int {
	level := 3
	for _, token := range tokens {
		if rc.tax.isTechnicalTerm(token) {
			level += 2
		}
	}
	if level > domain.TechnicalLevelMax {
		level = domain.TechnicalLevelMax
	}
	return level
}

func (rc *ruleClassifier) isAmbiguous(tokens []string) bool {
	if len(tokens) <= 2 {
		return true
	}
	for _, token := range tokens {
		switch token {
		case "it", "that", "this", "they", "those", "them":
			return true
		}
	}
	return false
}

// extractEntities pulls title-cased words out of the raw text as weak
// entity signals. A proper NER pass belongs to the LLM path.
func extractEntities(text string) []domain.Entity {
	fields := strings.Fields(text)
	out := make([]domain.Entity, 0, 2)
	for i, field := range fields {
		trimmed := strings.TrimFunc(field, func(r rune) bool {
			return !unicode.IsLetter(r) && !unicode.IsNumber(r)
		})
		if len(trimmed) < 3 || i == 0 {
			continue
		}
		first := []rune(trimmed)[0]
		if unicode.IsUpper(first) {
			out = append(out, domain.Entity{
				Name:       trimmed,
				Type:       "term",
				Confidence: 0.5,
			})
		}
	}
	return out
}
