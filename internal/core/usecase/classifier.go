package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/kirillkom/askbase/internal/core/domain"
	"github.com/kirillkom/askbase/internal/core/ports"
)

const (
	classifierSourceLLM      = "llm"
	classifierSourceCache    = "cache"
	classifierSourceFallback = "rules"
)

// QueryClassifier produces a QueryAnalysis for raw query text. The LLM path
// is best effort; the rule classifier guarantees a result.
type QueryClassifier struct {
	llm     ports.QueryClassifierLLM
	cache   ports.AnalysisCache
	rules   *ruleClassifier
	tax     *Taxonomy
	timeout time.Duration
	logger  *slog.Logger
}

func NewQueryClassifier(
	llm ports.QueryClassifierLLM,
	cache ports.AnalysisCache,
	tax *Taxonomy,
	timeout time.Duration,
	logger *slog.Logger,
) *QueryClassifier {
	if timeout <= 0 {
		timeout = 8 * time.Second
	}
	return &QueryClassifier{
		llm:     llm,
		cache:   cache,
		rules:   newRuleClassifier(tax),
		tax:     tax,
		timeout: timeout,
		logger:  logger,
	}
}

// Classify returns an analysis plus the source that produced it
// ("llm", "cache" or "rules"). Only empty input is an error.
func (c *QueryClassifier) Classify(ctx context.Context, text string) (domain.QueryAnalysis, string, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return domain.QueryAnalysis{}, "", domain.WrapError(domain.ErrInvalidInput, "classify query", fmt.Errorf("query text is empty"))
	}

	key := domain.NormalizeQueryText(text)
	if c.cache != nil {
		if analysis, ok := c.cache.Get(key); ok {
			return analysis, classifierSourceCache, nil
		}
	}

	if c.llm != nil {
		analysis, err := c.classifyWithLLM(ctx, text)
		if err == nil {
			if c.cache != nil {
				c.cache.Set(key, analysis)
			}
			return analysis, classifierSourceLLM, nil
		}
		c.logger.Warn("classifier_llm_fallback",
			slog.String("query", truncateForLog(text, 120)),
			slog.String("error", err.Error()))
	}

	return c.rules.Classify(text), classifierSourceFallback, nil
}

// llmAnalysis mirrors the JSON schema the classification prompt requests.
type llmAnalysis struct {
	Intent              string   `json:"intent"`
	PrimaryCategory     string   `json:"primary_category"`
	SecondaryCategories []string `json:"secondary_categories"`
	Entities            []struct {
		Name       string  `json:"name"`
		Type       string  `json:"type"`
		Confidence float64 `json:"confidence"`
	} `json:"entities"`
	TechnicalLevel int      `json:"technical_level"`
	IsAmbiguous    bool     `json:"is_ambiguous"`
	Keywords       []string `json:"keywords"`
}

func (c *QueryClassifier) classifyWithLLM(ctx context.Context, text string) (domain.QueryAnalysis, error) {
	callCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	raw, err := c.llm.ClassifyQuery(callCtx, text)
	if err != nil {
		return domain.QueryAnalysis{}, fmt.Errorf("classification call: %w", err)
	}

	var parsed llmAnalysis
	if err := decodeModelJSON(raw, &parsed); err != nil {
		return domain.QueryAnalysis{}, fmt.Errorf("parse classification: %w", err)
	}
	return c.fromLLM(text, parsed), nil
}

// fromLLM canonicalizes free-form model output into the closed taxonomy and
// backfills missing fields from the rule classifier.
func (c *QueryClassifier) fromLLM(text string, parsed llmAnalysis) domain.QueryAnalysis {
	analysis := domain.QueryAnalysis{
		Intent:          normalizeIntent(parsed.Intent),
		PrimaryCategory: c.tax.canonicalOrGeneral(parsed.PrimaryCategory),
		TechnicalLevel:  parsed.TechnicalLevel,
		IsAmbiguous:     parsed.IsAmbiguous,
	}

	seen := map[domain.Category]struct{}{analysis.PrimaryCategory: {}}
	for _, raw := range parsed.SecondaryCategories {
		cat := c.tax.CanonicalCategory(raw)
		if cat == domain.CategoryUnmapped {
			continue
		}
		if _, dup := seen[cat]; dup {
			continue
		}
		seen[cat] = struct{}{}
		analysis.SecondaryCategories = append(analysis.SecondaryCategories, cat)
	}

	for _, e := range parsed.Entities {
		name := strings.TrimSpace(e.Name)
		if name == "" {
			continue
		}
		analysis.Entities = append(analysis.Entities, domain.Entity{
			Name:       name,
			Type:       strings.TrimSpace(e.Type),
			Confidence: e.Confidence,
		})
	}

	for _, kw := range parsed.Keywords {
		kw = strings.ToLower(strings.TrimSpace(kw))
		if kw != "" {
			analysis.Keywords = append(analysis.Keywords, kw)
		}
	}
	if len(analysis.Keywords) == 0 {
		analysis.Keywords = c.rules.ExtractKeywords(text)
	}

	if analysis.TechnicalLevel < domain.TechnicalLevelMin || analysis.TechnicalLevel > domain.TechnicalLevelMax {
		analysis.TechnicalLevel = c.rules.estimateTechnicalLevel(splitAlphaNumLower(text))
	}
	return analysis
}

// Rules exposes the rule classifier for the follow-up filter override.
func (c *QueryClassifier) Rules() *ruleClassifier {
	return c.rules
}

func normalizeIntent(raw string) domain.Intent {
	switch domain.Intent(strings.ToLower(strings.TrimSpace(raw))) {
	case domain.IntentProduct:
		return domain.IntentProduct
	case domain.IntentComparison:
		return domain.IntentComparison
	case domain.IntentExploratory:
		return domain.IntentExploratory
	case domain.IntentTroubleshooting:
		return domain.IntentTroubleshooting
	default:
		return domain.IntentInformational
	}
}

func truncateForLog(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	return s[:limit] + "..."
}
