package usecase

import (
	"strings"

	"github.com/kirillkom/askbase/internal/core/domain"
)

// CanonicalCategory maps a free-form model-produced category string onto the
// closed taxonomy. Resolution order: exact enum match, alias dictionary,
// bidirectional substring match. Unresolvable strings map to
// domain.CategoryUnmapped; callers decide the default.
func (t *Taxonomy) CanonicalCategory(raw string) domain.Category {
	normalized := strings.ToLower(strings.TrimSpace(raw))
	if normalized == "" {
		return domain.CategoryUnmapped
	}

	for _, known := range domain.KnownCategories() {
		if normalized == strings.ToLower(string(known)) {
			return known
		}
	}

	if cat, ok := t.aliasIndex[normalized]; ok {
		return cat
	}

	// Model output like "pricing and billing" or truncated names like
	// "PRICING" still need a home.
	compact := strings.Map(func(r rune) rune {
		if r == ' ' || r == '-' {
			return '_'
		}
		return r
	}, normalized)
	for _, known := range domain.KnownCategories() {
		lowerKnown := strings.ToLower(string(known))
		if strings.Contains(lowerKnown, compact) || strings.Contains(compact, lowerKnown) {
			return known
		}
	}
	for alias, cat := range t.aliasIndex {
		if strings.Contains(normalized, alias) || strings.Contains(alias, normalized) {
			return cat
		}
	}

	return domain.CategoryUnmapped
}

// canonicalOrGeneral is the lenient variant used when a category must be
// produced.
func (t *Taxonomy) canonicalOrGeneral(raw string) domain.Category {
	cat := t.CanonicalCategory(raw)
	if cat == domain.CategoryUnmapped {
		return domain.CategoryGeneral
	}
	return cat
}
