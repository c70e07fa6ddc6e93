package usecase

import (
	"testing"

	"github.com/kirillkom/askbase/internal/core/domain"
)

func TestCanonicalCategory(t *testing.T) {
	tax := MustLoadTaxonomy()

	cases := []struct {
		raw  string
		want domain.Category
	}{
		{"PRICING_INFORMATION", domain.CategoryPricing},
		{"pricing_information", domain.CategoryPricing},
		{"pricing", domain.CategoryPricing},
		{"PRICING", domain.CategoryPricing},
		{"billing", domain.CategoryPricing},
		{"getting started", domain.CategoryOnboarding},
		{"docs", domain.CategoryTechnical},
		{"technical documentation", domain.CategoryTechnical},
		{"company", domain.CategoryCompany},
		{"", domain.CategoryUnmapped},
		{"weather forecast", domain.CategoryUnmapped},
	}
	for _, tc := range cases {
		if got := tax.CanonicalCategory(tc.raw); got != tc.want {
			t.Fatalf("CanonicalCategory(%q) = %q, want %q", tc.raw, got, tc.want)
		}
	}
}

func TestCanonicalOrGeneralDefaults(t *testing.T) {
	tax := MustLoadTaxonomy()
	if got := tax.canonicalOrGeneral("weather forecast"); got != domain.CategoryGeneral {
		t.Fatalf("canonicalOrGeneral = %q, want general", got)
	}
	if got := tax.canonicalOrGeneral("pricing"); got != domain.CategoryPricing {
		t.Fatalf("canonicalOrGeneral = %q, want pricing", got)
	}
}
