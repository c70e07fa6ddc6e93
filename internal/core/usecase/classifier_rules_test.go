package usecase

import (
	"testing"

	"github.com/kirillkom/askbase/internal/core/domain"
)

func TestRuleClassifierPricingQuery(t *testing.T) {
	rc := newRuleClassifier(MustLoadTaxonomy())

	analysis := rc.Classify("How much does the enterprise plan cost per seat?")
	if analysis.PrimaryCategory != domain.CategoryPricing {
		t.Fatalf("primary category = %q, want pricing", analysis.PrimaryCategory)
	}
	if analysis.Intent != domain.IntentProduct {
		t.Fatalf("intent = %q, want product", analysis.Intent)
	}

	policy := lookupPolicy(analysis.Intent, analysis.PrimaryCategory)
	if policy.Weights.Vector != 0.3 || policy.Weights.Keyword != 0.7 {
		t.Fatalf("pricing policy weights = %+v, want 0.3/0.7", policy.Weights)
	}
}

func TestRuleClassifierComparisonIntent(t *testing.T) {
	rc := newRuleClassifier(MustLoadTaxonomy())

	analysis := rc.Classify("compare your product versus the main alternative")
	if analysis.Intent != domain.IntentComparison {
		t.Fatalf("intent = %q, want comparison", analysis.Intent)
	}
}

func TestRuleClassifierKeywordExtraction(t *testing.T) {
	rc := newRuleClassifier(MustLoadTaxonomy())

	keywords := rc.ExtractKeywords("How do I configure the webhook for my webhook endpoint?")
	want := map[string]bool{"configure": true, "webhook": true, "endpoint": true}
	if len(keywords) != len(want) {
		t.Fatalf("keywords = %+v, want exactly %d distinct non-stopword tokens", keywords, len(want))
	}
	for _, kw := range keywords {
		if !want[kw] {
			t.Fatalf("unexpected keyword %q in %+v", kw, keywords)
		}
	}
}

func TestRuleClassifierTechnicalLevel(t *testing.T) {
	rc := newRuleClassifier(MustLoadTaxonomy())

	plain := rc.Classify("tell me about the company")
	if plain.TechnicalLevel != 3 {
		t.Fatalf("plain query level = %d, want baseline 3", plain.TechnicalLevel)
	}

	dense := rc.Classify("does the grpc api support tls encryption with low latency replication")
	if dense.TechnicalLevel != domain.TechnicalLevelMax {
		t.Fatalf("dense query level = %d, want capped at %d", dense.TechnicalLevel, domain.TechnicalLevelMax)
	}
}

func TestRuleClassifierAmbiguity(t *testing.T) {
	rc := newRuleClassifier(MustLoadTaxonomy())

	if !rc.Classify("pricing?").IsAmbiguous {
		t.Fatal("two-token query should be ambiguous")
	}
	if !rc.Classify("tell me more about how that works").IsAmbiguous {
		t.Fatal("pronoun-bearing query should be ambiguous")
	}
	if rc.Classify("how do I configure webhook retries for failed deliveries").IsAmbiguous {
		t.Fatal("specific query should not be ambiguous")
	}
}

func TestExtractEntitiesTitleCase(t *testing.T) {
	entities := extractEntities("Does AskBase integrate with Salesforce and plain tools?")
	names := make(map[string]bool, len(entities))
	for _, e := range entities {
		names[e.Name] = true
	}
	if !names["AskBase"] || !names["Salesforce"] {
		t.Fatalf("expected AskBase and Salesforce as entities, got %+v", entities)
	}
	if names["Does"] {
		t.Fatal("leading word must not be treated as an entity")
	}
}
