package usecase

import "github.com/kirillkom/askbase/internal/core/domain"

// retrievalPolicy tunes score weighting and prompt addenda per query type.
// Kept as a declarative table so the scoring policy is testable in isolation.
type retrievalPolicy struct {
	Weights        domain.Weights
	PromptAddendum string
}

type policyKey struct {
	Intent   domain.Intent
	Category domain.Category
}

// Empty Intent or Category acts as a wildcard. Lookup precedence:
// (intent, category), (intent, *), (*, category), default.
var policyTable = map[policyKey]retrievalPolicy{
	{Intent: domain.IntentProduct}: {
		Weights:        domain.Weights{Vector: 0.3, Keyword: 0.7},
		PromptAddendum: "Focus on concrete product capabilities and name the exact features the context supports.",
	},
	{Category: domain.CategoryPricing}: {
		Weights:        domain.Weights{Vector: 0.3, Keyword: 0.7},
		PromptAddendum: "Quote pricing figures exactly as they appear in the context; never estimate missing prices.",
	},
	{Intent: domain.IntentComparison}: {
		Weights:        domain.Weights{Vector: 0.8, Keyword: 0.2},
		PromptAddendum: "Structure the answer as a balanced comparison and state the dimensions being compared.",
	},
	{Intent: domain.IntentExploratory}: {
		Weights:        domain.Weights{Vector: 0.7, Keyword: 0.3},
		PromptAddendum: "Give a broad overview first, then point to the most relevant specifics from the context.",
	},
	{Category: domain.CategoryTechnical}: {
		Weights:        domain.Weights{Vector: 0.5, Keyword: 0.5},
		PromptAddendum: "Answer at the technical depth the question implies and keep terminology precise.",
	},
	{Intent: domain.IntentTroubleshooting}: {
		Weights:        domain.Weights{Vector: 0.4, Keyword: 0.6},
		PromptAddendum: "Walk through likely causes in order, grounded in the context.",
	},
}

var defaultPolicy = retrievalPolicy{Weights: domain.DefaultWeights()}

func lookupPolicy(intent domain.Intent, category domain.Category) retrievalPolicy {
	if p, ok := policyTable[policyKey{Intent: intent, Category: category}]; ok {
		return p
	}
	if p, ok := policyTable[policyKey{Intent: intent}]; ok {
		return p
	}
	if p, ok := policyTable[policyKey{Category: category}]; ok {
		return p
	}
	return defaultPolicy
}
