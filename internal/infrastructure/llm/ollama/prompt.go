package ollama

import "strings"

const classificationSnippetCap = 4000

func buildClassificationPrompt(text string) string {
	snippet := text
	if len(snippet) > classificationSnippetCap {
		snippet = snippet[:classificationSnippetCap]
	}

	return `You are a query analyzer for a company knowledge base.
Return a strict JSON object with keys:
intent (one of: informational, product, comparison, exploratory, troubleshooting),
primary_category (one of: GENERAL_INFORMATION, PRODUCT_FEATURES, PRICING_INFORMATION, TECHNICAL_DOCUMENTATION, COMPARISON, ONBOARDING, TROUBLESHOOTING, COMPANY_INFORMATION),
secondary_categories (array of the same category names),
entities (array of {name, type, confidence}),
technical_level (integer 1-10),
is_ambiguous (boolean),
keywords (array of lowercase strings).
No markdown, no extra keys.

Query:
` + snippet
}

func buildExpansionPrompt(query string) string {
	return `Rewrite the user query below into one broader search query that keeps
the original meaning but adds likely synonyms and related terms.
Return only the rewritten query text, nothing else.

Query:
` + query
}

// sanitizeExpansion strips quotes and keeps the first non-empty line; chatty
// models sometimes prepend commentary despite the instruction.
func sanitizeExpansion(raw string) string {
	for _, line := range strings.Split(raw, "\n") {
		line = strings.Trim(strings.TrimSpace(line), `"'`)
		if line != "" {
			return line
		}
	}
	return ""
}
