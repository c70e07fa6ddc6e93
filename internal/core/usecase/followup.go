package usecase

import (
	"fmt"
	"strings"

	"github.com/kirillkom/askbase/internal/core/domain"
)

const (
	// followUpTokenThreshold flags short queries as likely continuations.
	// Known precision/recall tradeoff: short factual queries can
	// over-trigger, long anaphoric queries can under-trigger.
	followUpTokenThreshold = 4

	historyWindowTurns = 6
	historyTurnCharCap = 240
)

var anaphoricLeads = []string{
	"what about", "how about", "and what", "and the", "tell me more",
	"more about", "about that", "about it", "the same", "that one",
	"why not", "what else",
}

var anaphoricTokens = map[string]struct{}{
	"it": {}, "that": {}, "this": {}, "they": {}, "them": {},
	"those": {}, "these": {}, "also": {}, "more": {},
}

// IsFollowUp is a cheap lexical heuristic gating the expensive
// context-expansion work; it is deliberately not a classifier call.
func IsFollowUp(query string, history []domain.ConversationTurn) bool {
	if len(history) == 0 {
		return false
	}
	normalized := strings.ToLower(strings.TrimSpace(query))
	if normalized == "" {
		return false
	}

	for _, lead := range anaphoricLeads {
		if strings.HasPrefix(normalized, lead) || strings.Contains(normalized, lead) {
			return true
		}
	}

	tokens := splitAlphaNumLower(normalized)
	for _, token := range tokens {
		if _, ok := anaphoricTokens[token]; ok {
			return true
		}
	}
	return len(tokens) <= followUpTokenThreshold
}

// historyWindow returns the last k turns with each content capped, as a
// typed list so truncation rules stay verifiable.
func historyWindow(history []domain.ConversationTurn, turns, charCap int) []domain.ConversationTurn {
	if turns <= 0 || len(history) == 0 {
		return nil
	}
	start := len(history) - turns
	if start < 0 {
		start = 0
	}
	out := make([]domain.ConversationTurn, 0, len(history)-start)
	for _, turn := range history[start:] {
		content := strings.TrimSpace(turn.Content)
		if content == "" {
			continue
		}
		if charCap > 0 && len(content) > charCap {
			content = content[:charCap]
		}
		out = append(out, domain.ConversationTurn{
			Role:      turn.Role,
			Content:   content,
			Timestamp: turn.Timestamp,
		})
	}
	return out
}

// ExpandWithHistory prefixes the query with a compact transcript of the
// recent turns so classification and retrieval see the continuation context.
func ExpandWithHistory(query string, history []domain.ConversationTurn) string {
	window := historyWindow(history, historyWindowTurns, historyTurnCharCap)
	if len(window) == 0 {
		return query
	}

	var b strings.Builder
	b.WriteString("Recent conversation:\n")
	for _, turn := range window {
		fmt.Fprintf(&b, "%s: %s\n", turn.Role, turn.Content)
	}
	b.WriteString("\nCurrent question: ")
	b.WriteString(query)
	return b.String()
}

// FollowUpFilter rebuilds the retrieval filter from the original un-expanded
// query's rule-based extraction; an LLM-derived filter over an expanded
// prompt is unreliable. When the original query carries no usable signal
// (pure anaphora), the most recent turns supply keywords and categories.
func FollowUpFilter(rules *ruleClassifier, originalQuery string, history []domain.ConversationTurn) domain.RetrievalFilter {
	keywords := rules.ExtractKeywords(originalQuery)
	primary, secondary := rules.ExtractCategories(originalQuery)

	if len(keywords) == 0 {
		for i := len(history) - 1; i >= 0 && len(keywords) == 0; i-- {
			keywords = rules.ExtractKeywords(history[i].Content)
			if primary == domain.CategoryGeneral {
				primary, secondary = rules.ExtractCategories(history[i].Content)
			}
		}
	}

	return domain.RetrievalFilter{
		PrimaryCategory:     primary,
		SecondaryCategories: secondary,
		Keywords:            keywords,
	}.Normalized()
}
