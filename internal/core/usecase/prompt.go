package usecase

import (
	"fmt"
	"strings"

	"github.com/kirillkom/askbase/internal/core/domain"
)

const baseSystemPrompt = `You are a knowledge assistant. Answer the user's question only from the
context passages below. If the context is insufficient, say so directly
instead of guessing. Cite the passage source labels you used.`

const followUpAddendum = "The question continues an earlier conversation. Resolve pronouns and " +
	"implicit references against the conversation history before answering."

// buildSystemPrompt renders the assembled context plus the conditional
// addenda selected from the policy table and follow-up state.
func buildSystemPrompt(contextItems []domain.ContextItem, analysis domain.QueryAnalysis, followUp bool) string {
	var b strings.Builder
	b.WriteString(baseSystemPrompt)

	for _, addendum := range promptAddenda(analysis, followUp) {
		b.WriteString("\n")
		b.WriteString(addendum)
	}

	if len(contextItems) == 0 {
		b.WriteString("\n\nNo context passages were retrieved for this question.")
		return b.String()
	}

	b.WriteString("\n\nContext passages:\n")
	for idx, item := range contextItems {
		source := item.Source
		if source == "" {
			source = item.Priority.String()
		}
		fmt.Fprintf(&b, "\n[%d] source=%s class=%s score=%.3f\n%s\n",
			idx+1, source, item.Priority.String(), item.Score, item.Text)
	}
	return b.String()
}

func promptAddenda(analysis domain.QueryAnalysis, followUp bool) []string {
	out := make([]string, 0, 3)
	if followUp {
		out = append(out, followUpAddendum)
	}
	policy := lookupPolicy(analysis.Intent, analysis.PrimaryCategory)
	if policy.PromptAddendum != "" {
		out = append(out, policy.PromptAddendum)
	}
	if analysis.TechnicalLevel >= 7 && policy.PromptAddendum == "" {
		out = append(out, "The asker is technical; do not simplify away implementation detail present in the context.")
	}
	return out
}
