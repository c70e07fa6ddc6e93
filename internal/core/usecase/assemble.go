package usecase

import "github.com/kirillkom/askbase/internal/core/domain"

// AssembleContext merges fresh reranked results, carried-over conversation
// references, and an optional explicit context block into a single list.
// Priority-class ordering is absolute: explicit context first, then prior
// references, then fresh results. Identity collisions keep the
// higher-scored item in its own class; nothing is dropped silently
// otherwise.
func AssembleContext(
	fresh []domain.RankedResult,
	priorReferences []domain.ContextItem,
	explicit *domain.ContextItem,
) []domain.ContextItem {
	freshItems := make([]domain.ContextItem, 0, len(fresh))
	freshIndex := make(map[string]int, len(fresh))
	for _, r := range fresh {
		item := domain.ContextItem{
			ID:       r.ID,
			Text:     r.Text,
			Source:   r.DocumentID,
			Metadata: r.Metadata,
			Priority: domain.PriorityFreshResult,
			Score:    r.RerankScore,
		}
		key := item.Identity()
		if idx, dup := freshIndex[key]; dup {
			if item.Score > freshItems[idx].Score {
				freshItems[idx] = item
			}
			continue
		}
		freshIndex[key] = len(freshItems)
		freshItems = append(freshItems, item)
	}

	dropFresh := make(map[string]struct{})
	priorSeen := make(map[string]struct{}, len(priorReferences))
	priorItems := make([]domain.ContextItem, 0, len(priorReferences))
	for _, prior := range priorReferences {
		prior.Priority = domain.PriorityPriorReference
		key := prior.Identity()
		if _, dup := priorSeen[key]; dup {
			continue
		}
		priorSeen[key] = struct{}{}
		if idx, collides := freshIndex[key]; collides {
			// Higher score wins; the survivor keeps its own class.
			if prior.Score > freshItems[idx].Score {
				dropFresh[key] = struct{}{}
				priorItems = append(priorItems, prior)
			}
			continue
		}
		priorItems = append(priorItems, prior)
	}

	out := make([]domain.ContextItem, 0, 1+len(priorItems)+len(freshItems))
	var explicitKey string
	if explicit != nil {
		item := *explicit
		item.Priority = domain.PriorityExplicitContext
		explicitKey = item.Identity()
		out = append(out, item)
	}
	for _, item := range priorItems {
		if explicitKey != "" && item.Identity() == explicitKey {
			continue
		}
		out = append(out, item)
	}
	for _, item := range freshItems {
		key := item.Identity()
		if _, dropped := dropFresh[key]; dropped {
			continue
		}
		if explicitKey != "" && key == explicitKey {
			continue
		}
		out = append(out, item)
	}
	return out
}
