package usecase

import (
	"context"
	"log/slog"
	"sort"
	"time"

	"github.com/kirillkom/askbase/internal/core/domain"
	"github.com/kirillkom/askbase/internal/core/ports"
)

const explanationRerankSkipped = "reranking skipped"

// RerankStep re-scores the hybrid candidates against the original query.
// Failure never fails the request: the hybrid ordering survives untouched.
type RerankStep struct {
	reranker ports.Reranker
	enabled  bool
	timeout  time.Duration
	logger   *slog.Logger
}

func NewRerankStep(reranker ports.Reranker, enabled bool, timeout time.Duration, logger *slog.Logger) *RerankStep {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &RerankStep{
		reranker: reranker,
		enabled:  enabled,
		timeout:  timeout,
		logger:   logger,
	}
}

// Rerank judges relevance against the original query text, never the
// expanded retrieval query. The returned bool reports whether the external
// reranker actually ran.
func (r *RerankStep) Rerank(
	ctx context.Context,
	originalQuery string,
	candidates []domain.RetrievedChunk,
	opts domain.RerankOptions,
	limit int,
) ([]domain.RankedResult, bool) {
	if len(candidates) == 0 {
		return nil, false
	}
	if limit <= 0 || limit > len(candidates) {
		limit = len(candidates)
	}
	if !r.enabled || r.reranker == nil {
		return scoreOrdered(candidates, limit, explanationRerankSkipped), false
	}

	rerankCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	ranked, err := r.reranker.Rerank(rerankCtx, originalQuery, candidates, opts)
	if err != nil || len(ranked) == 0 {
		if err != nil {
			r.logger.Warn("rerank_fallback_score_order", slog.String("error", err.Error()))
		}
		return scoreOrdered(candidates, limit, "rerank unavailable, combined score order"), false
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].RerankScore != ranked[j].RerankScore {
			return ranked[i].RerankScore > ranked[j].RerankScore
		}
		return ranked[i].Identity() < ranked[j].Identity()
	})
	if len(ranked) > limit {
		ranked = ranked[:limit]
	}
	return ranked, true
}

// scoreOrdered is the degraded path: hybrid combined-score order, annotated.
func scoreOrdered(candidates []domain.RetrievedChunk, limit int, explanation string) []domain.RankedResult {
	sorted := make([]domain.RetrievedChunk, len(candidates))
	copy(sorted, candidates)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].CombinedScore != sorted[j].CombinedScore {
			return sorted[i].CombinedScore > sorted[j].CombinedScore
		}
		return sorted[i].Identity() < sorted[j].Identity()
	})
	if len(sorted) > limit {
		sorted = sorted[:limit]
	}

	out := make([]domain.RankedResult, 0, len(sorted))
	for _, c := range sorted {
		out = append(out, domain.RankedResult{
			RetrievedChunk: c,
			RerankScore:    c.CombinedScore,
			Explanation:    explanation,
		})
	}
	return out
}
