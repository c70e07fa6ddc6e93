package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/kirillkom/askbase/internal/core/domain"
	"github.com/kirillkom/askbase/internal/core/ports"
)

const defaultRetrieveLimit = 10

// HybridRetriever unions concurrent vector-similarity and keyword lookups
// into a single ranked, deduplicated list.
type HybridRetriever struct {
	embedder ports.Embedder
	vector   ports.VectorSearcher
	keyword  ports.KeywordSearcher
	logger   *slog.Logger
}

func NewHybridRetriever(
	embedder ports.Embedder,
	vector ports.VectorSearcher,
	keyword ports.KeywordSearcher,
	logger *slog.Logger,
) *HybridRetriever {
	return &HybridRetriever{
		embedder: embedder,
		vector:   vector,
		keyword:  keyword,
		logger:   logger,
	}
}

type RetrieveParams struct {
	Query     string
	Filter    domain.RetrievalFilter
	Weights   domain.Weights
	Limit     int
	Threshold float64
}

// Retrieve issues both lookups concurrently; they share no mutable state and
// merge only after both complete. A single failing modality degrades to the
// other; both failing is an error the cascade handles.
func (r *HybridRetriever) Retrieve(ctx context.Context, p RetrieveParams) ([]domain.RetrievedChunk, error) {
	weights := p.Weights.Normalized()
	limit := p.Limit
	if limit <= 0 {
		limit = defaultRetrieveLimit
	}
	filter := p.Filter.Normalized()

	var (
		vectorHits  []domain.RetrievedChunk
		keywordHits []domain.RetrievedChunk
		vectorErr   error
		keywordErr  error
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		embedding, err := r.embedder.EmbedQuery(gctx, p.Query)
		if err != nil {
			vectorErr = fmt.Errorf("embed query: %w", err)
			return nil
		}
		hits, err := r.vector.Search(gctx, embedding, filter, p.Threshold, limit)
		if err != nil {
			vectorErr = fmt.Errorf("vector search: %w", err)
			return nil
		}
		vectorHits = hits
		return nil
	})
	g.Go(func() error {
		hits, err := r.keyword.Search(gctx, p.Query, filter, limit)
		if err != nil {
			keywordErr = fmt.Errorf("keyword search: %w", err)
			return nil
		}
		keywordHits = hits
		return nil
	})
	_ = g.Wait()

	if vectorErr != nil && keywordErr != nil {
		return nil, domain.WrapError(domain.ErrTemporary, "hybrid retrieval", errors.Join(vectorErr, keywordErr))
	}
	if vectorErr != nil {
		r.logger.Warn("vector_lookup_degraded", slog.String("error", vectorErr.Error()))
	}
	if keywordErr != nil {
		r.logger.Warn("keyword_lookup_degraded", slog.String("error", keywordErr.Error()))
	}

	merged := mergeHybrid(vectorHits, keywordHits, weights)
	if len(merged) > limit {
		merged = merged[:limit]
	}
	return merged, nil
}

// mergeHybrid unions both hit lists by chunk identity, keeps the higher
// per-modality score on duplicates, and recomputes the combined score with
// the supplied weights. The merge is idempotent: feeding a list back in
// leaves scores unchanged.
func mergeHybrid(vectorHits, keywordHits []domain.RetrievedChunk, weights domain.Weights) []domain.RetrievedChunk {
	acc := make(map[string]domain.RetrievedChunk, len(vectorHits)+len(keywordHits))
	order := make([]string, 0, len(vectorHits)+len(keywordHits))

	absorb := func(c domain.RetrievedChunk) {
		key := c.Identity()
		existing, ok := acc[key]
		if !ok {
			acc[key] = c
			order = append(order, key)
			return
		}
		if c.VectorScore > existing.VectorScore {
			existing.VectorScore = c.VectorScore
		}
		if c.KeywordScore > existing.KeywordScore {
			existing.KeywordScore = c.KeywordScore
		}
		if existing.Text == "" {
			existing.Text = c.Text
		}
		if existing.DocumentID == "" {
			existing.DocumentID = c.DocumentID
		}
		acc[key] = existing
	}
	for _, c := range vectorHits {
		absorb(c)
	}
	for _, c := range keywordHits {
		absorb(c)
	}

	out := make([]domain.RetrievedChunk, 0, len(order))
	for _, key := range order {
		c := acc[key]
		c.CombinedScore = c.VectorScore*weights.Vector + c.KeywordScore*weights.Keyword
		out = append(out, c)
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].CombinedScore != out[j].CombinedScore {
			return out[i].CombinedScore > out[j].CombinedScore
		}
		return out[i].Identity() < out[j].Identity()
	})
	return out
}
