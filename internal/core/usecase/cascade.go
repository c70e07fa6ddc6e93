package usecase

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/kirillkom/askbase/internal/core/domain"
	"github.com/kirillkom/askbase/internal/core/ports"
)

// FallbackCascade runs successive relaxed retrieval attempts until one
// yields results or every stage is exhausted. Each stage runs at most once;
// the first stage producing at least one chunk wins.
type FallbackCascade struct {
	retriever        *HybridRetriever
	expander         ports.QueryExpander
	expansionTimeout time.Duration
	logger           *slog.Logger
}

func NewFallbackCascade(
	retriever *HybridRetriever,
	expander ports.QueryExpander,
	expansionTimeout time.Duration,
	logger *slog.Logger,
) *FallbackCascade {
	if expansionTimeout <= 0 {
		expansionTimeout = 6 * time.Second
	}
	return &FallbackCascade{
		retriever:        retriever,
		expander:         expander,
		expansionTimeout: expansionTimeout,
		logger:           logger,
	}
}

type CascadeInput struct {
	RetrievalQuery string // possibly follow-up expanded
	OriginalQuery  string
	Filter         domain.RetrievalFilter
	Weights        domain.Weights
	Limit          int
	Threshold      float64
	FollowUp       bool
}

type CascadeOutcome struct {
	Chunks   []domain.RetrievedChunk
	Stage    domain.RetrievalStage
	Degraded []string
}

type cascadeStage struct {
	name    domain.RetrievalStage
	enabled func() bool
	run     func(ctx context.Context) ([]domain.RetrievedChunk, error)
}

// errSkipStage advances the cascade without counting the stage as a
// completed retrieval attempt.
var errSkipStage = errors.New("stage skipped")

// Run walks the stage machine in order. Retrieval errors mark the stage
// degraded and advance to the next; the error case is only when no stage
// completed at all.
func (c *FallbackCascade) Run(ctx context.Context, in CascadeInput) (CascadeOutcome, error) {
	outcome := CascadeOutcome{Stage: domain.StageExhausted}
	expandedQuery := ""

	stages := []cascadeStage{
		{
			name:    domain.StagePrimary,
			enabled: func() bool { return true },
			run: func(ctx context.Context) ([]domain.RetrievedChunk, error) {
				return c.retriever.Retrieve(ctx, RetrieveParams{
					Query:     in.RetrievalQuery,
					Filter:    in.Filter,
					Weights:   in.Weights,
					Limit:     in.Limit,
					Threshold: in.Threshold,
				})
			},
		},
		{
			name:    domain.StageRelaxed,
			enabled: func() bool { return in.FollowUp },
			run: func(ctx context.Context) ([]domain.RetrievedChunk, error) {
				return c.retriever.Retrieve(ctx, RetrieveParams{
					Query:     in.RetrievalQuery,
					Filter:    in.Filter.Relaxed(),
					Weights:   in.Weights,
					Limit:     in.Limit,
					Threshold: in.Threshold,
				})
			},
		},
		{
			name:    domain.StageExpanded,
			enabled: func() bool { return c.expander != nil },
			run: func(ctx context.Context) ([]domain.RetrievedChunk, error) {
				expanded, err := c.expandQuery(ctx, in.OriginalQuery)
				if err != nil {
					outcome.Degraded = append(outcome.Degraded, "expansion_skipped")
					return nil, errSkipStage
				}
				expandedQuery = expanded
				return c.retriever.Retrieve(ctx, RetrieveParams{
					Query:     expanded,
					Filter:    in.Filter.Relaxed(),
					Weights:   domain.Weights{Vector: 0.4, Keyword: 0.6},
					Limit:     in.Limit,
					Threshold: in.Threshold,
				})
			},
		},
		{
			name:    domain.StageMinimal,
			enabled: func() bool { return true },
			run: func(ctx context.Context) ([]domain.RetrievedChunk, error) {
				query := in.RetrievalQuery
				if expandedQuery != "" {
					query = expandedQuery
				}
				return c.retriever.Retrieve(ctx, RetrieveParams{
					Query:   query,
					Filter:  in.Filter.Minimal(),
					Weights: domain.Weights{Vector: 0.2, Keyword: 0.8},
					Limit:   in.Limit,
				})
			},
		},
		{
			name: domain.StageOriginalRetry,
			enabled: func() bool {
				return expandedQuery != "" && expandedQuery != in.OriginalQuery
			},
			run: func(ctx context.Context) ([]domain.RetrievedChunk, error) {
				return c.retriever.Retrieve(ctx, RetrieveParams{
					Query:   in.OriginalQuery,
					Filter:  in.Filter.Minimal(),
					Weights: domain.Weights{Vector: 0.2, Keyword: 0.8},
					Limit:   in.Limit,
				})
			},
		},
	}

	attemptCompleted := false
	var lastErr error
	for _, stage := range stages {
		if err := ctx.Err(); err != nil {
			lastErr = err
			break
		}
		if !stage.enabled() {
			continue
		}

		chunks, err := stage.run(ctx)
		if errors.Is(err, errSkipStage) {
			continue
		}
		if err != nil {
			c.logger.Warn("cascade_stage_failed",
				slog.String("stage", string(stage.name)),
				slog.String("error", err.Error()))
			outcome.Degraded = append(outcome.Degraded, "stage_failed:"+string(stage.name))
			lastErr = err
			continue
		}
		attemptCompleted = true
		if len(chunks) > 0 {
			outcome.Chunks = chunks
			outcome.Stage = stage.name
			return outcome, nil
		}
	}

	if !attemptCompleted {
		if lastErr == nil {
			lastErr = context.DeadlineExceeded
		}
		return outcome, domain.WrapError(domain.ErrNoRetrieval, "fallback cascade", lastErr)
	}
	return outcome, nil
}

func (c *FallbackCascade) expandQuery(ctx context.Context, query string) (string, error) {
	expandCtx, cancel := context.WithTimeout(ctx, c.expansionTimeout)
	defer cancel()

	expanded, err := c.expander.Expand(expandCtx, query)
	if err != nil {
		c.logger.Warn("query_expansion_failed", slog.String("error", err.Error()))
		return "", err
	}
	expanded = strings.TrimSpace(expanded)
	if expanded == "" {
		return "", errors.New("empty expansion")
	}
	return expanded, nil
}
