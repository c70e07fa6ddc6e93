package ports

import (
	"context"

	"github.com/kirillkom/askbase/internal/core/domain"
)

// Embedder builds the dense vector for query text.
type Embedder interface {
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// QueryClassifierLLM returns the raw model output for a structured
// classification request. The output is not guaranteed to be valid JSON;
// tolerant parsing is the caller's job.
type QueryClassifierLLM interface {
	ClassifyQuery(ctx context.Context, text string) (string, error)
}

// QueryExpander rewrites a query into a semantically expanded form.
type QueryExpander interface {
	Expand(ctx context.Context, query string) (string, error)
}

// VectorSearcher performs similarity search over the corpus, returning
// chunks scoring above threshold, constrained by the filter.
type VectorSearcher interface {
	Search(ctx context.Context, vector []float32, filter domain.RetrievalFilter, threshold float64, limit int) ([]domain.RetrievedChunk, error)
}

// KeywordSearcher performs relevance-ranked full-text search over the
// corpus, constrained by the same filter.
type KeywordSearcher interface {
	Search(ctx context.Context, text string, filter domain.RetrievalFilter, limit int) ([]domain.RetrievedChunk, error)
}

// Reranker re-scores retrieval candidates against the original query.
type Reranker interface {
	Rerank(ctx context.Context, query string, candidates []domain.RetrievedChunk, opts domain.RerankOptions) ([]domain.RankedResult, error)
}

// AnswerGenerator creates the final user-facing answer.
type AnswerGenerator interface {
	Generate(ctx context.Context, systemPrompt string, messages []domain.ConversationTurn) (string, error)
}

// AnalysisCache stores query analyses keyed by normalized query text.
// Implementations must be safe for concurrent use; last writer wins.
type AnalysisCache interface {
	Get(key string) (domain.QueryAnalysis, bool)
	Set(key string, analysis domain.QueryAnalysis)
}

// SessionStore persists conversation turns by session id.
type SessionStore interface {
	EnsureSession(ctx context.Context, sessionID string) error
	AppendTurn(ctx context.Context, sessionID string, turn domain.ConversationTurn) error
	ListRecentTurns(ctx context.Context, sessionID string, limit int) ([]domain.ConversationTurn, error)
}

// DiagnosticsSink publishes per-request pipeline diagnostics for auditing.
type DiagnosticsSink interface {
	Publish(ctx context.Context, diag domain.Diagnostics) error
}
