package usecase

import (
	"context"
	"io"
	"log/slog"
	"sync"

	"github.com/kirillkom/askbase/internal/core/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeEmbedder struct {
	vector []float32
	err    error
	calls  int
}

func (f *fakeEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	if f.vector == nil {
		return []float32{0.1, 0.2, 0.3}, nil
	}
	return f.vector, nil
}

type fakeVectorSearcher struct {
	hits  []domain.RetrievedChunk
	err   error
	calls int
}

func (f *fakeVectorSearcher) Search(ctx context.Context, vector []float32, filter domain.RetrievalFilter, threshold float64, limit int) ([]domain.RetrievedChunk, error) {
	f.calls++
	return f.hits, f.err
}

type fakeKeywordSearcher struct {
	hits  []domain.RetrievedChunk
	err   error
	calls int
}

func (f *fakeKeywordSearcher) Search(ctx context.Context, text string, filter domain.RetrievalFilter, limit int) ([]domain.RetrievedChunk, error) {
	f.calls++
	return f.hits, f.err
}

// scriptedRetrieval returns a different result set per call, so cascade
// tests can make individual stages succeed or come back empty.
type scriptedRetrieval struct {
	mu      sync.Mutex
	scripts []retrievalScript
	queries []string
	filters []domain.RetrievalFilter
}

type retrievalScript struct {
	hits []domain.RetrievedChunk
	err  error
}

func (s *scriptedRetrieval) Search(ctx context.Context, text string, filter domain.RetrievalFilter, limit int) ([]domain.RetrievedChunk, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queries = append(s.queries, text)
	s.filters = append(s.filters, filter)
	if len(s.scripts) == 0 {
		return nil, nil
	}
	script := s.scripts[0]
	s.scripts = s.scripts[1:]
	return script.hits, script.err
}

type fakeClassifierLLM struct {
	output string
	err    error
	calls  int
}

func (f *fakeClassifierLLM) ClassifyQuery(ctx context.Context, text string) (string, error) {
	f.calls++
	return f.output, f.err
}

type fakeExpander struct {
	expanded string
	err      error
	calls    int
}

func (f *fakeExpander) Expand(ctx context.Context, query string) (string, error) {
	f.calls++
	return f.expanded, f.err
}

type fakeReranker struct {
	results  []domain.RankedResult
	err      error
	calls    int
	gotQuery string
}

func (f *fakeReranker) Rerank(ctx context.Context, query string, candidates []domain.RetrievedChunk, opts domain.RerankOptions) ([]domain.RankedResult, error) {
	f.calls++
	f.gotQuery = query
	return f.results, f.err
}

type fakeGenerator struct {
	answer     string
	errs       []error
	calls      int
	gotPrompts []string
}

func (f *fakeGenerator) Generate(ctx context.Context, systemPrompt string, messages []domain.ConversationTurn) (string, error) {
	f.calls++
	f.gotPrompts = append(f.gotPrompts, systemPrompt)
	if len(f.errs) > 0 {
		err := f.errs[0]
		f.errs = f.errs[1:]
		if err != nil {
			return "", err
		}
	}
	return f.answer, nil
}

type fakeCache struct {
	mu      sync.Mutex
	entries map[string]domain.QueryAnalysis
	gets    int
	sets    int
}

func newFakeCache() *fakeCache {
	return &fakeCache{entries: make(map[string]domain.QueryAnalysis)}
}

func (f *fakeCache) Get(key string) (domain.QueryAnalysis, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.gets++
	analysis, ok := f.entries[key]
	return analysis, ok
}

func (f *fakeCache) Set(key string, analysis domain.QueryAnalysis) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sets++
	f.entries[key] = analysis
}

type fakeSessionStore struct {
	mu        sync.Mutex
	turns     map[string][]domain.ConversationTurn
	listErr   error
	appendErr error
}

func newFakeSessionStore() *fakeSessionStore {
	return &fakeSessionStore{turns: make(map[string][]domain.ConversationTurn)}
}

func (f *fakeSessionStore) EnsureSession(ctx context.Context, sessionID string) error {
	return nil
}

func (f *fakeSessionStore) AppendTurn(ctx context.Context, sessionID string, turn domain.ConversationTurn) error {
	if f.appendErr != nil {
		return f.appendErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.turns[sessionID] = append(f.turns[sessionID], turn)
	return nil
}

func (f *fakeSessionStore) ListRecentTurns(ctx context.Context, sessionID string, limit int) ([]domain.ConversationTurn, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	stored := f.turns[sessionID]
	if len(stored) > limit {
		stored = stored[len(stored)-limit:]
	}
	out := make([]domain.ConversationTurn, len(stored))
	copy(out, stored)
	return out, nil
}

type fakeSink struct {
	mu        sync.Mutex
	published []domain.Diagnostics
}

func (f *fakeSink) Publish(ctx context.Context, diag domain.Diagnostics) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.published = append(f.published, diag)
	return nil
}

func (f *fakeSink) last() (domain.Diagnostics, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.published) == 0 {
		return domain.Diagnostics{}, false
	}
	return f.published[len(f.published)-1], true
}

func chunk(id string, vectorScore, keywordScore float64) domain.RetrievedChunk {
	return domain.RetrievedChunk{
		ID:           id,
		DocumentID:   "doc-" + id,
		Text:         "text for " + id,
		VectorScore:  vectorScore,
		KeywordScore: keywordScore,
	}
}
