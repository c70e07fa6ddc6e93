package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/kirillkom/askbase/internal/core/domain"
)

type answerFixture struct {
	uc        *AnswerUseCase
	keyword   *fakeKeywordSearcher
	reranker  *fakeReranker
	generator *fakeGenerator
	sessions  *fakeSessionStore
	sink      *fakeSink
}

func newAnswerFixture(t *testing.T) *answerFixture {
	t.Helper()
	keyword := &fakeKeywordSearcher{hits: []domain.RetrievedChunk{
		chunk("k1", 0, 0.9),
		chunk("k2", 0, 0.6),
	}}
	retriever := NewHybridRetriever(&fakeEmbedder{}, &fakeVectorSearcher{}, keyword, testLogger())
	cascade := NewFallbackCascade(retriever, &fakeExpander{expanded: "expanded"}, 0, testLogger())
	reranker := &fakeReranker{results: []domain.RankedResult{
		{RetrievedChunk: chunk("k1", 0, 0.9), RerankScore: 0.95},
		{RetrievedChunk: chunk("k2", 0, 0.6), RerankScore: 0.40},
	}}
	generator := &fakeGenerator{answer: "The enterprise plan costs $49 per seat."}
	sessions := newFakeSessionStore()
	sink := &fakeSink{}

	classifier := NewQueryClassifier(nil, nil, MustLoadTaxonomy(), 0, testLogger())
	uc := NewAnswerUseCase(
		classifier,
		cascade,
		NewRerankStep(reranker, true, 0, testLogger()),
		generator,
		sessions,
		sink,
		AnswerConfig{Limit: 5, GenerationTimeout: 5 * time.Second},
		testLogger(),
	)
	return &answerFixture{
		uc:        uc,
		keyword:   keyword,
		reranker:  reranker,
		generator: generator,
		sessions:  sessions,
		sink:      sink,
	}
}

func TestAnswerHappyPath(t *testing.T) {
	f := newAnswerFixture(t)

	res, err := f.uc.Answer(context.Background(), domain.AnswerRequest{
		Query:     "how much does the enterprise plan cost",
		SessionID: "s-1",
	})
	if err != nil {
		t.Fatalf("Answer: %v", err)
	}
	if res.Answer != "The enterprise plan costs $49 per seat." {
		t.Fatalf("answer = %q", res.Answer)
	}
	if res.ResultCount != 2 {
		t.Fatalf("result count = %d", res.ResultCount)
	}
	if res.Diagnostics.Stage != domain.StagePrimary {
		t.Fatalf("stage = %q", res.Diagnostics.Stage)
	}
	if res.Diagnostics.ClassifierSource != classifierSourceFallback {
		t.Fatalf("classifier source = %q", res.Diagnostics.ClassifierSource)
	}
	if !res.Diagnostics.RerankApplied {
		t.Fatal("rerank should have applied")
	}
	if res.Diagnostics.RequestID == "" {
		t.Fatal("request id missing")
	}
	if f.reranker.gotQuery != "how much does the enterprise plan cost" {
		t.Fatalf("reranker judged against %q", f.reranker.gotQuery)
	}

	stored, err := f.sessions.ListRecentTurns(context.Background(), "s-1", 10)
	if err != nil {
		t.Fatalf("ListRecentTurns: %v", err)
	}
	if len(stored) != 2 || stored[0].Role != "user" || stored[1].Role != "assistant" {
		t.Fatalf("session turns = %+v", stored)
	}
	if diag, ok := f.sink.last(); !ok || diag.RequestID != res.Diagnostics.RequestID {
		t.Fatalf("diagnostics not published: %+v", diag)
	}
}

func TestAnswerEmptyQuery(t *testing.T) {
	f := newAnswerFixture(t)
	_, err := f.uc.Answer(context.Background(), domain.AnswerRequest{Query: "  "})
	if !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestAnswerFollowUpUsesSessionHistory(t *testing.T) {
	f := newAnswerFixture(t)
	seed := []domain.ConversationTurn{
		{Role: "user", Content: "how does onboarding work"},
		{Role: "assistant", Content: "You follow the setup tutorial."},
	}
	for _, turn := range seed {
		if err := f.sessions.AppendTurn(context.Background(), "s-2", turn); err != nil {
			t.Fatalf("seed: %v", err)
		}
	}

	res, err := f.uc.Answer(context.Background(), domain.AnswerRequest{
		Query:     "what about that?",
		SessionID: "s-2",
	})
	if err != nil {
		t.Fatalf("Answer: %v", err)
	}
	if !res.Diagnostics.FollowUp {
		t.Fatal("expected follow-up detection from stored history")
	}
}

func TestAnswerGenerationFailure(t *testing.T) {
	f := newAnswerFixture(t)
	f.generator.errs = []error{errors.New("model exploded")}

	_, err := f.uc.Answer(context.Background(), domain.AnswerRequest{
		Query: "how much does the enterprise plan cost",
	})
	if !errors.Is(err, domain.ErrGeneration) {
		t.Fatalf("expected ErrGeneration, got %v", err)
	}
	if _, ok := f.sink.last(); !ok {
		t.Fatal("diagnostics must be published even on failure")
	}
}

func TestAnswerGenerationTimeoutReturnsPartialContext(t *testing.T) {
	f := newAnswerFixture(t)
	f.generator.errs = []error{context.DeadlineExceeded}

	res, err := f.uc.Answer(context.Background(), domain.AnswerRequest{
		Query: "how much does the enterprise plan cost",
	})
	if err != nil {
		t.Fatalf("timeout with assembled context must not error: %v", err)
	}
	if res.Answer != "" {
		t.Fatalf("expected empty answer, got %q", res.Answer)
	}
	if len(res.Context) == 0 {
		t.Fatal("partial result must carry the assembled context")
	}
	found := false
	for _, d := range res.Diagnostics.Degraded {
		if d == "generation_timeout" {
			found = true
		}
	}
	if !found {
		t.Fatalf("degraded paths = %+v", res.Diagnostics.Degraded)
	}
}

func TestAnswerFollowUpGenerationRetriesHistoryOnly(t *testing.T) {
	f := newAnswerFixture(t)
	f.generator.errs = []error{errors.New("first attempt failed"), nil}

	res, err := f.uc.Answer(context.Background(), domain.AnswerRequest{
		Query: "what about that?",
		History: []domain.ConversationTurn{
			{Role: "user", Content: "how does onboarding work"},
			{Role: "assistant", Content: "You follow the setup tutorial."},
		},
	})
	if err != nil {
		t.Fatalf("follow-up retry should recover: %v", err)
	}
	if f.generator.calls != 2 {
		t.Fatalf("expected a single retry, got %d calls", f.generator.calls)
	}
	found := false
	for _, d := range res.Diagnostics.Degraded {
		if d == "generation_history_only" {
			found = true
		}
	}
	if !found {
		t.Fatalf("degraded paths = %+v", res.Diagnostics.Degraded)
	}
}

func TestAnswerRerankFailureDegrades(t *testing.T) {
	f := newAnswerFixture(t)
	f.reranker.err = errors.New("reranker down")

	res, err := f.uc.Answer(context.Background(), domain.AnswerRequest{
		Query: "how much does the enterprise plan cost",
	})
	if err != nil {
		t.Fatalf("Answer: %v", err)
	}
	if res.Diagnostics.RerankApplied {
		t.Fatal("rerank reported applied despite failure")
	}
	if res.ResultCount != 2 {
		t.Fatalf("fallback must keep the hybrid results, got %d", res.ResultCount)
	}
	found := false
	for _, d := range res.Diagnostics.Degraded {
		if d == "rerank_skipped" {
			found = true
		}
	}
	if !found {
		t.Fatalf("degraded paths = %+v", res.Diagnostics.Degraded)
	}
}

func TestAnswerExplicitContextLeads(t *testing.T) {
	f := newAnswerFixture(t)

	res, err := f.uc.Answer(context.Background(), domain.AnswerRequest{
		Query:           "how much does the enterprise plan cost",
		ExplicitContext: &domain.ContextItem{ID: "pasted", Text: "user-pasted pricing table"},
	})
	if err != nil {
		t.Fatalf("Answer: %v", err)
	}
	if len(res.Context) != 3 {
		t.Fatalf("context size = %d, want explicit plus two fresh", len(res.Context))
	}
	if res.Context[0].ID != "pasted" || res.Context[0].Priority != domain.PriorityExplicitContext {
		t.Fatalf("explicit context must lead: %+v", res.Context[0])
	}
}
