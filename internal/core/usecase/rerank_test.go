package usecase

import (
	"context"
	"errors"
	"testing"

	"github.com/kirillkom/askbase/internal/core/domain"
)

func TestRerankUsesOriginalQuery(t *testing.T) {
	reranker := &fakeReranker{results: []domain.RankedResult{
		{RetrievedChunk: chunk("a", 0.2, 0.2), RerankScore: 0.9},
	}}
	step := NewRerankStep(reranker, true, 0, testLogger())

	ranked, applied := step.Rerank(context.Background(),
		"what does the pro plan cost",
		[]domain.RetrievedChunk{chunk("a", 0.2, 0.2)},
		domain.RerankOptions{}, 5)
	if !applied {
		t.Fatal("expected rerank to apply")
	}
	if reranker.gotQuery != "what does the pro plan cost" {
		t.Fatalf("reranker judged against %q, want the original query", reranker.gotQuery)
	}
	if len(ranked) != 1 || ranked[0].RerankScore != 0.9 {
		t.Fatalf("unexpected ranked output: %+v", ranked)
	}
}

func TestRerankFailurePreservesCountAndOrder(t *testing.T) {
	candidates := []domain.RetrievedChunk{
		func() domain.RetrievedChunk { c := chunk("low", 0, 0); c.CombinedScore = 0.2; return c }(),
		func() domain.RetrievedChunk { c := chunk("high", 0, 0); c.CombinedScore = 0.9; return c }(),
		func() domain.RetrievedChunk { c := chunk("mid", 0, 0); c.CombinedScore = 0.5; return c }(),
	}
	step := NewRerankStep(&fakeReranker{err: errors.New("reranker down")}, true, 0, testLogger())

	ranked, applied := step.Rerank(context.Background(), "q", candidates, domain.RerankOptions{}, 10)
	if applied {
		t.Fatal("rerank reported applied despite failure")
	}
	if len(ranked) != len(candidates) {
		t.Fatalf("fallback changed result count: %d vs %d", len(ranked), len(candidates))
	}
	want := []string{"high", "mid", "low"}
	for i, id := range want {
		if ranked[i].ID != id {
			t.Fatalf("fallback order wrong at %d: got %q want %q", i, ranked[i].ID, id)
		}
		if ranked[i].RerankScore != ranked[i].CombinedScore {
			t.Fatalf("fallback score must mirror combined score, got %+v", ranked[i])
		}
	}
}

func TestRerankDisabledAnnotatesSkip(t *testing.T) {
	step := NewRerankStep(nil, false, 0, testLogger())

	ranked, applied := step.Rerank(context.Background(), "q",
		[]domain.RetrievedChunk{chunk("a", 0.1, 0.1)}, domain.RerankOptions{}, 5)
	if applied {
		t.Fatal("disabled step reported applied")
	}
	if ranked[0].Explanation != explanationRerankSkipped {
		t.Fatalf("expected skip explanation, got %q", ranked[0].Explanation)
	}
}

func TestRerankEmptyCandidates(t *testing.T) {
	step := NewRerankStep(&fakeReranker{}, true, 0, testLogger())
	ranked, applied := step.Rerank(context.Background(), "q", nil, domain.RerankOptions{}, 5)
	if ranked != nil || applied {
		t.Fatalf("empty input must produce empty output, got %+v applied=%v", ranked, applied)
	}
}

func TestRerankTruncatesToLimit(t *testing.T) {
	reranker := &fakeReranker{results: []domain.RankedResult{
		{RetrievedChunk: chunk("a", 0, 0), RerankScore: 0.9},
		{RetrievedChunk: chunk("b", 0, 0), RerankScore: 0.8},
		{RetrievedChunk: chunk("c", 0, 0), RerankScore: 0.7},
	}}
	step := NewRerankStep(reranker, true, 0, testLogger())

	ranked, applied := step.Rerank(context.Background(), "q",
		[]domain.RetrievedChunk{chunk("a", 0, 0), chunk("b", 0, 0), chunk("c", 0, 0)},
		domain.RerankOptions{}, 2)
	if !applied {
		t.Fatal("expected rerank to apply")
	}
	if len(ranked) != 2 || ranked[0].ID != "a" || ranked[1].ID != "b" {
		t.Fatalf("unexpected truncation: %+v", ranked)
	}
}
