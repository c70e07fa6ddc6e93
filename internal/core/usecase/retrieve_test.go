package usecase

import (
	"context"
	"errors"
	"testing"

	"github.com/kirillkom/askbase/internal/core/domain"
)

func TestHybridRetrieverMergesAndRanks(t *testing.T) {
	embedder := &fakeEmbedder{}
	vector := &fakeVectorSearcher{hits: []domain.RetrievedChunk{
		chunk("a", 0.9, 0),
		chunk("b", 0.4, 0),
	}}
	keyword := &fakeKeywordSearcher{hits: []domain.RetrievedChunk{
		chunk("b", 0, 0.8),
		chunk("c", 0, 0.6),
	}}
	r := NewHybridRetriever(embedder, vector, keyword, testLogger())

	got, err := r.Retrieve(context.Background(), RetrieveParams{
		Query:   "what integrations are supported",
		Weights: domain.Weights{Vector: 0.5, Keyword: 0.5},
		Limit:   10,
	})
	if err != nil {
		t.Fatalf("Retrieve: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 merged chunks, got %d", len(got))
	}
	// b appears in both lists: 0.4*0.5 + 0.8*0.5 = 0.6 beats a's 0.45.
	if got[0].ID != "b" {
		t.Fatalf("expected merged duplicate to rank first, got %q", got[0].ID)
	}
	if got[0].VectorScore != 0.4 || got[0].KeywordScore != 0.8 {
		t.Fatalf("expected per-modality max scores kept, got vector=%v keyword=%v",
			got[0].VectorScore, got[0].KeywordScore)
	}
	for i := 1; i < len(got); i++ {
		if got[i].CombinedScore > got[i-1].CombinedScore {
			t.Fatalf("results not sorted by combined score at index %d", i)
		}
	}
}

func TestHybridRetrieverInvalidWeightsResetToDefault(t *testing.T) {
	for _, weights := range []domain.Weights{
		{Vector: 0.9, Keyword: 0.9},
		{Vector: -0.2, Keyword: 1.2},
		{},
	} {
		normalized := weights.Normalized()
		if normalized.Vector != 0.5 || normalized.Keyword != 0.5 {
			t.Fatalf("weights %+v normalized to %+v, want 0.5/0.5", weights, normalized)
		}
	}
	valid := domain.Weights{Vector: 0.3, Keyword: 0.7}.Normalized()
	if valid.Vector != 0.3 || valid.Keyword != 0.7 {
		t.Fatalf("valid weights were reset: %+v", valid)
	}
}

func TestHybridRetrieverSingleModalityFailureDegrades(t *testing.T) {
	embedder := &fakeEmbedder{err: errors.New("embedding down")}
	keyword := &fakeKeywordSearcher{hits: []domain.RetrievedChunk{chunk("k", 0, 0.7)}}
	r := NewHybridRetriever(embedder, &fakeVectorSearcher{}, keyword, testLogger())

	got, err := r.Retrieve(context.Background(), RetrieveParams{Query: "pricing plans", Limit: 5})
	if err != nil {
		t.Fatalf("expected degraded success, got %v", err)
	}
	if len(got) != 1 || got[0].ID != "k" {
		t.Fatalf("expected keyword-only results, got %+v", got)
	}
}

func TestHybridRetrieverBothModalitiesFailing(t *testing.T) {
	vector := &fakeVectorSearcher{err: errors.New("vector down")}
	keyword := &fakeKeywordSearcher{err: errors.New("keyword down")}
	r := NewHybridRetriever(&fakeEmbedder{}, vector, keyword, testLogger())

	_, err := r.Retrieve(context.Background(), RetrieveParams{Query: "anything"})
	if err == nil {
		t.Fatal("expected error when both modalities fail")
	}
	if !errors.Is(err, domain.ErrTemporary) {
		t.Fatalf("expected ErrTemporary, got %v", err)
	}
}

func TestMergeHybridIdempotent(t *testing.T) {
	weights := domain.Weights{Vector: 0.5, Keyword: 0.5}
	first := mergeHybrid(
		[]domain.RetrievedChunk{chunk("a", 0.9, 0), chunk("b", 0.3, 0)},
		[]domain.RetrievedChunk{chunk("b", 0, 0.6)},
		weights,
	)
	second := mergeHybrid(first, nil, weights)
	if len(first) != len(second) {
		t.Fatalf("re-merge changed length: %d vs %d", len(first), len(second))
	}
	for i := range first {
		if first[i].ID != second[i].ID || first[i].CombinedScore != second[i].CombinedScore {
			t.Fatalf("re-merge changed entry %d: %+v vs %+v", i, first[i], second[i])
		}
	}
}

func TestHybridRetrieverAppliesLimit(t *testing.T) {
	hits := make([]domain.RetrievedChunk, 0, 8)
	for _, id := range []string{"a", "b", "c", "d", "e", "f", "g", "h"} {
		hits = append(hits, chunk(id, 0.5, 0))
	}
	r := NewHybridRetriever(&fakeEmbedder{}, &fakeVectorSearcher{hits: hits}, &fakeKeywordSearcher{}, testLogger())

	got, err := r.Retrieve(context.Background(), RetrieveParams{Query: "q", Limit: 3})
	if err != nil {
		t.Fatalf("Retrieve: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("expected limit 3 applied, got %d results", len(got))
	}
}
