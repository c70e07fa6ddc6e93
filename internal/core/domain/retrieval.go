package domain

import (
	"math"
	"time"
)

// Weights controls how vector and keyword scores combine into the hybrid
// score. The pair must sum to 1.0; Normalized resets invalid pairs to 0.5/0.5.
type Weights struct {
	Vector  float64 `json:"vector"`
	Keyword float64 `json:"keyword"`
}

func DefaultWeights() Weights {
	return Weights{Vector: 0.5, Keyword: 0.5}
}

func (w Weights) Normalized() Weights {
	if w.Vector < 0 || w.Keyword < 0 {
		return DefaultWeights()
	}
	if math.Abs(w.Vector+w.Keyword-1.0) > 1e-6 {
		return DefaultWeights()
	}
	return w
}

type RetrievedChunk struct {
	ID            string            `json:"id"`
	DocumentID    string            `json:"document_id"`
	Text          string            `json:"text"`
	Metadata      map[string]string `json:"metadata,omitempty"`
	VectorScore   float64           `json:"vector_score,omitempty"`
	KeywordScore  float64           `json:"keyword_score,omitempty"`
	CombinedScore float64           `json:"combined_score"`
}

// Identity is the dedup key: chunk id, or text when the id is absent.
func (c RetrievedChunk) Identity() string {
	if c.ID != "" {
		return c.ID
	}
	return c.Text
}

type RankedResult struct {
	RetrievedChunk
	RerankScore float64 `json:"rerank_score"`
	Explanation string  `json:"explanation,omitempty"`
}

type RerankOptions struct {
	UseVisualContext bool     `json:"use_visual_context"`
	VisualTypes      []string `json:"visual_types,omitempty"`
}

type PriorityClass int

const (
	PriorityExplicitContext PriorityClass = iota
	PriorityPriorReference
	PriorityFreshResult
)

func (p PriorityClass) String() string {
	switch p {
	case PriorityExplicitContext:
		return "explicit_context"
	case PriorityPriorReference:
		return "prior_reference"
	case PriorityFreshResult:
		return "fresh_result"
	default:
		return "unknown"
	}
}

type ContextItem struct {
	ID       string            `json:"id,omitempty"`
	Text     string            `json:"text"`
	Source   string            `json:"source,omitempty"`
	Metadata map[string]string `json:"metadata,omitempty"`
	Priority PriorityClass     `json:"priority"`
	Score    float64           `json:"score"`
}

func (c ContextItem) Identity() string {
	if c.ID != "" {
		return c.ID
	}
	return c.Text
}

// RetrievalStage names the fallback-cascade stage that produced a result set.
type RetrievalStage string

const (
	StagePrimary       RetrievalStage = "primary"
	StageRelaxed       RetrievalStage = "followup_relaxation"
	StageExpanded      RetrievalStage = "query_expansion"
	StageMinimal       RetrievalStage = "minimal_fallback"
	StageOriginalRetry RetrievalStage = "original_query_retry"
	StageExhausted     RetrievalStage = "exhausted"
)

// Diagnostics records which stage produced the result and every degraded
// path taken, so failure causes stay auditable without being user-visible.
type Diagnostics struct {
	RequestID        string           `json:"request_id"`
	SessionID        string           `json:"session_id,omitempty"`
	Stage            RetrievalStage   `json:"retrieval_stage"`
	FollowUp         bool             `json:"follow_up"`
	ClassifierSource string           `json:"classifier_source,omitempty"`
	RerankApplied    bool             `json:"rerank_applied"`
	ResultCount      int              `json:"result_count"`
	ContextSize      int              `json:"context_size"`
	Degraded         []string         `json:"degraded,omitempty"`
	TimingsMs        map[string]int64 `json:"timings_ms,omitempty"`
	GeneratedAt      time.Time        `json:"generated_at"`
}

func (d *Diagnostics) MarkDegraded(path string) {
	for _, p := range d.Degraded {
		if p == path {
			return
		}
	}
	d.Degraded = append(d.Degraded, path)
}

func (d *Diagnostics) Observe(step string, elapsed time.Duration) {
	if d.TimingsMs == nil {
		d.TimingsMs = make(map[string]int64, 8)
	}
	d.TimingsMs[step] = elapsed.Milliseconds()
}

type AnswerRequest struct {
	Query           string             `json:"query"`
	History         []ConversationTurn `json:"history,omitempty"`
	SessionID       string             `json:"session_id,omitempty"`
	Limit           int                `json:"limit,omitempty"`
	PriorReferences []ContextItem      `json:"prior_references,omitempty"`
	ExplicitContext *ContextItem       `json:"explicit_context,omitempty"`
	RerankOptions   RerankOptions      `json:"rerank_options,omitempty"`
}

type AnswerResult struct {
	Answer      string        `json:"answer"`
	ResultCount int           `json:"result_count"`
	Context     []ContextItem `json:"context,omitempty"`
	Diagnostics Diagnostics   `json:"diagnostics"`
}
