package qdrant

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/kirillkom/askbase/internal/core/domain"
)

// Client talks to a qdrant collection holding one named dense vector
// ("dense") and one named sparse vector ("sparse") per chunk.
type Client struct {
	baseURL    string
	collection string
	httpClient *http.Client
}

func New(baseURL, collection string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		collection: collection,
		httpClient: &http.Client{Timeout: 60 * time.Second},
	}
}

type searchResult struct {
	ID      any            `json:"id"`
	Score   float64        `json:"score"`
	Payload map[string]any `json:"payload"`
}

func (c *Client) search(ctx context.Context, reqBody map[string]any) ([]searchResult, error) {
	body, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("marshal search body: %w", err)
	}

	url := fmt.Sprintf("%s/collections/%s/points/search", c.baseURL, c.collection)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create search request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, domain.WrapError(domain.ErrTemporary, "qdrant search", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		statusErr := fmt.Errorf("qdrant search status: %s: %s", resp.Status, strings.TrimSpace(string(raw)))
		if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
			return nil, domain.WrapError(domain.ErrTemporary, "qdrant search", statusErr)
		}
		return nil, statusErr
	}

	var searchResp struct {
		Result []searchResult `json:"result"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&searchResp); err != nil {
		return nil, fmt.Errorf("decode search response: %w", err)
	}
	return searchResp.Result, nil
}

// DenseSearcher implements ports.VectorSearcher over the "dense" named vector.
type DenseSearcher struct {
	client *Client
}

func NewDenseSearcher(client *Client) *DenseSearcher {
	return &DenseSearcher{client: client}
}

func (s *DenseSearcher) Search(
	ctx context.Context,
	vector []float32,
	filter domain.RetrievalFilter,
	threshold float64,
	limit int,
) ([]domain.RetrievedChunk, error) {
	if len(vector) == 0 {
		return nil, fmt.Errorf("empty query vector")
	}
	reqBody := map[string]any{
		"vector": map[string]any{
			"name":   "dense",
			"vector": vector,
		},
		"limit":        limit,
		"with_payload": true,
	}
	if threshold > 0 {
		reqBody["score_threshold"] = threshold
	}
	if qf := buildFilter(filter); qf != nil {
		reqBody["filter"] = qf
	}

	results, err := s.client.search(ctx, reqBody)
	if err != nil {
		return nil, err
	}
	out := make([]domain.RetrievedChunk, 0, len(results))
	for _, r := range results {
		chunk := chunkFromResult(r)
		chunk.VectorScore = r.Score
		out = append(out, chunk)
	}
	return out, nil
}

// SparseSearcher implements ports.KeywordSearcher: the query text is encoded
// into a hashed sparse term vector and matched against the "sparse" named
// vector, which approximates BM25 keyword search server-side.
type SparseSearcher struct {
	client *Client
}

func NewSparseSearcher(client *Client) *SparseSearcher {
	return &SparseSearcher{client: client}
}

func (s *SparseSearcher) Search(
	ctx context.Context,
	text string,
	filter domain.RetrievalFilter,
	limit int,
) ([]domain.RetrievedChunk, error) {
	sparse := encodeSparseQuery(text)
	if len(sparse.Indices) == 0 {
		return nil, nil
	}
	reqBody := map[string]any{
		"vector": map[string]any{
			"name":   "sparse",
			"vector": sparse,
		},
		"limit":        limit,
		"with_payload": true,
	}
	if qf := buildFilter(filter); qf != nil {
		reqBody["filter"] = qf
	}

	results, err := s.client.search(ctx, reqBody)
	if err != nil {
		return nil, err
	}
	out := make([]domain.RetrievedChunk, 0, len(results))
	for _, r := range results {
		chunk := chunkFromResult(r)
		chunk.KeywordScore = r.Score
		out = append(out, chunk)
	}
	return out, nil
}

func chunkFromResult(r searchResult) domain.RetrievedChunk {
	chunk := domain.RetrievedChunk{
		ID:         fmt.Sprintf("%v", r.ID),
		DocumentID: payloadString(r.Payload, "document_id"),
		Text:       payloadString(r.Payload, "text"),
	}
	metadata := make(map[string]string)
	for key, value := range r.Payload {
		switch key {
		case "document_id", "text":
			continue
		}
		if s, ok := value.(string); ok {
			metadata[key] = s
		}
	}
	if len(metadata) > 0 {
		chunk.Metadata = metadata
	}
	return chunk
}

func payloadString(payload map[string]any, key string) string {
	v, ok := payload[key]
	if !ok {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprintf("%v", v)
}
