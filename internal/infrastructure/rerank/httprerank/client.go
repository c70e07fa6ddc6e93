package httprerank

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

// Client calls an external rerank service that scores candidate passages
// against the query. Implements ports.Reranker.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

func New(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
	}
}

type rerankCandidate struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

type rerankRequest struct {
	Query            string            `json:"query"`
	Candidates       []rerankCandidate `json:"candidates"`
	UseVisualContext bool              `json:"use_visual_context,omitempty"`
	VisualTypes      []string          `json:"visual_types,omitempty"`
}

type rerankResponse struct {
	Results []struct {
		ID          string  `json:"id"`
		Score       float64 `json:"score"`
		Explanation string  `json:"explanation,omitempty"`
	} `json:"results"`
}

func (c *Client) Rerank(
	ctx context.Context,
	query string,
	candidates []domain.RetrievedChunk,
	opts domain.RerankOptions,
) ([]domain.RankedResult, error) {
	if len(candidates) == 0 {
		return nil, nil
	}

	reqBody := rerankRequest{
		Query:            query,
		Candidates:       make([]rerankCandidate, 0, len(candidates)),
		UseVisualContext: opts.UseVisualContext,
		VisualTypes:      opts.VisualTypes,
	}
	byID := make(map[string]domain.RetrievedChunk, len(candidates))
	for _, candidate := range candidates {
		key := candidate.Identity()
		byID[key] = candidate
		reqBody.Candidates = append(reqBody.Candidates, rerankCandidate{ID: key, Text: candidate.Text})
	}

	body, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("marshal rerank request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/rerank", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create rerank request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, domain.WrapError(domain.ErrTemporary, "rerank", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		statusErr := fmt.Errorf("rerank status: %s: %s", resp.Status, strings.TrimSpace(string(raw)))
		if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
			return nil, domain.WrapError(domain.ErrTemporary, "rerank", statusErr)
		}
		return nil, statusErr
	}

	var parsed rerankResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decode rerank response: %w", err)
	}

	out := make([]domain.RankedResult, 0, len(parsed.Results))
	for _, result := range parsed.Results {
		chunk, ok := byID[result.ID]
		if !ok {
			// Unknown ids mean the service answered for a different request.
			return nil, fmt.Errorf("rerank response references unknown candidate %q", result.ID)
		}
		out = append(out, domain.RankedResult{
			RetrievedChunk: chunk,
			RerankScore:    result.Score,
			Explanation:    result.Explanation,
		})
	}
	return out, nil
}
