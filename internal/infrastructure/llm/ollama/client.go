package ollama

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/kirillkom/askbase/internal/core/domain"
	"github.com/kirillkom/askbase/internal/infrastructure/resilience"
)

type Config struct {
	BaseURL    string
	ChatModel  string
	EmbedModel string

	// RequestsPerSecond throttles all outbound model calls; zero disables
	// the limiter.
	RequestsPerSecond float64
	Burst             int

	HTTPTimeout time.Duration
}

type Client struct {
	baseURL    string
	chatModel  string
	embedModel string
	httpClient *http.Client
	limiter    *rate.Limiter
	runner     *resilience.Runner
}

func New(cfg Config, runner *resilience.Runner) *Client {
	timeout := cfg.HTTPTimeout
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	var limiter *rate.Limiter
	if cfg.RequestsPerSecond > 0 {
		burst := cfg.Burst
		if burst <= 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), burst)
	}
	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		chatModel:  cfg.ChatModel,
		embedModel: cfg.EmbedModel,
		httpClient: &http.Client{Timeout: timeout},
		limiter:    limiter,
		runner:     runner,
	}
}

func (c *Client) acquire(ctx context.Context) error {
	if c.limiter == nil {
		return nil
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait: %w", err)
	}
	return nil
}

func (c *Client) call(ctx context.Context, operation, path string, payload, out any) error {
	if err := c.acquire(ctx); err != nil {
		return err
	}
	run := func(ctx context.Context) error {
		return c.postJSON(ctx, path, payload, out, operation)
	}
	var err error
	if c.runner != nil {
		err = c.runner.Do(ctx, operation, classifyOllamaError, run)
	} else {
		err = run(ctx)
	}
	return wrapTemporaryIfNeeded(operation, err)
}

func (c *Client) generateJSON(ctx context.Context, operation, prompt string) (string, error) {
	var response struct {
		Response string `json:"response"`
	}
	payload := map[string]any{
		"model":  c.chatModel,
		"prompt": prompt,
		"stream": false,
		"format": "json",
	}
	if err := c.call(ctx, operation, "/api/generate", payload, &response); err != nil {
		return "", err
	}
	return strings.TrimSpace(response.Response), nil
}

func (c *Client) generateText(ctx context.Context, operation, prompt string) (string, error) {
	var response struct {
		Response string `json:"response"`
	}
	payload := map[string]any{
		"model":  c.chatModel,
		"prompt": prompt,
		"stream": false,
	}
	if err := c.call(ctx, operation, "/api/generate", payload, &response); err != nil {
		return "", err
	}
	return strings.TrimSpace(response.Response), nil
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

func (c *Client) chat(ctx context.Context, operation string, messages []chatMessage) (string, error) {
	var response struct {
		Message chatMessage `json:"message"`
	}
	payload := map[string]any{
		"model":    c.chatModel,
		"messages": messages,
		"stream":   false,
	}
	if err := c.call(ctx, operation, "/api/chat", payload, &response); err != nil {
		return "", err
	}
	return strings.TrimSpace(response.Message.Content), nil
}

// Embedder produces query embeddings, implementing ports.Embedder.
type Embedder struct {
	client *Client
}

func NewEmbedder(client *Client) *Embedder {
	return &Embedder{client: client}
}

func (e *Embedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	var response struct {
		Embeddings [][]float32 `json:"embeddings"`
	}
	payload := map[string]any{
		"model": e.client.embedModel,
		"input": []string{text},
	}
	if err := e.client.call(ctx, "embed", "/api/embed", payload, &response); err != nil {
		return nil, err
	}
	if len(response.Embeddings) == 0 || len(response.Embeddings[0]) == 0 {
		return nil, fmt.Errorf("empty embedding result")
	}
	return response.Embeddings[0], nil
}

// Classifier returns the raw structured-classification output; tolerant
// parsing happens in the use case.
type Classifier struct {
	client *Client
}

func NewClassifier(client *Client) *Classifier {
	return &Classifier{client: client}
}

func (c *Classifier) ClassifyQuery(ctx context.Context, text string) (string, error) {
	return c.client.generateJSON(ctx, "classify", buildClassificationPrompt(text))
}

// Expander rewrites a query into a broader formulation for the fallback
// cascade's expansion stage.
type Expander struct {
	client *Client
}

func NewExpander(client *Client) *Expander {
	return &Expander{client: client}
}

func (e *Expander) Expand(ctx context.Context, query string) (string, error) {
	rewritten, err := e.client.generateText(ctx, "expand", buildExpansionPrompt(query))
	if err != nil {
		return "", err
	}
	return sanitizeExpansion(rewritten), nil
}

// Generator produces the final answer through the chat endpoint, so the
// conversation history rides as proper turns instead of prompt text.
type Generator struct {
	client *Client
}

func NewGenerator(client *Client) *Generator {
	return &Generator{client: client}
}

func (g *Generator) Generate(ctx context.Context, systemPrompt string, messages []domain.ConversationTurn) (string, error) {
	chatMessages := make([]chatMessage, 0, len(messages)+1)
	if strings.TrimSpace(systemPrompt) != "" {
		chatMessages = append(chatMessages, chatMessage{Role: "system", Content: systemPrompt})
	}
	for _, turn := range messages {
		role := turn.Role
		if role != "assistant" && role != "system" {
			role = "user"
		}
		chatMessages = append(chatMessages, chatMessage{Role: role, Content: turn.Content})
	}
	return g.client.chat(ctx, "generate", chatMessages)
}
