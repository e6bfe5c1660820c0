// Package openai implements llm.TextGenerator and llm.Embedder over any
// OpenAI-compatible endpoint, Groq included.
package openai

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"

	"github.com/wandermind/stategraph/internal/adapters/llm"
)

// Config for the client
type Config struct {
	APIKey         string
	BaseURL        string // empty means api.openai.com
	Model          string
	EmbeddingModel string
	Temperature    float32
	MaxTokens      int
	Timeout        time.Duration // per request; zero means no extra deadline
}

// Client wraps the OpenAI client with per-request timeouts and typed errors
type Client struct {
	client *openai.Client
	cfg    Config
}

var (
	_ llm.TextGenerator = (*Client)(nil)
	_ llm.Embedder      = (*Client)(nil)
)

// NewClient creates a new client wrapper
func NewClient(cfg Config) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("openai: api key is required")
	}
	if cfg.Model == "" {
		return nil, errors.New("openai: model is required")
	}
	oc := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		oc.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	}
	return &Client{client: openai.NewClientWithConfig(oc), cfg: cfg}, nil
}

// Model returns the chat model name
func (c *Client) Model() string { return c.cfg.Model }

// Generate sends prompt as a single user message and returns the first choice
func (c *Client) Generate(ctx context.Context, prompt string) (string, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       c.cfg.Model,
		Messages:    []openai.ChatCompletionMessage{{Role: openai.ChatMessageRoleUser, Content: prompt}},
		MaxTokens:   c.cfg.MaxTokens,
		Temperature: wireTemperature(c.cfg.Temperature),
	})
	if err != nil {
		return "", &llm.ServiceError{Op: "generate", Model: c.cfg.Model, Err: err}
	}
	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		return "", &llm.ServiceError{Op: "generate", Model: c.cfg.Model, Err: llm.ErrEmptyResponse}
	}
	return resp.Choices[0].Message.Content, nil
}

// Embed creates embeddings for texts in one batch request
func (c *Client) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	model := c.cfg.EmbeddingModel
	if len(texts) == 0 {
		return nil, &llm.ServiceError{Op: "embed", Model: model, Err: errors.New("no texts provided")}
	}
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	resp, err := c.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input: texts,
		Model: openai.EmbeddingModel(model),
	})
	if err != nil {
		return nil, &llm.ServiceError{Op: "embed", Model: model, Err: err}
	}
	if len(resp.Data) != len(texts) {
		return nil, &llm.ServiceError{
			Op: "embed", Model: model,
			Err: fmt.Errorf("got %d embeddings for %d texts", len(resp.Data), len(texts)),
		}
	}

	out := make([][]float32, len(texts))
	for _, d := range resp.Data {
		if d.Index < 0 || d.Index >= len(out) {
			return nil, &llm.ServiceError{Op: "embed", Model: model, Err: fmt.Errorf("embedding index %d out of range", d.Index)}
		}
		out[d.Index] = d.Embedding
	}
	return out, nil
}

func (c *Client) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.cfg.Timeout > 0 {
		return context.WithTimeout(ctx, c.cfg.Timeout)
	}
	return context.WithCancel(ctx)
}

// wireTemperature maps 0 to the smallest positive float32: the request field
// is omitempty, so a literal zero would fall back to the server default.
func wireTemperature(t float32) float32 {
	if t == 0 {
		return math.SmallestNonzeroFloat32
	}
	return t
}
