// Package embeddings wraps the hosted embedding provider behind a small
// client with client-side rate limiting.
package embeddings

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/driftline/signal-engine/pkg/retry"
)

// maxInputChars bounds embedding input length. The provider rejects inputs
// over ~8k tokens; 4 chars per token is a safe approximation.
const maxInputChars = 32000

// Client generates embeddings through an OpenAI-compatible endpoint.
type Client struct {
	client     *openai.Client
	model      string
	dimensions int
	limiter    *rate.Limiter
	retryCfg   *retry.Config
	logger     *zap.Logger
}

// Config holds configuration for creating an embedding client.
type Config struct {
	BaseURL           string
	APIKey            string
	Model             string // e.g. "text-embedding-3-small"
	Dimensions        int    // vector length, must match the store schema
	RequestsPerMinute int    // client-side rate cap; 0 disables limiting
}

// NewClient creates a new embedding client.
func NewClient(cfg *Config, logger *zap.Logger) (*Client, error) {
	if cfg.Model == "" {
		return nil, fmt.Errorf("model is required")
	}
	if cfg.Dimensions <= 0 {
		return nil, fmt.Errorf("dimensions must be positive")
	}

	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientConfig.BaseURL = strings.TrimSuffix(cfg.BaseURL, "/")
	}

	limiter := rate.NewLimiter(rate.Inf, 1)
	if cfg.RequestsPerMinute > 0 {
		limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(cfg.RequestsPerMinute)), 10)
	}

	return &Client{
		client:     openai.NewClientWithConfig(clientConfig),
		model:      cfg.Model,
		dimensions: cfg.Dimensions,
		limiter:    limiter,
		retryCfg:   retry.DefaultConfig(),
		logger:     logger.Named("embeddings"),
	}, nil
}

// Embed generates an embedding vector for a single text.
func (c *Client) Embed(ctx context.Context, text string) ([]float32, error) {
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("empty input text")
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}

	start := time.Now()
	resp, err := c.createEmbeddings(ctx, []string{truncate(text)})
	if err != nil {
		c.logger.Error("embedding request failed",
			zap.Duration("elapsed", time.Since(start)),
			zap.Error(err))
		return nil, fmt.Errorf("create embedding: %w", err)
	}

	if len(resp.Data) == 0 || len(resp.Data[0].Embedding) == 0 {
		return nil, fmt.Errorf("no embedding in response")
	}

	c.logger.Debug("embedding request completed",
		zap.Int("input_len", len(text)),
		zap.Duration("elapsed", time.Since(start)))

	return resp.Data[0].Embedding, nil
}

// EmbedBatch generates embeddings for multiple texts in one request,
// preserving input order. Empty inputs produce zero vectors rather than
// failing the whole batch.
func (c *Client) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	inputs := make([]string, 0, len(texts))
	emptyAt := make(map[int]bool)
	for i, text := range texts {
		if strings.TrimSpace(text) == "" {
			emptyAt[i] = true
			continue
		}
		inputs = append(inputs, truncate(text))
	}

	vectors := make([][]float32, len(texts))
	if len(inputs) > 0 {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limiter: %w", err)
		}

		resp, err := c.createEmbeddings(ctx, inputs)
		if err != nil {
			return nil, fmt.Errorf("create embeddings batch: %w", err)
		}
		if len(resp.Data) != len(inputs) {
			return nil, fmt.Errorf("expected %d embeddings, got %d", len(inputs), len(resp.Data))
		}

		next := 0
		for i := range texts {
			if emptyAt[i] {
				continue
			}
			vectors[i] = resp.Data[next].Embedding
			next++
		}
	}

	for i := range texts {
		if emptyAt[i] {
			vectors[i] = make([]float32, c.dimensions)
		}
	}

	return vectors, nil
}

// Model returns the configured embedding model name.
func (c *Client) Model() string {
	return c.model
}

// Dimensions returns the configured vector length.
func (c *Client) Dimensions() int {
	return c.dimensions
}

// createEmbeddings issues one provider request, retrying transient failures
// with backoff. Permanent failures (bad key, malformed input) fail fast.
func (c *Client) createEmbeddings(ctx context.Context, inputs []string) (openai.EmbeddingResponse, error) {
	var resp openai.EmbeddingResponse
	err := retry.DoIfRetryable(ctx, c.retryCfg, func() error {
		r, err := c.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
			Model:      openai.EmbeddingModel(c.model),
			Input:      inputs,
			Dimensions: c.dimensions,
		})
		if err != nil {
			return err
		}
		resp = r
		return nil
	})
	return resp, err
}

// truncate caps input length without splitting a multi-byte rune at the
// boundary, which would hand the provider invalid UTF-8.
func truncate(text string) string {
	if len(text) <= maxInputChars {
		return text
	}
	cut := maxInputChars
	for cut > 0 && !utf8.RuneStart(text[cut]) {
		cut--
	}
	return text[:cut]
}
