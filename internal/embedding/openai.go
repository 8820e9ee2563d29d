package embedding

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/quiby-ai/review-insights/internal/httpclient"
)

type OpenAIConfig struct {
	APIKey         string
	BaseURL        string
	Model          string
	Dimension      int
	BatchSize      int
	MaxRetries     int
	Timeout        time.Duration
	RequestsPerSec float64
}

type OpenAIClient struct {
	httpClient *http.Client
	limiter    *rate.Limiter
	cfg        OpenAIConfig
	logger     *slog.Logger
}

type embeddingRequest struct {
	Input      any    `json:"input"`
	Model      string `json:"model"`
	Dimensions int    `json:"dimensions,omitempty"`
}

type embeddingResponse struct {
	Data []struct {
		Embedding []float64 `json:"embedding"`
		Index     int       `json:"index"`
	} `json:"data"`
	Model string `json:"model"`
	Usage struct {
		PromptTokens int `json:"prompt_tokens"`
		TotalTokens  int `json:"total_tokens"`
	} `json:"usage"`
}

func NewOpenAIClient(cfg OpenAIConfig, logger *slog.Logger) (*OpenAIClient, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("OpenAI API key is required")
	}

	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.openai.com/v1"
	}

	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}

	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 10
	}

	limit := rate.Inf
	if cfg.RequestsPerSec > 0 {
		limit = rate.Limit(cfg.RequestsPerSec)
	}

	return &OpenAIClient{
		httpClient: &http.Client{Timeout: cfg.Timeout},
		limiter:    rate.NewLimiter(limit, 1),
		cfg:        cfg,
		logger:     logger,
	}, nil
}

func (c *OpenAIClient) Dimension() int { return c.cfg.Dimension }

func (c *OpenAIClient) ModelName() string { return c.cfg.Model }

func (c *OpenAIClient) Embed(ctx context.Context, text string) ([]float32, error) {
	vectors, err := c.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

func (c *OpenAIClient) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	allVectors := make([][]float32, 0, len(texts))
	for i := 0; i < len(texts); i += c.cfg.BatchSize {
		end := min(i+c.cfg.BatchSize, len(texts))

		vectors, err := c.processBatch(ctx, texts[i:end])
		if err != nil {
			return nil, fmt.Errorf("failed to process batch %d-%d: %w", i, end, err)
		}

		allVectors = append(allVectors, vectors...)
		c.logger.Debug("Processed embedding batch", "start", i, "end", end, "total", len(allVectors))
	}

	return allVectors, nil
}

func (c *OpenAIClient) processBatch(ctx context.Context, texts []string) ([][]float32, error) {
	inputs := make([]string, len(texts))
	for i, t := range texts {
		inputs[i] = preprocessText(t)
	}

	req := embeddingRequest{
		Input:      inputs,
		Model:      c.cfg.Model,
		Dimensions: c.cfg.Dimension,
	}

	var resp *embeddingResponse
	var err error

	for attempt := 0; attempt <= c.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			c.logger.Warn("Retrying OpenAI request", "attempt", attempt+1, "max_attempts", c.cfg.MaxRetries+1, "error", err)
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(time.Duration(attempt) * time.Second):
			}
		}

		if err = c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limiter: %w", err)
		}

		resp, err = c.makeRequest(ctx, req)
		if err == nil {
			break
		}
	}

	if err != nil {
		return nil, fmt.Errorf("all retry attempts failed: %w", err)
	}

	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("expected %d embeddings, got %d", len(texts), len(resp.Data))
	}

	vectors := make([][]float32, len(resp.Data))
	for _, item := range resp.Data {
		if item.Index < 0 || item.Index >= len(vectors) {
			return nil, fmt.Errorf("embedding index %d out of range", item.Index)
		}
		vector := make([]float32, len(item.Embedding))
		for j, val := range item.Embedding {
			vector[j] = float32(val)
		}
		if err := checkDimension(vector, c.cfg.Dimension); err != nil {
			return nil, err
		}
		vectors[item.Index] = vector
	}

	return vectors, nil
}

func (c *OpenAIClient) makeRequest(ctx context.Context, req embeddingRequest) (*embeddingResponse, error) {
	var out embeddingResponse
	if err := httpclient.PostJSON(ctx, c.httpClient, c.cfg.BaseURL+"/embeddings", c.cfg.APIKey, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
