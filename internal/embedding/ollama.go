package embedding

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/quiby-ai/review-insights/internal/httpclient"
)

// OllamaClient embeds text with a local Ollama server.
type OllamaClient struct {
	baseURL string
	model   string
	dim     int
	client  *http.Client
}

func NewOllamaClient(baseURL, model string, dim int, timeout time.Duration) *OllamaClient {
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &OllamaClient{
		baseURL: baseURL,
		model:   model,
		dim:     dim,
		client:  &http.Client{Timeout: timeout},
	}
}

type ollamaEmbedReq struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
}

type ollamaEmbedResp struct {
	Embedding []float64 `json:"embedding"`
}

func (c *OllamaClient) Dimension() int { return c.dim }

func (c *OllamaClient) ModelName() string { return c.model }

func (c *OllamaClient) Embed(ctx context.Context, text string) ([]float32, error) {
	var result ollamaEmbedResp
	req := ollamaEmbedReq{Model: c.model, Prompt: preprocessText(text)}
	if err := httpclient.PostJSON(ctx, c.client, c.baseURL+"/api/embeddings", "", req, &result); err != nil {
		return nil, fmt.Errorf("ollama embed: %w", err)
	}

	out := make([]float32, len(result.Embedding))
	for i, v := range result.Embedding {
		out[i] = float32(v)
	}
	if err := checkDimension(out, c.dim); err != nil {
		return nil, fmt.Errorf("ollama embed: %w", err)
	}
	return out, nil
}

func (c *OllamaClient) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		vec, err := c.Embed(ctx, text)
		if err != nil {
			return nil, fmt.Errorf("embed batch [%d]: %w", i, err)
		}
		out[i] = vec
	}
	return out, nil
}
