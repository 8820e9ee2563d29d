// Package embedding turns review text into fixed-dimension vectors.
package embedding

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/quiby-ai/review-insights/config"
)

// Embedder must return vectors of Dimension() length for every input, in
// input order. The same instance serves indexing and querying.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, inputs []string) ([][]float32, error)
	Dimension() int
	ModelName() string
}

// New picks the embedder described by cfg. A remote provider that cannot be
// initialized falls back to the local hashing embedder.
func New(cfg *config.Config, logger *slog.Logger) Embedder {
	dim := cfg.Embedding.Dimension

	switch cfg.Embedding.Provider {
	case "openai":
		client, err := NewOpenAIClient(OpenAIConfig{
			APIKey:         cfg.OpenAI.APIKey,
			BaseURL:        cfg.OpenAI.BaseURL,
			Model:          cfg.OpenAI.Model,
			Dimension:      dim,
			BatchSize:      cfg.Embedding.BatchSize,
			MaxRetries:     cfg.OpenAI.MaxRetries,
			Timeout:        cfg.OpenAI.Timeout,
			RequestsPerSec: cfg.OpenAI.RequestsPerSec,
		}, logger)
		if err != nil {
			logger.Warn("Failed to initialize OpenAI client, falling back to hashing embedder", "error", err)
			return NewHashingEmbedder(dim)
		}
		return client
	case "ollama":
		return NewOllamaClient(cfg.Ollama.BaseURL, cfg.Ollama.Model, dim, cfg.Ollama.Timeout)
	default:
		logger.Info("Using local hashing embedder", "dim", dim)
		return NewHashingEmbedder(dim)
	}
}

func preprocessText(text string) string {
	return strings.Join(strings.Fields(text), " ")
}

func checkDimension(vec []float32, dim int) error {
	if len(vec) != dim {
		return fmt.Errorf("embedding dimension mismatch: expected %d, got %d", dim, len(vec))
	}
	return nil
}
