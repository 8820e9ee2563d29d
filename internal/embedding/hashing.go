package embedding

import (
	"context"
	"hash/fnv"
	"math"
	"strings"

	"github.com/quiby-ai/review-insights/internal/normalize"
)

// HashingEmbedder is a deterministic bag-of-words embedder using signed
// feature hashing. Vectors are L2-normalized; text without tokens maps to the
// zero vector.
type HashingEmbedder struct {
	dim int
}

func NewHashingEmbedder(dim int) *HashingEmbedder {
	return &HashingEmbedder{dim: dim}
}

func (e *HashingEmbedder) Dimension() int { return e.dim }

func (e *HashingEmbedder) ModelName() string { return "hashing-bow" }

func (e *HashingEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	vec := make([]float64, e.dim)
	for _, tok := range strings.Fields(normalize.ScoringText(text)) {
		h := fnv.New64a()
		_, _ = h.Write([]byte(tok))
		sum := h.Sum64()

		sign := 1.0
		if sum>>63 == 1 {
			sign = -1.0
		}
		vec[sum%uint64(e.dim)] += sign
	}

	norm := 0.0
	for _, v := range vec {
		norm += v * v
	}
	norm = math.Sqrt(norm)

	out := make([]float32, e.dim)
	if norm == 0 {
		return out, nil
	}
	for i, v := range vec {
		out[i] = float32(v / norm)
	}
	return out, nil
}

func (e *HashingEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		vec, err := e.Embed(ctx, text)
		if err != nil {
			return nil, err
		}
		out[i] = vec
	}
	return out, nil
}
