package index

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// keywordEmbedder counts vocabulary words; unknown words are ignored.
type keywordEmbedder struct {
	vocab []string
	fail  bool
}

func (k *keywordEmbedder) Dimension() int    { return len(k.vocab) }
func (k *keywordEmbedder) ModelName() string { return "keywords" }

func (k *keywordEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	if k.fail {
		return nil, errors.New("embedding service down")
	}
	vec := make([]float32, len(k.vocab))
	for _, word := range strings.Fields(strings.ToLower(text)) {
		for i, v := range k.vocab {
			if v == word {
				vec[i]++
			}
		}
	}
	return vec, nil
}

func (k *keywordEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		v, err := k.Embed(ctx, t)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func newTestStore(t *testing.T) (*Store, *keywordEmbedder) {
	t.Helper()
	emb := &keywordEmbedder{vocab: []string{"battery", "great", "bad", "life", "excellent", "camera"}}
	return NewStore(emb, 0, slog.New(slog.NewTextHandler(io.Discard, nil))), emb
}

func TestStore_SearchOrdering(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t)

	for _, c := range []string{"great battery life", "bad battery life", "excellent camera"} {
		require.NoError(t, s.Add(ctx, "user", c))
	}

	res, err := s.Search(ctx, "battery", 2)
	require.NoError(t, err)
	assert.False(t, res.NoData)
	assert.Equal(t, []string{"great battery life", "bad battery life"}, res.Comments())

	res, err = s.Search(ctx, "battery", 3)
	require.NoError(t, err)
	assert.Equal(t, []string{"great battery life", "bad battery life", "excellent camera"}, res.Comments())
	assert.LessOrEqual(t, res.Hits[0].Distance, res.Hits[1].Distance)
	assert.Less(t, res.Hits[1].Distance, res.Hits[2].Distance)
}

func TestStore_SearchIsDeterministic(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t)
	for _, c := range []string{"great camera", "bad camera", "camera", "battery"} {
		require.NoError(t, s.Add(ctx, "u", c))
	}

	first, err := s.Search(ctx, "camera life", 4)
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		again, err := s.Search(ctx, "camera life", 4)
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
}

func TestStore_SearchFiltersMissingNeighbors(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t)
	require.NoError(t, s.Add(ctx, "u", "great battery"))

	res, err := s.Search(ctx, "battery", 10)
	require.NoError(t, err)
	assert.Len(t, res.Hits, 1)
	assert.Equal(t, 0, res.Hits[0].Position)
}

func TestStore_SearchHugeK(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t)
	require.NoError(t, s.Add(ctx, "u", "great battery"))

	var res SearchResult
	assert.NotPanics(t, func() {
		var err error
		res, err = s.Search(ctx, "battery", 1<<62)
		require.NoError(t, err)
	})
	assert.Len(t, res.Hits, 1)
}

func TestStore_SearchEmptyIndex(t *testing.T) {
	s, emb := newTestStore(t)
	emb.fail = true // an empty index must not reach the embedder

	res, err := s.Search(context.Background(), "battery", 3)
	require.NoError(t, err)
	assert.True(t, res.NoData)
	assert.Empty(t, res.Hits)
}

func TestStore_SearchEmptyQuery(t *testing.T) {
	s, _ := newTestStore(t)
	_, err := s.Search(context.Background(), "", 3)
	assert.ErrorIs(t, err, ErrEmptyQuery)
}

func TestStore_SearchDefaultK(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t)
	for i := 0; i < 8; i++ {
		require.NoError(t, s.Add(ctx, "u", fmt.Sprintf("battery %d", i)))
	}

	res, err := s.Search(ctx, "battery", 0)
	require.NoError(t, err)
	assert.Len(t, res.Hits, DefaultK)
}

func TestStore_AlignmentInvariant(t *testing.T) {
	ctx := context.Background()
	s, emb := newTestStore(t)

	comments := []string{"great battery", "bad camera", "excellent life", "battery battery", ""}
	for i, c := range comments {
		require.NoError(t, s.Add(ctx, fmt.Sprintf("user-%d", i), c))
	}
	require.NoError(t, s.AddBatch(ctx, []Item{{Username: "a", Comment: "camera"}, {Username: "b", Comment: "life"}}))

	entries := s.Entries()
	require.Equal(t, s.Size(), len(entries))
	require.Equal(t, len(comments)+2, s.Size())

	for i, e := range entries {
		want, err := emb.Embed(ctx, e.Comment)
		require.NoError(t, err)
		assert.Equal(t, want, e.Vector)
		assert.Equal(t, want, s.flat.data[i*s.dim:(i+1)*s.dim], "row %d", i)
	}
	assert.Equal(t, "a", entries[len(comments)].Username)
}

func TestStore_EmbeddingFailureLeavesStoreUntouched(t *testing.T) {
	ctx := context.Background()
	s, emb := newTestStore(t)
	require.NoError(t, s.Add(ctx, "u", "battery"))

	emb.fail = true
	assert.ErrorIs(t, s.Add(ctx, "u", "camera"), ErrEmbedding)
	assert.ErrorIs(t, s.AddBatch(ctx, []Item{{Username: "u", Comment: "camera"}}), ErrEmbedding)

	_, err := s.Search(ctx, "battery", 1)
	assert.ErrorIs(t, err, ErrEmbedding)
	_, _, err = s.EmbedQuery(ctx, "battery", 1)
	assert.ErrorIs(t, err, ErrEmbedding)

	assert.Equal(t, 1, s.Size())
	assert.Len(t, s.Entries(), 1)
}

func TestStore_SelfHealsCorruptedIndex(t *testing.T) {
	ctx := context.Background()

	t.Run("missing", func(t *testing.T) {
		s, _ := newTestStore(t)
		require.NoError(t, s.Add(ctx, "u", "battery"))
		s.flat = nil

		require.NoError(t, s.Add(ctx, "u", "camera"))
		assert.Equal(t, 1, s.Size())
		assert.Equal(t, []string{"camera"}, s.Comments())
		assert.Equal(t, s.dim, s.flat.Dim())
	})

	t.Run("wrong dimension", func(t *testing.T) {
		s, _ := newTestStore(t)
		s.flat = NewFlatL2(7)

		require.NoError(t, s.Add(ctx, "u", "camera"))
		assert.Equal(t, 1, s.Size())
		assert.Equal(t, 6, s.flat.Dim())
	})

	t.Run("skewed entries", func(t *testing.T) {
		s, _ := newTestStore(t)
		require.NoError(t, s.Add(ctx, "u", "battery"))
		s.entries = append(s.entries, Entry{Comment: "orphan"})

		require.NoError(t, s.Add(ctx, "u", "camera"))
		assert.Equal(t, 1, s.Size())
		assert.Equal(t, []string{"camera"}, s.Comments())
	})
}

func TestStore_ConcurrentAddAndSearch(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(2)
		go func(i int) {
			defer wg.Done()
			assert.NoError(t, s.Add(ctx, fmt.Sprintf("u%d", i), "great battery life"))
		}(i)
		go func() {
			defer wg.Done()
			res, err := s.Search(ctx, "battery", 3)
			assert.NoError(t, err)
			for _, h := range res.Hits {
				assert.Equal(t, "great battery life", h.Comment)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 20, s.Size())
	assert.Len(t, s.Entries(), 20)
}

func TestFlatL2(t *testing.T) {
	f := NewFlatL2(2)
	require.NoError(t, f.Add([]float32{0, 0}))
	require.NoError(t, f.Add([]float32{3, 4}))
	require.NoError(t, f.Add([]float32{0, 0}))
	assert.ErrorIs(t, f.Add([]float32{1}), ErrDimensionMismatch)

	ids, dists, err := f.Search([]float32{0, 0}, 4)
	require.NoError(t, err)
	assert.Equal(t, []int{0, 2, 1}, ids)
	assert.Equal(t, float32(25), dists[2])

	ids, dists, err = f.Search([]float32{0, 0}, 0)
	require.NoError(t, err)
	assert.Empty(t, ids)
	assert.Empty(t, dists)

	_, _, err = f.Search([]float32{1, 2, 3}, 1)
	assert.ErrorIs(t, err, ErrDimensionMismatch)
}

func TestStore_InsertReturnsCopy(t *testing.T) {
	s, _ := newTestStore(t)

	vec, err := s.Insert(context.Background(), "alice", "great battery")
	require.NoError(t, err)
	require.Len(t, vec, 6)

	vec[0] = 99
	assert.NotEqual(t, float32(99), s.Entries()[0].Vector[0])
	assert.Equal(t, 1, s.Size())
}
