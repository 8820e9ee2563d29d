// Package index keeps review embeddings searchable in process memory.
package index

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/quiby-ai/review-insights/internal/embedding"
)

var (
	ErrEmptyQuery        = errors.New("empty query")
	ErrDimensionMismatch = errors.New("vector dimension mismatch")
	ErrEmbedding         = errors.New("embedding service failed")
)

const DefaultK = 5

// Entry is the record stored alongside row i of the vector index.
type Entry struct {
	Username string
	Comment  string
	Vector   []float32
}

// Item is a review to be indexed.
type Item struct {
	Username string
	Comment  string
}

type Hit struct {
	Position int     `json:"position"`
	Username string  `json:"username"`
	Comment  string  `json:"comment"`
	Distance float32 `json:"distance"`
}

// SearchResult distinguishes an empty index (NoData) from a query with no hits.
type SearchResult struct {
	Query  string `json:"query"`
	NoData bool   `json:"no_data"`
	Hits   []Hit  `json:"hits"`
}

func (r SearchResult) Comments() []string {
	out := make([]string, len(r.Hits))
	for i, h := range r.Hits {
		out[i] = h.Comment
	}
	return out
}

// Store owns the vector index and the entry list. Row i of the index and
// entries[i] always describe the same review; both only change together under mu.
type Store struct {
	mu       sync.RWMutex
	dim      int
	flat     *FlatL2
	entries  []Entry
	embedder embedding.Embedder
	defaultK int
	logger   *slog.Logger
}

func NewStore(embedder embedding.Embedder, defaultK int, logger *slog.Logger) *Store {
	if defaultK <= 0 {
		defaultK = DefaultK
	}
	return &Store{
		dim:      embedder.Dimension(),
		flat:     NewFlatL2(embedder.Dimension()),
		embedder: embedder,
		defaultK: defaultK,
		logger:   logger,
	}
}

func (s *Store) Dimension() int { return s.dim }

// EmbedQuery embeds query with the store's embedder and resolves k <= 0 to the
// store default, without touching the index.
func (s *Store) EmbedQuery(ctx context.Context, query string, k int) ([]float32, int, error) {
	if query == "" {
		return nil, 0, ErrEmptyQuery
	}
	if k <= 0 {
		k = s.defaultK
	}
	vec, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: failed to embed query: %w", ErrEmbedding, err)
	}
	return vec, k, nil
}

// Add embeds comment and appends it to the index.
func (s *Store) Add(ctx context.Context, username, comment string) error {
	_, err := s.Insert(ctx, username, comment)
	return err
}

// Insert is Add returning the stored vector.
func (s *Store) Insert(ctx context.Context, username, comment string) ([]float32, error) {
	vec, err := s.embedder.Embed(ctx, comment)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to embed comment: %w", ErrEmbedding, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.appendLocked(Entry{Username: username, Comment: comment, Vector: vec}); err != nil {
		return nil, err
	}
	return append([]float32(nil), vec...), nil
}

// AddBatch embeds all items in one call and appends them in order. Nothing is
// appended if embedding or validation fails.
func (s *Store) AddBatch(ctx context.Context, items []Item) error {
	if len(items) == 0 {
		return nil
	}

	texts := make([]string, len(items))
	for i, it := range items {
		texts[i] = it.Comment
	}

	vectors, err := s.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return fmt.Errorf("%w: failed to embed batch: %w", ErrEmbedding, err)
	}
	if len(vectors) != len(items) {
		return fmt.Errorf("embedder returned %d vectors for %d items", len(vectors), len(items))
	}
	for _, vec := range vectors {
		if len(vec) != s.dim {
			return fmt.Errorf("%w: expected %d, got %d", ErrDimensionMismatch, s.dim, len(vec))
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for i, it := range items {
		if err := s.appendLocked(Entry{Username: it.Username, Comment: it.Comment, Vector: vectors[i]}); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) appendLocked(e Entry) error {
	s.ensureIndexLocked()

	if err := s.flat.Add(e.Vector); err != nil {
		return err
	}
	s.entries = append(s.entries, e)
	return nil
}

// ensureIndexLocked replaces a missing or mis-shaped index with an empty one
// of the configured dimension. The entry list is reset with it.
func (s *Store) ensureIndexLocked() {
	if s.flat != nil && s.flat.Dim() == s.dim && s.flat.Len() == len(s.entries) {
		return
	}

	s.logger.Warn("Vector index missing or inconsistent, reinitializing",
		"dim", s.dim,
		"dropped_entries", len(s.entries))
	s.flat = NewFlatL2(s.dim)
	s.entries = nil
}

// Search returns up to k stored comments nearest to query. k <= 0 uses the
// store default.
func (s *Store) Search(ctx context.Context, query string, k int) (SearchResult, error) {
	if query == "" {
		return SearchResult{}, ErrEmptyQuery
	}
	if k <= 0 {
		k = s.defaultK
	}

	result := SearchResult{Query: query, Hits: []Hit{}}
	if s.Size() == 0 {
		result.NoData = true
		return result, nil
	}

	vec, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return SearchResult{}, fmt.Errorf("%w: failed to embed query: %w", ErrEmbedding, err)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.flat == nil || s.flat.Len() == 0 {
		result.NoData = true
		return result, nil
	}

	ids, dists, err := s.flat.Search(vec, k)
	if err != nil {
		return SearchResult{}, err
	}

	for i, id := range ids {
		if id < 0 || id >= len(s.entries) {
			continue
		}
		e := s.entries[id]
		result.Hits = append(result.Hits, Hit{
			Position: id,
			Username: e.Username,
			Comment:  e.Comment,
			Distance: dists[i],
		})
	}

	return result, nil
}

func (s *Store) Size() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.flat == nil {
		return 0
	}
	return s.flat.Len()
}

// Entries returns a copy of the aligned entry list.
func (s *Store) Entries() []Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Entry, len(s.entries))
	for i, e := range s.entries {
		out[i] = Entry{Username: e.Username, Comment: e.Comment, Vector: append([]float32(nil), e.Vector...)}
	}
	return out
}

func (s *Store) Comments() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, len(s.entries))
	for i, e := range s.entries {
		out[i] = e.Comment
	}
	return out
}
