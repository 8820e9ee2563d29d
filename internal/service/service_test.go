package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/quiby-ai/review-insights/internal/domain"
	"github.com/quiby-ai/review-insights/internal/embedding"
	"github.com/quiby-ai/review-insights/internal/index"
	"github.com/quiby-ai/review-insights/internal/producer"
	"github.com/quiby-ai/review-insights/internal/scraper"
	"github.com/quiby-ai/review-insights/internal/sentiment"
	"github.com/quiby-ai/review-insights/internal/storage"
	"github.com/quiby-ai/review-insights/internal/summarize"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

// flakyEmbedder fails for any text containing "FAIL".
type flakyEmbedder struct {
	*embedding.HashingEmbedder
}

func (f flakyEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if strings.Contains(text, "FAIL") {
		return nil, errors.New("embedding service unavailable")
	}
	return f.HashingEmbedder.Embed(ctx, text)
}

type failingRepo struct {
	storage.Repository
}

func (failingRepo) Upsert(context.Context, []domain.Review) (storage.UpsertResult, error) {
	return storage.UpsertResult{}, errors.New("disk full")
}

// vectorRepo keeps upserted embeddings and ranks them by squared distance,
// standing in for a backend with server-side vector search.
type vectorRepo struct {
	storage.Repository
	stored []domain.Review
	lastK  int
}

func (r *vectorRepo) Upsert(ctx context.Context, reviews []domain.Review) (storage.UpsertResult, error) {
	r.stored = append(r.stored, reviews...)
	return r.Repository.Upsert(ctx, reviews)
}

func (r *vectorRepo) NearestStored(_ context.Context, vector []float32, k int) ([]domain.Review, error) {
	r.lastK = k
	ranked := append([]domain.Review(nil), r.stored...)
	dist := func(rv domain.Review) float32 {
		var sum float32
		for i := range vector {
			d := vector[i] - rv.Embedding[i]
			sum += d * d
		}
		return sum
	}
	sort.SliceStable(ranked, func(a, b int) bool { return dist(ranked[a]) < dist(ranked[b]) })
	if k < len(ranked) {
		ranked = ranked[:k]
	}
	return ranked, nil
}

type stubAgent struct {
	raws []domain.RawReview
	err  error
	urls []string
}

func (a *stubAgent) Fetch(_ context.Context, productURL string) ([]domain.RawReview, error) {
	a.urls = append(a.urls, productURL)
	return a.raws, a.err
}

type recordingPublisher struct {
	events []producer.IngestedEvent
}

func (p *recordingPublisher) PublishIngested(_ context.Context, evt producer.IngestedEvent) error {
	p.events = append(p.events, evt)
	return nil
}

type fixture struct {
	index  *index.Store
	repo   storage.Repository
	ingest *IngestService
	query  *QueryService
}

func newFixture(t *testing.T, opts IngestOptions) *fixture {
	t.Helper()

	repo, err := storage.NewFileRepository(filepath.Join(t.TempDir(), "reviews.json"), false, discardLogger())
	require.NoError(t, err)

	idx := index.NewStore(flakyEmbedder{embedding.NewHashingEmbedder(64)}, 0, discardLogger())
	scorer := sentiment.NewScorer(nil, sentiment.DefaultThresholds())
	summarizer := summarize.New(summarize.NewFrequencyGenerator(), summarize.DefaultOptions(), discardLogger())

	ingest := NewIngestService(idx, repo, scorer, opts, discardLogger())
	ingest.now = func() time.Time { return time.Date(2025, 3, 1, 12, 0, 0, 0, time.FixedZone("CET", 3600)) }

	return &fixture{
		index:  idx,
		repo:   repo,
		ingest: ingest,
		query:  NewQueryService(idx, repo, summarizer, "hashing-bow", discardLogger()),
	}
}

func TestIngest_EmptyBatch(t *testing.T) {
	f := newFixture(t, IngestOptions{})

	result, err := f.ingest.Ingest(context.Background(), nil)
	require.NoError(t, err)
	assert.Zero(t, result.Received)
	assert.Zero(t, result.Persisted)
	assert.Empty(t, result.Records)
	assert.Zero(t, f.index.Size())
}

func TestIngest_Batch(t *testing.T) {
	f := newFixture(t, IngestOptions{})

	result, err := f.ingest.Ingest(context.Background(), []domain.RawReview{
		{Username: "alice", Rating: "5,0 sur 5 étoiles", Comment: "  Excellent   produit, je recommande  "},
		{Username: "", Rating: "4,0 sur 5 étoiles", Comment: "orphan"},
		{Username: "bob", Rating: "1,0 sur 5 étoiles", Comment: "Nul"},
		{Username: "carol", Rating: "3,0 sur 5 étoiles", Comment: "   "},
		{Username: "dave", Rating: "n/a", Comment: "FAIL to embed"},
	})
	require.NoError(t, err)

	assert.Equal(t, 5, result.Received)
	assert.Equal(t, 2, result.Skipped)
	assert.Equal(t, 1, result.Failed)
	assert.Equal(t, 2, result.Indexed)
	assert.Equal(t, 2, result.Created)
	assert.Equal(t, 2, result.Persisted)
	require.Len(t, result.Records, 2)

	alice := result.Records[0]
	assert.Equal(t, "Excellent produit, je recommande", alice.Comment)
	require.NotNil(t, alice.RatingNumeric)
	assert.Equal(t, 5.0, *alice.RatingNumeric)
	assert.Equal(t, domain.Positive, alice.Sentiment)
	assert.Equal(t, time.UTC, alice.ScrapedAt.Location())
	assert.Len(t, alice.Embedding, 64)

	bob := result.Records[1]
	assert.Equal(t, domain.Negative, bob.Sentiment)
	assert.True(t, alice.ScrapedAt.Equal(bob.ScrapedAt), "one timestamp per batch")

	assert.Equal(t, 2, f.index.Size())
	assert.Equal(t, []string{"Excellent produit, je recommande", "Nul"}, f.index.Comments())

	stored, err := f.repo.List(context.Background())
	require.NoError(t, err)
	assert.Len(t, stored, 2)
}

func TestIngest_ReingestUpdatesInsteadOfDuplicating(t *testing.T) {
	f := newFixture(t, IngestOptions{})
	batch := []domain.RawReview{{Username: "alice", Rating: "4,0 sur 5 étoiles", Comment: "Bon produit"}}

	first, err := f.ingest.Ingest(context.Background(), batch)
	require.NoError(t, err)
	assert.Equal(t, 1, first.Created)

	second, err := f.ingest.Ingest(context.Background(), batch)
	require.NoError(t, err)
	assert.Equal(t, 0, second.Created)
	assert.Equal(t, 1, second.Updated)
	assert.Equal(t, 1, second.Persisted)

	n, err := f.repo.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestIngest_PersistFailure(t *testing.T) {
	f := newFixture(t, IngestOptions{})
	f.ingest.repo = failingRepo{}

	result, err := f.ingest.Ingest(context.Background(), []domain.RawReview{{Username: "alice", Comment: "ok"}})
	require.Error(t, err)
	assert.Equal(t, 1, result.Indexed)
	assert.Zero(t, result.Persisted)
}

func TestIngest_Cancelled(t *testing.T) {
	f := newFixture(t, IngestOptions{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := f.ingest.Ingest(ctx, []domain.RawReview{{Username: "alice", Comment: "ok"}})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, f.index.Size())
}

func TestIngestURL(t *testing.T) {
	agent := &stubAgent{raws: []domain.RawReview{{Username: "alice", Rating: "5,0 sur 5 étoiles", Comment: "Parfait"}}}
	f := newFixture(t, IngestOptions{AllowedPrefixes: []string{"https://www.amazon."}, Agent: agent})

	_, err := f.ingest.IngestURL(context.Background(), "https://www.ebay.fr/itm/1")
	assert.ErrorIs(t, err, scraper.ErrInvalidURL)
	assert.Empty(t, agent.urls)

	result, err := f.ingest.IngestURL(context.Background(), " https://www.amazon.fr/dp/X ")
	require.NoError(t, err)
	assert.Equal(t, []string{"https://www.amazon.fr/dp/X"}, agent.urls)
	require.Len(t, result.Records, 1)
	assert.Equal(t, "https://www.amazon.fr/dp/X", result.Records[0].SourceURL)

	agent.raws = nil
	_, err = f.ingest.IngestURL(context.Background(), "https://www.amazon.fr/dp/Y")
	assert.ErrorIs(t, err, ErrNoReviews)

	agent.err = scraper.ErrAgent
	_, err = f.ingest.IngestURL(context.Background(), "https://www.amazon.fr/dp/Z")
	assert.ErrorIs(t, err, scraper.ErrAgent)
}

func TestIngestURL_NoAgent(t *testing.T) {
	f := newFixture(t, IngestOptions{})
	_, err := f.ingest.IngestURL(context.Background(), "https://www.amazon.fr/dp/X")
	assert.ErrorIs(t, err, scraper.ErrAgent)
}

func TestHandleBatch_Publishes(t *testing.T) {
	pub := &recordingPublisher{}
	f := newFixture(t, IngestOptions{Publisher: pub})

	err := f.ingest.HandleBatch(context.Background(), "batch-9", "https://www.amazon.fr/dp/X", []domain.RawReview{
		{Username: "alice", Comment: "Super"},
		{Username: "bob", Comment: ""},
	})
	require.NoError(t, err)

	require.Len(t, pub.events, 1)
	evt := pub.events[0]
	assert.Equal(t, "batch-9", evt.BatchID)
	assert.Equal(t, 2, evt.Received)
	assert.Equal(t, 1, evt.Skipped)
	assert.Equal(t, 1, evt.Persisted)
	assert.Equal(t, 1, evt.IndexSize)
}

func TestWarmStart(t *testing.T) {
	f := newFixture(t, IngestOptions{})
	_, err := f.ingest.Ingest(context.Background(), []domain.RawReview{
		{Username: "alice", Comment: "Batterie excellente"},
		{Username: "bob", Comment: "Écran fragile"},
		{Username: "carol", Comment: "Livraison rapide"},
	})
	require.NoError(t, err)

	restarted := index.NewStore(embedding.NewHashingEmbedder(64), 0, discardLogger())
	svc := NewIngestService(restarted, f.repo, sentiment.NewScorer(nil, sentiment.DefaultThresholds()), IngestOptions{}, discardLogger())

	loaded, err := svc.WarmStart(context.Background(), 2)
	require.NoError(t, err)
	assert.Equal(t, 3, loaded)
	assert.Equal(t, 3, restarted.Size())
	assert.ElementsMatch(t, f.index.Comments(), restarted.Comments())
}

func TestQuery_SearchAndStatus(t *testing.T) {
	f := newFixture(t, IngestOptions{})

	empty, err := f.query.Search(context.Background(), "batterie", 0)
	require.NoError(t, err)
	assert.True(t, empty.NoData)

	_, err = f.query.Search(context.Background(), "", 3)
	assert.ErrorIs(t, err, index.ErrEmptyQuery)

	_, err = f.ingest.Ingest(context.Background(), []domain.RawReview{
		{Username: "alice", Comment: "batterie excellente"},
		{Username: "bob", Comment: "écran fragile"},
	})
	require.NoError(t, err)

	result, err := f.query.Search(context.Background(), "batterie excellente", 1)
	require.NoError(t, err)
	require.Len(t, result.Hits, 1)
	assert.Equal(t, "batterie excellente", result.Hits[0].Comment)

	status := f.query.IndexStatus()
	assert.Equal(t, 2, status.Size)
	assert.Equal(t, 64, status.Dimension)
	assert.Equal(t, "hashing-bow", status.Model)
	assert.Len(t, f.query.IndexedComments(), 2)
}

func TestQuery_Summary(t *testing.T) {
	f := newFixture(t, IngestOptions{})

	_, err := f.query.Summary(context.Background())
	assert.ErrorIs(t, err, ErrNoData)

	_, err = f.ingest.Ingest(context.Background(), []domain.RawReview{{Username: "alice", Comment: "Trop court."}})
	require.NoError(t, err)
	_, err = f.query.Summary(context.Background())
	assert.ErrorIs(t, err, summarize.ErrInsufficientInput)

	long := strings.Repeat("La batterie tient deux jours et la charge est rapide. ", 6)
	_, err = f.ingest.Ingest(context.Background(), []domain.RawReview{{Username: "bob", Comment: long}})
	require.NoError(t, err)

	summary, err := f.query.Summary(context.Background())
	require.NoError(t, err)
	assert.NotEmpty(t, summary)
	assert.LessOrEqual(t, len(strings.Fields(summary)), 130)
}

func TestQuery_StoredReviewsAndStats(t *testing.T) {
	f := newFixture(t, IngestOptions{})
	_, err := f.ingest.Ingest(context.Background(), []domain.RawReview{
		{Username: "alice", Rating: "5,0 sur 5 étoiles", Comment: "Excellent"},
		{Username: "bob", Rating: "1,0 sur 5 étoiles", Comment: "Horrible"},
	})
	require.NoError(t, err)

	stored, err := f.query.StoredReviews(context.Background())
	require.NoError(t, err)
	assert.Len(t, stored, 2)

	stats, err := f.query.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Total)
	assert.Equal(t, 1, stats.BySentiment[domain.Positive])
	assert.Equal(t, 1, stats.BySentiment[domain.Negative])
	assert.InDelta(t, 3.0, stats.AvgRating, 1e-9)
}

func TestQuery_SearchStored(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, IngestOptions{})

	_, err := f.query.SearchStored(ctx, "batterie", 1)
	assert.ErrorIs(t, err, ErrStoredSearchUnsupported)

	repo := &vectorRepo{Repository: f.repo}
	idx := index.NewStore(embedding.NewHashingEmbedder(64), 0, discardLogger())
	ingest := NewIngestService(idx, repo, sentiment.NewScorer(nil, sentiment.DefaultThresholds()), IngestOptions{}, discardLogger())
	query := NewQueryService(idx, repo, nil, "hashing-bow", discardLogger())

	_, err = ingest.Ingest(ctx, []domain.RawReview{
		{Username: "alice", Comment: "batterie excellente"},
		{Username: "bob", Comment: "écran fragile"},
		{Username: "carol", Comment: "livraison rapide"},
	})
	require.NoError(t, err)

	// A cold in-memory index does not matter for backend search.
	cold := NewQueryService(index.NewStore(embedding.NewHashingEmbedder(64), 0, discardLogger()), repo, nil, "hashing-bow", discardLogger())
	for _, q := range []*QueryService{query, cold} {
		reviews, err := q.SearchStored(ctx, "écran fragile", 1)
		require.NoError(t, err)
		require.Len(t, reviews, 1)
		assert.Equal(t, "bob", reviews[0].Username)
	}

	_, err = cold.SearchStored(ctx, "livraison", 0)
	require.NoError(t, err)
	assert.Equal(t, index.DefaultK, repo.lastK)

	_, err = query.SearchStored(ctx, "", 3)
	assert.ErrorIs(t, err, index.ErrEmptyQuery)
}
