// Package api exposes the pipeline over HTTP.
package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/quiby-ai/review-insights/internal/domain"
	"github.com/quiby-ai/review-insights/internal/index"
	"github.com/quiby-ai/review-insights/internal/service"
	"github.com/quiby-ai/review-insights/internal/storage"
)

const serviceName = "review-insights"

type Ingester interface {
	IngestURL(ctx context.Context, productURL string) (service.IngestResult, error)
}

type Reader interface {
	Search(ctx context.Context, query string, k int) (index.SearchResult, error)
	Summary(ctx context.Context) (string, error)
	IndexStatus() service.IndexStatus
	IndexedComments() []string
	StoredReviews(ctx context.Context) ([]domain.Review, error)
	Stats(ctx context.Context) (storage.Stats, error)
}

type Config struct {
	Addr           string
	RequestTimeout time.Duration
}

type Server struct {
	cfg      Config
	ingester Ingester
	reader   Reader
	logger   *slog.Logger
}

func NewServer(cfg Config, ingester Ingester, reader Reader, logger *slog.Logger) *Server {
	return &Server{cfg: cfg, ingester: ingester, reader: reader, logger: logger}
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /scrape", s.handleScrape)
	mux.HandleFunc("GET /search", s.handleSearch)
	mux.HandleFunc("GET /reviews", s.handleReviews)
	mux.HandleFunc("GET /faiss_status", s.handleIndexStatus)
	mux.HandleFunc("GET /index/status", s.handleIndexStatus)
	mux.HandleFunc("GET /stored_reviews", s.handleStoredReviews)
	mux.HandleFunc("GET /summary", s.handleSummary)
	mux.HandleFunc("GET /stats", s.handleStats)
	mux.HandleFunc("GET /healthz", s.handleHealth)

	return Chain(mux,
		OTel(serviceName),
		Recover(s.logger),
		Logger(s.logger),
		Timeout(s.cfg.RequestTimeout),
	)
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("HTTP server listening", "addr", s.cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("http server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	s.logger.Info("Shutting down HTTP server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http server shutdown: %w", err)
	}
	return nil
}
