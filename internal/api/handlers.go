package api

import (
	"encoding/json"
	"errors"
	"mime"
	"net/http"
	"strconv"
	"strings"

	"github.com/quiby-ai/review-insights/internal/domain"
	"github.com/quiby-ai/review-insights/internal/index"
	"github.com/quiby-ai/review-insights/internal/scraper"
	"github.com/quiby-ai/review-insights/internal/service"
	"github.com/quiby-ai/review-insights/internal/summarize"
)

const noDataMessage = "No reviews available."

type errorBody struct {
	Error string `json:"error"`
}

type scrapeRequest struct {
	ProductURL string `json:"product_url"`
}

type scrapeResponse struct {
	Message    string               `json:"message"`
	Reviews    []domain.Review      `json:"reviews"`
	FaissCount int                  `json:"faiss_count"`
	Result     service.IngestResult `json:"result"`
}

type searchResponse struct {
	Query   string      `json:"query"`
	Results []string    `json:"results"`
	Hits    []index.Hit `json:"hits"`
	NoData  bool        `json:"no_data"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(v)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, index.ErrEmptyQuery),
		errors.Is(err, scraper.ErrInvalidURL),
		errors.Is(err, service.ErrNoReviews),
		errors.Is(err, service.ErrNoData),
		errors.Is(err, summarize.ErrInsufficientInput):
		return http.StatusBadRequest
	case errors.Is(err, scraper.ErrAgent),
		errors.Is(err, index.ErrEmbedding),
		errors.Is(err, summarize.ErrGenerator):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error("Request failed", "path", r.URL.Path, "error", err)
	}
	writeJSON(w, status, errorBody{Error: err.Error()})
}

func (s *Server) handleScrape(w http.ResponseWriter, r *http.Request) {
	productURL, err := readProductURL(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: err.Error()})
		return
	}

	result, err := s.ingester.IngestURL(r.Context(), productURL)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, scrapeResponse{
		Message:    "Scraping complete.",
		Reviews:    result.Records,
		FaissCount: s.reader.IndexStatus().Size,
		Result:     result,
	})
}

func readProductURL(r *http.Request) (string, error) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "application/json" {
		var req scrapeRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			return "", errors.New("invalid JSON body")
		}
		return strings.TrimSpace(req.ProductURL), nil
	}
	return strings.TrimSpace(r.FormValue("product_url")), nil
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	query := strings.TrimSpace(r.URL.Query().Get("query"))

	k := 0
	if raw := r.URL.Query().Get("k"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			writeJSON(w, http.StatusBadRequest, errorBody{Error: "k must be a non-negative integer"})
			return
		}
		k = parsed
	}

	result, err := s.reader.Search(r.Context(), query, k)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	resp := searchResponse{
		Query:   result.Query,
		Results: result.Comments(),
		Hits:    result.Hits,
		NoData:  result.NoData,
	}
	if result.NoData {
		resp.Results = []string{noDataMessage}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleReviews(w http.ResponseWriter, r *http.Request) {
	reviews, err := s.reader.StoredReviews(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, reviews)
}

func (s *Server) handleIndexStatus(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.reader.IndexStatus())
}

func (s *Server) handleStoredReviews(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.reader.IndexedComments())
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	summary, err := s.reader.Summary(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"summary": summary})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.reader.Stats(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
