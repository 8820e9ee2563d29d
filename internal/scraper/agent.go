// Package scraper fetches raw review tuples from the browser agent or from
// files written by it.
package scraper

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/quiby-ai/review-insights/internal/domain"
	"github.com/quiby-ai/review-insights/internal/httpclient"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

var (
	ErrInvalidURL = errors.New("invalid product URL")
	ErrAgent      = errors.New("scraping agent failed")
)

// Agent extracts review tuples from a product page.
type Agent interface {
	Fetch(ctx context.Context, productURL string) ([]domain.RawReview, error)
}

// ValidateURL checks that productURL is an absolute http(s) URL starting with
// one of the allowed prefixes. An empty prefix list allows any such URL.
func ValidateURL(productURL string, allowedPrefixes []string) error {
	productURL = strings.TrimSpace(productURL)
	if productURL == "" {
		return fmt.Errorf("%w: empty", ErrInvalidURL)
	}

	u, err := url.Parse(productURL)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return fmt.Errorf("%w: %s", ErrInvalidURL, productURL)
	}

	if len(allowedPrefixes) == 0 {
		return nil
	}
	for _, prefix := range allowedPrefixes {
		if strings.HasPrefix(productURL, prefix) {
			return nil
		}
	}
	return fmt.Errorf("%w: %s does not match an allowed prefix", ErrInvalidURL, productURL)
}

type AgentConfig struct {
	Endpoint string
	Timeout  time.Duration
}

// AgentClient calls an HTTP browser agent that answers with the tuple array.
type AgentClient struct {
	cfg        AgentConfig
	httpClient *http.Client
	logger     *slog.Logger
}

type agentRequest struct {
	URL string `json:"url"`
}

func NewAgentClient(cfg AgentConfig, logger *slog.Logger) (*AgentClient, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("agent endpoint is required")
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 3 * time.Minute
	}

	if logger == nil {
		logger = slog.Default()
	}

	return &AgentClient{
		cfg:    cfg,
		logger: logger,
		httpClient: &http.Client{
			Timeout:   cfg.Timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
	}, nil
}

func (c *AgentClient) Fetch(ctx context.Context, productURL string) ([]domain.RawReview, error) {
	var raw json.RawMessage
	if err := httpclient.PostJSON(ctx, c.httpClient, c.cfg.Endpoint, "", agentRequest{URL: productURL}, &raw); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrAgent, err)
	}

	reviews, skipped, err := DecodeTuples(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrAgent, err)
	}
	if skipped > 0 {
		c.logger.Warn("Skipped malformed scraped records", "url", productURL, "skipped", skipped)
	}

	for i := range reviews {
		if reviews[i].SourceURL == "" {
			reviews[i].SourceURL = productURL
		}
	}
	return reviews, nil
}

// DecodeTuples decodes a JSON array whose elements are either objects or
// [username, rating, comment] arrays with an optional trailing source URL.
// Elements that cannot be decoded are skipped and counted; only a payload
// that is not an array is an error.
func DecodeTuples(data []byte) ([]domain.RawReview, int, error) {
	var elems []json.RawMessage
	if err := json.Unmarshal(data, &elems); err != nil {
		return nil, 0, fmt.Errorf("failed to decode review tuples: %w", err)
	}
	reviews, skipped := DecodeRecords(elems)
	return reviews, skipped, nil
}

// DecodeRecords decodes each element on its own and returns the good ones
// with the number skipped.
func DecodeRecords(elems []json.RawMessage) ([]domain.RawReview, int) {
	reviews := make([]domain.RawReview, 0, len(elems))
	skipped := 0
	for _, elem := range elems {
		review, err := DecodeRecord(elem)
		if err != nil {
			skipped++
			continue
		}
		reviews = append(reviews, review)
	}
	return reviews, skipped
}

type recordObject struct {
	Username  json.RawMessage `json:"username"`
	Rating    json.RawMessage `json:"rating"`
	Comment   json.RawMessage `json:"comment"`
	URL       json.RawMessage `json:"url"`
	SourceURL json.RawMessage `json:"source_url"`
}

// DecodeRecord decodes one scraped element. Scalar fields may be strings,
// numbers or null.
func DecodeRecord(elem json.RawMessage) (domain.RawReview, error) {
	trimmed := bytes.TrimSpace(elem)
	if len(trimmed) == 0 {
		return domain.RawReview{}, errors.New("empty record")
	}

	switch trimmed[0] {
	case '[':
		var fields []json.RawMessage
		if err := json.Unmarshal(trimmed, &fields); err != nil {
			return domain.RawReview{}, fmt.Errorf("failed to decode tuple: %w", err)
		}
		if len(fields) != 3 && len(fields) != 4 {
			return domain.RawReview{}, fmt.Errorf("tuple has %d fields, want 3 or 4", len(fields))
		}
		values := make([]string, len(fields))
		for i, f := range fields {
			v, err := scalarString(f)
			if err != nil {
				return domain.RawReview{}, fmt.Errorf("tuple field %d: %w", i, err)
			}
			values[i] = v
		}
		review := domain.RawReview{Username: values[0], Rating: values[1], Comment: values[2]}
		if len(values) == 4 {
			review.SourceURL = values[3]
		}
		return review, nil

	case '{':
		var obj recordObject
		if err := json.Unmarshal(trimmed, &obj); err != nil {
			return domain.RawReview{}, fmt.Errorf("failed to decode record: %w", err)
		}
		var review domain.RawReview
		for _, f := range []struct {
			name string
			raw  json.RawMessage
			dst  *string
		}{
			{"username", obj.Username, &review.Username},
			{"rating", obj.Rating, &review.Rating},
			{"comment", obj.Comment, &review.Comment},
			{"url", obj.URL, &review.SourceURL},
		} {
			v, err := scalarString(f.raw)
			if err != nil {
				return domain.RawReview{}, fmt.Errorf("field %s: %w", f.name, err)
			}
			*f.dst = v
		}
		if review.SourceURL == "" {
			v, err := scalarString(obj.SourceURL)
			if err != nil {
				return domain.RawReview{}, fmt.Errorf("field source_url: %w", err)
			}
			review.SourceURL = v
		}
		return review, nil

	default:
		return domain.RawReview{}, fmt.Errorf("unexpected record %.20s", trimmed)
	}
}

// scalarString renders a JSON string or number as text. Missing and null
// values become "".
func scalarString(raw json.RawMessage) (string, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return "", nil
	}

	switch raw[0] {
	case '"':
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return "", err
		}
		return s, nil
	case '{', '[', 't', 'f':
		return "", fmt.Errorf("unsupported value %.20s", raw)
	default:
		var n json.Number
		if err := json.Unmarshal(raw, &n); err != nil {
			return "", err
		}
		return n.String(), nil
	}
}
