package summarize

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/quiby-ai/review-insights/internal/httpclient"
)

type OpenAIConfig struct {
	APIKey  string
	BaseURL string
	Model   string
	Timeout time.Duration
}

// OpenAIGenerator summarizes with a chat completion model at temperature 0.
type OpenAIGenerator struct {
	cfg        OpenAIConfig
	httpClient *http.Client
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens"`
	Temperature float64       `json:"temperature"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

func NewOpenAIGenerator(cfg OpenAIConfig) (*OpenAIGenerator, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("OpenAI API key is required")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.openai.com/v1"
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 60 * time.Second
	}
	return &OpenAIGenerator{cfg: cfg, httpClient: &http.Client{Timeout: cfg.Timeout}}, nil
}

func (g *OpenAIGenerator) Generate(ctx context.Context, text string, maxLength, minLength int) (string, error) {
	req := chatRequest{
		Model: g.cfg.Model,
		Messages: []chatMessage{
			{
				Role: "system",
				Content: fmt.Sprintf("Summarize the following customer reviews in a single paragraph of %d to %d words. "+
					"Report recurring praise and complaints only.", minLength, maxLength),
			},
			{Role: "user", Content: text},
		},
		MaxTokens:   maxLength * 2,
		Temperature: 0,
	}

	var resp chatResponse
	if err := httpclient.PostJSON(ctx, g.httpClient, g.cfg.BaseURL+"/chat/completions", g.cfg.APIKey, req, &resp); err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("summary response has no choices")
	}
	return resp.Choices[0].Message.Content, nil
}
