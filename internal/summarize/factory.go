package summarize

import (
	"log/slog"

	"github.com/quiby-ai/review-insights/config"
)

// NewFromConfig builds the summarizer selected by cfg, falling back to the
// extractive generator when the OpenAI client cannot be created.
func NewFromConfig(cfg *config.Config, logger *slog.Logger) *Summarizer {
	opts := Options{
		MinWords:       cfg.Summarizer.MinWords,
		MaxInputTokens: cfg.Summarizer.MaxInputTokens,
		MaxLength:      cfg.Summarizer.MaxLength,
		MinLength:      cfg.Summarizer.MinLength,
	}

	var gen Generator = NewFrequencyGenerator()
	if cfg.Summarizer.Provider == "openai" {
		openaiGen, err := NewOpenAIGenerator(OpenAIConfig{
			APIKey:  cfg.OpenAI.APIKey,
			BaseURL: cfg.OpenAI.BaseURL,
			Model:   cfg.OpenAI.SummaryModel,
			Timeout: cfg.OpenAI.Timeout,
		})
		if err != nil {
			logger.Warn("Failed to initialize OpenAI summarizer, falling back to extractive", "error", err)
		} else {
			gen = openaiGen
		}
	}

	return New(gen, opts, logger)
}
