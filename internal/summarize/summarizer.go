// Package summarize produces a bounded-length summary of the indexed review corpus.
package summarize

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
)

var (
	ErrInsufficientInput = errors.New("not enough text to summarize")
	ErrGenerator         = errors.New("summary model failed")
)

// Generator is the summarization model. Lengths are in tokens.
type Generator interface {
	Generate(ctx context.Context, text string, maxLength, minLength int) (string, error)
}

type Options struct {
	MinWords       int
	MaxInputTokens int
	MaxLength      int
	MinLength      int
}

func DefaultOptions() Options {
	return Options{
		MinWords:       50,
		MaxInputTokens: 1024,
		MaxLength:      130,
		MinLength:      30,
	}
}

type Summarizer struct {
	gen    Generator
	opts   Options
	logger *slog.Logger
}

func New(gen Generator, opts Options, logger *slog.Logger) *Summarizer {
	def := DefaultOptions()
	if opts.MinWords <= 0 {
		opts.MinWords = def.MinWords
	}
	if opts.MaxInputTokens <= 0 {
		opts.MaxInputTokens = def.MaxInputTokens
	}
	if opts.MaxLength <= 0 {
		opts.MaxLength = def.MaxLength
	}
	if opts.MinLength <= 0 {
		opts.MinLength = def.MinLength
	}
	return &Summarizer{gen: gen, opts: opts, logger: logger}
}

// Summarize joins corpus and summarizes it. maxLength and minLength fall back
// to the configured defaults when not positive. A corpus shorter than
// MinWords words yields ErrInsufficientInput without calling the model.
func (s *Summarizer) Summarize(ctx context.Context, corpus []string, maxLength, minLength int) (string, error) {
	if maxLength <= 0 {
		maxLength = s.opts.MaxLength
	}
	if minLength <= 0 {
		minLength = s.opts.MinLength
	}
	if minLength > maxLength {
		minLength = maxLength
	}

	words := strings.Fields(strings.Join(corpus, " "))
	if len(words) < s.opts.MinWords {
		return "", fmt.Errorf("%w: %d words, need %d", ErrInsufficientInput, len(words), s.opts.MinWords)
	}

	if len(words) > s.opts.MaxInputTokens {
		s.logger.Debug("Truncating summary input", "words", len(words), "max_input_tokens", s.opts.MaxInputTokens)
		words = words[:s.opts.MaxInputTokens]
	}

	summary, err := s.gen.Generate(ctx, strings.Join(words, " "), maxLength, minLength)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrGenerator, err)
	}

	return strings.TrimSpace(summary), nil
}
