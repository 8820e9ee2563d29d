package summarize

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingGenerator struct {
	text     string
	max, min int
	calls    int
	err      error
}

func (r *recordingGenerator) Generate(_ context.Context, text string, maxLength, minLength int) (string, error) {
	r.calls++
	r.text, r.max, r.min = text, maxLength, minLength
	if r.err != nil {
		return "", r.err
	}
	return "  summary  ", nil
}

func discardLogger() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func words(n int, word string) string {
	return strings.TrimSpace(strings.Repeat(word+" ", n))
}

func TestSummarizer_InsufficientInput(t *testing.T) {
	gen := &recordingGenerator{}
	s := New(gen, DefaultOptions(), discardLogger())

	_, err := s.Summarize(context.Background(), []string{words(20, "good"), words(29, "fine")}, 0, 0)
	assert.ErrorIs(t, err, ErrInsufficientInput)

	_, err = s.Summarize(context.Background(), nil, 0, 0)
	assert.ErrorIs(t, err, ErrInsufficientInput)

	assert.Zero(t, gen.calls)
}

func TestSummarizer_DefaultsAndTrim(t *testing.T) {
	gen := &recordingGenerator{}
	s := New(gen, DefaultOptions(), discardLogger())

	out, err := s.Summarize(context.Background(), []string{words(25, "good"), words(25, "fine")}, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, "summary", out)
	assert.Equal(t, 130, gen.max)
	assert.Equal(t, 30, gen.min)
	assert.Len(t, strings.Fields(gen.text), 50)
}

func TestSummarizer_TruncatesInput(t *testing.T) {
	gen := &recordingGenerator{}
	s := New(gen, Options{MinWords: 5, MaxInputTokens: 10}, discardLogger())

	_, err := s.Summarize(context.Background(), []string{words(40, "battery")}, 20, 5)
	require.NoError(t, err)
	assert.Len(t, strings.Fields(gen.text), 10)
	assert.Equal(t, 20, gen.max)
	assert.Equal(t, 5, gen.min)
}

func TestSummarizer_GeneratorFailure(t *testing.T) {
	gen := &recordingGenerator{err: errors.New("model unavailable")}
	s := New(gen, Options{MinWords: 1}, discardLogger())

	_, err := s.Summarize(context.Background(), []string{"great"}, 0, 0)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrGenerator)
	assert.NotErrorIs(t, err, ErrInsufficientInput)
}

func TestFrequencyGenerator(t *testing.T) {
	text := "The battery life is great. Battery lasts two days on battery saver. " +
		"Shipping box was dented. The camera is average. Battery charging is fast and battery health stays good."

	g := NewFrequencyGenerator()
	out, err := g.Generate(context.Background(), text, 20, 5)
	require.NoError(t, err)

	assert.NotEmpty(t, out)
	assert.LessOrEqual(t, len(strings.Fields(out)), 20)
	assert.Contains(t, strings.ToLower(out), "battery")

	again, err := g.Generate(context.Background(), text, 20, 5)
	require.NoError(t, err)
	assert.Equal(t, out, again)
}

func TestFrequencyGenerator_LongSingleSentence(t *testing.T) {
	g := NewFrequencyGenerator()
	out, err := g.Generate(context.Background(), words(200, "battery"), 12, 3)
	require.NoError(t, err)
	assert.Len(t, strings.Fields(out), 12)
}

func TestOpenAIGenerator(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		var req chatRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, 0.0, req.Temperature)
		assert.Len(t, req.Messages, 2)
		_, _ = w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"Buyers love the battery."}}]}`))
	}))
	defer srv.Close()

	g, err := NewOpenAIGenerator(OpenAIConfig{APIKey: "sk", BaseURL: srv.URL, Model: "gpt-4o-mini"})
	require.NoError(t, err)

	out, err := g.Generate(context.Background(), "text", 130, 30)
	require.NoError(t, err)
	assert.Equal(t, "Buyers love the battery.", out)
}
