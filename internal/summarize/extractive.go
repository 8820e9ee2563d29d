package summarize

import (
	"context"
	"math"
	"regexp"
	"sort"
	"strings"
)

var (
	sentencePattern = regexp.MustCompile(`[^.!?]+[.!?]*`)
	tokenPattern    = regexp.MustCompile(`\p{L}+(?:['’]\p{L}+)*`)
)

// FrequencyGenerator selects the sentences richest in frequent corpus words,
// keeps them in source order and stays within the length bounds (in words).
type FrequencyGenerator struct {
	stopwords map[string]struct{}
}

func NewFrequencyGenerator() *FrequencyGenerator {
	return &FrequencyGenerator{stopwords: defaultStopwords()}
}

func (g *FrequencyGenerator) Generate(_ context.Context, text string, maxLength, minLength int) (string, error) {
	var sentences []string
	for _, s := range sentencePattern.FindAllString(text, -1) {
		if s = strings.TrimSpace(s); s != "" {
			sentences = append(sentences, s)
		}
	}
	if len(sentences) == 0 {
		return "", nil
	}

	freq := map[string]float64{}
	for _, sent := range sentences {
		for _, tok := range g.tokens(sent) {
			freq[tok]++
		}
	}
	maxF := 0.0
	for _, v := range freq {
		maxF = math.Max(maxF, v)
	}

	type scored struct {
		idx   int
		score float64
		words int
	}
	ranked := make([]scored, len(sentences))
	for i, sent := range sentences {
		toks := g.tokens(sent)
		score := 0.0
		for _, tok := range toks {
			score += freq[tok] / maxF
		}
		if len(toks) > 0 {
			score /= math.Sqrt(float64(len(toks)))
		}
		ranked[i] = scored{idx: i, score: score, words: len(strings.Fields(sent))}
	}
	sort.SliceStable(ranked, func(a, b int) bool { return ranked[a].score > ranked[b].score })

	var selected []int
	total := 0
	for _, r := range ranked {
		if total+r.words > maxLength {
			if total >= minLength {
				break
			}
			continue
		}
		selected = append(selected, r.idx)
		total += r.words
	}

	if len(selected) == 0 {
		words := strings.Fields(sentences[ranked[0].idx])
		return strings.Join(words[:min(len(words), maxLength)], " "), nil
	}

	sort.Ints(selected)
	out := make([]string, len(selected))
	for i, idx := range selected {
		out[i] = sentences[idx]
	}
	return strings.Join(out, " "), nil
}

func (g *FrequencyGenerator) tokens(text string) []string {
	raw := tokenPattern.FindAllString(strings.ToLower(text), -1)
	out := raw[:0]
	for _, t := range raw {
		if _, stop := g.stopwords[t]; !stop {
			out = append(out, t)
		}
	}
	return out
}

func defaultStopwords() map[string]struct{} {
	words := []string{
		"a", "an", "the", "and", "or", "but", "if", "then", "for", "to", "of", "in", "on", "at", "by", "with", "as",
		"is", "are", "was", "were", "be", "been", "it", "this", "that", "these", "those", "from", "so", "very", "i", "my",
		"le", "la", "les", "un", "une", "des", "de", "du", "et", "est", "je", "il", "elle", "ce", "pour", "que", "qui", "en",
	}
	m := make(map[string]struct{}, len(words))
	for _, w := range words {
		m[w] = struct{}{}
	}
	return m
}
