package sentiment

import (
	"testing"

	"github.com/jonreiter/govader"
	"github.com/stretchr/testify/assert"

	"github.com/quiby-ai/review-insights/internal/domain"
)

type fixedLexicon float64

func (f fixedLexicon) Polarity(string) float64 { return float64(f) }

type recordingLexicon struct{ seen []string }

func (r *recordingLexicon) Polarity(text string) float64 {
	r.seen = append(r.seen, text)
	return 0
}

func rating(v float64) *float64 { return &v }

func TestScorer_ReviewExamples(t *testing.T) {
	s := NewScorer(NewVaderLexicon(), DefaultThresholds())

	assert.Equal(t, domain.Positive, s.Score("amazing product love it", rating(5)))
	assert.Equal(t, domain.Negative, s.Score("terrible awful waste", rating(1)))
	assert.Equal(t, domain.Neutral, s.Score("", rating(5)))
	assert.Equal(t, domain.Neutral, s.Score("", rating(1)))
	assert.Equal(t, domain.Neutral, s.Score("", nil))
}

func TestScorer_RatingAdjustment(t *testing.T) {
	tests := []struct {
		name     string
		polarity float64
		rating   *float64
		want     domain.Sentiment
	}{
		{name: "high rating lifts neutral text", polarity: 0, rating: rating(4), want: domain.Positive},
		{name: "low rating sinks neutral text", polarity: 0, rating: rating(2), want: domain.Negative},
		{name: "neutral rating leaves neutral text", polarity: 0, rating: rating(3), want: domain.Neutral},
		{name: "missing rating assumed neutral", polarity: 0.04, rating: nil, want: domain.Neutral},
		{name: "positive cutoff is inclusive", polarity: 0.05, rating: nil, want: domain.Positive},
		{name: "negative cutoff is inclusive", polarity: -0.05, rating: nil, want: domain.Negative},
		{name: "high rating outweighs mild negativity", polarity: -0.1, rating: rating(5), want: domain.Positive},
		{name: "low rating cannot rescue", polarity: 0.1, rating: rating(1), want: domain.Negative},
		{name: "fractional rating between bands", polarity: 0, rating: rating(3.5), want: domain.Neutral},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewScorer(fixedLexicon(tt.polarity), DefaultThresholds())
			assert.Equal(t, tt.want, s.Score("some comment", tt.rating))
		})
	}
}

func TestScorer_CustomThresholds(t *testing.T) {
	th := DefaultThresholds()
	th.PositiveCutoff = 0.4
	th.NeutralRating = 4

	s := NewScorer(fixedLexicon(0.25), th)
	assert.Equal(t, domain.Positive, s.Score("text", nil))
	assert.Equal(t, domain.Neutral, s.Score("text", rating(3)))
}

func TestScorer_ScoresStrippedLowercaseCopy(t *testing.T) {
	lex := &recordingLexicon{}
	s := NewScorer(lex, DefaultThresholds())

	s.Score("GREAT value!!! Works, mostly.", nil)

	assert.Equal(t, []string{"great value works mostly"}, lex.seen)
}

func TestVaderLexicon_Polarity(t *testing.T) {
	lex := NewVaderLexicon()

	assert.Greater(t, lex.Polarity("amazing product love it"), 0.5)
	assert.Less(t, lex.Polarity("terrible awful waste"), -0.5)
	assert.Equal(t, 0.0, lex.Polarity("the box arrived on tuesday"))
	assert.Equal(t, 0.0, lex.Polarity(""))

	assert.Less(t, lex.Polarity("not good"), 0.0)
	assert.Greater(t, lex.Polarity("very good"), lex.Polarity("good"))
	assert.Less(t, lex.Polarity("good but terrible battery"), 0.0)
	assert.Greater(t, lex.Polarity("produit parfait très bien"), 0.5)
	assert.Less(t, lex.Polarity("écran cassé produit décevant"), -0.5)
	assert.Less(t, lex.Polarity("ce nest pas bon"), 0.0)
	assert.Greater(t, lex.Polarity("très bon"), lex.Polarity("bon"))

	for _, text := range []string{"love love love love love love love love", "hate hate hate hate hate hate hate"} {
		p := lex.Polarity(text)
		assert.LessOrEqual(t, p, 1.0)
		assert.GreaterOrEqual(t, p, -1.0)
	}
}

func TestVaderLexicon_MatchesVaderOnEnglish(t *testing.T) {
	lex := NewVaderLexicon()
	analyzer := govader.NewSentimentIntensityAnalyzer()

	for _, text := range []string{
		"great battery life",
		"the screen broke after two days",
		"it is okay i guess",
	} {
		assert.InDelta(t, analyzer.PolarityScores(text).Compound, lex.Polarity(text), 1e-9, text)
	}
}

func TestVaderLexicon_OverlayAddsToEnglishScore(t *testing.T) {
	lex := NewVaderLexicon()

	mixed := lex.Polarity("great produit parfait")
	english := lex.Polarity("great produit")
	assert.Greater(t, mixed, english)
	assert.LessOrEqual(t, mixed, 1.0)

	assert.InDelta(t, 0.5, normalizeScore(rawValence(0.5)), 1e-9)
	assert.InDelta(t, -0.8, normalizeScore(rawValence(-0.8)), 1e-9)
}
