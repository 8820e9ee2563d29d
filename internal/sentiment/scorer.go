// Package sentiment labels review comments as positive, negative or neutral by
// blending a lexicon compound score with the star rating.
package sentiment

import (
	"github.com/quiby-ai/review-insights/internal/domain"
	"github.com/quiby-ai/review-insights/internal/normalize"
)

// Lexicon produces a compound polarity score in [-1, 1].
type Lexicon interface {
	Polarity(text string) float64
}

// Thresholds holds the scoring policy constants.
type Thresholds struct {
	// PositiveCutoff and NegativeCutoff bound the neutral band of the adjusted score.
	PositiveCutoff float64
	NegativeCutoff float64
	// RatingBoost is added for high ratings and subtracted for low ones.
	RatingBoost float64
	HighRating  float64
	LowRating   float64
	// NeutralRating is assumed when the review carries no usable rating.
	NeutralRating float64
}

func DefaultThresholds() Thresholds {
	return Thresholds{
		PositiveCutoff: 0.05,
		NegativeCutoff: -0.05,
		RatingBoost:    0.2,
		HighRating:     4,
		LowRating:      2,
		NeutralRating:  3,
	}
}

type Scorer struct {
	lexicon    Lexicon
	thresholds Thresholds
}

func NewScorer(lexicon Lexicon, thresholds Thresholds) *Scorer {
	if lexicon == nil {
		lexicon = NewVaderLexicon()
	}
	return &Scorer{lexicon: lexicon, thresholds: thresholds}
}

// Score labels a normalized comment. A nil rating is treated as the neutral rating.
func (s *Scorer) Score(comment string, rating *float64) domain.Sentiment {
	if comment == "" {
		return domain.Neutral
	}

	score := s.lexicon.Polarity(normalize.ScoringText(comment))

	r := s.thresholds.NeutralRating
	if rating != nil {
		r = *rating
	}

	switch {
	case r >= s.thresholds.HighRating:
		score += s.thresholds.RatingBoost
	case r <= s.thresholds.LowRating:
		score -= s.thresholds.RatingBoost
	}

	switch {
	case score >= s.thresholds.PositiveCutoff:
		return domain.Positive
	case score <= s.thresholds.NegativeCutoff:
		return domain.Negative
	default:
		return domain.Neutral
	}
}
