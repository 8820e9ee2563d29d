package sentiment

import (
	"math"
	"strings"

	"github.com/jonreiter/govader"
)

const (
	// normalizationAlpha is VADER's compound normalization constant.
	normalizationAlpha = 15.0
	boosterIncrement   = 0.293
	negationScalar     = -0.74
)

// VaderLexicon scores text with the VADER lexicon and rules, then adds the
// French overlay valences before squashing back into [-1, 1].
type VaderLexicon struct {
	analyzer  *govader.SentimentIntensityAnalyzer
	overlay   map[string]float64
	boosters  map[string]float64
	negations map[string]struct{}
}

func NewVaderLexicon() *VaderLexicon {
	analyzer := govader.NewSentimentIntensityAnalyzer()

	// Words VADER already scores stay with VADER.
	overlay := make(map[string]float64, len(frenchValences))
	for word, valence := range frenchValences {
		if analyzer.PolarityScores(word).Compound != 0 {
			continue
		}
		overlay[word] = valence
	}

	return &VaderLexicon{
		analyzer:  analyzer,
		overlay:   overlay,
		boosters:  frenchBoosters,
		negations: frenchNegations,
	}
}

// Polarity expects lowercase text without punctuation.
func (l *VaderLexicon) Polarity(text string) float64 {
	tokens := strings.Fields(text)
	if len(tokens) == 0 {
		return 0
	}

	compound := l.analyzer.PolarityScores(strings.Join(tokens, " ")).Compound

	extra := l.overlaySum(tokens)
	if extra == 0 {
		return compound
	}
	return normalizeScore(rawValence(compound) + extra)
}

func (l *VaderLexicon) overlaySum(tokens []string) float64 {
	sum := 0.0
	for i, tok := range tokens {
		valence, ok := l.overlay[tok]
		if !ok {
			continue
		}

		for back := 1; back <= 3 && i-back >= 0; back++ {
			prev := tokens[i-back]
			if scalar, ok := l.boosters[prev]; ok {
				boost := scalar
				if valence < 0 {
					boost = -boost
				}
				switch back {
				case 2:
					boost *= 0.95
				case 3:
					boost *= 0.9
				}
				valence += boost
			}
			if _, ok := l.negations[prev]; ok {
				valence *= negationScalar
			}
		}
		sum += valence
	}
	return sum
}

// rawValence inverts normalizeScore.
func rawValence(compound float64) float64 {
	c := math.Max(-0.9999, math.Min(0.9999, compound))
	return c * math.Sqrt(normalizationAlpha/(1-c*c))
}

func normalizeScore(sum float64) float64 {
	score := sum / math.Sqrt(sum*sum+normalizationAlpha)
	return math.Max(-1, math.Min(1, score))
}
