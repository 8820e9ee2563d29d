// Package normalize cleans raw scraped review fields.
package normalize

import (
	"regexp"
	"strconv"
	"strings"
	"unicode"
)

const nbsp = "\u00a0"

// RatingSuffixes are the literal "out of 5 stars" markers recognized after the value.
var RatingSuffixes = []string{"sur 5 étoiles", "out of 5 stars"}

var ratingPattern = buildRatingPattern(RatingSuffixes)

func buildRatingPattern(suffixes []string) *regexp.Regexp {
	quoted := make([]string, len(suffixes))
	for i, s := range suffixes {
		quoted[i] = regexp.QuoteMeta(s)
	}
	return regexp.MustCompile(`(\d+,\d+|\d+(?:\.\d+)?)\s+(?:` + strings.Join(quoted, "|") + `)`)
}

// Rating extracts the numeric rating from text such as "4,5 sur 5 étoiles".
// It returns nil when no value precedes a known suffix.
func Rating(raw string) *float64 {
	text := strings.ReplaceAll(raw, nbsp, " ")
	match := ratingPattern.FindStringSubmatch(text)
	if match == nil {
		return nil
	}

	value, err := strconv.ParseFloat(strings.Replace(match[1], ",", ".", 1), 64)
	if err != nil {
		return nil
	}
	return &value
}

// Comment collapses whitespace runs, non-breaking spaces included, and trims.
func Comment(raw string) string {
	return strings.Join(strings.Fields(raw), " ")
}

// ScoringText is the lowercase, punctuation-free copy of a comment fed to
// the sentiment lexicon. It is never stored.
func ScoringText(comment string) string {
	stripped := strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_' || unicode.IsSpace(r) {
			return r
		}
		return -1
	}, comment)
	return strings.ToLower(stripped)
}
