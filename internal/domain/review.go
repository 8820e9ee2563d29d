package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

type Sentiment string

const (
	Positive Sentiment = "Positive"
	Negative Sentiment = "Negative"
	Neutral  Sentiment = "Neutral"
)

// RawReview is one tuple as extracted by the scraping agent.
type RawReview struct {
	Username  string `json:"username"`
	Rating    string `json:"rating"`
	Comment   string `json:"comment"`
	SourceURL string `json:"url,omitempty"`
}

// Review is a normalized, scored review record.
type Review struct {
	ID            string    `json:"id" bson:"id"`
	Username      string    `json:"username" bson:"username"`
	RatingRaw     string    `json:"rating" bson:"rating"`
	RatingNumeric *float64  `json:"rating_num" bson:"rating_num"`
	Comment       string    `json:"comment" bson:"comment"`
	Sentiment     Sentiment `json:"sentiment" bson:"sentiment"`
	ScrapedAt     time.Time `json:"scraped_at" bson:"scraped_at"`
	SourceURL     string    `json:"url,omitempty" bson:"url,omitempty"`
	Embedding     []float32 `json:"-" bson:"-"`
}

func NewReview(username, ratingRaw, comment, sourceURL string) Review {
	return Review{
		ID:        uuid.New().String(),
		Username:  username,
		RatingRaw: ratingRaw,
		Comment:   comment,
		SourceURL: sourceURL,
		Sentiment: Neutral,
	}
}

// Key returns the natural dedup key of the review. withTime adds scraped_at
// to the key, as the batch store does.
func (r Review) Key(withTime bool) Key {
	k := Key{Username: r.Username, Comment: r.Comment}
	if withTime {
		k.ScrapedAt = r.ScrapedAt.UTC()
	}
	return k
}

type Key struct {
	Username  string
	Comment   string
	ScrapedAt time.Time
}

// String renders the key in a form usable as a map or bucket key.
func (k Key) String() string {
	var b strings.Builder
	b.WriteString(k.Username)
	b.WriteByte(0x1f)
	b.WriteString(k.Comment)
	if !k.ScrapedAt.IsZero() {
		b.WriteByte(0x1f)
		b.WriteString(k.ScrapedAt.Format(time.RFC3339Nano))
	}
	return b.String()
}
