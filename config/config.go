package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Log        LogConfig
	HTTP       HTTPConfig
	Kafka      KafkaConfig
	Storage    StorageConfig
	Postgres   PostgresConfig
	Mongo      MongoConfig
	Bolt       BoltConfig
	Embedding  EmbeddingConfig
	OpenAI     OpenAIConfig
	Ollama     OllamaConfig
	Sentiment  SentimentConfig
	Summarizer SummarizerConfig
	Scraper    ScraperConfig
	Index      IndexConfig
	Processing ProcessingConfig
}

type LogConfig struct {
	Level  string
	Format string
}

type HTTPConfig struct {
	Addr           string
	RequestTimeout time.Duration
}

type KafkaConfig struct {
	Enabled       bool
	Brokers       []string
	GroupID       string
	ScrapedTopic  string
	IngestedTopic string
}

type StorageConfig struct {
	// Backend is one of "file", "bolt", "postgres" or "mongo".
	Backend              string
	KeyIncludesScrapedAt bool
	FilePath             string
}

type PostgresConfig struct {
	DSN string
}

type MongoConfig struct {
	URL        string
	Database   string
	Collection string
}

type BoltConfig struct {
	Path string
}

type EmbeddingConfig struct {
	// Provider is one of "openai", "ollama" or "hashing".
	Provider  string
	Dimension int
	BatchSize int
}

type OpenAIConfig struct {
	APIKey         string
	BaseURL        string
	Model          string
	SummaryModel   string
	MaxRetries     int
	Timeout        time.Duration
	RequestsPerSec float64
}

type OllamaConfig struct {
	BaseURL string
	Model   string
	Timeout time.Duration
}

type SentimentConfig struct {
	PositiveCutoff float64
	NegativeCutoff float64
	RatingBoost    float64
	HighRating     float64
	LowRating      float64
	NeutralRating  float64
}

type SummarizerConfig struct {
	// Provider is one of "extractive" or "openai".
	Provider       string
	MinWords       int
	MaxInputTokens int
	MaxLength      int
	MinLength      int
}

type ScraperConfig struct {
	AgentURL        string
	AllowedPrefixes []string
	Timeout         time.Duration
}

type IndexConfig struct {
	WarmStart bool
	DefaultK  int
}

type ProcessingConfig struct {
	TimeoutPerBatch time.Duration
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")

	v.SetDefault("http.addr", ":8080")
	v.SetDefault("http.request_timeout", "4m")

	v.SetDefault("kafka.enabled", false)
	v.SetDefault("kafka.brokers", []string{"localhost:9092"})
	v.SetDefault("kafka.group_id", "review-insights")
	v.SetDefault("kafka.scraped_topic", "reviews.scraped")
	v.SetDefault("kafka.ingested_topic", "reviews.ingested")

	v.SetDefault("storage.backend", "file")
	v.SetDefault("storage.key_includes_scraped_at", false)
	v.SetDefault("storage.file_path", "reviews.json")

	v.SetDefault("mongo.url", "mongodb://localhost:27017")
	v.SetDefault("mongo.database", "amazon_reviews")
	v.SetDefault("mongo.collection", "reviews")

	v.SetDefault("bolt.path", "reviews.db")

	v.SetDefault("embedding.provider", "hashing")
	v.SetDefault("embedding.dimension", 384)
	v.SetDefault("embedding.batch_size", 10)

	v.SetDefault("openai.base_url", "https://api.openai.com/v1")
	v.SetDefault("openai.model", "text-embedding-3-small")
	v.SetDefault("openai.summary_model", "gpt-4o-mini")
	v.SetDefault("openai.max_retries", 3)
	v.SetDefault("openai.timeout", "30s")
	v.SetDefault("openai.requests_per_sec", 10.0)

	v.SetDefault("ollama.base_url", "http://localhost:11434")
	v.SetDefault("ollama.model", "all-minilm")
	v.SetDefault("ollama.timeout", "30s")

	v.SetDefault("sentiment.positive_cutoff", 0.05)
	v.SetDefault("sentiment.negative_cutoff", -0.05)
	v.SetDefault("sentiment.rating_boost", 0.2)
	v.SetDefault("sentiment.high_rating", 4.0)
	v.SetDefault("sentiment.low_rating", 2.0)
	v.SetDefault("sentiment.neutral_rating", 3.0)

	v.SetDefault("summarizer.provider", "extractive")
	v.SetDefault("summarizer.min_words", 50)
	v.SetDefault("summarizer.max_input_tokens", 1024)
	v.SetDefault("summarizer.max_length", 130)
	v.SetDefault("summarizer.min_length", 30)

	v.SetDefault("scraper.allowed_prefixes", []string{"https://www.amazon."})
	v.SetDefault("scraper.timeout", "3m")

	v.SetDefault("index.warm_start", true)
	v.SetDefault("index.default_k", 5)

	v.SetDefault("processing.timeout_per_batch", "5m")
}

// Load reads configuration from path, or from config.toml in the usual
// locations when path is empty. Environment variables prefixed with REVIEWS_
// override file values; a .env file in the working directory is honored.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("REVIEWS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("toml")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/review-insights")
		v.AddConfigPath("/")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		fmt.Printf("Warning: No config file found, using defaults: %v\n", err)
	}

	_ = v.BindEnv("openai.api_key", "OPENAI_API_KEY")
	_ = v.BindEnv("postgres.dsn", "PG_DSN")
	_ = v.BindEnv("mongo.url", "MONGO_URL")

	cfg := &Config{
		Log: LogConfig{
			Level:  v.GetString("log.level"),
			Format: v.GetString("log.format"),
		},
		HTTP: HTTPConfig{
			Addr:           v.GetString("http.addr"),
			RequestTimeout: v.GetDuration("http.request_timeout"),
		},
		Kafka: KafkaConfig{
			Enabled:       v.GetBool("kafka.enabled"),
			Brokers:       v.GetStringSlice("kafka.brokers"),
			GroupID:       v.GetString("kafka.group_id"),
			ScrapedTopic:  v.GetString("kafka.scraped_topic"),
			IngestedTopic: v.GetString("kafka.ingested_topic"),
		},
		Storage: StorageConfig{
			Backend:              v.GetString("storage.backend"),
			KeyIncludesScrapedAt: v.GetBool("storage.key_includes_scraped_at"),
			FilePath:             v.GetString("storage.file_path"),
		},
		Postgres: PostgresConfig{
			DSN: v.GetString("postgres.dsn"),
		},
		Mongo: MongoConfig{
			URL:        v.GetString("mongo.url"),
			Database:   v.GetString("mongo.database"),
			Collection: v.GetString("mongo.collection"),
		},
		Bolt: BoltConfig{
			Path: v.GetString("bolt.path"),
		},
		Embedding: EmbeddingConfig{
			Provider:  v.GetString("embedding.provider"),
			Dimension: v.GetInt("embedding.dimension"),
			BatchSize: v.GetInt("embedding.batch_size"),
		},
		OpenAI: OpenAIConfig{
			APIKey:         v.GetString("openai.api_key"),
			BaseURL:        v.GetString("openai.base_url"),
			Model:          v.GetString("openai.model"),
			SummaryModel:   v.GetString("openai.summary_model"),
			MaxRetries:     v.GetInt("openai.max_retries"),
			Timeout:        v.GetDuration("openai.timeout"),
			RequestsPerSec: v.GetFloat64("openai.requests_per_sec"),
		},
		Ollama: OllamaConfig{
			BaseURL: v.GetString("ollama.base_url"),
			Model:   v.GetString("ollama.model"),
			Timeout: v.GetDuration("ollama.timeout"),
		},
		Sentiment: SentimentConfig{
			PositiveCutoff: v.GetFloat64("sentiment.positive_cutoff"),
			NegativeCutoff: v.GetFloat64("sentiment.negative_cutoff"),
			RatingBoost:    v.GetFloat64("sentiment.rating_boost"),
			HighRating:     v.GetFloat64("sentiment.high_rating"),
			LowRating:      v.GetFloat64("sentiment.low_rating"),
			NeutralRating:  v.GetFloat64("sentiment.neutral_rating"),
		},
		Summarizer: SummarizerConfig{
			Provider:       v.GetString("summarizer.provider"),
			MinWords:       v.GetInt("summarizer.min_words"),
			MaxInputTokens: v.GetInt("summarizer.max_input_tokens"),
			MaxLength:      v.GetInt("summarizer.max_length"),
			MinLength:      v.GetInt("summarizer.min_length"),
		},
		Scraper: ScraperConfig{
			AgentURL:        v.GetString("scraper.agent_url"),
			AllowedPrefixes: v.GetStringSlice("scraper.allowed_prefixes"),
			Timeout:         v.GetDuration("scraper.timeout"),
		},
		Index: IndexConfig{
			WarmStart: v.GetBool("index.warm_start"),
			DefaultK:  v.GetInt("index.default_k"),
		},
		Processing: ProcessingConfig{
			TimeoutPerBatch: v.GetDuration("processing.timeout_per_batch"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	switch c.Storage.Backend {
	case "file", "bolt", "postgres", "mongo":
	default:
		return fmt.Errorf("unknown storage backend %q", c.Storage.Backend)
	}

	switch c.Embedding.Provider {
	case "openai", "ollama", "hashing":
	default:
		return fmt.Errorf("unknown embedding provider %q", c.Embedding.Provider)
	}

	switch c.Summarizer.Provider {
	case "openai", "extractive":
	default:
		return fmt.Errorf("unknown summarizer provider %q", c.Summarizer.Provider)
	}

	if c.Embedding.Dimension <= 0 {
		return fmt.Errorf("embedding dimension must be positive, got %d", c.Embedding.Dimension)
	}

	if c.Storage.Backend == "postgres" && c.Postgres.DSN == "" {
		return fmt.Errorf("postgres backend requires PG_DSN")
	}

	if c.HTTP.RequestTimeout > 0 && c.HTTP.RequestTimeout < c.Scraper.Timeout {
		return fmt.Errorf("http request timeout %s is shorter than scraper timeout %s",
			c.HTTP.RequestTimeout, c.Scraper.Timeout)
	}

	if c.Sentiment.NegativeCutoff > c.Sentiment.PositiveCutoff {
		return fmt.Errorf("sentiment negative cutoff %.2f exceeds positive cutoff %.2f",
			c.Sentiment.NegativeCutoff, c.Sentiment.PositiveCutoff)
	}

	return nil
}
