package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

type ArxivConfig struct {
	BaseURL string `yaml:"base_url"`
	SortBy  string `yaml:"sort_by"`
	// RecencyAware defaults to true when unset.
	RecencyAware      *bool   `yaml:"recency_aware"`
	MaxResults        int     `yaml:"max_results"`
	RequestsPerSecond float64 `yaml:"requests_per_second"`
	TimeoutSecs       int     `yaml:"timeout_secs"`
}

type EmbeddingConfig struct {
	URL         string `yaml:"url"`
	Dimension   int    `yaml:"dimension"`
	TimeoutSecs int    `yaml:"timeout_secs"`
}

type QdrantConfig struct {
	Host        string `yaml:"host"`
	Port        int    `yaml:"port"`
	APIKey      string `yaml:"api_key"`
	UseTLS      bool   `yaml:"use_tls"`
	Collection  string `yaml:"collection"`
	TimeoutSecs int    `yaml:"timeout_secs"`
}

type GroqConfig struct {
	APIKey      string   `yaml:"api_key"`
	BaseURL     string   `yaml:"base_url"`
	Model       string   `yaml:"model"`
	MaxTokens   int      `yaml:"max_tokens"`
	Temperature *float64 `yaml:"temperature"`
	TimeoutSecs int      `yaml:"timeout_secs"`
}

type ResendConfig struct {
	APIKey      string `yaml:"api_key"`
	From        string `yaml:"from"`
	TimeoutSecs int    `yaml:"timeout_secs"`
}

type KafkaConfig struct {
	URL   string `yaml:"url"`
	Topic string `yaml:"topic"`
}

type RankConfig struct {
	Threshold  float64 `yaml:"threshold"`
	OverFetch  int     `yaml:"over_fetch"`
	TopK       int     `yaml:"top_k"`
	MaxSources int     `yaml:"max_sources"`
}

type Config struct {
	AppPort    int             `yaml:"app_port"`
	RunsDBPath string          `yaml:"runs_db_path"`
	Arxiv      ArxivConfig     `yaml:"arxiv"`
	Embedding  EmbeddingConfig `yaml:"embedding"`
	Qdrant     QdrantConfig    `yaml:"qdrant"`
	Groq       GroqConfig      `yaml:"groq"`
	Resend     ResendConfig    `yaml:"resend"`
	Kafka      KafkaConfig     `yaml:"kafka"`
	Rank       RankConfig      `yaml:"rank"`
}

// Load builds the configuration from an optional YAML file overlaid with
// environment variables. Environment variables win. An empty path skips the
// file.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
	}

	if err := applyEnv(cfg); err != nil {
		return nil, err
	}
	applyDefaults(cfg)
	return cfg, nil
}

func applyEnv(cfg *Config) error {
	var errs []error

	errs = append(errs,
		envInt("APP_PORT", &cfg.AppPort),
		envString("RUNS_DB_PATH", &cfg.RunsDBPath),

		envString("ARXIV_URL", &cfg.Arxiv.BaseURL),
		envString("ARXIV_SORT_BY", &cfg.Arxiv.SortBy),
		envOptional("ARXIV_RECENCY_AWARE", &cfg.Arxiv.RecencyAware, strconv.ParseBool),
		envInt("ARXIV_MAX_RESULTS", &cfg.Arxiv.MaxResults),
		envFloat("ARXIV_RPS", &cfg.Arxiv.RequestsPerSecond),

		envString("TEI_URL", &cfg.Embedding.URL),
		envInt("EMBEDDING_DIM", &cfg.Embedding.Dimension),

		envString("QDRANT_HOST", &cfg.Qdrant.Host),
		envInt("QDRANT_PORT", &cfg.Qdrant.Port),
		envString("QDRANT_API_KEY", &cfg.Qdrant.APIKey),
		envBool("QDRANT_USE_TLS", &cfg.Qdrant.UseTLS),
		envString("QDRANT_COLLECTION", &cfg.Qdrant.Collection),

		envString("GROQ_API_KEY", &cfg.Groq.APIKey),
		envString("GROQ_BASE_URL", &cfg.Groq.BaseURL),
		envString("GROQ_MODEL", &cfg.Groq.Model),
		envOptional("GROQ_TEMPERATURE", &cfg.Groq.Temperature, parseFloat),

		envString("RESEND_API_KEY", &cfg.Resend.APIKey),
		envString("RESEND_FROM", &cfg.Resend.From),

		envString("KAFKA_URL", &cfg.Kafka.URL),
		envString("KAFKA_TOPIC", &cfg.Kafka.Topic),

		envFloat("RANK_THRESHOLD", &cfg.Rank.Threshold),
		envInt("RANK_OVERFETCH", &cfg.Rank.OverFetch),
		envInt("RANK_TOP_K", &cfg.Rank.TopK),
	)
	return errors.Join(errs...)
}

func applyDefaults(cfg *Config) {
	setDefault(&cfg.AppPort, 8000)
	setDefault(&cfg.RunsDBPath, "data/runs.db")

	setDefault(&cfg.Arxiv.BaseURL, "http://export.arxiv.org/api/query")
	setDefault(&cfg.Arxiv.SortBy, "relevance")
	setUnset(&cfg.Arxiv.RecencyAware, true)
	setDefault(&cfg.Arxiv.MaxResults, 15)
	setDefault(&cfg.Arxiv.TimeoutSecs, 15)

	setDefault(&cfg.Embedding.URL, "http://localhost:8080")
	setDefault(&cfg.Embedding.Dimension, 384)
	setDefault(&cfg.Embedding.TimeoutSecs, 30)

	setDefault(&cfg.Qdrant.Port, 6334)
	setDefault(&cfg.Qdrant.Collection, "research_docs")
	setDefault(&cfg.Qdrant.TimeoutSecs, 60)

	setDefault(&cfg.Groq.BaseURL, "https://api.groq.com/openai/v1")
	setDefault(&cfg.Groq.Model, "llama-3.3-70b-versatile")
	setDefault(&cfg.Groq.MaxTokens, 1200)
	setUnset(&cfg.Groq.Temperature, 0.3)
	setDefault(&cfg.Groq.TimeoutSecs, 60)

	setDefault(&cfg.Resend.From, "DeskResearcher <onboarding@resend.dev>")
	setDefault(&cfg.Resend.TimeoutSecs, 10)

	setDefault(&cfg.Kafka.Topic, "research.completed")

	setDefault(&cfg.Rank.Threshold, 0.3)
	setDefault(&cfg.Rank.OverFetch, 2)
	setDefault(&cfg.Rank.TopK, 10)
	setDefault(&cfg.Rank.MaxSources, 8)
}

// Needs names the optional collaborators a command requires.
type Needs struct {
	Qdrant bool
	Mail   bool
}

// Validate reports every missing required setting at once.
func (c *Config) Validate(needs Needs) error {
	var missing []string
	if c.Groq.APIKey == "" {
		missing = append(missing, "GROQ_API_KEY")
	}
	if needs.Qdrant && c.Qdrant.Host == "" {
		missing = append(missing, "QDRANT_HOST")
	}
	if needs.Mail && c.Resend.APIKey == "" {
		missing = append(missing, "RESEND_API_KEY")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required configuration: %s", strings.Join(missing, ", "))
	}
	if c.Rank.Threshold < -1 || c.Rank.Threshold > 1 {
		return fmt.Errorf("RANK_THRESHOLD must be within [-1, 1], got %v", c.Rank.Threshold)
	}
	return nil
}

func setDefault[T comparable](field *T, value T) {
	var zero T
	if *field == zero {
		*field = value
	}
}

// setUnset fills optional fields whose zero value is meaningful.
func setUnset[T any](field **T, value T) {
	if *field == nil {
		*field = &value
	}
}

func envString(key string, dst *string) error {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		*dst = v
	}
	return nil
}

func envInt(key string, dst *int) error {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("environment variable %s: %w", key, err)
	}
	*dst = n
	return nil
}

func envFloat(key string, dst *float64) error {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fmt.Errorf("environment variable %s: %w", key, err)
	}
	*dst = f
	return nil
}

func envBool(key string, dst *bool) error {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fmt.Errorf("environment variable %s: %w", key, err)
	}
	*dst = b
	return nil
}

func envOptional[T any](key string, dst **T, parse func(string) (T, error)) error {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return nil
	}
	parsed, err := parse(v)
	if err != nil {
		return fmt.Errorf("environment variable %s: %w", key, err)
	}
	*dst = &parsed
	return nil
}

func parseFloat(s string) (float64, error) {
	return strconv.ParseFloat(s, 64)
}
