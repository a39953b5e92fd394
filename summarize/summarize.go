package summarize

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"deskresearch/repository"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
	"github.com/tmc/langchaingo/prompts"
	"go.uber.org/zap"
)

const (
	DefaultBaseURL     = "https://api.groq.com/openai/v1"
	DefaultModel       = "llama-3.3-70b-versatile"
	DefaultMaxTokens   = 1200
	DefaultTemperature = 0.3
	DefaultMaxExcerpts = 5
)

const reportTemplate = `You are an expert academic research assistant.

RESEARCH QUESTION:
{{.query}}

ACADEMIC PAPERS FOUND:
{{.context}}

INSTRUCTIONS:
1. Generate a professional executive report of maximum 400 words
2. Summarize the most important findings
3. Identify key trends and patterns, giving weight to the most recent work
4. Use references [1], [2], [3], etc. to cite sources
5. Write in clear and professional English
6. DO NOT invent information not present in the sources

REPORT:`

type Config struct {
	APIKey    string
	BaseURL   string
	Model     string
	MaxTokens int
	// Temperature is DefaultTemperature when nil; zero is honoured.
	Temperature *float64
	Timeout     time.Duration
	MaxExcerpts int
}

// LLMSummarizer writes the report through any langchaingo model; in
// production an OpenAI-compatible endpoint such as Groq.
type LLMSummarizer struct {
	llm         llms.Model
	template    prompts.PromptTemplate
	maxTokens   int
	temperature float64
	timeout     time.Duration
	maxExcerpts int
	logger      *zap.Logger
}

func NewGroqSummarizer(cfg Config, logger *zap.Logger) (*LLMSummarizer, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("summarizer api key is required")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}

	llm, err := openai.New(
		openai.WithToken(cfg.APIKey),
		openai.WithBaseURL(cfg.BaseURL),
		openai.WithModel(cfg.Model),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create llm client: %w", err)
	}
	return NewLLMSummarizer(llm, cfg, logger), nil
}

func NewLLMSummarizer(llm llms.Model, cfg Config, logger *zap.Logger) *LLMSummarizer {
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = DefaultMaxTokens
	}
	temperature := DefaultTemperature
	if cfg.Temperature != nil {
		temperature = *cfg.Temperature
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	if cfg.MaxExcerpts <= 0 {
		cfg.MaxExcerpts = DefaultMaxExcerpts
	}
	return &LLMSummarizer{
		llm:         llm,
		template:    prompts.NewPromptTemplate(reportTemplate, []string{"query", "context"}),
		maxTokens:   cfg.MaxTokens,
		temperature: temperature,
		timeout:     cfg.Timeout,
		maxExcerpts: cfg.MaxExcerpts,
		logger:      logger,
	}
}

// Prompt renders the instruction sent to the model for a query and its
// evidence set. Only the first maxExcerpts documents are included.
func (s *LLMSummarizer) Prompt(query string, docs []repository.ScoredDocument) (string, error) {
	return s.template.Format(map[string]any{
		"query":   query,
		"context": formatExcerpts(docs, s.maxExcerpts),
	})
}

func (s *LLMSummarizer) Summarize(ctx context.Context, query string, docs []repository.ScoredDocument) (string, error) {
	prompt, err := s.Prompt(query, docs)
	if err != nil {
		return "", &Error{Kind: KindMalformed, Err: fmt.Errorf("render prompt: %w", err)}
	}

	callCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	start := time.Now()
	report, err := llms.GenerateFromSinglePrompt(callCtx, s.llm, prompt,
		llms.WithMaxTokens(s.maxTokens),
		llms.WithTemperature(s.temperature),
	)
	if err != nil {
		serr := classify(callCtx, err)
		s.logger.Warn("report generation failed",
			zap.String("kind", string(serr.Kind)),
			zap.Duration("elapsed", time.Since(start)),
			zap.Error(err))
		return "", serr
	}

	report = strings.TrimSpace(report)
	if report == "" {
		return "", &Error{Kind: KindMalformed, Err: errors.New("model returned an empty completion")}
	}

	s.logger.Info("report generated",
		zap.Int("excerpts", min(len(docs), s.maxExcerpts)),
		zap.Duration("elapsed", time.Since(start)))
	return report, nil
}

func formatExcerpts(docs []repository.ScoredDocument, max int) string {
	if len(docs) > max {
		docs = docs[:max]
	}
	var b strings.Builder
	for i, doc := range docs {
		fmt.Fprintf(&b, "[%d] %s (Published: %s)\n%s\nSource: %s\n\n",
			i+1, doc.Title, doc.PublishedDate, doc.Content, doc.URL)
	}
	return strings.TrimRight(b.String(), "\n")
}

func classify(callCtx context.Context, err error) *Error {
	var netErr net.Error
	switch {
	case errors.Is(err, context.DeadlineExceeded),
		errors.Is(callCtx.Err(), context.DeadlineExceeded),
		errors.As(err, &netErr) && netErr.Timeout():
		return &Error{Kind: KindTimeout, Err: err}
	case errors.Is(err, openai.ErrEmptyResponse),
		errors.Is(err, openai.ErrUnexpectedResponseLength):
		return &Error{Kind: KindMalformed, Err: err}
	default:
		return &Error{Kind: KindUpstream, Err: err}
	}
}
