package main

import (
	"context"
	"fmt"
	"time"

	"deskresearch/api"
	"deskresearch/config"
	"deskresearch/notify"
	"deskresearch/pkg/embedding"
	"deskresearch/pkg/kafka"
	"deskresearch/pkg/memvector"
	"deskresearch/pkg/qdrantdb"
	"deskresearch/relevance"
	"deskresearch/repository"
	"deskresearch/research"
	"deskresearch/search"
	"deskresearch/summarize"

	"go.uber.org/zap"
)

const indexMemory = "memory"

type app struct {
	dispatcher *research.Dispatcher
	components api.Components
	closers    []func() error
}

func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		_ = a.closers[i]()
	}
}

// buildApp wires every collaborator once. When the vector index cannot be
// reached and indexKind is not memory, the dispatcher is nil and the caller
// decides whether that is fatal.
func buildApp(ctx context.Context, cfg *config.Config, runs repository.RunRepo, indexKind string, logger *zap.Logger) (*app, error) {
	a := &app{}

	// =========
	// arXiv fetcher
	// =========
	fetcher := search.NewArxivSearchEngine(search.ArxivConfig{
		BaseURL:           cfg.Arxiv.BaseURL,
		SortBy:            search.SortBy(cfg.Arxiv.SortBy),
		RecencyAware:      *cfg.Arxiv.RecencyAware,
		Timeout:           seconds(cfg.Arxiv.TimeoutSecs),
		RequestsPerSecond: cfg.Arxiv.RequestsPerSecond,
	}, logger)

	// =========
	// Embedding Client
	// =========
	embeddingClient := embedding.NewTEIClient(cfg.Embedding.URL, cfg.Embedding.Dimension, seconds(cfg.Embedding.TimeoutSecs))

	// =========
	// Summarizer
	// =========
	summarizer, err := summarize.NewGroqSummarizer(summarize.Config{
		APIKey:      cfg.Groq.APIKey,
		BaseURL:     cfg.Groq.BaseURL,
		Model:       cfg.Groq.Model,
		MaxTokens:   cfg.Groq.MaxTokens,
		Temperature: cfg.Groq.Temperature,
		Timeout:     seconds(cfg.Groq.TimeoutSecs),
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize summarizer: %w", err)
	}
	a.components.LLMConfigured = true

	// =========
	// Mailer
	// =========
	var mailer notify.Mailer
	if cfg.Resend.APIKey != "" {
		m, err := notify.NewResendMailer(notify.ResendConfig{
			APIKey:  cfg.Resend.APIKey,
			From:    cfg.Resend.From,
			Timeout: seconds(cfg.Resend.TimeoutSecs),
		}, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize mailer: %w", err)
		}
		mailer = m
		a.components.MailConfigured = true
	}

	// =========
	// Kafka events
	// =========
	var publisher kafka.Publisher = kafka.NopPublisher{}
	if cfg.Kafka.URL != "" {
		client, err := kafka.NewClient(cfg.Kafka.URL)
		if err != nil {
			logger.Warn("kafka unavailable, completion events disabled", zap.Error(err))
		} else {
			publisher = kafka.NewEventPublisher(client, cfg.Kafka.Topic)
			a.closers = append(a.closers, publisher.Close)
		}
	}

	// =========
	// Vector index
	// =========
	var index repository.VectorIndex
	if indexKind == indexMemory {
		index = memvector.New()
	} else {
		qdb, err := qdrantdb.NewClient(qdrantdb.Config{
			Host:           cfg.Qdrant.Host,
			Port:           cfg.Qdrant.Port,
			APIKey:         cfg.Qdrant.APIKey,
			UseTLS:         cfg.Qdrant.UseTLS,
			ConnectTimeout: seconds(cfg.Qdrant.TimeoutSecs),
		})
		if err != nil {
			logger.Error("failed to connect to qdrant, research engine unavailable", zap.Error(err))
			return a, nil
		}
		index = qdb
	}
	a.closers = append(a.closers, index.Close)

	// =========
	// Research engine
	// =========
	ranker := relevance.NewRanker(embeddingClient, index, relevance.Config{
		Threshold: float32(cfg.Rank.Threshold),
		OverFetch: cfg.Rank.OverFetch,
	}, logger)

	engine := research.NewEngine(fetcher, embeddingClient, index, ranker, summarizer, research.Config{
		Collection: cfg.Qdrant.Collection,
		MaxResults: cfg.Arxiv.MaxResults,
		TopK:       cfg.Rank.TopK,
		MaxSources: cfg.Rank.MaxSources,
	}, logger)

	if err := engine.Prepare(ctx); err != nil {
		logger.Error("failed to prepare collection, research engine unavailable", zap.Error(err))
		return a, nil
	}
	a.components.IndexConnected = true

	a.dispatcher = research.NewDispatcher(engine, runs, mailer, publisher, logger)
	return a, nil
}

func seconds(n int) time.Duration {
	return time.Duration(n) * time.Second
}
