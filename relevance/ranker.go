package relevance

import (
	"context"
	"fmt"

	"deskresearch/pkg/embedding"
	"deskresearch/repository"

	"go.uber.org/zap"
)

const (
	DefaultThreshold = 0.3
	DefaultOverFetch = 2
)

type Config struct {
	// Threshold is the relevance gate: hits scoring at or below it are dropped.
	Threshold float32
	// OverFetch multiplies top_k when querying the index, leaving headroom
	// for the gate.
	OverFetch int
}

// Ranker selects the evidence set: nearest neighbours above the relevance
// gate, newest first.
type Ranker struct {
	embeddingClient embedding.Client
	index           repository.VectorIndex
	threshold       float32
	overFetch       int
	logger          *zap.Logger
}

func NewRanker(embeddingClient embedding.Client, index repository.VectorIndex, cfg Config, logger *zap.Logger) *Ranker {
	if cfg.OverFetch <= 0 {
		cfg.OverFetch = DefaultOverFetch
	}
	return &Ranker{
		embeddingClient: embeddingClient,
		index:           index,
		threshold:       cfg.Threshold,
		overFetch:       cfg.OverFetch,
		logger:          logger,
	}
}

// Rank returns at most topK documents. An encoder failure is returned as is;
// an index failure is returned wrapping repository.ErrIndex.
func (r *Ranker) Rank(ctx context.Context, collection, query string, topK int) ([]repository.ScoredDocument, error) {
	if topK <= 0 {
		return []repository.ScoredDocument{}, nil
	}

	queryVector, err := embedding.Embed(ctx, r.embeddingClient, query)
	if err != nil {
		return nil, fmt.Errorf("failed to get query embedding: %w", err)
	}

	hits, err := r.index.Search(ctx, collection, queryVector, r.overFetch*topK)
	if err != nil {
		return nil, err
	}

	ranked := Select(hits, r.threshold, topK)
	r.logger.Debug("ranked evidence",
		zap.String("collection", collection),
		zap.Int("hits", len(hits)),
		zap.Int("kept", len(ranked)),
		zap.Float32("threshold", r.threshold))
	return ranked, nil
}

// Select applies the relevance gate, sorts survivors by recency and truncates
// to topK. Fewer survivors than topK are returned as they are.
func Select(hits []repository.ScoredDocument, threshold float32, topK int) []repository.ScoredDocument {
	kept := make([]repository.ScoredDocument, 0, len(hits))
	for _, h := range hits {
		if h.RelevanceScore > threshold {
			kept = append(kept, h)
		}
	}

	repository.SortByRecency(kept, func(d repository.ScoredDocument) string { return d.PublishedDate })

	if topK >= 0 && len(kept) > topK {
		kept = kept[:topK]
	}
	return kept
}
